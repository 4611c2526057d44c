package domain

import (
	"context"
	"time"
)

// Billable bucket keys, shared with the field map configuration.
const (
	BucketHostingReview        = "hosting_review"
	BucketHostingRepository    = "hosting_repository"
	BucketProcessingReview     = "processing_review"
	BucketProcessingRepository = "processing_repository"
	BucketColdStorage          = "cold_storage"
	BucketTranslationUnits     = "translation_units"
	BucketAIReviewUnits        = "ai_review_units"
	BucketAIPrivilegeUnits     = "ai_privilege_units"
	BucketPageCount            = "page_count"
	BucketImageCount           = "image_count"
)

// Buckets lists every billable bucket in write order.
var Buckets = []string{
	BucketHostingReview,
	BucketHostingRepository,
	BucketProcessingReview,
	BucketProcessingRepository,
	BucketColdStorage,
	BucketTranslationUnits,
	BucketAIReviewUnits,
	BucketAIPrivilegeUnits,
	BucketPageCount,
	BucketImageCount,
}

// OverrideSet is one matter's manual overrides, keyed by bucket. Presence of
// a key routes that bucket's value to the override-aware destination field;
// the stored value itself is informational here.
type OverrideSet map[string]float64

// MatterOverride is one persisted manual override row.
type MatterOverride struct {
	ID               int64     `gorm:"column:id;primaryKey;autoIncrement"`
	MatterArtifactID int       `gorm:"column:matter_artifact_id;index"`
	Bucket           string    `gorm:"column:bucket"`
	Value            float64   `gorm:"column:value"`
	CreatedAt        time.Time `gorm:"column:created_at"`
}

func (MatterOverride) TableName() string {
	return "matter_overrides"
}

type Service interface {
	// Overrides loads every matter's override set.
	Overrides(ctx context.Context) (map[int]OverrideSet, error)
}
