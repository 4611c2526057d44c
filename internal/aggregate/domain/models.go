package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	extractdomain "github.com/smallbiznis/concord/internal/extract/domain"
	usagedomain "github.com/smallbiznis/concord/internal/usagereport/domain"
	"gorm.io/datatypes"
)

// Workspace types recognized by the bucket mapping. Anything else falls
// through to the review mapping.
const (
	WorkspaceTypeReview      = "REVIEW"
	WorkspaceTypeRepository  = "REPOSITORY"
	WorkspaceTypeColdStorage = "COLD STORAGE"
)

// BucketSet holds one workspace's billable sizes after type mapping, plus
// the unit counts that pass through unchanged.
type BucketSet struct {
	HostingReview        float64
	HostingRepository    float64
	ProcessingReview     float64
	ProcessingRepository float64
	ColdStorage          float64

	TranslationUnits float64
	AIReviewUnits    float64
	AIPrivilegeUnits float64
}

// WorkspaceRollup is the transient per-workspace aggregation row. Rows for a
// period are replaced wholesale each run, then summed per matter.
type WorkspaceRollup struct {
	ID                  snowflake.ID      `gorm:"column:id;primaryKey"`
	WorkspaceArtifactID int               `gorm:"column:workspace_artifact_id"`
	MatterArtifactID    int               `gorm:"column:matter_artifact_id;index"`
	DateKey             string            `gorm:"column:date_key;index"`
	WorkspaceType       string            `gorm:"column:workspace_type"`
	HostingReview       float64           `gorm:"column:hosting_review"`
	HostingRepository   float64           `gorm:"column:hosting_repository"`
	ProcessingReview    float64           `gorm:"column:processing_review"`
	ProcessingRepo      float64           `gorm:"column:processing_repository"`
	ColdStorage         float64           `gorm:"column:cold_storage"`
	TranslationUnits    float64           `gorm:"column:translation_units"`
	AIReviewUnits       float64           `gorm:"column:ai_review_units"`
	AIPrivilegeUnits    float64           `gorm:"column:ai_privilege_units"`
	Metadata            datatypes.JSONMap `gorm:"column:metadata"`
	CreatedAt           time.Time         `gorm:"column:created_at"`
}

func (WorkspaceRollup) TableName() string {
	return "workspace_usage_rollups"
}

// MatterSummary is the per-matter, per-period sum of billable buckets. It is
// produced fresh each run and supersedes, never merges with, earlier runs.
type MatterSummary struct {
	MatterArtifactID     int
	DateKey              string
	HostingReview        float64
	HostingRepository    float64
	ProcessingReview     float64
	ProcessingRepository float64
	ColdStorage          float64
	TranslationUnits     float64
	AIReviewUnits        float64
	AIPrivilegeUnits     float64
	PageCount            int64
	ImageCount           int64
}

type Service interface {
	// Aggregate replaces the period's rollup rows from the parsed usage
	// records, folds in locally computed page counts, and returns the
	// matter-level sums.
	Aggregate(ctx context.Context, dateKey string, usage []usagedomain.UsageRecord, pages []extractdomain.PageCount) ([]MatterSummary, error)
}
