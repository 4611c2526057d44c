package domain

import (
	"fmt"

	"github.com/google/uuid"
	aggregatedomain "github.com/smallbiznis/concord/internal/aggregate/domain"
	"github.com/smallbiznis/concord/internal/config"
	"github.com/smallbiznis/concord/internal/objectstore"
)

// Resolve turns a matter summary into the field writes for its billing
// detail record. A bucket with no activity (value <= 0) is suppressed rather
// than written as zero. A manual override routes the value to the bucket's
// override-aware destination when one is configured; beyond that routing the
// override value itself does not alter the written amount.
func Resolve(fieldMap config.FieldMap, summary aggregatedomain.MatterSummary, overrides OverrideSet) ([]objectstore.FieldValue, error) {
	var values []objectstore.FieldValue
	for _, bucket := range Buckets {
		amount := bucketAmount(summary, bucket)
		if amount <= 0 {
			continue
		}

		pair, err := fieldMap.Bucket(bucket)
		if err != nil {
			return nil, fmt.Errorf("resolve bucket %s: %w", bucket, err)
		}

		field := pair.Standard
		if _, overridden := overrides[bucket]; overridden && pair.Override != uuid.Nil {
			field = pair.Override
		}
		values = append(values, objectstore.FieldValue{Field: field, Value: amount})
	}
	return values, nil
}

func bucketAmount(summary aggregatedomain.MatterSummary, bucket string) float64 {
	switch bucket {
	case BucketHostingReview:
		return summary.HostingReview
	case BucketHostingRepository:
		return summary.HostingRepository
	case BucketProcessingReview:
		return summary.ProcessingReview
	case BucketProcessingRepository:
		return summary.ProcessingRepository
	case BucketColdStorage:
		return summary.ColdStorage
	case BucketTranslationUnits:
		return summary.TranslationUnits
	case BucketAIReviewUnits:
		return summary.AIReviewUnits
	case BucketAIPrivilegeUnits:
		return summary.AIPrivilegeUnits
	case BucketPageCount:
		return float64(summary.PageCount)
	case BucketImageCount:
		return float64(summary.ImageCount)
	}
	return 0
}
