package domain

import (
	"strings"

	usagedomain "github.com/smallbiznis/concord/internal/usagereport/domain"
)

// MapBuckets assigns one workspace's raw sizes to billable buckets based on
// its workspace type. Unrecognized types use the review mapping. Unit counts
// copy through unchanged regardless of type.
func MapBuckets(record usagedomain.UsageRecord) BucketSet {
	buckets := BucketSet{
		TranslationUnits: record.TranslationUnits,
		AIReviewUnits:    record.AIReviewUnits,
		AIPrivilegeUnits: record.AIPrivilegeUnits,
	}

	switch strings.ToUpper(strings.TrimSpace(record.WorkspaceType)) {
	case WorkspaceTypeRepository:
		buckets.HostingReview = record.LinkedTotalFileSizeGB
		buckets.HostingRepository = record.PeakWorkspaceHostedSizeGB - record.LinkedTotalFileSizeGB
		buckets.ProcessingRepository = record.PublishedDocumentSizeGB
	case WorkspaceTypeColdStorage:
		buckets.ColdStorage = record.PeakWorkspaceHostedSizeGB
	default:
		buckets.HostingReview = record.PeakWorkspaceHostedSizeGB
		buckets.ProcessingReview = record.PublishedDocumentSizeGB
	}
	return buckets
}
