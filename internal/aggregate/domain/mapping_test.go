package domain

import (
	"testing"

	usagedomain "github.com/smallbiznis/concord/internal/usagereport/domain"
	"github.com/stretchr/testify/assert"
)

func TestMapBucketsRepository(t *testing.T) {
	buckets := MapBuckets(usagedomain.UsageRecord{
		WorkspaceType:             "REPOSITORY",
		PeakWorkspaceHostedSizeGB: 100,
		LinkedTotalFileSizeGB:     40,
		PublishedDocumentSizeGB:   10,
	})

	assert.Equal(t, 40.0, buckets.HostingReview)
	assert.Equal(t, 60.0, buckets.HostingRepository)
	assert.Equal(t, 10.0, buckets.ProcessingRepository)
	assert.Zero(t, buckets.ProcessingReview)
	assert.Zero(t, buckets.ColdStorage)
}

func TestMapBucketsColdStorage(t *testing.T) {
	buckets := MapBuckets(usagedomain.UsageRecord{
		WorkspaceType:             "COLD STORAGE",
		PeakWorkspaceHostedSizeGB: 75,
		LinkedTotalFileSizeGB:     20,
		PublishedDocumentSizeGB:   5,
	})

	assert.Equal(t, 75.0, buckets.ColdStorage)
	assert.Zero(t, buckets.HostingReview)
	assert.Zero(t, buckets.HostingRepository)
	assert.Zero(t, buckets.ProcessingReview)
	assert.Zero(t, buckets.ProcessingRepository)
}

func TestMapBucketsReview(t *testing.T) {
	buckets := MapBuckets(usagedomain.UsageRecord{
		WorkspaceType:             "REVIEW",
		PeakWorkspaceHostedSizeGB: 50,
		PublishedDocumentSizeGB:   5,
	})

	assert.Equal(t, 50.0, buckets.HostingReview)
	assert.Equal(t, 5.0, buckets.ProcessingReview)
	assert.Zero(t, buckets.ColdStorage)
}

func TestMapBucketsUnrecognizedTypeDefaultsToReview(t *testing.T) {
	buckets := MapBuckets(usagedomain.UsageRecord{
		WorkspaceType:             "archive",
		PeakWorkspaceHostedSizeGB: 12,
		PublishedDocumentSizeGB:   3,
	})

	assert.Equal(t, 12.0, buckets.HostingReview)
	assert.Equal(t, 3.0, buckets.ProcessingReview)
}

func TestMapBucketsTypeMatchIsCaseInsensitive(t *testing.T) {
	buckets := MapBuckets(usagedomain.UsageRecord{
		WorkspaceType:             "repository",
		PeakWorkspaceHostedSizeGB: 10,
		LinkedTotalFileSizeGB:     4,
	})

	assert.Equal(t, 4.0, buckets.HostingReview)
	assert.Equal(t, 6.0, buckets.HostingRepository)
}

func TestMapBucketsUnitsPassThrough(t *testing.T) {
	buckets := MapBuckets(usagedomain.UsageRecord{
		WorkspaceType:    "COLD STORAGE",
		TranslationUnits: 7,
		AIReviewUnits:    3,
		AIPrivilegeUnits: 2,
	})

	assert.Equal(t, 7.0, buckets.TranslationUnits)
	assert.Equal(t, 3.0, buckets.AIReviewUnits)
	assert.Equal(t, 2.0, buckets.AIPrivilegeUnits)
}
