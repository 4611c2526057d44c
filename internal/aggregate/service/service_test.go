package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	aggregatedomain "github.com/smallbiznis/concord/internal/aggregate/domain"
	"github.com/smallbiznis/concord/internal/clock"
	extractdomain "github.com/smallbiznis/concord/internal/extract/domain"
	usagedomain "github.com/smallbiznis/concord/internal/usagereport/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&aggregatedomain.WorkspaceRollup{}))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC))
	svc := New(Params{DB: db, Log: zap.NewNop(), GenID: node, Clock: fake}).(*Service)
	return svc, db
}

func TestAggregateSumsPerMatter(t *testing.T) {
	svc, _ := newTestService(t)

	usage := []usagedomain.UsageRecord{
		{WorkspaceArtifactID: 1, MatterArtifactID: 10, WorkspaceType: "REVIEW", PeakWorkspaceHostedSizeGB: 50, PublishedDocumentSizeGB: 5},
		{WorkspaceArtifactID: 2, MatterArtifactID: 10, WorkspaceType: "COLD STORAGE", PeakWorkspaceHostedSizeGB: 75},
		{WorkspaceArtifactID: 3, MatterArtifactID: 20, WorkspaceType: "REPOSITORY", PeakWorkspaceHostedSizeGB: 100, LinkedTotalFileSizeGB: 40, PublishedDocumentSizeGB: 10},
	}

	summaries, err := svc.Aggregate(context.Background(), "202503", usage, nil)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	first := summaries[0]
	assert.Equal(t, 10, first.MatterArtifactID)
	assert.Equal(t, "202503", first.DateKey)
	assert.Equal(t, 50.0, first.HostingReview)
	assert.Equal(t, 5.0, first.ProcessingReview)
	assert.Equal(t, 75.0, first.ColdStorage)

	second := summaries[1]
	assert.Equal(t, 20, second.MatterArtifactID)
	assert.Equal(t, 40.0, second.HostingReview)
	assert.Equal(t, 60.0, second.HostingRepository)
	assert.Equal(t, 10.0, second.ProcessingRepository)
}

func TestAggregateFoldsPageCounts(t *testing.T) {
	svc, _ := newTestService(t)

	usage := []usagedomain.UsageRecord{
		{WorkspaceArtifactID: 1, MatterArtifactID: 10, WorkspaceType: "REVIEW", PeakWorkspaceHostedSizeGB: 5},
	}
	pages := []extractdomain.PageCount{
		{MatterArtifactID: 10, DateKey: "202503", Pages: 120, Images: 30},
		{MatterArtifactID: 99, DateKey: "202503", Pages: 40, Images: 8},
	}

	summaries, err := svc.Aggregate(context.Background(), "202503", usage, pages)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, int64(120), summaries[0].PageCount)
	assert.Equal(t, int64(30), summaries[0].ImageCount)

	// Imaging-only matters still produce a summary row.
	assert.Equal(t, 99, summaries[1].MatterArtifactID)
	assert.Equal(t, int64(40), summaries[1].PageCount)
	assert.Zero(t, summaries[1].HostingReview)
}

func TestAggregateSupersedesPriorRun(t *testing.T) {
	svc, db := newTestService(t)

	usage := []usagedomain.UsageRecord{
		{WorkspaceArtifactID: 1, MatterArtifactID: 10, WorkspaceType: "REVIEW", PeakWorkspaceHostedSizeGB: 50},
	}
	_, err := svc.Aggregate(context.Background(), "202503", usage, nil)
	require.NoError(t, err)

	usage[0].PeakWorkspaceHostedSizeGB = 30
	summaries, err := svc.Aggregate(context.Background(), "202503", usage, nil)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 30.0, summaries[0].HostingReview)

	var count int64
	require.NoError(t, db.Model(&aggregatedomain.WorkspaceRollup{}).
		Where("date_key = ?", "202503").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAggregateLeavesOtherPeriodsAlone(t *testing.T) {
	svc, db := newTestService(t)

	_, err := svc.Aggregate(context.Background(), "202502", []usagedomain.UsageRecord{
		{WorkspaceArtifactID: 1, MatterArtifactID: 10, WorkspaceType: "REVIEW", PeakWorkspaceHostedSizeGB: 1},
	}, nil)
	require.NoError(t, err)

	_, err = svc.Aggregate(context.Background(), "202503", []usagedomain.UsageRecord{
		{WorkspaceArtifactID: 1, MatterArtifactID: 10, WorkspaceType: "REVIEW", PeakWorkspaceHostedSizeGB: 2},
	}, nil)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&aggregatedomain.WorkspaceRollup{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}
