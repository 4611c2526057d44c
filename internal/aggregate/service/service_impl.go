package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	aggregatedomain "github.com/smallbiznis/concord/internal/aggregate/domain"
	"github.com/smallbiznis/concord/internal/clock"
	extractdomain "github.com/smallbiznis/concord/internal/extract/domain"
	usagedomain "github.com/smallbiznis/concord/internal/usagereport/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func New(p Params) aggregatedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("aggregate.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

// Aggregate replaces the period's per-workspace rollup rows, then sums them
// per matter. The SUM runs only after every workspace row is written, never
// incrementally.
func (s *Service) Aggregate(ctx context.Context, dateKey string, usage []usagedomain.UsageRecord, pages []extractdomain.PageCount) ([]aggregatedomain.MatterSummary, error) {
	if err := s.replaceRollups(ctx, dateKey, usage); err != nil {
		return nil, err
	}

	summaries, err := s.sumByMatter(ctx, dateKey)
	if err != nil {
		return nil, err
	}

	byMatter := make(map[int]int, len(summaries))
	for i := range summaries {
		byMatter[summaries[i].MatterArtifactID] = i
	}
	for _, page := range pages {
		idx, ok := byMatter[page.MatterArtifactID]
		if !ok {
			// Page activity on a matter without hosted usage still bills.
			summaries = append(summaries, aggregatedomain.MatterSummary{
				MatterArtifactID: page.MatterArtifactID,
				DateKey:          dateKey,
				PageCount:        page.Pages,
				ImageCount:       page.Images,
			})
			byMatter[page.MatterArtifactID] = len(summaries) - 1
			continue
		}
		summaries[idx].PageCount += page.Pages
		summaries[idx].ImageCount += page.Images
	}

	s.log.Info("aggregated usage",
		zap.String("date_key", dateKey),
		zap.Int("workspaces", len(usage)),
		zap.Int("matters", len(summaries)))
	return summaries, nil
}

func (s *Service) replaceRollups(ctx context.Context, dateKey string, usage []usagedomain.UsageRecord) error {
	err := s.db.WithContext(ctx).
		Where("date_key = ?", dateKey).
		Delete(&aggregatedomain.WorkspaceRollup{}).Error
	if err != nil {
		return err
	}

	now := s.clock.Now()
	for _, record := range usage {
		buckets := aggregatedomain.MapBuckets(record)
		rollup := aggregatedomain.WorkspaceRollup{
			ID:                  s.genID.Generate(),
			WorkspaceArtifactID: record.WorkspaceArtifactID,
			MatterArtifactID:    record.MatterArtifactID,
			DateKey:             dateKey,
			WorkspaceType:       record.WorkspaceType,
			HostingReview:       buckets.HostingReview,
			HostingRepository:   buckets.HostingRepository,
			ProcessingReview:    buckets.ProcessingReview,
			ProcessingRepo:      buckets.ProcessingRepository,
			ColdStorage:         buckets.ColdStorage,
			TranslationUnits:    buckets.TranslationUnits,
			AIReviewUnits:       buckets.AIReviewUnits,
			AIPrivilegeUnits:    buckets.AIPrivilegeUnits,
			Metadata: datatypes.JSONMap{
				"workspace_name": record.WorkspaceName,
			},
			CreatedAt: now,
		}
		if err := s.db.WithContext(ctx).Create(&rollup).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) sumByMatter(ctx context.Context, dateKey string) ([]aggregatedomain.MatterSummary, error) {
	var summaries []aggregatedomain.MatterSummary
	err := s.db.WithContext(ctx).Raw(
		`SELECT matter_artifact_id,
		        date_key,
		        SUM(hosting_review) AS hosting_review,
		        SUM(hosting_repository) AS hosting_repository,
		        SUM(processing_review) AS processing_review,
		        SUM(processing_repository) AS processing_repository,
		        SUM(cold_storage) AS cold_storage,
		        SUM(translation_units) AS translation_units,
		        SUM(ai_review_units) AS ai_review_units,
		        SUM(ai_privilege_units) AS ai_privilege_units
		 FROM workspace_usage_rollups
		 WHERE date_key = ?
		 GROUP BY matter_artifact_id, date_key
		 ORDER BY matter_artifact_id`,
		dateKey,
	).Scan(&summaries).Error
	if err != nil {
		return nil, err
	}
	return summaries, nil
}
