package service

import (
	"context"

	overridedomain "github.com/smallbiznis/concord/internal/override/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func New(p Params) overridedomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("override.service"),
	}
}

func (s *Service) Overrides(ctx context.Context) (map[int]overridedomain.OverrideSet, error) {
	var rows []overridedomain.MatterOverride
	err := s.db.WithContext(ctx).
		Order("matter_artifact_id ASC, bucket ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := map[int]overridedomain.OverrideSet{}
	for _, row := range rows {
		set, ok := out[row.MatterArtifactID]
		if !ok {
			set = overridedomain.OverrideSet{}
			out[row.MatterArtifactID] = set
		}
		set[row.Bucket] = row.Value
	}
	return out, nil
}
