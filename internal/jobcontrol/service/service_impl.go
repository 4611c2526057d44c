package service

import (
	"context"
	"errors"
	"time"

	jobcontroldomain "github.com/smallbiznis/concord/internal/jobcontrol/domain"
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

func New(p Params) jobcontroldomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("jobcontrol.service"),
	}
}

func (s *Service) Get(ctx context.Context, jobID string) (jobcontroldomain.JobControl, error) {
	var jc jobcontroldomain.JobControl
	err := s.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		First(&jc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return jc, jobcontroldomain.ErrNotFound
	}
	return jc, err
}

func (s *Service) List(ctx context.Context) ([]jobcontroldomain.JobControl, error) {
	var controls []jobcontroldomain.JobControl
	err := s.db.WithContext(ctx).
		Order("job_id ASC").
		Find(&controls).Error
	return controls, err
}

func (s *Service) MarkChecked(ctx context.Context, jobID string, now time.Time) error {
	return s.stamp(ctx, jobID, "last_check", now)
}

func (s *Service) MarkExecuted(ctx context.Context, jobID string, now time.Time) error {
	return s.stamp(ctx, jobID, "last_execute", now)
}

func (s *Service) stamp(ctx context.Context, jobID, column string, now time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&jobcontroldomain.JobControl{}).
		Where("job_id = ?", jobID).
		Update(column, now.UTC())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return jobcontroldomain.ErrNotFound
	}
	return nil
}
