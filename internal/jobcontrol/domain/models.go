package domain

import (
	"context"
	"errors"
	"time"
)

// Interval classes, encoded in hours on the persisted row.
const (
	IntervalHourly  = 1
	IntervalDaily   = 24
	IntervalMonthly = 720
)

var ErrNotFound = errors.New("job control not found")

// JobControl is the persisted scheduling state for one job. One row per job
// id; the scheduler is its only writer.
type JobControl struct {
	JobID         string     `gorm:"column:job_id;primaryKey"`
	IntervalHours int        `gorm:"column:interval_hours"`
	AnchorDay     *int       `gorm:"column:anchor_day"`
	AnchorHour    *int       `gorm:"column:anchor_hour"`
	LastExecute   *time.Time `gorm:"column:last_execute"`
	LastCheck     *time.Time `gorm:"column:last_check"`
}

func (JobControl) TableName() string {
	return "job_controls"
}

type Service interface {
	Get(ctx context.Context, jobID string) (JobControl, error)
	List(ctx context.Context) ([]JobControl, error)
	MarkChecked(ctx context.Context, jobID string, now time.Time) error
	MarkExecuted(ctx context.Context, jobID string, now time.Time) error
}
