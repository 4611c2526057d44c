package service

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	jobcontroldomain "github.com/smallbiznis/concord/internal/jobcontrol/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&jobcontroldomain.JobControl{}))
	svc := New(Params{DB: db, Log: zap.NewNop()}).(*Service)
	return svc, db
}

func anchorsp(day, hour int) (*int, *int) {
	return &day, &hour
}

func TestGetAndList(t *testing.T) {
	svc, db := newTestService(t)
	day, hour := anchorsp(5, 9)
	require.NoError(t, db.Create(&jobcontroldomain.JobControl{
		JobID:         "usage_billing",
		IntervalHours: jobcontroldomain.IntervalMonthly,
		AnchorDay:     day,
		AnchorHour:    hour,
	}).Error)
	require.NoError(t, db.Create(&jobcontroldomain.JobControl{
		JobID:         "reconcile_clients",
		IntervalHours: jobcontroldomain.IntervalHourly,
	}).Error)

	jc, err := svc.Get(context.Background(), "usage_billing")
	require.NoError(t, err)
	assert.Equal(t, jobcontroldomain.IntervalMonthly, jc.IntervalHours)
	require.NotNil(t, jc.AnchorDay)
	assert.Equal(t, 5, *jc.AnchorDay)

	controls, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, controls, 2)
	assert.Equal(t, "reconcile_clients", controls[0].JobID)
}

func TestGetUnknownJob(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, jobcontroldomain.ErrNotFound)
}

func TestMarkCheckedLeavesLastExecute(t *testing.T) {
	svc, db := newTestService(t)
	require.NoError(t, db.Create(&jobcontroldomain.JobControl{
		JobID:         "reconcile_clients",
		IntervalHours: jobcontroldomain.IntervalHourly,
	}).Error)

	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, svc.MarkChecked(context.Background(), "reconcile_clients", now))

	jc, err := svc.Get(context.Background(), "reconcile_clients")
	require.NoError(t, err)
	require.NotNil(t, jc.LastCheck)
	assert.True(t, jc.LastCheck.Equal(now))
	assert.Nil(t, jc.LastExecute)
}

func TestMarkExecuted(t *testing.T) {
	svc, db := newTestService(t)
	require.NoError(t, db.Create(&jobcontroldomain.JobControl{
		JobID:         "reconcile_matters",
		IntervalHours: jobcontroldomain.IntervalDaily,
	}).Error)

	now := time.Date(2025, 6, 10, 6, 0, 0, 0, time.UTC)
	require.NoError(t, svc.MarkExecuted(context.Background(), "reconcile_matters", now))

	jc, err := svc.Get(context.Background(), "reconcile_matters")
	require.NoError(t, err)
	require.NotNil(t, jc.LastExecute)
	assert.True(t, jc.LastExecute.Equal(now))
}

func TestStampUnknownJob(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.MarkChecked(context.Background(), "nope", time.Now())
	assert.ErrorIs(t, err, jobcontroldomain.ErrNotFound)
}
