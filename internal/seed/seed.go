// Package seed bootstraps the job control table so a fresh deployment runs
// every job on its intended cadence without manual setup.
package seed

import (
	"context"
	"errors"

	jobcontroldomain "github.com/smallbiznis/concord/internal/jobcontrol/domain"
	"gorm.io/gorm"
)

func intPtr(v int) *int { return &v }

// defaultJobControls is the full job roster. The reconcile jobs run hourly;
// usage billing runs monthly, anchored to the second day of the month at
// 03:00 so the metering service has closed out the prior day first.
func defaultJobControls() []jobcontroldomain.JobControl {
	return []jobcontroldomain.JobControl{
		{JobID: "reconcile_clients", IntervalHours: jobcontroldomain.IntervalHourly},
		{JobID: "reconcile_matters", IntervalHours: jobcontroldomain.IntervalHourly},
		{JobID: "reconcile_workspaces", IntervalHours: jobcontroldomain.IntervalHourly},
		{JobID: "reconcile_users", IntervalHours: jobcontroldomain.IntervalHourly},
		{
			JobID:         "usage_billing",
			IntervalHours: jobcontroldomain.IntervalMonthly,
			AnchorDay:     intPtr(2),
			AnchorHour:    intPtr(3),
		},
	}
}

// EnsureJobControls inserts any missing job control rows. Existing rows are
// left untouched so operator edits to intervals and anchors survive restarts.
func EnsureJobControls(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, jc := range defaultJobControls() {
			var existing jobcontroldomain.JobControl
			err := tx.Where("job_id = ?", jc.JobID).First(&existing).Error
			if err == nil {
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			if err := tx.Create(&jc).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
