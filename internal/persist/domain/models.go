package domain

import (
	"context"

	aggregatedomain "github.com/smallbiznis/concord/internal/aggregate/domain"
	overridedomain "github.com/smallbiznis/concord/internal/override/domain"
	"github.com/smallbiznis/concord/internal/reconcile"
)

// Matter status values on the billing side.
const (
	StatusActive  = "Active"
	StatusDormant = "Dormant"
)

// ReconcileOutcome reports what one entity kind's reconciliation wrote.
type ReconcileOutcome struct {
	Created        int
	CreateFailures []string
	Updated        int
	UpdateFailures []string
}

// SummaryOutcome reports one period's billing-detail write pass. The
// confirmation flags record whether the eventually consistent store was
// observed to converge; false is logged, never fatal.
type SummaryOutcome struct {
	DateKey string

	DuplicateKeys []string

	Deleted         int
	DeleteConfirmed bool

	Created         int
	CreateFailures  []string
	CreateConfirmed bool

	Updated        int
	UpdateFailures []string

	Activated          int
	ActivationFailures []string
}

type Service interface {
	// ApplyReconciliation creates billing records for new source entities
	// and writes per-field updates for drifted ones.
	ApplyReconciliation(ctx context.Context, result reconcile.Result) (ReconcileOutcome, error)

	// WriteSummaries replaces the period's billing detail records:
	// delete-and-confirm, create-and-verify, then update each record with
	// its resolved bucket values, and finally mass-activate dormant
	// matters that showed activity.
	WriteSummaries(ctx context.Context, dateKey string, summaries []aggregatedomain.MatterSummary, overrides map[int]overridedomain.OverrideSet) (SummaryOutcome, error)
}
