package domain

import (
	"context"
	"errors"
)

// Extractor produces read-only snapshots from the two stores. Reads are
// prerequisite inputs: any failure propagates to the caller unwrapped.
type Extractor interface {
	Source(ctx context.Context) (Snapshot, error)
	Billing(ctx context.Context) (Snapshot, error)
	MatterPageCounts(ctx context.Context, dateKey string) ([]PageCount, error)
}

var (
	ErrSourceRead  = errors.New("extract: source store read failed")
	ErrBillingRead = errors.New("extract: billing store read failed")
)
