package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrMetadataUnresolved = errors.New("usage metadata metrics unresolved")
	ErrSubmitRejected     = errors.New("usage report submit rejected")
	ErrPollTimeout        = errors.New("usage report polling timed out")
	ErrDownloadFailed     = errors.New("usage report download failed")
	ErrMissingColumns     = errors.New("usage report missing required columns")
)

// UsageRecord is one workspace's metered values for a reporting period,
// parsed from the downloaded CSV. Produced once per run, never persisted raw.
type UsageRecord struct {
	WorkspaceArtifactID       int
	MatterArtifactID          int
	WorkspaceName             string
	PublishedDocumentSizeGB   float64
	LinkedTotalFileSizeGB     float64
	PeakWorkspaceHostedSizeGB float64
	TranslationUnits          float64
	AIReviewUnits             float64
	AIPrivilegeUnits          float64
	WorkspaceType             string
	CreatedOn                 *time.Time
}

// LineError records one CSV data line that failed to parse. Line numbers are
// 1-based over the whole payload, so the first data line is 2.
type LineError struct {
	Line int
	Raw  string
	Err  error
}

// FetchResult carries the parsed records together with the per-line failures
// that were skipped. Line errors never abort the batch.
type FetchResult struct {
	Records    []UsageRecord
	LineErrors []LineError
}

type Client interface {
	// FetchUsage drives the full submit/poll/download/parse protocol for
	// one reporting period.
	FetchUsage(ctx context.Context, from, to time.Time) (FetchResult, error)
}
