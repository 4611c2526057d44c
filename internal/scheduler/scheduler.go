package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	aggregatedomain "github.com/smallbiznis/concord/internal/aggregate/domain"
	"github.com/smallbiznis/concord/internal/clock"
	"github.com/smallbiznis/concord/internal/config"
	extractdomain "github.com/smallbiznis/concord/internal/extract/domain"
	jobcontroldomain "github.com/smallbiznis/concord/internal/jobcontrol/domain"
	"github.com/smallbiznis/concord/internal/notify"
	obsmetrics "github.com/smallbiznis/concord/internal/observability/metrics"
	overridedomain "github.com/smallbiznis/concord/internal/override/domain"
	persistdomain "github.com/smallbiznis/concord/internal/persist/domain"
	"github.com/smallbiznis/concord/internal/reconcile"
	usagedomain "github.com/smallbiznis/concord/internal/usagereport/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Job ids, one row each in job_controls.
const (
	JobReconcileClients    = "reconcile_clients"
	JobReconcileMatters    = "reconcile_matters"
	JobReconcileWorkspaces = "reconcile_workspaces"
	JobReconcileUsers      = "reconcile_users"
	JobUsageBilling        = "usage_billing"
)

var ErrInvalidConfig = errors.New("scheduler: missing dependency")

// errJobTimedOut marks a run cut short by the job timeout or shutdown. The
// sweep continues past it, but the job must not be stamped as executed so
// the next eligible window picks the period up again.
var errJobTimedOut = errors.New("scheduler: job timed out")

type Params struct {
	fx.In

	Log         *zap.Logger
	Clock       clock.Clock
	AppConfig   config.Config
	Config      Config `optional:"true"`
	JobControl  jobcontroldomain.Service
	Extractor   extractdomain.Extractor
	UsageClient usagedomain.Client
	Aggregator  aggregatedomain.Service
	Overrides   overridedomain.Service
	Persist     persistdomain.Service
	Notifier    notify.Notifier
	GenID       *snowflake.Node `optional:"true"`
}

type Scheduler struct {
	log   *zap.Logger
	cfg   Config
	clock clock.Clock
	genID *snowflake.Node

	jobControl  jobcontroldomain.Service
	extractor   extractdomain.Extractor
	usageClient usagedomain.Client
	aggregator  aggregatedomain.Service
	overrides   overridedomain.Service
	persist     persistdomain.Service
	notifier    notify.Notifier

	reconcileOpts reconcile.Options
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.JobControl == nil || p.Extractor == nil ||
		p.UsageClient == nil || p.Aggregator == nil || p.Overrides == nil ||
		p.Persist == nil || p.Notifier == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:         p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:         p.Config.withDefaults(),
		clock:       p.Clock,
		genID:       p.GenID,
		jobControl:  p.JobControl,
		extractor:   p.Extractor,
		usageClient: p.UsageClient,
		aggregator:  p.Aggregator,
		overrides:   p.Overrides,
		persist:     p.Persist,
		notifier:    p.Notifier,
		reconcileOpts: reconcile.Options{
			ClientNumberExceptions: p.AppConfig.Reconcile.ClientNumberExceptions,
		},
	}, nil
}

// RunOnce evaluates every job's control row and runs the due ones, one at a
// time. A failing job never stops the jobs after it.
func (s *Scheduler) RunOnce(parent context.Context) error {
	jobs := []struct {
		ID  string
		Run func(context.Context) error
	}{
		{JobReconcileClients, func(ctx context.Context) error {
			return s.reconcileJob(ctx, extractdomain.KindClient)
		}},
		{JobReconcileMatters, func(ctx context.Context) error {
			return s.reconcileJob(ctx, extractdomain.KindMatter)
		}},
		{JobReconcileWorkspaces, func(ctx context.Context) error {
			return s.reconcileJob(ctx, extractdomain.KindWorkspace)
		}},
		{JobReconcileUsers, func(ctx context.Context) error {
			return s.reconcileJob(ctx, extractdomain.KindUser)
		}},
		{JobUsageBilling, s.usageBillingJob},
	}

	var err error
	for _, job := range jobs {
		if !s.isJobEnabled(job.ID) {
			continue
		}
		err = errors.Join(err, s.dispatch(parent, job.ID, job.Run))
	}
	return err
}

// dispatch gates one job through its control row, stamps the bookkeeping
// timestamps, and isolates panics so one broken job cannot take down the
// whole sweep.
func (s *Scheduler) dispatch(parent context.Context, jobID string, fn func(context.Context) error) error {
	now := s.clock.Now()

	jc, err := s.jobControl.Get(parent, jobID)
	if err != nil {
		if errors.Is(err, jobcontroldomain.ErrNotFound) {
			s.log.Warn("job has no control row, skipping", zap.String("job", jobID))
			return nil
		}
		return fmt.Errorf("%s: load control: %w", jobID, err)
	}

	if err := s.jobControl.MarkChecked(parent, jobID, now); err != nil {
		s.log.Warn("failed to stamp last check", zap.String("job", jobID), zap.Error(err))
	}
	if !jobcontroldomain.ShouldRun(jc, now) {
		return nil
	}

	if err := s.runJob(parent, jobID, fn); err != nil {
		if errors.Is(err, errJobTimedOut) {
			return nil
		}
		return err
	}
	if err := s.jobControl.MarkExecuted(parent, jobID, now); err != nil {
		s.log.Warn("failed to stamp last execute", zap.String("job", jobID), zap.Error(err))
	}
	return nil
}

func (s *Scheduler) runJob(parent context.Context, jobID string, fn func(context.Context) error) (err error) {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	ctx, span := otel.Tracer("concord/scheduler").Start(ctx, "job "+jobID,
		trace.WithAttributes(attribute.String("job.id", jobID)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "job failed")
		}
		span.End()
	}()

	log := s.log.With(zap.String("job", jobID))
	if s.genID != nil {
		log = log.With(zap.Int64("run_id", int64(s.genID.Generate())))
	}
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(jobID)
	log.Info("job started")

	defer func() {
		schedMetrics.ObserveJobDuration(jobID, time.Since(start))
		if r := recover(); r != nil {
			schedMetrics.IncJobPanic(jobID)
			err = fmt.Errorf("%s: panic: %v", jobID, r)
			log.Error("job panicked", zap.Any("panic", r))
		}
	}()

	err = fn(ctx)
	if err == nil {
		log.Info("job finished")
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		schedMetrics.IncJobTimeout(jobID)
		log.Warn("job timed out", zap.Duration("timeout", s.cfg.JobTimeout), zap.Error(err))
		return errJobTimedOut
	}
	schedMetrics.IncJobError(jobID)
	log.Error("job failed", zap.Error(err))
	return fmt.Errorf("%s: %w", jobID, err)
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		if lag := time.Since(nextRun); lag > 0 {
			schedMetrics.ObserveRunLoopLag(lag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobID string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobID) {
			return true
		}
	}
	return false
}

// reconcileJob diffs one entity kind across the two stores, reports every
// classified group, and writes the resulting creates and updates.
func (s *Scheduler) reconcileJob(ctx context.Context, kind extractdomain.EntityKind) error {
	source, err := s.extractor.Source(ctx)
	if err != nil {
		return err
	}
	billing, err := s.extractor.Billing(ctx)
	if err != nil {
		return err
	}

	result := reconcile.Classify(kind, source.ByKind(kind), billing.ByKind(kind), s.reconcileOpts)

	outcome, applyErr := s.persist.ApplyReconciliation(ctx, result)

	report := reconcile.BuildReport(result)
	report.AddSection(failureTitle("Create failures", len(outcome.CreateFailures)), outcome.CreateFailures)
	report.AddSection(failureTitle("Update failures", len(outcome.UpdateFailures)), outcome.UpdateFailures)
	s.send(ctx, report)

	s.log.Info("reconciliation pass complete",
		zap.String("kind", string(kind)),
		zap.Int("invalid", len(result.Invalid)),
		zap.Int("duplicates", len(result.Duplicates)),
		zap.Int("new", len(result.New)),
		zap.Int("unchanged", len(result.Unchanged)),
		zap.Int("orphaned", len(result.Orphaned)),
		zap.Int("created", outcome.Created),
		zap.Int("updated", outcome.Updated))
	return applyErr
}

// usageBillingJob drives the monthly usage pipeline: fetch the external
// report, aggregate with local page counts, resolve overrides, and rewrite
// the period's billing detail records.
func (s *Scheduler) usageBillingJob(ctx context.Context) error {
	now := s.clock.Now()
	dateKey := now.Format("200601")
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	fetch, err := s.usageClient.FetchUsage(ctx, from, now)
	if err != nil {
		s.send(ctx, notify.Report{
			Subject:  "Usage billing failed",
			Sections: []notify.Section{{Title: "Report fetch", Lines: []string{err.Error()}}},
		})
		return err
	}
	if len(fetch.LineErrors) > 0 {
		s.reportLineErrors(ctx, fetch.LineErrors)
	}
	if len(fetch.Records) == 0 {
		s.send(ctx, notify.Report{
			Subject: fmt.Sprintf("Usage billing %s", dateKey),
			Sections: []notify.Section{{
				Title: "No usage reported",
				Lines: []string{"report contained no workspace rows; billing pass skipped"},
			}},
		})
		s.log.Info("usage report empty, skipping billing pass", zap.String("date_key", dateKey))
		return nil
	}

	pages, err := s.extractor.MatterPageCounts(ctx, dateKey)
	if err != nil {
		return err
	}

	summaries, err := s.aggregator.Aggregate(ctx, dateKey, fetch.Records, pages)
	if err != nil {
		return err
	}

	overrides, err := s.overrides.Overrides(ctx)
	if err != nil {
		return err
	}

	outcome, err := s.persist.WriteSummaries(ctx, dateKey, summaries, overrides)
	if err != nil {
		return err
	}
	s.reportSummaryOutcome(ctx, outcome)
	return nil
}

func (s *Scheduler) reportLineErrors(ctx context.Context, lineErrors []usagedomain.LineError) {
	lines := make([]string, 0, len(lineErrors))
	for _, le := range lineErrors {
		lines = append(lines, fmt.Sprintf("line %d: %v: %s", le.Line, le.Err, le.Raw))
	}
	s.send(ctx, notify.Report{
		Subject:  "Usage report parse errors",
		Sections: []notify.Section{{Title: failureTitle("Skipped lines", len(lines)), Lines: lines}},
	})
}

func (s *Scheduler) reportSummaryOutcome(ctx context.Context, outcome persistdomain.SummaryOutcome) {
	report := notify.Report{Subject: fmt.Sprintf("Usage billing %s", outcome.DateKey)}
	report.AddSection(failureTitle("Duplicate detail rows", len(outcome.DuplicateKeys)), outcome.DuplicateKeys)
	report.AddSection(failureTitle("Create failures", len(outcome.CreateFailures)), outcome.CreateFailures)
	report.AddSection(failureTitle("Update failures", len(outcome.UpdateFailures)), outcome.UpdateFailures)
	report.AddSection(failureTitle("Activation failures", len(outcome.ActivationFailures)), outcome.ActivationFailures)
	if !outcome.DeleteConfirmed {
		report.AddSection("Deletion not confirmed", []string{
			fmt.Sprintf("%d deletes issued for %s were still visible after confirmation polling", outcome.Deleted, outcome.DateKey),
		})
	}
	if !outcome.CreateConfirmed {
		report.AddSection("Creation not confirmed", []string{
			fmt.Sprintf("%d creates for %s were not all visible after verification polling", outcome.Created, outcome.DateKey),
		})
	}
	s.send(ctx, report)

	s.log.Info("usage billing pass complete",
		zap.String("date_key", outcome.DateKey),
		zap.Int("deleted", outcome.Deleted),
		zap.Int("created", outcome.Created),
		zap.Int("updated", outcome.Updated),
		zap.Int("activated", outcome.Activated))
}

// send is best-effort: a notifier failure is counted and logged, never
// surfaced as a job failure.
func (s *Scheduler) send(ctx context.Context, report notify.Report) {
	if report.Empty() {
		return
	}
	if err := s.notifier.Send(ctx, report); err != nil {
		obsmetrics.Scheduler().IncNotifierFailure()
		s.log.Warn("notification failed", zap.String("subject", report.Subject), zap.Error(err))
	}
}

func failureTitle(prefix string, count int) string {
	return fmt.Sprintf("%s (%d)", prefix, count)
}
