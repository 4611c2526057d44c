package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config carries the constant labels stamped on every scheduler metric.
type Config struct {
	ServiceName string
	Environment string
}

// SchedulerMetrics captures agent job health signals.
type SchedulerMetrics struct {
	jobRuns          *prometheus.CounterVec
	jobErrors        *prometheus.CounterVec
	jobTimeouts      *prometheus.CounterVec
	jobDuration      *prometheus.HistogramVec
	jobPanics        *prometheus.CounterVec
	runLoopLag       prometheus.Histogram
	pollAttempts     *prometheus.CounterVec
	notifierFailures prometheus.Counter
}

var (
	schedulerMetricsOnce sync.Once
	schedulerMetrics     *SchedulerMetrics
)

// Scheduler returns the singleton scheduler metrics registry.
func Scheduler() *SchedulerMetrics {
	return SchedulerWithConfig(Config{})
}

// SchedulerWithConfig returns the singleton using config labels. The first
// caller wins; later configs are ignored.
func SchedulerWithConfig(cfg Config) *SchedulerMetrics {
	schedulerMetricsOnce.Do(func() {
		schedulerMetrics = newSchedulerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return schedulerMetrics
}

// ResetSchedulerMetricsForTest resets the singleton for tests.
func ResetSchedulerMetricsForTest() {
	schedulerMetricsOnce = sync.Once{}
	schedulerMetrics = nil
}

func newSchedulerMetrics(registerer prometheus.Registerer, cfg Config) *SchedulerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "concord"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service":     serviceName,
		"environment": environment,
	}

	m := &SchedulerMetrics{
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "concord_scheduler_job_runs_total",
			Help:        "Job executions started by the scheduler.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "concord_scheduler_job_errors_total",
			Help:        "Job executions that finished with an error.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "concord_scheduler_job_timeouts_total",
			Help:        "Job executions cut short by their deadline.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "concord_scheduler_job_duration_seconds",
			Help:        "Wall-clock job duration.",
			Buckets:     prometheus.ExponentialBuckets(0.1, 2, 12),
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobPanics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "concord_scheduler_job_panics_total",
			Help:        "Job executions that panicked and were recovered.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		runLoopLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "concord_scheduler_run_loop_lag_seconds",
			Help:        "How far behind schedule a run loop iteration started.",
			Buckets:     prometheus.ExponentialBuckets(0.05, 2, 12),
			ConstLabels: constLabels,
		}),
		pollAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "concord_usage_report_poll_attempts_total",
			Help:        "Status polls issued against the usage report service.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		notifierFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "concord_notifier_failures_total",
			Help:        "Best-effort notification sends that failed.",
			ConstLabels: constLabels,
		}),
	}

	registerer.MustRegister(
		m.jobRuns,
		m.jobErrors,
		m.jobTimeouts,
		m.jobDuration,
		m.jobPanics,
		m.runLoopLag,
		m.pollAttempts,
		m.notifierFailures,
	)
	return m
}

func (m *SchedulerMetrics) IncJobRun(job string) {
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) IncJobError(job string) {
	m.jobErrors.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) IncJobTimeout(job string) {
	m.jobTimeouts.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) IncJobPanic(job string) {
	m.jobPanics.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) ObserveJobDuration(job string, d time.Duration) {
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *SchedulerMetrics) ObserveRunLoopLag(lag time.Duration) {
	m.runLoopLag.Observe(lag.Seconds())
}

func (m *SchedulerMetrics) IncPollAttempt(outcome string) {
	m.pollAttempts.WithLabelValues(outcome).Inc()
}

func (m *SchedulerMetrics) IncNotifierFailure() {
	m.notifierFailures.Inc()
}
