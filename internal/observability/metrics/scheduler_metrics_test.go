package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestJobCountersIncrement(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{
		ServiceName: "concord",
		Environment: "test",
	})

	metrics.IncJobRun("reconcile_clients")
	metrics.IncJobRun("reconcile_clients")
	metrics.IncJobError("reconcile_clients")
	metrics.IncJobPanic("usage_billing")
	metrics.ObserveJobDuration("reconcile_clients", 2*time.Second)

	if got := testutil.ToFloat64(metrics.jobRuns.WithLabelValues("reconcile_clients")); got != 2 {
		t.Fatalf("expected 2 runs, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.jobErrors.WithLabelValues("reconcile_clients")); got != 1 {
		t.Fatalf("expected 1 error, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.jobPanics.WithLabelValues("usage_billing")); got != 1 {
		t.Fatalf("expected 1 panic, got %v", got)
	}
}

func TestNotifierFailureCounter(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{})

	metrics.IncNotifierFailure()
	metrics.IncPollAttempt("pending")
	metrics.IncPollAttempt("completed")

	if got := testutil.ToFloat64(metrics.notifierFailures); got != 1 {
		t.Fatalf("expected 1 notifier failure, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.pollAttempts.WithLabelValues("pending")); got != 1 {
		t.Fatalf("expected 1 pending poll, got %v", got)
	}
}

func TestJobDurationHistogramObserves(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{ServiceName: "concord", Environment: "test"})

	metrics.ObserveJobDuration("usage_billing", 3*time.Second)
	metrics.ObserveJobDuration("usage_billing", 5*time.Second)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var hist *dto.Histogram
	for _, mf := range families {
		if mf.GetName() == "concord_scheduler_job_duration_seconds" {
			hist = mf.GetMetric()[0].GetHistogram()
		}
	}
	if hist == nil {
		t.Fatal("job duration histogram not registered")
	}
	if got := hist.GetSampleCount(); got != 2 {
		t.Fatalf("expected 2 observations, got %d", got)
	}
	if got := hist.GetSampleSum(); got != 8 {
		t.Fatalf("expected sum of 8s, got %v", got)
	}
}
