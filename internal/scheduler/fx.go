package scheduler

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/fx"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(runScheduler),
)

// ProvideConfig reads the run-loop knobs from the environment.
func ProvideConfig() Config {
	cfg := DefaultConfig()
	if raw := strings.TrimSpace(os.Getenv("SCHEDULER_RUN_INTERVAL")); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			cfg.RunInterval = parsed
		}
	}
	if raw := strings.TrimSpace(os.Getenv("SCHEDULER_JOB_TIMEOUT")); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			cfg.JobTimeout = parsed
		}
	}
	if raw := strings.TrimSpace(os.Getenv("SCHEDULER_ENABLED_JOBS")); raw != "" {
		for _, job := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(job); trimmed != "" {
				cfg.EnabledJobs = append(cfg.EnabledJobs, trimmed)
			}
		}
	}
	return cfg.withDefaults()
}

func runScheduler(lc fx.Lifecycle, sched *Scheduler) {
	if disabled, _ := strconv.ParseBool(os.Getenv("SCHEDULER_DISABLED")); disabled {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go sched.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
