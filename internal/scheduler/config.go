package scheduler

import "time"

// Config controls the run loop and per-job deadlines.
type Config struct {
	RunInterval time.Duration
	JobTimeout  time.Duration
	// EnabledJobs restricts which jobs this instance runs; empty means all.
	EnabledJobs []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Minute,
		JobTimeout:  30 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}
