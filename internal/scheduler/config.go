package scheduler

import (
	"time"
)

// Config controls scheduler cadence and batch sizes.
type Config struct {
	RunInterval     time.Duration
	BatchSize       int
	HistoryRetained time.Duration
	EnabledJobs     []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:     time.Minute,
		BatchSize:       100,
		HistoryRetained: 3 * 30 * 24 * time.Hour,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.HistoryRetained <= 0 {
		c.HistoryRetained = defaults.HistoryRetained
	}
	return c
}
