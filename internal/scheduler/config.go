package scheduler

import (
	"time"

	"github.com/smallbiznis/creatorpay/internal/config"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	RunInterval     time.Duration
	BatchSize       int
	EnabledJobs     []string
	EvidenceTimeout time.Duration
	ExpiryTimeout   time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval:     time.Hour,
		BatchSize:       100,
		EvidenceTimeout: 5 * time.Minute,
		ExpiryTimeout:   time.Minute,
	}
}

// ProvideConfig maps the process configuration onto scheduler settings.
func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval: cfg.Scheduler.RunInterval,
		BatchSize:   cfg.Scheduler.BatchSize,
		EnabledJobs: cfg.Scheduler.EnabledJobs,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.EvidenceTimeout <= 0 {
		c.EvidenceTimeout = defaults.EvidenceTimeout
	}
	if c.ExpiryTimeout <= 0 {
		c.ExpiryTimeout = defaults.ExpiryTimeout
	}
	return c
}
