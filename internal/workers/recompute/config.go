package recompute

import (
	"time"

	"match-engine/internal/common/config"
)

type Config struct {
	BatchSize       int
	TaskTimeout     time.Duration
	MaxAttempts     int
	Interval        time.Duration
	CleanupInterval time.Duration
	SweepInterval   time.Duration // 0 disables the full sweep
	Retention       time.Duration
	StaleAfter      time.Duration
	AuditEmptyRuns  bool
}

func DefaultConfig() *Config {
	return &Config{
		BatchSize:       10,
		TaskTimeout:     30 * time.Second,
		MaxAttempts:     3,
		Interval:        30 * time.Second,
		CleanupInterval: time.Hour,
		SweepInterval:   24 * time.Hour,
		Retention:       7 * 24 * time.Hour,
		StaleAfter:      10 * time.Minute,
	}
}

// LoadConfig reads the processor section and the recompute-processor worker
// entry of the service configuration.
func LoadConfig(cfg *config.Config) *Config {
	worker := config.GetWorkerConfig(cfg, config.RecomputeWorker)
	c := DefaultConfig()
	if worker.MaxJobsActive > 0 {
		c.BatchSize = worker.MaxJobsActive
	}
	if worker.Timeout > 0 {
		c.TaskTimeout = config.GetDuration(worker.Timeout)
	}
	if worker.MaxRetries > 0 {
		c.MaxAttempts = worker.MaxRetries
	}
	p := cfg.Processor
	if p.Interval > 0 {
		c.Interval = config.GetDuration(p.Interval)
	}
	if p.CleanupInterval > 0 {
		c.CleanupInterval = config.GetDuration(p.CleanupInterval)
	}
	c.SweepInterval = config.GetDuration(p.SweepInterval)
	if p.Retention > 0 {
		c.Retention = config.GetDuration(p.Retention)
	}
	if p.StaleAfter > 0 {
		c.StaleAfter = config.GetDuration(p.StaleAfter)
	}
	c.AuditEmptyRuns = p.AuditEmptyRuns
	return c
}
