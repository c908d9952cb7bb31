package core

// scheduler.go provides background maintenance for the service.
//
// Job state is kept in memory so that an interrupted import can be resumed
// with its JobID. The janitor runs periodically and forgets jobs that have
// been idle for longer than the retention window.
//
// The janitor is long-running and context-aware for graceful shutdown.

import (
	"context"
	"log/slog"
	"time"
)

// JanitorConfig holds configuration for the job janitor.
type JanitorConfig struct {
	Retention     time.Duration // How long an idle job stays resumable (default: 24h)
	CheckInterval time.Duration // How often to run (default: 1h)
}

func (c JanitorConfig) withDefaults() JanitorConfig {
	if c.Retention <= 0 {
		c.Retention = 24 * time.Hour
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = time.Hour
	}
	return c
}

// StartJobJanitor periodically forgets idle jobs.
// It runs immediately on start, then every CheckInterval, until ctx is cancelled.
func (s *Service) StartJobJanitor(ctx context.Context, cfg JanitorConfig) {
	cfg = cfg.withDefaults()
	slog.Info("job janitor started",
		"retention", cfg.Retention.String(),
		"interval", cfg.CheckInterval.String(),
	)

	s.runJanitor(cfg)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("job janitor stopped")
			return
		case <-ticker.C:
			s.runJanitor(cfg)
		}
	}
}

// runJanitor performs one cleanup cycle.
func (s *Service) runJanitor(cfg JanitorConfig) {
	start := time.Now()
	n := s.forgetJobsBefore(start.Add(-cfg.Retention))
	if n > 0 {
		slog.Info("forgot idle import jobs",
			"jobs", n,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
