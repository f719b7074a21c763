// Package scheduler runs periodic storage cleanup sweeps against the
// registered adapters, built on the same go-co-op/gocron scheduler the
// rest of this codebase uses for its other recurring background jobs.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/figma-chunkstore/chunkstore/internal/storage"
)

// Config controls when cleanup runs.
type Config struct {
	CleanupInterval time.Duration
	CleanupOnStart  bool
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{CleanupInterval: time.Hour, CleanupOnStart: true}
}

// CleanupScheduler periodically invokes Manager.CleanupAll. It never
// keeps a process alive by itself — Start runs its own gocron loop
// asynchronously and Stop ends it.
type CleanupScheduler struct {
	cfg       Config
	manager   *storage.Manager
	logger    *slog.Logger
	scheduler *gocron.Scheduler
	cancel    context.CancelFunc
}

// NewCleanupScheduler returns a CleanupScheduler bound to manager.
func NewCleanupScheduler(cfg Config, manager *storage.Manager, logger *slog.Logger) *CleanupScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	return &CleanupScheduler{cfg: cfg, manager: manager, logger: logger, scheduler: s}
}

// Start runs an immediate cleanup (if configured) and schedules the
// recurring sweep, then starts the underlying gocron loop
// asynchronously.
func (s *CleanupScheduler) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if s.cfg.CleanupOnStart {
		if err := s.manager.CleanupAll(runCtx); err != nil {
			s.logger.Warn("scheduler: initial cleanup failed", "error", err)
		}
	}

	_, err := s.scheduler.Every(s.cfg.CleanupInterval).Tag("chunk-cleanup").Do(func() {
		if err := s.manager.CleanupAll(runCtx); err != nil {
			s.logger.Warn("scheduler: periodic cleanup failed", "error", err)
		}
	})
	if err != nil {
		cancel()
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop cancels the cleanup context and stops the gocron loop.
func (s *CleanupScheduler) Stop(ctx context.Context) {
	s.scheduler.Stop()
	if s.cancel != nil {
		s.cancel()
	}
}
