// Package scheduler wires the reconciliation sweeps onto a clock.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/paperpath/engine/internal/worker"
)

// Scheduler runs the reconciler on a fixed schedule: the integrity sweep
// nightly and counter cleanup weekly.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	reconciler *worker.Reconciler
	logger     *slog.Logger
}

// New creates a new scheduler instance.
func New(reconciler *worker.Reconciler, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		scheduler:  gocron.NewScheduler(time.UTC),
		reconciler: reconciler,
		logger:     logger.With("component", "scheduler"),
	}
}

// Start registers the jobs and begins running them in the background.
func (s *Scheduler) Start() {
	// Nightly ledger + badge sweep, off-peak.
	if _, err := s.scheduler.Every(1).Day().At("03:15").Do(s.runSweep); err != nil {
		s.logger.Error("failed to schedule reconciliation sweep", "error", err)
	}

	// Weekly stale-counter cleanup.
	if _, err := s.scheduler.Every(1).Week().Monday().At("04:00").Do(s.runCleanup); err != nil {
		s.logger.Error("failed to schedule counter cleanup", "error", err)
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler started")
}

// Stop terminates all scheduled jobs.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runSweep() {
	if err := s.reconciler.Sweep(context.Background()); err != nil {
		s.logger.Error("reconciliation sweep failed", "error", err)
	}
}

func (s *Scheduler) runCleanup() {
	if err := s.reconciler.CleanupCounters(context.Background()); err != nil {
		s.logger.Error("counter cleanup failed", "error", err)
	}
}
