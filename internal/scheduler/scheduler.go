// Package scheduler runs the pipeline on a daily schedule. It wraps gocron;
// the pipeline binary uses it when RUN_AT is configured and otherwise runs
// exactly once.
package scheduler

import (
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// Scheduler triggers the provided job once per day at a fixed UTC time.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runAt     string
	job       func()
	logger    *slog.Logger
}

// New creates a Scheduler. runAt is an "HH:MM" UTC wall-clock time.
func New(runAt string, job func(), logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		runAt:     runAt,
		job:       job,
		logger:    logger,
	}
}

// Start registers the daily job and starts the scheduler in the background.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(1).Day().At(s.runAt).Do(func() {
		s.logger.Info("scheduled pipeline run starting", "run_at", s.runAt)
		s.job()
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler started", "run_at", s.runAt)
	return nil
}

// Stop stops the scheduler and cancels future runs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
