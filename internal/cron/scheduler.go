// Package cron runs periodic housekeeping jobs, the way the rest of the
// agent runtime schedules background work: registered by cron
// expression, executed by robfig/cron/v3, logged with slog.
package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Job is one registered periodic function.
type Job struct {
	ID         string
	Expression string
	Run        func(ctx context.Context) error
}

// Scheduler wraps a robfig/cron/v3 runner, logging each job's outcome
// and tracking entry IDs so jobs can be stopped individually.
type Scheduler struct {
	runner *cron.Cron
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// NewScheduler creates a scheduler. logger may be nil, in which case
// slog.Default() is used.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		runner:  cron.New(cron.WithSeconds()),
		logger:  logger.With("component", "cron"),
		entries: make(map[string]cron.EntryID),
	}
}

// Register schedules job.Run to fire on job.Expression, a standard
// (optionally seconds-prefixed) cron expression. Re-registering the
// same job ID replaces the previous schedule.
func (s *Scheduler) Register(job Job) error {
	if job.ID == "" {
		return fmt.Errorf("cron job id is required")
	}
	if job.Run == nil {
		return fmt.Errorf("cron job %q has no run function", job.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[job.ID]; ok {
		s.runner.Remove(existing)
		delete(s.entries, job.ID)
	}

	entryID, err := s.runner.AddFunc(job.Expression, func() {
		ctx := context.Background()
		if err := job.Run(ctx); err != nil {
			s.logger.Error("cron job failed", "job_id", job.ID, "error", err)
			return
		}
		s.logger.Debug("cron job completed", "job_id", job.ID)
	})
	if err != nil {
		return fmt.Errorf("schedule cron job %q: %w", job.ID, err)
	}
	s.entries[job.ID] = entryID
	return nil
}

// Unregister removes a previously registered job, if any.
func (s *Scheduler) Unregister(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.entries[id]; ok {
		s.runner.Remove(entryID)
		delete(s.entries, id)
	}
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.runner.Start()
}

// Stop halts the scheduler and waits for any in-flight job to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.runner.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
