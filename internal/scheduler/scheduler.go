// Package scheduler runs a job on a cron schedule without overlapping runs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled execution.
type Job func(ctx context.Context) error

// Scheduler fires Job on a cron schedule. A tick that arrives while the
// previous run is still going is skipped.
type Scheduler struct {
	cron    *cron.Cron
	job     Job
	logger  *slog.Logger
	running atomic.Bool
	wg      sync.WaitGroup

	ctx context.Context
}

// New parses the standard five-field cron spec (descriptors such as
// "@hourly" and "@every 6h" are also accepted).
func New(spec string, job Job, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(),
		job:    job,
		logger: logger,
		ctx:    context.Background(),
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", spec, err)
	}
	return s, nil
}

// Run starts the schedule and blocks until ctx is done, then waits for an
// in-flight run to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx = ctx
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.logger.Info("scheduler started", "next_run", e.Next)
	}

	<-ctx.Done()

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
	return nil
}

// tick runs the job unless a previous run is still in progress.
func (s *Scheduler) tick() {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("previous run still in progress, skipping scheduled run")
		return
	}
	s.wg.Add(1)
	defer func() {
		s.running.Store(false)
		s.wg.Done()
	}()

	s.logger.Info("scheduled run starting")
	if err := s.job(s.ctx); err != nil {
		s.logger.Error("scheduled run failed", "error", err)
		return
	}
	s.logger.Info("scheduled run finished")
}
