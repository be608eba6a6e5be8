// Package maintenance runs periodic housekeeping for the calendar service.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one housekeeping task.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// CachePurger drops expired cache entries.
type CachePurger interface {
	PurgeExpiredCache() int
}

// Optimizer refreshes storage statistics.
type Optimizer interface {
	Optimize(ctx context.Context) error
}

// CachePurgeJob removes expired expansion cache entries.
func CachePurgeJob(purger CachePurger, logger *slog.Logger) Job {
	return Job{
		Name: "purge_expansion_cache",
		Run: func(ctx context.Context) error {
			removed := purger.PurgeExpiredCache()
			logger.DebugContext(ctx, "expansion cache purged", "removed", removed)
			return nil
		},
	}
}

// OptimizeJob asks the storage to refresh its query planner statistics.
func OptimizeJob(optimizer Optimizer) Job {
	return Job{
		Name: "optimize_storage",
		Run:  optimizer.Optimize,
	}
}

// Scheduler runs jobs on a cron schedule. Runs never overlap.
type Scheduler struct {
	cron    *cron.Cron
	jobs    []Job
	timeout time.Duration
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler validates spec, a standard five field cron expression or
// descriptor such as @hourly, and registers jobs to run on it. Each run is
// bounded by timeout when positive.
func NewScheduler(spec string, timeout time.Duration, logger *slog.Logger, jobs ...Job) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "maintenance")

	cronLogger := slogCronLogger{logger: logger}
	s := &Scheduler{
		cron: cron.New(cron.WithLogger(cronLogger), cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		)),
		jobs:    jobs,
		timeout: timeout,
		logger:  logger,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if _, err := s.cron.AddFunc(spec, func() { _ = s.RunOnce(s.ctx) }); err != nil {
		return nil, fmt.Errorf("parse maintenance schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.logger.Info("maintenance scheduler started", "jobs", len(s.jobs))
	s.cron.Start()
}

// Stop prevents further runs, cancels a run in progress and waits for it to
// finish or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce runs every job in order and returns their joined errors. A failing
// job does not prevent the others from running.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var errs []error
	for _, job := range s.jobs {
		if err := s.run(ctx, job); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", job.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Scheduler) run(ctx context.Context, job Job) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	logger := s.logger.With("job", job.Name)
	start := time.Now()
	if err := job.Run(ctx); err != nil {
		logger.ErrorContext(ctx, "maintenance job failed", "error", err, "duration", time.Since(start))
		return err
	}
	logger.DebugContext(ctx, "maintenance job completed", "duration", time.Since(start))
	return nil
}

// slogCronLogger adapts slog to the cron.Logger interface.
type slogCronLogger struct {
	logger *slog.Logger
}

func (l slogCronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l slogCronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
