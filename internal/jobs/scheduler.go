// Package jobs runs the recurring maintenance work: the daily incremental
// refresh and the trimester-boundary full reset share one cron slot and are
// told apart by a date predicate, so at most one of them fires per day.
package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/campuspulse/engage/pkg/logger"
)

// Job is one schedulable unit of work. When decides, for a given day,
// whether this job owns the slot.
type Job struct {
	Name string
	When func(now time.Time) bool
	Run  func(ctx context.Context) error
}

// Scheduler dispatches registered jobs on a shared cron expression.
type Scheduler struct {
	cron   *cron.Cron
	jobs   []Job
	spec   string
	now    func() time.Time
	logger logger.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the scheduler logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a scheduler that evaluates the given jobs on the cron spec.
// An overrunning dispatch skips the next tick instead of stacking.
func New(spec string, jobs []Job, opts ...Option) *Scheduler {
	s := &Scheduler{
		jobs:   jobs,
		spec:   spec,
		now:    time.Now,
		logger: logger.Get(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
		cron.Recover(cron.DiscardLogger),
	))
	return s
}

// Start registers the dispatch entry and begins the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.Dispatch(ctx) }); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info(ctx, "scheduler started", logger.String("spec", s.spec))
	return nil
}

// Stop halts the cron loop and waits for a running dispatch to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Dispatch runs every job whose predicate claims the current date. Each
// run gets a unique id so its log lines can be correlated.
func (s *Scheduler) Dispatch(ctx context.Context) {
	now := s.now()
	for _, job := range s.jobs {
		if job.When != nil && !job.When(now) {
			continue
		}
		runID := uuid.NewString()
		start := time.Now()
		s.logger.Info(ctx, "job starting",
			logger.String("job", job.Name),
			logger.String("run_id", runID),
		)
		if err := job.Run(ctx); err != nil {
			s.logger.Error(ctx, "job failed",
				logger.String("job", job.Name),
				logger.String("run_id", runID),
				logger.Duration("took", time.Since(start)),
				logger.Error(err),
			)
			continue
		}
		s.logger.Info(ctx, "job finished",
			logger.String("job", job.Name),
			logger.String("run_id", runID),
			logger.Duration("took", time.Since(start)),
		)
	}
}
