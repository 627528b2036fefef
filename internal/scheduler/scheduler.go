// Package scheduler repeats a campaign on a cron schedule.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/byanjiong/mailmerge/internal/logger"
)

// Job is one scheduled run. It receives the scheduler's context.
type Job func(ctx context.Context)

// Scheduler runs jobs on standard five-field cron specs or descriptors such
// as "@daily" and "@every 6h". A job that is still running when its next
// activation comes is skipped for that activation.
type Scheduler struct {
	cron *cron.Cron
	log  *logger.Logger
}

// New creates a Scheduler.
func New(log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent("scheduler")
	cl := cronLogger{log: log}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)),
		),
		log: log,
	}
}

// Add registers job under spec.
func (s *Scheduler) Add(ctx context.Context, spec string, job Job) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(spec, func() { job(ctx) })
	if err != nil {
		return 0, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return id, nil
}

// Run starts the scheduler and blocks until ctx is done, then waits for
// running jobs to return.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.log.Info().Int("entry", int(e.ID)).Time("next", e.Next).Msg("schedule started")
	}

	<-ctx.Done()

	s.log.Info().Msg("stopping scheduler")
	<-s.cron.Stop().Done()
	return nil
}

// Run schedules a single job and blocks until ctx is done.
func Run(ctx context.Context, spec string, job Job, log *logger.Logger) error {
	s := New(log)
	if _, err := s.Add(ctx, spec, job); err != nil {
		return err
	}
	return s.Run(ctx)
}

// cronLogger adapts the application logger to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
