// Package scheduler runs the daily signal and weekly alert pipelines on cron
// schedules.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a named pipeline run on a cron spec.
type Job struct {
	Name string
	// Spec is a standard five-field cron expression.
	Spec string
	Run  func(ctx context.Context) error
}

// Scheduler triggers jobs on their schedules. Runs never overlap: the tracker
// state file and the SQLite store assume a single writer.
type Scheduler struct {
	cron    *cron.Cron
	logger  zerolog.Logger
	timeout time.Duration

	runMu sync.Mutex
	jobs  map[string]Job
	ids   map[string]cron.EntryID
}

// New creates a scheduler. timeout bounds each run; zero means no limit.
func New(logger zerolog.Logger, timeout time.Duration) *Scheduler {
	logger = logger.With().Str("component", "scheduler").Logger()
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cronLogger{logger}))),
		logger:  logger,
		timeout: timeout,
		jobs:    make(map[string]Job),
		ids:     make(map[string]cron.EntryID),
	}
}

// Add registers a job. Job names must be unique.
func (s *Scheduler) Add(job Job) error {
	if _, ok := s.jobs[job.Name]; ok {
		return fmt.Errorf("job %q already registered", job.Name)
	}
	id, err := s.cron.AddFunc(job.Spec, func() {
		if err := s.run(context.Background(), job); err != nil {
			s.logger.Error().Err(err).Str("job", job.Name).Msg("scheduled run failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", job.Spec, job.Name, err)
	}
	s.jobs[job.Name] = job
	s.ids[job.Name] = id
	return nil
}

// Start begins the scheduled runs.
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, name := range s.Jobs() {
		s.logger.Info().
			Str("job", name).
			Str("schedule", s.jobs[name].Spec).
			Time("next", s.Next(name)).
			Msg("job scheduled")
	}
}

// Stop halts the schedule and waits for a running job to finish or ctx to
// end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info().Msg("scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn().Msg("scheduler stopped before the running job finished")
	}
}

// RunNow runs a job immediately and returns its error.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return s.run(ctx, job)
}

// Next returns a job's next scheduled time, or the zero time if the scheduler
// has not started.
func (s *Scheduler) Next(name string) time.Time {
	id, ok := s.ids[name]
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

// Jobs returns the registered job names, sorted.
func (s *Scheduler) Jobs() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Scheduler) run(ctx context.Context, job Job) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	s.logger.Info().Str("job", job.Name).Msg("starting run")
	if err := job.Run(ctx); err != nil {
		return err
	}
	s.logger.Info().Str("job", job.Name).Dur("duration", time.Since(start)).Msg("run completed")
	return nil
}

// cronLogger adapts zerolog to cron's logger interface.
type cronLogger struct {
	zl zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.zl.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.zl.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
