package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// Scheduler drives one job on a fixed interval. It is either Stopped or
// Running; Start on a running scheduler cancels the existing timer
// first, so two concurrent timers never exist.
type Scheduler struct {
	mu       sync.Mutex
	interval time.Duration
	job      Job
	cron     *cron.Cron
	log      zerolog.Logger
}

// New creates a scheduler for the given job. The interval comes from
// configuration, not from here.
func New(interval time.Duration, job Job, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		interval: interval,
		job:      job,
		log:      log.With().Str("component", "scheduler").Logger(),
	}
}

// Start runs one immediate pass of the job, then arms the recurring
// timer. Restart semantics are idempotent: an already running timer is
// cancelled before the new one is armed.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		s.stopLocked()
		s.log.Info().Msg("Existing timer cancelled for restart")
	}

	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.interval), s.tick); err != nil {
		return fmt.Errorf("failed to register job: %w", err)
	}

	// Immediate pass; the job's own in-flight guard keeps it from
	// overlapping with the first tick.
	go s.tick()

	c.Start()
	s.cron = c

	s.log.Info().
		Str("job", s.job.Name()).
		Dur("interval", s.interval).
		Msg("Scheduler started")

	return nil
}

// Stop cancels the pending timer. An in-flight run completes but no
// further ticks fire. Safe to call when already stopped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return
	}

	s.stopLocked()
	s.log.Info().Msg("Scheduler stopped")
}

// Running reports whether the timer is armed.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron != nil
}

func (s *Scheduler) stopLocked() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.cron = nil
}

func (s *Scheduler) tick() {
	s.log.Debug().Str("job", s.job.Name()).Msg("Running job")

	if err := s.job.Run(); err != nil {
		s.log.Error().
			Err(err).
			Str("job", s.job.Name()).
			Msg("Job failed")
	} else {
		s.log.Debug().Str("job", s.job.Name()).Msg("Job completed")
	}
}
