package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Job is one periodic task. Errors are logged and the schedule continues.
type Job func(ctx context.Context) error

type entry struct {
	name     string
	interval time.Duration
	job      Job
}

// Scheduler runs registered jobs on their own tickers. Each job also runs
// once right after Start.
type Scheduler struct {
	timeout time.Duration
	log     *zerolog.Logger
	entries []entry

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns a scheduler whose job runs are bounded by timeout
// (30s when <= 0).
func New(timeout time.Duration, log *zerolog.Logger) *Scheduler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	l := log.With().Str("component", "scheduler").Logger()
	return &Scheduler{timeout: timeout, log: &l}
}

// Every registers job. It must be called before Start; an interval <= 0
// defaults to one minute.
func (s *Scheduler) Every(name string, interval time.Duration, job Job) {
	if interval <= 0 {
		interval = time.Minute
	}
	s.entries = append(s.entries, entry{name: name, interval: interval, job: job})
}

// Start launches one loop per job. Calling Start twice has no effect.
func (s *Scheduler) Start(parent context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	for _, e := range s.entries {
		s.wg.Add(1)
		go s.loop(ctx, e)
	}
	s.log.Info().Int("jobs", len(s.entries)).Msg("scheduler started")
}

func (s *Scheduler) loop(ctx context.Context, e entry) {
	defer s.wg.Done()
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	s.runOnce(ctx, e)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, e)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, e entry) {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error().Interface("panic", rec).Str("job", e.name).Msg("job panicked")
		}
	}()
	if err := e.job(runCtx); err != nil && ctx.Err() == nil {
		s.log.Warn().Err(err).Str("job", e.name).Msg("job failed")
	}
}

// Stop cancels every loop and waits for them to finish. It is idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.log.Info().Msg("scheduler stopped")
}
