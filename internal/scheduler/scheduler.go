// Package scheduler runs periodic background refreshes of the rate cache.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"valutatradehub/internal/cache"
)

// Scheduler lifecycle errors.
var (
	ErrAlreadyRunning  = errors.New("scheduler already running")
	ErrNotRunning      = errors.New("scheduler not running")
	ErrInvalidInterval = errors.New("scheduler interval must be positive")
)

// Refresher triggers a cache refresh unless one is already in flight.
type Refresher interface {
	TryRefreshNow(ctx context.Context) (*cache.RefreshResult, error)
}

// Scheduler periodically refreshes the rate cache in the background.
// State machine: Stopped -> Running -> Stopped. A tick firing while the
// previous refresh is still running is skipped, not queued, so at most one
// refresh is active system-wide.
type Scheduler struct {
	refresher Refresher
	log       *zap.SugaredLogger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a stopped Scheduler.
func New(refresher Refresher, logger *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		refresher: refresher,
		log:       logger,
	}
}

// Running reports whether the scheduler is currently started.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start begins periodic refreshes at the given interval. Restarting requires
// an explicit Stop first.
func (s *Scheduler) Start(interval time.Duration) error {
	if interval <= 0 {
		return ErrInvalidInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}

	// The loop context only controls scheduling. Refreshes run on a
	// background context so stopping never aborts one already underway.
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(ctx, interval)
	s.log.Infow("Scheduler started", "interval", interval)
	return nil
}

// Stop cancels future ticks and waits for the loop to exit. A refresh already
// in flight is allowed to complete.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	cancel := s.cancel
	done := s.done
	s.running = false
	s.mu.Unlock()

	cancel()
	<-done
	s.log.Infow("Scheduler stopped")
	return nil
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick()
		case <-ctx.Done():
			return
		}
	}
}

// tick runs one refresh attempt. Failures are logged and never stop the
// schedule; an overlapping refresh is skipped.
func (s *Scheduler) tick() {
	res, err := s.refresher.TryRefreshNow(context.Background())
	switch {
	case errors.Is(err, cache.ErrRefreshInProgress):
		s.log.Infow("Tick skipped: refresh still running")
	case err != nil:
		s.log.Errorw("Scheduled refresh failed", "error", err)
	default:
		s.log.Infow("Scheduled refresh completed",
			"updated", res.Updated,
			"partial", res.Partial,
		)
	}
}
