// Package scheduler drives periodic port scans. One background loop
// refreshes on a cadence; on-demand refreshes may interleave with it, but
// at most one scan is ever in flight.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// DefaultInterval is the auto-refresh cadence when none is configured.
const DefaultInterval = 5 * time.Second

// Scheduler serializes scan cycles. The scan function itself is supplied
// by the caller; the scheduler only owns the cadence and the in-flight
// guard.
type Scheduler struct {
	scan     func(context.Context)
	interval time.Duration
	log      zerolog.Logger

	inFlight atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a scheduler. interval <= 0 falls back to DefaultInterval.
func New(interval time.Duration, scan func(context.Context), log zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		scan:     scan,
		interval: interval,
		log:      log.With().Str("component", "scheduler").Logger(),
		stop:     make(chan struct{}),
	}
}

// Refresh runs one scan cycle. If a scan is already in flight the call is
// a no-op and returns false immediately; it does not queue or block. The
// in-flight flag is cleared on every exit path, so a failing scan cannot
// leave it stuck.
func (s *Scheduler) Refresh(ctx context.Context) bool {
	if !s.inFlight.CompareAndSwap(false, true) {
		return false
	}
	defer s.inFlight.Store(false)

	s.scan(ctx)
	return true
}

// Start launches the auto-refresh loop: one immediate refresh, then one
// per interval until Stop is called. The wait is interruptible, so
// cancellation takes effect promptly instead of riding out the interval.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.Refresh(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !s.Refresh(ctx) {
					s.log.Debug().Msg("scan already in flight, skipping cycle")
				}
			}
		}
	}()
}

// Stop cancels the auto-refresh loop and waits for it to exit. Idempotent;
// callers must invoke it on teardown so the loop does not leak.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	s.wg.Wait()
}
