// Package sweep runs the background job that ends matches whose agent
// stopped reporting.
package sweep

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/matchwire/matchwire/internal/store"
)

const (
	DefaultInterval = time.Minute
	DefaultMaxAge   = 5 * time.Minute
)

// Sweeper periodically marks matches as ended when their last update is
// older than MaxAge. Matches already ended are left untouched.
type Sweeper struct {
	store    store.Store
	interval time.Duration
	maxAge   time.Duration

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func New(st store.Store, interval, maxAge time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Sweeper{
		store:    st,
		interval: interval,
		maxAge:   maxAge,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop. It returns immediately; call Stop to
// shut the loop down.
func (s *Sweeper) Start() {
	go s.run()
}

// Stop terminates the loop and waits for the in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

func (s *Sweeper) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.SweepOnce(context.Background())
		case <-s.stop:
			return
		}
	}
}

// SweepOnce runs a single staleness pass and returns the number of
// matches it ended.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	now := time.Now().UTC()
	ended, err := s.store.EndStale(ctx, now.Add(-s.maxAge), now)
	if err != nil {
		log.Printf("[Sweep] Staleness pass failed: %v", err)
		return 0
	}
	if ended > 0 {
		log.Printf("[Sweep] Ended %d stale match(es)", ended)
	}
	return ended
}
