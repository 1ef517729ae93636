package sweep

import (
	"context"
	"testing"
	"time"

	"github.com/matchwire/matchwire/internal/snapshot"
	"github.com/matchwire/matchwire/internal/store"
)

func backdate(t *testing.T, st *store.Memory, matchID string, at time.Time) {
	t.Helper()
	st.SetLastUpdated(matchID, at)
}

func TestSweepOnceEndsStaleMatches(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	for _, id := range []string{"stale", "fresh"} {
		if _, err := st.Upsert(ctx, snapshot.MatchSnapshot{MatchID: id, State: "INGAME"}); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}

	// Keep one record fresh by touching it right before the sweep.
	backdate(t, st, "stale", time.Now().Add(-10*time.Minute))

	s := New(st, time.Hour, 5*time.Minute)
	if ended := s.SweepOnce(ctx); ended != 1 {
		t.Fatalf("expected 1 ended match, got %d", ended)
	}

	record, err := st.Get(ctx, "stale")
	if err != nil {
		t.Fatalf("get stale: %v", err)
	}
	if record.EndedAt == nil {
		t.Fatalf("stale match not ended")
	}

	fresh, err := st.Get(ctx, "fresh")
	if err != nil {
		t.Fatalf("get fresh: %v", err)
	}
	if fresh.EndedAt != nil {
		t.Fatalf("fresh match wrongly ended")
	}
}

func TestSweepLoopRunsOnInterval(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	if _, err := st.Upsert(ctx, snapshot.MatchSnapshot{MatchID: "m1", State: "INGAME"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	backdate(t, st, "m1", time.Now().Add(-time.Hour))

	s := New(st, 20*time.Millisecond, 5*time.Minute)
	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		record, err := st.Get(ctx, "m1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if record.EndedAt != nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("sweeper never ended the stale match")
}

func TestStopTerminatesLoop(t *testing.T) {
	s := New(store.NewMemory(), 10*time.Millisecond, time.Minute)
	s.Start()

	finished := make(chan struct{})
	go func() {
		s.Stop()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatalf("Stop did not return")
	}

	// Stop is safe to call twice.
	s.Stop()
}

func TestZeroConfigUsesDefaults(t *testing.T) {
	s := New(store.NewMemory(), 0, 0)
	if s.interval != DefaultInterval {
		t.Fatalf("expected default interval, got %v", s.interval)
	}
	if s.maxAge != DefaultMaxAge {
		t.Fatalf("expected default max age, got %v", s.maxAge)
	}
}
