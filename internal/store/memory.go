package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matchwire/matchwire/internal/snapshot"
)

// Memory is an in-process Store used by tests and single-node setups
// that run without a database.
type Memory struct {
	mu      sync.Mutex
	records map[string]*LiveMatchRecord
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]*LiveMatchRecord)}
}

func (m *Memory) Close() {}

func (m *Memory) Upsert(ctx context.Context, snap snapshot.MatchSnapshot) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	record, ok := m.records[snap.MatchID]
	if ok && record.EndedAt == nil {
		record.Map = snap.Map
		record.Mode = snap.Mode
		record.State = snap.State
		record.PartySize = snap.PartySize
		record.OwnerScore = snap.OwnerScore
		record.EnemyScore = snap.EnemyScore
		record.LastUpdatedAt = now
		return false, nil
	}
	if ok {
		// Ended records keep their final roster and scores.
		return false, nil
	}

	players := make([]snapshot.PlayerSnapshot, len(snap.Players))
	copy(players, snap.Players)
	m.records[snap.MatchID] = &LiveMatchRecord{
		ID:               uuid.NewString(),
		MatchID:          snap.MatchID,
		Map:              snap.Map,
		Mode:             snap.Mode,
		State:            snap.State,
		PartySize:        snap.PartySize,
		OwnerScore:       snap.OwnerScore,
		EnemyScore:       snap.EnemyScore,
		AllyAverageTier:  snap.AllyAverageTier,
		EnemyAverageTier: snap.EnemyAverageTier,
		StartedAt:        snap.StartedAt,
		Players:          players,
		CreatedAt:        now,
		LastUpdatedAt:    now,
	}
	return true, nil
}

func (m *Memory) Get(ctx context.Context, matchID string) (*LiveMatchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[matchID]
	if !ok {
		return nil, NotFoundError{MatchID: matchID}
	}
	out := *record
	out.Players = make([]snapshot.PlayerSnapshot, len(record.Players))
	copy(out.Players, record.Players)
	return &out, nil
}

func (m *Memory) ListActive(ctx context.Context) ([]LiveMatchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var records []LiveMatchRecord
	for _, record := range m.records {
		if record.EndedAt != nil {
			continue
		}
		out := *record
		out.Players = make([]snapshot.PlayerSnapshot, len(record.Players))
		copy(out.Players, record.Players)
		records = append(records, out)
	}
	return records, nil
}

func (m *Memory) MarkEnded(ctx context.Context, matchID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[matchID]
	if !ok || record.EndedAt != nil {
		return nil
	}
	ended := at
	record.EndedAt = &ended
	return nil
}

// SetLastUpdated overrides a record's last update timestamp. Tests use it
// to simulate stale matches.
func (m *Memory) SetLastUpdated(matchID string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record, ok := m.records[matchID]; ok {
		record.LastUpdatedAt = at
	}
}

func (m *Memory) EndStale(ctx context.Context, cutoff, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ended := 0
	for _, record := range m.records {
		if record.EndedAt != nil || !record.LastUpdatedAt.Before(cutoff) {
			continue
		}
		when := at
		record.EndedAt = &when
		ended++
	}
	return ended, nil
}
