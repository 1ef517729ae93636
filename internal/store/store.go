package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matchwire/matchwire/internal/snapshot"
)

// LiveMatchRecord is the server-owned projection of one live match. The
// roster is written once on create and treated as immutable metadata;
// every accepted update refreshes the mutable scoreboard fields and
// LastUpdatedAt.
type LiveMatchRecord struct {
	ID               string                    `json:"id"`
	MatchID          string                    `json:"match_uuid"`
	Map              string                    `json:"game_map"`
	Mode             string                    `json:"game_mode"`
	State            string                    `json:"state"`
	PartySize        int                       `json:"party_size"`
	OwnerScore       int                       `json:"party_owner_score"`
	EnemyScore       int                       `json:"party_owner_enemy_score"`
	AllyAverageTier  int                       `json:"ally_average_tier"`
	EnemyAverageTier int                       `json:"enemy_average_tier"`
	StartedAt        *time.Time                `json:"game_start"`
	Players          []snapshot.PlayerSnapshot `json:"players"`
	CreatedAt        time.Time                 `json:"created_at"`
	LastUpdatedAt    time.Time                 `json:"last_updated"`
	EndedAt          *time.Time                `json:"ended_at"`
}

// NotFoundError indicates the requested record does not exist.
type NotFoundError struct {
	MatchID string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("store: live match %s not found", e.MatchID)
}

// IsNotFound returns true when err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

// Store persists live match records. Implementations: Postgres for the
// daemon, Memory for tests and single-process deployments.
type Store interface {
	// Upsert creates the record on first write (roster included) and
	// refreshes the mutable fields on subsequent writes. Returns true
	// when the record was created.
	Upsert(ctx context.Context, snap snapshot.MatchSnapshot) (bool, error)

	// Get returns the record for a match, NotFoundError when absent.
	Get(ctx context.Context, matchID string) (*LiveMatchRecord, error)

	// ListActive returns records that have not been marked ended.
	ListActive(ctx context.Context) ([]LiveMatchRecord, error)

	// MarkEnded sets EndedAt for a match. Marking an already-ended match
	// is a no-op.
	MarkEnded(ctx context.Context, matchID string, at time.Time) error

	// EndStale marks every active record whose LastUpdatedAt is older
	// than cutoff as ended, returning the number of records affected.
	EndStale(ctx context.Context, cutoff, at time.Time) (int, error)

	Close()
}
