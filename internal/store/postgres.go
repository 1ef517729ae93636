package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/matchwire/matchwire/internal/snapshot"
)

const schema = `
CREATE TABLE IF NOT EXISTS live_matches (
	id UUID NOT NULL,
	match_uuid TEXT PRIMARY KEY,
	game_map TEXT NOT NULL DEFAULT '',
	game_mode TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL DEFAULT '',
	party_size INTEGER NOT NULL DEFAULT 0,
	party_owner_score INTEGER NOT NULL DEFAULT 0,
	party_owner_enemy_score INTEGER NOT NULL DEFAULT 0,
	ally_average_tier INTEGER NOT NULL DEFAULT 0,
	enemy_average_tier INTEGER NOT NULL DEFAULT 0,
	game_start TIMESTAMPTZ,
	players JSONB NOT NULL DEFAULT '[]',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_updated TIMESTAMPTZ NOT NULL DEFAULT now(),
	ended_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS live_matches_last_updated_idx
	ON live_matches (last_updated) WHERE ended_at IS NULL;
`

// Postgres persists live match records in a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to databaseURL, verifies the connection and
// bootstraps the schema.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: bootstrap schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) Upsert(ctx context.Context, snap snapshot.MatchSnapshot) (bool, error) {
	tag, err := p.pool.Exec(ctx, `
		UPDATE live_matches SET
			game_map = $2,
			game_mode = $3,
			state = $4,
			party_size = $5,
			party_owner_score = $6,
			party_owner_enemy_score = $7,
			last_updated = now()
		WHERE match_uuid = $1 AND ended_at IS NULL
	`, snap.MatchID, snap.Map, snap.Mode, snap.State,
		snap.PartySize, snap.OwnerScore, snap.EnemyScore)
	if err != nil {
		return false, fmt.Errorf("store: update live match: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return false, nil
	}

	players, err := json.Marshal(snap.Players)
	if err != nil {
		return false, fmt.Errorf("store: encode players: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO live_matches (
			id, match_uuid, game_map, game_mode, state,
			party_size, party_owner_score, party_owner_enemy_score,
			ally_average_tier, enemy_average_tier, game_start, players
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (match_uuid) DO NOTHING
	`, uuid.NewString(), snap.MatchID, snap.Map, snap.Mode, snap.State,
		snap.PartySize, snap.OwnerScore, snap.EnemyScore,
		snap.AllyAverageTier, snap.EnemyAverageTier, snap.StartedAt, players)
	if err != nil {
		return false, fmt.Errorf("store: insert live match: %w", err)
	}
	return true, nil
}

func (p *Postgres) Get(ctx context.Context, matchID string) (*LiveMatchRecord, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, match_uuid, game_map, game_mode, state,
			party_size, party_owner_score, party_owner_enemy_score,
			ally_average_tier, enemy_average_tier, game_start, players,
			created_at, last_updated, ended_at
		FROM live_matches WHERE match_uuid = $1
	`, matchID)
	record, err := scanRecord(row)
	if err == pgx.ErrNoRows {
		return nil, NotFoundError{MatchID: matchID}
	}
	if err != nil {
		return nil, fmt.Errorf("store: get live match: %w", err)
	}
	return record, nil
}

func (p *Postgres) ListActive(ctx context.Context) ([]LiveMatchRecord, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, match_uuid, game_map, game_mode, state,
			party_size, party_owner_score, party_owner_enemy_score,
			ally_average_tier, enemy_average_tier, game_start, players,
			created_at, last_updated, ended_at
		FROM live_matches WHERE ended_at IS NULL
		ORDER BY last_updated DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("store: list active matches: %w", err)
	}
	defer rows.Close()

	var records []LiveMatchRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan live match: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

func (p *Postgres) MarkEnded(ctx context.Context, matchID string, at time.Time) error {
	// Already-ended matches match zero rows, which is fine.
	_, err := p.pool.Exec(ctx, `
		UPDATE live_matches SET ended_at = $2 WHERE match_uuid = $1 AND ended_at IS NULL
	`, matchID, at)
	if err != nil {
		return fmt.Errorf("store: mark ended: %w", err)
	}
	return nil
}

func (p *Postgres) EndStale(ctx context.Context, cutoff, at time.Time) (int, error) {
	tag, err := p.pool.Exec(ctx, `
		UPDATE live_matches SET ended_at = $2
		WHERE ended_at IS NULL AND last_updated < $1
	`, cutoff, at)
	if err != nil {
		return 0, fmt.Errorf("store: end stale matches: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanRecord(row pgx.Row) (*LiveMatchRecord, error) {
	var record LiveMatchRecord
	var players []byte
	err := row.Scan(
		&record.ID, &record.MatchID, &record.Map, &record.Mode, &record.State,
		&record.PartySize, &record.OwnerScore, &record.EnemyScore,
		&record.AllyAverageTier, &record.EnemyAverageTier, &record.StartedAt, &players,
		&record.CreatedAt, &record.LastUpdatedAt, &record.EndedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(players, &record.Players); err != nil {
		return nil, fmt.Errorf("decode players: %w", err)
	}
	return &record, nil
}
