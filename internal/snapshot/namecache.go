package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// NameCache is a sqlite-backed cache of remotely-resolved display names.
// It is constructed once at startup and passed by handle into the
// normalizer; population is lazy on lookup miss. A miss is never an
// error — the caller falls back to the raw id.
type NameCache struct {
	db *sql.DB
}

// OpenNameCache opens (or creates) the cache database at path. An empty
// path places the cache under the user config directory.
func OpenNameCache(path string) (*NameCache, error) {
	if path == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			configDir = "."
		}
		dir := filepath.Join(configDir, "matchwire")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("snapshot: create cache directory: %w", err)
		}
		path = filepath.Join(dir, "names.db")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open name cache: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS player_names (
			subject TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("snapshot: create name cache schema: %w", err)
	}

	return &NameCache{db: db}, nil
}

// Close releases the underlying database handle.
func (c *NameCache) Close() error {
	return c.db.Close()
}

// Lookup returns cached display names for the given subjects and the list
// of subjects not present in the cache.
func (c *NameCache) Lookup(ctx context.Context, subjects []string) (map[string]string, []string, error) {
	found := make(map[string]string, len(subjects))
	var missing []string
	for _, subject := range subjects {
		var name string
		err := c.db.QueryRowContext(ctx,
			`SELECT display_name FROM player_names WHERE subject = ?`, subject).Scan(&name)
		switch {
		case err == sql.ErrNoRows:
			missing = append(missing, subject)
		case err != nil:
			return nil, nil, fmt.Errorf("snapshot: name cache lookup: %w", err)
		default:
			found[subject] = name
		}
	}
	return found, missing, nil
}

// Store upserts resolved names into the cache.
func (c *NameCache) Store(ctx context.Context, names map[string]string) error {
	for subject, name := range names {
		if _, err := c.db.ExecContext(ctx, `
			INSERT INTO player_names (subject, display_name, updated_at)
			VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(subject) DO UPDATE SET
				display_name = excluded.display_name,
				updated_at = CURRENT_TIMESTAMP
		`, subject, name); err != nil {
			return fmt.Errorf("snapshot: name cache store: %w", err)
		}
	}
	return nil
}
