package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "generators: registry of post producers",
		SQL: `
CREATE TABLE generators (
    id     INTEGER PRIMARY KEY AUTOINCREMENT,
    name   TEXT NOT NULL,
    type   TEXT NOT NULL CHECK (type IN ('feed', 'text', 'picture')),
    config TEXT NOT NULL DEFAULT '{}'
);
`,
	},
	{
		Version:     2,
		Description: "posts: feed items with seen and reaction state",
		SQL: `
CREATE TABLE posts (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    generator_id   INTEGER NOT NULL,
    generator_name TEXT NOT NULL,
    image_url      TEXT,
    more_link      TEXT,
    body           TEXT,

    -- Timestamps are unix milliseconds
    timestamp      INTEGER NOT NULL,
    seen_count     INTEGER NOT NULL DEFAULT 0 CHECK (seen_count >= 0),
    last_seen_ts   INTEGER,
    reaction       TEXT NOT NULL DEFAULT 'none' CHECK (reaction IN ('none', 'like', 'dislike', 'heart')),
    reaction_ts    INTEGER,

    FOREIGN KEY (generator_id) REFERENCES generators(id)
);

CREATE INDEX idx_posts_fresh   ON posts(reaction, seen_count, timestamp DESC);
CREATE INDEX idx_posts_revisit ON posts(reaction, seen_count, last_seen_ts ASC);
CREATE INDEX idx_posts_saved   ON posts(reaction, reaction_ts DESC);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
