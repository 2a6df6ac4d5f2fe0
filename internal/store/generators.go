package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Generator is a registered post producer. Config is opaque to the store;
// its shape depends on Type.
type Generator struct {
	ID     int64
	Name   string
	Type   string
	Config json.RawMessage
}

// GeneratorTypes lists the generator kinds accepted by the schema.
var GeneratorTypes = []string{"feed", "text", "picture"}

// CreateGenerator inserts a generator and sets its ID.
func (db *DB) CreateGenerator(ctx context.Context, g *Generator) error {
	cfg := g.Config
	if len(cfg) == 0 {
		cfg = json.RawMessage("{}")
	}
	if !json.Valid(cfg) {
		return fmt.Errorf("create generator: config is not valid json")
	}

	result, err := db.ExecContext(ctx, `
		INSERT INTO generators (name, type, config) VALUES (?, ?, ?)
	`, g.Name, g.Type, string(cfg))
	if err != nil {
		return fmt.Errorf("create generator: %w", err)
	}
	g.ID, _ = result.LastInsertId()
	g.Config = cfg
	return nil
}

// GetGenerator returns the generator with the given id, or ErrNotFound.
func (db *DB) GetGenerator(ctx context.Context, id int64) (*Generator, error) {
	var g Generator
	var cfg string
	err := db.QueryRowContext(ctx, `
		SELECT id, name, type, config FROM generators WHERE id = ?
	`, id).Scan(&g.ID, &g.Name, &g.Type, &cfg)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("generator %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get generator: %w", err)
	}
	g.Config = json.RawMessage(cfg)
	return &g, nil
}

// ListGenerators returns all generators ordered by id.
func (db *DB) ListGenerators(ctx context.Context) ([]Generator, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, type, config FROM generators ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list generators: %w", err)
	}
	defer rows.Close()

	var gens []Generator
	for rows.Next() {
		var g Generator
		var cfg string
		if err := rows.Scan(&g.ID, &g.Name, &g.Type, &cfg); err != nil {
			return nil, fmt.Errorf("scan generator: %w", err)
		}
		g.Config = json.RawMessage(cfg)
		gens = append(gens, g)
	}
	return gens, rows.Err()
}

// UpdateGenerator renames a generator and, when config is non-empty,
// replaces its config. Existing posts keep the name they were created with.
func (db *DB) UpdateGenerator(ctx context.Context, id int64, name string, config json.RawMessage) (*Generator, error) {
	if len(config) > 0 && !json.Valid(config) {
		return nil, fmt.Errorf("update generator: config is not valid json")
	}

	result, err := db.ExecContext(ctx, `
		UPDATE generators SET name = ?, config = COALESCE(?, config) WHERE id = ?
	`, name, nullJSON(config), id)
	if err != nil {
		return nil, fmt.Errorf("update generator: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("generator %d: %w", id, ErrNotFound)
	}
	return db.GetGenerator(ctx, id)
}

// DeleteGenerator removes a generator. Posts are never deleted, so a
// generator that produced any returns ErrInUse.
func (db *DB) DeleteGenerator(ctx context.Context, id int64) error {
	var posts int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts WHERE generator_id = ?`, id).Scan(&posts); err != nil {
		return fmt.Errorf("count generator posts: %w", err)
	}
	if posts > 0 {
		return fmt.Errorf("generator %d has %d posts: %w", id, posts, ErrInUse)
	}

	result, err := db.ExecContext(ctx, `DELETE FROM generators WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete generator: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("generator %d: %w", id, ErrNotFound)
	}
	return nil
}

func nullJSON(v json.RawMessage) any {
	if len(v) == 0 {
		return nil
	}
	return string(v)
}
