// Package sqlite implements repository.RecipeStore on an embedded SQLite file.
//
// It is the alternative to the JSON file backend. The collection is kept as
// one row per recipe, with a position column preserving insertion order and
// the list fields (ingredients, steps) stored as JSON text. Save replaces all
// rows inside a single transaction, which keeps the whole-collection
// semantics of the file store while giving crash-safe writes for free.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so no C toolchain
// is needed to build the binary.
package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// FileName is the name of the database file inside the data directory.
const FileName = "recipes.db"

// DB wraps a sql.DB connection pool and implements repository.RecipeStore.
type DB struct {
	conn   *sql.DB
	logger *slog.Logger
}

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/recipes.db" → file-based database (persistent)
//   - ":memory:"        → in-memory database (tests)
func New(dbPath string, logger *slog.Logger) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// One connection: SQLite has a single writer anyway, and an in-memory
	// database only exists on the connection that created it.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn, logger: logger}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the recipes table. CREATE TABLE IF NOT EXISTS makes it
// safe to run on every start.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS recipes (
			id          TEXT PRIMARY KEY,
			position    INTEGER NOT NULL,
			title       TEXT NOT NULL,
			ingredients TEXT NOT NULL DEFAULT '[]',
			steps       TEXT NOT NULL DEFAULT '[]',
			image_url   TEXT NOT NULL DEFAULT '',
			created_at  TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_recipes_position ON recipes(position);
	`)
	if err != nil {
		return fmt.Errorf("creating recipes table: %w", err)
	}
	return nil
}
