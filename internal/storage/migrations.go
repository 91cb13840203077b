package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaRevision is one versioned step of the schema's history. Statements
// run in a single transaction; the version is recorded alongside them so a
// database is only ever moved forward.
type schemaRevision struct {
	version int
	name    string
	stmts   []string
}

// schema is the full revision history. Append-only: released revisions are
// never edited, new ones go on the end.
var schema = []schemaRevision{
	{
		version: 1,
		name:    "reaper_state",
		stmts: []string{
			`CREATE TABLE tab_times (
				tab_id         INTEGER PRIMARY KEY,
				last_active_ms INTEGER NOT NULL
			)`,
			`CREATE TABLE url_times (
				url            TEXT PRIMARY KEY,
				last_active_ms INTEGER NOT NULL
			)`,
			`CREATE TABLE archive (
				id           TEXT PRIMARY KEY,
				tab_id       INTEGER NOT NULL,
				url          TEXT NOT NULL,
				title        TEXT NOT NULL DEFAULT '',
				pinned       INTEGER NOT NULL DEFAULT 0,
				window_id    INTEGER NOT NULL DEFAULT 0,
				closed_at_ms INTEGER NOT NULL,
				position     INTEGER NOT NULL
			)`,
			`CREATE INDEX idx_archive_position ON archive(position)`,
			`CREATE TABLE counters (
				name  TEXT PRIMARY KEY,
				value INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE TABLE schedule (
				name       TEXT PRIMARY KEY,
				wake_at_ms INTEGER NOT NULL
			)`,
		},
	},
}

// migrate brings db up to the newest schema revision. Idempotent: applied
// revisions are tracked in schema_migrations and skipped on later opens.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	current := 0
	err := db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM schema_migrations",
	).Scan(&current)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, rev := range schema {
		if rev.version <= current {
			continue
		}
		if err := applyRevision(ctx, db, rev); err != nil {
			return fmt.Errorf("schema revision %d (%s): %w", rev.version, rev.name, err)
		}
	}
	return nil
}

// applyRevision runs one revision and records it, atomically.
func applyRevision(ctx context.Context, db *sql.DB, rev schemaRevision) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range rev.stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
		rev.version, rev.name,
	); err != nil {
		return err
	}
	return tx.Commit()
}
