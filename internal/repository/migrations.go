package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// migrationLockID serializes concurrent migrators across instances.
const migrationLockID = 7_316_221

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "feedback and analysis tables",
		SQL: `
CREATE TABLE IF NOT EXISTS feedback (
    id              BIGSERIAL PRIMARY KEY,
    source          TEXT NOT NULL,
    title           TEXT NOT NULL,
    body            TEXT NOT NULL,
    fingerprint     TEXT NOT NULL UNIQUE,
    analysis_status TEXT NOT NULL DEFAULT 'pending'
        CHECK (analysis_status IN ('pending', 'processing', 'completed', 'failed')),
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_feedback_created_at ON feedback (created_at);
CREATE INDEX IF NOT EXISTS idx_feedback_source ON feedback (source);

CREATE TABLE IF NOT EXISTS analysis (
    id                   BIGSERIAL PRIMARY KEY,
    feedback_id          BIGINT NOT NULL UNIQUE REFERENCES feedback (id) ON DELETE CASCADE,
    sentiment_label      TEXT CHECK (sentiment_label IN ('positive', 'neutral', 'negative')),
    sentiment_confidence DOUBLE PRECISION,
    urgency_score        INTEGER,
    urgency_reason       TEXT,
    themes_json          TEXT,
    summary              TEXT,
    next_action          TEXT,
    model                TEXT,
    error                TEXT,
    updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Version:     2,
		Description: "shared cache entries",
		SQL: `
CREATE TABLE IF NOT EXISTS cache_entries (
    key        TEXT PRIMARY KEY,
    value      BYTEA NOT NULL,
    expires_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_cache_entries_expires_at ON cache_entries (expires_at);`,
	},
}

// latestVersion returns the highest migration version.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}

	return migrations[len(migrations)-1].Version
}

// Migrate brings the database schema up to the latest version.
// Applied versions are recorded in schema_migrations; all pending steps run in one transaction.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	current, err := schemaVersion(ctx, tx)
	if err != nil {
		return err
	}

	if current >= latestVersion() {
		return nil
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		slog.Info("applying migration", "version", m.Version, "description", m.Description)

		if _, err := tx.Exec(ctx, m.SQL); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			m.Version, m.Description,
		); err != nil {
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}

	return nil
}

func schemaVersion(ctx context.Context, tx pgx.Tx) (int, error) {
	var version int
	if err := tx.QueryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}

	return version, nil
}
