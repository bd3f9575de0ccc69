package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// postgresMigrations are applied in order on every start; each one is idempotent.
var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		seq             BIGSERIAL UNIQUE,
		id              BIGINT PRIMARY KEY,
		name            TEXT NOT NULL,
		emoji           TEXT NOT NULL DEFAULT '',
		admin           BOOLEAN NOT NULL DEFAULT false,
		santa           BOOLEAN NOT NULL DEFAULT false,
		canvas          TEXT NOT NULL DEFAULT '',
		last_place_time TIMESTAMPTZ,
		tiles_count     BIGINT NOT NULL DEFAULT 0,
		points          BIGINT NOT NULL DEFAULT 0,
		gems            BIGINT NOT NULL DEFAULT 0,
		extra           JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS canvases (
		name       TEXT PRIMARY KEY,
		grid       TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS santa_cohorts (
		year       INTEGER NOT NULL,
		cohort_key TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (year, cohort_key)
	)`,
	`CREATE TABLE IF NOT EXISTS santa_retrievals (
		year         INTEGER NOT NULL,
		cohort_key   TEXT NOT NULL,
		user_id      BIGINT NOT NULL,
		retrieved_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (year, cohort_key, user_id),
		FOREIGN KEY (year, cohort_key) REFERENCES santa_cohorts (year, cohort_key)
	)`,
}

// sqliteMigrations mirror postgresMigrations in SQLite types. Timestamps
// are stored as unix nanoseconds.
var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		seq             INTEGER PRIMARY KEY AUTOINCREMENT,
		id              INTEGER NOT NULL UNIQUE,
		name            TEXT NOT NULL,
		emoji           TEXT NOT NULL DEFAULT '',
		admin           INTEGER NOT NULL DEFAULT 0,
		santa           INTEGER NOT NULL DEFAULT 0,
		canvas          TEXT NOT NULL DEFAULT '',
		last_place_time INTEGER,
		tiles_count     INTEGER NOT NULL DEFAULT 0,
		points          INTEGER NOT NULL DEFAULT 0,
		gems            INTEGER NOT NULL DEFAULT 0,
		extra           TEXT NOT NULL DEFAULT '{}',
		created_at      INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS canvases (
		name       TEXT PRIMARY KEY,
		grid       TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS santa_cohorts (
		year       INTEGER NOT NULL,
		cohort_key TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (year, cohort_key)
	)`,
	`CREATE TABLE IF NOT EXISTS santa_retrievals (
		year         INTEGER NOT NULL,
		cohort_key   TEXT NOT NULL,
		user_id      INTEGER NOT NULL,
		retrieved_at INTEGER NOT NULL,
		PRIMARY KEY (year, cohort_key, user_id),
		FOREIGN KEY (year, cohort_key) REFERENCES santa_cohorts (year, cohort_key)
	)`,
}

// RunMigrations creates the game tables if they do not exist.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	for i, ddl := range postgresMigrations {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
