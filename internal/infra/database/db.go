package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

const (
	defaultMaxOpenConns    = 10
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnMaxIdleTime = 1 * time.Minute
)

// NewPostgresConnection creates and returns a new PostgreSQL database connection.
// It also pings the database to ensure connectivity.
func NewPostgresConnection(dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS spawn_timers (
		name             TEXT PRIMARY KEY,
		position         INTEGER NOT NULL DEFAULT 0,
		interval_minutes BIGINT NOT NULL CHECK (interval_minutes > 0),
		last_occurrence  TIMESTAMPTZ NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS spawn_timer_edits (
		id                   BIGSERIAL PRIMARY KEY,
		timer_name           TEXT NOT NULL,
		old_last_occurrence  TIMESTAMPTZ NOT NULL,
		new_last_occurrence  TIMESTAMPTZ NOT NULL,
		old_interval_minutes BIGINT NOT NULL,
		new_interval_minutes BIGINT NOT NULL,
		edited_by            TEXT NOT NULL,
		edited_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS notification_ledger (
		id          BIGSERIAL PRIMARY KEY,
		dedup_key   TEXT NOT NULL UNIQUE,
		source      TEXT NOT NULL,
		entity_name TEXT NOT NULL,
		occurrence  TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS notification_ledger_entity_idx ON notification_ledger (entity_name)`,
	`CREATE TABLE IF NOT EXISTS sender_lease (
		name       TEXT PRIMARY KEY,
		owner      TEXT NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL
	)`,
}

// EnsureSchema creates the tables this service needs when they are missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
