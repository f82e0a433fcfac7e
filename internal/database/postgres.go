// Package database provides database connectivity for run history.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

const (
	// DefaultMaxOpenConns is the default maximum number of open connections
	DefaultMaxOpenConns = 10
	// DefaultMaxIdleConns is the default maximum number of idle connections
	DefaultMaxIdleConns = 5
	// DefaultConnMaxLifetime is the default maximum connection lifetime
	DefaultConnMaxLifetime = 5 * time.Minute
	// DefaultPingTimeout is the default timeout for ping operations
	DefaultPingTimeout = 5 * time.Second
)

// schema creates the run-history table when it does not exist yet.
// Run history is append-only; ingestion reads it back only for the API.
const schema = `
CREATE TABLE IF NOT EXISTS run_history (
	id               TEXT PRIMARY KEY,
	source           TEXT NOT NULL,
	raw_count        INTEGER NOT NULL DEFAULT 0,
	normalized_count INTEGER NOT NULL DEFAULT 0,
	new_count        INTEGER NOT NULL DEFAULT 0,
	updated_count    INTEGER NOT NULL DEFAULT 0,
	unchanged_count  INTEGER NOT NULL DEFAULT 0,
	error_count      INTEGER NOT NULL DEFAULT 0,
	errors           TEXT NOT NULL DEFAULT '',
	started_at       TIMESTAMPTZ NOT NULL,
	duration_ms      BIGINT NOT NULL DEFAULT 0,
	success          BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_run_history_source_started
	ON run_history (source, started_at DESC);
`

// Connect opens a PostgreSQL connection pool, verifies it, and ensures
// the run-history schema exists.
func Connect(dsn string, maxOpen, maxIdle int) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if maxOpen <= 0 {
		maxOpen = DefaultMaxOpenConns
	}
	if maxIdle <= 0 {
		maxIdle = DefaultMaxIdleConns
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), DefaultPingTimeout)
	defer cancel()

	if pingErr := db.PingContext(ctx); pingErr != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", pingErr)
	}

	if _, execErr := db.ExecContext(ctx, schema); execErr != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", execErr)
	}

	return db, nil
}
