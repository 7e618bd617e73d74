// Package db is the Postgres backend of the monitoring store, built on
// pgxpool. One file per entity mirrors the table layout.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"monitoring-service/internal/store"
)

type DB struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &DB{Pool: pool}, nil
}

func (d *DB) Close() error {
	d.Pool.Close()
	return nil
}

func (d *DB) Sessions() store.Sessions           { return &SessionStore{pool: d.Pool} }
func (d *DB) Snapshots() store.Snapshots         { return &SnapshotStore{pool: d.Pool} }
func (d *DB) Notifications() store.Notifications { return &NotificationStore{pool: d.Pool} }

// Migrate creates the monitoring tables when they do not exist yet.
func (d *DB) Migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS monitoring_sessions (
    id TEXT PRIMARY KEY,
    task_id TEXT NOT NULL,
    task_type TEXT NOT NULL,
    status TEXT NOT NULL CHECK(status IN ('running', 'success', 'error', 'cancelled')),
    current_step TEXT NOT NULL DEFAULT '',
    records_processed BIGINT NOT NULL DEFAULT 0,
    records_total BIGINT NOT NULL DEFAULT 0,
    started_at TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ,
    duration_seconds BIGINT NOT NULL DEFAULT 0,
    metadata JSONB,
    results JSONB
);
CREATE INDEX IF NOT EXISTS idx_sessions_status ON monitoring_sessions(status);
CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON monitoring_sessions(started_at);

CREATE TABLE IF NOT EXISTS activity_snapshots (
    source TEXT PRIMARY KEY,
    active_count_current BIGINT NOT NULL DEFAULT 0,
    active_count_previous BIGINT NOT NULL DEFAULT 0,
    total_count_current BIGINT NOT NULL DEFAULT 0,
    last_check_at TIMESTAMPTZ NOT NULL,
    notification_sent_at TIMESTAMPTZ,
    threshold_percent DOUBLE PRECISION NOT NULL DEFAULT 10.0,
    monitoring_enabled BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS activity_counts (
    source TEXT PRIMARY KEY,
    active_count BIGINT NOT NULL DEFAULT 0,
    total_count BIGINT NOT NULL DEFAULT 0,
    reported_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS notification_log (
    id TEXT PRIMARY KEY,
    alert_key TEXT NOT NULL,
    type TEXT NOT NULL,
    message TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notification_log_key_created ON notification_log(alert_key, created_at);
CREATE INDEX IF NOT EXISTS idx_notification_log_created ON notification_log(created_at);
`
	if _, err := d.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
