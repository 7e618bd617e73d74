// Package sqlite is the embedded backend of the monitoring store, used for
// single-node deployments and as the conformance-test backend.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"monitoring-service/internal/store"
)

// DB wraps a SQLite database connection.
type DB struct {
	*sql.DB
}

// New opens (or creates) a SQLite database at the given path. Use
// ":memory:" for an ephemeral instance.
func New(dataSourceName string) (*DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent sessions.
	db.SetMaxOpenConns(1)
	return &DB{db}, nil
}

func (db *DB) Sessions() store.Sessions           { return &SessionStore{db: db} }
func (db *DB) Snapshots() store.Snapshots         { return &SnapshotStore{db: db} }
func (db *DB) Notifications() store.Notifications { return &NotificationStore{db: db} }

// Migrate creates the monitoring tables.
func (db *DB) Migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS monitoring_sessions (
    id TEXT PRIMARY KEY,
    task_id TEXT NOT NULL,
    task_type TEXT NOT NULL,
    status TEXT NOT NULL CHECK(status IN ('running', 'success', 'error', 'cancelled')),
    current_step TEXT NOT NULL DEFAULT '',
    records_processed INTEGER NOT NULL DEFAULT 0,
    records_total INTEGER NOT NULL DEFAULT 0,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP,
    duration_seconds INTEGER NOT NULL DEFAULT 0,
    metadata TEXT,
    results TEXT
);
CREATE INDEX IF NOT EXISTS idx_sessions_status ON monitoring_sessions(status);
CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON monitoring_sessions(started_at);

CREATE TABLE IF NOT EXISTS activity_snapshots (
    source TEXT PRIMARY KEY,
    active_count_current INTEGER NOT NULL DEFAULT 0,
    active_count_previous INTEGER NOT NULL DEFAULT 0,
    total_count_current INTEGER NOT NULL DEFAULT 0,
    last_check_at TIMESTAMP NOT NULL,
    notification_sent_at TIMESTAMP,
    threshold_percent REAL NOT NULL DEFAULT 10.0,
    monitoring_enabled INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS activity_counts (
    source TEXT PRIMARY KEY,
    active_count INTEGER NOT NULL DEFAULT 0,
    total_count INTEGER NOT NULL DEFAULT 0,
    reported_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS notification_log (
    id TEXT PRIMARY KEY,
    alert_key TEXT NOT NULL,
    type TEXT NOT NULL,
    message TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notification_log_key_created ON notification_log(alert_key, created_at);
CREATE INDEX IF NOT EXISTS idx_notification_log_created ON notification_log(created_at);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
