// Package store defines the persistence contract shared by the Postgres
// and SQLite backends. The monitoring engine only ever talks to these
// interfaces.
package store

import (
	"context"
	"time"

	"monitoring-service/internal/models"
)

// Sessions persists the lifecycle of task executions.
type Sessions interface {
	// Start creates a running session and returns its generated id.
	Start(ctx context.Context, taskID, taskType string, metadata map[string]string) (string, error)

	// UpdateProgress applies a progress update to a running session.
	// Writes against a terminal session fail with ErrSessionFinished.
	UpdateProgress(ctx context.Context, sessionID string, p models.Progress) error

	// Finish closes a session exactly once, recording finished_at and the
	// computed duration. A second call fails with ErrAlreadyFinished.
	Finish(ctx context.Context, sessionID string, status models.SessionStatus, results map[string]string) error

	// Get returns one session by id.
	Get(ctx context.Context, sessionID string) (models.Session, error)

	// ActiveSessions returns running sessions, each annotated with
	// RunningSeconds relative to now.
	ActiveSessions(ctx context.Context) ([]models.Session, error)

	// History returns terminal sessions matching the filters, newest first.
	History(ctx context.Context, f models.SessionFilters, limit int) ([]models.Session, error)

	// CountErrorsSince counts sessions that finished with status=error at or
	// after the cutoff.
	CountErrorsSince(ctx context.Context, cutoff time.Time) (int, error)

	// AvgDurationSince returns the average duration in seconds of terminal
	// sessions finished at or after the cutoff, 0 when there are none.
	AvgDurationSince(ctx context.Context, cutoff time.Time) (float64, error)

	// PerformanceMetrics aggregates terminal sessions per task type over the
	// trailing number of days.
	PerformanceMetrics(ctx context.Context, days int) ([]models.TaskTypeMetrics, error)

	// ErrorStatistics aggregates error sessions per task type over the
	// trailing number of days.
	ErrorStatistics(ctx context.Context, days int) ([]models.ErrorStat, error)
}

// Snapshots keeps one ActivitySnapshot row per source.
type Snapshots interface {
	// Get returns the snapshot for a source, ErrSnapshotNotFound when absent.
	Get(ctx context.Context, source string) (models.ActivitySnapshot, error)

	// Save writes the full snapshot row, inserting on first sight.
	Save(ctx context.Context, snap models.ActivitySnapshot) error

	// List returns all snapshots ordered by source.
	List(ctx context.Context) ([]models.ActivitySnapshot, error)

	// SaveCounts upserts the latest raw counts reported for a source. ETL
	// jobs push these; the scheduled activity check consumes them.
	SaveCounts(ctx context.Context, obs models.ActivityObservation) error

	// Counts returns the latest raw counts for a source,
	// ErrSnapshotNotFound when the source never reported.
	Counts(ctx context.Context, source string) (models.ActivityObservation, error)

	// Sources lists every source that has reported counts.
	Sources(ctx context.Context) ([]string, error)
}

// Notifications is the append-only log consumed by the cooldown gate.
type Notifications interface {
	// Append adds one record. Records are never updated or deleted.
	Append(ctx context.Context, rec models.NotificationRecord) error

	// LastForKey returns the creation time of the newest record with the
	// given alert key, ok=false when no record exists.
	LastForKey(ctx context.Context, alertKey string) (time.Time, bool, error)

	// CountSince counts records across all keys created at or after the
	// cutoff.
	CountSince(ctx context.Context, cutoff time.Time) (int, error)

	// Recent returns the newest records, across all keys.
	Recent(ctx context.Context, limit int) ([]models.NotificationRecord, error)
}

// Store bundles the three persistence concerns one backend provides.
type Store interface {
	Sessions() Sessions
	Snapshots() Snapshots
	Notifications() Notifications
	Close() error
}
