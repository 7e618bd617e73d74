package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"monitoring-service/internal/models"
	"monitoring-service/internal/store"
)

// SnapshotStore implements store.Snapshots for SQLite.
type SnapshotStore struct {
	db *DB
}

func (s *SnapshotStore) Get(ctx context.Context, source string) (models.ActivitySnapshot, error) {
	query := `
		SELECT source, active_count_current, active_count_previous, total_count_current,
		       last_check_at, notification_sent_at, threshold_percent, monitoring_enabled
		FROM activity_snapshots
		WHERE source = ?`
	snap, err := scanSnapshot(s.db.QueryRowContext(ctx, query, source))
	if err == sql.ErrNoRows {
		return models.ActivitySnapshot{}, store.ErrSnapshotNotFound
	}
	if err != nil {
		return models.ActivitySnapshot{}, fmt.Errorf("failed to get snapshot for %s: %w", source, err)
	}
	return snap, nil
}

func (s *SnapshotStore) Save(ctx context.Context, snap models.ActivitySnapshot) error {
	var sentAt interface{}
	if snap.NotificationSentAt != nil {
		sentAt = snap.NotificationSentAt.UTC()
	}
	query := `
		INSERT INTO activity_snapshots (
			source, active_count_current, active_count_previous, total_count_current,
			last_check_at, notification_sent_at, threshold_percent, monitoring_enabled
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source) DO UPDATE SET
			active_count_current = excluded.active_count_current,
			active_count_previous = excluded.active_count_previous,
			total_count_current = excluded.total_count_current,
			last_check_at = excluded.last_check_at,
			notification_sent_at = excluded.notification_sent_at,
			threshold_percent = excluded.threshold_percent,
			monitoring_enabled = excluded.monitoring_enabled`
	_, err := s.db.ExecContext(ctx, query,
		snap.Source, snap.ActiveCountCurrent, snap.ActiveCountPrevious,
		snap.TotalCountCurrent, snap.LastCheckAt.UTC(), sentAt,
		snap.ThresholdPercent, snap.MonitoringEnabled,
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot for %s: %w", snap.Source, err)
	}
	return nil
}

func (s *SnapshotStore) List(ctx context.Context) ([]models.ActivitySnapshot, error) {
	query := `
		SELECT source, active_count_current, active_count_previous, total_count_current,
		       last_check_at, notification_sent_at, threshold_percent, monitoring_enabled
		FROM activity_snapshots
		ORDER BY source`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []models.ActivitySnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

func (s *SnapshotStore) SaveCounts(ctx context.Context, obs models.ActivityObservation) error {
	query := `
		INSERT INTO activity_counts (source, active_count, total_count, reported_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (source) DO UPDATE SET
			active_count = excluded.active_count,
			total_count = excluded.total_count,
			reported_at = excluded.reported_at`
	_, err := s.db.ExecContext(ctx, query, obs.Source, obs.ActiveCount, obs.TotalCount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save counts for %s: %w", obs.Source, err)
	}
	return nil
}

func (s *SnapshotStore) Counts(ctx context.Context, source string) (models.ActivityObservation, error) {
	var obs models.ActivityObservation
	query := `SELECT source, active_count, total_count FROM activity_counts WHERE source = ?`
	err := s.db.QueryRowContext(ctx, query, source).Scan(&obs.Source, &obs.ActiveCount, &obs.TotalCount)
	if err == sql.ErrNoRows {
		return models.ActivityObservation{}, store.ErrSnapshotNotFound
	}
	if err != nil {
		return models.ActivityObservation{}, fmt.Errorf("failed to get counts for %s: %w", source, err)
	}
	return obs, nil
}

func (s *SnapshotStore) Sources(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT source FROM activity_counts ORDER BY source`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []string
	for rows.Next() {
		var src string
		if err := rows.Scan(&src); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

func scanSnapshot(row rowScanner) (models.ActivitySnapshot, error) {
	var snap models.ActivitySnapshot
	var sentAt sql.NullTime
	err := row.Scan(
		&snap.Source, &snap.ActiveCountCurrent, &snap.ActiveCountPrevious,
		&snap.TotalCountCurrent, &snap.LastCheckAt, &sentAt,
		&snap.ThresholdPercent, &snap.MonitoringEnabled,
	)
	if err != nil {
		return models.ActivitySnapshot{}, err
	}
	if sentAt.Valid {
		t := sentAt.Time
		snap.NotificationSentAt = &t
	}
	return snap, nil
}
