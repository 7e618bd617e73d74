package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"monitoring-service/internal/models"
	"monitoring-service/internal/store"
)

// SnapshotStore implements store.Snapshots on Postgres, one row per source.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

func (s *SnapshotStore) Get(ctx context.Context, source string) (models.ActivitySnapshot, error) {
	var snap models.ActivitySnapshot
	query := `
        SELECT source, active_count_current, active_count_previous, total_count_current,
               last_check_at, notification_sent_at, threshold_percent, monitoring_enabled
        FROM activity_snapshots
        WHERE source = $1`
	err := s.pool.QueryRow(ctx, query, source).Scan(
		&snap.Source, &snap.ActiveCountCurrent, &snap.ActiveCountPrevious,
		&snap.TotalCountCurrent, &snap.LastCheckAt, &snap.NotificationSentAt,
		&snap.ThresholdPercent, &snap.MonitoringEnabled,
	)
	if err == pgx.ErrNoRows {
		return models.ActivitySnapshot{}, store.ErrSnapshotNotFound
	}
	if err != nil {
		return models.ActivitySnapshot{}, fmt.Errorf("failed to get snapshot for %s: %w", source, err)
	}
	return snap, nil
}

func (s *SnapshotStore) Save(ctx context.Context, snap models.ActivitySnapshot) error {
	query := `
        INSERT INTO activity_snapshots (
            source, active_count_current, active_count_previous, total_count_current,
            last_check_at, notification_sent_at, threshold_percent, monitoring_enabled
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (source) DO UPDATE SET
            active_count_current = EXCLUDED.active_count_current,
            active_count_previous = EXCLUDED.active_count_previous,
            total_count_current = EXCLUDED.total_count_current,
            last_check_at = EXCLUDED.last_check_at,
            notification_sent_at = EXCLUDED.notification_sent_at,
            threshold_percent = EXCLUDED.threshold_percent,
            monitoring_enabled = EXCLUDED.monitoring_enabled`
	_, err := s.pool.Exec(ctx, query,
		snap.Source, snap.ActiveCountCurrent, snap.ActiveCountPrevious,
		snap.TotalCountCurrent, snap.LastCheckAt, snap.NotificationSentAt,
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
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []models.ActivitySnapshot
	for rows.Next() {
		var snap models.ActivitySnapshot
		err := rows.Scan(
			&snap.Source, &snap.ActiveCountCurrent, &snap.ActiveCountPrevious,
			&snap.TotalCountCurrent, &snap.LastCheckAt, &snap.NotificationSentAt,
			&snap.ThresholdPercent, &snap.MonitoringEnabled,
		)
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
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (source) DO UPDATE SET
            active_count = EXCLUDED.active_count,
            total_count = EXCLUDED.total_count,
            reported_at = EXCLUDED.reported_at`
	_, err := s.pool.Exec(ctx, query, obs.Source, obs.ActiveCount, obs.TotalCount, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save counts for %s: %w", obs.Source, err)
	}
	return nil
}

func (s *SnapshotStore) Counts(ctx context.Context, source string) (models.ActivityObservation, error) {
	var obs models.ActivityObservation
	query := `SELECT source, active_count, total_count FROM activity_counts WHERE source = $1`
	err := s.pool.QueryRow(ctx, query, source).Scan(&obs.Source, &obs.ActiveCount, &obs.TotalCount)
	if err == pgx.ErrNoRows {
		return models.ActivityObservation{}, store.ErrSnapshotNotFound
	}
	if err != nil {
		return models.ActivityObservation{}, fmt.Errorf("failed to get counts for %s: %w", source, err)
	}
	return obs, nil
}

func (s *SnapshotStore) Sources(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT source FROM activity_counts ORDER BY source`)
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
