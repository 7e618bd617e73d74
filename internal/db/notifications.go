package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"monitoring-service/internal/models"
)

// NotificationStore implements store.Notifications on Postgres. The log is
// append-only; rows are never updated.
type NotificationStore struct {
	pool *pgxpool.Pool
}

func (s *NotificationStore) Append(ctx context.Context, rec models.NotificationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	query := `
        INSERT INTO notification_log (id, alert_key, type, message, created_at)
        VALUES ($1, $2, $3, $4, $5)`
	_, err := s.pool.Exec(ctx, query, rec.ID, rec.AlertKey, rec.Type, rec.Message, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append notification record: %w", err)
	}
	return nil
}

func (s *NotificationStore) LastForKey(ctx context.Context, alertKey string) (time.Time, bool, error) {
	var last time.Time
	query := `
        SELECT created_at FROM notification_log
        WHERE alert_key = $1
        ORDER BY created_at DESC
        LIMIT 1`
	err := s.pool.QueryRow(ctx, query, alertKey).Scan(&last)
	if err == pgx.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get last notification for %s: %w", alertKey, err)
	}
	return last, true, nil
}

func (s *NotificationStore) CountSince(ctx context.Context, cutoff time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM notification_log WHERE created_at >= $1`
	if err := s.pool.QueryRow(ctx, query, cutoff).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return count, nil
}

func (s *NotificationStore) Recent(ctx context.Context, limit int) ([]models.NotificationRecord, error) {
	query := `
        SELECT id, alert_key, type, message, created_at
        FROM notification_log
        ORDER BY created_at DESC
        LIMIT $1`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent notifications: %w", err)
	}
	defer rows.Close()

	var records []models.NotificationRecord
	for rows.Next() {
		var rec models.NotificationRecord
		if err := rows.Scan(&rec.ID, &rec.AlertKey, &rec.Type, &rec.Message, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
