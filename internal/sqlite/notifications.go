package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"monitoring-service/internal/models"
)

// NotificationStore implements store.Notifications for SQLite.
type NotificationStore struct {
	db *DB
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
		VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, rec.ID, rec.AlertKey, rec.Type, rec.Message, rec.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to append notification record: %w", err)
	}
	return nil
}

func (s *NotificationStore) LastForKey(ctx context.Context, alertKey string) (time.Time, bool, error) {
	var last time.Time
	query := `
		SELECT created_at FROM notification_log
		WHERE alert_key = ?
		ORDER BY created_at DESC
		LIMIT 1`
	err := s.db.QueryRowContext(ctx, query, alertKey).Scan(&last)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get last notification for %s: %w", alertKey, err)
	}
	return last, true, nil
}

func (s *NotificationStore) CountSince(ctx context.Context, cutoff time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM notification_log WHERE created_at >= ?`
	if err := s.db.QueryRowContext(ctx, query, cutoff.UTC()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return count, nil
}

func (s *NotificationStore) Recent(ctx context.Context, limit int) ([]models.NotificationRecord, error) {
	query := `
		SELECT id, alert_key, type, message, created_at
		FROM notification_log
		ORDER BY created_at DESC
		LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
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
