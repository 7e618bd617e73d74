package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"monitoring-service/internal/models"
	"monitoring-service/internal/store"
)

// SessionStore implements store.Sessions for SQLite.
type SessionStore struct {
	db *DB
}

func (s *SessionStore) Start(ctx context.Context, taskID, taskType string, metadata map[string]string) (string, error) {
	id := uuid.NewString()
	meta, err := encodeMap(metadata)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}

	query := `
		INSERT INTO monitoring_sessions (id, task_id, task_type, status, started_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query, id, taskID, taskType, models.StatusRunning, time.Now().UTC(), meta)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	return id, nil
}

func (s *SessionStore) UpdateProgress(ctx context.Context, sessionID string, p models.Progress) error {
	query := `
		UPDATE monitoring_sessions
		SET current_step = ?, records_processed = ?, records_total = ?
		WHERE id = ? AND status = 'running'`
	result, err := s.db.ExecContext(ctx, query, p.CurrentStep, p.RecordsProcessed, p.RecordsTotal, sessionID)
	if err != nil {
		return fmt.Errorf("failed to update progress for session %s: %w", sessionID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return s.notRunningReason(ctx, sessionID, store.ErrSessionFinished)
	}
	return nil
}

func (s *SessionStore) Finish(ctx context.Context, sessionID string, status models.SessionStatus, results map[string]string) error {
	res, err := encodeMap(results)
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}

	var startedAt time.Time
	err = s.db.QueryRowContext(ctx,
		`SELECT started_at FROM monitoring_sessions WHERE id = ?`, sessionID).Scan(&startedAt)
	if err == sql.ErrNoRows {
		return store.ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	now := time.Now().UTC()
	duration := int64(now.Sub(startedAt).Seconds())
	if duration < 0 {
		duration = 0
	}

	query := `
		UPDATE monitoring_sessions
		SET status = ?, results = ?, finished_at = ?, duration_seconds = ?
		WHERE id = ? AND status = 'running'`
	result, err := s.db.ExecContext(ctx, query, status, res, now, duration, sessionID)
	if err != nil {
		return fmt.Errorf("failed to finish session %s: %w", sessionID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrAlreadyFinished
	}
	return nil
}

func (s *SessionStore) notRunningReason(ctx context.Context, sessionID string, terminalErr error) error {
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM monitoring_sessions WHERE id = ?`, sessionID).Scan(&status)
	if err == sql.ErrNoRows {
		return store.ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to resolve session %s state: %w", sessionID, err)
	}
	return terminalErr
}

const sessionColumns = `id, task_id, task_type, status, current_step, records_processed,
		records_total, started_at, finished_at, duration_seconds, metadata, results`

func (s *SessionStore) Get(ctx context.Context, sessionID string) (models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM monitoring_sessions WHERE id = ?`
	sess, err := scanSession(s.db.QueryRowContext(ctx, query, sessionID))
	if err == sql.ErrNoRows {
		return models.Session{}, store.ErrSessionNotFound
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}
	return sess, nil
}

func (s *SessionStore) ActiveSessions(ctx context.Context) ([]models.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM monitoring_sessions WHERE status = 'running' ORDER BY started_at`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get active sessions: %w", err)
	}
	defer rows.Close()

	now := time.Now()
	var sessions []models.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sess.RunningSeconds = int64(now.Sub(sess.StartedAt).Seconds())
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *SessionStore) History(ctx context.Context, f models.SessionFilters, limit int) ([]models.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM monitoring_sessions WHERE status <> 'running'`
	args := []interface{}{}

	if f.TaskType != "" {
		query += " AND task_type = ?"
		args = append(args, f.TaskType)
	}
	if f.Status != "" {
		query += " AND status = ?"
		args = append(args, f.Status)
	}
	if !f.From.IsZero() {
		query += " AND started_at >= ?"
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		query += " AND started_at <= ?"
		args = append(args, f.To.UTC())
	}
	query += " ORDER BY finished_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get session history: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *SessionStore) CountErrorsSince(ctx context.Context, cutoff time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM monitoring_sessions WHERE status = 'error' AND finished_at >= ?`
	if err := s.db.QueryRowContext(ctx, query, cutoff.UTC()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count recent errors: %w", err)
	}
	return count, nil
}

func (s *SessionStore) AvgDurationSince(ctx context.Context, cutoff time.Time) (float64, error) {
	var avg float64
	query := `
		SELECT COALESCE(AVG(duration_seconds), 0)
		FROM monitoring_sessions
		WHERE status <> 'running' AND finished_at >= ?`
	if err := s.db.QueryRowContext(ctx, query, cutoff.UTC()).Scan(&avg); err != nil {
		return 0, fmt.Errorf("failed to compute average duration: %w", err)
	}
	return avg, nil
}

func (s *SessionStore) PerformanceMetrics(ctx context.Context, days int) ([]models.TaskTypeMetrics, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	query := `
		SELECT task_type,
		       COUNT(*),
		       COALESCE(AVG(duration_seconds), 0),
		       COALESCE(MAX(duration_seconds), 0),
		       COALESCE(AVG(CASE WHEN status = 'success' THEN 100.0 ELSE 0.0 END), 0)
		FROM monitoring_sessions
		WHERE status <> 'running' AND finished_at >= ?
		GROUP BY task_type
		ORDER BY task_type`
	rows, err := s.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to get performance metrics: %w", err)
	}
	defer rows.Close()

	var metrics []models.TaskTypeMetrics
	for rows.Next() {
		var m models.TaskTypeMetrics
		if err := rows.Scan(&m.TaskType, &m.Runs, &m.AvgDurationSeconds, &m.MaxDurationSeconds, &m.SuccessRate); err != nil {
			return nil, fmt.Errorf("failed to scan metrics row: %w", err)
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

func (s *SessionStore) ErrorStatistics(ctx context.Context, days int) ([]models.ErrorStat, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	query := `
		SELECT task_type, COUNT(*)
		FROM monitoring_sessions
		WHERE status = 'error' AND finished_at >= ?
		GROUP BY task_type
		ORDER BY COUNT(*) DESC`
	rows, err := s.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to get error statistics: %w", err)
	}
	defer rows.Close()

	var stats []models.ErrorStat
	for rows.Next() {
		var st models.ErrorStat
		if err := rows.Scan(&st.TaskType, &st.Errors); err != nil {
			return nil, fmt.Errorf("failed to scan error stat: %w", err)
		}
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest error row per task type, read directly: an aggregate like
	// MAX(finished_at) loses the column's time affinity and comes back as a
	// string. JSON extraction is done in Go since results is stored as a
	// plain JSON string.
	for i := range stats {
		var res sql.NullString
		err := s.db.QueryRowContext(ctx, `
			SELECT finished_at, results FROM monitoring_sessions
			WHERE status = 'error' AND task_type = ? AND finished_at >= ?
			ORDER BY finished_at DESC LIMIT 1`, stats[i].TaskType, cutoff).Scan(&stats[i].LastAt, &res)
		if err != nil && err != sql.ErrNoRows {
			return nil, fmt.Errorf("failed to get last error for %s: %w", stats[i].TaskType, err)
		}
		if res.Valid {
			if m, err := decodeMap([]byte(res.String)); err == nil {
				stats[i].LastError = m["error_message"]
			}
		}
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (models.Session, error) {
	var sess models.Session
	var finishedAt sql.NullTime
	var meta, res sql.NullString
	err := row.Scan(
		&sess.ID, &sess.TaskID, &sess.TaskType, &sess.Status, &sess.CurrentStep,
		&sess.RecordsProcessed, &sess.RecordsTotal, &sess.StartedAt,
		&finishedAt, &sess.DurationSeconds, &meta, &res,
	)
	if err != nil {
		return models.Session{}, err
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		sess.FinishedAt = &t
	}
	if meta.Valid {
		if sess.Metadata, err = decodeMap([]byte(meta.String)); err != nil {
			return models.Session{}, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}
	if res.Valid {
		if sess.Results, err = decodeMap([]byte(res.String)); err != nil {
			return models.Session{}, fmt.Errorf("failed to decode results: %w", err)
		}
	}
	return sess, nil
}

func encodeMap(m map[string]string) (interface{}, error) {
	if m == nil {
		return nil, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func decodeMap(raw []byte) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
