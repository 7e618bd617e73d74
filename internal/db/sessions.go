package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"monitoring-service/internal/models"
	"monitoring-service/internal/store"
)

// SessionStore implements store.Sessions on Postgres.
type SessionStore struct {
	pool *pgxpool.Pool
}

func (s *SessionStore) Start(ctx context.Context, taskID, taskType string, metadata map[string]string) (string, error) {
	id := uuid.NewString()
	meta, err := encodeMap(metadata)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}

	query := `
        INSERT INTO monitoring_sessions (id, task_id, task_type, status, started_at, metadata)
        VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = s.pool.Exec(ctx, query, id, taskID, taskType, models.StatusRunning, time.Now(), meta)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	return id, nil
}

func (s *SessionStore) UpdateProgress(ctx context.Context, sessionID string, p models.Progress) error {
	query := `
        UPDATE monitoring_sessions
        SET current_step = $2, records_processed = $3, records_total = $4
        WHERE id = $1 AND status = 'running'`
	result, err := s.pool.Exec(ctx, query, sessionID, p.CurrentStep, p.RecordsProcessed, p.RecordsTotal)
	if err != nil {
		return fmt.Errorf("failed to update progress for session %s: %w", sessionID, err)
	}
	if result.RowsAffected() == 0 {
		return s.notRunningReason(ctx, sessionID, store.ErrSessionFinished)
	}
	return nil
}

func (s *SessionStore) Finish(ctx context.Context, sessionID string, status models.SessionStatus, results map[string]string) error {
	res, err := encodeMap(results)
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}

	now := time.Now()
	query := `
        UPDATE monitoring_sessions
        SET status = $2, results = $3, finished_at = $4,
            duration_seconds = GREATEST(0, EXTRACT(EPOCH FROM ($4::timestamptz - started_at))::bigint)
        WHERE id = $1 AND status = 'running'`
	result, err := s.pool.Exec(ctx, query, sessionID, status, res, now)
	if err != nil {
		return fmt.Errorf("failed to finish session %s: %w", sessionID, err)
	}
	if result.RowsAffected() == 0 {
		return s.notRunningReason(ctx, sessionID, store.ErrAlreadyFinished)
	}
	return nil
}

// notRunningReason distinguishes a missing session from a terminal one after
// a guarded update matched no rows.
func (s *SessionStore) notRunningReason(ctx context.Context, sessionID string, terminalErr error) error {
	var status string
	err := s.pool.QueryRow(ctx, `SELECT status FROM monitoring_sessions WHERE id = $1`, sessionID).Scan(&status)
	if err == pgx.ErrNoRows {
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
	query := `SELECT ` + sessionColumns + ` FROM monitoring_sessions WHERE id = $1`
	sess, err := scanSession(s.pool.QueryRow(ctx, query, sessionID))
	if err == pgx.ErrNoRows {
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
	rows, err := s.pool.Query(ctx, query)
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
	n := 0
	next := func() string { n++; return fmt.Sprintf("$%d", n) }

	if f.TaskType != "" {
		query += " AND task_type = " + next()
		args = append(args, f.TaskType)
	}
	if f.Status != "" {
		query += " AND status = " + next()
		args = append(args, f.Status)
	}
	if !f.From.IsZero() {
		query += " AND started_at >= " + next()
		args = append(args, f.From)
	}
	if !f.To.IsZero() {
		query += " AND started_at <= " + next()
		args = append(args, f.To)
	}
	query += " ORDER BY finished_at DESC LIMIT " + next()
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
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
	query := `SELECT COUNT(*) FROM monitoring_sessions WHERE status = 'error' AND finished_at >= $1`
	if err := s.pool.QueryRow(ctx, query, cutoff).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count recent errors: %w", err)
	}
	return count, nil
}

func (s *SessionStore) AvgDurationSince(ctx context.Context, cutoff time.Time) (float64, error) {
	var avg float64
	query := `
        SELECT COALESCE(AVG(duration_seconds), 0)
        FROM monitoring_sessions
        WHERE status <> 'running' AND finished_at >= $1`
	if err := s.pool.QueryRow(ctx, query, cutoff).Scan(&avg); err != nil {
		return 0, fmt.Errorf("failed to compute average duration: %w", err)
	}
	return avg, nil
}

func (s *SessionStore) PerformanceMetrics(ctx context.Context, days int) ([]models.TaskTypeMetrics, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	query := `
        SELECT task_type,
               COUNT(*),
               COALESCE(AVG(duration_seconds), 0),
               COALESCE(MAX(duration_seconds), 0),
               COALESCE(AVG(CASE WHEN status = 'success' THEN 100.0 ELSE 0.0 END), 0)
        FROM monitoring_sessions
        WHERE status <> 'running' AND finished_at >= $1
        GROUP BY task_type
        ORDER BY task_type`
	rows, err := s.pool.Query(ctx, query, cutoff)
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
	cutoff := time.Now().AddDate(0, 0, -days)
	// LastError and LastAt must both come from the newest error row per task
	// type, so the latest row is picked explicitly instead of aggregated.
	query := `
        SELECT c.task_type, c.errors, COALESCE(l.results->>'error_message', ''), l.finished_at
        FROM (
            SELECT task_type, COUNT(*) AS errors
            FROM monitoring_sessions
            WHERE status = 'error' AND finished_at >= $1
            GROUP BY task_type
        ) c
        JOIN (
            SELECT DISTINCT ON (task_type) task_type, results, finished_at
            FROM monitoring_sessions
            WHERE status = 'error' AND finished_at >= $1
            ORDER BY task_type, finished_at DESC
        ) l USING (task_type)
        ORDER BY c.errors DESC`
	rows, err := s.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to get error statistics: %w", err)
	}
	defer rows.Close()

	var stats []models.ErrorStat
	for rows.Next() {
		var st models.ErrorStat
		if err := rows.Scan(&st.TaskType, &st.Errors, &st.LastError, &st.LastAt); err != nil {
			return nil, fmt.Errorf("failed to scan error stat: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// scanSession reads one session row; metadata and results are JSONB.
func scanSession(row pgx.Row) (models.Session, error) {
	var sess models.Session
	var meta, res []byte
	err := row.Scan(
		&sess.ID, &sess.TaskID, &sess.TaskType, &sess.Status, &sess.CurrentStep,
		&sess.RecordsProcessed, &sess.RecordsTotal, &sess.StartedAt,
		&sess.FinishedAt, &sess.DurationSeconds, &meta, &res,
	)
	if err != nil {
		return models.Session{}, err
	}
	if sess.Metadata, err = decodeMap(meta); err != nil {
		return models.Session{}, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if sess.Results, err = decodeMap(res); err != nil {
		return models.Session{}, fmt.Errorf("failed to decode results: %w", err)
	}
	return sess, nil
}

func encodeMap(m map[string]string) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
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
