// Package models holds the shared domain types: sessions and their
// lifecycle, activity snapshots, and the notification payloads.
package models

import "time"

// SessionStatus is the lifecycle state of a monitoring session. A session
// starts as running and moves exactly once into one of the terminal states.
type SessionStatus string

const (
	StatusRunning   SessionStatus = "running"
	StatusSuccess   SessionStatus = "success"
	StatusError     SessionStatus = "error"
	StatusCancelled SessionStatus = "cancelled"
)

// Terminal reports whether the status ends a session.
func (s SessionStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusError || s == StatusCancelled
}

// Valid reports whether the status is one of the known lifecycle states.
func (s SessionStatus) Valid() bool {
	return s == StatusRunning || s.Terminal()
}

// Session is one monitored task execution.
type Session struct {
	ID               string            `json:"id"`
	TaskID           string            `json:"task_id"`
	TaskType         string            `json:"task_type"`
	Status           SessionStatus     `json:"status"`
	CurrentStep      string            `json:"current_step"`
	RecordsProcessed int64             `json:"records_processed"`
	RecordsTotal     int64             `json:"records_total"`
	StartedAt        time.Time         `json:"started_at"`
	FinishedAt       *time.Time        `json:"finished_at,omitempty"`
	DurationSeconds  int64             `json:"duration_seconds"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	Results          map[string]string `json:"results,omitempty"`

	// RunningSeconds is computed for active sessions only, relative to the
	// query time. It is not stored.
	RunningSeconds int64 `json:"running_seconds,omitempty"`
}

// ProgressPercent returns the completion percentage, or 0 when the total is
// unknown.
func (s Session) ProgressPercent() float64 {
	if s.RecordsTotal <= 0 {
		return 0
	}
	return float64(s.RecordsProcessed) / float64(s.RecordsTotal) * 100
}

// Progress is one incremental update reported by a running task.
type Progress struct {
	CurrentStep      string `json:"current_step"`
	RecordsProcessed int64  `json:"records_processed"`
	RecordsTotal     int64  `json:"records_total"`
}

// SessionFilters narrows a history query. Zero values mean "no filter".
type SessionFilters struct {
	TaskType string
	Status   SessionStatus
	From     time.Time
	To       time.Time
}

// TaskTypeMetrics aggregates finished runs of one task type.
type TaskTypeMetrics struct {
	TaskType           string  `json:"task_type"`
	Runs               int64   `json:"runs"`
	AvgDurationSeconds float64 `json:"avg_duration_seconds"`
	MaxDurationSeconds int64   `json:"max_duration_seconds"`
	SuccessRate        float64 `json:"success_rate"`
}

// ErrorStat aggregates recent failures of one task type.
type ErrorStat struct {
	TaskType  string    `json:"task_type"`
	Errors    int64     `json:"errors"`
	LastAt    time.Time `json:"last_at"`
	LastError string    `json:"last_error,omitempty"`
}
