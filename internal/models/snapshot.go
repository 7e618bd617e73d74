package models

import "time"

// ActivitySnapshot is the per-source state of the activity monitor. It
// keeps a one-slot history: on every check the current count becomes the
// previous one.
type ActivitySnapshot struct {
	Source              string     `json:"source"`
	ActiveCountCurrent  int64      `json:"active_count_current"`
	ActiveCountPrevious int64      `json:"active_count_previous"`
	TotalCountCurrent   int64      `json:"total_count_current"`
	LastCheckAt         time.Time  `json:"last_check_at"`
	NotificationSentAt  *time.Time `json:"notification_sent_at,omitempty"`
	ThresholdPercent    float64    `json:"threshold_percent"`
	MonitoringEnabled   bool       `json:"monitoring_enabled"`
}

// ActivityObservation is one reported count pair for a source, staged by
// the ETL and consumed by the scheduled activity check.
type ActivityObservation struct {
	Source      string `json:"source"`
	ActiveCount int64  `json:"active_count"`
	TotalCount  int64  `json:"total_count"`
}
