package models

import "time"

// Notification types recognized by the dispatcher and the audit log.
const (
	TypePerformance    = "performance"
	TypeError          = "error"
	TypeActivityChange = "activity_change"
	TypeDigest         = "digest"
)

// Notification is one outbound alert payload handed to the channel
// dispatcher. It carries no delivery state; the dispatcher reports per
// channel.
type Notification struct {
	AlertKey  string    `json:"alert_key"`
	Type      string    `json:"type"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Severity  string    `json:"severity"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationRecord is one row of the append-only notification log. The
// cooldown and rate gate derives all of its state from these rows.
type NotificationRecord struct {
	ID        string    `json:"id"`
	AlertKey  string    `json:"alert_key"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
