package models

// SystemAlert is an ephemeral health finding computed on demand for
// dashboard polling. It is never persisted and never notified.
type SystemAlert struct {
	Type     string `json:"type"`     // warning | error
	Category string `json:"category"` // performance | reliability
	Message  string `json:"message"`
	Severity string `json:"severity"` // low | medium | high
}

const (
	AlertTypeWarning = "warning"
	AlertTypeError   = "error"

	CategoryPerformance = "performance"
	CategoryReliability = "reliability"

	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)
