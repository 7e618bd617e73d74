// Package alerting holds the threshold decision logic, the cooldown/rate
// gate, and the orchestrator tying them to the channel dispatcher.
package alerting

import (
	"math"

	"monitoring-service/internal/models"
)

// IsSlow reports whether a running session has exceeded the performance
// threshold.
func IsSlow(runningSeconds, thresholdSeconds int64) bool {
	return runningSeconds > thresholdSeconds
}

// IsErrorBurst reports whether the recent error count has reached the
// configured threshold.
func IsErrorBurst(recentErrorCount, thresholdCount int) bool {
	return recentErrorCount >= thresholdCount
}

// IsDegraded reports whether the rolling average session duration exceeds
// the performance threshold.
func IsDegraded(avgDurationSeconds float64, thresholdSeconds int64) bool {
	return avgDurationSeconds > float64(thresholdSeconds)
}

// ActivityChangeResult is the outcome of comparing a snapshot's current and
// previous active counts.
type ActivityChangeResult struct {
	ChangePercent     float64
	ThresholdExceeded bool
}

// ActivityChange computes the relative swing between the snapshot's previous
// and current active counts. With no previous value there is no baseline:
// the change is 0 and the threshold is never exceeded. The comparison is
// strictly greater; a change exactly equal to the threshold does not
// trigger.
func ActivityChange(snap models.ActivitySnapshot) ActivityChangeResult {
	if snap.ActiveCountPrevious <= 0 {
		return ActivityChangeResult{}
	}
	change := math.Abs(float64(snap.ActiveCountCurrent-snap.ActiveCountPrevious)) /
		float64(snap.ActiveCountPrevious) * 100
	return ActivityChangeResult{
		ChangePercent:     change,
		ThresholdExceeded: change > snap.ThresholdPercent,
	}
}
