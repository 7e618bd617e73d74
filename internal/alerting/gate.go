package alerting

import (
	"context"
	"time"

	"monitoring-service/internal/logging"
	"monitoring-service/internal/store"
)

// Gate decides whether an alert for a given key may fire now. It keeps no
// state of its own: every decision is recomputed from the append-only
// notification log, so it survives restarts and runs safely on replicas.
type Gate struct {
	records    store.Notifications
	cooldown   time.Duration
	maxPerHour int
	logger     *logging.Logger
	now        func() time.Time
}

// NewGate builds a gate over the notification log.
func NewGate(records store.Notifications, cooldown time.Duration, maxPerHour int, logger *logging.Logger) *Gate {
	return &Gate{
		records:    records,
		cooldown:   cooldown,
		maxPerHour: maxPerHour,
		logger:     logger,
		now:        time.Now,
	}
}

// MayNotify reports whether an alert with the given key may be sent now.
// The per-key cooldown is checked first, then the global hourly rate limit.
// Log read failures deny the notification: a store outage must not open the
// floodgates.
func (g *Gate) MayNotify(ctx context.Context, alertKey string) bool {
	now := g.now()

	last, ok, err := g.records.LastForKey(ctx, alertKey)
	if err != nil {
		g.logger.Errorf("Gate: last-notification lookup failed for key %s: %v", alertKey, err)
		return false
	}
	if ok && now.Sub(last) < g.cooldown {
		g.logger.Debugf("Gate: key %s in cooldown until %s", alertKey, last.Add(g.cooldown).Format(time.RFC3339))
		return false
	}

	count, err := g.records.CountSince(ctx, now.Add(-time.Hour))
	if err != nil {
		g.logger.Errorf("Gate: notification count failed for key %s: %v", alertKey, err)
		return false
	}
	if count >= g.maxPerHour {
		g.logger.Warnf("Gate: hourly notification limit reached (%d/%d), suppressing key %s", count, g.maxPerHour, alertKey)
		return false
	}

	return true
}
