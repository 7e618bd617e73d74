package alerting

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monitoring-service/internal/logging"
	"monitoring-service/internal/models"
	"monitoring-service/internal/sqlite"
	"monitoring-service/internal/store"
)

func newTestLog(t *testing.T) store.Notifications {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return db.Notifications()
}

func TestGateCooldownWindow(t *testing.T) {
	ctx := context.Background()
	log := newTestLog(t)
	gate := NewGate(log, 30*time.Minute, 10, logging.NewNop())

	t0 := time.Now().Add(-45 * time.Minute)
	require.NoError(t, log.Append(ctx, models.NotificationRecord{
		AlertKey: "error_full_etl_t1", Type: models.TypeError, Message: "m", CreatedAt: t0,
	}))

	probes := []struct {
		at    time.Time
		allow bool
	}{
		{t0, false},
		{t0.Add(time.Minute), false},
		{t0.Add(30*time.Minute - time.Second), false},
		{t0.Add(30 * time.Minute), true},
		{t0.Add(30*time.Minute + time.Second), true},
	}
	for _, p := range probes {
		gate.now = func() time.Time { return p.at }
		assert.Equal(t, p.allow, gate.MayNotify(ctx, "error_full_etl_t1"), "probe at %s", p.at)
	}

	// A different key never shares the cooldown.
	gate.now = func() time.Time { return t0.Add(time.Minute) }
	assert.True(t, gate.MayNotify(ctx, "error_full_etl_t2"))
}

func TestGateGlobalRateLimit(t *testing.T) {
	ctx := context.Background()
	log := newTestLog(t)
	gate := NewGate(log, 30*time.Minute, 10, logging.NewNop())

	now := time.Now()
	gate.now = func() time.Time { return now }

	// 10 approved-and-recorded notifications under distinct keys, oldest
	// just inside the hour window.
	for i := 0; i < 10; i++ {
		require.NoError(t, log.Append(ctx, models.NotificationRecord{
			AlertKey:  fmt.Sprintf("perf_full_etl_t%d", i),
			Type:      models.TypePerformance,
			Message:   "m",
			CreatedAt: now.Add(-59*time.Minute + time.Duration(i)*time.Minute),
		}))
	}

	// The 11th request is refused even for a fresh key.
	assert.False(t, gate.MayNotify(ctx, "activity_fresh_source"))

	// Once the oldest record ages past one hour, capacity frees up.
	gate.now = func() time.Time { return now.Add(2 * time.Minute) }
	assert.True(t, gate.MayNotify(ctx, "activity_fresh_source"))
}

type failingLog struct{}

func (failingLog) Append(context.Context, models.NotificationRecord) error { return errors.New("down") }
func (failingLog) LastForKey(context.Context, string) (time.Time, bool, error) {
	return time.Time{}, false, errors.New("down")
}
func (failingLog) CountSince(context.Context, time.Time) (int, error) { return 0, errors.New("down") }
func (failingLog) Recent(context.Context, int) ([]models.NotificationRecord, error) {
	return nil, errors.New("down")
}

func TestGateDeniesWhenLogUnreachable(t *testing.T) {
	gate := NewGate(failingLog{}, 30*time.Minute, 10, logging.NewNop())
	assert.False(t, gate.MayNotify(context.Background(), "any"))
}
