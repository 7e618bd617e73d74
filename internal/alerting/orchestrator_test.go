package alerting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monitoring-service/internal/channels"
	"monitoring-service/internal/config"
	"monitoring-service/internal/logging"
	"monitoring-service/internal/models"
	"monitoring-service/internal/sqlite"
	"monitoring-service/internal/store"
)

// stubDispatcher records dispatched notifications and succeeds or fails on
// command.
type stubDispatcher struct {
	succeed bool
	sent    []models.Notification
}

func (d *stubDispatcher) Dispatch(_ context.Context, n models.Notification) channels.DispatchResult {
	d.sent = append(d.sent, n)
	return channels.DispatchResult{
		AnySucceeded: d.succeed,
		PerChannel:   map[string]bool{"stub": d.succeed},
	}
}

type orchestratorFixture struct {
	st         store.Store
	dispatcher *stubDispatcher
	orch       *Orchestrator
	gate       *Gate
}

func newFixture(t *testing.T) *orchestratorFixture {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	var cfg config.Config
	cfg.Thresholds.PerformanceSeconds = 300
	cfg.Thresholds.ErrorCount = 3
	cfg.Thresholds.CooldownMinutes = 30
	cfg.Thresholds.MaxNotificationsPerHour = 10
	cfg.Thresholds.ActivityThresholdPercent = 10.0

	logger := logging.NewNop()
	dispatcher := &stubDispatcher{succeed: true}
	gate := NewGate(db.Notifications(), cfg.Cooldown(), cfg.Thresholds.MaxNotificationsPerHour, logger)
	orch := NewOrchestrator(db, gate, dispatcher, cfg, logger)

	return &orchestratorFixture{st: db, dispatcher: dispatcher, orch: orch, gate: gate}
}

// setNow pins both the orchestrator's and the gate's clock.
func (f *orchestratorFixture) setNow(at time.Time) {
	f.orch.now = func() time.Time { return at }
	f.gate.now = func() time.Time { return at }
}

func TestOnProgressSlowTaskAlert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.st.Sessions().Start(ctx, "t1", "full_etl", nil)
	require.NoError(t, err)
	sess, err := f.st.Sessions().Get(ctx, id)
	require.NoError(t, err)

	// Not slow yet: nothing fires.
	f.orch.OnProgress(ctx, sess)
	assert.Empty(t, f.dispatcher.sent)

	// 10 minutes in, well past the 300s threshold.
	f.setNow(sess.StartedAt.Add(10 * time.Minute))
	f.orch.OnProgress(ctx, sess)
	require.Len(t, f.dispatcher.sent, 1)
	assert.Equal(t, "perf_full_etl_t1", f.dispatcher.sent[0].AlertKey)
	assert.Equal(t, models.TypePerformance, f.dispatcher.sent[0].Type)

	// The audit record went in after the successful dispatch.
	last, ok, err := f.st.Notifications().LastForKey(ctx, "perf_full_etl_t1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, last.IsZero())

	// Immediately re-reporting progress is suppressed by the cooldown.
	f.orch.OnProgress(ctx, sess)
	assert.Len(t, f.dispatcher.sent, 1)
}

func TestOnFinishErrorAlert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.st.Sessions().Start(ctx, "t1", "full_etl", nil)
	require.NoError(t, err)
	require.NoError(t, f.st.Sessions().Finish(ctx, id, models.StatusError, map[string]string{"error_message": "api quota exceeded"}))
	sess, err := f.st.Sessions().Get(ctx, id)
	require.NoError(t, err)

	f.orch.OnFinish(ctx, sess)
	require.Len(t, f.dispatcher.sent, 1)
	assert.Equal(t, "error_full_etl_t1", f.dispatcher.sent[0].AlertKey)
	assert.Contains(t, f.dispatcher.sent[0].Body, "api quota exceeded")
	assert.Equal(t, models.SeverityMedium, f.dispatcher.sent[0].Severity)
}

func TestOnFinishErrorBurstEscalates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var sess models.Session
	for i := 0; i < 3; i++ {
		id, err := f.st.Sessions().Start(ctx, "t1", "full_etl", nil)
		require.NoError(t, err)
		require.NoError(t, f.st.Sessions().Finish(ctx, id, models.StatusError, nil))
		var errGet error
		sess, errGet = f.st.Sessions().Get(ctx, id)
		require.NoError(t, errGet)
	}

	f.orch.OnFinish(ctx, sess)
	require.Len(t, f.dispatcher.sent, 1)
	assert.Equal(t, models.SeverityHigh, f.dispatcher.sent[0].Severity)
	assert.Contains(t, f.dispatcher.sent[0].Subject, "Error burst")
	// Missing error_message falls back to a generic text.
	assert.Contains(t, f.dispatcher.sent[0].Body, "without an error message")
}

func TestOnFinishIgnoresSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.st.Sessions().Start(ctx, "t1", "full_etl", nil)
	require.NoError(t, err)
	require.NoError(t, f.st.Sessions().Finish(ctx, id, models.StatusSuccess, nil))
	sess, err := f.st.Sessions().Get(ctx, id)
	require.NoError(t, err)

	f.orch.OnFinish(ctx, sess)
	assert.Empty(t, f.dispatcher.sent)
}

func TestChannelOutageLeavesGateOpen(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.succeed = false
	ctx := context.Background()

	id, err := f.st.Sessions().Start(ctx, "t1", "full_etl", nil)
	require.NoError(t, err)
	require.NoError(t, f.st.Sessions().Finish(ctx, id, models.StatusError, nil))
	sess, err := f.st.Sessions().Get(ctx, id)
	require.NoError(t, err)

	f.orch.OnFinish(ctx, sess)
	require.Len(t, f.dispatcher.sent, 1)

	// No record was appended, so the next trigger may retry immediately.
	_, ok, err := f.st.Notifications().LastForKey(ctx, "error_full_etl_t1")
	require.NoError(t, err)
	assert.False(t, ok)

	f.orch.OnFinish(ctx, sess)
	assert.Len(t, f.dispatcher.sent, 2)
}

func TestCheckActivityScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// First observation: no baseline, no alert, snapshot created.
	f.orch.CheckActivity(ctx, models.ActivityObservation{Source: "ozon", ActiveCount: 100, TotalCount: 250})
	assert.Empty(t, f.dispatcher.sent)

	snap, err := f.st.Snapshots().Get(ctx, "ozon")
	require.NoError(t, err)
	assert.Equal(t, int64(100), snap.ActiveCountCurrent)
	assert.Equal(t, int64(0), snap.ActiveCountPrevious)

	// Second observation drops to 60: a 40% swing over the 10% threshold.
	f.orch.CheckActivity(ctx, models.ActivityObservation{Source: "ozon", ActiveCount: 60, TotalCount: 250})
	require.Len(t, f.dispatcher.sent, 1)
	assert.Equal(t, "activity_ozon", f.dispatcher.sent[0].AlertKey)
	assert.Contains(t, f.dispatcher.sent[0].Body, "from 100 to 60")

	last, ok, err := f.st.Notifications().LastForKey(ctx, "activity_ozon")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, last.IsZero())

	snap, err = f.st.Snapshots().Get(ctx, "ozon")
	require.NoError(t, err)
	assert.Equal(t, int64(60), snap.ActiveCountCurrent)
	assert.Equal(t, int64(100), snap.ActiveCountPrevious)
	assert.NotNil(t, snap.NotificationSentAt)
}

func TestCheckActivityBoundaryDoesNotFire(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.orch.CheckActivity(ctx, models.ActivityObservation{Source: "ozon", ActiveCount: 100})
	// Exactly 10% change against a 10% threshold: strictly-greater means no
	// alert, but the slot still advances.
	f.orch.CheckActivity(ctx, models.ActivityObservation{Source: "ozon", ActiveCount: 110})
	assert.Empty(t, f.dispatcher.sent)

	snap, err := f.st.Snapshots().Get(ctx, "ozon")
	require.NoError(t, err)
	assert.Equal(t, int64(110), snap.ActiveCountCurrent)
	assert.Equal(t, int64(100), snap.ActiveCountPrevious)
}

func TestCheckActivityDisabledSourceStillRolls(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.st.Snapshots().Save(ctx, models.ActivitySnapshot{
		Source:             "ozon",
		ActiveCountCurrent: 100,
		LastCheckAt:        time.Now(),
		ThresholdPercent:   10.0,
		MonitoringEnabled:  false,
	}))

	f.orch.CheckActivity(ctx, models.ActivityObservation{Source: "ozon", ActiveCount: 10})
	assert.Empty(t, f.dispatcher.sent)

	snap, err := f.st.Snapshots().Get(ctx, "ozon")
	require.NoError(t, err)
	assert.Equal(t, int64(10), snap.ActiveCountCurrent)
	assert.Equal(t, int64(100), snap.ActiveCountPrevious)
}

func TestSystemAlerts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Empty(t, f.orch.SystemAlerts(ctx))

	// Three recent errors reach the reliability threshold.
	for i := 0; i < 3; i++ {
		id, err := f.st.Sessions().Start(ctx, "t1", "full_etl", nil)
		require.NoError(t, err)
		require.NoError(t, f.st.Sessions().Finish(ctx, id, models.StatusError, nil))
	}
	// One task stuck past the performance threshold.
	_, err := f.st.Sessions().Start(ctx, "t2", "full_etl", nil)
	require.NoError(t, err)

	alerts := f.orch.SystemAlerts(ctx)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.CategoryReliability, alerts[0].Category)
	assert.Equal(t, models.SeverityHigh, alerts[0].Severity)
}

func TestSendDigest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Nothing to report, nothing sent.
	f.orch.SendDigest(ctx)
	assert.Empty(t, f.dispatcher.sent)

	id, err := f.st.Sessions().Start(ctx, "t1", "full_etl", nil)
	require.NoError(t, err)
	require.NoError(t, f.st.Sessions().Finish(ctx, id, models.StatusSuccess, nil))

	f.orch.SendDigest(ctx)
	require.Len(t, f.dispatcher.sent, 1)
	assert.Equal(t, models.TypeDigest, f.dispatcher.sent[0].Type)
	assert.Contains(t, f.dispatcher.sent[0].Body, "full_etl")

	// The digest key cools down like any other alert.
	f.orch.SendDigest(ctx)
	assert.Len(t, f.dispatcher.sent, 1)
}
