package monitor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monitoring-service/internal/alerting"
	"monitoring-service/internal/channels"
	"monitoring-service/internal/config"
	"monitoring-service/internal/logging"
	"monitoring-service/internal/models"
	"monitoring-service/internal/sqlite"
	"monitoring-service/internal/store"
)

type recordingDispatcher struct {
	sent []models.Notification
}

func (d *recordingDispatcher) Dispatch(_ context.Context, n models.Notification) channels.DispatchResult {
	d.sent = append(d.sent, n)
	return channels.DispatchResult{AnySucceeded: true, PerChannel: map[string]bool{"stub": true}}
}

func newTestService(t *testing.T) (*Service, store.Store, *recordingDispatcher) {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	var cfg config.Config
	cfg.Thresholds.PerformanceSeconds = 300
	cfg.Thresholds.ErrorCount = 10
	cfg.Thresholds.CooldownMinutes = 30
	cfg.Thresholds.MaxNotificationsPerHour = 10
	cfg.Thresholds.ActivityThresholdPercent = 10.0
	cfg.Monitor.QueueSize = 10
	cfg.Monitor.MaxWorkers = 1

	logger := logging.NewNop()
	dispatcher := &recordingDispatcher{}
	gate := alerting.NewGate(db.Notifications(), cfg.Cooldown(), cfg.Thresholds.MaxNotificationsPerHour, logger)
	orch := alerting.NewOrchestrator(db, gate, dispatcher, cfg, logger)

	return New(db, orch, logger, cfg), db, dispatcher
}

func TestSessionFlow(t *testing.T) {
	svc, db, dispatcher := newTestService(t)
	ctx := context.Background()

	id, err := svc.StartSession(ctx, "t1", "full_etl", map[string]string{"trigger": "cron"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	svc.UpdateProgress(ctx, id, models.Progress{
		CurrentStep:      "load products",
		RecordsProcessed: 500,
		RecordsTotal:     1000,
	})

	sess, err := db.Sessions().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, sess.Status)
	assert.Equal(t, "load products", sess.CurrentStep)
	assert.InDelta(t, 50.0, sess.ProgressPercent(), 0.01)

	require.NoError(t, svc.Finish(ctx, id, models.StatusSuccess, map[string]string{"records_loaded": "1000"}))

	sess, err = db.Sessions().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, sess.Status)
	assert.NotNil(t, sess.FinishedAt)

	// A clean run raises no alerts.
	assert.Empty(t, dispatcher.sent)
}

func TestFinishWithErrorTriggersAlert(t *testing.T) {
	svc, _, dispatcher := newTestService(t)
	ctx := context.Background()

	id, err := svc.StartSession(ctx, "t1", "full_etl", nil)
	require.NoError(t, err)
	require.NoError(t, svc.Finish(ctx, id, models.StatusError, map[string]string{"error_message": "timeout"}))

	require.Len(t, dispatcher.sent, 1)
	assert.Equal(t, models.TypeError, dispatcher.sent[0].Type)
	assert.Contains(t, dispatcher.sent[0].Body, "timeout")
}

func TestFinishSurfacesTerminalErrors(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	id, err := svc.StartSession(ctx, "t1", "full_etl", nil)
	require.NoError(t, err)
	require.NoError(t, svc.Finish(ctx, id, models.StatusSuccess, nil))

	err = svc.Finish(ctx, id, models.StatusSuccess, nil)
	assert.ErrorIs(t, err, store.ErrAlreadyFinished)

	err = svc.Finish(ctx, "missing", models.StatusSuccess, nil)
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
}

func TestUpdateProgressIsBestEffort(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()

	// Progress against an unknown session logs and returns without panicking.
	svc.UpdateProgress(ctx, "missing", models.Progress{CurrentStep: "x"})

	id, err := svc.StartSession(ctx, "t1", "full_etl", nil)
	require.NoError(t, err)
	require.NoError(t, svc.Finish(ctx, id, models.StatusSuccess, nil))

	// Progress after the terminal transition leaves the session untouched.
	svc.UpdateProgress(ctx, id, models.Progress{CurrentStep: "late"})
	sess, err := db.Sessions().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, sess.Status)
	assert.NotEqual(t, "late", sess.CurrentStep)
}

func TestHandleEvent(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()

	svc.handleEvent(TaskEvent{Event: "started", TaskID: "t1", TaskType: "price_update"})

	active, err := db.Sessions().ActiveSessions(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	id := active[0].ID

	svc.handleEvent(TaskEvent{
		Event:     "progress",
		SessionID: id,
		Progress:  models.Progress{CurrentStep: "updating", RecordsProcessed: 10, RecordsTotal: 40},
	})
	svc.handleEvent(TaskEvent{Event: "finished", SessionID: id, Status: models.StatusSuccess})
	// Unknown event types are logged and ignored.
	svc.handleEvent(TaskEvent{Event: "paused", SessionID: id})

	sess, err := db.Sessions().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, sess.Status)
	assert.Equal(t, int64(10), sess.RecordsProcessed)
}
