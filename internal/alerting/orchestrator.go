package alerting

import (
	"context"
	"fmt"
	"time"

	"monitoring-service/internal/channels"
	"monitoring-service/internal/config"
	"monitoring-service/internal/logging"
	"monitoring-service/internal/models"
	"monitoring-service/internal/store"
)

// Dispatcher fans one notification out to the delivery channels.
type Dispatcher interface {
	Dispatch(ctx context.Context, n models.Notification) channels.DispatchResult
}

// Orchestrator glues the evaluator, the gate, and the dispatcher. It holds
// no mutable state; every trigger is an independent unit of work, and every
// error on the alerting path is logged and swallowed so that monitoring
// never gates the business task.
type Orchestrator struct {
	sessions   store.Sessions
	snapshots  store.Snapshots
	records    store.Notifications
	gate       *Gate
	dispatcher Dispatcher
	cfg        config.Config
	logger     *logging.Logger
	now        func() time.Time
}

func NewOrchestrator(
	st store.Store,
	gate *Gate,
	dispatcher Dispatcher,
	cfg config.Config,
	logger *logging.Logger,
) *Orchestrator {
	return &Orchestrator{
		sessions:   st.Sessions(),
		snapshots:  st.Snapshots(),
		records:    st.Notifications(),
		gate:       gate,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// OnProgress runs the slow-task check for a running session. Triggered on
// every progress update.
func (o *Orchestrator) OnProgress(ctx context.Context, sess models.Session) {
	runningSeconds := int64(o.now().Sub(sess.StartedAt).Seconds())
	if !IsSlow(runningSeconds, int64(o.cfg.Thresholds.PerformanceSeconds)) {
		return
	}

	alertKey := fmt.Sprintf("perf_%s_%s", sess.TaskType, sess.TaskID)
	if !o.gate.MayNotify(ctx, alertKey) {
		return
	}

	n := models.Notification{
		AlertKey: alertKey,
		Type:     models.TypePerformance,
		Severity: models.SeverityMedium,
		Subject:  fmt.Sprintf("Slow task: %s", sess.TaskID),
		Body: fmt.Sprintf(
			"Task %s (%s) has been running for %ds, threshold is %ds.\nCurrent step: %s\nProgress: %d/%d (%.1f%%)",
			sess.TaskID, sess.TaskType, runningSeconds, o.cfg.Thresholds.PerformanceSeconds,
			sess.CurrentStep, sess.RecordsProcessed, sess.RecordsTotal, sess.ProgressPercent(),
		),
		CreatedAt: o.now(),
	}
	o.send(ctx, n)
}

// OnFinish runs the error-burst check when a session ends with an error.
// Triggered on every terminal transition.
func (o *Orchestrator) OnFinish(ctx context.Context, sess models.Session) {
	if sess.Status != models.StatusError {
		return
	}

	recentErrors, err := o.sessions.CountErrorsSince(ctx, o.now().Add(-time.Hour))
	if err != nil {
		o.logger.Errorf("Alerting: error count failed (trigger=finish, task=%s): %v", sess.TaskID, err)
		recentErrors = 1 // the error at hand still counts
	}

	alertKey := fmt.Sprintf("error_%s_%s", sess.TaskType, sess.TaskID)
	if !o.gate.MayNotify(ctx, alertKey) {
		return
	}

	errMsg := sess.Results["error_message"]
	if errMsg == "" {
		errMsg = "task failed without an error message"
	}

	severity := models.SeverityMedium
	subject := fmt.Sprintf("Task failed: %s", sess.TaskID)
	body := fmt.Sprintf("Task %s (%s) finished with an error after %ds.\nError: %s",
		sess.TaskID, sess.TaskType, sess.DurationSeconds, errMsg)
	if IsErrorBurst(recentErrors, o.cfg.Thresholds.ErrorCount) {
		severity = models.SeverityHigh
		subject = fmt.Sprintf("Error burst: %d failures in the last hour", recentErrors)
		body += fmt.Sprintf("\n\n%d tasks failed within the last hour (threshold %d).",
			recentErrors, o.cfg.Thresholds.ErrorCount)
	}

	o.send(ctx, models.Notification{
		AlertKey:  alertKey,
		Type:      models.TypeError,
		Severity:  severity,
		Subject:   subject,
		Body:      body,
		CreatedAt: o.now(),
	})
}

// CheckActivity rolls the snapshot for one source and alerts on a swing in
// the active count. The previous/current slot always advances, whether or
// not a notification fires.
func (o *Orchestrator) CheckActivity(ctx context.Context, obs models.ActivityObservation) {
	snap, err := o.snapshots.Get(ctx, obs.Source)
	if err == store.ErrSnapshotNotFound {
		snap = models.ActivitySnapshot{
			Source:            obs.Source,
			ThresholdPercent:  o.cfg.Thresholds.ActivityThresholdPercent,
			MonitoringEnabled: true,
		}
	} else if err != nil {
		o.logger.Errorf("Alerting: snapshot load failed (trigger=activity, source=%s): %v", obs.Source, err)
		return
	}

	// One-slot rolling history: old current becomes previous.
	snap.ActiveCountPrevious = snap.ActiveCountCurrent
	snap.ActiveCountCurrent = obs.ActiveCount
	snap.TotalCountCurrent = obs.TotalCount
	snap.LastCheckAt = o.now()

	if snap.MonitoringEnabled {
		change := ActivityChange(snap)
		alertKey := fmt.Sprintf("activity_%s", obs.Source)
		if change.ThresholdExceeded && o.gate.MayNotify(ctx, alertKey) {
			direction := "dropped"
			if snap.ActiveCountCurrent > snap.ActiveCountPrevious {
				direction = "grew"
			}
			n := models.Notification{
				AlertKey: alertKey,
				Type:     models.TypeActivityChange,
				Severity: models.SeverityMedium,
				Subject:  fmt.Sprintf("Activity change on %s: %.1f%%", obs.Source, change.ChangePercent),
				Body: fmt.Sprintf(
					"Active count for %s %s from %d to %d (%.1f%%, threshold %.1f%%).\n"+
						"Total items: %d.\nRecommendation: check the most recent import runs for this source.",
					obs.Source, direction, snap.ActiveCountPrevious, snap.ActiveCountCurrent,
					change.ChangePercent, snap.ThresholdPercent, snap.TotalCountCurrent,
				),
				CreatedAt: o.now(),
			}
			if o.send(ctx, n) {
				sentAt := o.now()
				snap.NotificationSentAt = &sentAt
			}
		}
	}

	if err := o.snapshots.Save(ctx, snap); err != nil {
		o.logger.Errorf("Alerting: snapshot save failed (source=%s): %v", obs.Source, err)
	}
}

// send dispatches an approved notification and appends the audit record.
// The record is appended only after a successful dispatch so that a full
// channel outage does not start the cooldown window; the next trigger gets
// another chance. Returns whether any channel delivered.
func (o *Orchestrator) send(ctx context.Context, n models.Notification) bool {
	result := o.dispatcher.Dispatch(ctx, n)
	if !result.AnySucceeded {
		o.logger.Errorf("Alerting: all channels failed for key %s, cooldown not started", n.AlertKey)
		return false
	}

	rec := models.NotificationRecord{
		AlertKey:  n.AlertKey,
		Type:      n.Type,
		Message:   n.Subject,
		CreatedAt: o.now(),
	}
	if err := o.records.Append(ctx, rec); err != nil {
		// A lost audit row degrades future cooldown precision only.
		o.logger.Errorf("Alerting: record append failed for key %s: %v", n.AlertKey, err)
	}
	return true
}

// SystemAlerts computes current health findings for dashboard polling.
// Nothing is dispatched and nothing is persisted; each check independently
// yields zero or one alert, and a failing check never hides the others.
func (o *Orchestrator) SystemAlerts(ctx context.Context) []models.SystemAlert {
	alerts := []models.SystemAlert{}
	perfThreshold := int64(o.cfg.Thresholds.PerformanceSeconds)

	active, err := o.sessions.ActiveSessions(ctx)
	if err != nil {
		o.logger.Errorf("Alerting: active sessions query failed (trigger=system): %v", err)
	} else {
		stuck := 0
		for _, sess := range active {
			if IsSlow(sess.RunningSeconds, perfThreshold) {
				stuck++
			}
		}
		if stuck > 0 {
			alerts = append(alerts, models.SystemAlert{
				Type:     models.AlertTypeWarning,
				Category: models.CategoryPerformance,
				Severity: models.SeverityMedium,
				Message:  fmt.Sprintf("%d task(s) running longer than %ds", stuck, perfThreshold),
			})
		}
	}

	recentErrors, err := o.sessions.CountErrorsSince(ctx, o.now().Add(-time.Hour))
	if err != nil {
		o.logger.Errorf("Alerting: error count failed (trigger=system): %v", err)
	} else if IsErrorBurst(recentErrors, o.cfg.Thresholds.ErrorCount) {
		alerts = append(alerts, models.SystemAlert{
			Type:     models.AlertTypeError,
			Category: models.CategoryReliability,
			Severity: models.SeverityHigh,
			Message:  fmt.Sprintf("%d task(s) failed in the last hour (threshold %d)", recentErrors, o.cfg.Thresholds.ErrorCount),
		})
	}

	avgDuration, err := o.sessions.AvgDurationSince(ctx, o.now().Add(-24*time.Hour))
	if err != nil {
		o.logger.Errorf("Alerting: average duration query failed (trigger=system): %v", err)
	} else if IsDegraded(avgDuration, perfThreshold) {
		alerts = append(alerts, models.SystemAlert{
			Type:     models.AlertTypeWarning,
			Category: models.CategoryPerformance,
			Severity: models.SeverityLow,
			Message:  fmt.Sprintf("Average task duration over 24h is %.0fs, threshold is %ds", avgDuration, perfThreshold),
		})
	}

	return alerts
}

// SendDigest dispatches a periodic summary of the trailing 24 hours. It
// shares the gate with regular alerts under a fixed key.
func (o *Orchestrator) SendDigest(ctx context.Context) {
	const alertKey = "digest"
	if !o.gate.MayNotify(ctx, alertKey) {
		return
	}

	metrics, err := o.sessions.PerformanceMetrics(ctx, 1)
	if err != nil {
		o.logger.Errorf("Alerting: digest metrics query failed: %v", err)
		return
	}
	if len(metrics) == 0 {
		return
	}

	body := "Task activity over the last 24 hours:\n"
	for _, m := range metrics {
		body += fmt.Sprintf("- %s: %d run(s), avg %.0fs, max %ds, %.0f%% success\n",
			m.TaskType, m.Runs, m.AvgDurationSeconds, m.MaxDurationSeconds, m.SuccessRate)
	}

	o.send(ctx, models.Notification{
		AlertKey:  alertKey,
		Type:      models.TypeDigest,
		Severity:  models.SeverityLow,
		Subject:   "Daily import digest",
		Body:      body,
		CreatedAt: o.now(),
	})
}
