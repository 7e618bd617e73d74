package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monitoring-service/internal/alerting"
	"monitoring-service/internal/channels"
	"monitoring-service/internal/config"
	"monitoring-service/internal/logging"
	"monitoring-service/internal/models"
	"monitoring-service/internal/monitor"
	"monitoring-service/internal/sqlite"
	"monitoring-service/internal/store"
)

func newTestRouter(t *testing.T) (*gin.Engine, store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	var cfg config.Config
	cfg.API.BasePath = "/api/v0"
	cfg.Thresholds.PerformanceSeconds = 300
	cfg.Thresholds.ErrorCount = 10
	cfg.Thresholds.CooldownMinutes = 30
	cfg.Thresholds.MaxNotificationsPerHour = 10
	cfg.Monitor.QueueSize = 10

	logger := logging.NewNop()
	dispatcher := channels.NewDispatcher(logger)
	gate := alerting.NewGate(db.Notifications(), cfg.Cooldown(), cfg.Thresholds.MaxNotificationsPerHour, logger)
	orch := alerting.NewOrchestrator(db, gate, dispatcher, cfg, logger)
	svc := monitor.New(db, orch, logger, cfg)
	handler := NewHandler(db, svc, orch, nil, logger)

	return NewRouter(logger, cfg, handler), db
}

func TestRecentNotificationsEndpoint(t *testing.T) {
	router, db := newTestRouter(t)
	ctx := context.Background()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v0/notifications", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	base := time.Now().Add(-time.Hour)
	for i, key := range []string{"error_full_etl_t1", "activity_ozon"} {
		require.NoError(t, db.Notifications().Append(ctx, models.NotificationRecord{
			AlertKey:  key,
			Type:      models.TypeError,
			Message:   "m",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v0/notifications", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var records []models.NotificationRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	require.Len(t, records, 2)
	// Newest first.
	assert.Equal(t, "activity_ozon", records[0].AlertKey)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v0/notifications?limit=1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	records = nil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	assert.Len(t, records, 1)
}
