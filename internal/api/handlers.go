package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"monitoring-service/internal/alerting"
	"monitoring-service/internal/channels"
	"monitoring-service/internal/logging"
	"monitoring-service/internal/models"
	"monitoring-service/internal/monitor"
	"monitoring-service/internal/store"
)

type Handler struct {
	store        store.Store
	svc          *monitor.Service
	orchestrator *alerting.Orchestrator
	hub          *channels.WSHub
	logger       *logging.Logger
}

func NewHandler(st store.Store, svc *monitor.Service, orchestrator *alerting.Orchestrator, hub *channels.WSHub, logger *logging.Logger) *Handler {
	return &Handler{store: st, svc: svc, orchestrator: orchestrator, hub: hub, logger: logger}
}

type startSessionRequest struct {
	TaskID   string            `json:"task_id" binding:"required"`
	TaskType string            `json:"task_type" binding:"required"`
	Metadata map[string]string `json:"metadata"`
}

func (h *Handler) StartSession(c *gin.Context) {
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorf("Invalid start-session body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	sessionID, err := h.svc.StartSession(c.Request.Context(), req.TaskID, req.TaskType, req.Metadata)
	if err != nil {
		h.logger.Errorf("Failed to start session for task %s: %v", req.TaskID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start session"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"session_id": sessionID})
}

func (h *Handler) UpdateProgress(c *gin.Context) {
	var p models.Progress
	if err := c.ShouldBindJSON(&p); err != nil {
		h.logger.Errorf("Invalid progress body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	// Progress is best-effort: the service logs failures, the task is never
	// held up waiting on an outcome.
	h.svc.UpdateProgress(c.Request.Context(), c.Param("id"), p)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

type finishSessionRequest struct {
	Status  models.SessionStatus `json:"status" binding:"required"`
	Results map[string]string    `json:"results"`
}

func (h *Handler) FinishSession(c *gin.Context) {
	var req finishSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorf("Invalid finish body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if !req.Status.Terminal() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Status must be success, error, or cancelled"})
		return
	}

	sessionID := c.Param("id")
	err := h.svc.Finish(c.Request.Context(), sessionID, req.Status, req.Results)
	switch {
	case errors.Is(err, store.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
	case errors.Is(err, store.ErrAlreadyFinished):
		c.JSON(http.StatusConflict, gin.H{"error": "Session already finished"})
	case err != nil:
		h.logger.Errorf("Failed to finish session %s: %v", sessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to finish session"})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "finished"})
	}
}

func (h *Handler) GetSession(c *gin.Context) {
	sessionID := c.Param("id")
	sess, err := h.store.Sessions().Get(c.Request.Context(), sessionID)
	if errors.Is(err, store.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	if err != nil {
		h.logger.Errorf("Failed to get session %s: %v", sessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get session"})
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *Handler) ActiveSessions(c *gin.Context) {
	sessions, err := h.store.Sessions().ActiveSessions(c.Request.Context())
	if err != nil {
		// Dashboards get an empty list and a logged error, never a failure page.
		h.logger.Errorf("Failed to get active sessions: %v", err)
		sessions = nil
	}
	if sessions == nil {
		sessions = []models.Session{}
	}
	c.JSON(http.StatusOK, sessions)
}

func (h *Handler) SessionHistory(c *gin.Context) {
	f := models.SessionFilters{
		TaskType: c.Query("task_type"),
		Status:   models.SessionStatus(c.Query("status")),
	}
	if from := c.Query("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			f.From = t
		}
	}
	if to := c.Query("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			f.To = t
		}
	}
	limit := 50
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = v
	}

	sessions, err := h.store.Sessions().History(c.Request.Context(), f, limit)
	if err != nil {
		h.logger.Errorf("Failed to get session history: %v", err)
		sessions = nil
	}
	if sessions == nil {
		sessions = []models.Session{}
	}
	c.JSON(http.StatusOK, sessions)
}

func (h *Handler) SystemAlerts(c *gin.Context) {
	c.JSON(http.StatusOK, h.orchestrator.SystemAlerts(c.Request.Context()))
}

func (h *Handler) PerformanceMetrics(c *gin.Context) {
	days := queryDays(c, 7)
	metrics, err := h.store.Sessions().PerformanceMetrics(c.Request.Context(), days)
	if err != nil {
		h.logger.Errorf("Failed to get performance metrics: %v", err)
		metrics = nil
	}
	if metrics == nil {
		metrics = []models.TaskTypeMetrics{}
	}
	c.JSON(http.StatusOK, metrics)
}

func (h *Handler) ErrorStatistics(c *gin.Context) {
	days := queryDays(c, 7)
	stats, err := h.store.Sessions().ErrorStatistics(c.Request.Context(), days)
	if err != nil {
		h.logger.Errorf("Failed to get error statistics: %v", err)
		stats = nil
	}
	if stats == nil {
		stats = []models.ErrorStat{}
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) ActivitySnapshots(c *gin.Context) {
	snaps, err := h.store.Snapshots().List(c.Request.Context())
	if err != nil {
		h.logger.Errorf("Failed to list snapshots: %v", err)
		snaps = nil
	}
	if snaps == nil {
		snaps = []models.ActivitySnapshot{}
	}
	c.JSON(http.StatusOK, snaps)
}

func (h *Handler) RecentNotifications(c *gin.Context) {
	limit := 50
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = v
	}

	records, err := h.store.Notifications().Recent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Errorf("Failed to get recent notifications: %v", err)
		records = nil
	}
	if records == nil {
		records = []models.NotificationRecord{}
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) ReportActivityCounts(c *gin.Context) {
	var obs models.ActivityObservation
	if err := c.ShouldBindJSON(&obs); err != nil || obs.Source == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.store.Snapshots().SaveCounts(c.Request.Context(), obs); err != nil {
		h.logger.Errorf("Failed to save counts for %s: %v", obs.Source, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save counts"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func queryDays(c *gin.Context, def int) int {
	if v, err := strconv.Atoi(c.Query("days")); err == nil && v > 0 {
		return v
	}
	return def
}
