package api

import (
	"github.com/gin-gonic/gin"

	"monitoring-service/internal/config"
	"monitoring-service/internal/logging"
)

func NewRouter(logger *logging.Logger, cfg config.Config, h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))

	api := r.Group(cfg.API.BasePath)
	{
		// Session lifecycle (task runners)
		api.POST("/sessions", h.StartSession)
		api.PUT("/sessions/:id/progress", h.UpdateProgress)
		api.POST("/sessions/:id/finish", h.FinishSession)

		// Read models (dashboards)
		api.GET("/sessions/active", h.ActiveSessions)
		api.GET("/sessions/history", h.SessionHistory)
		api.GET("/sessions/:id", h.GetSession)
		api.GET("/alerts/system", h.SystemAlerts)
		api.GET("/notifications", h.RecentNotifications)
		api.GET("/metrics/performance", h.PerformanceMetrics)
		api.GET("/metrics/errors", h.ErrorStatistics)
		api.GET("/activity/snapshots", h.ActivitySnapshots)

		// Activity counts (ETL jobs push, the checker reads)
		api.POST("/activity/counts", h.ReportActivityCounts)
	}

	// Dashboard alert stream
	r.GET("/ws", h.Subscribe)

	return r
}
