package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"monitoring-service/internal/logging"
)

// RequestLoggingMiddleware logs one line per request with the method,
// path, response status, and latency.
func RequestLoggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method
		c.Next()
		logger.Infof("Request: %s %s, Status: %d, Latency: %v",
			method, path, c.Writer.Status(), time.Since(start))
	}
}
