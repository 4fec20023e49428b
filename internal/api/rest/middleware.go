package rest

import (
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// LoggerMiddleware логирует каждый запрос; уровень зависит от статуса ответа.
func LoggerMiddleware(logger *log.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		statusCode := c.Writer.Status()
		entry := logger.WithFields(log.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     statusCode,
			"latency_ms": time.Since(started).Milliseconds(),
			"client_ip":  c.ClientIP(),
		})

		switch {
		case statusCode >= 500:
			entry.Error("http request failed")
		case statusCode >= 400:
			entry.Warn("http request rejected")
		default:
			entry.Debug("http request served")
		}
	}
}
