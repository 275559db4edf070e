package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"async-import/internal/logger"
)

// AccessLog logs one structured line per request through the application
// logger. Health probes and scrapes are logged at debug level.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		attrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
		}

		log := logger.WithRequestID(GetRequestID(c))
		switch {
		case isProbe(path):
			log.Debug("http request", attrs...)
		case c.Writer.Status() >= 500:
			log.Error("http request", attrs...)
		default:
			log.Info("http request", attrs...)
		}
	}
}
