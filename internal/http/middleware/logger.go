package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"iris.app/engage/common/logger"
)

// Logger emits one structured access log line per request, with the
// trace context attached by the slog handler.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{
			Component: "engage.http",
		})
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= 500 {
			level = slog.LevelError
		}

		slog.LogAttrs(ctx, level, "http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			slog.String("client_ip", c.ClientIP()))
	}
}
