package http

import (
	"log/slog"
	"time"

	"github.com/astro-web3/teams-gate/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-Id"
	ctxKeyRequestID = "teamsgate.request_id"
)

// requestIDMiddleware keeps a caller-supplied request id or mints one, and
// echoes it on the response.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			c.Request.Header.Set(requestIDHeader, id)
		}
		c.Set(ctxKeyRequestID, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		attrs := []slog.Attr{
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", status),
			slog.Duration("duration", duration),
			slog.String("request_id", c.GetString(ctxKeyRequestID)),
		}
		if teamID := c.GetString(ctxKeyTeamID); teamID != "" {
			attrs = append(attrs, slog.String("team_id", teamID))
		}

		if status >= 500 {
			logger.ErrorContext(c.Request.Context(), "request failed", attrs...)
		} else {
			logger.InfoContext(c.Request.Context(), "request completed", attrs...)
		}
	}
}
