package logger

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerRequestID = "X-Request-Id"
	// Twilio stamps every webhook delivery; retries reuse the value.
	headerTwilioIdempotency = "I-Twilio-Idempotency-Token"

	ginKey = "logger"
)

// Middleware injects a request-scoped logger into both the gin context and
// the request context, then logs one summary line per request.
func Middleware(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid := c.GetHeader(headerRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set(headerRequestID, rid)

		reqLogger := l.With("request_id", rid)
		if tok := c.GetHeader(headerTwilioIdempotency); tok != "" {
			reqLogger = reqLogger.With("delivery_id", tok)
		}
		c.Set(ginKey, reqLogger)
		c.Request = c.Request.WithContext(With(c.Request.Context(), reqLogger))

		c.Next()

		status := c.Writer.Status()
		// FullPath is the route template, so per-call tokens in the query never reach the log.
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration_ms", float64(time.Since(start).Milliseconds()),
		}
		switch {
		case len(c.Errors) > 0 || status >= http.StatusInternalServerError:
			if len(c.Errors) > 0 {
				attrs = append(attrs, "errors", c.Errors.String())
			}
			reqLogger.Error("request", attrs...)
		case status >= http.StatusBadRequest:
			reqLogger.Warn("request", attrs...)
		case path == "/healthz":
			reqLogger.Debug("request", attrs...)
		default:
			reqLogger.Info("request", attrs...)
		}
	}
}

// FromGin pulls the request-scoped logger from Gin context.
func FromGin(c *gin.Context) *slog.Logger {
	if v, ok := c.Get(ginKey); ok {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}
