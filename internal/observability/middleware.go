package observability

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// CorrelationIDHeader carries the request correlation ID on the wire.
	CorrelationIDHeader = "X-Correlation-ID"
)

// CorrelationMiddleware ensures every request carries a correlation ID,
// propagating an incoming one or minting a fresh one.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(CorrelationIDHeader)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		ctx := WithCorrelationID(c.Request.Context(), correlationID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(CorrelationIDHeader, correlationID)

		c.Next()
	}
}

// RequestLoggingMiddleware emits one structured log line per request and
// records request metrics.
func RequestLoggingMiddleware(logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		fields := map[string]interface{}{
			"method":      c.Request.Method,
			"path":        path,
			"status":      status,
			"duration_ms": duration.Milliseconds(),
			"client_ip":   c.ClientIP(),
		}

		ctx := c.Request.Context()
		var requestErr error
		if len(c.Errors) > 0 {
			requestErr = c.Errors.Last()
		}

		switch {
		case status >= 500:
			logger.Error(ctx, "Request failed", requestErr, fields)
		case status >= 400:
			logger.Warn(ctx, "Request rejected", fields)
		default:
			logger.Info(ctx, "Request completed", fields)
		}

		RecordRequestMetrics(c.Request.Method+" "+path, duration, requestErr)
	}
}
