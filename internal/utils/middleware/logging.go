package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/uniedit/mediaupload/internal/utils/logger"
	"github.com/uniedit/mediaupload/internal/utils/requestctx"
)

// Logging returns a middleware that logs HTTP requests. Handlers downstream
// find a logger carrying the request id via logger.FromContext.
func Logging(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		reqLog := log
		if requestID := requestctx.RequestID(c.Request.Context()); requestID != "" {
			reqLog = log.With("request_id", requestID)
		}
		c.Request = c.Request.WithContext(logger.ContextWithLogger(c.Request.Context(), reqLog))

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			logger.Int("status", status),
			logger.String("method", c.Request.Method),
			logger.String("path", path),
			logger.Int64("latency_ms", time.Since(start).Milliseconds()),
			logger.String("client_ip", c.ClientIP()),
		}
		if query != "" {
			attrs = append(attrs, logger.String("query", query))
		}
		if ua := c.Request.UserAgent(); ua != "" {
			attrs = append(attrs, logger.String("user_agent", ua))
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, logger.String("errors", c.Errors.String()))
		}

		msg := "HTTP Request"
		switch {
		case status >= 500:
			reqLog.Error(msg, attrs...)
		case status >= 400:
			reqLog.Warn(msg, attrs...)
		default:
			reqLog.Info(msg, attrs...)
		}
	}
}
