package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/YuminosukeSato/trainedml/pkg/errors"
	"github.com/YuminosukeSato/trainedml/pkg/log"
)

const (
	headerRequestID = "X-Request-ID"
	ctxRequestID    = "request_id"
	ctxLogger       = "logger"
)

// RequestID reuses the caller's X-Request-ID or generates one, echoes it in
// the response and attaches a request-scoped logger to the context.
func RequestID(logger log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(headerRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(ctxRequestID, requestID)
		c.Set(ctxLogger, logger.With(log.RequestIDKey, requestID))
		c.Header(headerRequestID, requestID)

		c.Next()
	}
}

// Logging writes one line per request once the handler has returned.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger := requestLogger(c)
		fields := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			log.DurationMsKey, time.Since(start).Milliseconds(),
		}
		if c.Writer.Status() >= 500 {
			logger.Error("Request failed", fields...)
			return
		}
		logger.Info("Request handled", fields...)
	}
}

// Recovery turns a panic in a handler into a 500 response.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		var err error
		func() {
			defer errors.Recover(&err, c.FullPath())
			c.Next()
		}()
		if err != nil {
			requestLogger(c).Error("Handler panicked", err)
			c.Abort()
			writeError(c, err)
		}
	}
}

func requestLogger(c *gin.Context) log.Logger {
	if v, ok := c.Get(ctxLogger); ok {
		if l, ok := v.(log.Logger); ok {
			return l
		}
	}
	return log.GetLogger()
}
