package http

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/campusnote/termcycle/pkg/logger"
)

const (
	requestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"

	// requestIDMaxLen caps ids taken from the client.
	requestIDMaxLen = 64
)

// requestID reads X-Request-ID or generates one and echoes it back.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" || len(rid) > requestIDMaxLen {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Header(requestIDHeader, rid)
		c.Next()
	}
}

// requestLogger logs every request after it is handled.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		kv := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			logger.KeyDuration, time.Since(start).String(),
			logger.KeyRequest, c.GetString(requestIDKey),
		}
		if len(c.Errors) > 0 {
			kv = append(kv, logger.KeyError, c.Errors.String())
		}

		switch {
		case status >= http.StatusInternalServerError:
			s.logger.Error("http request", kv...)
		case status >= http.StatusBadRequest:
			s.logger.Warn("http request", kv...)
		default:
			s.logger.Debug("http request", kv...)
		}
	}
}

// recovery turns a handler panic into a 500 response.
func (s *Server) recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		s.logger.Error("panic recovered",
			logger.KeyError, recovered,
			"path", c.Request.URL.Path,
			"stack", string(debug.Stack()),
			logger.KeyRequest, c.GetString(requestIDKey),
		)
		writeError(c, http.StatusInternalServerError, "internal_server_error", "An unexpected error occurred")
	})
}
