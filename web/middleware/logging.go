package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/taskboard/taskboard/logger"
	"github.com/taskboard/taskboard/util/metrics"
)

const requestIDHeader = "X-Request-ID"

// RequestLogger tags every request with an id, logs it once finished and
// feeds the HTTP metrics. Paths in skip are neither logged nor measured.
func RequestLogger(skip ...string) gin.HandlerFunc {
	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipped[p] = true
	}
	return func(c *gin.Context) {
		if skipped[c.Request.URL.Path] {
			c.Next()
			return
		}
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)

		start := time.Now()
		metrics.HTTPInFlight.Inc()
		c.Next()
		metrics.HTTPInFlight.Dec()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(elapsed.Seconds())

		line := fmt.Sprintf("%s %s %d %s ip=%s id=%s", c.Request.Method, path, status, elapsed.Round(time.Microsecond), c.ClientIP(), id)
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error(line)
		case status >= http.StatusBadRequest:
			logger.Warning(line)
		default:
			logger.Debug(line)
		}
	}
}

// Recovery turns a panic into a 500 envelope.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Errorf("panic serving %s %s: %v", c.Request.Method, c.Request.URL.Path, recovered)
		abortWithError(c, fmt.Errorf("panic: %v", recovered))
	})
}
