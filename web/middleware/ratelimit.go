package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/taskboard/taskboard/logger"
	"github.com/taskboard/taskboard/util/common"
	"github.com/taskboard/taskboard/util/metrics"
	"github.com/taskboard/taskboard/web/cache"
)

// RateLimitConfig configures the fixed-window limiter.
type RateLimitConfig struct {
	RequestsPerMinute int
	KeyFunc           func(c *gin.Context) string
}

func DefaultRateLimitConfig(perMinute int) RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: perMinute,
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
	}
}

// TrustProxies restricts which peers may set X-Forwarded-For and X-Real-IP.
// With no proxies ClientIP is always the socket peer, so clients cannot pick
// their own rate limit key.
func TrustProxies(engine *gin.Engine, proxies []string) error {
	if len(proxies) == 0 {
		proxies = nil
	}
	return engine.SetTrustedProxies(proxies)
}

// RateLimitMiddleware counts requests per key and path in Redis and rejects
// the excess with 429. It fails open when Redis is unavailable.
func RateLimitMiddleware(config RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if config.RequestsPerMinute <= 0 {
			c.Next()
			return
		}
		path := c.FullPath()
		key := "ratelimit:" + config.KeyFunc(c) + ":" + path

		count, ttl, err := cache.IncrWindow(c.Request.Context(), key, time.Minute)
		if err != nil {
			logger.Warning("rate limit increment failed:", err)
			c.Next()
			return
		}

		remaining := config.RequestsPerMinute - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(config.RequestsPerMinute))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))

		if int(count) > config.RequestsPerMinute {
			logger.Warningf("rate limit exceeded for %s on %s (count: %d)", config.KeyFunc(c), path, count)
			metrics.RateLimitHits.WithLabelValues(path).Inc()
			c.Header("Retry-After", strconv.Itoa(int(ttl.Seconds())))
			abortWithError(c, common.FailWithStatus(common.ErrBadRequest, http.StatusTooManyRequests, "Too many requests, please try again later"))
			return
		}
		c.Next()
	}
}
