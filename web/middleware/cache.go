package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/taskboard/taskboard/logger"
	"github.com/taskboard/taskboard/web/cache"
)

const cacheHeader = "X-Cache"

// bodyRecorder copies everything written to the client.
type bodyRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// CacheMiddleware serves GET responses that are the same for every caller
// from Redis. Only 200 answers are stored. Without Redis it is a no-op.
func CacheMiddleware(ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := generateCacheKey(c.Request.URL.Path, c.Request.URL.RawQuery)
		if data, err := cache.Get(ctx, key); err == nil {
			c.Header(cacheHeader, "HIT")
			c.Data(http.StatusOK, "application/json; charset=utf-8", data)
			c.Abort()
			return
		} else if !errors.Is(err, cache.ErrMiss) {
			logger.Debug("response cache unavailable:", err)
			c.Next()
			return
		}

		c.Header(cacheHeader, "MISS")
		rec := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		if rec.Status() == http.StatusOK && rec.body.Len() > 0 {
			if err := cache.Set(ctx, key, rec.body.Bytes(), ttl); err != nil {
				logger.Warning("failed to cache", key, err)
			}
		}
	}
}

// InvalidateCache drops every cached response of path, whatever its query.
func InvalidateCache(ctx context.Context, path string) {
	if err := cache.DeletePrefix(ctx, generateCacheKey(path, "")); err != nil {
		logger.Debug("cache invalidation skipped:", err)
	}
}

func generateCacheKey(path, query string) string {
	key := fmt.Sprintf("http:%s", path)
	if query != "" {
		hash := sha256.Sum256([]byte(query))
		key += ":" + hex.EncodeToString(hash[:])[:16]
	}
	return key
}
