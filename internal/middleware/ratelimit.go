package middleware

import (
	"net/http"
	"time"

	"github.com/assessly/assessly-backend/internal/config"
	"github.com/assessly/assessly-backend/internal/response"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimiter implements a fixed-window per-IP rate limiter backed by Redis,
// so the limit holds across server replicas.
type RateLimiter struct {
	rdb      *redis.Client
	scope    string
	limit    int
	interval time.Duration
}

// NewRateLimiter creates a RateLimiter (e.g., 30 requests per minute).
// scope namespaces the Redis keys so separate route groups get separate buckets.
func NewRateLimiter(rdb *redis.Client, scope string, limit int, interval time.Duration) *RateLimiter {
	return &RateLimiter{rdb: rdb, scope: scope, limit: limit, interval: interval}
}

// Middleware returns a Gin middleware that rate-limits requests by client IP.
// Redis being unreachable fails open: auth still works without the limiter.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := config.CacheKey.RateLimitKey(rl.scope, c.ClientIP())
		ctx := c.Request.Context()

		count, err := rl.rdb.Incr(ctx, key).Result()
		if err != nil {
			c.Next()
			return
		}
		if count == 1 {
			rl.rdb.Expire(ctx, key, rl.interval)
		}

		if count > int64(rl.limit) {
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}

		c.Next()
	}
}
