package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/presensync/presensync/backend/go-services/pkg/logger"
	"github.com/presensync/presensync/backend/go-services/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

// RedisRateLimitMiddleware provides a fixed-window Redis-backed limiter shared
// by every replica. A request is allowed while INCR of the current window key
// stays at or below floor(rps*window)+burst. scope separates budgets of
// different route groups.
func RedisRateLimitMiddleware(client *redis.Client, scope string, rps float64, burst int, window time.Duration) gin.HandlerFunc {
	if client == nil {
		return RateLimitMiddleware(rps, burst)
	}
	windowSeconds := int64(window.Seconds())
	if windowSeconds <= 0 {
		windowSeconds = 1
	}
	allowed := int64(rps*float64(windowSeconds)) + int64(burst)
	if scope == "" {
		scope = "default"
	}
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		bucket := time.Now().Unix() / windowSeconds
		key := fmt.Sprintf("rl:%s:%s:%d", scope, rateKey(c), bucket)

		cnt, err := client.Incr(ctx, key).Result()
		if err != nil {
			logger.Errorf("rate limit: redis incr: %v", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Rate limit check failed"})
			return
		}
		if cnt == 1 {
			_ = client.Expire(ctx, key, time.Duration(windowSeconds+1)*time.Second).Err()
		}
		if cnt > allowed {
			c.Header("Retry-After", fmt.Sprintf("%d", windowSeconds))
			metrics.RateLimitRejected.WithLabelValues("redis").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("redis").Inc()
		c.Next()
	}
}
