package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/presensync/presensync/backend/go-services/pkg/metrics"
	"golang.org/x/time/rate"
)

// rateKey picks the limiter key: the authenticated uid when AuthMiddleware ran
// earlier in the chain, otherwise the client IP.
func rateKey(c *gin.Context) string {
	if uid := UID(c); uid != "" {
		return "uid:" + uid
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

// RateLimitMiddleware returns a Gin middleware enforcing a token-bucket per-key limit.
// Every call gets its own limiter set, so route groups can carry separate budgets.
// rps = allowed events per second, burst = maximum tokens in bucket.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	if burst <= 0 {
		burst = 1
	}
	var limiters sync.Map // map[string]*rate.Limiter
	return func(c *gin.Context) {
		key := rateKey(c)
		v, _ := limiters.LoadOrStore(key, rate.NewLimiter(rate.Limit(rps), burst))
		if !v.(*rate.Limiter).Allow() {
			c.Header("Retry-After", "1")
			metrics.RateLimitRejected.WithLabelValues("memory").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("memory").Inc()
		c.Next()
	}
}
