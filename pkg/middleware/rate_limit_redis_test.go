package middleware

import (
	"net/http"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisRateLimitMiddleware_Basic(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})

	r := gin.New()
	r.Use(RedisRateLimitMiddleware(client, "api", 0, 1, time.Minute)) // one request per minute
	r.GET("/r", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	require.Equal(t, http.StatusOK, hit(r, "/r"))
	require.Equal(t, http.StatusTooManyRequests, hit(r, "/r"))

	// the window key expires
	m.FastForward(2 * time.Minute)
	require.Equal(t, http.StatusOK, hit(r, "/r"))
}

func TestRedisRateLimitMiddleware_ScopesAreIndependent(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})

	r := gin.New()
	r.GET("/login", RedisRateLimitMiddleware(client, "auth", 0, 1, time.Minute), func(c *gin.Context) { c.Status(200) })
	r.GET("/api", RedisRateLimitMiddleware(client, "api", 0, 1, time.Minute), func(c *gin.Context) { c.Status(200) })

	require.Equal(t, http.StatusOK, hit(r, "/login"))
	require.Equal(t, http.StatusTooManyRequests, hit(r, "/login"))
	require.Equal(t, http.StatusOK, hit(r, "/api"))
}

func TestRedisRateLimitMiddleware_NilClientFallsBack(t *testing.T) {
	r := gin.New()
	r.Use(RedisRateLimitMiddleware(nil, "api", 0.1, 1, time.Second))
	r.GET("/r", func(c *gin.Context) { c.Status(200) })
	require.Equal(t, http.StatusOK, hit(r, "/r"))
	require.Equal(t, http.StatusTooManyRequests, hit(r, "/r"))
}
