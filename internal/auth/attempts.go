package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// AttemptLimiter counts failed sign-ins per key (the normalized email).
type AttemptLimiter interface {
	Blocked(ctx context.Context, key string) (bool, error)
	Fail(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

// RedisAttempts is a fixed-window failure counter shared by every instance.
type RedisAttempts struct {
	client *redis.Client
	max    int
	window time.Duration
}

func NewRedisAttempts(client *redis.Client, max int, window time.Duration) *RedisAttempts {
	return &RedisAttempts{client: client, max: max, window: window}
}

func (r *RedisAttempts) key(k string) string { return "auth:failures:" + k }

func (r *RedisAttempts) Blocked(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Get(ctx, r.key(key)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return n >= r.max, nil
}

func (r *RedisAttempts) Fail(ctx context.Context, key string) error {
	n, err := r.client.Incr(ctx, r.key(key)).Result()
	if err != nil {
		return err
	}
	if n == 1 {
		return r.client.Expire(ctx, r.key(key), r.window).Err()
	}
	return nil
}

func (r *RedisAttempts) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

// MemoryAttempts is a per-process token bucket: max failures fit in the
// bucket, one is forgiven every window/max.
type MemoryAttempts struct {
	max    int
	window time.Duration
	mu     sync.Mutex
	lims   map[string]*rate.Limiter
}

func NewMemoryAttempts(max int, window time.Duration) *MemoryAttempts {
	if max <= 0 {
		max = 5
	}
	return &MemoryAttempts{max: max, window: window, lims: map[string]*rate.Limiter{}}
}

func (m *MemoryAttempts) limiter(key string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	lim, ok := m.lims[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(m.window/time.Duration(m.max)), m.max)
		m.lims[key] = lim
	}
	return lim
}

func (m *MemoryAttempts) Blocked(ctx context.Context, key string) (bool, error) {
	return m.limiter(key).Tokens() < 1, nil
}

func (m *MemoryAttempts) Fail(ctx context.Context, key string) error {
	m.limiter(key).Allow()
	return nil
}

func (m *MemoryAttempts) Reset(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lims, key)
	return nil
}
