package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// package-level Redis client used for the access-token blacklist
var blacklistClient *redis.Client

// local blacklist used when Redis is not configured: token -> expiry
var localBlacklist sync.Map

// SetBlacklistClient configures the Redis client used for blacklist operations.
// With nil, tokens are blacklisted in process memory instead.
func SetBlacklistClient(c *redis.Client) {
	blacklistClient = c
}

func blacklistKey(token string) string { return "blacklist:access:" + token }

// BlacklistAccessToken revokes token until ttl elapses.
func BlacklistAccessToken(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if blacklistClient == nil {
		localBlacklist.Store(token, time.Now().Add(ttl))
		return nil
	}
	return blacklistClient.Set(ctx, blacklistKey(token), "1", ttl).Err()
}

// IsAccessTokenBlacklisted returns true when the token was revoked and has not expired yet.
func IsAccessTokenBlacklisted(ctx context.Context, token string) (bool, error) {
	if blacklistClient == nil {
		v, ok := localBlacklist.Load(token)
		if !ok {
			return false, nil
		}
		if time.Now().After(v.(time.Time)) {
			localBlacklist.Delete(token)
			return false, nil
		}
		return true, nil
	}
	exists, err := blacklistClient.Exists(ctx, blacklistKey(token)).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}
