package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const defaultLimitPerSec int64 = 20

// RedisRateLimiter is a distributed per-actor, per-second limiter backed by Redis.
type RedisRateLimiter struct {
	window      fixedWindow
	limitPerSec int64
}

func NewRedisRateLimiter(client *goredis.Client, limitPerSec int) (*RedisRateLimiter, error) {
	return newRedisRateLimiter(client, int64(limitPerSec), time.Now)
}

func newRedisRateLimiter(client *goredis.Client, limitPerSec int64, nowFn func() time.Time) (*RedisRateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if limitPerSec <= 0 {
		limitPerSec = defaultLimitPerSec
	}
	if nowFn == nil {
		nowFn = time.Now
	}

	return &RedisRateLimiter{
		window: fixedWindow{
			client: client,
			prefix: "ratelimit:actor",
			size:   time.Second,
			now:    nowFn,
		},
		limitPerSec: limitPerSec,
	}, nil
}

// Allow reports whether actorID may issue another request in the current second.
func (r *RedisRateLimiter) Allow(ctx context.Context, actorID string) (bool, error) {
	if r == nil || r.window.client == nil {
		return false, fmt.Errorf("rate limiter is not initialized")
	}

	subject := strings.ToLower(strings.TrimSpace(actorID))
	if subject == "" {
		return false, fmt.Errorf("actor id is required")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	current, err := r.window.incr(ctx, subject)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate rate limit: %w", err)
	}

	return current <= r.limitPerSec, nil
}
