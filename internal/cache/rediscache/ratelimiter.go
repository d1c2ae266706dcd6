package rediscache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter shared by every worker process that
// points at the same Redis.
type RateLimiter struct {
	c *redis.Client
}

func NewRateLimiter(addr string) *RateLimiter {
	return &RateLimiter{
		c: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

// Allow increments key and sets its TTL when the key is new.
// Returns (allowed, currentCount).
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	pipe := rl.c.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, 0, errors.Wrap(err, "redis ratelimit")
	}
	n := incr.Val()
	return n <= limit, n, nil
}

// Quota is the result of taking one unit from a per-minute budget.
type Quota struct {
	Allowed bool
	Used    int64
	// ResetIn is the time left until the next minute bucket opens.
	ResetIn time.Duration
}

// Reserve takes one unit of scope's budget for the minute containing now.
func (rl *RateLimiter) Reserve(ctx context.Context, scope string, perMinute int64, now time.Time) (Quota, error) {
	ok, n, err := rl.Allow(ctx, MinuteKey(scope, now), perMinute, 70*time.Second)
	if err != nil {
		return Quota{}, err
	}
	next := now.Truncate(time.Minute).Add(time.Minute)
	return Quota{Allowed: ok, Used: n, ResetIn: next.Sub(now)}, nil
}

// MinuteKey buckets scope by wall-clock minute, e.g. "rl:directions:202610191405".
func MinuteKey(scope string, now time.Time) string {
	return "rl:" + scope + ":" + now.UTC().Format("200601021504")
}

func (rl *RateLimiter) Close() error {
	return rl.c.Close()
}

