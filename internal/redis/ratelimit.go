package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// fixed window counter; the first hit in a window sets the expiry
var fixedWindowScript = goredis.NewScript(`
local current = redis.call('INCR', KEYS[1])
if current == 1 then
	redis.call('EXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('TTL', KEYS[1])
return {current, ttl}
`)

type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
	Limit     int
}

// RateLimiter counts REST writes per user across instances.
type RateLimiter struct {
	client *goredis.Client
}

func NewRateLimiter(client *goredis.Client) *RateLimiter {
	return &RateLimiter{client: client}
}

func (r *RateLimiter) Allow(ctx context.Context, scope, subject string, limit int, window time.Duration) (*RateLimitResult, error) {
	key := fmt.Sprintf("ratelimit:%s:%s", subject, scope)
	res, err := fixedWindowScript.Run(ctx, r.client, []string{key}, int(window.Seconds())).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(res) < 2 {
		return nil, fmt.Errorf("unexpected rate limit result format")
	}

	current := int(res[0])
	remaining := limit - current
	if remaining < 0 {
		remaining = 0
	}
	return &RateLimitResult{
		Allowed:   current <= limit,
		Remaining: remaining,
		ResetIn:   time.Duration(res[1]) * time.Second,
		Limit:     limit,
	}, nil
}
