package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript increments the window counter, arms its expiry on the
// first hit and returns the count together with the remaining TTL in ms.
var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisLimiter is a fixed-window counter shared by every API instance.
type RedisLimiter struct {
	client redis.Scripter
	prefix string
	policy Policy
	now    func() time.Time
}

// NewRedisLimiter creates a limiter whose keys live under prefix.
func NewRedisLimiter(client redis.Scripter, prefix string, policy Policy) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		policy: policy,
		now:    time.Now,
	}
}

// Allow counts one request for key in the current window.
func (r *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	raw, err := fixedWindowScript.Run(ctx, r.client,
		[]string{r.prefix + ":" + key},
		r.policy.Window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit %s: %w", r.prefix, err)
	}
	if len(raw) != 2 {
		return Result{}, fmt.Errorf("rate limit %s: unexpected reply %v", r.prefix, raw)
	}

	count, ttl := int(raw[0]), time.Duration(raw[1])*time.Millisecond
	res := Result{
		Limit:   r.policy.Limit,
		ResetAt: r.now().Add(ttl),
	}

	if count > r.policy.Limit {
		res.RetryAfter = ttl
		return res, nil
	}

	res.Allowed = true
	res.Remaining = r.policy.Limit - count
	return res, nil
}
