package rate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Window is a request budget over a fixed period.
type Window struct {
	Limit  int
	Period time.Duration
}

// Valid reports whether w describes a usable window.
func (w Window) Valid() bool {
	return w.Limit > 0 && w.Period > 0
}

// Decision is the outcome of counting one request against a window.
type Decision struct {
	Allowed   bool
	Count     int64
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

// Limiter counts requests in Redis.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
}

// New creates a Limiter whose keys start with prefix.
func New(redisClient redis.UniversalClient, prefix string) *Limiter {
	if prefix == "" {
		prefix = "arl"
	}
	return &Limiter{redis: redisClient, prefix: prefix}
}

func (l *Limiter) key(policy, subject string, w Window) string {
	return l.prefix + ":" + policy + ":" + strconv.FormatInt(int64(w.Period/time.Second), 10) + ":" + subject
}

// Hit counts one request and reports whether it fits the window.
func (l *Limiter) Hit(ctx context.Context, policy, subject string, w Window) (Decision, error) {
	if !w.Valid() {
		return Decision{Allowed: true}, nil
	}
	key := l.key(policy, subject, w)
	count, err := l.incrementWithTTL(ctx, key, w.Period)
	if err != nil {
		return Decision{}, err
	}
	return l.decide(ctx, key, count, w, count <= int64(w.Limit))
}

// HitAll counts one request against every window and returns the first
// denying decision, or the tightest allowing one.
func (l *Limiter) HitAll(ctx context.Context, policy, subject string, windows ...Window) (Decision, error) {
	result := Decision{Allowed: true, Remaining: -1}
	for _, w := range windows {
		d, err := l.Hit(ctx, policy, subject, w)
		if err != nil {
			return Decision{}, err
		}
		if !d.Allowed {
			return d, nil
		}
		if w.Valid() && (result.Remaining < 0 || d.Remaining < result.Remaining) {
			result = d
		}
	}
	if result.Remaining < 0 {
		result.Remaining = 0
	}
	return result, nil
}

var refundScript = redis.NewScript(`
local v = tonumber(redis.call("GET", KEYS[1]) or "0")
if v > 0 then
  return redis.call("DECR", KEYS[1])
end
return 0
`)

// Refund gives back one request counted by Hit. The counter never drops
// below zero and its window expiry is left untouched.
func (l *Limiter) Refund(ctx context.Context, policy, subject string, w Window) error {
	if !w.Valid() {
		return nil
	}
	if err := refundScript.Run(ctx, l.redis, []string{l.key(policy, subject, w)}).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Reset clears the counter for subject under policy and window.
func (l *Limiter) Reset(ctx context.Context, policy, subject string, w Window) error {
	if err := l.redis.Del(ctx, l.key(policy, subject, w)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) decide(ctx context.Context, key string, count int64, w Window, allowed bool) (Decision, error) {
	d := Decision{Allowed: allowed, Count: count, Limit: w.Limit}
	if remaining := int64(w.Limit) - count; remaining > 0 {
		d.Remaining = int(remaining)
	}
	if !allowed {
		ttl, err := l.redis.PTTL(ctx, key).Result()
		if err != nil {
			return Decision{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if ttl > 0 {
			d.ResetIn = ttl
		} else {
			d.ResetIn = w.Period
		}
	}
	return d, nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
