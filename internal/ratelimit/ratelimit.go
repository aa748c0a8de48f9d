// Package ratelimit enforces fixed-window request caps per principal
// (spec.md §4.4) using Redis INCR + EXPIRE against the current wall-clock
// time floored to the window size.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter buckets counters by window floor: key = "ratelimit:<scope>:<window_seconds>:<bucket>".
type Limiter struct {
	redis *redis.Client
}

func New(rdb *redis.Client) *Limiter {
	return &Limiter{redis: rdb}
}

// Result is the outcome of Check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// bucketKey floors now to the start of its window-sized bucket, so two
// windows of different sizes (e.g. "minute" and "hour") sharing the same
// scope never collide on the same key.
func bucketKey(scope string, window time.Duration, now time.Time) (key string, resetAt time.Time) {
	size := window.Seconds()
	bucket := int64(float64(now.Unix()) / size)
	resetAt = time.Unix((bucket+1)*int64(size), 0)
	return fmt.Sprintf("ratelimit:%s:%d:%d", scope, int64(size), bucket), resetAt
}

// Check reads the current counter for scope's window-sized bucket without
// incrementing it. Fail-closed: if Redis is unreachable, the request is
// rejected (spec.md §4.4's "counter service unreachable -> (false, 0)").
func (l *Limiter) Check(ctx context.Context, scope string, limit int, window time.Duration) (Result, error) {
	key, resetAt := bucketKey(scope, window, time.Now())

	count, err := l.redis.Get(ctx, key).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Result{Allowed: false, Remaining: 0, ResetAt: resetAt}, fmt.Errorf("ratelimit: checking counter: %w", err)
	}

	if count >= limit {
		return Result{Allowed: false, Remaining: 0, ResetAt: resetAt}, nil
	}
	return Result{Allowed: true, Remaining: limit - count, ResetAt: resetAt}, nil
}

// Increment records one request against scope's current window bucket.
// Best-effort: failures are returned for logging but must never fail the
// request that already passed Check.
func (l *Limiter) Increment(ctx context.Context, scope string, window time.Duration) error {
	key, _ := bucketKey(scope, window, time.Now())

	pipe := l.redis.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window+10*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("ratelimit: incrementing counter: %w", err)
	}
	if incr.Val() == 1 {
		l.redis.Expire(ctx, key, window+10*time.Second)
	}
	return nil
}

// CheckAndIncrement combines Check and Increment: it allows the request and
// records it in one call, the common case for middleware use.
func (l *Limiter) CheckAndIncrement(ctx context.Context, scope string, limit int, window time.Duration) (Result, error) {
	res, err := l.Check(ctx, scope, limit, window)
	if err != nil || !res.Allowed {
		return res, err
	}
	if err := l.Increment(ctx, scope, window); err != nil {
		return res, err
	}
	return res, nil
}
