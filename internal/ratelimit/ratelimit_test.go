package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T) *Limiter {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return New(rdb)
}

func TestCheckAndIncrement_AllowsUntilLimit(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.CheckAndIncrement(ctx, "agent-1", 3, time.Minute)
		if err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
		if !res.Allowed {
			t.Fatalf("request %d: expected allowed, limit is 3", i)
		}
	}

	res, err := l.CheckAndIncrement(ctx, "agent-1", 3, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Allowed {
		t.Fatal("4th request should be rejected once the limit of 3 is reached")
	}
}

func TestCheckAndIncrement_IndependentScopesDoNotInterfere(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	if _, err := l.CheckAndIncrement(ctx, "agent-1", 1, time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := l.CheckAndIncrement(ctx, "agent-2", 1, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Allowed {
		t.Fatal("agent-2's counter should be independent of agent-1's")
	}
}

func TestCheck_DifferentWindowsDoNotShareAKey(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	if err := l.Increment(ctx, "agent-1:minute", time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := l.Check(ctx, "agent-1:hour", 1, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Allowed {
		t.Fatal("the hour-window bucket should not see the minute-window bucket's increment")
	}
}

func TestCheck_RemainingCountsDown(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	res, err := l.Check(ctx, "agent-1", 5, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Remaining != 5 {
		t.Fatalf("remaining = %d, want 5 before any increment", res.Remaining)
	}

	if err := l.Increment(ctx, "agent-1", time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err = l.Check(ctx, "agent-1", 5, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Remaining != 4 {
		t.Fatalf("remaining = %d, want 4 after one increment", res.Remaining)
	}
}
