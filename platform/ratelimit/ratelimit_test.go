package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryLimiterEnforcesBudget(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	lim := NewMemoryLimiter(Policy{Limit: 3, Window: 3 * time.Minute})
	lim.now = func() time.Time { return now }

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		res, err := lim.Allow(ctx, "1.2.3.4")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("request %d: expected allowed", i+1)
		}
		if res.Remaining != 2-i {
			t.Fatalf("request %d: expected remaining %d, got %d", i+1, 2-i, res.Remaining)
		}
	}

	res, _ := lim.Allow(ctx, "1.2.3.4")
	if res.Allowed {
		t.Fatal("expected fourth request to be denied")
	}
	if res.RetryAfter != 3*time.Minute {
		t.Fatalf("expected retry at the end of the window, got %v", res.RetryAfter)
	}

	other, _ := lim.Allow(ctx, "5.6.7.8")
	if !other.Allowed {
		t.Fatal("expected a different key to have its own budget")
	}

	now = now.Add(2 * time.Minute)
	if res, _ = lim.Allow(ctx, "1.2.3.4"); res.Allowed {
		t.Fatal("expected the window to stay exhausted until it ends")
	}

	now = now.Add(time.Minute)
	res, _ = lim.Allow(ctx, "1.2.3.4")
	if !res.Allowed || res.Remaining != 2 {
		t.Fatalf("expected a fresh window, got %+v", res)
	}
}

// Both limiters must admit exactly Limit requests per window, however the
// requests are spread inside it.
func TestLimitersAdmitExactlyLimitPerWindow(t *testing.T) {
	const limit = 5
	window := 10 * time.Minute

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	mem := NewMemoryLimiter(Policy{Limit: limit, Window: window})
	mem.now = func() time.Time { return now }
	red := NewRedisLimiter(client, "rl:parity", Policy{Limit: limit, Window: window})

	ctx := context.Background()
	for round := 0; round < 3; round++ {
		memAllowed, redAllowed := 0, 0
		for i := 0; i < 4*limit; i++ {
			if res, _ := mem.Allow(ctx, "k"); res.Allowed {
				memAllowed++
			}
			res, err := red.Allow(ctx, "k")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Allowed {
				redAllowed++
			}
			now = now.Add(window / time.Duration(8*limit))
			mr.FastForward(window / time.Duration(8*limit))
		}
		if memAllowed != limit || redAllowed != limit {
			t.Fatalf("round %d: memory allowed %d, redis allowed %d, want %d", round, memAllowed, redAllowed, limit)
		}
		now = now.Add(window)
		mr.FastForward(window)
	}
}

func TestMemoryLimiterPrune(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	lim := NewMemoryLimiter(Policy{Limit: 1, Window: time.Minute})
	lim.now = func() time.Time { return now }

	_, _ = lim.Allow(context.Background(), "a")
	now = now.Add(2 * time.Minute)
	if removed := lim.Prune(); removed != 1 {
		t.Fatalf("expected 1 pruned key, got %d", removed)
	}
}

func TestRedisLimiterFixedWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	lim := NewRedisLimiter(client, "rl:quotes", Policy{Limit: 2, Window: 5 * time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := lim.Allow(ctx, "9.9.9.9")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Allowed || res.Remaining != 1-i {
			t.Fatalf("request %d: unexpected result %+v", i+1, res)
		}
	}

	res, err := lim.Allow(ctx, "9.9.9.9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Allowed {
		t.Fatal("expected third request to be denied")
	}
	if res.RetryAfter <= 0 || res.RetryAfter > 5*time.Minute {
		t.Fatalf("expected retry-after within the window, got %v", res.RetryAfter)
	}

	mr.FastForward(5*time.Minute + time.Second)

	res, err = lim.Allow(ctx, "9.9.9.9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Allowed {
		t.Fatal("expected a fresh window after expiry")
	}
}

func TestRedisLimiterReportsConnectionErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	lim := NewRedisLimiter(client, "rl:test", Policy{Limit: 1, Window: time.Minute})
	if _, err := lim.Allow(context.Background(), "x"); err == nil {
		t.Fatal("expected error when redis is unreachable")
	}
}
