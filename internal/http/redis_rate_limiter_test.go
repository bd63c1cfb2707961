package httpx

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"

	"github.com/Camiloez/postboard/pkg/logger"
)

func newMiniredisLimiter(t *testing.T, now func() time.Time) (*redisRateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rl := newRedisRateLimiter(client, logger.Discard(), now)
	t.Cleanup(rl.Close)
	return rl, mr
}

func TestRedisRateLimiterSlidingWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	rl, _ := newMiniredisLimiter(t, func() time.Time { return now })

	for i, remaining := range []int{1, 0} {
		if d := rl.Allow(ctx, "k", 2, time.Minute); !d.allowed || d.remaining != remaining {
			t.Fatalf("request %d: unexpected decision %+v", i+1, d)
		}
	}
	if d := rl.Allow(ctx, "k", 2, time.Minute); d.allowed {
		t.Fatal("third request should be limited")
	}

	now = now.Add(90 * time.Second)
	if d := rl.Allow(ctx, "k", 2, time.Minute); !d.allowed || d.remaining != 0 {
		t.Fatalf("expected one more request, got %+v", d)
	}
	d := rl.Allow(ctx, "k", 2, time.Minute)
	if d.allowed {
		t.Fatal("budget should be spent")
	}
	if !d.reset.Equal(now.Truncate(time.Minute).Add(time.Minute)) {
		t.Fatalf("unexpected reset %v", d.reset)
	}

	now = now.Add(3 * time.Minute)
	if d := rl.Allow(ctx, "k", 2, time.Minute); !d.allowed || d.remaining != 1 {
		t.Fatalf("expected fresh budget, got %+v", d)
	}
}

func TestRedisRateLimiterMatchesMemoryBackend(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.January, 1, 0, 0, 10, 0, time.UTC)
	clock := func() time.Time { return now }
	rl, _ := newMiniredisLimiter(t, clock)
	mem := newMemoryRateLimiter(clock)
	defer mem.Close()

	check := func(step string) {
		t.Helper()
		r, m := rl.Allow(ctx, "burst", 2, time.Minute), mem.Allow(ctx, "burst", 2, time.Minute)
		if r != m {
			t.Fatalf("%s: redis %+v, memory %+v", step, r, m)
		}
	}
	for range 10 {
		check("burst")
	}
	now = now.Add(90 * time.Second)
	check("next window")
	now = now.Add(20 * time.Second)
	check("late in window")
}

func TestRedisRateLimiterExpiresWindows(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	rl, mr := newMiniredisLimiter(t, func() time.Time { return now })

	if d := rl.Allow(ctx, "ttl", 1, time.Minute); !d.allowed {
		t.Fatal("first request should pass")
	}
	if d := rl.Allow(ctx, "ttl", 1, time.Minute); d.allowed {
		t.Fatal("second request should be limited")
	}
	key := windowKey("ttl", now)
	if got, err := mr.Get(key); err != nil || got != "1" {
		t.Fatalf("rejected requests must not count: %q %v", got, err)
	}
	if ttl := mr.TTL(key); ttl != 2*time.Minute {
		t.Fatalf("expected ttl of two windows, got %v", ttl)
	}
	mr.FastForward(2 * time.Minute)
	if mr.Exists(key) {
		t.Fatal("window key should have expired")
	}
}

func TestRedisRateLimiterFailsOpen(t *testing.T) {
	rl, mr := newMiniredisLimiter(t, time.Now)
	mr.Close()
	for range 3 {
		if d := rl.Allow(context.Background(), "down", 1, time.Minute); !d.allowed {
			t.Fatalf("expected fail open, got %+v", d)
		}
	}
}
