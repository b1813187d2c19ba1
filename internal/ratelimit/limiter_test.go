package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"horse.fit/newsignal/internal/globaltime"
)

func TestMemoryLimiterWindow(t *testing.T) {
	start := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	globaltime.SetMockTime(start)
	t.Cleanup(globaltime.ResetTime)

	l := NewMemoryLimiter(2, time.Minute, 10)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := l.Allow(ctx, "10.0.0.1")
		if err != nil || !d.Allowed {
			t.Fatalf("request %d: expected allowed, got %+v err=%v", i, d, err)
		}
	}
	d, _ := l.Allow(ctx, "10.0.0.1")
	if d.Allowed || d.Remaining != 0 {
		t.Fatalf("expected third request rejected, got %+v", d)
	}
	if !d.ResetAt.Equal(start.Add(time.Minute)) {
		t.Fatalf("unexpected reset: %s", d.ResetAt)
	}

	globaltime.SetMockTime(start.Add(time.Minute))
	if d, _ := l.Allow(ctx, "10.0.0.1"); !d.Allowed || d.Remaining != 1 {
		t.Fatalf("expected fresh window after expiry, got %+v", d)
	}
}

func TestMemoryLimiterBoundsKeys(t *testing.T) {
	start := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	globaltime.SetMockTime(start)
	t.Cleanup(globaltime.ResetTime)

	l := NewMemoryLimiter(5, time.Minute, 2)
	ctx := context.Background()

	_, _ = l.Allow(ctx, "a")
	globaltime.SetMockTime(start.Add(time.Second))
	_, _ = l.Allow(ctx, "b")
	globaltime.SetMockTime(start.Add(2 * time.Second))
	_, _ = l.Allow(ctx, "c")

	if got := l.Len(); got != 2 {
		t.Fatalf("expected map bounded at 2 keys, got %d", got)
	}
	l.mu.Lock()
	_, hasA := l.windows["a"]
	_, hasC := l.windows["c"]
	l.mu.Unlock()
	if hasA || !hasC {
		t.Fatalf("expected key closest to expiry to be evicted")
	}
}

func TestMemoryLimiterDropsExpiredBeforeEvicting(t *testing.T) {
	start := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	globaltime.SetMockTime(start)
	t.Cleanup(globaltime.ResetTime)

	l := NewMemoryLimiter(5, time.Minute, 2)
	ctx := context.Background()

	_, _ = l.Allow(ctx, "a")
	globaltime.SetMockTime(start.Add(30 * time.Second))
	_, _ = l.Allow(ctx, "b")
	globaltime.SetMockTime(start.Add(61 * time.Second))
	_, _ = l.Allow(ctx, "c")

	l.mu.Lock()
	_, hasB := l.windows["b"]
	l.mu.Unlock()
	if !hasB {
		t.Fatalf("live key b should survive when an expired key can be dropped")
	}
}

func TestRedisLimiterReportsUnreachableServer(t *testing.T) {
	t.Parallel()

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	l := NewRedisLimiter(client, 10, time.Minute)
	t.Cleanup(func() { _ = l.Close() })

	if _, err := l.Allow(context.Background(), "10.0.0.1"); err == nil {
		t.Fatalf("expected error from unreachable redis")
	}
}
