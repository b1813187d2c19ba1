package ratelimit

import (
	"context"
	"sync"
	"time"

	"horse.fit/newsignal/internal/globaltime"
)

type window struct {
	count  int
	expiry time.Time
}

// MemoryLimiter keeps counters in this process only. Several replicas each
// enforce their own budget; use RedisLimiter to share one.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	period  time.Duration
	maxKeys int
	windows map[string]*window
}

func NewMemoryLimiter(limit int, period time.Duration, maxKeys int) *MemoryLimiter {
	if maxKeys < 1 {
		maxKeys = 1
	}
	return &MemoryLimiter{
		limit:   limit,
		period:  period,
		maxKeys: maxKeys,
		windows: make(map[string]*window),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := globaltime.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if ok && !now.Before(w.expiry) {
		delete(l.windows, key)
		ok = false
	}
	if !ok {
		if len(l.windows) >= l.maxKeys {
			l.evict(now)
		}
		w = &window{expiry: now.Add(l.period)}
		l.windows[key] = w
	}
	w.count++

	return decide(w.count, l.limit, w.expiry), nil
}

// Len is the number of tracked keys.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// evict drops expired windows, then the window closest to expiry if the map
// is still full. Callers hold mu.
func (l *MemoryLimiter) evict(now time.Time) {
	for key, w := range l.windows {
		if !now.Before(w.expiry) {
			delete(l.windows, key)
		}
	}
	if len(l.windows) < l.maxKeys {
		return
	}

	var (
		oldestKey string
		oldest    time.Time
	)
	for key, w := range l.windows {
		if oldestKey == "" || w.expiry.Before(oldest) {
			oldestKey, oldest = key, w.expiry
		}
	}
	delete(l.windows, oldestKey)
}
