// Package cache is a small get-or-compute cache that serves stale values
// while a single background refresh runs.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/newsignal/internal/globaltime"
)

const defaultRefreshTimeout = 10 * time.Second

// Loader computes the value for key.
type Loader[K comparable, V any] func(ctx context.Context, key K) (V, error)

type entry[V any] struct {
	value      V
	loadedAt   time.Time
	ready      chan struct{}
	err        error
	refreshing bool
}

type Options struct {
	TTL            time.Duration
	MaxEntries     int
	RefreshTimeout time.Duration
}

type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	load    Loader[K, V]
	logger  zerolog.Logger
	opts    Options
	entries map[K]*entry[V]
	wg      sync.WaitGroup
}

func New[K comparable, V any](load Loader[K, V], logger zerolog.Logger, opts Options) *Cache[K, V] {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 1024
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = defaultRefreshTimeout
	}
	return &Cache[K, V]{
		load:    load,
		logger:  logger,
		opts:    opts,
		entries: make(map[K]*entry[V]),
	}
}

// Get returns the cached value for key. A missing key is loaded inline and
// concurrent callers share that load. An expired key returns the stale value
// immediately and triggers one background refresh.
func (c *Cache[K, V]) Get(ctx context.Context, key K) (V, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry[V]{ready: make(chan struct{})}
		c.makeRoom()
		c.entries[key] = e
		c.mu.Unlock()
		return c.fill(ctx, key, e)
	}

	select {
	case <-e.ready:
	default:
		c.mu.Unlock()
		return c.wait(ctx, e)
	}

	if globaltime.Since(e.loadedAt) >= c.opts.TTL && !e.refreshing {
		e.refreshing = true
		c.wg.Add(1)
		go c.refresh(key, e)
	}
	value := e.value
	c.mu.Unlock()
	return value, nil
}

// Invalidate drops key so the next Get loads inline.
func (c *Cache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Purge drops every entry.
func (c *Cache[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// Wait blocks until in-flight background refreshes finish.
func (c *Cache[K, V]) Wait() {
	c.wg.Wait()
}

func (c *Cache[K, V]) fill(ctx context.Context, key K, e *entry[V]) (V, error) {
	value, err := c.load(ctx, key)

	c.mu.Lock()
	if err != nil {
		e.err = err
		if c.entries[key] == e {
			delete(c.entries, key)
		}
	} else {
		e.value = value
		e.loadedAt = globaltime.Now()
	}
	close(e.ready)
	c.mu.Unlock()

	return value, err
}

func (c *Cache[K, V]) wait(ctx context.Context, e *entry[V]) (V, error) {
	select {
	case <-e.ready:
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return e.value, e.err
}

func (c *Cache[K, V]) refresh(key K, e *entry[V]) {
	defer c.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.RefreshTimeout)
	defer cancel()

	value, err := c.load(ctx, key)

	c.mu.Lock()
	defer c.mu.Unlock()
	e.refreshing = false
	if err != nil {
		c.logger.Warn().Err(err).Interface("key", key).Msg("background refresh failed; serving stale value")
		return
	}
	e.value = value
	e.loadedAt = globaltime.Now()
}

// makeRoom evicts the least recently loaded ready entry when full. Callers hold mu.
func (c *Cache[K, V]) makeRoom() {
	if len(c.entries) < c.opts.MaxEntries {
		return
	}

	var (
		victim K
		oldest time.Time
		found  bool
	)
	for key, e := range c.entries {
		select {
		case <-e.ready:
		default:
			continue
		}
		if !found || e.loadedAt.Before(oldest) {
			victim, oldest, found = key, e.loadedAt, true
		}
	}
	if found {
		delete(c.entries, victim)
	}
}
