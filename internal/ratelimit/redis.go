package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"horse.fit/newsignal/internal/globaltime"
)

const redisKeyPrefix = "newsignal:ratelimit:"

// RedisLimiter shares fixed-window counters across replicas.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	period time.Duration
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisClient(opts RedisOptions) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
}

func NewRedisLimiter(client *redis.Client, limit int, period time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, period: period}
}

// Allow increments the key's counter. The first hit of a window sets its expiry.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	redisKey := redisKeyPrefix + key

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("incr rate limit key %q: %w", key, err)
	}
	if count == 1 {
		if err := l.client.PExpire(ctx, redisKey, l.period).Err(); err != nil {
			return Decision{}, fmt.Errorf("expire rate limit key %q: %w", key, err)
		}
	}

	ttl, err := l.client.PTTL(ctx, redisKey).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("ttl rate limit key %q: %w", key, err)
	}
	// A crash between INCR and PEXPIRE leaves a key without expiry.
	if ttl < 0 {
		if err := l.client.PExpire(ctx, redisKey, l.period).Err(); err != nil {
			return Decision{}, fmt.Errorf("expire rate limit key %q: %w", key, err)
		}
		ttl = l.period
	}

	return decide(int(count), l.limit, globaltime.Now().Add(ttl)), nil
}

func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
