package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrThrottleUnavailable wraps Redis failures from RedisThrottle.
var ErrThrottleUnavailable = errors.New("login throttle backend unavailable")

const throttleKeyPrefix = "pmflow:login:fail:"

// RedisThrottle is a LoginThrottle shared by every instance that points at
// the same Redis. Counters use INCR with a TTL set on the first failure of
// each window.
type RedisThrottle struct {
	client      redis.UniversalClient
	maxAttempts int
	window      time.Duration
}

// NewRedisThrottle creates a throttle on client.
func NewRedisThrottle(client redis.UniversalClient, maxAttempts int, window time.Duration) *RedisThrottle {
	return &RedisThrottle{client: client, maxAttempts: maxAttempts, window: window}
}

// Allow implements LoginThrottle.
func (t *RedisThrottle) Allow(ctx context.Context, key string) (bool, error) {
	count, err := t.client.Get(ctx, throttleKeyPrefix+key).Int64()
	if errors.Is(err, redis.Nil) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrThrottleUnavailable, err)
	}
	return count < int64(t.maxAttempts), nil
}

// RecordFailure implements LoginThrottle.
func (t *RedisThrottle) RecordFailure(ctx context.Context, key string) error {
	k := throttleKeyPrefix + key
	count, err := t.client.Incr(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrThrottleUnavailable, err)
	}
	if count == 1 {
		if err := t.client.Expire(ctx, k, t.window).Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrThrottleUnavailable, err)
		}
	}
	return nil
}

// Reset implements LoginThrottle.
func (t *RedisThrottle) Reset(ctx context.Context, key string) error {
	if err := t.client.Del(ctx, throttleKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrThrottleUnavailable, err)
	}
	return nil
}
