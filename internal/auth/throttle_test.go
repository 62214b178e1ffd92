package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestThrottleKey(t *testing.T) {
	if got := ThrottleKey("  Alice@Example.com "); got != "alice@example.com" {
		t.Errorf("ThrottleKey() = %q", got)
	}
}

func TestMemoryThrottle_LocksAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	th := NewMemoryThrottle(3, 15*time.Minute, clock.Now)

	for i := range 3 {
		ok, err := th.Allow(ctx, "alice")
		if err != nil || !ok {
			t.Fatalf("attempt %d: Allow() = %v, %v; want true", i+1, ok, err)
		}
		if err := th.RecordFailure(ctx, "alice"); err != nil {
			t.Fatalf("RecordFailure() error = %v", err)
		}
	}

	if ok, _ := th.Allow(ctx, "alice"); ok {
		t.Error("Allow() after max failures = true, want false")
	}
	if ok, _ := th.Allow(ctx, "bob"); !ok {
		t.Error("other identifiers should be unaffected")
	}

	clock.Advance(15 * time.Minute)
	if ok, _ := th.Allow(ctx, "alice"); !ok {
		t.Error("Allow() after window elapsed = false, want true")
	}
}

func TestMemoryThrottle_ResetClearsCount(t *testing.T) {
	ctx := context.Background()
	th := NewMemoryThrottle(2, time.Minute, newFakeClock().Now)

	_ = th.RecordFailure(ctx, "alice")
	_ = th.RecordFailure(ctx, "alice")
	if err := th.Reset(ctx, "alice"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if ok, _ := th.Allow(ctx, "alice"); !ok {
		t.Error("Allow() after Reset = false, want true")
	}
}

func TestMemoryThrottle_Sweep(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	th := NewMemoryThrottle(5, time.Minute, clock.Now)

	_ = th.RecordFailure(ctx, "a")
	clock.Advance(30 * time.Second)
	_ = th.RecordFailure(ctx, "b")
	clock.Advance(30 * time.Second)

	if n := th.Sweep(); n != 1 {
		t.Errorf("Sweep() = %d, want 1", n)
	}
}

func newRedisThrottle(t *testing.T, maxAttempts int, window time.Duration) (*RedisThrottle, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisThrottle(client, maxAttempts, window), mr
}

func TestRedisThrottle_LocksAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	th, mr := newRedisThrottle(t, 3, 15*time.Minute)

	for range 3 {
		if err := th.RecordFailure(ctx, "alice"); err != nil {
			t.Fatalf("RecordFailure() error = %v", err)
		}
	}
	ok, err := th.Allow(ctx, "alice")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if ok {
		t.Error("Allow() after max failures = true, want false")
	}

	if ttl := mr.TTL(throttleKeyPrefix + "alice"); ttl != 15*time.Minute {
		t.Errorf("counter TTL = %v, want 15m", ttl)
	}

	mr.FastForward(15 * time.Minute)
	if ok, _ := th.Allow(ctx, "alice"); !ok {
		t.Error("Allow() after window elapsed = false, want true")
	}
}

func TestRedisThrottle_Reset(t *testing.T) {
	ctx := context.Background()
	th, mr := newRedisThrottle(t, 1, time.Minute)

	_ = th.RecordFailure(ctx, "alice")
	if err := th.Reset(ctx, "alice"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if mr.Exists(throttleKeyPrefix + "alice") {
		t.Error("counter key should be deleted")
	}
	if ok, _ := th.Allow(ctx, "alice"); !ok {
		t.Error("Allow() after Reset = false, want true")
	}
}

func TestRedisThrottle_Unavailable(t *testing.T) {
	ctx := context.Background()
	th, mr := newRedisThrottle(t, 3, time.Minute)
	mr.Close()

	if _, err := th.Allow(ctx, "alice"); !errors.Is(err, ErrThrottleUnavailable) {
		t.Errorf("Allow() error = %v, want ErrThrottleUnavailable", err)
	}
	if err := th.RecordFailure(ctx, "alice"); !errors.Is(err, ErrThrottleUnavailable) {
		t.Errorf("RecordFailure() error = %v, want ErrThrottleUnavailable", err)
	}
}
