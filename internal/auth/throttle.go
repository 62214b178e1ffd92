package auth

import (
	"context"
	"strings"
	"sync"
	"time"
)

// LoginThrottle counts failed logins per identifier within a fixed window.
type LoginThrottle interface {
	// Allow reports whether another attempt for key may proceed.
	Allow(ctx context.Context, key string) (bool, error)
	// RecordFailure counts one failed attempt for key.
	RecordFailure(ctx context.Context, key string) error
	// Reset clears key after a successful login.
	Reset(ctx context.Context, key string) error
}

// ThrottleKey normalises a login identifier so "Alice" and "alice " share a counter.
func ThrottleKey(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

type attemptWindow struct {
	count   int
	resetAt time.Time
}

// MemoryThrottle is a process-local LoginThrottle.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type MemoryThrottle struct {
	mu          sync.Mutex
	windows     map[string]*attemptWindow
	maxAttempts int
	window      time.Duration
	now         Clock
}

// NewMemoryThrottle locks a key after maxAttempts failures until window
// has passed since the first of them.
func NewMemoryThrottle(maxAttempts int, window time.Duration, now Clock) *MemoryThrottle {
	if now == nil {
		now = time.Now
	}
	return &MemoryThrottle{
		windows:     make(map[string]*attemptWindow),
		maxAttempts: maxAttempts,
		window:      window,
		now:         now,
	}
}

// Allow implements LoginThrottle.
func (t *MemoryThrottle) Allow(_ context.Context, key string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	w := t.current(key)
	return w == nil || w.count < t.maxAttempts, nil
}

// RecordFailure implements LoginThrottle.
func (t *MemoryThrottle) RecordFailure(_ context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	w := t.current(key)
	if w == nil {
		w = &attemptWindow{resetAt: t.now().Add(t.window)}
		t.windows[key] = w
	}
	w.count++
	return nil
}

// Reset implements LoginThrottle.
func (t *MemoryThrottle) Reset(_ context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.windows, key)
	return nil
}

// Sweep drops elapsed windows and returns how many were removed.
func (t *MemoryThrottle) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	removed := 0
	for key, w := range t.windows {
		if !now.Before(w.resetAt) {
			delete(t.windows, key)
			removed++
		}
	}
	return removed
}

// Run sweeps once per window until ctx is cancelled.
func (t *MemoryThrottle) Run(ctx context.Context) {
	ticker := time.NewTicker(t.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Sweep()
		}
	}
}

// current returns the live window for key, dropping an elapsed one.
// Caller holds t.mu.
func (t *MemoryThrottle) current(key string) *attemptWindow {
	w, ok := t.windows[key]
	if !ok {
		return nil
	}
	if !t.now().Before(w.resetAt) {
		delete(t.windows, key)
		return nil
	}
	return w
}
