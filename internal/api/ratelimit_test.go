package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nerrad567/pmflow-core/internal/infrastructure/config"
)

func TestIPRateLimiter_Allow(t *testing.T) {
	l := newIPRateLimiter(1, 2)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	if !l.Allow("10.0.0.1") || !l.Allow("10.0.0.1") {
		t.Fatal("burst of 2 should be allowed")
	}
	if l.Allow("10.0.0.1") {
		t.Error("third request within the same instant should be refused")
	}
	if !l.Allow("10.0.0.2") {
		t.Error("other clients have their own bucket")
	}

	now = now.Add(time.Second)
	if !l.Allow("10.0.0.1") {
		t.Error("bucket should refill after one second")
	}
}

func TestIPRateLimiter_Sweep(t *testing.T) {
	l := newIPRateLimiter(10, 10)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.Allow("10.0.0.1")
	now = now.Add(limiterIdleTTL / 2)
	l.Allow("10.0.0.2")
	now = now.Add(limiterIdleTTL/2 + time.Second)

	if removed := l.Sweep(); removed != 1 {
		t.Errorf("Sweep() = %d, want 1", removed)
	}
	if _, ok := l.buckets["10.0.0.2"]; !ok {
		t.Error("recently seen bucket should survive")
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:52100"
	req.Header.Set("X-Forwarded-For", "198.51.100.1")

	if got := clientIP(req); got != "203.0.113.7" {
		t.Errorf("clientIP() = %q, want 203.0.113.7", got)
	}

	req.RemoteAddr = "pipe"
	if got := clientIP(req); got != "pipe" {
		t.Errorf("clientIP() = %q, want pipe", got)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) {
		d.Config.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.01, Burst: 2}
	})

	for i := 0; i < 2; i++ {
		expectStatus(t, env.do(t, http.MethodGet, "/api/v1/health", "", nil), http.StatusOK)
	}
	expectError(t, env.do(t, http.MethodGet, "/api/v1/health", "", nil),
		http.StatusTooManyRequests, ErrCodeRateLimited, "rate limit exceeded")
}
