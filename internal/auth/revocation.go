package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"
)

// DefaultPruneInterval is used by Run when no interval is given.
const DefaultPruneInterval = 5 * time.Minute

// HashToken returns the hex SHA-256 of a raw token. The registry keys on
// this so raw tokens are never held in memory longer than a request.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// RevocationRegistry is the process-wide set of logged-out tokens.
//
// Each entry lives until the token's own expiry, after which the validator
// rejects the token as expired anyway and the entry can be dropped.
//
// Thread Safety:
//   - Revoke takes the write lock, IsRevoked the read lock. A Revoke that
//     has returned is visible to every IsRevoked that starts afterwards.
type RevocationRegistry struct {
	mu      sync.RWMutex
	entries map[string]time.Time // token hash -> token expiry
	now     Clock
}

// NewRevocationRegistry creates an empty registry. A nil clock uses time.Now.
func NewRevocationRegistry(now Clock) *RevocationRegistry {
	if now == nil {
		now = time.Now
	}
	return &RevocationRegistry{
		entries: make(map[string]time.Time),
		now:     now,
	}
}

// Revoke records token as revoked until expiresAt. Revoking a token twice,
// or one that has already expired, changes nothing.
func (r *RevocationRegistry) Revoke(token string, expiresAt time.Time) {
	if !r.now().Before(expiresAt) {
		return
	}
	key := HashToken(token)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[key]; !ok {
		r.entries[key] = expiresAt
	}
}

// IsRevoked reports whether token is held in the registry. An entry found
// past its expiry is dropped and reported as not revoked.
func (r *RevocationRegistry) IsRevoked(token string) bool {
	key := HashToken(token)

	r.mu.RLock()
	exp, ok := r.entries[key]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if r.now().Before(exp) {
		return true
	}

	r.mu.Lock()
	if cur, still := r.entries[key]; still && !r.now().Before(cur) {
		delete(r.entries, key)
	}
	r.mu.Unlock()
	return false
}

// Prune drops every expired entry and returns how many were removed.
func (r *RevocationRegistry) Prune() int {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, exp := range r.entries {
		if !now.Before(exp) {
			delete(r.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries currently held.
func (r *RevocationRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Run prunes on every tick of interval until ctx is cancelled.
func (r *RevocationRegistry) Run(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = DefaultPruneInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Prune(); n > 0 && logger != nil {
				logger.Debug("pruned revocation entries", "removed", n, "remaining", r.Len())
			}
		}
	}
}
