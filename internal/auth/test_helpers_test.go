package auth

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/pmflow-core/internal/infrastructure/database/dbtest"
)

const testSecret = "test-secret-key-for-jwt-signing-0123456789"

// testDB returns a migrated SQLite database for repository tests.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	return dbtest.Open(t).DB
}

// fakeClock is a settable clock shared by issuer, validator and registry.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	// Whole seconds: JWT NumericDate has second precision.
	return &fakeClock{now: time.Unix(1_767_225_600, 0).UTC()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// seedTestUser inserts a user with the given role and password.
func seedTestUser(t *testing.T, repo *SQLiteUserRepository, username string, role Role, password string) *User {
	t.Helper()

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	user := &User{
		Username:     username,
		Email:        username + "@example.com",
		FirstName:    username,
		PasswordHash: hash,
		Role:         role,
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("creating test user %s: %v", username, err)
	}
	return user
}

// recordingSink captures security events.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) RecordAuthEvent(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingSink) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}
