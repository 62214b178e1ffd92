package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/nerrad567/pmflow-core/internal/auth"
	"github.com/nerrad567/pmflow-core/internal/infrastructure/config"
	"github.com/nerrad567/pmflow-core/internal/infrastructure/database"
	"github.com/nerrad567/pmflow-core/internal/infrastructure/logging"
)

const testSecret = "main-test-secret-0123456789abcdefghij"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("PMFLOW_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("run() error = %v, want a config loading error", err)
	}
}

// TestRun_MissingJWTSecret verifies startup refuses an unsigned deployment.
func TestRun_MissingJWTSecret(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "`+filepath.Join(t.TempDir(), "pmflow.db")+`"
auth:
  jwt_secret: ""
`)
	t.Setenv("PMFLOW_CONFIG", path)
	t.Setenv("PMFLOW_JWT_SECRET", "")

	err := run(context.Background())
	if err == nil {
		t.Fatal("run() should fail without a JWT secret")
	}
	if !strings.Contains(err.Error(), "jwt_secret") {
		t.Errorf("run() error = %v, want it to name jwt_secret", err)
	}
}

// TestRun_StartsAndShutsDown boots the full stack against a temporary
// database and checks that the bootstrap admin was seeded.
func TestRun_StartsAndShutsDown(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "data", "pmflow.db")
	path := writeConfig(t, `
site:
  id: test-site
database:
  path: "`+dbPath+`"
  wal_mode: true
  busy_timeout: 5
api:
  host: "127.0.0.1"
  port: 18473
auth:
  jwt_secret: "`+testSecret+`"
  bootstrap_admin:
    username: "boss"
    email: "boss@example.com"
logging:
  level: error
  format: text
`)
	t.Setenv("PMFLOW_CONFIG", path)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	db, err := database.Open(config.DatabaseConfig{Path: dbPath, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	defer db.Close()

	admin, err := auth.NewUserRepository(db.DB).GetByUsername(context.Background(), "boss")
	if err != nil {
		t.Fatalf("bootstrap admin not found: %v", err)
	}
	if admin.Role != auth.RoleAdmin || admin.Email != "boss@example.com" {
		t.Errorf("bootstrap admin = %+v", admin)
	}
}

// TestGetConfigPath_Default verifies default config path is used.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("PMFLOW_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_FromEnv verifies env var overrides default.
func TestGetConfigPath_FromEnv(t *testing.T) {
	t.Setenv("PMFLOW_CONFIG", "/custom/path/config.yaml")

	if path := getConfigPath(); path != "/custom/path/config.yaml" {
		t.Errorf("getConfigPath() = %q, want %q", path, "/custom/path/config.yaml")
	}
}

func throttleConfig(backend string, enabled bool) *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			LoginThrottle: config.LoginThrottleConfig{
				Enabled:     enabled,
				Backend:     backend,
				MaxAttempts: 2,
				Window:      time.Minute,
			},
		},
	}
}

func TestNewLoginThrottle_Disabled(t *testing.T) {
	throttle, closeFn, err := newLoginThrottle(context.Background(), throttleConfig(config.ThrottleBackendMemory, false), logging.Discard(), nil)
	if err != nil {
		t.Fatalf("newLoginThrottle() error = %v", err)
	}
	defer closeFn()
	if throttle != nil {
		t.Errorf("throttle = %T, want nil", throttle)
	}
}

func TestNewLoginThrottle_Memory(t *testing.T) {
	started := 0
	goRun := func(func(context.Context)) { started++ }

	throttle, closeFn, err := newLoginThrottle(context.Background(), throttleConfig(config.ThrottleBackendMemory, true), logging.Discard(), goRun)
	if err != nil {
		t.Fatalf("newLoginThrottle() error = %v", err)
	}
	defer closeFn()

	if _, ok := throttle.(*auth.MemoryThrottle); !ok {
		t.Errorf("throttle = %T, want *auth.MemoryThrottle", throttle)
	}
	if started != 1 {
		t.Errorf("sweeper started %d times, want 1", started)
	}
}

func TestNewLoginThrottle_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := throttleConfig(config.ThrottleBackendRedis, true)
	cfg.Redis.Addr = mr.Addr()

	throttle, closeFn, err := newLoginThrottle(context.Background(), cfg, logging.Discard(), nil)
	if err != nil {
		t.Fatalf("newLoginThrottle() error = %v", err)
	}
	defer closeFn()

	if _, ok := throttle.(*auth.RedisThrottle); !ok {
		t.Fatalf("throttle = %T, want *auth.RedisThrottle", throttle)
	}
}

func TestNewLoginThrottle_UnknownBackend(t *testing.T) {
	_, closeFn, err := newLoginThrottle(context.Background(), throttleConfig("memcached", true), logging.Discard(), nil)
	defer closeFn()
	if err == nil {
		t.Fatal("newLoginThrottle() should reject an unknown backend")
	}
}
