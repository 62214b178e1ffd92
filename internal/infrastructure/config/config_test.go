package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testJWTSecret = "test-secret-key-at-least-32-chars!"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
site:
  id: "test-site"
database:
  path: "/tmp/test.db"
api:
  port: 9090
auth:
  jwt_secret: "`+testJWTSecret+`"
  token_ttl: 2h
  login_throttle:
    max_attempts: 3
    window: 1m
mqtt:
  broker:
    host: "broker.local"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-site" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-site")
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
	if cfg.Auth.TokenTTL != 2*time.Hour {
		t.Errorf("Auth.TokenTTL = %v, want 2h", cfg.Auth.TokenTTL)
	}
	if cfg.Auth.LoginThrottle.MaxAttempts != 3 {
		t.Errorf("LoginThrottle.MaxAttempts = %d, want 3", cfg.Auth.LoginThrottle.MaxAttempts)
	}
	if cfg.Auth.LoginThrottle.Backend != ThrottleBackendMemory {
		t.Errorf("LoginThrottle.Backend = %q, want default %q", cfg.Auth.LoginThrottle.Backend, ThrottleBackendMemory)
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
	// Untouched sections keep their defaults.
	if cfg.Auth.RevocationPruneInterval != 5*time.Minute {
		t.Errorf("RevocationPruneInterval = %v, want 5m", cfg.Auth.RevocationPruneInterval)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")
	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_MissingSecretAborts(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "/tmp/test.db"
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected error without a jwt secret")
	}
	if !strings.Contains(err.Error(), "auth.jwt_secret is required") {
		t.Errorf("error = %v, want jwt secret message", err)
	}
}

func TestLoad_SecretFromEnvironment(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "/tmp/test.db"
`)
	t.Setenv("PMFLOW_JWT_SECRET", testJWTSecret)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.JWTSecret != testJWTSecret {
		t.Error("JWT secret was not taken from the environment")
	}
}

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Auth.JWTSecret = testJWTSecret
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "missing site ID", mutate: func(c *Config) { c.Site.ID = "" }, wantErr: "site.id"},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: "database.path"},
		{name: "invalid port low", mutate: func(c *Config) { c.API.Port = 0 }, wantErr: "api.port"},
		{name: "invalid port high", mutate: func(c *Config) { c.API.Port = 70000 }, wantErr: "api.port"},
		{name: "missing JWT secret", mutate: func(c *Config) { c.Auth.JWTSecret = "" }, wantErr: "jwt_secret is required"},
		{name: "JWT secret too short", mutate: func(c *Config) { c.Auth.JWTSecret = "short" }, wantErr: "at least 32"},
		{name: "zero token ttl", mutate: func(c *Config) { c.Auth.TokenTTL = 0 }, wantErr: "token_ttl"},
		{name: "zero prune interval", mutate: func(c *Config) { c.Auth.RevocationPruneInterval = 0 }, wantErr: "prune_interval"},
		{name: "unknown throttle backend", mutate: func(c *Config) { c.Auth.LoginThrottle.Backend = "memcached" }, wantErr: "backend"},
		{name: "throttle disabled ignores backend", mutate: func(c *Config) {
			c.Auth.LoginThrottle.Enabled = false
			c.Auth.LoginThrottle.Backend = "memcached"
		}},
		{name: "redis backend without addr", mutate: func(c *Config) {
			c.Auth.LoginThrottle.Backend = ThrottleBackendRedis
			c.Redis.Addr = ""
		}, wantErr: "redis.addr"},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: "mqtt.qos"},
		{name: "influx enabled without url", mutate: func(c *Config) { c.InfluxDB.Enabled = true }, wantErr: "influxdb.url"},
		{name: "rate limit without rate", mutate: func(c *Config) { c.API.RateLimit.RequestsPerSecond = 0 }, wantErr: "requests_per_second"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{Read: 30, Write: 45, Idle: 60},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("PMFLOW_DATABASE_PATH", "/custom/path.db")
	t.Setenv("PMFLOW_API_HOST", "192.168.1.1")
	t.Setenv("PMFLOW_API_PORT", "9443")
	t.Setenv("PMFLOW_JWT_SECRET", "jwt-secret")
	t.Setenv("PMFLOW_TOKEN_TTL", "30m")
	t.Setenv("PMFLOW_REDIS_ADDR", "redis:6379")
	t.Setenv("PMFLOW_MQTT_HOST", "mqtt.example.com")
	t.Setenv("PMFLOW_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("PMFLOW_LOG_LEVEL", "debug")

	applyEnvOverrides(cfg)

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}
	if cfg.API.Port != 9443 {
		t.Errorf("API.Port = %d, want 9443", cfg.API.Port)
	}
	if cfg.Auth.JWTSecret != "jwt-secret" {
		t.Errorf("Auth.JWTSecret = %q, want %q", cfg.Auth.JWTSecret, "jwt-secret")
	}
	if cfg.Auth.TokenTTL != 30*time.Minute {
		t.Errorf("Auth.TokenTTL = %v, want 30m", cfg.Auth.TokenTTL)
	}
	if cfg.Redis.Addr != "redis:6379" {
		t.Errorf("Redis.Addr = %q, want %q", cfg.Redis.Addr, "redis:6379")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestApplyEnvOverrides_IgnoresBadValues(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("PMFLOW_API_PORT", "not-a-port")
	t.Setenv("PMFLOW_TOKEN_TTL", "forever")

	applyEnvOverrides(cfg)

	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want default 8080", cfg.API.Port)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Errorf("Auth.TokenTTL = %v, want default 24h", cfg.Auth.TokenTTL)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Errorf("default TokenTTL = %v, want 24h", cfg.Auth.TokenTTL)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("defaultConfig API.Port = %d, want 8080", cfg.API.Port)
	}
	if cfg.MQTT.Enabled {
		t.Error("MQTT should be disabled by default")
	}
	if cfg.InfluxDB.Enabled {
		t.Error("InfluxDB should be disabled by default")
	}
	if err := validConfig().Validate(); err != nil {
		t.Errorf("defaults plus secret should validate: %v", err)
	}
}
