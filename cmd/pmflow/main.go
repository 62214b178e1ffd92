// PMFlow Core - project management backend.
//
// This is the main entry point. It wires the SQLite store, the auth core
// (credential verifier, token issuer and validator, revocation registry,
// access control enforcer) and the HTTP API, plus the optional MQTT event
// stream and InfluxDB security series.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/nerrad567/pmflow-core/internal/api"
	"github.com/nerrad567/pmflow-core/internal/audit"
	"github.com/nerrad567/pmflow-core/internal/auth"
	"github.com/nerrad567/pmflow-core/internal/events"
	"github.com/nerrad567/pmflow-core/internal/infrastructure/config"
	"github.com/nerrad567/pmflow-core/internal/infrastructure/database"
	"github.com/nerrad567/pmflow-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/pmflow-core/internal/infrastructure/logging"
	"github.com/nerrad567/pmflow-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/pmflow-core/internal/project"
	"github.com/nerrad567/pmflow-core/internal/task"
	"github.com/nerrad567/pmflow-core/internal/telemetry"
	"github.com/nerrad567/pmflow-core/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting PMFlow Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	users := auth.NewUserRepository(db.DB)
	projects := project.NewSQLiteRepository(db.DB)
	tasks := task.NewSQLiteRepository(db.DB)

	admin := cfg.Auth.BootstrapAdmin
	if _, seedErr := auth.SeedAdmin(ctx, users, admin.Username, admin.Email, log.Logger); seedErr != nil {
		return fmt.Errorf("seeding admin: %w", seedErr)
	}

	// Background workers drain their queues on shutdown, before the
	// database closes.
	var wg sync.WaitGroup
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer func() {
		stopBackground()
		wg.Wait()
	}()
	goRun := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(bgCtx)
		}()
	}

	registry := auth.NewRevocationRegistry(nil)
	goRun(func(ctx context.Context) { registry.Run(ctx, cfg.Auth.RevocationPruneInterval, log.Logger) })

	throttle, closeThrottle, err := newLoginThrottle(ctx, cfg, log, goRun)
	if err != nil {
		return err
	}
	defer closeThrottle()

	metrics := telemetry.New()
	metrics.TrackRevocations(registry.Len)
	recorders := auth.Recorders{metrics}
	healthChecks := map[string]api.HealthChecker{"database": db}

	var auditRepo audit.Repository
	var auditRecorder *audit.Recorder
	if cfg.Audit.Enabled {
		repo := audit.NewSQLiteRepository(db.DB)
		auditRepo = repo
		auditRecorder = audit.NewRecorder(repo, audit.QueueSize, log.Logger)
		goRun(auditRecorder.Run)
		recorders = append(recorders, auditRecorder)
	} else {
		log.Info("audit trail disabled")
	}

	publisher, closeMQTT, err := connectEvents(cfg, log, healthChecks)
	if err != nil {
		return err
	}
	defer closeMQTT()
	if publisher != nil {
		goRun(publisher.Run)
		recorders = append(recorders, publisher)
	}

	influxClient, err := connectInfluxDB(cfg, log)
	if err != nil {
		return err
	}
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		healthChecks["influxdb"] = influxClient
		recorders = append(recorders, influxClient.AuthRecorder())
	}

	svc, err := auth.NewService(auth.ServiceDeps{
		Users:     users,
		Issuer:    auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, nil),
		Validator: auth.NewTokenValidator(cfg.Auth.JWTSecret, registry, nil),
		Registry:  registry,
		Throttle:  throttle,
		Recorder:  recorders,
		Logger:    log.Logger,
	})
	if err != nil {
		return fmt.Errorf("creating auth service: %w", err)
	}

	enforcer := auth.NewEnforcer(auth.DefaultPolicy(), log.Logger)
	enforcer.RegisterResolver(auth.ResourceProject, projects)
	enforcer.RegisterResolver(auth.ResourceTask, tasks)
	enforcer.OnDeny(auth.DenyRecorder(recorders, nil))

	server, err := api.New(api.Deps{
		Config:       cfg.API,
		Logger:       log,
		Auth:         svc,
		Enforcer:     enforcer,
		Users:        users,
		Projects:     projects,
		Tasks:        tasks,
		AuditRepo:    auditRepo,
		Audit:        auditRecorder,
		Events:       publisher,
		Metrics:      metrics,
		HealthChecks: healthChecks,
		Version:      version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: API server, InfluxDB, MQTT,
	// login throttle, background workers, database.
	return nil
}

// getConfigPath returns the configuration file path.
// Uses PMFLOW_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv(config.EnvPrefix + "CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// newLoginThrottle builds the configured login throttle.
//
// Returns:
//   - auth.LoginThrottle: nil when throttling is disabled
//   - func(): releases the backend; always safe to call
//   - error: never for an unreachable Redis, which only logs (the throttle
//     fails open)
func newLoginThrottle(ctx context.Context, cfg *config.Config, log *logging.Logger, goRun func(func(context.Context))) (auth.LoginThrottle, func(), error) {
	lt := cfg.Auth.LoginThrottle
	noop := func() {}

	if !lt.Enabled {
		log.Warn("login throttling disabled")
		return nil, noop, nil
	}

	switch lt.Backend {
	case config.ThrottleBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, login throttle will fail open until it recovers",
				"addr", cfg.Redis.Addr, "error", err)
		} else {
			log.Info("login throttle using redis", "addr", cfg.Redis.Addr)
		}
		closeFn := func() {
			if err := client.Close(); err != nil {
				log.Error("error closing redis", "error", err)
			}
		}
		return auth.NewRedisThrottle(client, lt.MaxAttempts, lt.Window), closeFn, nil

	case config.ThrottleBackendMemory:
		t := auth.NewMemoryThrottle(lt.MaxAttempts, lt.Window, nil)
		if goRun != nil {
			goRun(t.Run)
		}
		log.Info("login throttle using process memory")
		return t, noop, nil
	}
	return nil, noop, fmt.Errorf("unknown login throttle backend %q", lt.Backend)
}

// connectEvents connects to the MQTT broker and returns a domain event
// publisher, or nil when MQTT is disabled. A broker that is configured but
// unreachable is a startup error.
func connectEvents(cfg *config.Config, log *logging.Logger, checks map[string]api.HealthChecker) (*events.Publisher, func(), error) {
	noop := func() {}

	client, err := mqtt.Connect(cfg.MQTT)
	if errors.Is(err, mqtt.ErrDisabled) {
		log.Info("MQTT disabled, domain events will not be published")
		return nil, noop, nil
	}
	if err != nil {
		return nil, noop, fmt.Errorf("connecting to MQTT: %w", err)
	}
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	checks["mqtt"] = client

	publisher := events.NewPublisher(client, events.Options{
		Topics: client.Topics(),
		QoS:    client.QoS(),
		Site:   cfg.Site.ID,
		Logger: log.Logger,
	})

	closeFn := func() {
		log.Info("disconnecting from MQTT")
		if closeErr := client.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}
	return publisher, closeFn, nil
}

// connectInfluxDB connects the security event series writer, or returns
// nil when InfluxDB is disabled.
func connectInfluxDB(cfg *config.Config, log *logging.Logger) (*influxdb.Client, error) {
	client, err := influxdb.Connect(cfg.InfluxDB)
	if errors.Is(err, influxdb.ErrDisabled) {
		log.Info("InfluxDB disabled")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	return client, nil
}
