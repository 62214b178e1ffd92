package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/pmflow-core/internal/audit"
	"github.com/nerrad567/pmflow-core/internal/auth"
	"github.com/nerrad567/pmflow-core/internal/events"
	"github.com/nerrad567/pmflow-core/internal/infrastructure/config"
	"github.com/nerrad567/pmflow-core/internal/infrastructure/logging"
	"github.com/nerrad567/pmflow-core/internal/project"
	"github.com/nerrad567/pmflow-core/internal/task"
	"github.com/nerrad567/pmflow-core/internal/telemetry"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker is a component reported by GET /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Logger   *logging.Logger
	Auth     *auth.Service
	Enforcer *auth.Enforcer
	Users    auth.UserRepository
	Projects project.Repository
	Tasks    task.Repository

	// Optional collaborators. Nil disables the feature.
	AuditRepo    audit.Repository
	Audit        *audit.Recorder
	Events       *events.Publisher
	Metrics      *telemetry.Metrics
	HealthChecks map[string]HealthChecker

	// Now defaults to time.Now. Project start dates are taken from it.
	Now     func() time.Time
	Version string
}

// Server is the HTTP API server for PMFlow Core.
//
// It is created with New() and started with Start(). Handler() exposes the
// routed handler without a listener, which is how tests drive it.
type Server struct {
	cfg          config.APIConfig
	logger       *logging.Logger
	auth         *auth.Service
	enforcer     *auth.Enforcer
	users        auth.UserRepository
	projects     project.Repository
	tasks        task.Repository
	auditRepo    audit.Repository
	audit        *audit.Recorder
	events       *events.Publisher
	metrics      *telemetry.Metrics
	healthChecks map[string]HealthChecker
	limiter      *ipRateLimiter
	now          func() time.Time
	version      string

	router http.Handler
	server *http.Server
	cancel context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Logger, Auth, Enforcer, Users, Projects and Tasks are required
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger is required")
	case deps.Auth == nil || deps.Enforcer == nil:
		return nil, fmt.Errorf("auth service and enforcer are required")
	case deps.Users == nil || deps.Projects == nil || deps.Tasks == nil:
		return nil, fmt.Errorf("user, project and task repositories are required")
	}

	s := &Server{
		cfg:          deps.Config,
		logger:       deps.Logger,
		auth:         deps.Auth,
		enforcer:     deps.Enforcer,
		users:        deps.Users,
		projects:     deps.Projects,
		tasks:        deps.Tasks,
		auditRepo:    deps.AuditRepo,
		audit:        deps.Audit,
		events:       deps.Events,
		metrics:      deps.Metrics,
		healthChecks: deps.HealthChecks,
		now:          deps.Now,
		version:      deps.Version,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if rl := deps.Config.RateLimit; rl.Enabled {
		s.limiter = newIPRateLimiter(rl.RequestsPerSecond, rl.Burst)
	}

	s.router = s.buildRouter()
	return s, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening for HTTP connections in a background goroutine.
// The rate limiter sweeper runs until Close() or ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.limiter != nil {
		go s.limiter.Run(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
