package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds each component check in GET /health.
const healthCheckTimeout = 3 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	if s.metrics != nil {
		r.Use(s.metrics.Instrument)
	}
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)
	if s.limiter != nil {
		r.Use(s.rateLimitMiddleware)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		if s.metrics != nil {
			r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
		}

		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Route("/users", func(r chi.Router) {
				r.Get("/", s.handleListUsers)
				r.Get("/me", s.handleGetMe)
				r.Put("/me", s.handleUpdateMe)
				r.Get("/role/{role}", s.handleListUsersByRole)
				r.Put("/admin/{userID}", s.handleAdminUpdateUser)
			})

			r.Route("/projects", func(r chi.Router) {
				r.Post("/", s.handleCreateProject)
				r.Get("/", s.handleListProjects)
				r.Get("/by_name", s.handleGetProjectByName)
				r.Put("/by_name/{name}", s.handleUpdateProjectByName)
				r.Delete("/by_name/{name}", s.handleDeleteProjectByName)
				r.Get("/filter", s.handleFilterProjects)
				r.Get("/count", s.handleCountProjects)

				r.Route("/manager/{username}", func(r chi.Router) {
					r.Get("/", s.handleManagerProjects)
					r.Get("/filter", s.handleManagerFilterProjects)
					r.Get("/by_name", s.handleManagerProjectByName)
					r.Get("/count", s.handleManagerCountProjects)
				})

				r.Route("/{projectID}", func(r chi.Router) {
					r.Get("/", s.handleGetProject)
					r.Put("/", s.handleUpdateProject)
					r.Delete("/", s.handleDeleteProject)
				})
			})

			r.Route("/tasks", func(r chi.Router) {
				r.Post("/", s.handleCreateTask)
				r.Get("/project/{projectID}", s.handleListProjectTasks)
				r.Get("/user/{userID}", s.handleListUserTasks)
				r.Put("/admin/{taskID}", s.handleAdminUpdateTask)

				r.Route("/{taskID}", func(r chi.Router) {
					r.Get("/", s.handleGetTask)
					r.Put("/", s.handleUpdateTask)
					r.Delete("/", s.handleDeleteTask)
					r.Put("/status", s.handleUpdateTaskStatus)
					r.Put("/assign", s.handleAssignTask)
				})
			})

			r.Get("/audit-logs", s.handleListAuditLogs)
		})
	})

	return r
}

// handleHealth reports the server version and the state of each registered
// component. Any failing component turns the response into a 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	components := make(map[string]string, len(s.healthChecks))

	for name, hc := range s.healthChecks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := hc.HealthCheck(ctx)
		cancel()

		if err != nil {
			components[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"components": components,
	})
}
