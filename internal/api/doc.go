// Package api implements the PMFlow Core HTTP REST API.
//
// This package provides:
//   - Registration, login and logout endpoints backed by auth.Service
//   - Bearer token authentication on every protected route
//   - Per-operation authorisation through auth.Enforcer
//   - User, project, task and audit log endpoints
//   - Middleware stack (request ID, logging, recovery, CORS, rate limit)
//   - Prometheus metrics and a component health check
//
// # Error Envelope
//
// Every error response has the shape
//
//	{"error": {"status": 401, "code": "unauthorized", "message": "token revoked"}}
//
// and is produced by writeServiceError, the single mapping from domain and
// auth errors to HTTP status codes.
//
// # Side Effects
//
// Mutating handlers queue an audit entry and publish a domain event. Both
// are asynchronous and best-effort; neither delays or fails the response.
package api
