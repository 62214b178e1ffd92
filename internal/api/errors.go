package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/nerrad567/pmflow-core/internal/auth"
	"github.com/nerrad567/pmflow-core/internal/project"
	"github.com/nerrad567/pmflow-core/internal/task"
)

// Error is the body of every error response, wrapped as {"error": Error}.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error Error `json:"error"`
}

// Common error codes.
const (
	ErrCodeBadRequest      = "bad_request"
	ErrCodeNotFound        = "not_found"
	ErrCodeUnauthorized    = "unauthorized"
	ErrCodeForbidden       = "forbidden"
	ErrCodeConflict        = "conflict"
	ErrCodeInternal        = "internal_error"
	ErrCodeValidation      = "validation_error"
	ErrCodeMethodNotAllow  = "method_not_allowed"
	ErrCodeTooManyRequests = "too_many_requests"
	ErrCodeRateLimited     = "rate_limited"
	ErrCodeTooLarge        = "payload_too_large"
)

// errMissingBearer is reported when a protected route has no usable
// Authorization header.
var errMissingBearer = fmt.Errorf("%w: missing bearer token", auth.ErrUnauthenticated)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: Error{
		Status:  status,
		Code:    code,
		Message: message,
	}})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// unauthenticatedMessage returns the stable client message for a token or
// credential failure.
func unauthenticatedMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "invalid credentials"
	case errors.Is(err, auth.ErrTokenRevoked):
		return "token revoked"
	case errors.Is(err, auth.ErrTokenExpired):
		return "token expired"
	case errors.Is(err, auth.ErrInvalidSignature):
		return "invalid token signature"
	case errors.Is(err, auth.ErrMalformedToken):
		return "token malformed"
	case errors.Is(err, errMissingBearer):
		return "missing bearer token"
	default:
		return "authentication required"
	}
}

// notFoundErrors map to 404 with their own message.
var notFoundErrors = []error{
	auth.ErrUserNotFound,
	project.ErrProjectNotFound,
	task.ErrTaskNotFound,
	task.ErrProjectNotFound,
}

// conflictErrors map to 409.
var conflictErrors = []error{
	auth.ErrUsernameExists,
	auth.ErrEmailExists,
	project.ErrNameExists,
}

// validationErrors map to 400 with the wrapped detail as message.
var validationErrors = []error{
	auth.ErrInvalidInput,
	project.ErrInvalidName,
	project.ErrInvalidStatus,
	project.ErrInvalidDate,
	project.ErrManagerNotFound,
	project.ErrMemberNotFound,
	task.ErrInvalidName,
	task.ErrInvalidPriority,
	task.ErrInvalidStatus,
	task.ErrAssigneeNotFound,
}

// writeServiceError is the single mapping from errors returned by the auth,
// project and task packages to HTTP responses. Anything unrecognised is
// logged and reported as a 500 without detail.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrLoginThrottled):
		writeError(w, http.StatusTooManyRequests, ErrCodeTooManyRequests, "too many failed login attempts, try again later")
		return
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, unauthenticatedMessage(err))
		return
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, http.StatusForbidden, ErrCodeForbidden, "access denied")
		return
	}

	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			writeNotFound(w, target.Error())
			return
		}
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			writeError(w, http.StatusConflict, ErrCodeConflict, target.Error())
			return
		}
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
	}

	s.logger.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", requestIDFromContext(r.Context()),
		"error", err,
	)
	writeInternalError(w, "internal server error")
}

// decodeJSON reads the request body into v. On failure it writes a 400 (or
// 413 for an oversized body) and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		writeError(w, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "request body too large")
		return false
	}
	writeBadRequest(w, "invalid JSON body")
	return false
}
