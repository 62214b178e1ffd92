package api

import (
	"net/http"

	"github.com/nerrad567/pmflow-core/internal/audit"
	"github.com/nerrad567/pmflow-core/internal/auth"
)

type registerRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// loginRequest accepts a username or an email as identifier.
type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type loginResponse struct {
	Token       string     `json:"token"`
	TokenType   string     `json:"token_type"`
	ExpiresInMS int64      `json:"expires_in_ms"`
	User        *auth.User `json:"user"`
}

// handleRegister creates a MEMBER account. The audit entry and the
// user/registered event come from the auth event recorders.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := s.auth.Register(r.Context(), auth.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// handleLogin verifies credentials and returns a session token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Identifier == "" || req.Password == "" {
		writeBadRequest(w, "identifier and password are required")
		return
	}

	result, err := s.auth.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:       result.Token,
		TokenType:   "Bearer",
		ExpiresInMS: result.ExpiresIn.Milliseconds(),
		User:        result.User,
	})
}

// handleLogout revokes the presented token. It sits outside the auth gate
// so that a missing or malformed header is a 400 rather than a 401, and an
// already expired or revoked token is still acknowledged.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeBadRequest(w, "missing or malformed Authorization header")
		return
	}

	if err := s.auth.Logout(r.Context(), token); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// recordMutation queues the audit entry and domain event for a change made
// by the request's principal.
func (s *Server) recordMutation(r *http.Request, action, entity, entityID string, details map[string]any) {
	actor := ""
	if p := principalFromContext(r.Context()); p != nil {
		actor = p.UserID
	}
	s.audit.Record(&audit.Entry{
		Action:     action,
		EntityType: entity,
		EntityID:   entityID,
		UserID:     actor,
		Source:     audit.SourceAPI,
		Details:    details,
	})
	s.events.Emit(entity, pastTense(action), entityID, actor, details)
}

// pastTense turns an audit action into the event action name.
func pastTense(action string) string {
	switch action {
	case "create":
		return "created"
	case "update":
		return "updated"
	case "delete":
		return "deleted"
	case "assign":
		return "assigned"
	default:
		return action
	}
}
