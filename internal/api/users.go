package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/pmflow-core/internal/auth"
	"github.com/nerrad567/pmflow-core/internal/events"
)

// ─── Request Types ─────────────────────────────────────────────────

type updateProfileRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Email     *string `json:"email"`
}

type adminUpdateUserRequest struct {
	updateProfileRequest
	Role *string `json:"role"`
}

// apply patches u. It reports the first invalid field.
func (req updateProfileRequest) apply(u *auth.User) error {
	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		if !auth.IsValidEmail(email) {
			return fmt.Errorf("%w: email is not a valid address", auth.ErrInvalidInput)
		}
		u.Email = email
	}
	if req.FirstName != nil {
		u.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		u.LastName = strings.TrimSpace(*req.LastName)
	}
	return nil
}

// ─── Handlers ──────────────────────────────────────────────────────

// handleGetMe returns the caller's own account.
func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	p := principalFromContext(r.Context())
	if err := s.enforcer.Authorize(r.Context(), p, auth.OpUserReadSelf, p.UserID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	user, err := s.users.GetByID(r.Context(), p.UserID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// handleUpdateMe changes the caller's name and email. Role and username
// are not self-editable.
func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	p := principalFromContext(r.Context())
	if err := s.enforcer.Authorize(r.Context(), p, auth.OpUserUpdateSelf, p.UserID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	var req updateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := s.users.GetByID(r.Context(), p.UserID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := req.apply(user); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := s.users.Update(r.Context(), user); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.logger.Info("profile updated", "user_id", user.ID)
	s.recordMutation(r, "update", events.EntityUser, user.ID, nil)

	writeJSON(w, http.StatusOK, user)
}

// handleListUsers returns all user accounts.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if err := s.enforcer.Authorize(r.Context(), principalFromContext(r.Context()), auth.OpUserList, ""); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	users, err := s.users.List(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"count": len(users),
	})
}

// handleListUsersByRole returns the users holding one role.
func (s *Server) handleListUsersByRole(w http.ResponseWriter, r *http.Request) {
	if err := s.enforcer.Authorize(r.Context(), principalFromContext(r.Context()), auth.OpUserListByRole, ""); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	role, ok := auth.ParseRole(chi.URLParam(r, "role"))
	if !ok {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "role must be ADMIN, PROJECT_MANAGER or MEMBER")
		return
	}

	users, err := s.users.ListByRole(r.Context(), role)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"count": len(users),
	})
}

// handleAdminUpdateUser changes any user's profile and role.
func (s *Server) handleAdminUpdateUser(w http.ResponseWriter, r *http.Request) {
	p := principalFromContext(r.Context())
	if err := s.enforcer.Authorize(r.Context(), p, auth.OpUserAdminUpdate, ""); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	id := chi.URLParam(r, "userID")
	var req adminUpdateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := s.users.GetByID(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := req.apply(user); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if req.Role != nil {
		role, ok := auth.ParseRole(*req.Role)
		if !ok {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, "role must be ADMIN, PROJECT_MANAGER or MEMBER")
			return
		}
		// Self-protection: an admin cannot demote themselves.
		if id == p.UserID && role != user.Role {
			writeError(w, http.StatusForbidden, ErrCodeForbidden, "cannot change your own role")
			return
		}
		user.Role = role
	}

	if err := s.users.Update(r.Context(), user); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.logger.Info("user updated", "user_id", id, "updated_by", p.UserID)
	s.recordMutation(r, "update", events.EntityUser, id, map[string]any{
		"role": string(user.Role),
	})

	writeJSON(w, http.StatusOK, user)
}
