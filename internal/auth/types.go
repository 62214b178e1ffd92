package auth

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
	"time"
)

// usernamePattern: alphanumeric, dots, hyphens, underscores, 3-64 characters.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{3,64}$`)

// IsValidUsername checks if a username meets format requirements.
func IsValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// IsValidEmail reports whether s is a bare address such as "a@b.example".
func IsValidEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s && strings.Contains(s, "@")
}

// Role is one of the fixed authorisation tiers.
type Role string

const (
	// RoleAdmin manages every user, project and task.
	RoleAdmin Role = "ADMIN"

	// RoleProjectManager owns projects and the tasks inside them.
	RoleProjectManager Role = "PROJECT_MANAGER"

	// RoleMember works on tasks in projects they belong to.
	RoleMember Role = "MEMBER"
)

// ValidRoles lists every assignable role.
var ValidRoles = []Role{RoleAdmin, RoleProjectManager, RoleMember}

// ParseRole converts a case-insensitive role name. ok is false for unknown names.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	return r, IsValidRole(r)
}

// IsValidRole returns true if r is one of ValidRoles.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// User is a stored account. PasswordHash never leaves the process.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FullName joins first and last name, skipping empty parts.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Principal is the authenticated identity attached to a single request.
// It is built from token claims and never cached past the request.
type Principal struct {
	UserID    string
	Username  string
	Role      Role
	ExpiresAt time.Time
}

// IsAdmin is shorthand for Role == RoleAdmin.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// Sentinel errors for auth operations.
//
// Every token failure wraps ErrUnauthenticated, so callers can match either
// the class or the precise cause:
//
//	if errors.Is(err, auth.ErrUnauthenticated) { ... }   // any bad token
//	if errors.Is(err, auth.ErrTokenRevoked) { ... }      // logged out
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrMalformedToken     = errors.New("token malformed")
	ErrInvalidSignature   = errors.New("invalid token signature")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenRevoked       = errors.New("token revoked")
	ErrForbidden          = errors.New("forbidden")
	ErrLoginThrottled     = errors.New("too many failed login attempts")

	ErrUserNotFound   = errors.New("user not found")
	ErrUsernameExists = errors.New("username already exists")
	ErrEmailExists    = errors.New("email already exists")
	ErrInvalidInput   = errors.New("invalid input")
)
