package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Service is the entry point the HTTP layer uses for login, logout,
// registration and per-request authentication.
type Service struct {
	users     UserRepository
	verifier  *CredentialVerifier
	issuer    *TokenIssuer
	validator *TokenValidator
	registry  *RevocationRegistry
	throttle  LoginThrottle
	recorder  EventRecorder
	logger    *slog.Logger
	now       Clock
}

// ServiceDeps holds the collaborators of a Service.
type ServiceDeps struct {
	Users     UserRepository
	Issuer    *TokenIssuer
	Validator *TokenValidator
	Registry  *RevocationRegistry

	// Throttle is optional; nil disables login throttling.
	Throttle LoginThrottle
	// Recorder is optional.
	Recorder EventRecorder
	Logger   *slog.Logger
	Now      Clock
}

// NewService wires a Service. Users, Issuer, Validator and Registry are required.
func NewService(deps ServiceDeps) (*Service, error) {
	if deps.Users == nil || deps.Issuer == nil || deps.Validator == nil || deps.Registry == nil {
		return nil, errors.New("auth service: users, issuer, validator and registry are required")
	}
	s := &Service{
		users:     deps.Users,
		verifier:  NewCredentialVerifier(deps.Users),
		issuer:    deps.Issuer,
		validator: deps.Validator,
		registry:  deps.Registry,
		throttle:  deps.Throttle,
		recorder:  deps.Recorder,
		logger:    deps.Logger,
		now:       deps.Now,
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	// ExpiresIn is the configured validity window.
	ExpiresIn time.Duration
	User      *User
}

// Login verifies credentials and issues a session token.
//
// Returns:
//   - ErrLoginThrottled: the identifier has too many recent failures
//   - ErrInvalidCredentials: unknown identifier or wrong secret
//   - other errors: storage or signing failures
func (s *Service) Login(ctx context.Context, identifier, secret string) (*LoginResult, error) {
	key := ThrottleKey(identifier)

	if s.throttle != nil {
		ok, err := s.throttle.Allow(ctx, key)
		if err != nil {
			// Fail open when the counter store is unreachable.
			s.logger.Error("login throttle check failed", "error", err)
		} else if !ok {
			s.record(ctx, Event{Type: EventLoginThrottled, Username: identifier})
			return nil, ErrLoginThrottled
		}
	}

	user, err := s.verifier.Verify(ctx, strings.TrimSpace(identifier), secret)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			s.recordFailure(ctx, key)
			s.logger.Warn("login failed", "identifier", identifier)
			s.record(ctx, Event{Type: EventLoginFailed, Username: identifier, Reason: "invalid_credentials"})
		}
		return nil, err
	}

	token, expiresAt, err := s.issuer.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}

	if s.throttle != nil {
		if err := s.throttle.Reset(ctx, key); err != nil {
			s.logger.Error("login throttle reset failed", "error", err)
		}
	}

	s.logger.Info("login succeeded", "user_id", user.ID, "role", string(user.Role))
	s.record(ctx, Event{Type: EventLoginSucceeded, UserID: user.ID, Username: user.Username, Role: user.Role})

	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		ExpiresIn: s.issuer.TTL(),
		User:      user,
	}, nil
}

// Logout revokes token. The entry is in the registry before Logout returns.
//
// An expired or already revoked token is acknowledged without error. A token
// that is malformed or carries a bad signature is rejected, since its expiry
// cannot be trusted.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.validator.parse(token)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return nil
		}
		return err
	}

	s.registry.Revoke(token, claims.ExpiresAt.Time)

	s.logger.Info("logout", "user_id", claims.Subject)
	s.record(ctx, Event{Type: EventLogout, UserID: claims.Subject, Username: claims.Username, Role: claims.Role})
	return nil
}

// Authenticate validates a bearer token and returns its principal.
// Rejections are logged at debug and recorded.
func (s *Service) Authenticate(ctx context.Context, token string) (*Principal, error) {
	p, err := s.validator.Validate(token)
	if err != nil {
		reason := RejectReason(err)
		s.logger.Debug("token rejected", "reason", reason)
		s.record(ctx, Event{Type: EventTokenRejected, Reason: reason})
		return nil, err
	}
	return p, nil
}

// RegisterInput is a self-service sign-up request.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Validate reports the first problem with in, wrapped in ErrInvalidInput.
func (in RegisterInput) Validate() error {
	switch {
	case !IsValidUsername(in.Username):
		return fmt.Errorf("%w: username must be 3-64 characters of letters, digits, '.', '-' or '_'", ErrInvalidInput)
	case !IsValidEmail(in.Email):
		return fmt.Errorf("%w: email is not a valid address", ErrInvalidInput)
	case len(in.Password) < MinPasswordLength:
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}
	return nil
}

// Register creates a MEMBER account. The role is never taken from input.
//
// Returns ErrInvalidInput, ErrUsernameExists or ErrEmailExists for client
// errors.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := in.Validate(); err != nil {
		return nil, err
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &User{
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		PasswordHash: hash,
		Role:         RoleMember,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID)
	s.record(ctx, Event{Type: EventRegistered, UserID: user.ID, Username: user.Username, Role: user.Role})
	return user, nil
}

// TokenTTL returns the issuer's validity window.
func (s *Service) TokenTTL() time.Duration {
	return s.issuer.TTL()
}

func (s *Service) recordFailure(ctx context.Context, key string) {
	if s.throttle == nil {
		return
	}
	if err := s.throttle.RecordFailure(ctx, key); err != nil {
		s.logger.Error("login throttle update failed", "error", err)
	}
}

func (s *Service) record(ctx context.Context, ev Event) {
	if s.recorder == nil {
		return
	}
	ev.At = s.now()
	s.recorder.RecordAuthEvent(ctx, ev)
}
