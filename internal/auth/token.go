package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL is the session validity window when none is configured.
const DefaultTokenTTL = 24 * time.Hour

// Clock returns the current time. Tests inject fixed clocks.
type Clock func() time.Time

// Claims is the signed payload of a session token.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// TokenIssuer mints HS256 session tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    Clock
}

// NewTokenIssuer creates an issuer. A non-positive ttl falls back to
// DefaultTokenTTL; a nil clock uses time.Now.
func NewTokenIssuer(secret string, ttl time.Duration, now Clock) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: now}
}

// TTL returns the validity window applied to every issued token.
func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs a token for user valid from now until now+TTL.
func (i *TokenIssuer) Issue(user *User) (token string, expiresAt time.Time, err error) {
	if len(i.secret) == 0 {
		return "", time.Time{}, errors.New("signing key unavailable")
	}

	now := i.now()
	expiresAt = now.Add(i.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
		Username: user.Username,
		Role:     user.Role,
	}

	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing session token: %w", err)
	}
	// NumericDate drops sub-second precision; report what the token says.
	return token, claims.ExpiresAt.Time, nil
}

// TokenValidator verifies session tokens and consults the revocation registry.
type TokenValidator struct {
	secret   []byte
	registry *RevocationRegistry
	now      Clock
	parser   *jwt.Parser
}

// NewTokenValidator creates a validator. registry may be nil, in which case
// no token is treated as revoked.
func NewTokenValidator(secret string, registry *RevocationRegistry, now Clock) *TokenValidator {
	if now == nil {
		now = time.Now
	}
	v := &TokenValidator{secret: []byte(secret), registry: registry, now: now}
	v.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return v.now() }),
	)
	return v
}

// Validate checks, in order: structure and algorithm, signature, expiry
// (exclusive: a token checked exactly at exp is expired), then revocation.
// Each failure is a distinct sentinel wrapped with ErrUnauthenticated.
func (v *TokenValidator) Validate(token string) (*Principal, error) {
	claims, err := v.parse(token)
	if err != nil {
		return nil, err
	}
	if v.registry != nil && v.registry.IsRevoked(token) {
		return nil, unauthenticated(ErrTokenRevoked)
	}
	return claimsPrincipal(claims), nil
}

// parse runs every check except revocation.
func (v *TokenValidator) parse(token string) (*Claims, error) {
	if token == "" {
		return nil, unauthenticated(ErrMalformedToken)
	}

	claims := &Claims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, func(_ *jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, classifyParseError(parsed, err)
	}
	if !parsed.Valid {
		return nil, unauthenticated(ErrMalformedToken)
	}
	if claims.Subject == "" || !IsValidRole(claims.Role) {
		return nil, unauthenticated(ErrMalformedToken)
	}
	// Belt and braces over the library check, against our own clock.
	if !v.now().Before(claims.ExpiresAt.Time) {
		return nil, unauthenticated(ErrTokenExpired)
	}
	return claims, nil
}

// classifyParseError maps jwt errors onto the validator's sentinels.
// An unsigned or foreign-algorithm token counts as malformed, not as a bad
// signature.
func classifyParseError(parsed *jwt.Token, err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed), errors.Is(err, jwt.ErrTokenUnverifiable):
		return unauthenticated(ErrMalformedToken)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		if parsed == nil || parsed.Method == nil || parsed.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return unauthenticated(ErrMalformedToken)
		}
		return unauthenticated(ErrInvalidSignature)
	case errors.Is(err, jwt.ErrTokenExpired):
		return unauthenticated(ErrTokenExpired)
	default:
		return unauthenticated(ErrMalformedToken)
	}
}

func unauthenticated(cause error) error {
	return fmt.Errorf("%w: %w", ErrUnauthenticated, cause)
}

func claimsPrincipal(c *Claims) *Principal {
	return &Principal{
		UserID:    c.Subject,
		Username:  c.Username,
		Role:      c.Role,
		ExpiresAt: c.ExpiresAt.Time,
	}
}
