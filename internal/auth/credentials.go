package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// UserLookup finds a stored account by username or email.
// It returns ErrUserNotFound when neither matches.
type UserLookup interface {
	GetByIdentifier(ctx context.Context, identifier string) (*User, error)
}

// CredentialVerifier checks an identifier and secret against stored hashes.
// It never writes.
type CredentialVerifier struct {
	users UserLookup

	// dummyHash is verified against when the identifier is unknown so that
	// both failure paths cost one Argon2id evaluation.
	dummyOnce sync.Once
	dummyHash string
}

// NewCredentialVerifier creates a verifier backed by users.
func NewCredentialVerifier(users UserLookup) *CredentialVerifier {
	return &CredentialVerifier{users: users}
}

// Verify returns the stored user when secret matches its password hash.
//
// An unknown identifier and a wrong secret both fail with
// ErrInvalidCredentials. Lookup failures other than not-found are returned
// wrapped so the caller can report a server error.
func (v *CredentialVerifier) Verify(ctx context.Context, identifier, secret string) (*User, error) {
	if identifier == "" || secret == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := v.users.GetByIdentifier(ctx, identifier)
	if errors.Is(err, ErrUserNotFound) {
		v.burnDummy(secret)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	ok, err := VerifyPassword(secret, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verifying password for %s: %w", user.ID, err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (v *CredentialVerifier) burnDummy(secret string) {
	v.dummyOnce.Do(func() {
		v.dummyHash, _ = HashPassword("pmflow-dummy-password") //nolint:errcheck // empty hash only skips the delay
	})
	if v.dummyHash != "" {
		_, _ = VerifyPassword(secret, v.dummyHash) //nolint:errcheck // result discarded
	}
}
