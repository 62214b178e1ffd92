package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// seedPasswordBytes is the number of random bytes in a bootstrap password.
const seedPasswordBytes = 16

// SeedAdmin creates the first ADMIN account when the users table is empty.
// The generated password is logged once at Warn and returned; it is empty
// when seeding was skipped.
func SeedAdmin(ctx context.Context, users UserRepository, username, email string, logger *slog.Logger) (string, error) {
	count, err := users.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("checking user count: %w", err)
	}
	if count > 0 {
		logger.Info("users exist, skipping admin seed")
		return "", nil
	}

	buf := make([]byte, seedPasswordBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating seed password: %w", err)
	}
	password := hex.EncodeToString(buf)

	hash, err := HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing seed password: %w", err)
	}

	admin := &User{
		Username:     username,
		Email:        email,
		FirstName:    "System",
		LastName:     "Administrator",
		PasswordHash: hash,
		Role:         RoleAdmin,
	}
	if err := users.Create(ctx, admin); err != nil {
		return "", fmt.Errorf("creating seed admin: %w", err)
	}

	logger.Warn("bootstrap admin account created",
		"username", username,
		"password", password,
		"action_required", "change this password immediately",
	)
	return password, nil
}
