package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/pmflow-core/internal/infrastructure/database"
)

// UserRepository defines user account persistence.
type UserRepository interface {
	UserLookup
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context) ([]User, error)
	ListByRole(ctx context.Context, role Role) ([]User, error)
	Update(ctx context.Context, user *User) error
	Count(ctx context.Context) (int, error)
}

// SQLiteUserRepository implements UserRepository using SQLite.
type SQLiteUserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new SQLite-backed user repository.
func NewUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

const userColumns = "id, username, email, first_name, last_name, password_hash, role, created_at, updated_at"

// Create inserts a new user account. The ID is generated if empty and the
// role defaults to MEMBER.
func (r *SQLiteUserRepository) Create(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = "usr-" + uuid.NewString()[:8]
	}
	if user.Role == "" {
		user.Role = RoleMember
	}

	now := time.Now().UTC().Truncate(time.Second)
	user.CreatedAt = now
	user.UpdatedAt = now
	ts := now.Format(time.RFC3339)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.Email, user.FirstName, user.LastName,
		user.PasswordHash, string(user.Role), ts, ts,
	)
	if err != nil {
		return uniqueUserError(err, "creating user")
	}
	return nil
}

// GetByID retrieves a user by their unique ID.
func (r *SQLiteUserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
}

// GetByUsername retrieves a user by username.
func (r *SQLiteUserRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE username = ?", username)
}

// GetByIdentifier retrieves a user whose username or email equals identifier.
// A username match wins if one account's username equals another's email.
func (r *SQLiteUserRepository) GetByIdentifier(ctx context.Context, identifier string) (*User, error) {
	return r.getUser(ctx,
		"SELECT "+userColumns+` FROM users WHERE username = ? OR email = ?
		 ORDER BY CASE WHEN username = ? THEN 0 ELSE 1 END LIMIT 1`,
		identifier, identifier, identifier)
}

// List returns all users ordered by creation date.
func (r *SQLiteUserRepository) List(ctx context.Context) ([]User, error) {
	return r.listUsers(ctx, "SELECT "+userColumns+" FROM users ORDER BY created_at ASC, username ASC")
}

// ListByRole returns users holding role.
func (r *SQLiteUserRepository) ListByRole(ctx context.Context, role Role) ([]User, error) {
	return r.listUsers(ctx,
		"SELECT "+userColumns+" FROM users WHERE role = ? ORDER BY created_at ASC, username ASC",
		string(role))
}

// Update writes a user's mutable fields (email, first/last name, role).
func (r *SQLiteUserRepository) Update(ctx context.Context, user *User) error {
	now := time.Now().UTC().Truncate(time.Second)

	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET email = ?, first_name = ?, last_name = ?, role = ?, updated_at = ? WHERE id = ?`,
		user.Email, user.FirstName, user.LastName, string(user.Role), now.Format(time.RFC3339), user.ID,
	)
	if err != nil {
		return uniqueUserError(err, "updating user")
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	user.UpdatedAt = now
	return nil
}

// Count returns the total number of user accounts.
func (r *SQLiteUserRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

func (r *SQLiteUserRepository) getUser(ctx context.Context, query string, args ...any) (*User, error) {
	return scanUser(r.db.QueryRowContext(ctx, query, args...))
}

func (r *SQLiteUserRepository) listUsers(ctx context.Context, query string, args ...any) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	return users, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*User, error) {
	var u User
	var role, createdAt, updatedAt string

	err := s.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName,
		&u.PasswordHash, &role, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	u.Role = Role(role)
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // written by this repository
	u.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // written by this repository
	return &u, nil
}

// uniqueUserError maps a constraint failure to ErrUsernameExists or
// ErrEmailExists, wrapping anything else with op.
func uniqueUserError(err error, op string) error {
	if database.IsUniqueViolation(err) {
		switch {
		case database.ViolatesColumn(err, "users.email"):
			return ErrEmailExists
		case database.ViolatesColumn(err, "users.username"):
			return ErrUsernameExists
		case strings.Contains(err.Error(), "users.id"):
			return fmt.Errorf("%s: duplicate id: %w", op, err)
		}
		return ErrUsernameExists
	}
	return fmt.Errorf("%s: %w", op, err)
}
