package core

import (
	"context"
	"time"
)

// User represents an authenticated system user. Role gates write access in
// the adapters; the engine itself only records actor names for audit stamps.
type User struct {
	ID           int
	Username     string
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
}

// UserService provides user lookup and credential verification.
type UserService interface {
	// GetByUsername finds an active user by username.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByID returns a user by primary key.
	GetByID(ctx context.Context, userID int) (*User, error)

	// Authenticate verifies a username/password pair against the stored
	// bcrypt hash and returns the user on success.
	Authenticate(ctx context.Context, username, password string) (*User, error)
}
