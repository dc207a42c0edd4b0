package core_test

import (
	"context"
	"testing"

	"stockroom/internal/core"

	"golang.org/x/crypto/bcrypt"
)

func TestAuthenticate(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("toolcage"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	_, err = pool.Exec(ctx, `
		INSERT INTO users (username, password_hash, role, is_active) VALUES
		($1, $2, 'staff', true),
		('gone', $2, 'staff', false)
	`, "alice", string(hash))
	if err != nil {
		t.Fatalf("Failed to seed users: %v", err)
	}

	users := core.NewUserService(pool)

	u, err := users.Authenticate(ctx, "alice", "toolcage")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if u.Username != "alice" || u.Role != "staff" {
		t.Errorf("Wrong user returned: %+v", u)
	}

	if _, err := users.Authenticate(ctx, "alice", "wrong"); err == nil {
		t.Error("Wrong password should fail")
	}
	if _, err := users.Authenticate(ctx, "nobody", "toolcage"); err == nil {
		t.Error("Unknown user should fail")
	}
	// Deactivated users cannot log in even with the right password.
	if _, err := users.Authenticate(ctx, "gone", "toolcage"); err == nil {
		t.Error("Inactive user should fail")
	}

	byID, err := users.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if byID.Username != "alice" {
		t.Errorf("GetByID returned %q, want alice", byID.Username)
	}
}
