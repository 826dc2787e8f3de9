package repository

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/clinickit/clinic-auth-api/internal/domain"
)

func newUser(email string) *domain.User {
	return &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: "$2a$12$notarealhash",
		Name:         "Test User",
		Role:         domain.RoleDoctor,
	}
}

func TestUserCreateAndFind(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))

	u := newUser("doc@example.com")
	if err := repo.Create(u); err != nil {
		t.Fatalf("create: %v", err)
	}

	byEmail, err := repo.FindByEmail("doc@example.com")
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if byEmail.ID != u.ID {
		t.Fatalf("unexpected id %q", byEmail.ID)
	}

	byID, err := repo.FindByID(u.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if byID.Email != u.Email {
		t.Fatalf("unexpected email %q", byID.Email)
	}

	if _, err := repo.FindByEmail("missing@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))

	if err := repo.Create(newUser("dup@example.com")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(newUser("dup@example.com")); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestUserUpdatePassword(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))

	u := newUser("pw@example.com")
	if err := repo.Create(u); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.UpdatePassword(u.ID, "$2a$12$anotherhash"); err != nil {
		t.Fatalf("update password: %v", err)
	}
	got, err := repo.FindByID(u.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.PasswordHash != "$2a$12$anotherhash" {
		t.Fatalf("password hash not updated: %q", got.PasswordHash)
	}

	if err := repo.UpdatePassword(uuid.NewString(), "x"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound for unknown user, got %v", err)
	}
}
