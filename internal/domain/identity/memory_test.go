package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func strPtr(s string) *string { return &s }

func TestInMemoryUserRepo_Uniqueness(t *testing.T) {
	repo := NewInMemoryUserRepo()
	ctx := context.Background()

	a := &User{Username: "a", Email: "a@example.com", RFIDTag: strPtr("T1")}
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}

	tests := []struct {
		name string
		u    *User
		want error
	}{
		{"email", &User{Username: "b", Email: "a@example.com"}, ErrDuplicateEmail},
		{"username", &User{Username: "a", Email: "b@example.com"}, ErrDuplicateUsername},
		{"tag", &User{Username: "c", Email: "c@example.com", RFIDTag: strPtr("T1")}, ErrDuplicateTag},
	}
	for _, tt := range tests {
		if err := repo.Create(ctx, tt.u); !errors.Is(err, tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
	}

	// Users without tags never collide on the tag index.
	if err := repo.Create(ctx, &User{Username: "d", Email: "d@example.com"}); err != nil {
		t.Fatalf("Create d: %v", err)
	}
	if err := repo.Create(ctx, &User{Username: "e", Email: "e@example.com"}); err != nil {
		t.Fatalf("Create e: %v", err)
	}
}

func TestInMemoryUserRepo_ReturnsCopies(t *testing.T) {
	repo := NewInMemoryUserRepo()
	ctx := context.Background()

	u := &User{Username: "a", Email: "a@example.com", RFIDTag: strPtr("T1")}
	_ = repo.Create(ctx, u)

	got, _ := repo.GetByID(ctx, u.ID)
	got.Email = "mutated@example.com"
	*got.RFIDTag = "MUTATED"

	again, _ := repo.GetByID(ctx, u.ID)
	if again.Email != "a@example.com" || *again.RFIDTag != "T1" {
		t.Errorf("stored user was mutated through a returned copy: %+v", again)
	}
}

func TestInMemoryUserRepo_Lookups(t *testing.T) {
	repo := NewInMemoryUserRepo()
	ctx := context.Background()
	u := &User{Username: "a", Email: "a@example.com", RFIDTag: strPtr("T1")}
	_ = repo.Create(ctx, u)

	if got, err := repo.GetByEmail(ctx, "a@example.com"); err != nil || got.ID != u.ID {
		t.Errorf("GetByEmail = %v, %v", got, err)
	}
	if got, err := repo.GetByUsername(ctx, "a"); err != nil || got.ID != u.ID {
		t.Errorf("GetByUsername = %v, %v", got, err)
	}
	if got, err := repo.GetByTag(ctx, "T1"); err != nil || got.ID != u.ID {
		t.Errorf("GetByTag = %v, %v", got, err)
	}
	if _, err := repo.GetByTag(ctx, "T2"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	if err := repo.UpdatePassword(ctx, uuid.New(), "x"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := repo.SetTag(ctx, uuid.New(), nil); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestInMemoryUserRepo_UpdateProfileEmailCollision(t *testing.T) {
	repo := NewInMemoryUserRepo()
	ctx := context.Background()
	a := &User{Username: "a", Email: "a@example.com"}
	b := &User{Username: "b", Email: "b@example.com"}
	_ = repo.Create(ctx, a)
	_ = repo.Create(ctx, b)

	a.Email = "b@example.com"
	if err := repo.UpdateProfile(ctx, a); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
	stored, _ := repo.GetByID(ctx, a.ID)
	if stored.Email != "a@example.com" {
		t.Errorf("failed update must not change the row, email = %q", stored.Email)
	}
}
