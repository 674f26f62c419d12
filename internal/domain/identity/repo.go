package identity

import (
	"context"

	"github.com/google/uuid"

	"github.com/phr/phr/internal/platform/apierr"
)

var (
	ErrUserNotFound      = apierr.NotFound("User not found")
	ErrDuplicateEmail    = apierr.DuplicateIdentity("User with this email already exists")
	ErrDuplicateUsername = apierr.DuplicateIdentity("Username is already taken")
	ErrDuplicateTag      = apierr.DuplicateIdentity("RFID tag is already assigned to another user")
)

// UserRepository is the credential store. Lookups return ErrUserNotFound
// when nothing matches; writes that would collide on username, email or tag
// return the matching ErrDuplicate* error. Emails are compared as stored,
// callers normalise them first.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByTag(ctx context.Context, tag string) (*User, error)
	UpdateProfile(ctx context.Context, u *User) error
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
	SetTag(ctx context.Context, id uuid.UUID, tag *string) (*User, error)
}
