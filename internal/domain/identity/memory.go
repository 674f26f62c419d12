package identity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryUserRepo is a UserRepository backed by a map. It enforces the same
// uniqueness rules as the Postgres schema and hands out copies, so callers
// never share state with the store. Safe for concurrent use.
type InMemoryUserRepo struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*User
	now   func() time.Time
}

func NewInMemoryUserRepo() *InMemoryUserRepo {
	return &InMemoryUserRepo{users: make(map[uuid.UUID]*User), now: time.Now}
}

func cloneUser(u *User) *User {
	cp := *u
	if u.RFIDTag != nil {
		tag := *u.RFIDTag
		cp.RFIDTag = &tag
	}
	if u.DateOfBirth != nil {
		d := *u.DateOfBirth
		cp.DateOfBirth = &d
	}
	return &cp
}

// conflictLocked reports the uniqueness rule u would break, ignoring the
// stored row with u's own id.
func (r *InMemoryUserRepo) conflictLocked(u *User) error {
	for id, other := range r.users {
		if id == u.ID {
			continue
		}
		switch {
		case other.Email == u.Email:
			return ErrDuplicateEmail
		case other.Username == u.Username:
			return ErrDuplicateUsername
		case u.RFIDTag != nil && other.RFIDTag != nil && *other.RFIDTag == *u.RFIDTag:
			return ErrDuplicateTag
		}
	}
	return nil
}

func (r *InMemoryUserRepo) Create(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u.ID = uuid.New()
	if err := r.conflictLocked(u); err != nil {
		return err
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	u.CreatedAt = r.now().UTC()
	u.UpdatedAt = u.CreatedAt
	r.users[u.ID] = cloneUser(u)
	return nil
}

func (r *InMemoryUserRepo) find(match func(*User) bool) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *InMemoryUserRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *InMemoryUserRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	return r.find(func(u *User) bool { return u.Email == email })
}

func (r *InMemoryUserRepo) GetByUsername(_ context.Context, username string) (*User, error) {
	return r.find(func(u *User) bool { return u.Username == username })
}

func (r *InMemoryUserRepo) GetByTag(_ context.Context, tag string) (*User, error) {
	return r.find(func(u *User) bool { return u.RFIDTag != nil && *u.RFIDTag == tag })
}

func (r *InMemoryUserRepo) UpdateProfile(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.users[u.ID]
	if !ok {
		return ErrUserNotFound
	}
	candidate := cloneUser(stored)
	candidate.Email = u.Email
	if err := r.conflictLocked(candidate); err != nil {
		return err
	}

	stored.Email = u.Email
	stored.FirstName = u.FirstName
	stored.LastName = u.LastName
	stored.PhoneNumber = u.PhoneNumber
	stored.DateOfBirth = cloneUser(u).DateOfBirth
	stored.UpdatedAt = r.now().UTC()
	u.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *InMemoryUserRepo) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	stored.PasswordHash = hash
	stored.UpdatedAt = r.now().UTC()
	return nil
}

func (r *InMemoryUserRepo) SetTag(_ context.Context, id uuid.UUID, tag *string) (*User, error) {
	if tag != nil {
		t := *tag
		tag = &t
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	candidate := cloneUser(stored)
	candidate.RFIDTag = tag
	if err := r.conflictLocked(candidate); err != nil {
		return nil, err
	}

	stored.RFIDTag = candidate.RFIDTag
	stored.UpdatedAt = r.now().UTC()
	return cloneUser(stored), nil
}
