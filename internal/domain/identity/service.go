package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phr/phr/internal/platform/apierr"
	"github.com/phr/phr/internal/platform/auth"
	"github.com/phr/phr/internal/platform/validate"
	"github.com/phr/phr/pkg/jsontime"
)

var (
	errInvalidCredentials = apierr.Unauthenticated("Invalid email or password")
	errEmailInUse         = apierr.DuplicateIdentity("Email is already in use")
	errWrongPassword      = apierr.Validation("Current password is incorrect")
	errTagNotFound        = apierr.NotFound("No user found with this RFID tag")
)

type Options struct {
	TokenTTL    time.Duration
	TagTokenTTL time.Duration
}

type Service struct {
	users    UserRepository
	hasher   auth.Hasher
	tokens   *auth.TokenService
	denylist auth.Denylist
	opts     Options

	dummyOnce sync.Once
	dummyHash string
}

// NewService wires the credential store to the token service. denylist may
// be nil, in which case Logout is a no-op.
func NewService(users UserRepository, hasher auth.Hasher, tokens *auth.TokenService, denylist auth.Denylist, opts Options) *Service {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = auth.DefaultTokenTTL
	}
	if opts.TagTokenTTL <= 0 {
		opts.TagTokenTTL = auth.DefaultTagTokenTTL
	}
	return &Service{users: users, hasher: hasher, tokens: tokens, denylist: denylist, opts: opts}
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = normalizeEmail(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}

	if err := s.ensureAbsent(ctx, s.users.GetByEmail, req.Email, ErrDuplicateEmail); err != nil {
		return nil, err
	}
	if err := s.ensureAbsent(ctx, s.users.GetByUsername, req.Username, ErrDuplicateUsername); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apierr.Internal(err)
	}

	u := &User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		DateOfBirth:  nonZeroDate(req.DateOfBirth),
		BloodGroup:   req.BloodGroup,
		PhoneNumber:  req.PhoneNumber,
		Role:         RoleUser,
	}
	// The unique indexes still catch a concurrent registration.
	if err := s.users.Create(ctx, u); err != nil {
		return nil, storeErr(err)
	}
	return s.authResponse(u)
}

func (s *Service) ensureAbsent(ctx context.Context, lookup func(context.Context, string) (*User, error), key string, dup error) error {
	_, err := lookup(ctx, key)
	switch {
	case err == nil:
		return dup
	case errors.Is(err, ErrUserNotFound):
		return nil
	default:
		return apierr.Internal(err)
	}
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}

	u, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Spend the same hashing time as a real comparison.
			s.hasher.Compare(s.dummy(), req.Password)
			return nil, errInvalidCredentials
		}
		return nil, apierr.Internal(err)
	}
	if !s.hasher.Compare(u.PasswordHash, req.Password) {
		return nil, errInvalidCredentials
	}
	return s.authResponse(u)
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash(uuid.NewString())
	})
	return s.dummyHash
}

func (s *Service) authResponse(u *User) (*AuthResponse, error) {
	token, _, err := s.tokens.Issue(u.ID, s.opts.TokenTTL)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	return &AuthResponse{User: u, Token: token}, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	return u, nil
}

// UpdateProfile applies the non-empty fields of upd.
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, upd ProfileUpdate) (*User, error) {
	upd.Email = normalizeEmail(upd.Email)
	upd.FirstName = strings.TrimSpace(upd.FirstName)
	upd.LastName = strings.TrimSpace(upd.LastName)
	upd.PhoneNumber = strings.TrimSpace(upd.PhoneNumber)
	if err := validate.Struct(&upd); err != nil {
		return nil, err
	}

	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	if upd.empty() {
		return u, nil
	}

	if email := upd.Email; email != "" {
		if email != u.Email {
			other, err := s.users.GetByEmail(ctx, email)
			switch {
			case err == nil && other.ID != u.ID:
				return nil, errEmailInUse
			case err != nil && !errors.Is(err, ErrUserNotFound):
				return nil, apierr.Internal(err)
			}
			u.Email = email
		}
	}
	if upd.FirstName != "" {
		u.FirstName = upd.FirstName
	}
	if upd.LastName != "" {
		u.LastName = upd.LastName
	}
	if upd.PhoneNumber != "" {
		u.PhoneNumber = upd.PhoneNumber
	}
	if d := nonZeroDate(upd.DateOfBirth); d != nil {
		u.DateOfBirth = d
	}

	if err := s.users.UpdateProfile(ctx, u); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, errEmailInUse
		}
		return nil, storeErr(err)
	}
	return u, nil
}

func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, req PasswordChange) error {
	if err := validate.Struct(&req); err != nil {
		return err
	}

	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return storeErr(err)
	}
	if !s.hasher.Compare(u.PasswordHash, req.CurrentPassword) {
		return errWrongPassword
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return apierr.Internal(err)
	}
	return storeErr(s.users.UpdatePassword(ctx, id, hash))
}

// TagLogin resolves a hardware tag to its user and issues a short-lived token.
func (s *Service) TagLogin(ctx context.Context, tag string) (*TagLoginResponse, error) {
	req := tagLogin{RFIDTag: strings.TrimSpace(tag)}
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}
	tag = req.RFIDTag

	u, err := s.users.GetByTag(ctx, tag)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, errTagNotFound
		}
		return nil, apierr.Internal(err)
	}

	token, _, err := s.tokens.Issue(u.ID, s.opts.TagTokenTTL)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	return &TagLoginResponse{Token: token, User: u.TagProfile()}, nil
}

// AssignTag sets or, with an empty tag, clears the hardware tag of userID.
// Only the account holder may change their own tag.
func (s *Service) AssignTag(ctx context.Context, caller *auth.Principal, userID uuid.UUID, tag string) (*User, error) {
	if caller.UserID != userID {
		return nil, apierr.Forbidden("Not authorized to update this user")
	}

	req := TagRequest{RFIDTag: strings.TrimSpace(tag)}
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}

	var next *string
	if tag = req.RFIDTag; tag != "" {
		owner, err := s.users.GetByTag(ctx, tag)
		switch {
		case err == nil && owner.ID != userID:
			return nil, ErrDuplicateTag
		case err != nil && !errors.Is(err, ErrUserNotFound):
			return nil, apierr.Internal(err)
		}
		next = &tag
	}

	u, err := s.users.SetTag(ctx, userID, next)
	if err != nil {
		return nil, storeErr(err)
	}
	return u, nil
}

// Logout revokes the token the caller authenticated with.
func (s *Service) Logout(ctx context.Context, caller *auth.Principal) error {
	if s.denylist == nil || caller.TokenID == "" {
		return nil
	}
	if err := s.denylist.Revoke(ctx, caller.TokenID, caller.ExpiresAt); err != nil {
		return apierr.Internal(err)
	}
	return nil
}

// ResolvePrincipal implements auth.PrincipalResolver.
func (s *Service) ResolvePrincipal(ctx context.Context, id uuid.UUID) (*auth.Principal, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &auth.Principal{UserID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}, nil
}

// storeErr passes typed errors through and wraps everything else as internal.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	var e *apierr.Error
	if errors.As(err, &e) {
		return err
	}
	return apierr.Internal(err)
}

func nonZeroDate(d *jsontime.Date) *jsontime.Date {
	if d == nil || d.IsZero() {
		return nil
	}
	cp := *d
	return &cp
}
