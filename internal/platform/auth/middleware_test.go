package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/phr/phr/internal/platform/apierr"
)

type fakeResolver struct {
	users map[uuid.UUID]*Principal
	err   error
}

func (f *fakeResolver) ResolvePrincipal(_ context.Context, id uuid.UUID) (*Principal, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.users[id]
	if !ok {
		return nil, apierr.NotFound("User not found")
	}
	cp := *p
	return &cp, nil
}

func newGuardFixture(t *testing.T) (*TokenService, *fakeResolver, uuid.UUID) {
	t.Helper()
	tokens := newTestTokenService(t)
	uid := uuid.New()
	res := &fakeResolver{users: map[uuid.UUID]*Principal{
		uid: {UserID: uid, Username: "alice", Email: "alice@example.com", Role: "user"},
	}}
	return tokens, res, uid
}

func runGuard(t *testing.T, mw echo.MiddlewareFunc, header string) (error, *Principal, bool) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got *Principal
	called := false
	h := mw(func(c echo.Context) error {
		called = true
		got = PrincipalFromContext(c.Request().Context())
		return c.String(http.StatusOK, "ok")
	})
	return h(c), got, called
}

func assertUnauthenticated(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error")
	}
	if apierr.KindOf(err) != apierr.KindUnauthenticated {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestGuard_MissingHeader(t *testing.T) {
	tokens, res, _ := newGuardFixture(t)
	err, _, called := runGuard(t, Guard(tokens, res, nil), "")
	assertUnauthenticated(t, err)
	if called {
		t.Error("handler must not run")
	}
}

func TestGuard_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
	}

	tokens, res, _ := newGuardFixture(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err, _, called := runGuard(t, Guard(tokens, res, nil), tt.header)
			assertUnauthenticated(t, err)
			if called {
				t.Error("handler must not run")
			}
		})
	}
}

func TestGuard_ValidToken(t *testing.T) {
	tokens, res, uid := newGuardFixture(t)
	tok, claims, _ := tokens.Issue(uid, time.Hour)

	err, p, called := runGuard(t, Guard(tokens, res, nil), "Bearer "+tok)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler was not called")
	}
	if p == nil || p.UserID != uid || p.Username != "alice" {
		t.Fatalf("unexpected principal %+v", p)
	}
	if p.TokenID != claims.ID {
		t.Errorf("TokenID = %q, want %q", p.TokenID, claims.ID)
	}
}

func TestGuard_CaseInsensitiveScheme(t *testing.T) {
	tokens, res, uid := newGuardFixture(t)
	tok, _, _ := tokens.Issue(uid, time.Hour)
	if err, _, _ := runGuard(t, Guard(tokens, res, nil), "bearer "+tok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGuard_ExpiredToken(t *testing.T) {
	tokens, res, uid := newGuardFixture(t)
	tokens.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, _, _ := tokens.Issue(uid, time.Hour)
	tokens.now = time.Now

	err, _, _ := runGuard(t, Guard(tokens, res, nil), "Bearer "+tok)
	assertUnauthenticated(t, err)
}

func TestGuard_ForeignSignature(t *testing.T) {
	tokens, res, uid := newGuardFixture(t)
	other, _ := NewTokenService([]byte("another-secret"), "")
	tok, _, _ := other.Issue(uid, time.Hour)

	err, _, _ := runGuard(t, Guard(tokens, res, nil), "Bearer "+tok)
	assertUnauthenticated(t, err)
}

func TestGuard_DeletedUser(t *testing.T) {
	tokens, res, _ := newGuardFixture(t)
	tok, _, _ := tokens.Issue(uuid.New(), time.Hour)

	err, _, _ := runGuard(t, Guard(tokens, res, nil), "Bearer "+tok)
	assertUnauthenticated(t, err)
}

func TestGuard_ResolverFailureIsInternal(t *testing.T) {
	tokens, res, uid := newGuardFixture(t)
	res.err = errors.New("connection reset")
	tok, _, _ := tokens.Issue(uid, time.Hour)

	err, _, _ := runGuard(t, Guard(tokens, res, nil), "Bearer "+tok)
	if apierr.KindOf(err) != apierr.KindInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestGuard_RevokedToken(t *testing.T) {
	tokens, res, uid := newGuardFixture(t)
	deny := NewTokenRevocationStore(time.Minute)
	defer deny.Close()

	tok, claims, _ := tokens.Issue(uid, time.Hour)
	if err, _, _ := runGuard(t, Guard(tokens, res, deny), "Bearer "+tok); err != nil {
		t.Fatalf("unexpected error before revocation: %v", err)
	}

	_ = deny.Revoke(context.Background(), claims.ID, claims.ExpiresAt.Time)
	err, _, _ := runGuard(t, Guard(tokens, res, deny), "Bearer "+tok)
	assertUnauthenticated(t, err)
}

func TestRequire(t *testing.T) {
	if _, err := Require(context.Background()); apierr.KindOf(err) != apierr.KindUnauthenticated {
		t.Fatalf("expected unauthenticated without principal, got %v", err)
	}
	p := &Principal{UserID: uuid.New()}
	got, err := Require(WithPrincipal(context.Background(), p))
	if err != nil || got != p {
		t.Fatalf("Require = %v, %v", got, err)
	}
}
