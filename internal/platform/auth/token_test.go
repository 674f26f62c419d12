package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	s, err := NewTokenService(testSigningKey, "")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return s
}

func TestNewTokenService_RequiresKey(t *testing.T) {
	if _, err := NewTokenService(nil, ""); !errors.Is(err, ErrNoSigningKey) {
		t.Fatalf("expected ErrNoSigningKey, got %v", err)
	}
}

func TestTokenService_IssueVerifyRoundTrip(t *testing.T) {
	s := newTestTokenService(t)
	uid := uuid.New()

	tok, issued, err := s.Issue(uid, DefaultTokenTTL)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if issued.ID == "" {
		t.Error("expected jti to be set")
	}

	claims, err := s.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	got, err := claims.UserID()
	if err != nil || got != uid {
		t.Errorf("subject = %v (%v), want %v", got, err, uid)
	}
	if d := claims.ExpiresAt.Sub(claims.IssuedAt.Time); d != DefaultTokenTTL {
		t.Errorf("validity = %v, want %v", d, DefaultTokenTTL)
	}
}

func TestTokenService_TagTokenValidity(t *testing.T) {
	s := newTestTokenService(t)
	_, claims, err := s.Issue(uuid.New(), DefaultTagTokenTTL)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if d := claims.ExpiresAt.Sub(claims.IssuedAt.Time); d != time.Hour {
		t.Errorf("tag token validity = %v, want 1h", d)
	}
}

func TestTokenService_RejectsExpired(t *testing.T) {
	s := newTestTokenService(t)
	tok, _, err := s.Issue(uuid.New(), time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := s.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestTokenService_RejectsOtherKey(t *testing.T) {
	other, _ := NewTokenService([]byte("a-completely-different-secret"), "")
	tok, _, err := other.Issue(uuid.New(), time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	s := newTestTokenService(t)
	if _, err := s.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign signature, got %v", err)
	}
}

func TestTokenService_RejectsTampered(t *testing.T) {
	s := newTestTokenService(t)
	tok, _, _ := s.Issue(uuid.New(), time.Hour)

	parts := strings.Split(tok, ".")
	forged, _, _ := s.Issue(uuid.New(), time.Hour)
	// Splice another token's payload under the original signature.
	parts[1] = strings.Split(forged, ".")[1]
	if _, err := s.Verify(strings.Join(parts, ".")); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for tampered token, got %v", err)
	}
}

func TestTokenService_RejectsMalformed(t *testing.T) {
	s := newTestTokenService(t)
	for _, tok := range []string{"", "abc", "a.b.c", "Bearer x.y.z"} {
		if _, err := s.Verify(tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Verify(%q): expected ErrInvalidToken, got %v", tok, err)
		}
	}
}

func TestTokenService_RejectsNoExpiry(t *testing.T) {
	claims := jwt.RegisteredClaims{Subject: uuid.NewString(), IssuedAt: jwt.NewNumericDate(time.Now())}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSigningKey)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	s := newTestTokenService(t)
	if _, err := s.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken without exp, got %v", err)
	}
}

func TestTokenService_RejectsNonUUIDSubject(t *testing.T) {
	claims := jwt.RegisteredClaims{
		Subject:   "dev-user",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSigningKey)
	s := newTestTokenService(t)
	if _, err := s.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenService_RejectsNoneAlgorithm(t *testing.T) {
	claims := jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	s := newTestTokenService(t)
	if _, err := s.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for alg=none, got %v", err)
	}
}

func TestTokenService_IssuerMismatch(t *testing.T) {
	a, _ := NewTokenService(testSigningKey, "phr-a")
	b, _ := NewTokenService(testSigningKey, "phr-b")
	tok, _, _ := a.Issue(uuid.New(), time.Hour)
	if _, err := b.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign issuer, got %v", err)
	}
}
