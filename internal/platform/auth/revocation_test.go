package auth

import (
	"context"
	"testing"
	"time"
)

func TestTokenRevocationStore_RevokeAndCheck(t *testing.T) {
	s := NewTokenRevocationStore(time.Minute)
	defer s.Close()
	ctx := context.Background()

	if revoked, _ := s.IsRevoked(ctx, "jti-1"); revoked {
		t.Fatal("jti-1 should not be revoked yet")
	}
	if err := s.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if revoked, _ := s.IsRevoked(ctx, "jti-1"); !revoked {
		t.Error("jti-1 should be revoked")
	}
	if revoked, _ := s.IsRevoked(ctx, "jti-2"); revoked {
		t.Error("jti-2 should not be revoked")
	}
}

func TestTokenRevocationStore_IgnoresExpired(t *testing.T) {
	s := NewTokenRevocationStore(time.Minute)
	defer s.Close()

	_ = s.Revoke(context.Background(), "old", time.Now().Add(-time.Minute))
	if s.Count() != 0 {
		t.Errorf("expected expired token to be ignored, count = %d", s.Count())
	}
}

func TestTokenRevocationStore_Cleanup(t *testing.T) {
	s := NewTokenRevocationStore(time.Minute)
	defer s.Close()
	ctx := context.Background()

	_ = s.Revoke(ctx, "short", time.Now().Add(time.Second))
	_ = s.Revoke(ctx, "long", time.Now().Add(time.Hour))

	s.now = func() time.Time { return time.Now().Add(time.Minute) }
	s.cleanup()

	if s.Count() != 1 {
		t.Fatalf("expected 1 entry after cleanup, got %d", s.Count())
	}
	if revoked, _ := s.IsRevoked(ctx, "long"); !revoked {
		t.Error("long-lived revocation should survive cleanup")
	}
}

func TestTokenRevocationStore_CloseIdempotent(t *testing.T) {
	s := NewTokenRevocationStore(time.Minute)
	s.Close()
	s.Close()
}
