package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// DefaultTokenTTL is the validity window of password and registration tokens.
	DefaultTokenTTL = 30 * 24 * time.Hour
	// DefaultTagTokenTTL is the validity window of RFID tag login tokens.
	DefaultTagTokenTTL = time.Hour
)

var (
	// ErrNoSigningKey is returned when the token service is built without a key.
	ErrNoSigningKey = errors.New("token signing key is not configured")
	// ErrInvalidToken covers every verification failure: bad signature,
	// malformed structure, wrong algorithm, missing or past expiry.
	ErrInvalidToken = errors.New("invalid token")
)

// Claims is the payload of an identity token. The subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
}

// UserID parses the subject as a user id.
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// TokenService issues and verifies HMAC-signed identity tokens.
type TokenService struct {
	key    []byte
	issuer string
	now    func() time.Time
}

// NewTokenService creates a token service. A missing key is a startup error.
func NewTokenService(key []byte, issuer string) (*TokenService, error) {
	if len(key) == 0 {
		return nil, ErrNoSigningKey
	}
	return &TokenService{key: key, issuer: issuer, now: time.Now}, nil
}

// Issue signs a token for userID that expires after ttl.
func (s *TokenService) Issue(userID uuid.UUID, ttl time.Duration) (string, *Claims, error) {
	now := s.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Verify checks signature and expiry and returns the trusted claims.
func (s *TokenService) Verify(tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return s.key, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if _, err := claims.UserID(); err != nil {
		return nil, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}
	return claims, nil
}
