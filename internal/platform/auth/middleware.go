package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/phr/phr/internal/platform/apierr"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated caller attached to the request context.
// It never carries the password hash.
type Principal struct {
	UserID    uuid.UUID
	Username  string
	Email     string
	Role      string
	TokenID   string
	ExpiresAt time.Time
}

// PrincipalResolver loads the current state of a token subject. It returns an
// error matching apierr.ErrNotFound when the user no longer exists.
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, userID uuid.UUID) (*Principal, error)
}

// Guard returns middleware that authenticates every request through the
// bearer token and attaches the resolved principal to the request context.
// denylist may be nil.
func Guard(tokens *TokenService, users PrincipalResolver, denylist Denylist) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return apierr.Unauthenticated("Not authorized, no token provided")
			}

			claims, err := tokens.Verify(tokenStr)
			if err != nil {
				return apierr.Unauthenticated("Not authorized, token failed")
			}

			ctx := c.Request().Context()
			if denylist != nil && claims.ID != "" {
				revoked, err := denylist.IsRevoked(ctx, claims.ID)
				if err != nil {
					return apierr.Internal(err)
				}
				if revoked {
					return apierr.Unauthenticated("Not authorized, token revoked")
				}
			}

			userID, _ := claims.UserID()
			p, err := users.ResolvePrincipal(ctx, userID)
			if err != nil {
				if errors.Is(err, apierr.ErrNotFound) {
					return apierr.Unauthenticated("Not authorized, user not found")
				}
				return apierr.Internal(err)
			}
			p.TokenID = claims.ID
			if claims.ExpiresAt != nil {
				p.ExpiresAt = claims.ExpiresAt.Time
			}

			c.SetRequest(c.Request().WithContext(WithPrincipal(ctx, p)))
			c.Set("user_id", p.UserID.String())
			return next(c)
		}
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the authenticated caller, or nil.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}

// Require returns the authenticated caller or an Unauthenticated error.
func Require(ctx context.Context) (*Principal, error) {
	p := PrincipalFromContext(ctx)
	if p == nil {
		return nil, apierr.Unauthenticated("Not authorized")
	}
	return p, nil
}
