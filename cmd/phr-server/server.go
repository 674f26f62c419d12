package main

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/phr/phr/internal/config"
	"github.com/phr/phr/internal/domain/identity"
	"github.com/phr/phr/internal/domain/records"
	"github.com/phr/phr/internal/platform/apierr"
	"github.com/phr/phr/internal/platform/auth"
	"github.com/phr/phr/internal/platform/db"
	"github.com/phr/phr/internal/platform/middleware"
)

const version = "0.1.0"

type serverDeps struct {
	users    identity.UserRepository
	records  records.RecordRepository
	denylist auth.Denylist
	probes   map[string]db.Pinger
}

// newServer builds the HTTP router. It does not start listening.
func newServer(cfg *config.Config, logger zerolog.Logger, deps serverDeps) (*echo.Echo, error) {
	tokens, err := auth.NewTokenService([]byte(cfg.JWTSecret), cfg.JWTIssuer)
	if err != nil {
		return nil, err
	}

	identitySvc := identity.NewService(deps.users, auth.NewBcryptHasher(cfg.BcryptCost), tokens, deps.denylist,
		identity.Options{TokenTTL: cfg.TokenTTL, TagTokenTTL: cfg.TagTokenTTL})
	recordSvc := records.NewService(deps.records, cfg.DefaultFacility)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apierr.HTTPErrorHandler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:  []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderXRequestID, "If-Match"},
		ExposeHeaders: []string{"ETag", echo.HeaderXRequestID},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	api := e.Group("/api")
	api.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))
	credentialLimit := middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.AuthRateLimitRPS,
		BurstSize:         cfg.AuthRateLimitBurst,
	})
	guard := auth.Guard(tokens, identitySvc, deps.denylist)

	identity.NewHandler(identitySvc).RegisterRoutes(api.Group("/auth"), api.Group("/users"), guard, credentialLimit)
	records.NewHandler(recordSvc).RegisterRoutes(api.Group("/health-records"), guard)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(deps.probes))

	return e, nil
}
