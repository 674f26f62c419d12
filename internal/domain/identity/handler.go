package identity

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/phr/phr/internal/platform/apierr"
	"github.com/phr/phr/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the account endpoints. guard authenticates callers;
// credentialLimit throttles the endpoints that accept secrets.
func (h *Handler) RegisterRoutes(authGroup, usersGroup *echo.Group, guard, credentialLimit echo.MiddlewareFunc) {
	authGroup.POST("/register", h.Register, credentialLimit)
	authGroup.POST("/login", h.Login, credentialLimit)
	authGroup.POST("/rfid", h.TagLogin, credentialLimit)

	authGroup.GET("/user", h.GetUser, guard)
	authGroup.PUT("/profile", h.UpdateProfile, guard)
	authGroup.PUT("/rfid/:userId", h.AssignTag, guard)
	authGroup.POST("/logout", h.Logout, guard)

	usersGroup.PUT("/profile", h.UpdateProfile, guard)
	usersGroup.PUT("/password", h.ChangePassword, guard)
}

func bind(c echo.Context, v interface{}) error {
	if err := (&echo.DefaultBinder{}).BindBody(c, v); err != nil {
		return apierr.BindError(err)
	}
	return nil
}

func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	resp, err := h.svc.Register(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	resp, err := h.svc.Login(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetUser(c echo.Context) error {
	p, err := auth.Require(c.Request().Context())
	if err != nil {
		return err
	}
	u, err := h.svc.GetUser(c.Request().Context(), p.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) UpdateProfile(c echo.Context) error {
	p, err := auth.Require(c.Request().Context())
	if err != nil {
		return err
	}
	var upd ProfileUpdate
	if err := bind(c, &upd); err != nil {
		return err
	}
	u, err := h.svc.UpdateProfile(c.Request().Context(), p.UserID, upd)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) ChangePassword(c echo.Context) error {
	p, err := auth.Require(c.Request().Context())
	if err != nil {
		return err
	}
	var req PasswordChange
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.svc.ChangePassword(c.Request().Context(), p.UserID, req); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, apierr.Body{Message: "Password updated successfully"})
}

func (h *Handler) TagLogin(c echo.Context) error {
	var req TagRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	resp, err := h.svc.TagLogin(c.Request().Context(), req.RFIDTag)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) AssignTag(c echo.Context) error {
	p, err := auth.Require(c.Request().Context())
	if err != nil {
		return err
	}
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		return ErrUserNotFound
	}
	var req TagRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	u, err := h.svc.AssignTag(c.Request().Context(), p, userID, req.RFIDTag)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) Logout(c echo.Context) error {
	p, err := auth.Require(c.Request().Context())
	if err != nil {
		return err
	}
	if err := h.svc.Logout(c.Request().Context(), p); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
