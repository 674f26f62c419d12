package records

import (
	"net/http"
	"strconv"
	"strings"

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

// RegisterRoutes mounts the record endpoints on g. Every route requires
// guard.
func (h *Handler) RegisterRoutes(g *echo.Group, guard echo.MiddlewareFunc) {
	g.Use(guard)
	g.GET("", h.List)
	g.GET("/id/:id", h.Get)
	g.GET("/:recordType", h.ListByType)
	g.POST("", h.Create)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}

func bindDocument(c echo.Context) (Document, error) {
	var doc Document
	if err := (&echo.DefaultBinder{}).BindBody(c, &doc); err != nil {
		return nil, apierr.BindError(err)
	}
	return doc, nil
}

func setETag(c echo.Context, r *HealthRecord) {
	c.Response().Header().Set("ETag", strconv.Quote(strconv.Itoa(r.Version)))
}

// ifMatch reads an If-Match header of the form "3", W/"3" or 3. Absent or
// "*" yields 0.
func ifMatch(c echo.Context) (int, error) {
	v := strings.TrimSpace(c.Request().Header.Get("If-Match"))
	if v == "" || v == "*" {
		return 0, nil
	}
	v = strings.Trim(strings.TrimPrefix(v, "W/"), `"`)
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, apierr.Validation("Invalid If-Match header")
	}
	return n, nil
}

func (h *Handler) List(c echo.Context) error {
	p, err := auth.Require(c.Request().Context())
	if err != nil {
		return err
	}
	out, err := h.svc.List(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) ListByType(c echo.Context) error {
	p, err := auth.Require(c.Request().Context())
	if err != nil {
		return err
	}
	out, err := h.svc.ListByType(c.Request().Context(), p, c.Param("recordType"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Get(c echo.Context) error {
	p, err := auth.Require(c.Request().Context())
	if err != nil {
		return err
	}
	rec, err := h.svc.Get(c.Request().Context(), p, c.Param("id"))
	if err != nil {
		return err
	}
	setETag(c, rec)
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) Create(c echo.Context) error {
	p, err := auth.Require(c.Request().Context())
	if err != nil {
		return err
	}
	doc, err := bindDocument(c)
	if err != nil {
		return err
	}
	req, err := ParseCreate(doc)
	if err != nil {
		return err
	}
	rec, err := h.svc.Create(c.Request().Context(), p, req)
	if err != nil {
		return err
	}
	setETag(c, rec)
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) Update(c echo.Context) error {
	p, err := auth.Require(c.Request().Context())
	if err != nil {
		return err
	}
	version, err := ifMatch(c)
	if err != nil {
		return err
	}
	doc, err := bindDocument(c)
	if err != nil {
		return err
	}
	patch, err := ParsePatch(doc)
	if err != nil {
		return err
	}
	rec, err := h.svc.Update(c.Request().Context(), p, c.Param("id"), patch, version)
	if err != nil {
		return err
	}
	setETag(c, rec)
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) Delete(c echo.Context) error {
	p, err := auth.Require(c.Request().Context())
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), p, c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, apierr.Body{Message: "Health record removed"})
}
