package practice

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medpractice/portal/internal/domain/directory"
	"github.com/medpractice/portal/internal/platform/auth"
	"github.com/medpractice/portal/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/onboarding", h.CompleteOnboarding, auth.RequireRole("doctor"))
	api.GET("/memberships", h.ListMyMemberships, auth.RequireRole("admin", "doctor"))

	api.GET("/practices/:id/authorize", h.Authorize)

	staff := api.Group("", auth.RequireRole("admin", "doctor"))
	staff.POST("/practices", h.CreatePractice, auth.RequireRole("admin"))
	staff.GET("/practices", h.ListPractices)
	staff.GET("/practices/:id", h.GetPractice)
	staff.PUT("/practices/:id", h.UpdatePractice)
	staff.DELETE("/practices/:id", h.DeletePractice)

	staff.GET("/practices/:id/membership", h.GetMyMembership)
	staff.GET("/practices/:id/staff", h.ListStaff)
	staff.POST("/practices/:id/staff", h.AddStaffMember)
	staff.PUT("/staff/:id/role", h.UpdateStaffRole)
	staff.DELETE("/staff/:id", h.RemoveStaffMember)
}

// mapErr translates service sentinels into HTTP errors so clients can tell
// "already assigned / already exists" conflicts apart from hard failures.
func mapErr(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrPracticeNotFound), errors.Is(err, ErrMembershipNotFound),
		errors.Is(err, directory.ErrPrincipalNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrPermissionDenied):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrDuplicateMembership), errors.Is(err, ErrLastAdmin), errors.Is(err, ErrOnboardingComplete):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrNameRequired), errors.Is(err, ErrInvalidRole), errors.Is(err, ErrNotDoctor):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) CompleteOnboarding(c echo.Context) error {
	var in OnboardingInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	principalID := auth.PrincipalIDFromContext(c.Request().Context())

	created, err := h.svc.CompleteOnboarding(c.Request().Context(), principalID, in)
	if err != nil {
		return mapErr(err)
	}
	if created == nil {
		return c.JSON(http.StatusOK, map[string]string{"status": "registered"})
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) ListMyMemberships(c echo.Context) error {
	principalID := auth.PrincipalIDFromContext(c.Request().Context())
	memberships, err := h.svc.ListMemberships(c.Request().Context(), principalID)
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, memberships)
}

// Authorize answers whether the caller may perform an action in a practice.
// The answer reflects current membership rows; nothing is cached, so a
// repeated call after a role change gives the new answer.
func (h *Handler) Authorize(c echo.Context) error {
	practiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	action := Permission(c.QueryParam("action"))
	if !action.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid action")
	}
	ctx := c.Request().Context()

	allowed, err := h.svc.Authorize(ctx, auth.PrincipalIDFromContext(ctx), practiceID, action)
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"allowed": allowed})
}

// GetMyMembership returns the caller's own active membership in a practice.
// Frontends use the permission set to decide which controls to render.
func (h *Handler) GetMyMembership(c echo.Context) error {
	practiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	m, err := h.svc.GetActiveMembership(ctx, auth.PrincipalIDFromContext(ctx), practiceID)
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) CreatePractice(c echo.Context) error {
	var in CreatePracticeInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.CreatePractice(c.Request().Context(), in)
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPractice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.GetPractice(c.Request().Context(), id)
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPractices(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPractices(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdatePractice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()

	p, err := h.svc.GetPractice(ctx, id)
	if err != nil {
		return mapErr(err)
	}

	var in CreatePracticeInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.Name = in.Name
	p.Address = in.Address
	p.Phone = in.Phone
	p.Email = in.Email

	if err := h.svc.UpdatePractice(ctx, auth.PrincipalIDFromContext(ctx), p); err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePractice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	if err := h.svc.DeletePractice(ctx, auth.PrincipalIDFromContext(ctx), id); err != nil {
		return mapErr(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListStaff(c echo.Context) error {
	practiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	staff, err := h.svc.ListStaff(ctx, auth.PrincipalIDFromContext(ctx), practiceID)
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, staff)
}

func (h *Handler) AddStaffMember(c echo.Context) error {
	practiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in AddStaffInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()

	m, err := h.svc.AddStaffMember(ctx, auth.PrincipalIDFromContext(ctx), practiceID, in)
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) UpdateStaffRole(c echo.Context) error {
	staffID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in struct {
		Role StaffRole `json:"role"`
	}
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()

	m, err := h.svc.UpdateStaffRole(ctx, auth.PrincipalIDFromContext(ctx), staffID, in.Role)
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) RemoveStaffMember(c echo.Context) error {
	staffID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	if err := h.svc.RemoveStaffMember(ctx, auth.PrincipalIDFromContext(ctx), staffID); err != nil {
		return mapErr(err)
	}
	return c.NoContent(http.StatusNoContent)
}
