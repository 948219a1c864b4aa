package assignment

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
	staff := api.Group("", auth.RequireRole("admin", "doctor"))
	staff.POST("/practices/:id/assignments", h.AssignPatientDirect)
	staff.GET("/practices/:id/assignments", h.ListAssignmentsForPractice)
	staff.DELETE("/assignments/:id", h.RemovePatientFromPractice)
	staff.POST("/practices/:id/requests", h.CreateRequest)
	staff.GET("/practices/:id/requests", h.ListRequestsForPractice)

	api.GET("/requests/:id", h.GetRequest)

	patient := api.Group("", auth.RequireRole("patient"))
	patient.GET("/my/requests", h.ListMyRequests)
	patient.POST("/requests/:id/respond", h.RespondToRequest)
	patient.GET("/my/assignments", h.ListMyAssignments)
}

func mapErr(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrAssignmentNotFound), errors.Is(err, ErrRequestNotFound),
		errors.Is(err, directory.ErrPrincipalNotFound), errors.Is(err, directory.ErrPatientRecordNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrPermissionDenied):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrAlreadyAssigned), errors.Is(err, ErrRequestPending), errors.Is(err, ErrRequestClosed):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrNotPatient), errors.Is(err, ErrPatientRecordMissing):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) AssignPatientDirect(c echo.Context) error {
	practiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in struct {
		PatientEmail string `json:"patient_email"`
	}
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if in.PatientEmail == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_email is required")
	}
	ctx := c.Request().Context()

	a, err := h.svc.AssignPatientDirect(ctx, auth.PrincipalIDFromContext(ctx), practiceID, in.PatientEmail)
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) ListAssignmentsForPractice(c echo.Context) error {
	practiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)

	items, total, err := h.svc.ListAssignmentsForPractice(ctx, auth.PrincipalIDFromContext(ctx), practiceID, pg.Limit, pg.Offset)
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) RemovePatientFromPractice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	if err := h.svc.RemovePatientFromPractice(ctx, auth.PrincipalIDFromContext(ctx), id); err != nil {
		return mapErr(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CreateRequest(c echo.Context) error {
	practiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in struct {
		PatientID uuid.UUID `json:"patient_id"`
		Message   *string   `json:"message,omitempty"`
	}
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if in.PatientID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}
	ctx := c.Request().Context()

	req, err := h.svc.CreateRequest(ctx, auth.PrincipalIDFromContext(ctx), practiceID, in.PatientID, in.Message)
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusCreated, req)
}

func (h *Handler) ListRequestsForPractice(c echo.Context) error {
	practiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)

	items, total, err := h.svc.ListRequestsForPractice(ctx, auth.PrincipalIDFromContext(ctx), practiceID, pg.Limit, pg.Offset)
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetRequest(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()

	req, err := h.svc.GetRequest(ctx, auth.PrincipalIDFromContext(ctx), id)
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, req)
}

func (h *Handler) ListMyRequests(c echo.Context) error {
	ctx := c.Request().Context()
	requests, err := h.svc.ListRequestsForPatient(ctx, auth.PrincipalIDFromContext(ctx))
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, requests)
}

func (h *Handler) RespondToRequest(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in struct {
		Accept bool `json:"accept"`
	}
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()

	a, err := h.svc.RespondToRequest(ctx, auth.PrincipalIDFromContext(ctx), id, in.Accept)
	if err != nil {
		return mapErr(err)
	}
	if a == nil {
		return c.JSON(http.StatusOK, map[string]string{"status": "rejected"})
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListMyAssignments(c echo.Context) error {
	ctx := c.Request().Context()
	assignments, err := h.svc.ListAssignmentsForPatient(ctx, auth.PrincipalIDFromContext(ctx))
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, assignments)
}
