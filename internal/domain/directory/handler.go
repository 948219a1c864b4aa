package directory

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medpractice/portal/internal/platform/auth"
	"github.com/medpractice/portal/pkg/pagination"
)

// SetupChecker reports whether a principal still needs to complete practice
// onboarding. Implemented by the practice service.
type SetupChecker interface {
	NeedsPracticeSetup(ctx context.Context, principalID uuid.UUID) (bool, error)
}

type Handler struct {
	svc   *Service
	setup SetupChecker
}

func NewHandler(svc *Service, setup SetupChecker) *Handler {
	return &Handler{svc: svc, setup: setup}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/register", h.Register)
	api.GET("/me", h.Me)
	api.GET("/me/practice-setup", h.PracticeSetup)
	api.PUT("/me", h.UpdateMe)

	read := api.Group("", auth.RequireRole("admin", "doctor", "patient"))
	read.GET("/doctors", h.ListDoctors)
	read.GET("/doctors/:id", h.GetDoctor)

	staff := api.Group("", auth.RequireRole("admin", "doctor"))
	staff.GET("/patients", h.ListPatients)
	staff.GET("/patients/:id", h.GetPatient)
	staff.POST("/patients", h.CreatePatient)
	staff.PUT("/patients/:id", h.UpdatePatient)
}

func (h *Handler) Register(c echo.Context) error {
	var in RegisterInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	in.PrincipalID = auth.PrincipalIDFromContext(c.Request().Context())

	p, err := h.svc.Register(c.Request().Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailTaken):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, ErrInvalidRole):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusCreated, p)
}

// MeResponse is the resolved principal plus the derived onboarding state.
type MeResponse struct {
	Principal          *Principal     `json:"principal"`
	DoctorRecord       *DoctorRecord  `json:"doctor_record,omitempty"`
	PatientRecord      *PatientRecord `json:"patient_record,omitempty"`
	NeedsPracticeSetup bool           `json:"needs_practice_setup"`
}

func (h *Handler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	principalID := auth.PrincipalIDFromContext(ctx)

	p, err := h.svc.Resolve(ctx, principalID)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			// Distinct from 401: the token is valid but registration is
			// incomplete, so the client should route to the signup flow.
			return echo.NewHTTPError(http.StatusNotFound, "registration incomplete")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	resp := MeResponse{Principal: p}

	switch p.Role {
	case RoleDoctor:
		if d, err := h.svc.GetDoctorByPrincipal(ctx, principalID); err == nil {
			resp.DoctorRecord = d
		}
	case RolePatient:
		if rec, err := h.svc.GetPatientByPrincipal(ctx, principalID); err == nil {
			resp.PatientRecord = rec
		}
	}

	needs, err := h.setup.NeedsPracticeSetup(ctx, principalID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	resp.NeedsPracticeSetup = needs

	return c.JSON(http.StatusOK, resp)
}

// PracticeSetup answers the onboarding gate on its own, so the doctor app
// can poll it without pulling the whole profile.
func (h *Handler) PracticeSetup(c echo.Context) error {
	ctx := c.Request().Context()
	needs, err := h.setup.NeedsPracticeSetup(ctx, auth.PrincipalIDFromContext(ctx))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]bool{"needs_practice_setup": needs})
}

func (h *Handler) UpdateMe(c echo.Context) error {
	ctx := c.Request().Context()
	principalID := auth.PrincipalIDFromContext(ctx)

	p, err := h.svc.Resolve(ctx, principalID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "principal not found")
	}

	var in struct {
		FirstName string  `json:"first_name"`
		LastName  string  `json:"last_name"`
		Phone     *string `json:"phone"`
	}
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	p.FirstName = in.FirstName
	p.LastName = in.LastName
	p.Phone = in.Phone
	if err := h.svc.UpdateProfile(ctx, p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDoctors(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "doctor not found")
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPatients(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rec, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var rec PatientRecord
	if err := c.Bind(&rec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreatePatientRecord(c.Request().Context(), &rec); err != nil {
		switch {
		case errors.Is(err, ErrPrincipalNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, ErrInvalidRole):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rec, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}

	var in PatientRecord
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec.FirstName = in.FirstName
	rec.LastName = in.LastName
	rec.Email = in.Email
	rec.Phone = in.Phone
	rec.BirthDate = in.BirthDate
	rec.MedicalNotes = in.MedicalNotes

	if err := h.svc.UpdatePatientRecord(c.Request().Context(), rec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, rec)
}
