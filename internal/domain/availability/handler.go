package availability

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medpractice/portal/internal/domain/directory"
	"github.com/medpractice/portal/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.PUT("/availability", h.SetAvailability, auth.RequireRole("doctor"))
}

func (h *Handler) SetAvailability(c echo.Context) error {
	var in struct {
		Status directory.AvailabilityStatus `json:"status"`
	}
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()

	d, err := h.svc.SetAvailability(ctx, auth.PrincipalIDFromContext(ctx), in.Status)
	if err != nil {
		switch {
		case errors.Is(err, directory.ErrInvalidStatus):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, directory.ErrDoctorRecordNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, d)
}
