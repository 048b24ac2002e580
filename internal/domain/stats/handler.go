package stats

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/careslot/careslot/internal/platform/apperror"
	"github.com/careslot/careslot/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/stats/dashboard", h.GetDashboard)
}

func (h *Handler) GetDashboard(c echo.Context) error {
	identity := auth.FromContext(c.Request().Context())
	d, err := h.svc.Dashboard(c.Request().Context(), identity)
	if err != nil {
		return apperror.HTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}
