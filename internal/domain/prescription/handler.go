package prescription

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/careslot/careslot/internal/platform/apperror"
	"github.com/careslot/careslot/internal/platform/auth"
	"github.com/careslot/careslot/internal/platform/query"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/prescriptions", h.IssuePrescription, auth.RequireRole(auth.RoleDoctor))
	api.GET("/prescriptions/my", h.ListOwn, auth.RequireRole(auth.RolePatient, auth.RoleDoctor))
}

func (h *Handler) IssuePrescription(c echo.Context) error {
	var req IssueRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	identity := auth.FromContext(c.Request().Context())
	p, err := h.svc.Issue(c.Request().Context(), identity, req)
	if err != nil {
		return apperror.HTTP(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) ListOwn(c echo.Context) error {
	identity := auth.FromContext(c.Request().Context())
	result, err := h.svc.ListMine(c.Request().Context(), identity, query.ParamsFromURL(c.QueryParams()))
	if err != nil {
		return apperror.HTTP(err)
	}
	return c.JSON(http.StatusOK, result)
}
