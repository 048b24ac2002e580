package review

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
	api.GET("/reviews", h.ListReviews)
	api.POST("/reviews", h.CreateReview, auth.RequireRole(auth.RolePatient))
}

func (h *Handler) CreateReview(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	identity := auth.FromContext(c.Request().Context())
	rv, err := h.svc.Create(c.Request().Context(), identity, req)
	if err != nil {
		return apperror.HTTP(err)
	}
	return c.JSON(http.StatusCreated, rv)
}

func (h *Handler) ListReviews(c echo.Context) error {
	result, err := h.svc.List(c.Request().Context(), query.ParamsFromURL(c.QueryParams()))
	if err != nil {
		return apperror.HTTP(err)
	}
	return c.JSON(http.StatusOK, result)
}
