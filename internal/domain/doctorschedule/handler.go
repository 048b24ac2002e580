package doctorschedule

import (
	"net/http"

	"github.com/google/uuid"
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
	api.GET("/doctor-schedules", h.ListSlots)

	doctorGroup := api.Group("", auth.RequireRole(auth.RoleDoctor))
	doctorGroup.GET("/doctor-schedules/my", h.ListOwnSlots)
	doctorGroup.POST("/doctor-schedules", h.PublishSlots)
	doctorGroup.PUT("/doctor-schedules/my", h.UpdateOwnSlots)
	doctorGroup.DELETE("/doctor-schedules/:scheduleId", h.DeleteOwnSlot)
}

func (h *Handler) ListSlots(c echo.Context) error {
	result, err := h.svc.List(c.Request().Context(), query.ParamsFromURL(c.QueryParams()))
	if err != nil {
		return apperror.HTTP(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) ListOwnSlots(c echo.Context) error {
	identity := auth.FromContext(c.Request().Context())
	result, err := h.svc.ListMine(c.Request().Context(), identity, query.ParamsFromURL(c.QueryParams()))
	if err != nil {
		return apperror.HTTP(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) PublishSlots(c echo.Context) error {
	var req PublishRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	identity := auth.FromContext(c.Request().Context())
	created, err := h.svc.Publish(c.Request().Context(), identity, req.ScheduleIDs)
	if err != nil {
		return apperror.HTTP(err)
	}
	return c.JSON(http.StatusCreated, map[string]int{"created": created})
}

func (h *Handler) UpdateOwnSlots(c echo.Context) error {
	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	identity := auth.FromContext(c.Request().Context())
	added, removed, err := h.svc.UpdateMine(c.Request().Context(), identity, req)
	if err != nil {
		return apperror.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"added": added, "removed": removed})
}

func (h *Handler) DeleteOwnSlot(c echo.Context) error {
	scheduleID, err := uuid.Parse(c.Param("scheduleId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid schedule id")
	}
	identity := auth.FromContext(c.Request().Context())
	if err := h.svc.DeleteMine(c.Request().Context(), identity, scheduleID); err != nil {
		return apperror.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}
