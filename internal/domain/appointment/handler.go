package appointment

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
	api.POST("/appointments", h.Book, auth.RequireRole(auth.RolePatient))
	api.POST("/appointments/:id/pay", h.InitiatePayment, auth.RequireRole(auth.RolePatient))
	api.PATCH("/appointments/:id/status", h.ChangeStatus)
	api.GET("/appointments/my", h.ListOwn, auth.RequireRole(auth.RolePatient, auth.RoleDoctor))
	api.GET("/appointments/:id", h.GetAppointment)
	api.GET("/appointments", h.ListAppointments, auth.RequireRole(auth.RoleAdmin))
}

func (h *Handler) Book(c echo.Context) error {
	var req BookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.DoctorID == uuid.Nil || req.ScheduleID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "doctorId and scheduleId are required")
	}
	identity := auth.FromContext(c.Request().Context())
	result, err := h.svc.Book(c.Request().Context(), identity, req)
	if err != nil {
		return apperror.HTTP(err)
	}
	return c.JSON(http.StatusCreated, result)
}

func (h *Handler) InitiatePayment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	identity := auth.FromContext(c.Request().Context())
	url, err := h.svc.InitiatePayment(c.Request().Context(), identity, id)
	if err != nil {
		return apperror.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"paymentUrl": url})
}

func (h *Handler) ChangeStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req StatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	identity := auth.FromContext(c.Request().Context())
	appt, err := h.svc.ChangeStatus(c.Request().Context(), identity, id, req.Status)
	if err != nil {
		return apperror.HTTP(err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	appt, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperror.HTTP(err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	result, err := h.svc.List(c.Request().Context(), query.ParamsFromURL(c.QueryParams()))
	if err != nil {
		return apperror.HTTP(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) ListOwn(c echo.Context) error {
	identity := auth.FromContext(c.Request().Context())
	result, err := h.svc.ListMine(c.Request().Context(), identity, query.ParamsFromURL(c.QueryParams()))
	if err != nil {
		return apperror.HTTP(err)
	}
	return c.JSON(http.StatusOK, result)
}
