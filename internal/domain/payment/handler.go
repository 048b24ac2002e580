package payment

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/careslot/careslot/internal/platform/apperror"
	"github.com/careslot/careslot/internal/platform/payments"
)

type Handler struct {
	svc           *Service
	webhookSecret string
}

func NewHandler(svc *Service, webhookSecret string) *Handler {
	return &Handler{svc: svc, webhookSecret: webhookSecret}
}

// RegisterRoutes mounts the webhook on the unauthenticated group; the
// gateway authenticates with its signature, not a bearer token.
func (h *Handler) RegisterRoutes(public *echo.Group) {
	public.POST("/payments/webhook", h.HandleWebhook)
}

func (h *Handler) HandleWebhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}

	if !payments.VerifySignature(h.webhookSecret, body, c.Request().Header.Get("Stripe-Signature")) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid signature")
	}

	var event payments.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed event")
	}

	if err := h.svc.HandleEvent(c.Request().Context(), &event); err != nil {
		return apperror.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"received": true})
}
