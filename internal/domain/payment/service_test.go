package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/careslot/careslot/internal/platform/apperror"
	"github.com/careslot/careslot/internal/platform/payments"
)

type fakeRepo struct {
	payments map[uuid.UUID]*Payment
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{payments: map[uuid.UUID]*Payment{}}
}

func (f *fakeRepo) Create(_ context.Context, p *Payment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = StatusUnpaid
	}
	f.payments[p.ID] = p
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*Payment, error) {
	if p, ok := f.payments[id]; ok {
		return p, nil
	}
	return nil, apperror.NotFound("payment not found")
}

func (f *fakeRepo) GetByAppointmentID(_ context.Context, appointmentID uuid.UUID) (*Payment, error) {
	for _, p := range f.payments {
		if p.AppointmentID == appointmentID {
			return p, nil
		}
	}
	return nil, apperror.NotFound("payment not found")
}

func (f *fakeRepo) HasGatewayEvent(_ context.Context, eventID string) (bool, error) {
	for _, p := range f.payments {
		if p.GatewayEventID != nil && *p.GatewayEventID == eventID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) MarkPaid(_ context.Context, id uuid.UUID, eventID string, gatewayData []byte) error {
	p, ok := f.payments[id]
	if !ok {
		return apperror.NotFound("payment not found")
	}
	p.Status = StatusPaid
	p.GatewayEventID = &eventID
	p.GatewayData = gatewayData
	return nil
}

func (f *fakeRepo) StampEvent(_ context.Context, id uuid.UUID, eventID string, gatewayData []byte) error {
	p, ok := f.payments[id]
	if !ok {
		return apperror.NotFound("payment not found")
	}
	p.GatewayEventID = &eventID
	p.GatewayData = gatewayData
	return nil
}

func (f *fakeRepo) DeleteByAppointmentIDs(_ context.Context, _ []uuid.UUID) (int, error) {
	return 0, nil
}

type fakeMarker struct {
	paid map[uuid.UUID]int
}

func (f *fakeMarker) MarkPaid(_ context.Context, appointmentID uuid.UUID) error {
	f.paid[appointmentID]++
	return nil
}

func seed() (*Service, *fakeRepo, *fakeMarker, *Payment) {
	repo := newFakeRepo()
	marker := &fakeMarker{paid: map[uuid.UUID]int{}}
	pay := &Payment{
		ID:            uuid.New(),
		AppointmentID: uuid.New(),
		Amount:        150,
		TransactionID: "txn-1",
		Status:        StatusUnpaid,
	}
	repo.payments[pay.ID] = pay
	return NewService(nil, repo, marker, zerolog.Nop()), repo, marker, pay
}

func checkoutEvent(eventID string, pay *Payment, paymentStatus string) *payments.WebhookEvent {
	event := &payments.WebhookEvent{
		ID:      eventID,
		Type:    "checkout.session.completed",
		Created: time.Now().Unix(),
	}
	event.Data.Object = payments.SessionObject{
		ID:            "cs_test_1",
		PaymentStatus: paymentStatus,
		Status:        "complete",
		Metadata: map[string]string{
			"appointment_id": pay.AppointmentID.String(),
			"payment_id":     pay.ID.String(),
		},
	}
	return event
}

func TestService_HandleEvent_CheckoutCompleted(t *testing.T) {
	svc, _, marker, pay := seed()
	ctx := context.Background()

	if err := svc.HandleEvent(ctx, checkoutEvent("evt_1", pay, "paid")); err != nil {
		t.Fatal(err)
	}
	if pay.Status != StatusPaid {
		t.Errorf("expected PAID, got %s", pay.Status)
	}
	if pay.GatewayEventID == nil || *pay.GatewayEventID != "evt_1" {
		t.Error("event id must be stamped")
	}
	if len(pay.GatewayData) == 0 {
		t.Error("session JSON must be stored")
	}
	if marker.paid[pay.AppointmentID] != 1 {
		t.Errorf("appointment must be marked paid once, got %d", marker.paid[pay.AppointmentID])
	}
}

func TestService_HandleEvent_DuplicateEvent(t *testing.T) {
	svc, _, marker, pay := seed()
	ctx := context.Background()

	if err := svc.HandleEvent(ctx, checkoutEvent("evt_1", pay, "paid")); err != nil {
		t.Fatal(err)
	}
	// Redelivery of the same event is acknowledged without reapplying.
	if err := svc.HandleEvent(ctx, checkoutEvent("evt_1", pay, "paid")); err != nil {
		t.Fatal(err)
	}
	if marker.paid[pay.AppointmentID] != 1 {
		t.Errorf("duplicate event must not reapply, got %d marks", marker.paid[pay.AppointmentID])
	}
}

func TestService_HandleEvent_CompletedWithoutCapture(t *testing.T) {
	svc, _, marker, pay := seed()

	if err := svc.HandleEvent(context.Background(), checkoutEvent("evt_2", pay, "unpaid")); err != nil {
		t.Fatal(err)
	}
	if pay.Status != StatusUnpaid {
		t.Errorf("uncaptured session must stay UNPAID, got %s", pay.Status)
	}
	if pay.GatewayEventID == nil || *pay.GatewayEventID != "evt_2" {
		t.Error("event id must still be stamped")
	}
	if len(marker.paid) != 0 {
		t.Error("appointment must not be marked paid")
	}
}

func TestService_HandleEvent_IgnoredTypes(t *testing.T) {
	svc, _, marker, pay := seed()
	ctx := context.Background()

	for _, eventType := range []string{"checkout.session.expired", "payment_intent.payment_failed", "invoice.created"} {
		event := checkoutEvent("evt_x", pay, "paid")
		event.Type = eventType
		if err := svc.HandleEvent(ctx, event); err != nil {
			t.Errorf("%s: unexpected error %v", eventType, err)
		}
	}
	if pay.Status != StatusUnpaid || len(marker.paid) != 0 {
		t.Error("ignored events must not change state")
	}
}

func TestService_HandleEvent_MissingMetadata(t *testing.T) {
	svc, _, _, pay := seed()

	event := checkoutEvent("evt_3", pay, "paid")
	event.Data.Object.Metadata = nil
	if err := svc.HandleEvent(context.Background(), event); !apperror.Is(err, "bad_request") {
		t.Errorf("expected bad_request, got %v", err)
	}
}

func TestHandler_Webhook(t *testing.T) {
	svc, _, marker, pay := seed()
	h := NewHandler(svc, "whsec_test")

	body, err := json.Marshal(checkoutEvent("evt_1", pay, "paid"))
	if err != nil {
		t.Fatal(err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(string(body)))
	req.Header.Set("Stripe-Signature", payments.SignPayload("whsec_test", body, time.Now()))
	rec := httptest.NewRecorder()

	if err := h.HandleWebhook(e.NewContext(req, rec)); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if pay.Status != StatusPaid || marker.paid[pay.AppointmentID] != 1 {
		t.Error("verified webhook must apply the payment")
	}
}

func TestHandler_Webhook_BadSignature(t *testing.T) {
	svc, _, _, pay := seed()
	h := NewHandler(svc, "whsec_test")

	body, _ := json.Marshal(checkoutEvent("evt_1", pay, "paid"))

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong secret", payments.SignPayload("whsec_other", body, time.Now())},
		{"stale timestamp", payments.SignPayload("whsec_test", body, time.Now().Add(-time.Hour))},
		{"garbage", "t=abc,v1=def"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(string(body)))
			if tt.header != "" {
				req.Header.Set("Stripe-Signature", tt.header)
			}
			rec := httptest.NewRecorder()

			err := h.HandleWebhook(e.NewContext(req, rec))
			httpErr, ok := err.(*echo.HTTPError)
			if !ok || httpErr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %v", err)
			}
			if pay.Status != StatusUnpaid {
				t.Error("unverified webhook must not change state")
			}
		})
	}
}
