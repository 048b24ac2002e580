package payment

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/careslot/careslot/internal/platform/apperror"
	"github.com/careslot/careslot/internal/platform/db"
	"github.com/careslot/careslot/internal/platform/payments"
)

// AppointmentMarker flips an appointment's payment status to PAID. Satisfied
// by the appointment repository; declared here to keep the dependency
// one-directional.
type AppointmentMarker interface {
	MarkPaid(ctx context.Context, appointmentID uuid.UUID) error
}

type Service struct {
	pool         *pgxpool.Pool
	repo         Repository
	appointments AppointmentMarker
	logger       zerolog.Logger
}

func NewService(pool *pgxpool.Pool, repo Repository, appointments AppointmentMarker, logger zerolog.Logger) *Service {
	return &Service{pool: pool, repo: repo, appointments: appointments, logger: logger}
}

// HandleEvent applies one verified gateway event. Events already stamped on a
// payment are acknowledged without reprocessing.
func (s *Service) HandleEvent(ctx context.Context, event *payments.WebhookEvent) error {
	switch event.Type {
	case "checkout.session.completed":
		return s.handleCheckoutCompleted(ctx, event)
	case "checkout.session.expired", "payment_intent.payment_failed":
		s.logger.Info().
			Str("event_id", event.ID).
			Str("event_type", event.Type).
			Msg("payment not captured, leaving appointment unpaid")
		return nil
	default:
		s.logger.Debug().
			Str("event_id", event.ID).
			Str("event_type", event.Type).
			Msg("ignoring unhandled gateway event")
		return nil
	}
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, event *payments.WebhookEvent) error {
	seen, err := s.repo.HasGatewayEvent(ctx, event.ID)
	if err != nil {
		return err
	}
	if seen {
		s.logger.Info().Str("event_id", event.ID).Msg("duplicate gateway event, already applied")
		return nil
	}

	session := event.Data.Object
	paymentID, err := uuid.Parse(session.Metadata["payment_id"])
	if err != nil {
		return apperror.BadRequest("event missing payment_id metadata")
	}
	appointmentID, err := uuid.Parse(session.Metadata["appointment_id"])
	if err != nil {
		return apperror.BadRequest("event missing appointment_id metadata")
	}

	gatewayData, err := json.Marshal(session)
	if err != nil {
		return err
	}

	if session.PaymentStatus != "paid" {
		// Completed but not captured (e.g. delayed methods). Record the
		// event and keep the payment unpaid.
		s.logger.Warn().
			Str("event_id", event.ID).
			Str("payment_id", paymentID.String()).
			Str("payment_status", session.PaymentStatus).
			Msg("checkout completed without capture")
		return s.repo.StampEvent(ctx, paymentID, event.ID, gatewayData)
	}

	err = db.RunInTx(ctx, s.pool, func(ctx context.Context) error {
		if err := s.repo.MarkPaid(ctx, paymentID, event.ID, gatewayData); err != nil {
			return err
		}
		return s.appointments.MarkPaid(ctx, appointmentID)
	})
	if err != nil {
		return err
	}

	s.logger.Info().
		Str("event_id", event.ID).
		Str("appointment_id", appointmentID.String()).
		Str("payment_id", paymentID.String()).
		Msg("payment captured")
	return nil
}
