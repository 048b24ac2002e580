package payment

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	GetByAppointmentID(ctx context.Context, appointmentID uuid.UUID) (*Payment, error)
	// HasGatewayEvent reports whether a webhook event id was already applied.
	HasGatewayEvent(ctx context.Context, eventID string) (bool, error)
	MarkPaid(ctx context.Context, id uuid.UUID, eventID string, gatewayData []byte) error
	// StampEvent records a gateway event against a payment without changing
	// its status.
	StampEvent(ctx context.Context, id uuid.UUID, eventID string, gatewayData []byte) error
	DeleteByAppointmentIDs(ctx context.Context, appointmentIDs []uuid.UUID) (int, error)
}
