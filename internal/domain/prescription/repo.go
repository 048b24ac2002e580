package prescription

import (
	"context"

	"github.com/google/uuid"

	"github.com/careslot/careslot/internal/platform/query"
)

type Repository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByAppointmentID(ctx context.Context, appointmentID uuid.UUID) (*Prescription, error)

	query.Store
}
