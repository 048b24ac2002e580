package review

import (
	"context"

	"github.com/google/uuid"

	"github.com/careslot/careslot/internal/platform/query"
)

type Repository interface {
	Create(ctx context.Context, r *Review) error
	GetByAppointmentID(ctx context.Context, appointmentID uuid.UUID) (*Review, error)
	// AverageForDoctor recomputes the doctor's rating from all stored reviews.
	AverageForDoctor(ctx context.Context, doctorID uuid.UUID) (float64, error)

	query.Store
}
