package doctorschedule

import (
	"context"

	"github.com/google/uuid"

	"github.com/careslot/careslot/internal/platform/query"
)

type Repository interface {
	CreateBatch(ctx context.Context, doctorID uuid.UUID, scheduleIDs []uuid.UUID) (int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*DoctorSchedule, error)
	GetPair(ctx context.Context, doctorID, scheduleID uuid.UUID) (*DoctorSchedule, error)
	// MarkBooked flips a free pair to booked; a pair that is already booked
	// returns Conflict.
	MarkBooked(ctx context.Context, id uuid.UUID) error
	Release(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteUnbooked(ctx context.Context, doctorID uuid.UUID, scheduleIDs []uuid.UUID) (int, error)

	query.Store
}
