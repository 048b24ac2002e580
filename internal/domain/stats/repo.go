package stats

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository reads cross-entity aggregates. Nil doctor/patient ids mean
// unscoped (admin view).
type Repository interface {
	CountPatients(ctx context.Context) (int, error)
	CountDoctors(ctx context.Context) (int, error)
	CountAppointments(ctx context.Context, doctorID, patientID *uuid.UUID) (int, error)
	// Revenue sums captured payment amounts, optionally scoped to one doctor
	// or one patient.
	Revenue(ctx context.Context, doctorID, patientID *uuid.UUID) (float64, error)
	StatusBreakdown(ctx context.Context, doctorID, patientID *uuid.UUID) ([]StatusCount, error)
	MonthlyAppointments(ctx context.Context, doctorID *uuid.UUID, since time.Time) ([]MonthlyCount, error)
}
