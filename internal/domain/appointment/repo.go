package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/careslot/careslot/internal/platform/query"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	// UpdateStatusFrom applies a transition only while the row still holds
	// the expected source status; a concurrent transition loses with a
	// conflict instead of overwriting.
	UpdateStatusFrom(ctx context.Context, id uuid.UUID, from, to string) error
	// MarkPaid flips the payment status; wired into the payment webhook.
	MarkPaid(ctx context.Context, id uuid.UUID) error
	// ReclaimCandidates returns unpaid, non-canceled appointments created at
	// or before the cutoff.
	ReclaimCandidates(ctx context.Context, cutoff time.Time) ([]*Appointment, error)
	// CancelBulk cancels the given appointments, skipping rows that were paid
	// or canceled after selection. Returns the ids it actually canceled.
	CancelBulk(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)

	query.Store
}
