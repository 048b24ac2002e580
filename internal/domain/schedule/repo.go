package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/careslot/careslot/internal/platform/query"
)

type Repository interface {
	CreateBatch(ctx context.Context, slots []*Schedule) (int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Schedule, error)
	ExistingStarts(ctx context.Context, from, to time.Time) (map[time.Time]bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ReferenceCount(ctx context.Context, id uuid.UUID) (int, error)

	query.Store
}
