package doctor

import (
	"context"

	"github.com/google/uuid"

	"github.com/careslot/careslot/internal/platform/query"
)

type Repository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetByEmail(ctx context.Context, email string) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	SetAverageRating(ctx context.Context, id uuid.UUID, rating float64) error

	query.Store
}
