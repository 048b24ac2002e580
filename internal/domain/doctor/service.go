package doctor

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careslot/careslot/internal/platform/apperror"
	"github.com/careslot/careslot/internal/platform/query"
)

// SearchConfig bounds what the public doctor listing may search and filter.
var SearchConfig = query.Config{
	SearchableFields: []string{"specialty", "user.name", "user.email"},
	FilterableFields: []string{"specialty", "appointmentFee", "averageRating", "experienceYears", "user.name"},
}

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) Create(ctx context.Context, d *Doctor) error {
	if d.UserID == uuid.Nil {
		return apperror.BadRequest("userId is required")
	}
	if d.AppointmentFee < 0 {
		return apperror.BadRequest("appointmentFee must not be negative")
	}
	return s.repo.Create(ctx, d)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*Doctor, error) {
	return s.repo.GetByEmail(ctx, email)
}

// List runs the public doctor search. Soft-deleted profiles are always
// excluded, whatever the caller filters on.
func (s *Service) List(ctx context.Context, params query.Params) (*query.Result, error) {
	b := query.NewBuilder(params, SearchConfig)
	b.Where(query.Field{Name: "isDeleted", Op: query.OpEquals, Value: false})
	b.Search().Filter().Paginate().Sort().Fields()
	return query.Execute(ctx, b, s.repo)
}

func (s *Service) Update(ctx context.Context, d *Doctor) error {
	if d.AppointmentFee < 0 {
		return apperror.BadRequest("appointmentFee must not be negative")
	}
	if _, err := s.repo.GetByID(ctx, d.ID); err != nil {
		return err
	}
	return s.repo.Update(ctx, d)
}

// Delete soft-deletes the profile. Existing appointments keep their doctor
// reference; new bookings refuse deleted doctors.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("doctor_id", id.String()).Msg("doctor profile deleted")
	return nil
}
