package doctorschedule

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/careslot/careslot/internal/domain/doctor"
	"github.com/careslot/careslot/internal/platform/apperror"
	"github.com/careslot/careslot/internal/platform/auth"
	"github.com/careslot/careslot/internal/platform/db"
	"github.com/careslot/careslot/internal/platform/query"
)

var SearchConfig = query.Config{
	SearchableFields: []string{"id", "doctorId", "scheduleId"},
	FilterableFields: []string{
		"doctorId", "scheduleId", "isBooked",
		"schedule.startDateTime", "schedule.endDateTime",
	},
}

type Service struct {
	pool    *pgxpool.Pool
	repo    Repository
	doctors doctor.Repository
	logger  zerolog.Logger
}

func NewService(pool *pgxpool.Pool, repo Repository, doctors doctor.Repository, logger zerolog.Logger) *Service {
	return &Service{pool: pool, repo: repo, doctors: doctors, logger: logger}
}

// Publish opens the given schedule slots for the calling doctor. Pairs that
// already exist are skipped.
func (s *Service) Publish(ctx context.Context, identity auth.Identity, scheduleIDs []uuid.UUID) (int, error) {
	if len(scheduleIDs) == 0 {
		return 0, apperror.BadRequest("scheduleIds is required")
	}
	doc, err := s.doctors.GetByEmail(ctx, identity.Email)
	if err != nil {
		return 0, err
	}
	created, err := s.repo.CreateBatch(ctx, doc.ID, scheduleIDs)
	if err != nil {
		return 0, err
	}
	s.logger.Info().
		Str("doctor_id", doc.ID.String()).
		Int("requested", len(scheduleIDs)).
		Int("created", created).
		Msg("doctor slots published")
	return created, nil
}

func (s *Service) List(ctx context.Context, params query.Params) (*query.Result, error) {
	b := query.NewBuilder(params, SearchConfig)
	b.Search().Filter().Paginate().Sort()
	return query.Execute(ctx, b, s.repo)
}

// ListMine pins the doctor id resolved from the caller's identity so the
// filter cannot be widened by request parameters.
func (s *Service) ListMine(ctx context.Context, identity auth.Identity, params query.Params) (*query.Result, error) {
	doc, err := s.doctors.GetByEmail(ctx, identity.Email)
	if err != nil {
		return nil, err
	}
	b := query.NewBuilder(params, SearchConfig)
	b.Where(query.Field{Name: "doctorId", Op: query.OpEquals, Value: doc.ID.String()})
	b.Search().Filter().Paginate().Sort()
	return query.Execute(ctx, b, s.repo)
}

// UpdateMine removes unbooked pairs and adds new ones in one transaction, so
// a failed add rolls the removals back. Booked pairs in the removal set are
// left untouched.
func (s *Service) UpdateMine(ctx context.Context, identity auth.Identity, req UpdateRequest) (added, removed int, err error) {
	doc, err := s.doctors.GetByEmail(ctx, identity.Email)
	if err != nil {
		return 0, 0, err
	}
	err = db.RunInTx(ctx, s.pool, func(ctx context.Context) error {
		removed, err = s.repo.DeleteUnbooked(ctx, doc.ID, req.RemoveScheduleIDs)
		if err != nil {
			return err
		}
		if len(req.AddScheduleIDs) > 0 {
			added, err = s.repo.CreateBatch(ctx, doc.ID, req.AddScheduleIDs)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return added, removed, nil
}

// DeleteMine removes the caller's pair for one schedule slot. Booked pairs
// cannot be removed.
func (s *Service) DeleteMine(ctx context.Context, identity auth.Identity, scheduleID uuid.UUID) error {
	doc, err := s.doctors.GetByEmail(ctx, identity.Email)
	if err != nil {
		return err
	}
	pair, err := s.repo.GetPair(ctx, doc.ID, scheduleID)
	if err != nil {
		return err
	}
	if pair.IsBooked {
		return apperror.BadRequest("booked slot cannot be removed")
	}
	return s.repo.Delete(ctx, pair.ID)
}
