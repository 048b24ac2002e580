package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careslot/careslot/internal/platform/apperror"
	"github.com/careslot/careslot/internal/platform/query"
)

// SearchConfig bounds which schedule fields list queries may touch.
var SearchConfig = query.Config{
	SearchableFields: []string{"id"},
	FilterableFields: []string{"startDateTime", "endDateTime"},
}

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Generate creates the slot grid for the requested range, skipping intervals
// that already exist. Returns the number of slots actually created.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (int, error) {
	intervals, err := req.Intervals()
	if err != nil {
		return 0, apperror.BadRequest("invalid generation window: %v", err)
	}
	if len(intervals) == 0 {
		return 0, apperror.BadRequest("generation window yields no slots")
	}

	existing, err := s.repo.ExistingStarts(ctx, intervals[0][0], intervals[len(intervals)-1][1])
	if err != nil {
		return 0, err
	}

	var fresh []*Schedule
	for _, iv := range intervals {
		if existing[iv[0].UTC()] {
			continue
		}
		fresh = append(fresh, &Schedule{StartTime: iv[0], EndTime: iv[1]})
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	created, err := s.repo.CreateBatch(ctx, fresh)
	if err != nil {
		return created, err
	}
	s.logger.Info().Int("created", created).
		Time("from", intervals[0][0]).Time("until", intervals[len(intervals)-1][1]).
		Msg("schedule slots generated")
	return created, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	return s.repo.GetByID(ctx, id)
}

// List runs a query-builder search over the slot grid.
func (s *Service) List(ctx context.Context, params query.Params) (*query.Result, error) {
	b := query.NewBuilder(params, SearchConfig)
	b.Search().Filter().Paginate().Sort()
	return query.Execute(ctx, b, s.repo)
}

// Delete removes a slot that no doctor has published against.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	refs, err := s.repo.ReferenceCount(ctx, id)
	if err != nil {
		return err
	}
	if refs > 0 {
		return apperror.Conflict("schedule is referenced by %d doctor slots", refs)
	}
	return s.repo.Delete(ctx, id)
}

// Upcoming reports whether the slot has not yet started.
func Upcoming(s *Schedule, now time.Time) bool {
	return s.StartTime.After(now)
}
