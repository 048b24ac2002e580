package review

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/careslot/careslot/internal/domain/appointment"
	"github.com/careslot/careslot/internal/domain/doctor"
	"github.com/careslot/careslot/internal/domain/patient"
	"github.com/careslot/careslot/internal/platform/apperror"
	"github.com/careslot/careslot/internal/platform/auth"
	"github.com/careslot/careslot/internal/platform/db"
	"github.com/careslot/careslot/internal/platform/query"
)

var SearchConfig = query.Config{
	FilterableFields: []string{"doctorId", "patientId", "rating"},
}

type Service struct {
	pool         *pgxpool.Pool
	repo         Repository
	patients     patient.Repository
	doctors      doctor.Repository
	appointments appointment.Repository
	logger       zerolog.Logger
}

func NewService(
	pool *pgxpool.Pool,
	repo Repository,
	patients patient.Repository,
	doctors doctor.Repository,
	appointments appointment.Repository,
	logger zerolog.Logger,
) *Service {
	return &Service{
		pool:         pool,
		repo:         repo,
		patients:     patients,
		doctors:      doctors,
		appointments: appointments,
		logger:       logger,
	}
}

// Create stores one review for the caller's paid appointment and recomputes
// the doctor's average rating in the same transaction.
func (s *Service) Create(ctx context.Context, identity auth.Identity, req CreateRequest) (*Review, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, apperror.BadRequest("rating must be between 1 and 5")
	}

	pat, err := s.patients.GetByEmail(ctx, identity.Email)
	if err != nil {
		return nil, err
	}
	appt, err := s.appointments.GetByID(ctx, req.AppointmentID)
	if err != nil {
		return nil, err
	}
	if appt.PatientID != pat.ID {
		return nil, apperror.Forbidden("not your appointment")
	}
	if appt.PaymentStatus != appointment.PaymentPaid {
		return nil, apperror.BadRequest("only paid appointments can be reviewed")
	}
	if _, err := s.repo.GetByAppointmentID(ctx, req.AppointmentID); err == nil {
		return nil, apperror.Conflict("appointment already reviewed")
	} else if !apperror.Is(err, "not_found") {
		return nil, err
	}

	rv := &Review{
		AppointmentID: req.AppointmentID,
		PatientID:     pat.ID,
		DoctorID:      appt.DoctorID,
		Rating:        req.Rating,
		Comment:       req.Comment,
	}
	err = db.RunInTx(ctx, s.pool, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, rv); err != nil {
			return err
		}
		avg, err := s.repo.AverageForDoctor(ctx, appt.DoctorID)
		if err != nil {
			return err
		}
		return s.doctors.SetAverageRating(ctx, appt.DoctorID, avg)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("review_id", rv.ID.String()).
		Str("doctor_id", appt.DoctorID.String()).
		Int("rating", req.Rating).
		Msg("review created")
	return rv, nil
}

func (s *Service) List(ctx context.Context, params query.Params) (*query.Result, error) {
	b := query.NewBuilder(params, SearchConfig)
	b.Search().Filter().Paginate().Sort()
	return query.Execute(ctx, b, s.repo)
}
