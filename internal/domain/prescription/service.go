package prescription

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/careslot/careslot/internal/domain/appointment"
	"github.com/careslot/careslot/internal/domain/doctor"
	"github.com/careslot/careslot/internal/domain/patient"
	"github.com/careslot/careslot/internal/platform/apperror"
	"github.com/careslot/careslot/internal/platform/auth"
	"github.com/careslot/careslot/internal/platform/query"
)

var SearchConfig = query.Config{
	FilterableFields: []string{"doctorId", "patientId", "followUpDate"},
}

type Service struct {
	repo         Repository
	patients     patient.Repository
	doctors      doctor.Repository
	appointments appointment.Repository
	logger       zerolog.Logger
}

func NewService(
	repo Repository,
	patients patient.Repository,
	doctors doctor.Repository,
	appointments appointment.Repository,
	logger zerolog.Logger,
) *Service {
	return &Service{
		repo:         repo,
		patients:     patients,
		doctors:      doctors,
		appointments: appointments,
		logger:       logger,
	}
}

// Issue creates the single prescription for a completed appointment owned by
// the calling doctor.
func (s *Service) Issue(ctx context.Context, identity auth.Identity, req IssueRequest) (*Prescription, error) {
	if strings.TrimSpace(req.Instructions) == "" {
		return nil, apperror.BadRequest("instructions are required")
	}

	doc, err := s.doctors.GetByEmail(ctx, identity.Email)
	if err != nil {
		return nil, err
	}
	appt, err := s.appointments.GetByID(ctx, req.AppointmentID)
	if err != nil {
		return nil, err
	}
	if appt.DoctorID != doc.ID {
		return nil, apperror.Forbidden("not your appointment")
	}
	if appt.Status != appointment.StatusCompleted {
		return nil, apperror.BadRequest("prescriptions require a completed appointment")
	}
	if _, err := s.repo.GetByAppointmentID(ctx, req.AppointmentID); err == nil {
		return nil, apperror.Conflict("appointment already has a prescription")
	} else if !apperror.Is(err, "not_found") {
		return nil, err
	}

	p := &Prescription{
		AppointmentID: req.AppointmentID,
		DoctorID:      doc.ID,
		PatientID:     appt.PatientID,
		Instructions:  req.Instructions,
		FollowUpDate:  req.FollowUpDate,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("prescription_id", p.ID.String()).
		Str("appointment_id", req.AppointmentID.String()).
		Msg("prescription issued")
	return p, nil
}

// ListMine scopes the listing to the caller's prescriptions by role.
func (s *Service) ListMine(ctx context.Context, identity auth.Identity, params query.Params) (*query.Result, error) {
	b := query.NewBuilder(params, SearchConfig)
	switch identity.Role {
	case auth.RolePatient:
		pat, err := s.patients.GetByEmail(ctx, identity.Email)
		if err != nil {
			return nil, err
		}
		b.Where(query.Field{Name: "patientId", Op: query.OpEquals, Value: pat.ID.String()})
	case auth.RoleDoctor:
		doc, err := s.doctors.GetByEmail(ctx, identity.Email)
		if err != nil {
			return nil, err
		}
		b.Where(query.Field{Name: "doctorId", Op: query.OpEquals, Value: doc.ID.String()})
	default:
		return nil, apperror.Forbidden("role %q has no personal prescription list", identity.Role)
	}
	b.Search().Filter().Paginate().Sort()
	return query.Execute(ctx, b, s.repo)
}
