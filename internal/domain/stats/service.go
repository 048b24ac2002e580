package stats

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careslot/careslot/internal/domain/doctor"
	"github.com/careslot/careslot/internal/domain/patient"
	"github.com/careslot/careslot/internal/platform/apperror"
	"github.com/careslot/careslot/internal/platform/auth"
)

// monthlyWindow is how far back the bar chart reaches.
const monthlyWindow = 12

type Service struct {
	repo     Repository
	patients patient.Repository
	doctors  doctor.Repository
	logger   zerolog.Logger
}

func NewService(repo Repository, patients patient.Repository, doctors doctor.Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, patients: patients, doctors: doctors, logger: logger}
}

// Dashboard assembles the aggregates the caller's role is entitled to see.
func (s *Service) Dashboard(ctx context.Context, identity auth.Identity) (*Dashboard, error) {
	switch identity.Role {
	case auth.RoleAdmin, auth.RoleSuperAdmin:
		return s.adminDashboard(ctx)
	case auth.RoleDoctor:
		doc, err := s.doctors.GetByEmail(ctx, identity.Email)
		if err != nil {
			return nil, err
		}
		return s.doctorDashboard(ctx, doc.ID)
	case auth.RolePatient:
		pat, err := s.patients.GetByEmail(ctx, identity.Email)
		if err != nil {
			return nil, err
		}
		return s.patientDashboard(ctx, pat.ID)
	default:
		return nil, apperror.Forbidden("role %q has no dashboard", identity.Role)
	}
}

func (s *Service) adminDashboard(ctx context.Context) (*Dashboard, error) {
	patients, err := s.repo.CountPatients(ctx)
	if err != nil {
		return nil, err
	}
	doctors, err := s.repo.CountDoctors(ctx)
	if err != nil {
		return nil, err
	}
	d, err := s.assemble(ctx, nil, nil)
	if err != nil {
		return nil, err
	}
	d.TotalPatients = &patients
	d.TotalDoctors = &doctors

	revenue, err := s.repo.Revenue(ctx, nil, nil)
	if err != nil {
		return nil, err
	}
	d.Revenue = &revenue

	d.MonthlyAppointments, err = s.repo.MonthlyAppointments(ctx, nil, monthsAgo(monthlyWindow))
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) doctorDashboard(ctx context.Context, doctorID uuid.UUID) (*Dashboard, error) {
	d, err := s.assemble(ctx, &doctorID, nil)
	if err != nil {
		return nil, err
	}
	revenue, err := s.repo.Revenue(ctx, &doctorID, nil)
	if err != nil {
		return nil, err
	}
	d.Revenue = &revenue

	d.MonthlyAppointments, err = s.repo.MonthlyAppointments(ctx, &doctorID, monthsAgo(monthlyWindow))
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) patientDashboard(ctx context.Context, patientID uuid.UUID) (*Dashboard, error) {
	d, err := s.assemble(ctx, nil, &patientID)
	if err != nil {
		return nil, err
	}
	spent, err := s.repo.Revenue(ctx, nil, &patientID)
	if err != nil {
		return nil, err
	}
	d.TotalSpent = &spent
	return d, nil
}

func (s *Service) assemble(ctx context.Context, doctorID, patientID *uuid.UUID) (*Dashboard, error) {
	total, err := s.repo.CountAppointments(ctx, doctorID, patientID)
	if err != nil {
		return nil, err
	}
	breakdown, err := s.repo.StatusBreakdown(ctx, doctorID, patientID)
	if err != nil {
		return nil, err
	}
	return &Dashboard{TotalAppointments: total, StatusBreakdown: breakdown}, nil
}

func monthsAgo(n int) time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -n+1, 0)
}
