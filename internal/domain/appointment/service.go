package appointment

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/careslot/careslot/internal/domain/doctor"
	"github.com/careslot/careslot/internal/domain/doctorschedule"
	"github.com/careslot/careslot/internal/domain/patient"
	"github.com/careslot/careslot/internal/domain/payment"
	"github.com/careslot/careslot/internal/domain/schedule"
	"github.com/careslot/careslot/internal/platform/apperror"
	"github.com/careslot/careslot/internal/platform/auth"
	"github.com/careslot/careslot/internal/platform/db"
	"github.com/careslot/careslot/internal/platform/payments"
	"github.com/careslot/careslot/internal/platform/query"
	"github.com/careslot/careslot/internal/platform/redislock"
)

var SearchConfig = query.Config{
	SearchableFields: []string{"id", "videoCallingId", "doctor.user.name", "patient.user.name"},
	FilterableFields: []string{
		"status", "paymentStatus", "doctorId", "patientId",
		"schedule.startDateTime", "schedule.endDateTime",
	},
}

type Service struct {
	pool      *pgxpool.Pool
	repo      Repository
	patients  patient.Repository
	doctors   doctor.Repository
	schedules schedule.Repository
	slots     doctorschedule.Repository
	payments  payment.Repository
	checkout  payments.CheckoutClient
	locker    redislock.Locker
	logger    zerolog.Logger
}

func NewService(
	pool *pgxpool.Pool,
	repo Repository,
	patients patient.Repository,
	doctors doctor.Repository,
	schedules schedule.Repository,
	slots doctorschedule.Repository,
	pays payment.Repository,
	checkout payments.CheckoutClient,
	locker redislock.Locker,
	logger zerolog.Logger,
) *Service {
	return &Service{
		pool:      pool,
		repo:      repo,
		patients:  patients,
		doctors:   doctors,
		schedules: schedules,
		slots:     slots,
		payments:  pays,
		checkout:  checkout,
		locker:    locker,
		logger:    logger,
	}
}

// Book reserves a doctor's slot for the calling patient. The whole write set
// commits or rolls back together; the per-slot lock serializes concurrent
// attempts and the conditional is_booked flip is the database backstop.
func (s *Service) Book(ctx context.Context, identity auth.Identity, req BookRequest) (*BookingResult, error) {
	pat, err := s.patients.GetByEmail(ctx, identity.Email)
	if err != nil {
		return nil, err
	}

	var result *BookingResult
	lockID := req.DoctorID.String() + ":" + req.ScheduleID.String()
	err = s.locker.WithSlotLock(ctx, lockID, func(ctx context.Context) error {
		return db.RunInTx(ctx, s.pool, func(ctx context.Context) error {
			result, err = s.bookInTx(ctx, pat, req)
			return err
		})
	})
	if errors.Is(err, redislock.ErrNotAcquired) {
		return nil, apperror.Conflict("slot is being booked by another request")
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", result.Appointment.ID.String()).
		Str("doctor_id", req.DoctorID.String()).
		Str("schedule_id", req.ScheduleID.String()).
		Bool("pay_now", req.PayNow).
		Msg("appointment booked")
	return result, nil
}

func (s *Service) bookInTx(ctx context.Context, pat *patient.Patient, req BookRequest) (*BookingResult, error) {
	doc, err := s.doctors.GetByID(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}
	if _, err := s.schedules.GetByID(ctx, req.ScheduleID); err != nil {
		return nil, err
	}
	pair, err := s.slots.GetPair(ctx, req.DoctorID, req.ScheduleID)
	if err != nil {
		return nil, err
	}
	if pair.IsBooked {
		return nil, apperror.Conflict("slot already booked")
	}

	appt := &Appointment{
		ID:             uuid.New(),
		PatientID:      pat.ID,
		DoctorID:       doc.ID,
		ScheduleID:     req.ScheduleID,
		VideoCallingID: uuid.NewString(),
		Status:         StatusScheduled,
		PaymentStatus:  PaymentUnpaid,
		PatientName:    pat.Name,
		DoctorName:     doc.Name,
	}
	if err := s.repo.Create(ctx, appt); err != nil {
		return nil, err
	}
	if err := s.slots.MarkBooked(ctx, pair.ID); err != nil {
		return nil, err
	}

	pay := &payment.Payment{
		ID:            uuid.New(),
		AppointmentID: appt.ID,
		Amount:        doc.AppointmentFee,
		TransactionID: "txn-" + uuid.NewString(),
	}
	if err := s.payments.Create(ctx, pay); err != nil {
		return nil, err
	}

	result := &BookingResult{Appointment: appt}
	if req.PayNow {
		session, err := s.checkout.CreateSession(ctx, payments.CheckoutParams{
			AppointmentID: appt.ID.String(),
			PaymentID:     pay.ID.String(),
			PatientEmail:  pat.Email,
			Description:   fmt.Sprintf("Consultation with %s", doc.Name),
			AmountCents:   amountCents(doc.AppointmentFee),
		})
		if err != nil {
			return nil, err
		}
		result.PaymentURL = session.URL
	}
	return result, nil
}

// InitiatePayment creates a fresh checkout session for an appointment booked
// pay-later, or retries an abandoned session.
func (s *Service) InitiatePayment(ctx context.Context, identity auth.Identity, appointmentID uuid.UUID) (string, error) {
	pat, err := s.patients.GetByEmail(ctx, identity.Email)
	if err != nil {
		return "", err
	}
	appt, err := s.repo.GetByID(ctx, appointmentID)
	if err != nil {
		return "", err
	}
	if appt.PatientID != pat.ID {
		return "", apperror.Forbidden("not your appointment")
	}
	if appt.Status == StatusCanceled {
		return "", apperror.BadRequest("appointment is canceled")
	}
	if appt.PaymentStatus == PaymentPaid {
		return "", apperror.BadRequest("appointment is already paid")
	}

	pay, err := s.payments.GetByAppointmentID(ctx, appointmentID)
	if err != nil {
		return "", err
	}
	session, err := s.checkout.CreateSession(ctx, payments.CheckoutParams{
		AppointmentID: appt.ID.String(),
		PaymentID:     pay.ID.String(),
		PatientEmail:  pat.Email,
		Description:   fmt.Sprintf("Consultation with %s", appt.DoctorName),
		AmountCents:   amountCents(pay.Amount),
	})
	if err != nil {
		return "", err
	}
	return session.URL, nil
}

// ChangeStatus applies one state-machine transition with role gating.
// Admins may force any status; doctors and patients are limited to their own
// appointments and the edges their role allows. Cancellation frees the slot
// in the same transaction.
func (s *Service) ChangeStatus(ctx context.Context, identity auth.Identity, id uuid.UUID, newStatus string) (*Appointment, error) {
	switch newStatus {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCanceled:
	default:
		return nil, apperror.BadRequest("unknown status %q", newStatus)
	}

	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch identity.Role {
	case auth.RoleAdmin, auth.RoleSuperAdmin:
		// unrestricted
	case auth.RoleDoctor:
		doc, err := s.doctors.GetByEmail(ctx, identity.Email)
		if err != nil {
			return nil, err
		}
		if appt.DoctorID != doc.ID {
			return nil, apperror.Forbidden("not your appointment")
		}
		if !transitionAllowed(appt.Status, newStatus) {
			return nil, apperror.InvalidTransition("cannot move appointment from %s to %s", appt.Status, newStatus)
		}
	case auth.RolePatient:
		pat, err := s.patients.GetByEmail(ctx, identity.Email)
		if err != nil {
			return nil, err
		}
		if appt.PatientID != pat.ID {
			return nil, apperror.Forbidden("not your appointment")
		}
		if appt.Status != StatusScheduled || newStatus != StatusCanceled {
			return nil, apperror.InvalidTransition("patients may only cancel scheduled appointments")
		}
	default:
		return nil, apperror.Forbidden("role %q cannot change appointment status", identity.Role)
	}

	err = db.RunInTx(ctx, s.pool, func(ctx context.Context) error {
		// Doctors and patients were authorized against a status read before
		// this transaction; the conditional write makes a concurrent
		// transition lose instead of overwriting a terminal state. Admin
		// overrides stay unconditional.
		if auth.IsAdmin(identity.Role) {
			if err := s.repo.UpdateStatus(ctx, id, newStatus); err != nil {
				return err
			}
		} else if err := s.repo.UpdateStatusFrom(ctx, id, appt.Status, newStatus); err != nil {
			return err
		}
		if newStatus == StatusCanceled {
			return s.releaseSlot(ctx, appt)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", id.String()).
		Str("from", appt.Status).
		Str("to", newStatus).
		Str("role", identity.Role).
		Msg("appointment status changed")
	appt.Status = newStatus
	return appt, nil
}

func (s *Service) releaseSlot(ctx context.Context, appt *Appointment) error {
	pair, err := s.slots.GetPair(ctx, appt.DoctorID, appt.ScheduleID)
	if err != nil {
		// The doctor may have unpublished the slot already.
		if apperror.Is(err, "not_found") {
			return nil
		}
		return err
	}
	return s.slots.Release(ctx, pair.ID)
}

func transitionAllowed(from, to string) bool {
	for _, next := range validNext[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, params query.Params) (*query.Result, error) {
	b := query.NewBuilder(params, SearchConfig)
	b.Search().Filter().Paginate().Sort()
	return query.Execute(ctx, b, s.repo)
}

// ListMine scopes the listing to the caller's own appointments by role.
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
		return nil, apperror.Forbidden("role %q has no personal appointment list", identity.Role)
	}
	b.Search().Filter().Paginate().Sort()
	return query.Execute(ctx, b, s.repo)
}

// amountCents converts a decimal fee to the smallest currency unit.
func amountCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
