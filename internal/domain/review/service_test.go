package review

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careslot/careslot/internal/domain/appointment"
	"github.com/careslot/careslot/internal/domain/doctor"
	"github.com/careslot/careslot/internal/domain/patient"
	"github.com/careslot/careslot/internal/platform/apperror"
	"github.com/careslot/careslot/internal/platform/auth"
	"github.com/careslot/careslot/internal/platform/query"
)

type fakeRepo struct {
	reviews map[uuid.UUID]*Review
}

func (f *fakeRepo) Create(_ context.Context, rv *Review) error {
	if rv.ID == uuid.Nil {
		rv.ID = uuid.New()
	}
	f.reviews[rv.ID] = rv
	return nil
}

func (f *fakeRepo) GetByAppointmentID(_ context.Context, appointmentID uuid.UUID) (*Review, error) {
	for _, rv := range f.reviews {
		if rv.AppointmentID == appointmentID {
			return rv, nil
		}
	}
	return nil, apperror.NotFound("review not found")
}

func (f *fakeRepo) AverageForDoctor(_ context.Context, doctorID uuid.UUID) (float64, error) {
	sum, n := 0, 0
	for _, rv := range f.reviews {
		if rv.DoctorID == doctorID {
			sum += rv.Rating
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return float64(sum) / float64(n), nil
}

func (f *fakeRepo) Count(_ context.Context, _ *query.Expression) (int, error) {
	return len(f.reviews), nil
}

func (f *fakeRepo) FindMany(_ context.Context, _ *query.Expression) (interface{}, error) {
	out := []*Review{}
	for _, rv := range f.reviews {
		out = append(out, rv)
	}
	return out, nil
}

type fakePatientRepo struct {
	pat *patient.Patient
}

func (f *fakePatientRepo) Create(_ context.Context, _ *patient.Patient) error { return nil }
func (f *fakePatientRepo) Update(_ context.Context, _ *patient.Patient) error { return nil }
func (f *fakePatientRepo) SoftDelete(_ context.Context, _ uuid.UUID) error    { return nil }
func (f *fakePatientRepo) Count(_ context.Context, _ *query.Expression) (int, error) {
	return 0, nil
}
func (f *fakePatientRepo) FindMany(_ context.Context, _ *query.Expression) (interface{}, error) {
	return []*patient.Patient{}, nil
}
func (f *fakePatientRepo) GetByID(_ context.Context, _ uuid.UUID) (*patient.Patient, error) {
	return f.pat, nil
}
func (f *fakePatientRepo) GetByEmail(_ context.Context, email string) (*patient.Patient, error) {
	if f.pat.Email == email {
		return f.pat, nil
	}
	return nil, apperror.NotFound("patient not found")
}

type fakeDoctorRepo struct {
	rating map[uuid.UUID]float64
}

func (f *fakeDoctorRepo) Create(_ context.Context, _ *doctor.Doctor) error { return nil }
func (f *fakeDoctorRepo) Update(_ context.Context, _ *doctor.Doctor) error { return nil }
func (f *fakeDoctorRepo) SoftDelete(_ context.Context, _ uuid.UUID) error  { return nil }
func (f *fakeDoctorRepo) GetByID(_ context.Context, _ uuid.UUID) (*doctor.Doctor, error) {
	return nil, apperror.NotFound("doctor not found")
}
func (f *fakeDoctorRepo) GetByEmail(_ context.Context, _ string) (*doctor.Doctor, error) {
	return nil, apperror.NotFound("doctor not found")
}
func (f *fakeDoctorRepo) Count(_ context.Context, _ *query.Expression) (int, error) {
	return 0, nil
}
func (f *fakeDoctorRepo) FindMany(_ context.Context, _ *query.Expression) (interface{}, error) {
	return []*doctor.Doctor{}, nil
}

func (f *fakeDoctorRepo) SetAverageRating(_ context.Context, id uuid.UUID, rating float64) error {
	f.rating[id] = rating
	return nil
}

type fakeApptRepo struct {
	appts map[uuid.UUID]*appointment.Appointment
}

func (f *fakeApptRepo) Create(_ context.Context, _ *appointment.Appointment) error { return nil }
func (f *fakeApptRepo) UpdateStatus(_ context.Context, _ uuid.UUID, _ string) error {
	return nil
}
func (f *fakeApptRepo) MarkPaid(_ context.Context, _ uuid.UUID) error { return nil }
func (f *fakeApptRepo) ReclaimCandidates(_ context.Context, _ time.Time) ([]*appointment.Appointment, error) {
	return nil, nil
}
func (f *fakeApptRepo) UpdateStatusFrom(_ context.Context, _ uuid.UUID, _, _ string) error {
	return nil
}
func (f *fakeApptRepo) CancelBulk(_ context.Context, _ []uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}
func (f *fakeApptRepo) Count(_ context.Context, _ *query.Expression) (int, error) {
	return 0, nil
}
func (f *fakeApptRepo) FindMany(_ context.Context, _ *query.Expression) (interface{}, error) {
	return []*appointment.Appointment{}, nil
}

func (f *fakeApptRepo) GetByID(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	if a, ok := f.appts[id]; ok {
		return a, nil
	}
	return nil, apperror.NotFound("appointment not found")
}

type fixture struct {
	svc     *Service
	repo    *fakeRepo
	doctors *fakeDoctorRepo
	pat     *patient.Patient
	appt    *appointment.Appointment
}

func newFixture() *fixture {
	pat := &patient.Patient{ID: uuid.New(), Email: "jane@x.com", Name: "Jane"}
	appt := &appointment.Appointment{
		ID:            uuid.New(),
		PatientID:     pat.ID,
		DoctorID:      uuid.New(),
		Status:        appointment.StatusCompleted,
		PaymentStatus: appointment.PaymentPaid,
	}

	repo := &fakeRepo{reviews: map[uuid.UUID]*Review{}}
	doctors := &fakeDoctorRepo{rating: map[uuid.UUID]float64{}}
	svc := NewService(
		nil,
		repo,
		&fakePatientRepo{pat: pat},
		doctors,
		&fakeApptRepo{appts: map[uuid.UUID]*appointment.Appointment{appt.ID: appt}},
		zerolog.Nop(),
	)
	return &fixture{svc: svc, repo: repo, doctors: doctors, pat: pat, appt: appt}
}

func patientIdentity() auth.Identity {
	return auth.Identity{UserID: "u-1", Email: "jane@x.com", Role: auth.RolePatient}
}

func TestService_Create(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	rv, err := fx.svc.Create(ctx, patientIdentity(), CreateRequest{
		AppointmentID: fx.appt.ID, Rating: 4,
	})
	if err != nil {
		t.Fatal(err)
	}
	if rv.DoctorID != fx.appt.DoctorID || rv.PatientID != fx.pat.ID {
		t.Error("review must link the appointment's doctor and patient")
	}
	if got := fx.doctors.rating[fx.appt.DoctorID]; got != 4 {
		t.Errorf("average rating: expected 4, got %v", got)
	}
}

func TestService_Create_OncePerAppointment(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	if _, err := fx.svc.Create(ctx, patientIdentity(), CreateRequest{AppointmentID: fx.appt.ID, Rating: 5}); err != nil {
		t.Fatal(err)
	}
	_, err := fx.svc.Create(ctx, patientIdentity(), CreateRequest{AppointmentID: fx.appt.ID, Rating: 1})
	if !apperror.Is(err, "conflict") {
		t.Errorf("second review: expected conflict, got %v", err)
	}
}

func TestService_Create_Guards(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	for _, rating := range []int{0, 6, -1} {
		if _, err := fx.svc.Create(ctx, patientIdentity(), CreateRequest{AppointmentID: fx.appt.ID, Rating: rating}); !apperror.Is(err, "bad_request") {
			t.Errorf("rating %d: expected bad_request, got %v", rating, err)
		}
	}

	fx.appt.PaymentStatus = appointment.PaymentUnpaid
	if _, err := fx.svc.Create(ctx, patientIdentity(), CreateRequest{AppointmentID: fx.appt.ID, Rating: 3}); !apperror.Is(err, "bad_request") {
		t.Errorf("unpaid appointment: expected bad_request, got %v", err)
	}
	fx.appt.PaymentStatus = appointment.PaymentPaid

	fx.appt.PatientID = uuid.New()
	if _, err := fx.svc.Create(ctx, patientIdentity(), CreateRequest{AppointmentID: fx.appt.ID, Rating: 3}); !apperror.Is(err, "forbidden") {
		t.Errorf("foreign appointment: expected forbidden, got %v", err)
	}

	if _, err := fx.svc.Create(ctx, patientIdentity(), CreateRequest{AppointmentID: uuid.New(), Rating: 3}); !apperror.Is(err, "not_found") {
		t.Errorf("missing appointment: expected not_found, got %v", err)
	}
}

func TestService_Create_AverageAcrossReviews(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	if _, err := fx.svc.Create(ctx, patientIdentity(), CreateRequest{AppointmentID: fx.appt.ID, Rating: 5}); err != nil {
		t.Fatal(err)
	}

	// Second paid appointment with the same doctor.
	second := &appointment.Appointment{
		ID:            uuid.New(),
		PatientID:     fx.pat.ID,
		DoctorID:      fx.appt.DoctorID,
		Status:        appointment.StatusCompleted,
		PaymentStatus: appointment.PaymentPaid,
	}
	fx.svc.appointments.(*fakeApptRepo).appts[second.ID] = second

	if _, err := fx.svc.Create(ctx, patientIdentity(), CreateRequest{AppointmentID: second.ID, Rating: 2}); err != nil {
		t.Fatal(err)
	}
	if got := fx.doctors.rating[fx.appt.DoctorID]; got != 3.5 {
		t.Errorf("average rating: expected 3.5, got %v", got)
	}
}
