package doctorschedule

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careslot/careslot/internal/domain/doctor"
	"github.com/careslot/careslot/internal/platform/apperror"
	"github.com/careslot/careslot/internal/platform/auth"
	"github.com/careslot/careslot/internal/platform/query"
)

type fakeRepo struct {
	pairs    map[uuid.UUID]*DoctorSchedule
	lastExpr *query.Expression
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{pairs: map[uuid.UUID]*DoctorSchedule{}}
}

func (f *fakeRepo) CreateBatch(_ context.Context, doctorID uuid.UUID, scheduleIDs []uuid.UUID) (int, error) {
	created := 0
	for _, sid := range scheduleIDs {
		if f.find(doctorID, sid) != nil {
			continue
		}
		id := uuid.New()
		f.pairs[id] = &DoctorSchedule{ID: id, DoctorID: doctorID, ScheduleID: sid}
		created++
	}
	return created, nil
}

func (f *fakeRepo) find(doctorID, scheduleID uuid.UUID) *DoctorSchedule {
	for _, p := range f.pairs {
		if p.DoctorID == doctorID && p.ScheduleID == scheduleID {
			return p
		}
	}
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*DoctorSchedule, error) {
	p, ok := f.pairs[id]
	if !ok {
		return nil, apperror.NotFound("doctor schedule not found")
	}
	return p, nil
}

func (f *fakeRepo) GetPair(_ context.Context, doctorID, scheduleID uuid.UUID) (*DoctorSchedule, error) {
	if p := f.find(doctorID, scheduleID); p != nil {
		return p, nil
	}
	return nil, apperror.NotFound("doctor schedule not found")
}

func (f *fakeRepo) MarkBooked(_ context.Context, id uuid.UUID) error {
	p, ok := f.pairs[id]
	if !ok || p.IsBooked {
		return apperror.Conflict("slot already booked")
	}
	p.IsBooked = true
	return nil
}

func (f *fakeRepo) Release(_ context.Context, id uuid.UUID) error {
	if p, ok := f.pairs[id]; ok {
		p.IsBooked = false
	}
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.pairs[id]; !ok {
		return apperror.NotFound("doctor schedule not found")
	}
	delete(f.pairs, id)
	return nil
}

func (f *fakeRepo) DeleteUnbooked(_ context.Context, doctorID uuid.UUID, scheduleIDs []uuid.UUID) (int, error) {
	removed := 0
	for _, sid := range scheduleIDs {
		if p := f.find(doctorID, sid); p != nil && !p.IsBooked {
			delete(f.pairs, p.ID)
			removed++
		}
	}
	return removed, nil
}

func (f *fakeRepo) Count(_ context.Context, _ *query.Expression) (int, error) {
	return len(f.pairs), nil
}

func (f *fakeRepo) FindMany(_ context.Context, expr *query.Expression) (interface{}, error) {
	f.lastExpr = expr
	out := []*DoctorSchedule{}
	for _, p := range f.pairs {
		out = append(out, p)
	}
	return out, nil
}

type fakeDoctorRepo struct {
	doctors map[string]*doctor.Doctor
}

func (f *fakeDoctorRepo) Create(_ context.Context, _ *doctor.Doctor) error  { return nil }
func (f *fakeDoctorRepo) Update(_ context.Context, _ *doctor.Doctor) error  { return nil }
func (f *fakeDoctorRepo) SoftDelete(_ context.Context, _ uuid.UUID) error   { return nil }
func (f *fakeDoctorRepo) SetAverageRating(_ context.Context, _ uuid.UUID, _ float64) error {
	return nil
}
func (f *fakeDoctorRepo) Count(_ context.Context, _ *query.Expression) (int, error) {
	return 0, nil
}
func (f *fakeDoctorRepo) FindMany(_ context.Context, _ *query.Expression) (interface{}, error) {
	return []*doctor.Doctor{}, nil
}

func (f *fakeDoctorRepo) GetByID(_ context.Context, id uuid.UUID) (*doctor.Doctor, error) {
	for _, d := range f.doctors {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, apperror.NotFound("doctor not found")
}

func (f *fakeDoctorRepo) GetByEmail(_ context.Context, email string) (*doctor.Doctor, error) {
	if d, ok := f.doctors[email]; ok {
		return d, nil
	}
	return nil, apperror.NotFound("doctor not found")
}

func newService() (*Service, *fakeRepo, *doctor.Doctor) {
	repo := newFakeRepo()
	doc := &doctor.Doctor{ID: uuid.New(), Email: "doc@x.com"}
	doctors := &fakeDoctorRepo{doctors: map[string]*doctor.Doctor{doc.Email: doc}}
	return NewService(nil, repo, doctors, zerolog.Nop()), repo, doc
}

func docIdentity() auth.Identity {
	return auth.Identity{UserID: "u-1", Email: "doc@x.com", Role: auth.RoleDoctor}
}

func TestService_Publish(t *testing.T) {
	svc, repo, _ := newService()
	ctx := context.Background()

	if _, err := svc.Publish(ctx, docIdentity(), nil); !apperror.Is(err, "bad_request") {
		t.Errorf("empty scheduleIds: expected bad_request, got %v", err)
	}

	s1, s2 := uuid.New(), uuid.New()
	created, err := svc.Publish(ctx, docIdentity(), []uuid.UUID{s1, s2})
	if err != nil {
		t.Fatal(err)
	}
	if created != 2 {
		t.Errorf("expected 2 created, got %d", created)
	}

	// Republishing the same slots is a no-op.
	created, err = svc.Publish(ctx, docIdentity(), []uuid.UUID{s1, s2})
	if err != nil {
		t.Fatal(err)
	}
	if created != 0 {
		t.Errorf("expected 0 created on republish, got %d", created)
	}
	if len(repo.pairs) != 2 {
		t.Errorf("expected 2 pairs, got %d", len(repo.pairs))
	}
}

func TestService_Publish_UnknownDoctor(t *testing.T) {
	svc, _, _ := newService()
	stranger := auth.Identity{UserID: "u-9", Email: "ghost@x.com", Role: auth.RoleDoctor}

	_, err := svc.Publish(context.Background(), stranger, []uuid.UUID{uuid.New()})
	if !apperror.Is(err, "not_found") {
		t.Errorf("expected not_found, got %v", err)
	}
}

func TestService_ListMine_PinsDoctorID(t *testing.T) {
	svc, repo, doc := newService()

	// A hostile doctorId filter must not widen the pinned scope.
	_, err := svc.ListMine(context.Background(), docIdentity(),
		query.Params{"doctorId": uuid.NewString()})
	if err != nil {
		t.Fatal(err)
	}

	found := false
	for _, p := range repo.lastExpr.Where.Preds {
		if f, ok := p.(query.Field); ok && f.Name == "doctorId" && f.Value == doc.ID.String() {
			found = true
		}
	}
	if !found {
		t.Error("expression must pin the caller's doctorId")
	}
}

func TestService_UpdateMine(t *testing.T) {
	svc, repo, doc := newService()
	ctx := context.Background()

	s1, s2, s3 := uuid.New(), uuid.New(), uuid.New()
	if _, err := svc.Publish(ctx, docIdentity(), []uuid.UUID{s1, s2}); err != nil {
		t.Fatal(err)
	}
	// s1 gets booked; removal must skip it.
	if err := repo.MarkBooked(ctx, repo.find(doc.ID, s1).ID); err != nil {
		t.Fatal(err)
	}

	added, removed, err := svc.UpdateMine(ctx, docIdentity(), UpdateRequest{
		AddScheduleIDs:    []uuid.UUID{s3},
		RemoveScheduleIDs: []uuid.UUID{s1, s2},
	})
	if err != nil {
		t.Fatal(err)
	}
	if added != 1 || removed != 1 {
		t.Errorf("expected added=1 removed=1, got added=%d removed=%d", added, removed)
	}
	if repo.find(doc.ID, s1) == nil {
		t.Error("booked pair must survive removal")
	}
	if repo.find(doc.ID, s2) != nil {
		t.Error("unbooked pair must be removed")
	}
	if repo.find(doc.ID, s3) == nil {
		t.Error("new pair must be added")
	}
}

// failingCreateRepo rejects the add half of an update.
type failingCreateRepo struct {
	*fakeRepo
}

func (r *failingCreateRepo) CreateBatch(_ context.Context, _ uuid.UUID, _ []uuid.UUID) (int, error) {
	return 0, apperror.Conflict("schedule pair already exists")
}

func TestService_UpdateMine_AddFailurePropagates(t *testing.T) {
	svc, repo, _ := newService()
	ctx := context.Background()

	s1, s2 := uuid.New(), uuid.New()
	if _, err := svc.Publish(ctx, docIdentity(), []uuid.UUID{s1}); err != nil {
		t.Fatal(err)
	}
	svc.repo = &failingCreateRepo{fakeRepo: repo}

	_, _, err := svc.UpdateMine(ctx, docIdentity(), UpdateRequest{
		AddScheduleIDs:    []uuid.UUID{s2},
		RemoveScheduleIDs: []uuid.UUID{s1},
	})
	if !apperror.Is(err, "conflict") {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestService_DeleteMine(t *testing.T) {
	svc, repo, doc := newService()
	ctx := context.Background()

	s1, s2 := uuid.New(), uuid.New()
	if _, err := svc.Publish(ctx, docIdentity(), []uuid.UUID{s1, s2}); err != nil {
		t.Fatal(err)
	}
	if err := repo.MarkBooked(ctx, repo.find(doc.ID, s1).ID); err != nil {
		t.Fatal(err)
	}

	if err := svc.DeleteMine(ctx, docIdentity(), s1); !apperror.Is(err, "bad_request") {
		t.Errorf("booked slot: expected bad_request, got %v", err)
	}
	if err := svc.DeleteMine(ctx, docIdentity(), s2); err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteMine(ctx, docIdentity(), s2); !apperror.Is(err, "not_found") {
		t.Errorf("missing pair: expected not_found, got %v", err)
	}
}

func TestRepo_MarkBooked_OnlyOnce(t *testing.T) {
	repo := newFakeRepo()
	ctx := context.Background()

	docID := uuid.New()
	if _, err := repo.CreateBatch(ctx, docID, []uuid.UUID{uuid.New()}); err != nil {
		t.Fatal(err)
	}
	var pairID uuid.UUID
	for id := range repo.pairs {
		pairID = id
	}

	if err := repo.MarkBooked(ctx, pairID); err != nil {
		t.Fatal(err)
	}
	if err := repo.MarkBooked(ctx, pairID); !apperror.Is(err, "conflict") {
		t.Errorf("second booking: expected conflict, got %v", err)
	}
}
