package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestReclaimer_SweepOnce(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	result, err := fx.svc.Book(ctx, patientIdentity(), BookRequest{
		DoctorID: fx.doc.ID, ScheduleID: fx.slot.ID,
	})
	if err != nil {
		t.Fatal(err)
	}
	stale := fx.repo.appts[result.Appointment.ID]
	stale.CreatedAt = time.Now().Add(-time.Hour)

	rec := NewReclaimer(nil, fx.repo, fx.pays, fx.slots, 30*time.Minute, zerolog.Nop())

	n, err := rec.SweepOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 reclaimed, got %d", n)
	}
	if stale.Status != StatusCanceled {
		t.Errorf("expected CANCELED, got %s", stale.Status)
	}
	if fx.pair.IsBooked {
		t.Error("reclaimed slot must be released")
	}
	if _, err := fx.pays.GetByAppointmentID(ctx, stale.ID); err == nil {
		t.Error("payment row must be deleted")
	}

	// A second sweep finds nothing; canceled appointments are not candidates.
	n, err = rec.SweepOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("second sweep must reclaim nothing, got %d", n)
	}
}

// paidDuringSweepRepo lands a payment on the target appointment right after
// candidate selection, the way a webhook racing the sweep would.
type paidDuringSweepRepo struct {
	*fakeApptRepo
	target uuid.UUID
}

func (r *paidDuringSweepRepo) ReclaimCandidates(ctx context.Context, cutoff time.Time) ([]*Appointment, error) {
	candidates, err := r.fakeApptRepo.ReclaimCandidates(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	if err := r.fakeApptRepo.MarkPaid(ctx, r.target); err != nil {
		return nil, err
	}
	return candidates, nil
}

func TestReclaimer_SweepOnce_PaymentLandsAfterSelection(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	result, err := fx.svc.Book(ctx, patientIdentity(), BookRequest{
		DoctorID: fx.doc.ID, ScheduleID: fx.slot.ID,
	})
	if err != nil {
		t.Fatal(err)
	}
	appt := fx.repo.appts[result.Appointment.ID]
	appt.CreatedAt = time.Now().Add(-time.Hour)

	repo := &paidDuringSweepRepo{fakeApptRepo: fx.repo, target: appt.ID}
	rec := NewReclaimer(nil, repo, fx.pays, fx.slots, 30*time.Minute, zerolog.Nop())

	n, err := rec.SweepOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("expected 0 reclaimed, got %d", n)
	}
	if appt.Status != StatusScheduled {
		t.Errorf("paid appointment must stay SCHEDULED, got %s", appt.Status)
	}
	if !fx.pair.IsBooked {
		t.Error("paid appointment must keep its slot")
	}
	if _, err := fx.pays.GetByAppointmentID(ctx, appt.ID); err != nil {
		t.Errorf("payment row must survive the sweep: %v", err)
	}
}

func TestReclaimer_SkipsFreshAndPaid(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	result, err := fx.svc.Book(ctx, patientIdentity(), BookRequest{
		DoctorID: fx.doc.ID, ScheduleID: fx.slot.ID,
	})
	if err != nil {
		t.Fatal(err)
	}
	appt := fx.repo.appts[result.Appointment.ID]

	rec := NewReclaimer(nil, fx.repo, fx.pays, fx.slots, 30*time.Minute, zerolog.Nop())

	// Fresh unpaid appointment is inside the grace window.
	if n, err := rec.SweepOnce(ctx); err != nil || n != 0 {
		t.Fatalf("fresh appointment: expected 0 reclaimed, got n=%d err=%v", n, err)
	}

	// Old but paid appointments are never reclaimed.
	appt.CreatedAt = time.Now().Add(-time.Hour)
	appt.PaymentStatus = PaymentPaid
	if n, err := rec.SweepOnce(ctx); err != nil || n != 0 {
		t.Fatalf("paid appointment: expected 0 reclaimed, got n=%d err=%v", n, err)
	}
	if appt.Status != StatusScheduled {
		t.Errorf("paid appointment must stay SCHEDULED, got %s", appt.Status)
	}
	if !fx.pair.IsBooked {
		t.Error("paid appointment must keep its slot")
	}
}
