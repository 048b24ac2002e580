package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/careslot/careslot/internal/domain/doctorschedule"
	"github.com/careslot/careslot/internal/domain/payment"
	"github.com/careslot/careslot/internal/platform/apperror"
	"github.com/careslot/careslot/internal/platform/db"
)

// Reclaimer cancels appointments whose payment never arrived and returns
// their slots to the pool. Each sweep is one transaction, so a failed sweep
// changes nothing and the next cycle retries.
type Reclaimer struct {
	pool     *pgxpool.Pool
	repo     Repository
	payments payment.Repository
	slots    doctorschedule.Repository
	grace    time.Duration
	logger   zerolog.Logger
}

func NewReclaimer(
	pool *pgxpool.Pool,
	repo Repository,
	pays payment.Repository,
	slots doctorschedule.Repository,
	grace time.Duration,
	logger zerolog.Logger,
) *Reclaimer {
	return &Reclaimer{
		pool:     pool,
		repo:     repo,
		payments: pays,
		slots:    slots,
		grace:    grace,
		logger:   logger,
	}
}

// SweepOnce reclaims every appointment past the grace window and reports how
// many were canceled.
func (r *Reclaimer) SweepOnce(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-r.grace)
	candidates, err := r.repo.ReclaimCandidates(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	ids := make([]uuid.UUID, len(candidates))
	byID := make(map[uuid.UUID]*Appointment, len(candidates))
	for i, appt := range candidates {
		ids[i] = appt.ID
		byID[appt.ID] = appt
	}

	// CancelBulk re-checks the reclaim condition, so an appointment whose
	// payment landed after selection keeps its booking; payments and slots
	// are only touched for rows the update actually canceled.
	var canceled []uuid.UUID
	err = db.RunInTx(ctx, r.pool, func(ctx context.Context) error {
		canceled, err = r.repo.CancelBulk(ctx, ids)
		if err != nil {
			return err
		}
		if len(canceled) == 0 {
			return nil
		}
		if _, err := r.payments.DeleteByAppointmentIDs(ctx, canceled); err != nil {
			return err
		}
		for _, id := range canceled {
			appt := byID[id]
			pair, err := r.slots.GetPair(ctx, appt.DoctorID, appt.ScheduleID)
			if err != nil {
				if apperror.Is(err, "not_found") {
					continue
				}
				return err
			}
			if err := r.slots.Release(ctx, pair.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(canceled) == 0 {
		return 0, nil
	}

	r.logger.Info().
		Int("reclaimed", len(canceled)).
		Time("cutoff", cutoff).
		Msg("unpaid appointments reclaimed")
	return len(canceled), nil
}

// Run sweeps on the given cadence until the context is canceled.
func (r *Reclaimer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.SweepOnce(ctx); err != nil {
				r.logger.Error().Err(err).Msg("reclamation sweep failed")
			}
		}
	}
}
