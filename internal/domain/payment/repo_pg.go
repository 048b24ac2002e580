package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careslot/careslot/internal/platform/apperror"
	"github.com/careslot/careslot/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	if tx := db.ConnFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const paymentCols = `id, appointment_id, amount, transaction_id, status,
	gateway_event_id, gateway_data, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, p *Payment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = StatusUnpaid
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO payments (id, appointment_id, amount, transaction_id, status)
		VALUES ($1,$2,$3,$4,$5)`,
		p.ID, p.AppointmentID, p.Amount, p.TransactionID, p.Status,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return scanPayment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+paymentCols+` FROM payments WHERE id = $1`, id))
}

func (r *repoPG) GetByAppointmentID(ctx context.Context, appointmentID uuid.UUID) (*Payment, error) {
	return scanPayment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+paymentCols+` FROM payments WHERE appointment_id = $1`, appointmentID))
}

func (r *repoPG) HasGatewayEvent(ctx context.Context, eventID string) (bool, error) {
	var seen bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM payments WHERE gateway_event_id = $1)`, eventID).Scan(&seen)
	return seen, err
}

func (r *repoPG) MarkPaid(ctx context.Context, id uuid.UUID, eventID string, gatewayData []byte) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE payments SET status = $2, gateway_event_id = $3, gateway_data = $4, updated_at = NOW()
		WHERE id = $1`,
		id, StatusPaid, eventID, gatewayData,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("payment not found")
	}
	return nil
}

func (r *repoPG) StampEvent(ctx context.Context, id uuid.UUID, eventID string, gatewayData []byte) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE payments SET gateway_event_id = $2, gateway_data = $3, updated_at = NOW()
		WHERE id = $1`,
		id, eventID, gatewayData,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("payment not found")
	}
	return nil
}

func (r *repoPG) DeleteByAppointmentIDs(ctx context.Context, appointmentIDs []uuid.UUID) (int, error) {
	if len(appointmentIDs) == 0 {
		return 0, nil
	}
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM payments WHERE appointment_id = ANY($1)`, appointmentIDs)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.AppointmentID, &p.Amount, &p.TransactionID, &p.Status,
		&p.GatewayEventID, &p.GatewayData, &p.CreatedAt, &p.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, apperror.NotFound("payment not found")
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
