package prescription

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careslot/careslot/internal/platform/apperror"
	"github.com/careslot/careslot/internal/platform/db"
	"github.com/careslot/careslot/internal/platform/query"
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

const prescriptionCols = `prescriptions.id, prescriptions.appointment_id, prescriptions.doctor_id,
	prescriptions.patient_id, prescriptions.instructions, prescriptions.follow_up_date,
	prescriptions.created_at, prescriptions.updated_at`

var Mapping = &query.Mapping{
	Table: "prescriptions",
	Columns: map[string]string{
		"doctorId":     "doctor_id::text",
		"patientId":    "patient_id::text",
		"followUpDate": "follow_up_date",
		"createdAt":    "created_at",
	},
}

func (r *repoPG) Create(ctx context.Context, p *Prescription) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO prescriptions (id, appointment_id, doctor_id, patient_id, instructions, follow_up_date)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		p.ID, p.AppointmentID, p.DoctorID, p.PatientID, p.Instructions, p.FollowUpDate,
	)
	return err
}

func (r *repoPG) GetByAppointmentID(ctx context.Context, appointmentID uuid.UUID) (*Prescription, error) {
	var p Prescription
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT `+prescriptionCols+` FROM prescriptions WHERE prescriptions.appointment_id = $1`, appointmentID).
		Scan(&p.ID, &p.AppointmentID, &p.DoctorID, &p.PatientID,
			&p.Instructions, &p.FollowUpDate, &p.CreatedAt, &p.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, apperror.NotFound("prescription not found")
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) Count(ctx context.Context, expr *query.Expression) (int, error) {
	q := query.NewSQL(Mapping)
	if err := q.Apply(expr); err != nil {
		return 0, err
	}
	var total int
	err := r.conn(ctx).QueryRow(ctx, q.CountSQL(), q.CountArgs()...).Scan(&total)
	return total, err
}

func (r *repoPG) FindMany(ctx context.Context, expr *query.Expression) (interface{}, error) {
	q := query.NewSQL(Mapping)
	if err := q.Apply(expr); err != nil {
		return nil, err
	}
	rows, err := r.conn(ctx).Query(ctx, q.DataSQL(prescriptionCols), q.DataArgs()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	prescriptions := []*Prescription{}
	for rows.Next() {
		var p Prescription
		if err := rows.Scan(&p.ID, &p.AppointmentID, &p.DoctorID, &p.PatientID,
			&p.Instructions, &p.FollowUpDate, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		prescriptions = append(prescriptions, &p)
	}
	return prescriptions, rows.Err()
}
