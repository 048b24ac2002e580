package appointment

import (
	"context"
	"time"

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

const apptCols = `appointments.id, appointments.patient_id, appointments.doctor_id,
	appointments.schedule_id, appointments.video_calling_id, appointments.status,
	appointments.payment_status,
	(SELECT name FROM users WHERE users.id =
		(SELECT user_id FROM patients WHERE patients.id = appointments.patient_id)) AS patient_name,
	(SELECT name FROM users WHERE users.id =
		(SELECT user_id FROM doctors WHERE doctors.id = appointments.doctor_id)) AS doctor_name,
	(SELECT start_time FROM schedules WHERE schedules.id = appointments.schedule_id) AS start_time,
	(SELECT end_time FROM schedules WHERE schedules.id = appointments.schedule_id) AS end_time,
	appointments.created_at, appointments.updated_at`

// Mapping lowers query expressions against the appointments table. The id
// columns cast to text so contains search works.
var Mapping = &query.Mapping{
	Table: "appointments",
	Columns: map[string]string{
		"id":             "id::text",
		"patientId":      "patient_id::text",
		"doctorId":       "doctor_id::text",
		"scheduleId":     "schedule_id::text",
		"videoCallingId": "video_calling_id",
		"status":         "status",
		"paymentStatus":  "payment_status",
		"createdAt":      "created_at",
	},
	Relations: map[string]*query.RelationMapping{
		"doctor": {
			Mapping: &query.Mapping{
				Table:   "doctors",
				Columns: map[string]string{"createdAt": "created_at"},
				Relations: map[string]*query.RelationMapping{
					"user": {
						Mapping: &query.Mapping{
							Table:   "users",
							Columns: map[string]string{"createdAt": "created_at"},
						},
						LocalKey: "user_id",
					},
				},
			},
			LocalKey: "doctor_id",
		},
		"patient": {
			Mapping: &query.Mapping{
				Table:   "patients",
				Columns: map[string]string{"createdAt": "created_at"},
				Relations: map[string]*query.RelationMapping{
					"user": {
						Mapping: &query.Mapping{
							Table:   "users",
							Columns: map[string]string{"createdAt": "created_at"},
						},
						LocalKey: "user_id",
					},
				},
			},
			LocalKey: "patient_id",
		},
		"schedule": {
			Mapping: &query.Mapping{
				Table: "schedules",
				Columns: map[string]string{
					"startDateTime": "start_time",
					"endDateTime":   "end_time",
					"createdAt":     "created_at",
				},
			},
			LocalKey: "schedule_id",
		},
	},
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, schedule_id, video_calling_id, status, payment_status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		a.ID, a.PatientID, a.DoctorID, a.ScheduleID, a.VideoCallingID, a.Status, a.PaymentStatus,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointments WHERE appointments.id = $1`, id))
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE appointments SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("appointment not found")
	}
	return nil
}

func (r *repoPG) UpdateStatusFrom(ctx context.Context, id uuid.UUID, from, to string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointments SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`,
		id, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.Conflict("appointment status changed concurrently")
	}
	return nil
}

func (r *repoPG) MarkPaid(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE appointments SET payment_status = $2, updated_at = NOW() WHERE id = $1`, id, PaymentPaid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("appointment not found")
	}
	return nil
}

func (r *repoPG) ReclaimCandidates(ctx context.Context, cutoff time.Time) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+` FROM appointments
		WHERE appointments.payment_status = $1
		  AND appointments.created_at <= $2
		  AND appointments.status != $3`,
		PaymentUnpaid, cutoff, StatusCanceled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

// CancelBulk re-asserts the reclaim condition in the write: an appointment
// paid or canceled between candidate selection and this update is skipped.
func (r *repoPG) CancelBulk(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `
		UPDATE appointments SET status = $2, updated_at = NOW()
		WHERE id = ANY($1) AND payment_status = $3 AND status != $2
		RETURNING id`,
		ids, StatusCanceled, PaymentUnpaid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	canceled := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		canceled = append(canceled, id)
	}
	return canceled, rows.Err()
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
	rows, err := r.conn(ctx).Query(ctx, q.DataSQL(apptCols), q.DataArgs()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func collectAppointments(rows pgx.Rows) ([]*Appointment, error) {
	appts := []*Appointment{}
	for rows.Next() {
		var a Appointment
		if err := rows.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.ScheduleID,
			&a.VideoCallingID, &a.Status, &a.PaymentStatus,
			&a.PatientName, &a.DoctorName, &a.StartTime, &a.EndTime,
			&a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		appts = append(appts, &a)
	}
	return appts, rows.Err()
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.ScheduleID,
		&a.VideoCallingID, &a.Status, &a.PaymentStatus,
		&a.PatientName, &a.DoctorName, &a.StartTime, &a.EndTime,
		&a.CreatedAt, &a.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, apperror.NotFound("appointment not found")
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
