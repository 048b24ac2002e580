package doctorschedule

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

const dsCols = `doctor_schedules.id, doctor_schedules.doctor_id, doctor_schedules.schedule_id,
	doctor_schedules.is_booked,
	(SELECT start_time FROM schedules WHERE schedules.id = doctor_schedules.schedule_id) AS start_time,
	(SELECT end_time FROM schedules WHERE schedules.id = doctor_schedules.schedule_id) AS end_time,
	doctor_schedules.created_at, doctor_schedules.updated_at`

// Mapping lowers query expressions against the doctor_schedules table.
// The id columns cast to text so case-insensitive contains search works.
var Mapping = &query.Mapping{
	Table: "doctor_schedules",
	Columns: map[string]string{
		"id":         "id::text",
		"doctorId":   "doctor_id::text",
		"scheduleId": "schedule_id::text",
		"isBooked":   "is_booked",
		"createdAt":  "created_at",
	},
	Relations: map[string]*query.RelationMapping{
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
		"doctor": {
			Mapping: &query.Mapping{
				Table:   "doctors",
				Columns: map[string]string{"createdAt": "created_at"},
			},
			LocalKey: "doctor_id",
		},
	},
}

func (r *repoPG) CreateBatch(ctx context.Context, doctorID uuid.UUID, scheduleIDs []uuid.UUID) (int, error) {
	created := 0
	for _, sid := range scheduleIDs {
		tag, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO doctor_schedules (id, doctor_id, schedule_id)
			VALUES ($1, $2, $3)
			ON CONFLICT (doctor_id, schedule_id) DO NOTHING`,
			uuid.New(), doctorID, sid,
		)
		if err != nil {
			return created, err
		}
		created += int(tag.RowsAffected())
	}
	return created, nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*DoctorSchedule, error) {
	return scanPair(r.conn(ctx).QueryRow(ctx,
		`SELECT `+dsCols+` FROM doctor_schedules WHERE doctor_schedules.id = $1`, id))
}

func (r *repoPG) GetPair(ctx context.Context, doctorID, scheduleID uuid.UUID) (*DoctorSchedule, error) {
	return scanPair(r.conn(ctx).QueryRow(ctx, `
		SELECT `+dsCols+` FROM doctor_schedules
		WHERE doctor_schedules.doctor_id = $1 AND doctor_schedules.schedule_id = $2`,
		doctorID, scheduleID))
}

func (r *repoPG) MarkBooked(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE doctor_schedules SET is_booked = TRUE, updated_at = NOW()
		WHERE id = $1 AND is_booked = FALSE`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.Conflict("slot already booked")
	}
	return nil
}

func (r *repoPG) Release(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE doctor_schedules SET is_booked = FALSE, updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM doctor_schedules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("doctor schedule not found")
	}
	return nil
}

func (r *repoPG) DeleteUnbooked(ctx context.Context, doctorID uuid.UUID, scheduleIDs []uuid.UUID) (int, error) {
	if len(scheduleIDs) == 0 {
		return 0, nil
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		DELETE FROM doctor_schedules
		WHERE doctor_id = $1 AND schedule_id = ANY($2) AND is_booked = FALSE`,
		doctorID, scheduleIDs)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
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
	rows, err := r.conn(ctx).Query(ctx, q.DataSQL(dsCols), q.DataArgs()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pairs := []*DoctorSchedule{}
	for rows.Next() {
		var ds DoctorSchedule
		if err := rows.Scan(&ds.ID, &ds.DoctorID, &ds.ScheduleID, &ds.IsBooked,
			&ds.StartTime, &ds.EndTime, &ds.CreatedAt, &ds.UpdatedAt); err != nil {
			return nil, err
		}
		pairs = append(pairs, &ds)
	}
	return pairs, rows.Err()
}

func scanPair(row pgx.Row) (*DoctorSchedule, error) {
	var ds DoctorSchedule
	err := row.Scan(&ds.ID, &ds.DoctorID, &ds.ScheduleID, &ds.IsBooked,
		&ds.StartTime, &ds.EndTime, &ds.CreatedAt, &ds.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, apperror.NotFound("doctor schedule not found")
	}
	if err != nil {
		return nil, err
	}
	return &ds, nil
}
