package schedule

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

const schedCols = `id, start_time, end_time, created_at`

// Mapping lowers query expressions against the schedules table.
var Mapping = &query.Mapping{
	Table: "schedules",
	Columns: map[string]string{
		"startDateTime": "start_time",
		"endDateTime":   "end_time",
		"createdAt":     "created_at",
	},
}

func (r *repoPG) CreateBatch(ctx context.Context, slots []*Schedule) (int, error) {
	created := 0
	for _, s := range slots {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		tag, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO schedules (id, start_time, end_time)
			VALUES ($1,$2,$3)
			ON CONFLICT (start_time, end_time) DO NOTHING`,
			s.ID, s.StartTime, s.EndTime,
		)
		if err != nil {
			return created, err
		}
		created += int(tag.RowsAffected())
	}
	return created, nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	return scanSchedule(r.conn(ctx).QueryRow(ctx, `SELECT `+schedCols+` FROM schedules WHERE id = $1`, id))
}

func (r *repoPG) ExistingStarts(ctx context.Context, from, to time.Time) (map[time.Time]bool, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT start_time FROM schedules WHERE start_time >= $1 AND start_time < $2`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	starts := make(map[time.Time]bool)
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		starts[t.UTC()] = true
	}
	return starts, rows.Err()
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	return err
}

func (r *repoPG) ReferenceCount(ctx context.Context, id uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM doctor_schedules WHERE schedule_id = $1`, id).Scan(&n)
	return n, err
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
	rows, err := r.conn(ctx).Query(ctx, q.DataSQL(schedCols), q.DataArgs()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	slots := []*Schedule{}
	for rows.Next() {
		var s Schedule
		if err := rows.Scan(&s.ID, &s.StartTime, &s.EndTime, &s.CreatedAt); err != nil {
			return nil, err
		}
		slots = append(slots, &s)
	}
	return slots, rows.Err()
}

func scanSchedule(row pgx.Row) (*Schedule, error) {
	var s Schedule
	err := row.Scan(&s.ID, &s.StartTime, &s.EndTime, &s.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, apperror.NotFound("schedule not found")
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
