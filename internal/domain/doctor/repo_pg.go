package doctor

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

// docCols pulls name and email in from the user row so listings do not need a
// second query.
const docCols = `doctors.id, doctors.user_id,
	(SELECT name FROM users WHERE users.id = doctors.user_id) AS name,
	(SELECT email FROM users WHERE users.id = doctors.user_id) AS email,
	doctors.specialty, doctors.qualification, doctors.experience_years,
	doctors.appointment_fee, doctors.average_rating, doctors.is_deleted,
	doctors.created_at, doctors.updated_at`

// Mapping lowers query expressions against the doctors table.
var Mapping = &query.Mapping{
	Table: "doctors",
	Columns: map[string]string{
		"userId":          "user_id",
		"specialty":       "specialty",
		"experienceYears": "experience_years",
		"appointmentFee":  "appointment_fee",
		"averageRating":   "average_rating",
		"isDeleted":       "is_deleted",
		"createdAt":       "created_at",
	},
	Relations: map[string]*query.RelationMapping{
		"user": {
			Mapping: &query.Mapping{
				Table: "users",
				Columns: map[string]string{
					"createdAt": "created_at",
				},
			},
			LocalKey: "user_id",
		},
	},
}

func (r *repoPG) Create(ctx context.Context, d *Doctor) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO doctors (id, user_id, specialty, qualification, experience_years, appointment_fee)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		d.ID, d.UserID, d.Specialty, d.Qualification, d.ExperienceYears, d.AppointmentFee,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return scanDoctor(r.conn(ctx).QueryRow(ctx,
		`SELECT `+docCols+` FROM doctors WHERE doctors.id = $1 AND doctors.is_deleted = FALSE`, id))
}

func (r *repoPG) GetByEmail(ctx context.Context, email string) (*Doctor, error) {
	return scanDoctor(r.conn(ctx).QueryRow(ctx, `
		SELECT `+docCols+` FROM doctors
		WHERE doctors.user_id = (SELECT id FROM users WHERE email = $1)
		  AND doctors.is_deleted = FALSE`, email))
}

func (r *repoPG) Update(ctx context.Context, d *Doctor) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE doctors SET specialty=$2, qualification=$3, experience_years=$4,
			appointment_fee=$5, updated_at=NOW()
		WHERE id = $1 AND is_deleted = FALSE`,
		d.ID, d.Specialty, d.Qualification, d.ExperienceYears, d.AppointmentFee,
	)
	return err
}

func (r *repoPG) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE doctors SET is_deleted = TRUE, updated_at = NOW() WHERE id = $1 AND is_deleted = FALSE`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("doctor not found")
	}
	return nil
}

func (r *repoPG) SetAverageRating(ctx context.Context, id uuid.UUID, rating float64) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE doctors SET average_rating = $2, updated_at = NOW() WHERE id = $1`, id, rating)
	return err
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

// FindMany returns []*Doctor, or []map[string]interface{} when the expression
// carries a field projection.
func (r *repoPG) FindMany(ctx context.Context, expr *query.Expression) (interface{}, error) {
	q := query.NewSQL(Mapping)
	if err := q.Apply(expr); err != nil {
		return nil, err
	}

	if len(expr.Select) > 0 {
		rows, err := r.conn(ctx).Query(ctx, q.DataSQL(q.SelectColumns(expr, docCols)), q.DataArgs()...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		return collectProjected(rows)
	}

	rows, err := r.conn(ctx).Query(ctx, q.DataSQL(docCols), q.DataArgs()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	doctors := []*Doctor{}
	for rows.Next() {
		d, err := scanDoctorRows(rows)
		if err != nil {
			return nil, err
		}
		doctors = append(doctors, d)
	}
	return doctors, rows.Err()
}

// collectProjected scans arbitrary projected columns into generic rows.
func collectProjected(rows pgx.Rows) ([]map[string]interface{}, error) {
	fields := rows.FieldDescriptions()
	out := []map[string]interface{}{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(fields))
		for i, f := range fields {
			row[string(f.Name)] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.UserID, &d.Name, &d.Email, &d.Specialty, &d.Qualification,
		&d.ExperienceYears, &d.AppointmentFee, &d.AverageRating, &d.IsDeleted,
		&d.CreatedAt, &d.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, apperror.NotFound("doctor not found")
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func scanDoctorRows(rows pgx.Rows) (*Doctor, error) {
	var d Doctor
	err := rows.Scan(&d.ID, &d.UserID, &d.Name, &d.Email, &d.Specialty, &d.Qualification,
		&d.ExperienceYears, &d.AppointmentFee, &d.AverageRating, &d.IsDeleted,
		&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
