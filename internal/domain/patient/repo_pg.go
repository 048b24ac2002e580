package patient

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

const patientCols = `patients.id, patients.user_id,
	(SELECT name FROM users WHERE users.id = patients.user_id) AS name,
	(SELECT email FROM users WHERE users.id = patients.user_id) AS email,
	patients.date_of_birth, patients.gender, patients.address,
	patients.is_deleted, patients.created_at, patients.updated_at`

// Mapping lowers query expressions against the patients table.
var Mapping = &query.Mapping{
	Table: "patients",
	Columns: map[string]string{
		"userId":      "user_id",
		"dateOfBirth": "date_of_birth",
		"gender":      "gender",
		"isDeleted":   "is_deleted",
		"createdAt":   "created_at",
	},
	Relations: map[string]*query.RelationMapping{
		"user": {
			Mapping: &query.Mapping{
				Table:   "users",
				Columns: map[string]string{"createdAt": "created_at"},
			},
			LocalKey: "user_id",
		},
	},
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patients (id, user_id, date_of_birth, gender, address)
		VALUES ($1,$2,$3,$4,$5)`,
		p.ID, p.UserID, p.DateOfBirth, p.Gender, p.Address,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE patients.id = $1 AND patients.is_deleted = FALSE`, id))
}

func (r *repoPG) GetByEmail(ctx context.Context, email string) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `
		SELECT `+patientCols+` FROM patients
		WHERE patients.user_id = (SELECT id FROM users WHERE email = $1)
		  AND patients.is_deleted = FALSE`, email))
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET date_of_birth=$2, gender=$3, address=$4, updated_at=NOW()
		WHERE id = $1 AND is_deleted = FALSE`,
		p.ID, p.DateOfBirth, p.Gender, p.Address,
	)
	return err
}

func (r *repoPG) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE patients SET is_deleted = TRUE, updated_at = NOW() WHERE id = $1 AND is_deleted = FALSE`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("patient not found")
	}
	return nil
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
	rows, err := r.conn(ctx).Query(ctx, q.DataSQL(patientCols), q.DataArgs()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	patients := []*Patient{}
	for rows.Next() {
		var p Patient
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Email, &p.DateOfBirth,
			&p.Gender, &p.Address, &p.IsDeleted, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		patients = append(patients, &p)
	}
	return patients, rows.Err()
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Email, &p.DateOfBirth,
		&p.Gender, &p.Address, &p.IsDeleted, &p.CreatedAt, &p.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, apperror.NotFound("patient not found")
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
