package review

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

const reviewCols = `reviews.id, reviews.appointment_id, reviews.patient_id, reviews.doctor_id,
	reviews.rating, reviews.comment, reviews.created_at, reviews.updated_at`

var Mapping = &query.Mapping{
	Table: "reviews",
	Columns: map[string]string{
		"doctorId":  "doctor_id::text",
		"patientId": "patient_id::text",
		"rating":    "rating",
		"createdAt": "created_at",
	},
}

func (r *repoPG) Create(ctx context.Context, rv *Review) error {
	if rv.ID == uuid.Nil {
		rv.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO reviews (id, appointment_id, patient_id, doctor_id, rating, comment)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		rv.ID, rv.AppointmentID, rv.PatientID, rv.DoctorID, rv.Rating, rv.Comment,
	)
	return err
}

func (r *repoPG) GetByAppointmentID(ctx context.Context, appointmentID uuid.UUID) (*Review, error) {
	var rv Review
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT `+reviewCols+` FROM reviews WHERE reviews.appointment_id = $1`, appointmentID).
		Scan(&rv.ID, &rv.AppointmentID, &rv.PatientID, &rv.DoctorID,
			&rv.Rating, &rv.Comment, &rv.CreatedAt, &rv.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, apperror.NotFound("review not found")
	}
	if err != nil {
		return nil, err
	}
	return &rv, nil
}

func (r *repoPG) AverageForDoctor(ctx context.Context, doctorID uuid.UUID) (float64, error) {
	var avg float64
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COALESCE(AVG(rating), 0) FROM reviews WHERE doctor_id = $1`, doctorID).Scan(&avg)
	return avg, err
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
	rows, err := r.conn(ctx).Query(ctx, q.DataSQL(reviewCols), q.DataArgs()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reviews := []*Review{}
	for rows.Next() {
		var rv Review
		if err := rows.Scan(&rv.ID, &rv.AppointmentID, &rv.PatientID, &rv.DoctorID,
			&rv.Rating, &rv.Comment, &rv.CreatedAt, &rv.UpdatedAt); err != nil {
			return nil, err
		}
		reviews = append(reviews, &rv)
	}
	return reviews, rows.Err()
}
