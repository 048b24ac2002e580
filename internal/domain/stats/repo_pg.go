package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

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

func (r *repoPG) CountPatients(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM patients WHERE is_deleted = FALSE`).Scan(&n)
	return n, err
}

func (r *repoPG) CountDoctors(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM doctors WHERE is_deleted = FALSE`).Scan(&n)
	return n, err
}

// scope appends optional doctor/patient conditions with positional args.
func scope(sql string, args []interface{}, column string, id *uuid.UUID) (string, []interface{}) {
	if id == nil {
		return sql, args
	}
	args = append(args, *id)
	return fmt.Sprintf("%s AND %s = $%d", sql, column, len(args)), args
}

func (r *repoPG) CountAppointments(ctx context.Context, doctorID, patientID *uuid.UUID) (int, error) {
	sql := `SELECT COUNT(*) FROM appointments WHERE 1=1`
	var args []interface{}
	sql, args = scope(sql, args, "doctor_id", doctorID)
	sql, args = scope(sql, args, "patient_id", patientID)

	var n int
	err := r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&n)
	return n, err
}

func (r *repoPG) Revenue(ctx context.Context, doctorID, patientID *uuid.UUID) (float64, error) {
	sql := `SELECT COALESCE(SUM(p.amount), 0)
		FROM payments p
		JOIN appointments a ON a.id = p.appointment_id
		WHERE p.status = 'PAID'`
	var args []interface{}
	sql, args = scope(sql, args, "a.doctor_id", doctorID)
	sql, args = scope(sql, args, "a.patient_id", patientID)

	var total float64
	err := r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&total)
	return total, err
}

func (r *repoPG) StatusBreakdown(ctx context.Context, doctorID, patientID *uuid.UUID) ([]StatusCount, error) {
	sql := `SELECT status, COUNT(*) FROM appointments WHERE 1=1`
	var args []interface{}
	sql, args = scope(sql, args, "doctor_id", doctorID)
	sql, args = scope(sql, args, "patient_id", patientID)
	sql += ` GROUP BY status ORDER BY status`

	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	breakdown := []StatusCount{}
	for rows.Next() {
		var sc StatusCount
		if err := rows.Scan(&sc.Status, &sc.Count); err != nil {
			return nil, err
		}
		breakdown = append(breakdown, sc)
	}
	return breakdown, rows.Err()
}

func (r *repoPG) MonthlyAppointments(ctx context.Context, doctorID *uuid.UUID, since time.Time) ([]MonthlyCount, error) {
	sql := `SELECT date_trunc('month', created_at) AS month, COUNT(*)
		FROM appointments WHERE created_at >= $1`
	args := []interface{}{since}
	sql, args = scope(sql, args, "doctor_id", doctorID)
	sql += ` GROUP BY month ORDER BY month`

	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	months := []MonthlyCount{}
	for rows.Next() {
		var mc MonthlyCount
		if err := rows.Scan(&mc.Month, &mc.Count); err != nil {
			return nil, err
		}
		months = append(months, mc)
	}
	return months, rows.Err()
}
