package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/citamed/citamed/internal/platform/db"
	"github.com/citamed/citamed/pkg/timeslot"
)

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG returns the Postgres-backed appointment repository.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const apptCols = `id, date, time_min, duration_min, patient_name, patient_email,
	patient_phone, doctor_id, doctor_name, specialty, type, status, company_id,
	notes, location, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a       Appointment
		date    string
		timeMin int
		status  string
	)
	err := row.Scan(&a.ID, &date, &timeMin, &a.DurationMin, &a.PatientName,
		&a.PatientEmail, &a.PatientPhone, &a.DoctorID, &a.DoctorName,
		&a.Specialty, &a.Type, &status, &a.CompanyID,
		&a.Notes, &a.Location, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Date = timeslot.Date(date)
	a.Time = timeslot.ClockTime(timeMin)
	a.Status = Status(status)
	return &a, nil
}

func (r *repoPG) Insert(ctx context.Context, a *Appointment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments (id, date, time_min, duration_min, patient_name,
			patient_email, patient_phone, doctor_id, doctor_name, specialty, type,
			status, company_id, notes, location, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		a.ID, string(a.Date), int(a.Time), a.DurationMin, a.PatientName,
		a.PatientEmail, a.PatientPhone, a.DoctorID, a.DoctorName, a.Specialty,
		a.Type, string(a.Status), a.CompanyID, a.Notes, a.Location,
		a.CreatedAt, a.UpdatedAt)
	return db.WrapStorage("insert appointment", err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(r.pool.QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, db.WrapStorage("get appointment", err)
	}
	return a, nil
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments SET date=$2, time_min=$3, duration_min=$4,
			patient_name=$5, patient_email=$6, patient_phone=$7, doctor_id=$8,
			doctor_name=$9, specialty=$10, type=$11, status=$12, notes=$13,
			location=$14, updated_at=$15
		WHERE id = $1`,
		a.ID, string(a.Date), int(a.Time), a.DurationMin,
		a.PatientName, a.PatientEmail, a.PatientPhone, a.DoctorID,
		a.DoctorName, a.Specialty, a.Type, string(a.Status), a.Notes,
		a.Location, a.UpdatedAt)
	if err != nil {
		return db.WrapStorage("update appointment", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return db.WrapStorage("delete appointment", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) FindByDate(ctx context.Context, date timeslot.Date, companyID *uuid.UUID) ([]*Appointment, error) {
	query := `SELECT ` + apptCols + ` FROM appointments WHERE date = $1`
	args := []interface{}{string(date)}
	if companyID != nil {
		query += ` AND company_id = $2`
		args = append(args, *companyID)
	}
	query += ` ORDER BY time_min ASC`

	items, err := r.queryMany(ctx, query, args)
	return items, db.WrapStorage("find appointments by date", err)
}

func (r *repoPG) FindByProfessional(ctx context.Context, doctorID uuid.UUID, from, to timeslot.Date) ([]*Appointment, error) {
	items, err := r.queryMany(ctx, `
		SELECT `+apptCols+` FROM appointments
		WHERE doctor_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC, time_min ASC`,
		[]interface{}{doctorID, string(from), string(to)})
	return items, db.WrapStorage("find appointments by professional", err)
}

func (r *repoPG) FindByFilter(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	where, args := buildFilter(f)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM appointments`+where, args...).Scan(&total); err != nil {
		return nil, 0, db.WrapStorage("count appointments", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM appointments%s ORDER BY date DESC, time_min DESC LIMIT $%d OFFSET $%d`,
		apptCols, where, len(args)+1, len(args)+2)
	items, err := r.queryMany(ctx, query, append(args, limit, offset))
	if err != nil {
		return nil, 0, db.WrapStorage("find appointments", err)
	}
	return items, total, nil
}

func (r *repoPG) FindRecent(ctx context.Context, f Filter, n int) ([]*Appointment, error) {
	where, args := buildFilter(f)
	query := fmt.Sprintf(`SELECT %s FROM appointments%s ORDER BY created_at DESC LIMIT $%d`,
		apptCols, where, len(args)+1)
	items, err := r.queryMany(ctx, query, append(args, n))
	return items, db.WrapStorage("find recent appointments", err)
}

func (r *repoPG) CountByFilter(ctx context.Context, f Filter) (int, error) {
	where, args := buildFilter(f)
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM appointments`+where, args...).Scan(&total)
	return total, db.WrapStorage("count appointments", err)
}

func (r *repoPG) queryMany(ctx context.Context, query string, args []interface{}) ([]*Appointment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func buildFilter(f Filter) (where string, args []interface{}) {
	where = ` WHERE 1=1`
	add := func(clause string, val interface{}) {
		args = append(args, val)
		where += fmt.Sprintf(clause, len(args))
	}
	if f.Date != nil {
		add(` AND date = $%d`, string(*f.Date))
	}
	if f.DateFrom != nil {
		add(` AND date >= $%d`, string(*f.DateFrom))
	}
	if f.DateTo != nil {
		add(` AND date <= $%d`, string(*f.DateTo))
	}
	if f.DoctorID != nil {
		add(` AND doctor_id = $%d`, *f.DoctorID)
	}
	if f.CompanyID != nil {
		add(` AND company_id = $%d`, *f.CompanyID)
	}
	if f.Status != nil {
		add(` AND status = $%d`, string(*f.Status))
	}
	return where, args
}
