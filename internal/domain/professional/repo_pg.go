package professional

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/citamed/citamed/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG returns the Postgres-backed roster repository.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const profCols = `id, name, email, phone, specialty, company_id, weekly_hours,
	status, rating, total_hours_month, username, password_hash, created_at, updated_at`

func scanProfessional(row pgx.Row) (*Professional, error) {
	var (
		p      Professional
		status string
	)
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.Phone, &p.Specialty,
		&p.CompanyID, &p.WeeklyHours, &status, &p.Rating,
		&p.TotalHoursThisMonth, &p.Username, &p.PasswordHash,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Status = Status(status)
	return &p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *repoPG) Insert(ctx context.Context, p *Professional) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO professionals (id, name, email, phone, specialty, company_id,
			weekly_hours, status, rating, total_hours_month, username,
			password_hash, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		p.ID, p.Name, p.Email, p.Phone, p.Specialty, p.CompanyID,
		p.WeeklyHours, string(p.Status), p.Rating, p.TotalHoursThisMonth,
		p.Username, p.PasswordHash, p.CreatedAt, p.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	return db.WrapStorage("insert professional", err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Professional, error) {
	p, err := scanProfessional(r.pool.QueryRow(ctx,
		`SELECT `+profCols+` FROM professionals WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, db.WrapStorage("get professional", err)
	}
	return p, nil
}

func (r *repoPG) GetByEmail(ctx context.Context, email string) (*Professional, error) {
	p, err := scanProfessional(r.pool.QueryRow(ctx,
		`SELECT `+profCols+` FROM professionals WHERE email = $1`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, db.WrapStorage("get professional by email", err)
	}
	return p, nil
}

func (r *repoPG) Update(ctx context.Context, p *Professional) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE professionals SET name=$2, email=$3, phone=$4, specialty=$5,
			weekly_hours=$6, status=$7, rating=$8, updated_at=$9
		WHERE id = $1`,
		p.ID, p.Name, p.Email, p.Phone, p.Specialty,
		p.WeeklyHours, string(p.Status), p.Rating, p.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	if err != nil {
		return db.WrapStorage("update professional", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM professionals WHERE id = $1`, id)
	if err != nil {
		return db.WrapStorage("delete professional", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func buildFilter(f Filter) (where string, args []interface{}) {
	where = ` WHERE 1=1`
	add := func(clause string, val interface{}) {
		args = append(args, val)
		where += fmt.Sprintf(clause, len(args))
	}
	if f.CompanyID != nil {
		add(` AND company_id = $%d`, *f.CompanyID)
	}
	if f.Status != nil {
		add(` AND status = $%d`, string(*f.Status))
	}
	if f.Specialty != nil {
		add(` AND specialty = $%d`, *f.Specialty)
	}
	return where, args
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Professional, int, error) {
	where, args := buildFilter(f)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM professionals`+where, args...).Scan(&total); err != nil {
		return nil, 0, db.WrapStorage("count professionals", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM professionals%s ORDER BY name ASC LIMIT $%d OFFSET $%d`,
		profCols, where, len(args)+1, len(args)+2)
	rows, err := r.pool.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, db.WrapStorage("list professionals", err)
	}
	defer rows.Close()

	var items []*Professional
	for rows.Next() {
		p, err := scanProfessional(rows)
		if err != nil {
			return nil, 0, db.WrapStorage("scan professional", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, db.WrapStorage("list professionals", err)
	}
	return items, total, nil
}

func (r *repoPG) Count(ctx context.Context, f Filter) (int, error) {
	where, args := buildFilter(f)
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM professionals`+where, args...).Scan(&total)
	return total, db.WrapStorage("count professionals", err)
}

func (r *repoPG) SetMonthlyHours(ctx context.Context, id uuid.UUID, hours float64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE professionals SET total_hours_month = $2, updated_at = NOW() WHERE id = $1`,
		id, hours)
	if err != nil {
		return db.WrapStorage("set monthly hours", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
