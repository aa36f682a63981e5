package company

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/citamed/citamed/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG returns the Postgres-backed company repository.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const companyCols = `id, name, email, phone, active, created_at, updated_at`

func scanCompany(row pgx.Row) (*Company, error) {
	var c Company
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repoPG) Insert(ctx context.Context, c *Company) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO companies (id, name, email, phone, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		c.ID, c.Name, c.Email, c.Phone, c.Active, c.CreatedAt, c.UpdatedAt)
	return db.WrapStorage("insert company", err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Company, error) {
	c, err := scanCompany(r.pool.QueryRow(ctx,
		`SELECT `+companyCols+` FROM companies WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, db.WrapStorage("get company", err)
	}
	return c, nil
}

func (r *repoPG) Update(ctx context.Context, c *Company) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE companies SET name=$2, email=$3, phone=$4, active=$5, updated_at=$6
		WHERE id = $1`,
		c.ID, c.Name, c.Email, c.Phone, c.Active, c.UpdatedAt)
	if err != nil {
		return db.WrapStorage("update company", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context) ([]*Company, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+companyCols+` FROM companies ORDER BY name ASC`)
	if err != nil {
		return nil, db.WrapStorage("list companies", err)
	}
	defer rows.Close()

	var items []*Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, db.WrapStorage("scan company", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, db.WrapStorage("list companies", err)
	}
	return items, nil
}
