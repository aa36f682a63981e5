package professional

import (
	"context"

	"github.com/google/uuid"
)

// Filter narrows roster queries. Nil fields match everything.
type Filter struct {
	CompanyID *uuid.UUID
	Status    *Status
	Specialty *string
}

// Repository is the persistence boundary for the roster.
type Repository interface {
	Insert(ctx context.Context, p *Professional) error
	GetByID(ctx context.Context, id uuid.UUID) (*Professional, error)
	GetByEmail(ctx context.Context, email string) (*Professional, error)
	Update(ctx context.Context, p *Professional) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List pages through the roster ordered by name, returning the total
	// match count alongside the page.
	List(ctx context.Context, f Filter, limit, offset int) ([]*Professional, int, error)
	Count(ctx context.Context, f Filter) (int, error)
	// SetMonthlyHours overwrites the workload rollup for one professional.
	SetMonthlyHours(ctx context.Context, id uuid.UUID, hours float64) error
}
