package company

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the persistence boundary for the tenant directory.
type Repository interface {
	Insert(ctx context.Context, c *Company) error
	GetByID(ctx context.Context, id uuid.UUID) (*Company, error)
	Update(ctx context.Context, c *Company) error
	// List returns the whole directory ordered by name. The directory is
	// small; no pagination.
	List(ctx context.Context) ([]*Company, error)
}
