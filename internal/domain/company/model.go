// Package company is the tenant directory. It changes rarely and is served
// through the long-lived cache tiers.
package company

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when the referenced company does not exist.
var ErrNotFound = errors.New("company not found")

// Company is a tenant. Appointments and professionals reference it by id
// only; nothing cascades on changes here.
type Company struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
