// Package professional manages the provider roster: onboarding with
// generated credentials, deactivation, and the monthly workload rollup.
package professional

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is the roster state. Deactivation is the normal removal path; hard
// deletes are reserved for admins.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// DefaultWeeklyHours is assigned when onboarding omits the weekly workload.
const DefaultWeeklyHours = 40

// ErrNotFound is returned when the referenced professional does not exist.
var ErrNotFound = errors.New("professional not found")

// ErrEmailTaken is returned when onboarding reuses an existing email.
var ErrEmailTaken = errors.New("email already registered")

// Professional is a provider on a company's roster. PasswordHash is never
// serialized; the plaintext is returned once, at onboarding.
type Professional struct {
	ID                  uuid.UUID `json:"id"`
	Name                string    `json:"name"`
	Email               string    `json:"email"`
	Phone               string    `json:"phone,omitempty"`
	Specialty           string    `json:"specialty"`
	CompanyID           uuid.UUID `json:"companyId,omitempty"`
	WeeklyHours         int       `json:"weeklyHours"`
	Status              Status    `json:"status"`
	Rating              float64   `json:"rating"`
	TotalHoursThisMonth float64   `json:"totalHoursThisMonth"`
	Username            string    `json:"username"`
	PasswordHash        string    `json:"-"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// Active reports whether the professional can take bookings.
func (p *Professional) Active() bool { return p.Status == StatusActive }
