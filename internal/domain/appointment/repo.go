package appointment

import (
	"context"

	"github.com/google/uuid"

	"github.com/citamed/citamed/pkg/timeslot"
)

// Filter narrows a query. Nil fields match everything. DateFrom and DateTo
// are inclusive bounds.
type Filter struct {
	Date      *timeslot.Date
	DateFrom  *timeslot.Date
	DateTo    *timeslot.Date
	DoctorID  *uuid.UUID
	CompanyID *uuid.UUID
	Status    *Status
}

// Repository is the persistence boundary for appointments.
type Repository interface {
	Insert(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// Update replaces the stored row. Returns ErrNotFound if id is unknown.
	Update(ctx context.Context, a *Appointment) error
	// Delete removes the row. Returns ErrNotFound if id is unknown.
	Delete(ctx context.Context, id uuid.UUID) error

	// FindByDate returns the appointments on a calendar day ordered by start
	// time ascending. companyID, when non-nil, restricts to one company.
	FindByDate(ctx context.Context, date timeslot.Date, companyID *uuid.UUID) ([]*Appointment, error)
	// FindByProfessional returns a professional's appointments in the
	// inclusive date range, ordered by date then start time ascending.
	FindByProfessional(ctx context.Context, doctorID uuid.UUID, from, to timeslot.Date) ([]*Appointment, error)
	// FindByFilter pages through matching appointments, most recent slots
	// first, and returns the total match count alongside the page.
	FindByFilter(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error)
	// FindRecent returns the n most recently created matching appointments.
	FindRecent(ctx context.Context, f Filter, n int) ([]*Appointment, error)
	CountByFilter(ctx context.Context, f Filter) (int, error)
}
