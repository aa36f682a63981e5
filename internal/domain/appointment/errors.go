package appointment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/citamed/citamed/pkg/timeslot"
)

// ErrNotFound is returned when the referenced appointment does not exist.
var ErrNotFound = errors.New("appointment not found")

// ValidationError reports the required fields missing from a request. It
// names every missing field at once rather than failing on the first.
// InvalidFields carries fields that were present but unusable, such as an
// unknown status value.
type ValidationError struct {
	MissingFields []string
	InvalidFields []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.MissingFields) > 0 {
		parts = append(parts, fmt.Sprintf("missing required fields: %s", strings.Join(e.MissingFields, ", ")))
	}
	if len(e.InvalidFields) > 0 {
		parts = append(parts, fmt.Sprintf("invalid fields: %s", strings.Join(e.InvalidFields, ", ")))
	}
	return strings.Join(parts, "; ")
}

// ConflictError reports an attempted double booking. It carries the slot of
// the existing appointment so clients can show what is in the way.
type ConflictError struct {
	ConflictingID uuid.UUID
	DoctorID      uuid.UUID
	Date          timeslot.Date
	Time          timeslot.ClockTime
	DurationMin   int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("slot conflicts with appointment %s on %s at %s (%d min)",
		e.ConflictingID, e.Date, e.Time, e.DurationMin)
}

func conflictWith(existing *Appointment) *ConflictError {
	return &ConflictError{
		ConflictingID: existing.ID,
		DoctorID:      existing.DoctorID,
		Date:          existing.Date,
		Time:          existing.Time,
		DurationMin:   existing.DurationMin,
	}
}
