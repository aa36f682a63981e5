// Package appointment implements the scheduling core: the appointment record,
// its persistence, and the create/update/move/delete operations with
// double-booking protection.
package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/citamed/citamed/pkg/timeslot"
)

// Status is the appointment lifecycle state. The set is closed; any status
// may follow any other, callers drive the transitions.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Blocking reports whether an appointment in this status occupies its slot
// for overlap purposes. Cancelled appointments free their slot.
func (s Status) Blocking() bool {
	return s != StatusCancelled
}

// DefaultType is the visit type assigned when the caller does not specify one.
const DefaultType = "Consulta"

// Appointment is a booked slot on a professional's calendar.
type Appointment struct {
	ID           uuid.UUID          `json:"id"`
	Date         timeslot.Date      `json:"date"`
	Time         timeslot.ClockTime `json:"time"`
	DurationMin  int                `json:"duration"`
	PatientName  string             `json:"patientName"`
	PatientEmail string             `json:"patientEmail"`
	PatientPhone string             `json:"patientPhone,omitempty"`
	DoctorID     uuid.UUID          `json:"doctorId"`
	DoctorName   string             `json:"doctorName"`
	Specialty    string             `json:"specialty"`
	Type         string             `json:"type"`
	Status       Status             `json:"status"`
	CompanyID    uuid.UUID          `json:"companyId,omitempty"`
	Notes        string             `json:"notes,omitempty"`
	Location     string             `json:"location,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

// Interval returns the appointment's slot as a half-open interval.
func (a *Appointment) Interval() timeslot.Interval {
	return timeslot.Interval{Start: a.Time, DurationMin: a.DurationMin}
}

// OverlapsWith reports whether the two appointments contend for the same
// professional's time. Cancelled appointments never contend.
func (a *Appointment) OverlapsWith(b *Appointment) bool {
	if a.DoctorID != b.DoctorID || a.Date != b.Date {
		return false
	}
	if !a.Status.Blocking() || !b.Status.Blocking() {
		return false
	}
	return a.Interval().Overlaps(b.Interval())
}

// Patch carries a partial update. Nil fields are left unchanged.
type Patch struct {
	Date         *timeslot.Date      `json:"date"`
	Time         *timeslot.ClockTime `json:"time"`
	DurationMin  *int                `json:"duration"`
	PatientName  *string             `json:"patientName"`
	PatientEmail *string             `json:"patientEmail"`
	PatientPhone *string             `json:"patientPhone"`
	DoctorID     *uuid.UUID          `json:"doctorId"`
	DoctorName   *string             `json:"doctorName"`
	Specialty    *string             `json:"specialty"`
	Type         *string             `json:"type"`
	Status       *Status             `json:"status"`
	Notes        *string             `json:"notes"`
	Location     *string             `json:"location"`
}

// Apply copies the patch's non-nil fields onto the appointment.
func (p Patch) Apply(a *Appointment) {
	if p.Date != nil {
		a.Date = *p.Date
	}
	if p.Time != nil {
		a.Time = *p.Time
	}
	if p.DurationMin != nil {
		a.DurationMin = *p.DurationMin
	}
	if p.PatientName != nil {
		a.PatientName = *p.PatientName
	}
	if p.PatientEmail != nil {
		a.PatientEmail = *p.PatientEmail
	}
	if p.PatientPhone != nil {
		a.PatientPhone = *p.PatientPhone
	}
	if p.DoctorID != nil {
		a.DoctorID = *p.DoctorID
	}
	if p.DoctorName != nil {
		a.DoctorName = *p.DoctorName
	}
	if p.Specialty != nil {
		a.Specialty = *p.Specialty
	}
	if p.Type != nil {
		a.Type = *p.Type
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.Notes != nil {
		a.Notes = *p.Notes
	}
	if p.Location != nil {
		a.Location = *p.Location
	}
}

// Reschedules reports whether the patch touches the slot coordinates that
// require a fresh overlap check.
func (p Patch) Reschedules() bool {
	return p.Date != nil || p.Time != nil || p.DurationMin != nil || p.DoctorID != nil
}
