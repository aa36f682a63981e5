// Package timeslot provides value types for calendar dates, clock times and
// booked intervals. Times are whole minutes since midnight, local to the
// deployment's timezone; no DST or zone conversion is performed.
package timeslot

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"

	// DefaultDurationMin is the appointment duration applied when none is given.
	DefaultDurationMin = 30

	minutesPerDay = 24 * 60
)

// Date is a calendar date in ISO YYYY-MM-DD form. The string form sorts
// chronologically, so Date values compare correctly with < and >.
type Date string

// ParseDate validates s as an ISO calendar date.
func ParseDate(s string) (Date, error) {
	if _, err := time.Parse(dateLayout, s); err != nil {
		return "", fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date(s), nil
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) Date {
	return Date(t.Format(dateLayout))
}

// Today returns the current calendar date.
func Today() Date {
	return DateOf(time.Now())
}

// Time returns midnight of the date in the local timezone. Invalid dates
// yield the zero time.
func (d Date) Time() time.Time {
	t, _ := time.ParseInLocation(dateLayout, string(d), time.Local)
	return t
}

// AddDays returns the date n days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool { return d == "" }

func (d Date) String() string { return string(d) }

// UnmarshalJSON accepts an ISO date string. The empty string is allowed and
// yields the zero Date so callers can report the field as missing.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = ""
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ClockTime is a time of day expressed as whole minutes since midnight.
type ClockTime int

// ParseClock parses a 24-hour HH:MM string. Both fields must be zero-padded;
// time.Parse alone would accept "9:3".
func ParseClock(s string) (ClockTime, error) {
	if len(s) != len(clockLayout) {
		return 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return ClockTime(t.Hour()*60 + t.Minute()), nil
}

// Valid reports whether t falls within a single day.
func (t ClockTime) Valid() bool {
	return t >= 0 && t < minutesPerDay
}

// Add returns the clock time min minutes later. The result may exceed the
// day boundary; interval math relies on that for end times at 24:00.
func (t ClockTime) Add(min int) ClockTime {
	return t + ClockTime(min)
}

func (t ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// MarshalJSON renders the clock time as an HH:MM string.
func (t ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts an HH:MM string.
func (t *ClockTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Interval is a booked time range on a single date: a start time plus a
// duration in minutes. The end time is always derived, never stored.
type Interval struct {
	Start       ClockTime
	DurationMin int
}

// NewInterval builds an interval, substituting the default duration when
// durationMin is not positive.
func NewInterval(start ClockTime, durationMin int) Interval {
	if durationMin <= 0 {
		durationMin = DefaultDurationMin
	}
	return Interval{Start: start, DurationMin: durationMin}
}

// End returns the derived end time (start + duration).
func (iv Interval) End() ClockTime {
	return iv.Start.Add(iv.DurationMin)
}

// Overlaps reports whether two intervals on the same date intersect under
// half-open [start, end) semantics: an interval ending at 10:00 does not
// conflict with one starting at 10:00.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start < other.End() && other.Start < iv.End()
}
