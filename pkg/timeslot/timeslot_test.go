package timeslot

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-01-15")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != "2024-01-15" {
		t.Errorf("expected 2024-01-15, got %s", d)
	}
}

func TestParseDate_Invalid(t *testing.T) {
	cases := []string{"", "15-01-2024", "2024-13-01", "2024-01-32", "not a date"}
	for _, c := range cases {
		if _, err := ParseDate(c); err == nil {
			t.Errorf("expected error for %q", c)
		}
	}
}

func TestDate_Ordering(t *testing.T) {
	a := Date("2024-01-15")
	b := Date("2024-02-01")
	if !(a < b) {
		t.Error("ISO dates must sort chronologically as strings")
	}
}

func TestDate_AddDays(t *testing.T) {
	d := Date("2024-02-28")
	if got := d.AddDays(1); got != "2024-02-29" {
		t.Errorf("2024 is a leap year, expected 2024-02-29, got %s", got)
	}
	if got := d.AddDays(-28); got != "2024-01-31" {
		t.Errorf("expected 2024-01-31, got %s", got)
	}
}

func TestDateOf(t *testing.T) {
	ts := time.Date(2024, 1, 15, 23, 45, 0, 0, time.Local)
	if got := DateOf(ts); got != "2024-01-15" {
		t.Errorf("expected 2024-01-15, got %s", got)
	}
}

func TestParseClock(t *testing.T) {
	cases := map[string]ClockTime{
		"00:00": 0,
		"09:30": 9*60 + 30,
		"23:59": 23*60 + 59,
	}
	for in, want := range cases {
		got, err := ParseClock(in)
		if err != nil {
			t.Fatalf("ParseClock(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseClock(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestParseClock_Invalid(t *testing.T) {
	for _, c := range []string{"", "24:00", "9:3", "09-30", "09:60"} {
		if _, err := ParseClock(c); err == nil {
			t.Errorf("expected error for %q", c)
		}
	}
}

func TestClockTime_String(t *testing.T) {
	if got := ClockTime(9*60 + 5).String(); got != "09:05" {
		t.Errorf("expected 09:05, got %s", got)
	}
}

func TestClockTime_JSONRoundTrip(t *testing.T) {
	in := ClockTime(14 * 60)
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"14:00"` {
		t.Errorf(`expected "14:00", got %s`, data)
	}
	var out ClockTime
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out != in {
		t.Errorf("round trip changed value: %d != %d", out, in)
	}
}

func TestDate_UnmarshalJSON(t *testing.T) {
	var d Date
	if err := json.Unmarshal([]byte(`"2025-06-15"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d != "2025-06-15" {
		t.Errorf("expected 2025-06-15, got %s", d)
	}

	// Empty strings decode to the zero Date so missing-field validation can
	// report them instead of a bind failure.
	d = "2025-06-15"
	if err := json.Unmarshal([]byte(`""`), &d); err != nil {
		t.Fatalf("empty string must decode cleanly: %v", err)
	}
	if d != "" {
		t.Errorf("expected zero Date, got %s", d)
	}

	if err := json.Unmarshal([]byte(`"15/06/2025"`), &d); err == nil {
		t.Error("expected error for non-ISO date")
	}
}

func TestNewInterval_DefaultDuration(t *testing.T) {
	iv := NewInterval(9*60, 0)
	if iv.DurationMin != DefaultDurationMin {
		t.Errorf("expected default duration %d, got %d", DefaultDurationMin, iv.DurationMin)
	}
}

func TestInterval_End(t *testing.T) {
	iv := NewInterval(9*60, 45)
	if iv.End() != 9*60+45 {
		t.Errorf("expected 09:45, got %s", iv.End())
	}
}

func TestInterval_Overlaps(t *testing.T) {
	at := func(hhmm string) ClockTime {
		c, err := ParseClock(hhmm)
		if err != nil {
			t.Fatalf("bad fixture time %q: %v", hhmm, err)
		}
		return c
	}

	tests := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"identical", NewInterval(at("09:00"), 30), NewInterval(at("09:00"), 30), true},
		{"b starts inside a", NewInterval(at("09:00"), 30), NewInterval(at("09:15"), 30), true},
		{"a starts inside b", NewInterval(at("09:15"), 30), NewInterval(at("09:00"), 30), true},
		{"b contained in a", NewInterval(at("09:00"), 60), NewInterval(at("09:15"), 15), true},
		{"touching, a before b", NewInterval(at("09:00"), 30), NewInterval(at("09:30"), 30), false},
		{"touching, b before a", NewInterval(at("09:30"), 30), NewInterval(at("09:00"), 30), false},
		{"disjoint", NewInterval(at("09:00"), 30), NewInterval(at("11:00"), 30), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Errorf("Overlaps = %v, want %v", got, tt.want)
			}
			// Overlap is symmetric.
			if got := tt.b.Overlaps(tt.a); got != tt.want {
				t.Errorf("reverse Overlaps = %v, want %v", got, tt.want)
			}
		})
	}
}
