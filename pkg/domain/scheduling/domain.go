// Package scheduling declares the employee shift scheduling problem: which
// employee works which shift, given skills and availability.
package scheduling

import (
	"fmt"
	"slices"
	"time"
)

// AvailabilityType is an employee's stance on working a given day.
type AvailabilityType string

const (
	Desired     AvailabilityType = "DESIRED"
	Undesired   AvailabilityType = "UNDESIRED"
	Unavailable AvailabilityType = "UNAVAILABLE"
)

// Employee is a problem fact.
type Employee struct {
	Name   string
	Skills []string
}

// FactID implements engine.Fact.
func (e *Employee) FactID() string { return e.Name }

// HasSkill reports whether the employee has the named skill.
func (e *Employee) HasSkill(skill string) bool {
	return slices.Contains(e.Skills, skill)
}

// Shift is the planning entity; Employee is its planning variable and stays
// nil until assigned.
type Shift struct {
	ID            string
	Start         time.Time
	End           time.Time
	Location      string
	RequiredSkill string
	Employee      *Employee
}

// FactID implements engine.Fact.
func (s *Shift) FactID() string { return s.ID }

// DurationMinutes returns the shift length in whole minutes.
func (s *Shift) DurationMinutes() int64 {
	return minutes(s.End.Sub(s.Start))
}

// Assigned reports whether an employee works the shift.
func (s *Shift) Assigned() bool { return s.Employee != nil }

// employeeName returns the assigned employee, or "" when unassigned.
func (s *Shift) employeeName() string {
	if s.Employee == nil {
		return ""
	}
	return s.Employee.Name
}

// Availability records an employee's preference for one date.
type Availability struct {
	ID       string
	Employee *Employee
	Date     Date
	Type     AvailabilityType
}

// FactID implements engine.Fact. Availabilities without an explicit ID are
// identified by employee, date and type.
func (a *Availability) FactID() string {
	if a.ID != "" {
		return a.ID
	}
	return fmt.Sprintf("%s/%s/%s", a.employeeName(), a.Date, a.Type)
}

func (a *Availability) employeeName() string {
	if a.Employee == nil {
		return ""
	}
	return a.Employee.Name
}

// Date is a calendar day without a time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// String renders the date as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// minutes converts a duration to whole minutes, truncating toward zero.
func minutes(d time.Duration) int64 {
	return int64(d / time.Minute)
}
