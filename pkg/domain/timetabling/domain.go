// Package timetabling declares the school timetabling problem: which timeslot
// and room each lesson gets, given teachers and student groups.
package timetabling

import (
	"fmt"
	"strings"
	"time"
)

// Clock is a time of day in minutes after midnight.
type Clock int

// At returns the clock time hour:minute.
func At(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

// ParseClock parses HH:MM or HH:MM:SS. Seconds are dropped.
func ParseClock(s string) (Clock, error) {
	layout := "15:04"
	if strings.Count(s, ":") == 2 {
		layout = time.TimeOnly
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return At(t.Hour(), t.Minute()), nil
}

// String renders the clock as HH:MM.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// MarshalText implements encoding.TextMarshaler.
func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Clock) UnmarshalText(b []byte) error {
	parsed, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseWeekday accepts English day names in any case, e.g. MONDAY or Monday.
func ParseWeekday(s string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), s) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("invalid day of week %q", s)
}

// Timeslot is a problem fact.
type Timeslot struct {
	ID        string
	DayOfWeek time.Weekday
	Start     Clock
	End       Clock
}

// FactID implements engine.Fact.
func (t *Timeslot) FactID() string { return t.ID }

func (t *Timeslot) String() string {
	return fmt.Sprintf("%s %s-%s", strings.ToUpper(t.DayOfWeek.String()), t.Start, t.End)
}

// Room is a problem fact.
type Room struct {
	ID   string
	Name string
}

// FactID implements engine.Fact.
func (r *Room) FactID() string { return r.ID }

// Lesson is the planning entity. Timeslot and Room are its planning variables.
type Lesson struct {
	ID           string
	Subject      string
	Teacher      string
	StudentGroup string
	Timeslot     *Timeslot
	Room         *Room
}

// FactID implements engine.Fact.
func (l *Lesson) FactID() string { return l.ID }

// Scheduled reports whether the lesson has both a timeslot and a room.
func (l *Lesson) Scheduled() bool {
	return l.Timeslot != nil && l.Room != nil
}
