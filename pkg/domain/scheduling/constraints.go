package scheduling

import (
	"time"

	"github.com/openfroyo/scorekeeper/pkg/engine"
)

// Problem is the schema and registry name of the problem.
const Problem = "employee-scheduling"

// MinimumRestMinutes is the rest an employee is owed between two shifts.
const MinimumRestMinutes = 600

// Constraint names.
const (
	RequiredSkillName           = "Missing required skill"
	NoOverlappingShiftsName     = "Overlapping shift"
	MinimumRestName             = "At least 10 hours between 2 shifts"
	OneShiftPerDayName          = "Max one shift per day"
	UnavailableEmployeeName     = "Unavailable employee"
	UndesiredDayForEmployeeName = "Undesired day for employee"
	DesiredDayForEmployeeName   = "Desired day for employee"
)

// Schema declares the fact types of the problem.
func Schema() *engine.Schema {
	s := engine.NewSchema(Problem)

	employee := engine.DefineType[*Employee](s, "Employee")
	engine.Key(employee, "name", func(e *Employee) string { return e.Name })

	shift := engine.DefineType[*Shift](s, "Shift").Initialized((*Shift).Assigned)
	engine.Key(shift, "employee", (*Shift).employeeName)
	engine.Instant(shift, "start", func(sh *Shift) time.Time { return sh.Start })
	engine.Instant(shift, "end", func(sh *Shift) time.Time { return sh.End })
	engine.Key(shift, "startDate", func(sh *Shift) Date { return DateOf(sh.Start) })
	engine.Key(shift, "location", func(sh *Shift) string { return sh.Location })
	engine.Key(shift, "requiredSkill", func(sh *Shift) string { return sh.RequiredSkill })

	availability := engine.DefineType[*Availability](s, "Availability")
	engine.Key(availability, "employee", (*Availability).employeeName)
	engine.Key(availability, "date", func(a *Availability) Date { return a.Date })
	engine.Key(availability, "type", func(a *Availability) string { return string(a.Type) })

	return s
}

// Constraints returns every constraint of the problem.
func Constraints() []engine.Definition {
	return []engine.Definition{
		RequiredSkill,
		NoOverlappingShifts,
		AtLeast10HoursBetweenTwoShifts,
		OneShiftPerDay,
		UnavailableEmployee,
		UndesiredDayForEmployee,
		DesiredDayForEmployee,
	}
}

// RequiredSkill penalizes every shift worked by an employee lacking its skill.
func RequiredSkill(f *engine.ConstraintFactory) *engine.Constraint {
	return f.ForEach("Shift").
		DependsOn("Employee").
		Filter(engine.Filter1(func(s *Shift) bool {
			return !s.Employee.HasSkill(s.RequiredSkill)
		})).
		Penalize(RequiredSkillName, engine.OneHard)
}

// NoOverlappingShifts penalizes every minute two shifts of one employee overlap.
func NoOverlappingShifts(f *engine.ConstraintFactory) *engine.Constraint {
	return f.ForEachUniquePair("Shift",
		engine.Equal("employee"),
		engine.Overlapping("start", "end")).
		DependsOn("Employee").
		PenalizeBy(NoOverlappingShiftsName, engine.OneHard, engine.Magnitude2(overlappingMinutes))
}

// AtLeast10HoursBetweenTwoShifts penalizes the rest an employee is short of
// between the end of one shift and the start of a later one.
func AtLeast10HoursBetweenTwoShifts(f *engine.ConstraintFactory) *engine.Constraint {
	return f.ForEach("Shift").
		Join("Shift",
			engine.Equal("employee"),
			engine.LessOrEqual("end").WithRight("start")).
		DependsOn("Employee").
		Filter(engine.Filter2(func(first, second *Shift) bool {
			return restMinutes(first, second) < MinimumRestMinutes
		})).
		PenalizeBy(MinimumRestName, engine.OneHard, engine.Magnitude2(func(first, second *Shift) int64 {
			return MinimumRestMinutes - restMinutes(first, second)
		}))
}

// OneShiftPerDay penalizes each pair of shifts one employee starts on the same day.
func OneShiftPerDay(f *engine.ConstraintFactory) *engine.Constraint {
	return f.ForEachUniquePair("Shift",
		engine.Equal("employee"),
		engine.Equal("startDate")).
		DependsOn("Employee").
		Penalize(OneShiftPerDayName, engine.OneHard)
}

// UnavailableEmployee penalizes the minutes of shifts worked on a day the
// employee is unavailable.
func UnavailableEmployee(f *engine.ConstraintFactory) *engine.Constraint {
	return availabilityOf(f, Unavailable).
		PenalizeBy(UnavailableEmployeeName, engine.OneHard, engine.Magnitude2(shiftMinutes))
}

// UndesiredDayForEmployee penalizes the minutes of shifts worked on an undesired day.
func UndesiredDayForEmployee(f *engine.ConstraintFactory) *engine.Constraint {
	return availabilityOf(f, Undesired).
		PenalizeBy(UndesiredDayForEmployeeName, engine.OneSoft, engine.Magnitude2(shiftMinutes))
}

// DesiredDayForEmployee rewards the minutes of shifts worked on a desired day.
func DesiredDayForEmployee(f *engine.ConstraintFactory) *engine.Constraint {
	return availabilityOf(f, Desired).
		RewardBy(DesiredDayForEmployeeName, engine.OneSoft, engine.Magnitude2(shiftMinutes))
}

// availabilityOf pairs availabilities of one type with the shifts the same
// employee starts on that date.
func availabilityOf(f *engine.ConstraintFactory, t AvailabilityType) *engine.Stream {
	return f.ForEach("Availability").
		Filter(engine.Filter1(func(a *Availability) bool { return a.Type == t })).
		Join("Shift",
			engine.Equal("employee"),
			engine.EqualTo("date", "startDate")).
		DependsOn("Employee")
}

func shiftMinutes(_ *Availability, s *Shift) int64 {
	return s.DurationMinutes()
}

func overlappingMinutes(a, b *Shift) int64 {
	start := a.Start
	if b.Start.After(start) {
		start = b.Start
	}
	end := a.End
	if b.End.Before(end) {
		end = b.End
	}
	if !end.After(start) {
		return 0
	}
	return minutes(end.Sub(start))
}

func restMinutes(first, second *Shift) int64 {
	return minutes(second.Start.Sub(first.End))
}
