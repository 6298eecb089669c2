package timetabling

import (
	"time"

	"github.com/openfroyo/scorekeeper/pkg/engine"
)

// Problem is the schema and registry name of the problem.
const Problem = "school-timetabling"

// MaxGapMinutes is the longest break after which two lessons still count as
// back to back.
const MaxGapMinutes = 30

// Constraint names.
const (
	RoomConflictName               = "Room conflict"
	TeacherConflictName            = "Teacher conflict"
	StudentGroupConflictName       = "Student group conflict"
	TeacherRoomStabilityName       = "Teacher room stability"
	TeacherTimeEfficiencyName      = "Teacher time efficiency"
	StudentGroupSubjectVarietyName = "Student group subject variety"
)

// Schema declares the fact types of the problem.
func Schema() *engine.Schema {
	s := engine.NewSchema(Problem)

	timeslot := engine.DefineType[*Timeslot](s, "Timeslot")
	engine.Key(timeslot, "dayOfWeek", func(t *Timeslot) time.Weekday { return t.DayOfWeek })
	engine.Ordered(timeslot, "start", func(t *Timeslot) Clock { return t.Start })
	engine.Ordered(timeslot, "end", func(t *Timeslot) Clock { return t.End })

	room := engine.DefineType[*Room](s, "Room")
	engine.Key(room, "name", func(r *Room) string { return r.Name })

	lesson := engine.DefineType[*Lesson](s, "Lesson").Initialized((*Lesson).Scheduled)
	engine.Key(lesson, "subject", func(l *Lesson) string { return l.Subject })
	engine.Key(lesson, "teacher", func(l *Lesson) string { return l.Teacher })
	engine.Key(lesson, "studentGroup", func(l *Lesson) string { return l.StudentGroup })
	engine.Key(lesson, "timeslot", func(l *Lesson) string { return l.Timeslot.ID })
	engine.Key(lesson, "room", func(l *Lesson) string { return l.Room.ID })
	engine.Key(lesson, "dayOfWeek", func(l *Lesson) time.Weekday { return l.Timeslot.DayOfWeek })
	engine.Ordered(lesson, "start", func(l *Lesson) Clock { return l.Timeslot.Start })
	engine.Ordered(lesson, "end", func(l *Lesson) Clock { return l.Timeslot.End })

	return s
}

// Constraints returns every constraint of the problem.
func Constraints() []engine.Definition {
	return []engine.Definition{
		RoomConflict,
		TeacherConflict,
		StudentGroupConflict,
		TeacherRoomStability,
		TeacherTimeEfficiency,
		StudentGroupSubjectVariety,
	}
}

// RoomConflict: a room holds at most one lesson at a time.
func RoomConflict(f *engine.ConstraintFactory) *engine.Constraint {
	return f.ForEachUniquePair("Lesson",
		engine.Equal("timeslot"),
		engine.Equal("room")).
		DependsOn("Timeslot", "Room").
		Penalize(RoomConflictName, engine.OneHard)
}

// TeacherConflict: a teacher teaches at most one lesson at a time.
func TeacherConflict(f *engine.ConstraintFactory) *engine.Constraint {
	return f.ForEachUniquePair("Lesson",
		engine.Equal("timeslot"),
		engine.Equal("teacher")).
		DependsOn("Timeslot").
		Penalize(TeacherConflictName, engine.OneHard)
}

// StudentGroupConflict: a student group attends at most one lesson at a time.
func StudentGroupConflict(f *engine.ConstraintFactory) *engine.Constraint {
	return f.ForEachUniquePair("Lesson",
		engine.Equal("timeslot"),
		engine.Equal("studentGroup")).
		DependsOn("Timeslot").
		Penalize(StudentGroupConflictName, engine.OneHard)
}

// TeacherRoomStability penalizes each pair of a teacher's lessons held in
// different rooms.
func TeacherRoomStability(f *engine.ConstraintFactory) *engine.Constraint {
	return f.ForEachUniquePair("Lesson", engine.Equal("teacher")).
		DependsOn("Room").
		Filter(engine.Filter2(func(a, b *Lesson) bool {
			return a.Room.ID != b.Room.ID
		})).
		Penalize(TeacherRoomStabilityName, engine.OneSoft)
}

// TeacherTimeEfficiency rewards a teacher's lessons that directly follow
// another of their lessons on the same day.
func TeacherTimeEfficiency(f *engine.ConstraintFactory) *engine.Constraint {
	return backToBack(f, engine.Equal("teacher")).
		Reward(TeacherTimeEfficiencyName, engine.OneSoft)
}

// StudentGroupSubjectVariety penalizes a student group taking the same
// subject twice in a row.
func StudentGroupSubjectVariety(f *engine.ConstraintFactory) *engine.Constraint {
	return backToBack(f, engine.Equal("subject"), engine.Equal("studentGroup")).
		Penalize(StudentGroupSubjectVarietyName, engine.OneSoft)
}

// backToBack pairs a lesson with a later lesson on the same day that starts at
// most MaxGapMinutes after the first one ends.
func backToBack(f *engine.ConstraintFactory, joiners ...engine.Joiner) *engine.Stream {
	joiners = append(joiners,
		engine.Equal("dayOfWeek"),
		engine.LessOrEqual("end").WithRight("start"))
	return f.ForEach("Lesson").
		Join("Lesson", joiners...).
		DependsOn("Timeslot").
		Filter(engine.Filter2(func(first, second *Lesson) bool {
			return gapMinutes(first, second) <= MaxGapMinutes
		}))
}

func gapMinutes(first, second *Lesson) int {
	return int(second.Timeslot.Start - first.Timeslot.End)
}
