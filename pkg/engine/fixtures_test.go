package engine

import (
	"errors"
	"fmt"
)

// Minimal fact types shared by the engine tests.

type testWorker struct {
	Name  string
	Hours int64
}

func (w *testWorker) FactID() string { return w.Name }

type testShift struct {
	ID     string
	Worker string
	Start  int64
	End    int64
	Demand int64
}

func (s *testShift) FactID() string { return s.ID }

type testSkill struct {
	ID     string
	Worker string
	Name   string
}

func (s *testSkill) FactID() string { return s.ID }

// testBadge reaches its worker through a pointer instead of a join.
type testBadge struct {
	ID     string
	Holder *testWorker
}

func (b *testBadge) FactID() string { return b.ID }

// stranger is never declared in the test schema.
type stranger struct{ ID string }

func (s *stranger) FactID() string { return s.ID }

func testSchema() *Schema {
	schema := NewSchema("test")

	worker := DefineType[*testWorker](schema, "Worker")
	Key(worker, "name", func(w *testWorker) string { return w.Name })

	shift := DefineType[*testShift](schema, "Shift").
		Initialized(func(s *testShift) bool { return s.Worker != "" })
	Key(shift, "worker", func(s *testShift) string { return s.Worker })
	Ordered(shift, "start", func(s *testShift) int64 { return s.Start })
	Ordered(shift, "end", func(s *testShift) int64 { return s.End })
	Ordered(shift, "demand", func(s *testShift) int64 { return s.Demand })

	skill := DefineType[*testSkill](schema, "Skill")
	Key(skill, "worker", func(s *testSkill) string { return s.Worker })

	DefineType[*testBadge](schema, "Badge")

	return schema
}

func shiftAt(id, worker string, start, end int64) *testShift {
	return &testShift{ID: id, Worker: worker, Start: start, End: end}
}

func overlapMinutes(a, b *testShift) int64 {
	start := max(a.Start, b.Start)
	end := min(a.End, b.End)
	if end <= start {
		return 0
	}
	return (end - start) / 60
}

func overlappingShifts(f *ConstraintFactory) *Constraint {
	return f.ForEachUniquePair("Shift",
		Equal("worker"),
		Overlapping("start", "end")).
		PenalizeBy("Overlapping shifts", OneHard, Magnitude2(overlapMinutes))
}

func overlappingShiftsReward(f *ConstraintFactory) *Constraint {
	return f.ForEachUniquePair("Shift",
		Equal("worker"),
		Overlapping("start", "end")).
		RewardBy("Overlapping shifts", OneHard, Magnitude2(overlapMinutes))
}

func shiftCount(f *ConstraintFactory) *Constraint {
	return f.ForEach("Shift").Reward("Shift count", SoftWeight(2))
}

func failingFilter(f *ConstraintFactory) *Constraint {
	return f.ForEach("Shift").
		Filter(TuplePredicate(1, func(t Tuple) (bool, error) {
			if t[0].FactID() == "bad" {
				return false, errors.New("boom")
			}
			return true, nil
		})).
		Penalize("Failing filter", OneSoft)
}

func panickingMagnitude(f *ConstraintFactory) *Constraint {
	return f.ForEach("Shift").
		PenalizeBy("Panicking magnitude", OneSoft, Magnitude1(func(s *testShift) int64 {
			if s.ID == "bad" {
				panic(fmt.Sprintf("cannot weigh %s", s.ID))
			}
			return 1
		}))
}
