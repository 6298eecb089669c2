// Package engine provides the constraint evaluation engine used to score
// planning problems.
//
// # Overview
//
// A problem declares its fact types in a Schema and its business rules as
// constraints. A constraint is an explicit pipeline:
//
//  1. Select - every initialized fact of one type (ForEach)
//  2. Join - extend tuples with facts satisfying join conditions (Join)
//  3. Filter - drop tuples failing an arbitrary predicate (Filter)
//  4. Score - weigh each surviving tuple at a hard or soft level (Penalize, Reward)
//
// Constraints are independent and side-effect free; their contributions are
// summed into a layered Score in which the hard total dominates the soft total.
//
// # Declaring Facts
//
// Fact types are registered by their Go type. Attributes used in join
// conditions are declared with Key (equality), Ordered (equality and ranges)
// or Instant (timestamps, normalised to Unix seconds):
//
//	schema := engine.NewSchema("timetabling")
//	lesson := engine.DefineType[*Lesson](schema, "Lesson").
//	    Initialized(func(l *Lesson) bool { return l.Timeslot != nil })
//	engine.Key(lesson, "timeslot", func(l *Lesson) string { return l.Timeslot.ID })
//
// Every fact type carries the "id" attribute derived from FactID.
//
// # Declaring Constraints
//
//	func RoomConflict(f *engine.ConstraintFactory) *engine.Constraint {
//	    return f.ForEachUniquePair("Lesson",
//	        engine.Equal("timeslot"),
//	        engine.Equal("room")).
//	        Penalize("Room conflict", engine.OneHard)
//	}
//
// Join conditions are served from indexes: equality joiners form a hash key
// and the first range joiner is answered by binary search over a sorted
// bucket, so join cost scales with bucket size rather than the cross product.
// A fact is never joined with itself; LessThan("id") on a self-join yields each
// unordered pair once.
//
// # Registration
//
// NewConstraintSet declares every Definition and reports all malformed
// declarations (unknown types or attributes, mismatched attribute types,
// filters of the wrong shape, negative weights, duplicate names) as a single
// configuration error before any scoring happens.
//
// # Scoring
//
// A Session owns a FactStore. Facts are immutable snapshots: replace them with
// Update rather than mutating them in place. CalculateScore evaluates the
// enabled constraints on a pool of workers, each constraint's total isolated
// until the final merge. Constraints whose source types did not change since
// the previous pass reuse their cached totals.
//
// A filter or magnitude function that fails or panics aborts only its own
// constraint; the pass still returns the score of the others together with an
// evaluation error naming the constraint and the offending tuple.
//
// # Verification
//
// The Verifier runs a single constraint over a literal fixture:
//
//	err := engine.NewVerifier(schema).
//	    VerifyThat(RoomConflict).
//	    Given(lesson1, lesson2, lesson3).
//	    Penalizes(1)
//
// Each call builds a fresh store from the fixture only. Facts of a type that
// is not part of the schema fail the verification.
//
// # Error Classification
//
//   - Configuration: malformed schema or constraint declarations
//   - Evaluation: a filter or magnitude function failed during a pass
//   - Verification: an unusable fixture or a failed assertion
//   - State: an invalid fact store mutation
package engine
