package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrationRejectsMalformedDeclarations(t *testing.T) {
	tests := []struct {
		name string
		def  Definition
		code string
	}{
		{
			name: "unknown source type",
			def: func(f *ConstraintFactory) *Constraint {
				return f.ForEach("Lesson").Penalize("c", OneHard)
			},
			code: ErrCodeUnknownType,
		},
		{
			name: "unknown join type",
			def: func(f *ConstraintFactory) *Constraint {
				return f.ForEach("Shift").Join("Room", Equal("id")).Penalize("c", OneHard)
			},
			code: ErrCodeUnknownType,
		},
		{
			name: "unknown attribute",
			def: func(f *ConstraintFactory) *Constraint {
				return f.ForEach("Shift").Join("Shift", Equal("room")).Penalize("c", OneHard)
			},
			code: ErrCodeUnknownAttribute,
		},
		{
			name: "mismatched attribute types",
			def: func(f *ConstraintFactory) *Constraint {
				return f.ForEach("Shift").Join("Shift", EqualTo("worker", "start")).Penalize("c", OneHard)
			},
			code: ErrCodeInvalidJoin,
		},
		{
			name: "range over unordered attribute",
			def: func(f *ConstraintFactory) *Constraint {
				return f.ForEach("Shift").Join("Shift", LessThan("worker")).Penalize("c", OneHard)
			},
			code: ErrCodeInvalidJoin,
		},
		{
			name: "left position out of range",
			def: func(f *ConstraintFactory) *Constraint {
				return f.ForEach("Shift").Join("Shift", Equal("worker").OnLeft(3)).Penalize("c", OneHard)
			},
			code: ErrCodeInvalidJoin,
		},
		{
			name: "filter of wrong arity",
			def: func(f *ConstraintFactory) *Constraint {
				return f.ForEach("Shift").
					Filter(Filter2(func(a, b *testShift) bool { return true })).
					Penalize("c", OneHard)
			},
			code: ErrCodeInvalidConstraint,
		},
		{
			name: "filter of wrong type",
			def: func(f *ConstraintFactory) *Constraint {
				return f.ForEach("Shift").
					Filter(Filter1(func(w *testWorker) bool { return true })).
					Penalize("c", OneHard)
			},
			code: ErrCodeInvalidConstraint,
		},
		{
			name: "magnitude of wrong type",
			def: func(f *ConstraintFactory) *Constraint {
				return f.ForEach("Shift").
					PenalizeBy("c", OneHard, Magnitude1(func(w *testWorker) int64 { return 1 }))
			},
			code: ErrCodeInvalidConstraint,
		},
		{
			name: "negative weight",
			def: func(f *ConstraintFactory) *Constraint {
				return f.ForEach("Shift").Penalize("c", HardWeight(-1))
			},
			code: ErrCodeInvalidConstraint,
		},
		{
			name: "empty name",
			def: func(f *ConstraintFactory) *Constraint {
				return f.ForEach("Shift").Penalize(" ", OneHard)
			},
			code: ErrCodeInvalidConstraint,
		},
		{
			name: "too many facts per tuple",
			def: func(f *ConstraintFactory) *Constraint {
				return f.ForEach("Shift").Join("Shift").Join("Shift").Join("Shift").Penalize("c", OneHard)
			},
			code: ErrCodeInvalidJoin,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConstraintSet(testSchema(), []Definition{tt.def})
			require.Error(t, err)
			assert.True(t, IsConfiguration(err))
			assert.True(t, hasCode(err, tt.code), "expected code %s in %v", tt.code, err)
		})
	}
}

func TestRegistrationReportsEveryError(t *testing.T) {
	bad := func(f *ConstraintFactory) *Constraint {
		return f.ForEach("Nope").Penalize("bad", OneHard)
	}
	_, err := NewConstraintSet(testSchema(), []Definition{bad, shiftCount, shiftCount, nil})
	require.Error(t, err)
	assert.True(t, hasCode(err, ErrCodeUnknownType))
	assert.True(t, hasCode(err, ErrCodeDuplicate))
	assert.True(t, hasCode(err, ErrCodeInvalidConstraint))
}

func TestSchemaDeclarationErrors(t *testing.T) {
	schema := NewSchema("broken")
	DefineType[*testWorker](schema, "Worker")
	DefineType[*testWorker](schema, "Person")
	shift := DefineType[*testShift](schema, "Shift")
	Key(shift, "worker", func(s *testShift) string { return s.Worker })
	Key(shift, "worker", func(s *testShift) string { return s.Worker })

	_, err := NewConstraintSet(schema, []Definition{shiftCount})
	require.Error(t, err)
	assert.True(t, IsConfiguration(err))
}

func TestOverrides(t *testing.T) {
	schema := testSchema()
	set, err := NewConstraintSet(schema, []Definition{shiftCount, overlappingShifts},
		WithWeight("Shift count", 5),
		WithDisabled("Overlapping shifts"))
	require.NoError(t, err)

	require.Len(t, set.Enabled(), 1)
	c, ok := set.Constraint("Shift count")
	require.True(t, ok)
	assert.Equal(t, SoftWeight(5), c.Weight())

	descriptors := set.Descriptors()
	require.Len(t, descriptors, 2)
	assert.False(t, descriptors[1].Enabled)

	_, err = NewConstraintSet(schema, []Definition{shiftCount}, WithWeight("Missing", 1))
	require.Error(t, err)
	assert.True(t, hasCode(err, ErrCodeNotFound))

	_, err = NewConstraintSet(schema, []Definition{shiftCount}, WithWeight("Shift count", -2))
	require.Error(t, err)
}

// hasCode walks joined and wrapped errors looking for an EngineError code.
func hasCode(err error, code string) bool {
	if err == nil {
		return false
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, inner := range joined.Unwrap() {
			if hasCode(inner, code) {
				return true
			}
		}
		return false
	}
	var e *EngineError
	if errors.As(err, &e) {
		if e.Code == code {
			return true
		}
		return hasCode(e.Err, code)
	}
	return false
}
