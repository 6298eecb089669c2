package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/scorekeeper/pkg/domain/scheduling"
	"github.com/openfroyo/scorekeeper/pkg/engine"
)

var (
	day1  = time.Date(2021, time.February, 1, 0, 0, 0, 0, time.UTC)
	amy   = &scheduling.Employee{Name: "Amy", Skills: []string{"Nurse"}}
	beth  = &scheduling.Employee{Name: "Beth"}
	early = &scheduling.Shift{ID: "1", Start: day1.Add(6 * time.Hour), End: day1.Add(14 * time.Hour), Location: "ER", Employee: amy}
	late  = &scheduling.Shift{ID: "2", Start: day1.Add(14 * time.Hour), End: day1.Add(23 * time.Hour), Location: "ICU", Employee: amy}
	other = &scheduling.Shift{ID: "3", Start: day1.Add(9 * time.Hour), End: day1.Add(17 * time.Hour), Location: "ER", Employee: beth}
)

func compile(t *testing.T, sc ScriptedConstraint) engine.Definition {
	t.Helper()
	def, err := NewStarlarkEvaluator(0).Compile(sc)
	require.NoError(t, err)
	return def
}

func TestStarlarkEvaluator_Compile(t *testing.T) {
	v := engine.NewVerifier(scheduling.Schema())
	facts := []engine.Fact{amy, beth, early, late, other}

	tests := []struct {
		name   string
		sc     ScriptedConstraint
		assert func(*engine.Assertion) error
	}{
		{
			name: "single fact filter and magnitude",
			sc: ScriptedConstraint{
				Name: "Long shift", ForEach: "Shift", Level: "SOFT", Direction: "PENALIZE", Weight: 1,
				Filter:    "a.end - a.start > 8 * 3600",
				Magnitude: "(a.end - a.start) // 60 - 480",
			},
			assert: func(a *engine.Assertion) error { return a.PenalizesBy(60) },
		},
		{
			name: "no magnitude counts matches",
			sc: ScriptedConstraint{
				Name: "Emergency room shift", ForEach: "Shift", Level: "HARD", Direction: "REWARD", Weight: 1,
				Filter: `a.location == "ER"`,
			},
			assert: func(a *engine.Assertion) error { return a.Rewards(2) },
		},
		{
			name: "unique pairs",
			sc: ScriptedConstraint{
				Name: "Location change", ForEach: "Shift", Pair: true, Equal: []string{"employee"},
				Level: "SOFT", Direction: "PENALIZE", Weight: 1,
				Filter: "a.location != b.location",
			},
			assert: func(a *engine.Assertion) error { return a.Penalizes(1) },
		},
		{
			name: "join on shared attribute",
			sc: ScriptedConstraint{
				Name: "Skilled shift", ForEach: "Employee", Join: "Shift",
				Level: "SOFT", Direction: "REWARD", Weight: 1,
				Filter: `a.name == b.employee and a.name == "Amy"`,
			},
			assert: func(a *engine.Assertion) error { return a.Rewards(2) },
		},
		{
			name: "date attributes are strings",
			sc: ScriptedConstraint{
				Name: "First of February", ForEach: "Shift", Level: "SOFT", Direction: "PENALIZE", Weight: 1,
				Filter: `a.startDate == "2021-02-01"`,
			},
			assert: func(a *engine.Assertion) error { return a.Penalizes(3) },
		},
		{
			name: "abs builtin",
			sc: ScriptedConstraint{
				Name: "Distance from noon", ForEach: "Shift", Level: "SOFT", Direction: "PENALIZE", Weight: 1,
				Filter:    `a.employee == "Amy"`,
				Magnitude: "abs(a.start - (a.start // 86400 * 86400 + 12 * 3600)) // 3600",
			},
			assert: func(a *engine.Assertion) error { return a.PenalizesBy(8) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := compile(t, tt.sc)
			assert.NoError(t, tt.assert(v.VerifyThat(def).Given(facts...)))
		})
	}
}

func TestStarlarkEvaluator_CompileErrors(t *testing.T) {
	se := NewStarlarkEvaluator(0)

	tests := []struct {
		name string
		sc   ScriptedConstraint
		want string
	}{
		{
			name: "syntax error",
			sc:   ScriptedConstraint{Name: "x", ForEach: "Shift", Level: "SOFT", Direction: "PENALIZE", Filter: "a.start >"},
			want: "invalid filter",
		},
		{
			name: "multi line",
			sc:   ScriptedConstraint{Name: "x", ForEach: "Shift", Level: "SOFT", Direction: "PENALIZE", Magnitude: "1\n2"},
			want: "single expression",
		},
		{
			name: "pair and join",
			sc:   ScriptedConstraint{Name: "x", ForEach: "Shift", Join: "Shift", Pair: true, Level: "SOFT", Direction: "PENALIZE"},
			want: "mutually exclusive",
		},
		{
			name: "bad level",
			sc:   ScriptedConstraint{Name: "x", ForEach: "Shift", Level: "MEDIUM", Direction: "PENALIZE"},
			want: "unknown score level",
		},
		{
			name: "bad direction",
			sc:   ScriptedConstraint{Name: "x", ForEach: "Shift", Level: "SOFT", Direction: "IGNORE"},
			want: "unknown direction",
		},
		{
			name: "unknown variable",
			sc:   ScriptedConstraint{Name: "x", ForEach: "Shift", Level: "SOFT", Direction: "PENALIZE", Filter: "b.start > 0"},
			want: "undefined: b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := se.Compile(tt.sc)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestStarlarkEvaluator_RegistrationErrors(t *testing.T) {
	def := compile(t, ScriptedConstraint{Name: "x", ForEach: "Nurse", Level: "SOFT", Direction: "PENALIZE"})
	_, err := engine.NewConstraintSet(scheduling.Schema(), []engine.Definition{def})
	require.Error(t, err)
	assert.True(t, engine.IsConfiguration(err))
}

func TestStarlarkEvaluator_RuntimeErrors(t *testing.T) {
	v := engine.NewVerifier(scheduling.Schema())

	t.Run("magnitude of wrong type", func(t *testing.T) {
		def := compile(t, ScriptedConstraint{
			Name: "Stringly", ForEach: "Shift", Level: "SOFT", Direction: "PENALIZE", Magnitude: "a.location",
		})
		_, err := v.Verify(def, amy, early)
		require.Error(t, err)
		assert.True(t, engine.IsEvaluation(err))
		assert.Contains(t, err.Error(), "magnitude must be an int")
	})

	t.Run("step limit", func(t *testing.T) {
		def, err := NewStarlarkEvaluator(1000).Compile(ScriptedConstraint{
			Name: "Busy", ForEach: "Shift", Level: "SOFT", Direction: "PENALIZE",
			Filter: "len([x for x in range(1000000)]) > 0",
		})
		require.NoError(t, err)
		_, err = v.Verify(def, amy, early)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "too many steps")
	})

	t.Run("negative magnitude", func(t *testing.T) {
		def := compile(t, ScriptedConstraint{
			Name: "Negative", ForEach: "Shift", Level: "SOFT", Direction: "PENALIZE", Magnitude: "-1",
		})
		_, err := v.Verify(def, amy, early)
		require.Error(t, err)
		assert.True(t, engine.IsEvaluation(err))
	})
}

func TestToStarlarkValue(t *testing.T) {
	v, err := toStarlarkValue([]string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, `["a", "b"]`, v.String())

	v, err = toStarlarkValue(time.Tuesday)
	require.NoError(t, err)
	assert.Equal(t, "2", v.String())

	_, err = toStarlarkValue(map[string]int{})
	assert.Error(t, err)
}
