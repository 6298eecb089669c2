package engine

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomShifts(n int, seed uint64) []Fact {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	workers := []string{"amy", "beth", "carl"}
	facts := make([]Fact, 0, n)
	for i := 0; i < n; i++ {
		start := rng.Int64N(100)
		facts = append(facts, &testShift{
			ID:     fmt.Sprintf("s%d", i),
			Worker: workers[rng.IntN(len(workers))],
			Start:  start,
			End:    start + 1 + rng.Int64N(30),
		})
	}
	return facts
}

func countPairs(facts []Fact, ordered bool, pred func(a, b *testShift) bool) int {
	n := 0
	for _, fa := range facts {
		for _, fb := range facts {
			a, b := fa.(*testShift), fb.(*testShift)
			if a.ID == b.ID {
				continue
			}
			if !ordered && a.ID >= b.ID {
				continue
			}
			if pred(a, b) {
				n++
			}
		}
	}
	return n
}

func TestIndexedJoinMatchesBruteForce(t *testing.T) {
	facts := randomShifts(60, 7)
	verifier := NewVerifier(testSchema())

	tests := []struct {
		name    string
		joiners []Joiner
		ordered bool
		pred    func(a, b *testShift) bool
	}{
		{
			name:    "equal",
			joiners: []Joiner{Equal("worker")},
			ordered: true,
			pred:    func(a, b *testShift) bool { return a.Worker == b.Worker },
		},
		{
			name:    "equal and lessThan",
			joiners: []Joiner{Equal("worker"), LessThan("start")},
			ordered: true,
			pred:    func(a, b *testShift) bool { return a.Worker == b.Worker && a.Start < b.Start },
		},
		{
			name:    "lessOrEqual across attributes",
			joiners: []Joiner{Equal("worker"), LessOrEqual("end").WithRight("start")},
			ordered: true,
			pred:    func(a, b *testShift) bool { return a.Worker == b.Worker && a.End <= b.Start },
		},
		{
			name:    "greaterThan",
			joiners: []Joiner{GreaterThan("start")},
			ordered: true,
			pred:    func(a, b *testShift) bool { return a.Start > b.Start },
		},
		{
			name:    "greaterOrEqual and notEqual",
			joiners: []Joiner{GreaterOrEqual("end"), NotEqual("worker")},
			ordered: true,
			pred:    func(a, b *testShift) bool { return a.End >= b.End && a.Worker != b.Worker },
		},
		{
			name:    "overlapping",
			joiners: []Joiner{Equal("worker"), Overlapping("start", "end")},
			ordered: true,
			pred: func(a, b *testShift) bool {
				return a.Worker == b.Worker && a.Start < b.End && b.Start < a.End
			},
		},
		{
			name:    "unique pairs",
			joiners: []Joiner{Equal("worker"), LessThan(IDAttribute)},
			ordered: false,
			pred:    func(a, b *testShift) bool { return a.Worker == b.Worker },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := func(f *ConstraintFactory) *Constraint {
				return f.ForEach("Shift").Join("Shift", tt.joiners...).Penalize("pairs", OneSoft)
			}
			r, err := verifier.Verify(def, facts...)
			require.NoError(t, err)
			assert.Equal(t, countPairs(facts, tt.ordered, tt.pred), r.Count)
		})
	}
}

func TestSelfJoinNeverPairsFactWithItself(t *testing.T) {
	verifier := NewVerifier(testSchema())
	def := func(f *ConstraintFactory) *Constraint {
		return f.ForEach("Shift").Join("Shift", Equal("worker")).Penalize("same worker", OneSoft)
	}

	r, err := verifier.Verify(def, shiftAt("a", "amy", 0, 1))
	require.NoError(t, err)
	assert.Zero(t, r.Count)

	r, err = verifier.Verify(def, shiftAt("a", "amy", 0, 1), shiftAt("b", "amy", 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, r.Count, "ordered pairs (a,b) and (b,a)")
}

func TestUniquePairsAreProducedOnce(t *testing.T) {
	verifier := NewVerifier(testSchema())
	def := func(f *ConstraintFactory) *Constraint {
		return f.ForEachUniquePair("Shift", Equal("worker")).Penalize("same worker", OneSoft)
	}

	facts := []Fact{
		shiftAt("a", "amy", 0, 1),
		shiftAt("b", "amy", 0, 1),
		shiftAt("c", "amy", 0, 1),
		shiftAt("d", "amy", 0, 1),
	}
	r, err := verifier.Verify(def, facts...)
	require.NoError(t, err)
	assert.Equal(t, 6, r.Count)

	seen := make(map[string]bool)
	for _, m := range r.Matches {
		require.Len(t, m.Facts, 2)
		assert.NotEqual(t, m.Facts[0], m.Facts[1])
		key := m.Facts[0] + "|" + m.Facts[1]
		reverse := m.Facts[1] + "|" + m.Facts[0]
		assert.False(t, seen[key] || seen[reverse], "pair %s produced twice", key)
		seen[key] = true
	}
}

func TestTriJoinReadsLeftPosition(t *testing.T) {
	verifier := NewVerifier(testSchema())
	def := func(f *ConstraintFactory) *Constraint {
		return f.ForEach("Worker").
			Join("Shift", EqualTo("name", "worker")).
			Join("Skill", Equal("worker").OnLeft(1)).
			Penalize("worker shift skill", OneSoft)
	}

	r, err := verifier.Verify(def,
		&testWorker{Name: "amy"},
		&testWorker{Name: "beth"},
		shiftAt("s1", "amy", 0, 1),
		shiftAt("s2", "beth", 0, 1),
		&testSkill{ID: "k1", Worker: "amy", Name: "cook"},
		&testSkill{ID: "k2", Worker: "amy", Name: "drive"},
	)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Count)
}

func TestEmptyStreamsYieldNothing(t *testing.T) {
	verifier := NewVerifier(testSchema())

	r, err := verifier.Verify(overlappingShifts)
	require.NoError(t, err)
	assert.Equal(t, Result{
		Constraint: "Overlapping shifts",
		Level:      LevelHard,
		Direction:  Penalize,
	}, r)

	// Facts of other types do not matter.
	r, err = verifier.Verify(overlappingShifts, &testWorker{Name: "amy"})
	require.NoError(t, err)
	assert.Zero(t, r.Count)
	assert.Zero(t, r.Magnitude)
}
