package engine

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverlapMagnitude(t *testing.T) {
	verifier := NewVerifier(testSchema())

	// 09:00-17:00 twice for the same worker.
	r, err := verifier.Verify(overlappingShifts,
		shiftAt("s1", "amy", 9*3600, 17*3600),
		shiftAt("s2", "amy", 9*3600, 17*3600))
	require.NoError(t, err)
	assert.Equal(t, 1, r.Count)
	assert.Equal(t, int64(480), r.Magnitude)
	assert.Equal(t, Score{Hard: -480}, r.Impact)

	// Different workers.
	r, err = verifier.Verify(overlappingShifts,
		shiftAt("s1", "amy", 9*3600, 17*3600),
		shiftAt("s2", "beth", 9*3600, 17*3600))
	require.NoError(t, err)
	assert.Zero(t, r.Magnitude)
}

func TestEvaluationIsOrderIndependent(t *testing.T) {
	facts := randomShifts(40, 11)
	verifier := NewVerifier(testSchema())

	want, err := verifier.Verify(overlappingShifts, facts...)
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(3, 5))
	for i := 0; i < 5; i++ {
		shuffled := append([]Fact(nil), facts...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got, err := verifier.Verify(overlappingShifts, shuffled...)
		require.NoError(t, err)
		assert.Equal(t, want.Count, got.Count)
		assert.Equal(t, want.Magnitude, got.Magnitude)
		assert.Equal(t, want.Impact, got.Impact)
	}
}

func TestPenalizeAndRewardAreDual(t *testing.T) {
	facts := randomShifts(30, 19)
	verifier := NewVerifier(testSchema())

	penalty, err := verifier.Verify(overlappingShifts, facts...)
	require.NoError(t, err)
	reward, err := verifier.Verify(overlappingShiftsReward, facts...)
	require.NoError(t, err)

	assert.Equal(t, penalty.Count, reward.Count)
	assert.Equal(t, penalty.Magnitude, reward.Magnitude)
	assert.Equal(t, penalty.Impact, reward.Impact.Negate())
}

func TestFilterDropsTuples(t *testing.T) {
	verifier := NewVerifier(testSchema())
	def := func(f *ConstraintFactory) *Constraint {
		return f.ForEach("Shift").
			Filter(Filter1(func(s *testShift) bool { return s.End-s.Start > 3600 })).
			Penalize("Long shift", OneSoft)
	}

	r, err := verifier.Verify(def,
		shiftAt("short", "amy", 0, 3600),
		shiftAt("long", "amy", 0, 7200))
	require.NoError(t, err)
	assert.Equal(t, 1, r.Count)
	assert.Equal(t, []string{"testShift:long"}, r.Matches[0].Facts)
}

func TestZeroMagnitudeContributesNothing(t *testing.T) {
	verifier := NewVerifier(testSchema())
	def := func(f *ConstraintFactory) *Constraint {
		return f.ForEach("Shift").
			PenalizeBy("Demand", OneHard, Magnitude1(func(s *testShift) int64 { return s.Demand }))
	}

	r, err := verifier.Verify(def,
		&testShift{ID: "a", Worker: "amy", Demand: 0},
		&testShift{ID: "b", Worker: "amy", Demand: 5})
	require.NoError(t, err)
	assert.Equal(t, 1, r.Count)
	assert.Equal(t, int64(5), r.Magnitude)
}

func TestNegativeMagnitudeIsEvaluationError(t *testing.T) {
	verifier := NewVerifier(testSchema())
	def := func(f *ConstraintFactory) *Constraint {
		return f.ForEach("Shift").
			PenalizeBy("Demand", OneHard, Magnitude1(func(s *testShift) int64 { return s.Demand }))
	}

	_, err := verifier.Verify(def, &testShift{ID: "a", Worker: "amy", Demand: -1})
	require.Error(t, err)
	assert.True(t, IsEvaluation(err))
	assert.True(t, errorsIsCode(err, ErrCodeNegativeMagnitude))
}

func TestFailingConstraintDoesNotAbortPass(t *testing.T) {
	set, err := NewConstraintSet(testSchema(), []Definition{shiftCount, failingFilter, panickingMagnitude})
	require.NoError(t, err)

	session := NewSession(set, WithWorkers(2))
	require.NoError(t, session.Insert(
		shiftAt("ok", "amy", 0, 60),
		shiftAt("bad", "amy", 60, 120),
	))

	score, err := session.CalculateScore(context.Background())
	require.Error(t, err)
	assert.Equal(t, Score{Soft: 4}, score, "shift count still scores")

	failures := EvaluationFailures(err)
	require.Len(t, failures, 2)
	names := map[string][]string{}
	for _, f := range failures {
		names[f.Constraint] = f.Tuple
	}
	assert.Equal(t, []string{"testShift:bad"}, names["Failing filter"])
	assert.Equal(t, []string{"testShift:bad"}, names["Panicking magnitude"])
}

func errorsIsCode(err error, code string) bool {
	for _, f := range EvaluationFailures(err) {
		if f.Code == code {
			return true
		}
	}
	return false
}
