package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifierAssertions(t *testing.T) {
	verifier := NewVerifier(testSchema())
	same := []Fact{
		shiftAt("s1", "amy", 9*3600, 17*3600),
		shiftAt("s2", "amy", 9*3600, 17*3600),
	}

	assert.NoError(t, verifier.VerifyThat(overlappingShifts).Given(same...).Penalizes(1))
	assert.NoError(t, verifier.VerifyThat(overlappingShifts).Given(same...).PenalizesBy(480))
	assert.NoError(t, verifier.VerifyThat(overlappingShiftsReward).Given(same...).RewardsWith(480))

	err := verifier.VerifyThat(overlappingShifts).Given(same...).PenalizesBy(479)
	require.Error(t, err)
	assert.True(t, IsVerification(err))

	err = verifier.VerifyThat(overlappingShifts).Given(same...).Rewards(1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "penalizes")
}

func TestVerifierZeroHoldsForEitherDirection(t *testing.T) {
	verifier := NewVerifier(testSchema())
	apart := verifier.VerifyThat(overlappingShifts).Given(
		shiftAt("s1", "amy", 0, 3600),
		shiftAt("s2", "amy", 7200, 9000))

	assert.NoError(t, apart.Penalizes(0))
	assert.NoError(t, apart.PenalizesBy(0))
	assert.NoError(t, apart.Rewards(0))
	assert.NoError(t, apart.RewardsWith(0))
}

func TestVerifierFailsLoudlyOnForeignFacts(t *testing.T) {
	verifier := NewVerifier(testSchema())

	_, err := verifier.Verify(overlappingShifts, shiftAt("s1", "amy", 0, 60), &stranger{ID: "x"})
	require.Error(t, err)
	assert.True(t, IsVerification(err))

	err = verifier.VerifyThat(overlappingShifts).Given(&stranger{ID: "x"}).Penalizes(0)
	assert.Error(t, err, "a zero expectation must not hide a foreign fixture")
}

func TestVerifierRejectsDuplicateFixtureFacts(t *testing.T) {
	verifier := NewVerifier(testSchema())
	_, err := verifier.Verify(overlappingShifts, shiftAt("s1", "amy", 0, 60), shiftAt("s1", "amy", 0, 60))
	require.Error(t, err)
	assert.True(t, IsVerification(err))
}

func TestVerifierStartsFromCleanSlate(t *testing.T) {
	verifier := NewVerifier(testSchema())

	first, err := verifier.Verify(shiftCount, shiftAt("s1", "amy", 0, 60), shiftAt("s2", "amy", 0, 60))
	require.NoError(t, err)
	second, err := verifier.Verify(shiftCount, shiftAt("s3", "amy", 0, 60))
	require.NoError(t, err)

	assert.Equal(t, 2, first.Count)
	assert.Equal(t, 1, second.Count)
	assert.Equal(t, Score{Soft: 2}, second.Impact)
}

func TestVerifierSkipsUninitializedFacts(t *testing.T) {
	verifier := NewVerifier(testSchema())
	r, err := verifier.Verify(shiftCount, shiftAt("s1", "", 0, 60))
	require.NoError(t, err)
	assert.Zero(t, r.Count)
}

func TestVerifyAllScores(t *testing.T) {
	verifier := NewVerifier(testSchema())
	err := verifier.VerifyAll(overlappingShifts, shiftCount).
		Given(shiftAt("s1", "amy", 0, 3600), shiftAt("s2", "amy", 0, 3600)).
		Scores(Score{Hard: -60, Soft: 4})
	assert.NoError(t, err)
}

func TestVerifyRegisteredHonoursOverrides(t *testing.T) {
	schema := testSchema()
	set, err := NewConstraintSet(schema, []Definition{shiftCount}, WithWeight("Shift count", 10))
	require.NoError(t, err)

	c, _ := set.Constraint("Shift count")
	r, err := NewVerifier(schema).VerifyRegistered(c, shiftAt("s1", "amy", 0, 60))
	require.NoError(t, err)
	assert.Equal(t, int64(1), r.Magnitude)
	assert.Equal(t, Score{Soft: 10}, r.Impact)

	assert.NoError(t, NewVerifier(schema).VerifyThatRegistered(c).Given(shiftAt("s1", "amy", 0, 60)).Rewards(1))
	assert.Error(t, NewVerifier(schema).VerifyThatRegistered(c).Given(shiftAt("s1", "amy", 0, 60)).Penalizes(1))
}

func TestVerifyRegisteredRejectsForeignSchema(t *testing.T) {
	set, err := NewConstraintSet(testSchema(), []Definition{shiftCount})
	require.NoError(t, err)
	c, _ := set.Constraint("Shift count")

	other := NewSchema("other")
	DefineType[*testShift](other, "Shift")

	tests := []struct {
		name   string
		schema *Schema
	}{
		{name: "missing type", schema: NewSchema("empty")},
		{name: "same name, other schema", schema: other},
		{name: "rebuilt schema", schema: testSchema()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := NewVerifier(tt.schema)
			_, err := verifier.VerifyRegistered(c, shiftAt("s1", "amy", 0, 60))
			require.Error(t, err)
			assert.True(t, IsVerification(err))
			assert.True(t, hasCode(err, ErrCodeUnknownType))

			err = verifier.VerifyThatRegistered(c).Given(shiftAt("s1", "amy", 0, 60)).Rewards(1)
			assert.True(t, IsVerification(err))
		})
	}
}
