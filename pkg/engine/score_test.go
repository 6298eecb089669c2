package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b Score
		want int
	}{
		{"equal", Score{-1, -5}, Score{-1, -5}, 0},
		{"hard dominates soft", Score{0, -1000}, Score{-1, 0}, 1},
		{"soft breaks hard tie", Score{-2, 10}, Score{-2, 9}, 1},
		{"worse hard", Score{-3, 100}, Score{-2, -100}, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Compare(tt.b))
			assert.Equal(t, -tt.want, tt.b.Compare(tt.a))
		})
	}
}

func TestScoreFeasibility(t *testing.T) {
	assert.True(t, Score{Hard: 0, Soft: -500}.IsFeasible())
	assert.False(t, Score{Hard: -1, Soft: 500}.IsFeasible())
	assert.True(t, ZeroScore.IsZero())
}

func TestScoreArithmetic(t *testing.T) {
	s := ScoreOf(LevelHard, -2).Add(ScoreOf(LevelSoft, 7))
	assert.Equal(t, Score{Hard: -2, Soft: 7}, s)
	assert.Equal(t, Score{Hard: 2, Soft: -7}, s.Negate())
}

func TestParseScore(t *testing.T) {
	s, err := ParseScore("-1hard/-480soft")
	require.NoError(t, err)
	assert.Equal(t, Score{Hard: -1, Soft: -480}, s)
	assert.Equal(t, "-1hard/-480soft", s.String())

	for _, bad := range []string{"", "1hard", "1soft/2hard", "xhard/0soft"} {
		_, err := ParseScore(bad)
		assert.Error(t, err, bad)
	}
}

func TestScoreJSON(t *testing.T) {
	data, err := json.Marshal(Score{Hard: -1, Soft: 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"hard":-1,"soft":3,"feasible":false,"text":"-1hard/3soft"}`, string(data))

	var fromObject, fromText Score
	require.NoError(t, json.Unmarshal(data, &fromObject))
	require.NoError(t, json.Unmarshal([]byte(`"0hard/-12soft"`), &fromText))
	assert.Equal(t, Score{Hard: -1, Soft: 3}, fromObject)
	assert.Equal(t, Score{Soft: -12}, fromText)
}

func TestParseTokens(t *testing.T) {
	l, err := ParseLevel("soft")
	require.NoError(t, err)
	assert.Equal(t, LevelSoft, l)

	d, err := ParseDirection("REWARD")
	require.NoError(t, err)
	assert.Equal(t, Reward, d)

	_, err = ParseLevel("medium")
	assert.Error(t, err)
	_, err = ParseDirection("ignore")
	assert.Error(t, err)

	k, err := ParseJoinKind("overlapping")
	require.NoError(t, err)
	assert.Equal(t, JoinOverlapping, k)
}
