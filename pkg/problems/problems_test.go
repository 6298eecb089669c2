package problems

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/scorekeeper/pkg/engine"
)

func TestBuiltinProblemsRegister(t *testing.T) {
	assert.Equal(t, []string{"employee-scheduling", "school-timetabling", "vehicle-routing"}, Names())

	for _, p := range All() {
		t.Run(p.Name, func(t *testing.T) {
			set, err := engine.NewConstraintSet(p.Schema(), p.Constraints())
			require.NoError(t, err)
			assert.Equal(t, len(p.Constraints()), set.Len())
			assert.NotEmpty(t, p.Description)
		})
	}
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("knapsack")
	require.Error(t, err)
	assert.True(t, engine.IsConfiguration(err))
	assert.Contains(t, err.Error(), "vehicle-routing")
}

func TestRegisterIncompletePanics(t *testing.T) {
	assert.Panics(t, func() { Register(Problem{Name: "half"}) })
}
