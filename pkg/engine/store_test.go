package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactStoreLifecycle(t *testing.T) {
	store := NewFactStore(testSchema())

	require.NoError(t, store.Insert(
		&testWorker{Name: "amy"},
		shiftAt("s1", "amy", 0, 3600),
		shiftAt("s2", "amy", 3600, 7200),
	))
	assert.Equal(t, 3, store.Len())
	assert.Equal(t, map[string]int{"Worker": 1, "Shift": 2, "Skill": 0}, store.Counts())

	v := store.Version("Shift")
	require.NoError(t, store.Update(shiftAt("s1", "beth", 0, 3600)))
	assert.Greater(t, store.Version("Shift"), v)

	got, ok := store.Get("Shift", "s1")
	require.True(t, ok)
	assert.Equal(t, "beth", got.(*testShift).Worker)

	require.NoError(t, store.Retract("Shift", "s1"))
	shifts, err := store.AllOf("Shift")
	require.NoError(t, err)
	require.Len(t, shifts, 1)
	assert.Equal(t, "s2", shifts[0].FactID())

	// Retract-then-insert reuses the identity.
	require.NoError(t, store.Insert(shiftAt("s1", "amy", 0, 60)))
	assert.Equal(t, 2, store.Counts()["Shift"])
}

func TestFactStoreErrors(t *testing.T) {
	store := NewFactStore(testSchema())
	require.NoError(t, store.Insert(shiftAt("s1", "amy", 0, 60)))

	err := store.Insert(shiftAt("s1", "amy", 0, 60))
	require.Error(t, err)
	assert.True(t, IsState(err))

	err = store.Insert(&stranger{ID: "x"})
	require.Error(t, err)
	assert.True(t, IsState(err))

	assert.Error(t, store.Update(shiftAt("missing", "amy", 0, 60)))
	assert.Error(t, store.Retract("Shift", "missing"))
	assert.Error(t, store.Retract("Nope", "s1"))

	_, err = store.AllOf("Nope")
	assert.Error(t, err)
}

func TestFactStoreViewSkipsUninitialized(t *testing.T) {
	schema := testSchema()
	store := NewFactStore(schema)
	require.NoError(t, store.Insert(
		shiftAt("assigned", "amy", 0, 60),
		shiftAt("unassigned", "", 0, 60),
	))

	shiftType, _ := schema.Type("Shift")
	store.mu.RLock()
	view := store.view(map[*FactType]struct{}{shiftType: {}})
	store.mu.RUnlock()

	facts := view.of(shiftType)
	require.Len(t, facts, 1)
	assert.Equal(t, "assigned", facts[0].FactID())
}
