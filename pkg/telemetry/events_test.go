package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventPublisher_Sync(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{Enabled: true, BufferSize: 10, MaxBatchSize: 10})
	require.NoError(t, err)

	var got []Event
	ep.Subscribe(func(e Event) { got = append(got, e) }, FilterByLevel(EventLevelWarning))

	require.NoError(t, ep.PublishPassCompleted("p", "pass-1", "0hard/0soft", time.Millisecond))
	require.NoError(t, ep.PublishPassFailed("p", "pass-2", 1, "boom"))

	require.Len(t, got, 1)
	assert.Equal(t, EventTypePassFailed, got[0].Type)
	assert.Equal(t, "pass-2", got[0].PassID)
	assert.NotEmpty(t, got[0].ID)
	assert.False(t, got[0].Timestamp.IsZero())
}

func TestEventPublisher_GlobalFilter(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{Enabled: true, BufferSize: 10, MaxBatchSize: 10})
	require.NoError(t, err)

	var got []string
	ep.Subscribe(func(e Event) { got = append(got, e.Problem) }, nil)
	ep.AddFilter(FilterByProblem("vehicle-routing"))

	require.NoError(t, ep.PublishDatasetReloaded("vehicle-routing", "a.json"))
	require.NoError(t, ep.PublishDatasetReloaded("school-timetabling", "b.json"))
	assert.Equal(t, []string{"vehicle-routing"}, got)
}

func TestEventPublisher_AsyncDeliversInOrder(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{Enabled: true, BufferSize: 100, MaxBatchSize: 8, EnableAsync: true})
	require.NoError(t, err)

	var mu sync.Mutex
	var got []string
	ep.Subscribe(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.Constraint)
	}, FilterByType(EventTypeConstraintFailed))

	want := []string{"a", "b", "c", "d", "e"}
	for _, c := range want {
		require.NoError(t, ep.PublishConstraintFailed("p", "pass", c, "x"))
	}
	require.NoError(t, ep.PublishPassCompleted("p", "pass", "0", 0))

	require.NoError(t, ep.Shutdown(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want, got)

	assert.Error(t, ep.PublishConstraintFailed("p", "pass", "late", "x"))
}

func TestEventPublisher_Disabled(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{})
	require.NoError(t, err)

	called := false
	ep.Subscribe(func(Event) { called = true }, nil)
	assert.NoError(t, ep.PublishDatasetReloaded("p", "x"))
	assert.False(t, called)
	assert.NoError(t, ep.Shutdown(context.Background()))
}
