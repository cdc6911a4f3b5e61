package events

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cart-pricing-api/internal/cart"
	"cart-pricing-api/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQueue(t *testing.T, path string, maxEvents int) *EventQueue {
	t.Helper()
	eq, err := NewEventQueue(EventQueueConfig{FilePath: path, MaxEvents: maxEvents})
	require.NoError(t, err)
	return eq
}

func snapshotWith(version uint64) models.CartSnapshot {
	return models.CartSnapshot{
		Lines:   []models.CartLine{{ItemIdentity: "milk", DisplayName: "Milk", Quantity: int(version)}},
		Version: version,
	}
}

func TestEventQueue_PublishAndGet(t *testing.T) {
	eq := newQueue(t, "", 100)

	for i := 1; i <= 5; i++ {
		eq.Publish(models.EventTypeCartUpdated, snapshotWith(uint64(i)))
	}

	events, next, hasMore := eq.GetEvents(0, 3)
	require.Len(t, events, 3)
	assert.Equal(t, int64(0), events[0].Offset)
	assert.Equal(t, int64(3), next)
	assert.True(t, hasMore)

	events, next, hasMore = eq.GetEvents(next, 3)
	require.Len(t, events, 2)
	assert.Equal(t, int64(5), next)
	assert.False(t, hasMore)
	assert.Equal(t, uint64(5), events[1].Cart.Version)

	events, next, hasMore = eq.GetEvents(5, 10)
	assert.Empty(t, events)
	assert.Equal(t, int64(5), next)
	assert.False(t, hasMore)
}

func TestEventQueue_ExactLimitHasNoMore(t *testing.T) {
	eq := newQueue(t, "", 100)
	eq.Publish(models.EventTypeCartUpdated, snapshotWith(1))
	eq.Publish(models.EventTypeCartUpdated, snapshotWith(2))

	events, _, hasMore := eq.GetEvents(0, 2)

	assert.Len(t, events, 2)
	assert.False(t, hasMore)
}

func TestEventQueue_Rotation(t *testing.T) {
	eq := newQueue(t, "", 8)

	for i := 1; i <= 9; i++ {
		eq.Publish(models.EventTypeCartUpdated, snapshotWith(uint64(i)))
	}

	assert.Equal(t, 6, eq.Len())
	assert.Equal(t, int64(9), eq.GetCurrentOffset())

	events, _, _ := eq.GetEvents(0, 100)
	require.Len(t, events, 6)
	assert.Equal(t, int64(3), events[0].Offset)
}

func TestEventQueue_WaitForEvents(t *testing.T) {
	eq := newQueue(t, "", 100)

	go func() {
		time.Sleep(30 * time.Millisecond)
		eq.Publish(models.EventTypeCartCleared, models.CartSnapshot{Version: 1})
	}()

	start := time.Now()
	available := eq.WaitForEvents(context.Background(), 0, 2*time.Second)

	assert.True(t, available)
	assert.Less(t, time.Since(start), time.Second)
}

func TestEventQueue_WaitTimesOut(t *testing.T) {
	eq := newQueue(t, "", 100)
	eq.Publish(models.EventTypeCartUpdated, snapshotWith(1))

	assert.True(t, eq.WaitForEvents(context.Background(), 0, time.Millisecond))
	assert.False(t, eq.WaitForEvents(context.Background(), 1, 20*time.Millisecond))
}

func TestEventQueue_WaitHonoursContext(t *testing.T) {
	eq := newQueue(t, "", 100)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, eq.WaitForEvents(ctx, 0, time.Minute))
}

func TestEventQueue_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events", "cart_events.json")

	eq := newQueue(t, path, 100)
	eq.Publish(models.EventTypeCartUpdated, snapshotWith(1))
	eq.Publish(models.EventTypeCartReplaced, snapshotWith(2))
	require.NoError(t, eq.Close())

	reloaded := newQueue(t, path, 100)
	assert.Equal(t, int64(2), reloaded.GetCurrentOffset())
	events, _, _ := reloaded.GetEvents(0, 10)
	require.Len(t, events, 2)
	assert.Equal(t, models.EventTypeCartReplaced, events[1].EventType)

	event := reloaded.Publish(models.EventTypeCartCleared, models.CartSnapshot{Version: 3})
	assert.Equal(t, int64(2), event.Offset)
}

func TestEventQueue_CorruptFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cart_events.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

	eq := newQueue(t, path, 100)

	assert.Equal(t, int64(0), eq.GetCurrentOffset())
	assert.Equal(t, 0, eq.Len())
}

func TestEventQueue_AttachToStore(t *testing.T) {
	eq := newQueue(t, "", 100)
	store := cart.NewStore(nil)
	detach := eq.Attach(store)

	store.AddItem("milk", "Milk", 1)
	store.SetQuantity("milk", 3)
	store.Replace([]models.CartLine{{ItemIdentity: "eggs", Quantity: 12}})
	store.Clear()

	detach()
	store.AddItem("bread", "Bread", 1)

	events, _, _ := eq.GetEvents(0, 10)
	require.Len(t, events, 4)

	types := make([]string, len(events))
	for i, e := range events {
		types[i] = e.EventType
	}
	assert.Equal(t, []string{
		models.EventTypeCartUpdated,
		models.EventTypeCartUpdated,
		models.EventTypeCartReplaced,
		models.EventTypeCartCleared,
	}, types)
	assert.Equal(t, 3, events[1].Cart.Lines[0].Quantity)
	assert.True(t, events[3].Cart.IsEmpty())
	assert.Equal(t, uint64(4), events[3].Cart.Version)
}
