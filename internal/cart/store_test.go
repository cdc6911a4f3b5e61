package cart

import (
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"cart-pricing-api/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryPersister struct {
	mu      sync.Mutex
	lines   []models.CartLine
	saves   int
	loadErr error
	saveErr error
}

func (p *memoryPersister) Load() ([]models.CartLine, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lines, p.loadErr
}

func (p *memoryPersister) Save(snapshot models.CartSnapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saves++
	p.lines = snapshot.Lines
	return p.saveErr
}

func TestStore_AddItemAccumulatesQuantity(t *testing.T) {
	store := NewStore(nil)

	store.AddItem("7290000000001", "Milk 3%", 2)
	store.AddItem("7290000000001", "Milk 3%", 3)

	snapshot := store.Snapshot()
	require.Len(t, snapshot.Lines, 1)
	assert.Equal(t, "7290000000001", snapshot.Lines[0].ItemIdentity)
	assert.Equal(t, 5, snapshot.Lines[0].Quantity)
	assert.Equal(t, 5, store.ItemCount())
}

func TestStore_AddItemPreservesInsertionOrder(t *testing.T) {
	store := NewStore(nil)

	store.AddItem("bread", "Bread", 1)
	store.AddItem("eggs", "Eggs", 1)
	store.AddItem("milk", "Milk", 1)
	store.AddItem("bread", "Bread", 1)

	snapshot := store.Snapshot()
	require.Len(t, snapshot.Lines, 3)
	assert.Equal(t, []string{"bread", "eggs", "milk"}, identities(snapshot))
}

func TestStore_AddItemIgnoresInvalidInput(t *testing.T) {
	store := NewStore(nil)

	store.AddItem("milk", "Milk", 0)
	store.AddItem("milk", "Milk", -4)
	store.AddItem("   ", "Blank", 1)

	assert.True(t, store.Snapshot().IsEmpty())
	assert.Equal(t, uint64(0), store.Snapshot().Version)
}

func TestStore_SetQuantity(t *testing.T) {
	store := NewStore(nil)
	store.AddItem("a", "A", 1)
	store.AddItem("b", "B", 1)
	store.AddItem("c", "C", 1)

	store.SetQuantity("b", 7)
	assert.Equal(t, []string{"a", "b", "c"}, identities(store.Snapshot()))
	assert.Equal(t, 9, store.ItemCount())

	store.SetQuantity("b", 0)
	assert.False(t, store.Contains("b"))
	assert.Equal(t, []string{"a", "c"}, identities(store.Snapshot()))

	store.SetQuantity("missing", 3)
	assert.False(t, store.Contains("missing"))
}

func TestStore_RemoveItemOnAbsentIdentityIsNoOp(t *testing.T) {
	store := NewStore(nil)
	store.AddItem("a", "A", 1)
	before := store.Snapshot()

	store.RemoveItem("not-there")

	after := store.Snapshot()
	assert.True(t, before.Equal(after))
	assert.Equal(t, before.Version, after.Version)
}

func TestStore_RemoveKeepsIndexConsistent(t *testing.T) {
	store := NewStore(nil)
	store.AddItem("a", "A", 1)
	store.AddItem("b", "B", 1)
	store.AddItem("c", "C", 1)

	store.RemoveItem("a")
	store.AddItem("c", "C", 2)

	snapshot := store.Snapshot()
	require.Len(t, snapshot.Lines, 2)
	assert.Equal(t, "c", snapshot.Lines[1].ItemIdentity)
	assert.Equal(t, 3, snapshot.Lines[1].Quantity)
}

func TestStore_Clear(t *testing.T) {
	store := NewStore(nil)
	store.AddItem("a", "A", 1)
	store.AddItem("b", "B", 2)

	store.Clear()

	assert.True(t, store.Snapshot().IsEmpty())
	assert.Equal(t, 0, store.ItemCount())
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	store := NewStore(nil)
	store.AddItem("a", "A", 1)

	snapshot := store.Snapshot()
	snapshot.Lines[0].Quantity = 99
	store.AddItem("a", "A", 1)

	assert.Equal(t, 2, store.Snapshot().Lines[0].Quantity)
	assert.Equal(t, 99, snapshot.Lines[0].Quantity)
}

func TestStore_ReplaceAndMerge(t *testing.T) {
	store := NewStore(nil)
	store.AddItem("a", "A", 1)

	store.Replace([]models.CartLine{
		{ItemIdentity: "x", DisplayName: "X", Quantity: 2},
		{ItemIdentity: "y", DisplayName: "Y", Quantity: 0},
		{ItemIdentity: "x", DisplayName: "X", Quantity: 1},
	})
	assert.Equal(t, []string{"x"}, identities(store.Snapshot()))
	assert.Equal(t, 3, store.ItemCount())

	store.Merge([]models.CartLine{
		{ItemIdentity: "x", DisplayName: "X", Quantity: 1},
		{ItemIdentity: "z", DisplayName: "Z", Quantity: 4},
	})
	assert.Equal(t, []string{"x", "z"}, identities(store.Snapshot()))
	assert.Equal(t, 8, store.ItemCount())
}

func TestStore_SubscribersReceiveChangesInOrder(t *testing.T) {
	store := NewStore(nil)

	var received []Change
	unsubscribe := store.Subscribe(func(c Change) {
		received = append(received, c)
	})

	store.AddItem("a", "A", 1)
	store.AddItem("a", "A", 1)
	store.RemoveItem("nothing")
	store.Clear()

	unsubscribe()
	unsubscribe()
	store.AddItem("b", "B", 1)

	require.Len(t, received, 3)
	assert.Equal(t, ChangeUpdated, received[0].Kind)
	assert.Equal(t, 1, received[0].Snapshot.ItemCount())
	assert.Equal(t, 2, received[1].Snapshot.ItemCount())
	assert.Equal(t, ChangeCleared, received[2].Kind)
	assert.True(t, received[0].Snapshot.Version < received[1].Snapshot.Version)
}

func TestStore_SubscriberMayReadSnapshot(t *testing.T) {
	store := NewStore(nil)
	var seen int
	store.Subscribe(func(c Change) {
		seen = store.ItemCount()
	})

	store.AddItem("a", "A", 3)

	assert.Equal(t, 3, seen)
}

func TestStore_ConcurrentAddsDoNotLoseUpdates(t *testing.T) {
	store := NewStore(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				store.AddItem("milk", "Milk", 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1000, store.ItemCount())
	assert.Len(t, store.Snapshot().Lines, 1)
}

func TestStore_ConcurrentWritersWithReadingSubscriber(t *testing.T) {
	store := NewStore(nil)

	var mu sync.Mutex
	var versions []uint64
	store.Subscribe(func(c Change) {
		time.Sleep(5 * time.Millisecond)
		_ = store.ItemCount()
		_ = store.Snapshot()
		mu.Lock()
		versions = append(versions, c.Snapshot.Version)
		mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 5; j++ {
					store.AddItem("milk", "Milk", 1)
				}
			}()
		}
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("concurrent writers did not complete")
	}

	assert.Equal(t, 20, store.ItemCount())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, versions, 20)
	for i := 1; i < len(versions); i++ {
		assert.Less(t, versions[i-1], versions[i], "changes must be delivered in version order")
	}
}

func TestStore_RandomOperationsKeepInvariants(t *testing.T) {
	store := NewStore(nil)
	rng := rand.New(rand.NewSource(42))
	ids := []string{"a", "b", "c", "d"}

	for i := 0; i < 500; i++ {
		id := ids[rng.Intn(len(ids))]
		switch rng.Intn(3) {
		case 0:
			store.AddItem(id, id, rng.Intn(4)-1)
		case 1:
			store.SetQuantity(id, rng.Intn(5)-1)
		case 2:
			store.RemoveItem(id)
		}

		snapshot := store.Snapshot()
		sum := 0
		seen := map[string]bool{}
		for _, line := range snapshot.Lines {
			assert.Greater(t, line.Quantity, 0)
			assert.False(t, seen[line.ItemIdentity], "duplicate line %s", line.ItemIdentity)
			seen[line.ItemIdentity] = true
			sum += line.Quantity
		}
		assert.Equal(t, sum, store.ItemCount())
	}
}

func TestStore_PersistsAndRestores(t *testing.T) {
	persister := &memoryPersister{}
	store := NewStore(persister)
	store.AddItem("a", "A", 2)
	store.AddItem("b", "B", 1)
	assert.Equal(t, 2, persister.saves)

	restored := NewStore(persister)
	require.NoError(t, restored.Restore())
	assert.True(t, store.Snapshot().Equal(restored.Snapshot()))
}

func TestStore_PersistFailureDoesNotFailMutation(t *testing.T) {
	persister := &memoryPersister{saveErr: errors.New("disk full")}
	store := NewStore(persister)

	store.AddItem("a", "A", 1)

	assert.True(t, store.Contains("a"))
}

func TestStore_RestoreError(t *testing.T) {
	store := NewStore(&memoryPersister{loadErr: errors.New("corrupt")})
	assert.Error(t, store.Restore())
}

func TestNormalizeIdentity(t *testing.T) {
	tests := []struct {
		name     string
		barcode  string
		itemName string
		expected string
	}{
		{"barcode wins", " 7290000000001 ", "Milk", "7290000000001"},
		{"name normalized", "", "  Whole   MILK 3% ", "whole milk 3%"},
		{"both blank", "", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeIdentity(tt.barcode, tt.itemName))
		})
	}
}

func identities(s models.CartSnapshot) []string {
	out := make([]string, 0, len(s.Lines))
	for _, line := range s.Lines {
		out = append(out, line.ItemIdentity)
	}
	return out
}
