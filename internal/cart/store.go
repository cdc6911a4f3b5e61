package cart

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"cart-pricing-api/internal/models"
)

// ChangeKind describes what kind of mutation produced a change
type ChangeKind string

const (
	ChangeUpdated  ChangeKind = models.EventTypeCartUpdated
	ChangeCleared  ChangeKind = models.EventTypeCartCleared
	ChangeReplaced ChangeKind = models.EventTypeCartReplaced
)

// Change is delivered to subscribers after every effective mutation
type Change struct {
	Kind     ChangeKind
	Snapshot models.CartSnapshot
}

// Subscriber receives cart changes. It must not mutate the store
// synchronously.
type Subscriber func(Change)

// Persister stores and restores cart lines outside the process
type Persister interface {
	Load() ([]models.CartLine, error)
	Save(snapshot models.CartSnapshot) error
}

// Store is the authoritative in-memory cart. All mutations are serialized
// through one lock; subscribers are notified in mutation order after the
// lock is released.
type Store struct {
	mu      sync.RWMutex
	lines   []models.CartLine
	index   map[string]int
	version uint64

	// changes are queued in version order under mu and delivered by whichever
	// writer holds publishMu; mu is never held while waiting for publishMu
	pendingMu sync.Mutex
	pending   []Change
	publishMu sync.Mutex

	subsMu      sync.Mutex
	subscribers map[uint64]Subscriber
	nextSubID   uint64

	persister Persister
}

// NewStore creates an empty cart store. persister may be nil.
func NewStore(persister Persister) *Store {
	return &Store{
		index:       make(map[string]int),
		subscribers: make(map[uint64]Subscriber),
		persister:   persister,
	}
}

// NormalizeIdentity returns the barcode when known, else the lower-cased
// name with collapsed whitespace.
func NormalizeIdentity(barcode, name string) string {
	if code := strings.TrimSpace(barcode); code != "" {
		return code
	}
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Restore loads lines from the persister, replacing the current contents
func (s *Store) Restore() error {
	if s.persister == nil {
		return nil
	}
	lines, err := s.persister.Load()
	if err != nil {
		return err
	}
	s.replace(lines, false)
	slog.Info("Cart restored from storage", "line_count", len(lines))
	return nil
}

// AddItem increments the quantity of an existing line or appends a new one.
// Blank identities and non-positive quantities are ignored.
func (s *Store) AddItem(identity, displayName string, quantity int) {
	identity = strings.TrimSpace(identity)
	if identity == "" || quantity < 1 {
		slog.Debug("Ignoring invalid add to cart", "item_identity", identity, "quantity", quantity)
		return
	}

	s.mu.Lock()
	if i, exists := s.index[identity]; exists {
		s.lines[i].Quantity += quantity
		if s.lines[i].DisplayName == "" {
			s.lines[i].DisplayName = displayName
		}
	} else {
		if displayName == "" {
			displayName = identity
		}
		s.index[identity] = len(s.lines)
		s.lines = append(s.lines, models.CartLine{
			ItemIdentity: identity,
			DisplayName:  displayName,
			Quantity:     quantity,
		})
	}
	s.commitLocked(ChangeUpdated)

	slog.Debug("Item added to cart", "item_identity", identity, "quantity", quantity)
}

// SetQuantity overwrites the quantity of a line, preserving its position.
// A quantity of zero or less removes the line. Unknown identities are ignored.
func (s *Store) SetQuantity(identity string, quantity int) {
	if quantity <= 0 {
		s.RemoveItem(identity)
		return
	}
	identity = strings.TrimSpace(identity)

	s.mu.Lock()
	i, exists := s.index[identity]
	if !exists || s.lines[i].Quantity == quantity {
		s.mu.Unlock()
		return
	}
	s.lines[i].Quantity = quantity
	s.commitLocked(ChangeUpdated)

	slog.Debug("Cart quantity set", "item_identity", identity, "quantity", quantity)
}

// RemoveItem deletes the line if present
func (s *Store) RemoveItem(identity string) {
	identity = strings.TrimSpace(identity)

	s.mu.Lock()
	i, exists := s.index[identity]
	if !exists {
		s.mu.Unlock()
		return
	}
	s.lines = append(s.lines[:i], s.lines[i+1:]...)
	s.reindexLocked()
	s.commitLocked(ChangeUpdated)

	slog.Debug("Item removed from cart", "item_identity", identity)
}

// Clear empties the cart
func (s *Store) Clear() {
	s.mu.Lock()
	if len(s.lines) == 0 {
		s.mu.Unlock()
		return
	}
	s.lines = nil
	s.index = make(map[string]int)
	s.commitLocked(ChangeCleared)

	slog.Debug("Cart cleared")
}

// Replace swaps the whole cart for the given lines. Duplicate identities are
// merged and non-positive quantities dropped.
func (s *Store) Replace(lines []models.CartLine) {
	s.replace(lines, true)
}

// Merge adds the given lines into the current cart
func (s *Store) Merge(lines []models.CartLine) {
	s.mu.Lock()
	changed := false
	for _, line := range lines {
		identity := strings.TrimSpace(line.ItemIdentity)
		if identity == "" || line.Quantity < 1 {
			continue
		}
		changed = true
		if i, exists := s.index[identity]; exists {
			s.lines[i].Quantity += line.Quantity
			continue
		}
		line.ItemIdentity = identity
		if line.DisplayName == "" {
			line.DisplayName = identity
		}
		s.index[identity] = len(s.lines)
		s.lines = append(s.lines, line)
	}
	if !changed {
		s.mu.Unlock()
		return
	}
	s.commitLocked(ChangeUpdated)
}

// Snapshot returns an immutable copy of the current cart
func (s *Store) Snapshot() models.CartSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// ItemCount returns the sum of all line quantities
func (s *Store) ItemCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, line := range s.lines {
		total += line.Quantity
	}
	return total
}

// Contains reports whether a line exists for identity
func (s *Store) Contains(identity string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.index[strings.TrimSpace(identity)]
	return exists
}

// Subscribe registers fn for every future change. The returned function
// unsubscribes and may be called more than once.
func (s *Store) Subscribe(fn Subscriber) (unsubscribe func()) {
	s.subsMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subscribers, id)
			s.subsMu.Unlock()
		})
	}
}

func (s *Store) replace(lines []models.CartLine, publish bool) {
	s.mu.Lock()
	s.lines = nil
	s.index = make(map[string]int)
	for _, line := range lines {
		identity := strings.TrimSpace(line.ItemIdentity)
		if identity == "" || line.Quantity < 1 {
			continue
		}
		if i, exists := s.index[identity]; exists {
			s.lines[i].Quantity += line.Quantity
			continue
		}
		line.ItemIdentity = identity
		s.index[identity] = len(s.lines)
		s.lines = append(s.lines, line)
	}
	if !publish {
		s.version++
		s.mu.Unlock()
		return
	}
	s.commitLocked(ChangeReplaced)
}

// commitLocked bumps the version and queues the new snapshot for delivery.
// It must be called with s.mu held and releases it. When it returns the
// change has been persisted and delivered.
func (s *Store) commitLocked(kind ChangeKind) {
	s.version++
	change := Change{Kind: kind, Snapshot: s.snapshotLocked()}

	s.pendingMu.Lock()
	s.pending = append(s.pending, change)
	s.pendingMu.Unlock()
	s.mu.Unlock()

	s.drain()
}

// drain delivers queued changes in order. Subscribers may read the store
// while it runs.
func (s *Store) drain() {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	for {
		s.pendingMu.Lock()
		if len(s.pending) == 0 {
			s.pendingMu.Unlock()
			return
		}
		change := s.pending[0]
		s.pending = s.pending[1:]
		s.pendingMu.Unlock()

		s.deliver(change)
	}
}

func (s *Store) deliver(change Change) {
	if s.persister != nil {
		if err := s.persister.Save(change.Snapshot); err != nil {
			slog.Error("Failed to persist cart", "version", change.Snapshot.Version, "error", err)
		}
	}

	s.subsMu.Lock()
	subscribers := make([]Subscriber, 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subscribers = append(subscribers, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range subscribers {
		fn(change)
	}
}

func (s *Store) snapshotLocked() models.CartSnapshot {
	lines := make([]models.CartLine, len(s.lines))
	copy(lines, s.lines)
	return models.CartSnapshot{
		Lines:   lines,
		Version: s.version,
		TakenAt: time.Now(),
	}
}

func (s *Store) reindexLocked() {
	s.index = make(map[string]int, len(s.lines))
	for i, line := range s.lines {
		s.index[line.ItemIdentity] = i
	}
}
