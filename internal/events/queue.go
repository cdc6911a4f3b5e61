package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"cart-pricing-api/internal/cart"
	"cart-pricing-api/internal/models"
)

// EventQueue is the offset-addressed cart change feed with optional file
// persistence
type EventQueue struct {
	mu         sync.RWMutex
	events     []models.Event
	nextOffset int64
	filePath   string
	maxEvents  int
	logger     *slog.Logger

	// closed and replaced on every publish to wake long-polling readers
	signal chan struct{}
}

// EventQueueConfig holds configuration for the event queue
type EventQueueConfig struct {
	// FilePath is where events are persisted; empty keeps them in memory only
	FilePath  string
	MaxEvents int
	Logger    *slog.Logger
}

type queueFile struct {
	Events     []models.Event `json:"events"`
	NextOffset int64          `json:"nextOffset"`
}

// NewEventQueue creates a new event queue
func NewEventQueue(config EventQueueConfig) (*EventQueue, error) {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.MaxEvents < 4 {
		config.MaxEvents = 4
	}

	eq := &EventQueue{
		events:    make([]models.Event, 0),
		filePath:  config.FilePath,
		maxEvents: config.MaxEvents,
		logger:    config.Logger,
		signal:    make(chan struct{}),
	}

	if eq.filePath != "" {
		if err := os.MkdirAll(filepath.Dir(eq.filePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create events directory: %w", err)
		}
		if err := eq.loadFromFile(); err != nil {
			eq.logger.Warn("Failed to load events from file, starting fresh", "error", err)
			eq.events = make([]models.Event, 0)
			eq.nextOffset = 0
		}
	}

	eq.logger.Info("Event queue initialized",
		"file_path", eq.filePath,
		"max_events", eq.maxEvents,
		"loaded_events", len(eq.events),
		"next_offset", eq.nextOffset,
	)

	return eq, nil
}

// Attach publishes every change of store to the queue until the returned
// function is called
func (eq *EventQueue) Attach(store *cart.Store) func() {
	return store.Subscribe(func(change cart.Change) {
		eq.Publish(string(change.Kind), change.Snapshot)
	})
}

// Publish appends a new event and wakes waiting readers
func (eq *EventQueue) Publish(eventType string, snapshot models.CartSnapshot) models.Event {
	eq.mu.Lock()

	event := models.Event{
		Offset:    eq.nextOffset,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		EventType: eventType,
		Cart:      snapshot,
	}
	eq.nextOffset++
	eq.events = append(eq.events, event)

	if len(eq.events) > eq.maxEvents {
		keepCount := eq.maxEvents * 3 / 4
		removed := len(eq.events) - keepCount
		eq.events = append([]models.Event(nil), eq.events[removed:]...)

		eq.logger.Info("Event queue rotated",
			"removed_events", removed,
			"remaining_events", len(eq.events),
		)
	}

	if err := eq.saveLocked(); err != nil {
		eq.logger.Error("Failed to save events to file", "error", err)
	}

	close(eq.signal)
	eq.signal = make(chan struct{})
	eq.mu.Unlock()

	eq.logger.Debug("Cart event published",
		"offset", event.Offset,
		"event_type", event.EventType,
		"cart_version", snapshot.Version,
	)

	return event
}

// GetEvents retrieves up to limit events starting at fromOffset. Offsets
// older than the retained window start at the oldest retained event.
func (eq *EventQueue) GetEvents(fromOffset int64, limit int) ([]models.Event, int64, bool) {
	eq.mu.RLock()
	defer eq.mu.RUnlock()

	if limit <= 0 {
		limit = 1
	}

	startIdx := -1
	for i, event := range eq.events {
		if event.Offset >= fromOffset {
			startIdx = i
			break
		}
	}

	if startIdx == -1 {
		next := eq.nextOffset
		if fromOffset > next {
			next = fromOffset
		}
		return []models.Event{}, next, false
	}

	endIdx := startIdx + limit
	if endIdx > len(eq.events) {
		endIdx = len(eq.events)
	}

	result := make([]models.Event, endIdx-startIdx)
	copy(result, eq.events[startIdx:endIdx])

	return result, result[len(result)-1].Offset + 1, endIdx < len(eq.events)
}

// WaitForEvents blocks until an event at or after fromOffset exists, the
// timeout elapses or ctx is done. It reports whether events are available.
func (eq *EventQueue) WaitForEvents(ctx context.Context, fromOffset int64, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		eq.mu.RLock()
		available := len(eq.events) > 0 && eq.nextOffset > fromOffset
		signal := eq.signal
		eq.mu.RUnlock()

		if available {
			return true
		}

		select {
		case <-signal:
		case <-timer.C:
			return false
		case <-ctx.Done():
			return false
		}
	}
}

// GetCurrentOffset returns the next offset to be assigned
func (eq *EventQueue) GetCurrentOffset() int64 {
	eq.mu.RLock()
	defer eq.mu.RUnlock()
	return eq.nextOffset
}

// Len returns the number of retained events
func (eq *EventQueue) Len() int {
	eq.mu.RLock()
	defer eq.mu.RUnlock()
	return len(eq.events)
}

// Close flushes the queue to disk
func (eq *EventQueue) Close() error {
	eq.logger.Info("Shutting down event queue")

	eq.mu.Lock()
	defer eq.mu.Unlock()
	return eq.saveLocked()
}

func (eq *EventQueue) loadFromFile() error {
	data, err := os.ReadFile(eq.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read events file: %w", err)
	}

	var fileData queueFile
	if err := json.Unmarshal(data, &fileData); err != nil {
		return fmt.Errorf("failed to unmarshal events: %w", err)
	}

	if fileData.Events == nil {
		fileData.Events = make([]models.Event, 0)
	}
	eq.events = fileData.Events
	eq.nextOffset = fileData.NextOffset

	return nil
}

// saveLocked writes the queue atomically. Callers hold eq.mu.
func (eq *EventQueue) saveLocked() error {
	if eq.filePath == "" {
		return nil
	}

	data, err := json.MarshalIndent(queueFile{
		Events:     eq.events,
		NextOffset: eq.nextOffset,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}

	tempFile := eq.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp events file: %w", err)
	}

	if err := os.Rename(tempFile, eq.filePath); err != nil {
		return fmt.Errorf("failed to rename temp events file: %w", err)
	}

	return nil
}
