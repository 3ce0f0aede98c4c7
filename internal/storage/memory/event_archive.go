package memory

import (
	"context"
	"sync"

	"vault-indexer/internal/domain"
	"vault-indexer/internal/storage"
)

// EventArchive is an in-memory implementation of storage.EventArchive.
// Re-delivered events are kept once per (type, position).
type EventArchive struct {
	mu     sync.RWMutex
	events []*domain.RawEvent
	seen   map[deadLetterKey]struct{}
}

// NewEventArchive creates a new in-memory event archive.
func NewEventArchive() *EventArchive {
	return &EventArchive{
		seen: make(map[deadLetterKey]struct{}),
	}
}

// Archive appends a page of raw events.
func (a *EventArchive) Archive(_ context.Context, events []*domain.RawEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, e := range events {
		if e == nil {
			return storage.ErrInvalidInput
		}
		key := deadLetterKey{eventType: e.Type, pos: e.Position}
		if _, exists := a.seen[key]; exists {
			continue
		}
		a.seen[key] = struct{}{}
		eventCopy := *e
		eventCopy.Payload = append([]byte(nil), e.Payload...)
		a.events = append(a.events, &eventCopy)
	}
	return nil
}

// GetByType returns archived events of one type in arrival order.
func (a *EventArchive) GetByType(_ context.Context, eventType string, limit int) ([]*domain.RawEvent, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var result []*domain.RawEvent
	for _, e := range a.events {
		if e.Type != eventType {
			continue
		}
		eventCopy := *e
		result = append(result, &eventCopy)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.EventArchive = (*EventArchive)(nil)
