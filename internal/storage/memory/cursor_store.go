package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"vault-indexer/internal/domain"
	"vault-indexer/internal/storage"
)

// CursorStore is an in-memory implementation of storage.CursorStore.
type CursorStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Cursor // keyed by event_type
	now  func() time.Time
}

// NewCursorStore creates a new in-memory cursor store.
func NewCursorStore() *CursorStore {
	return &CursorStore{
		data: make(map[string]*domain.Cursor),
		now:  time.Now,
	}
}

// Get returns the cursor for an event type. Returns ErrNotFound if none was stored yet.
func (s *CursorStore) Get(_ context.Context, eventType string) (*domain.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.data[eventType]
	if !exists {
		return nil, storage.ErrNotFound
	}

	cursorCopy := *c
	return &cursorCopy, nil
}

// Upsert inserts or moves the cursor for an event type.
func (s *CursorStore) Upsert(_ context.Context, eventType string, pos domain.Position) (*domain.Cursor, error) {
	if eventType == "" || pos.TxDigest == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	c, exists := s.data[eventType]
	if !exists {
		c = &domain.Cursor{EventType: eventType, CreatedAt: now}
		s.data[eventType] = c
	}
	c.Position = pos
	c.UpdatedAt = now

	cursorCopy := *c
	return &cursorCopy, nil
}

// List returns all cursors ordered by event type.
func (s *CursorStore) List(_ context.Context) ([]*domain.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Cursor, 0, len(s.data))
	for _, c := range s.data {
		cursorCopy := *c
		result = append(result, &cursorCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].EventType < result[j].EventType
	})

	return result, nil
}

// Delete removes the cursor for an event type.
func (s *CursorStore) Delete(_ context.Context, eventType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[eventType]; !exists {
		return storage.ErrNotFound
	}
	delete(s.data, eventType)
	return nil
}

// Verify interface compliance at compile time.
var _ storage.CursorStore = (*CursorStore)(nil)
