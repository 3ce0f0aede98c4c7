package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"vault-indexer/internal/domain"
	"vault-indexer/internal/storage"
)

type deadLetterKey struct {
	eventType string
	pos       domain.Position
}

// DeadLetterStore is an in-memory implementation of storage.DeadLetterStore.
type DeadLetterStore struct {
	mu    sync.RWMutex
	data  map[uuid.UUID]*domain.DeadLetter
	byKey map[deadLetterKey]uuid.UUID // UNIQUE (event_type, tx_digest, event_seq)
}

// NewDeadLetterStore creates a new in-memory dead letter store.
func NewDeadLetterStore() *DeadLetterStore {
	return &DeadLetterStore{
		data:  make(map[uuid.UUID]*domain.DeadLetter),
		byKey: make(map[deadLetterKey]uuid.UUID),
	}
}

// Insert parks a failed event or records another attempt on an existing one.
func (s *DeadLetterStore) Insert(_ context.Context, d *domain.DeadLetter) error {
	if d == nil || d.EventType == "" || d.Position.TxDigest == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	key := deadLetterKey{eventType: d.EventType, pos: d.Position}
	if id, exists := s.byKey[key]; exists {
		existing := s.data[id]
		existing.Reason = d.Reason
		existing.ErrorClass = d.ErrorClass
		existing.Retryable = d.Retryable
		existing.Attempts++
		existing.LastAttemptAt = now
		return nil
	}

	dlCopy := copyDeadLetter(d)
	if dlCopy.ID == uuid.Nil {
		dlCopy.ID = uuid.New()
	}
	if dlCopy.Attempts == 0 {
		dlCopy.Attempts = 1
	}
	if dlCopy.FirstSeenAt.IsZero() {
		dlCopy.FirstSeenAt = now
	}
	dlCopy.LastAttemptAt = now
	s.data[dlCopy.ID] = dlCopy
	s.byKey[key] = dlCopy.ID
	return nil
}

// ListPending returns unresolved retryable dead letters, oldest first.
func (s *DeadLetterStore) ListPending(_ context.Context, limit int) ([]*domain.DeadLetter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DeadLetter
	for _, d := range s.data {
		if d.Retryable && d.ResolvedAt == nil {
			result = append(result, copyDeadLetter(d))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].FirstSeenAt.Equal(result[j].FirstSeenAt) {
			return result[i].FirstSeenAt.Before(result[j].FirstSeenAt)
		}
		return result[i].Position.EventSeq < result[j].Position.EventSeq
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// RecordAttempt bumps the attempt counter after a failed retry.
func (s *DeadLetterStore) RecordAttempt(_ context.Context, id uuid.UUID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, exists := s.data[id]
	if !exists {
		return storage.ErrNotFound
	}
	d.Attempts++
	d.Reason = reason
	d.LastAttemptAt = time.Now().UTC()
	return nil
}

// MarkResolved flags a dead letter as successfully re-applied.
func (s *DeadLetterStore) MarkResolved(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, exists := s.data[id]
	if !exists {
		return storage.ErrNotFound
	}
	if d.ResolvedAt == nil {
		now := time.Now().UTC()
		d.ResolvedAt = &now
	}
	return nil
}

// List returns one page of dead letters, newest first.
func (s *DeadLetterStore) List(_ context.Context, f storage.DeadLetterFilter, page storage.PageRequest) ([]*domain.DeadLetter, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*domain.DeadLetter
	for _, d := range s.data {
		if f.EventType != "" && d.EventType != f.EventType {
			continue
		}
		if f.Resolved != nil && (d.ResolvedAt != nil) != *f.Resolved {
			continue
		}
		matched = append(matched, copyDeadLetter(d))
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].FirstSeenAt.After(matched[j].FirstSeenAt)
	})

	start, end := page.Window(len(matched))
	return matched[start:end], len(matched), nil
}

func copyDeadLetter(d *domain.DeadLetter) *domain.DeadLetter {
	c := *d
	if d.Payload != nil {
		c.Payload = append([]byte(nil), d.Payload...)
	}
	if d.TimestampMs != nil {
		v := *d.TimestampMs
		c.TimestampMs = &v
	}
	if d.ResolvedAt != nil {
		v := *d.ResolvedAt
		c.ResolvedAt = &v
	}
	return &c
}

// Verify interface compliance at compile time.
var _ storage.DeadLetterStore = (*DeadLetterStore)(nil)
