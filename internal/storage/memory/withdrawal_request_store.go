package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"vault-indexer/internal/domain"
	"vault-indexer/internal/storage"
)

// WithdrawalRequestStore is an in-memory implementation of storage.WithdrawalRequestStore.
type WithdrawalRequestStore struct {
	mu   sync.RWMutex
	data map[string]*domain.WithdrawalRequest // keyed by request_id
}

// NewWithdrawalRequestStore creates a new in-memory withdrawal request store.
func NewWithdrawalRequestStore() *WithdrawalRequestStore {
	return &WithdrawalRequestStore{
		data: make(map[string]*domain.WithdrawalRequest),
	}
}

// Insert adds a new request. Returns ErrDuplicateKey if request_id exists.
func (s *WithdrawalRequestStore) Insert(_ context.Context, r *domain.WithdrawalRequest) error {
	if r == nil || r.RequestID == "" || !r.Status.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RequestID]; exists {
		return storage.ErrDuplicateKey
	}

	stored := copyRequest(r)
	if stored.IndexedAt.IsZero() {
		stored.IndexedAt = time.Now().UTC()
	}
	stored.UpdatedAt = stored.IndexedAt
	s.data[r.RequestID] = stored
	return nil
}

// GetByID retrieves a request by its ID. Returns ErrNotFound if not exists.
func (s *WithdrawalRequestStore) GetByID(_ context.Context, requestID string) (*domain.WithdrawalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[requestID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyRequest(r), nil
}

// Transition moves a request along its lifecycle.
func (s *WithdrawalRequestStore) Transition(_ context.Context, in domain.TransitionInput) (bool, error) {
	if in.RequestID == "" {
		return false, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, exists := s.data[in.RequestID]
	if !exists {
		return false, storage.ErrNotFound
	}

	// Mutate a copy so a rejected transition leaves the row untouched
	next := copyRequest(r)
	changed, err := domain.ApplyTransition(next, in)
	if err != nil {
		return false, err
	}
	if changed {
		next.UpdatedAt = time.Now().UTC()
		s.data[in.RequestID] = next
	}
	return changed, nil
}

// List returns one page of requests, newest first.
func (s *WithdrawalRequestStore) List(_ context.Context, f storage.WithdrawalRequestFilter, page storage.PageRequest) ([]*domain.WithdrawalRequest, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*domain.WithdrawalRequest
	for _, r := range s.data {
		if f.VaultID != "" && r.VaultID != f.VaultID {
			continue
		}
		if f.Requester != "" && r.Requester != f.Requester {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		matched = append(matched, copyRequest(r))
	}

	// Sort by created_at_ms DESC, request_id for ties
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAtMs != matched[j].CreatedAtMs {
			return matched[i].CreatedAtMs > matched[j].CreatedAtMs
		}
		return matched[i].RequestID < matched[j].RequestID
	})

	start, end := page.Window(len(matched))
	return matched[start:end], len(matched), nil
}

// copyRequest deep-copies the nullable fields as well.
func copyRequest(r *domain.WithdrawalRequest) *domain.WithdrawalRequest {
	c := *r
	if r.ApprovedBy != nil {
		v := *r.ApprovedBy
		c.ApprovedBy = &v
	}
	if r.AuditAtMs != nil {
		v := *r.AuditAtMs
		c.AuditAtMs = &v
	}
	return &c
}

// Verify interface compliance at compile time.
var _ storage.WithdrawalRequestStore = (*WithdrawalRequestStore)(nil)
