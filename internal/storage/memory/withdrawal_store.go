package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"vault-indexer/internal/domain"
	"vault-indexer/internal/storage"
)

// WithdrawalStore is an in-memory implementation of storage.WithdrawalStore.
type WithdrawalStore struct {
	mu   sync.RWMutex
	data map[domain.Position]*domain.Withdrawal // keyed by (tx_digest, event_seq)
}

// NewWithdrawalStore creates a new in-memory withdrawal store.
func NewWithdrawalStore() *WithdrawalStore {
	return &WithdrawalStore{
		data: make(map[domain.Position]*domain.Withdrawal),
	}
}

// Insert adds a new withdrawal. Returns ErrDuplicateKey if (tx_digest, event_seq) exists.
func (s *WithdrawalStore) Insert(_ context.Context, w *domain.Withdrawal) error {
	if w == nil || w.VaultID == "" || w.RequestID == "" || w.Source.TxDigest == "" {
		return storage.ErrInvalidInput
	}

	key := domain.Position{TxDigest: w.Source.TxDigest, EventSeq: w.Source.EventSeq}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	withdrawalCopy := *w
	if withdrawalCopy.ID == uuid.Nil {
		withdrawalCopy.ID = uuid.New()
	}
	if withdrawalCopy.IndexedAt.IsZero() {
		withdrawalCopy.IndexedAt = time.Now().UTC()
	}
	s.data[key] = &withdrawalCopy
	return nil
}

// ListByVault returns one page of withdrawals for a vault, newest first.
func (s *WithdrawalStore) ListByVault(_ context.Context, vaultID string, page storage.PageRequest) ([]*domain.Withdrawal, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*domain.Withdrawal
	for _, w := range s.data {
		if w.VaultID == vaultID {
			withdrawalCopy := *w
			matched = append(matched, &withdrawalCopy)
		}
	}

	sortNewestFirst(matched, func(w *domain.Withdrawal) (int64, domain.Provenance) {
		return w.CreatedAtMs, w.Source
	})

	start, end := page.Window(len(matched))
	return matched[start:end], len(matched), nil
}

// Verify interface compliance at compile time.
var _ storage.WithdrawalStore = (*WithdrawalStore)(nil)
