package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"vault-indexer/internal/domain"
	"vault-indexer/internal/storage"
)

// DepositStore is an in-memory implementation of storage.DepositStore.
type DepositStore struct {
	mu   sync.RWMutex
	data map[domain.Position]*domain.Deposit // keyed by (tx_digest, event_seq)
}

// NewDepositStore creates a new in-memory deposit store.
func NewDepositStore() *DepositStore {
	return &DepositStore{
		data: make(map[domain.Position]*domain.Deposit),
	}
}

// Insert adds a new deposit. Returns ErrDuplicateKey if (tx_digest, event_seq) exists.
func (s *DepositStore) Insert(_ context.Context, d *domain.Deposit) error {
	if d == nil || d.VaultID == "" || d.Source.TxDigest == "" {
		return storage.ErrInvalidInput
	}

	key := domain.Position{TxDigest: d.Source.TxDigest, EventSeq: d.Source.EventSeq}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	depositCopy := *d
	if depositCopy.ID == uuid.Nil {
		depositCopy.ID = uuid.New()
	}
	if depositCopy.IndexedAt.IsZero() {
		depositCopy.IndexedAt = time.Now().UTC()
	}
	s.data[key] = &depositCopy
	return nil
}

// ListByVault returns one page of deposits for a vault, newest first.
func (s *DepositStore) ListByVault(_ context.Context, vaultID string, page storage.PageRequest) ([]*domain.Deposit, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*domain.Deposit
	for _, d := range s.data {
		if d.VaultID == vaultID {
			depositCopy := *d
			matched = append(matched, &depositCopy)
		}
	}

	sortNewestFirst(matched, func(d *domain.Deposit) (int64, domain.Provenance) {
		return d.CreatedAtMs, d.Source
	})

	start, end := page.Window(len(matched))
	return matched[start:end], len(matched), nil
}

// Verify interface compliance at compile time.
var _ storage.DepositStore = (*DepositStore)(nil)
