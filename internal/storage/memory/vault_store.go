package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"vault-indexer/internal/domain"
	"vault-indexer/internal/storage"
)

// VaultStore is an in-memory implementation of storage.VaultStore.
type VaultStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Vault // keyed by vault_id
}

// NewVaultStore creates a new in-memory vault store.
func NewVaultStore() *VaultStore {
	return &VaultStore{
		data: make(map[string]*domain.Vault),
	}
}

// Insert adds a new vault. Returns ErrDuplicateKey if vault_id exists.
func (s *VaultStore) Insert(_ context.Context, v *domain.Vault) error {
	if v == nil || v.VaultID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[v.VaultID]; exists {
		return storage.ErrDuplicateKey
	}

	vaultCopy := *v
	if vaultCopy.IndexedAt.IsZero() {
		vaultCopy.IndexedAt = time.Now().UTC()
	}
	s.data[v.VaultID] = &vaultCopy
	return nil
}

// GetByID retrieves a vault by its ID. Returns ErrNotFound if not exists.
func (s *VaultStore) GetByID(_ context.Context, vaultID string) (*domain.Vault, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, exists := s.data[vaultID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	vaultCopy := *v
	return &vaultCopy, nil
}

// List returns one page of vaults, newest first.
func (s *VaultStore) List(_ context.Context, f storage.VaultFilter, page storage.PageRequest) ([]*domain.Vault, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*domain.Vault
	for _, v := range s.data {
		if f.Owner != "" && v.Owner != f.Owner {
			continue
		}
		if f.Beneficiary != "" && v.Beneficiary != f.Beneficiary {
			continue
		}
		vaultCopy := *v
		matched = append(matched, &vaultCopy)
	}

	// Sort by created_at_ms DESC, vault_id for ties
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAtMs != matched[j].CreatedAtMs {
			return matched[i].CreatedAtMs > matched[j].CreatedAtMs
		}
		return matched[i].VaultID < matched[j].VaultID
	})

	start, end := page.Window(len(matched))
	return matched[start:end], len(matched), nil
}

// Verify interface compliance at compile time.
var _ storage.VaultStore = (*VaultStore)(nil)
