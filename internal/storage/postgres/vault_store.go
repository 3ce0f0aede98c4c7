package postgres

import (
	"context"
	"time"

	"vault-indexer/internal/domain"
	"vault-indexer/internal/storage"
)

// VaultStore is a PostgreSQL implementation of storage.VaultStore.
type VaultStore struct {
	pool *Pool
}

// NewVaultStore creates a new PostgreSQL vault store.
func NewVaultStore(pool *Pool) *VaultStore {
	return &VaultStore{pool: pool}
}

const vaultColumns = `vault_id, name, owner, beneficiary, target_amount, created_at_ms, deadline_ms,
	duration_days, current_balance, tx_digest, event_seq, event_timestamp_ms, indexed_at`

// Insert adds a new vault. Returns ErrDuplicateKey if vault_id exists.
// ON CONFLICT DO NOTHING keeps the stored row; zero affected rows means duplicate.
func (s *VaultStore) Insert(ctx context.Context, v *domain.Vault) (err error) {
	if v == nil || v.VaultID == "" {
		return storage.ErrInvalidInput
	}
	defer observe("insert_vault", time.Now(), &err)

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO vaults (
			vault_id, name, owner, beneficiary, target_amount, created_at_ms, deadline_ms,
			duration_days, current_balance, tx_digest, event_seq, event_timestamp_ms, indexed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		ON CONFLICT (vault_id) DO NOTHING
	`,
		v.VaultID, v.Name, v.Owner, v.Beneficiary, v.TargetAmount, v.CreatedAtMs, v.DeadlineMs,
		v.DurationDays, v.CurrentBalance, v.Source.TxDigest, int64(v.Source.EventSeq), v.Source.EventTimestampMs,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrDuplicateKey
	}
	return nil
}

// GetByID retrieves a vault by its ID. Returns ErrNotFound if not exists.
func (s *VaultStore) GetByID(ctx context.Context, vaultID string) (*domain.Vault, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+vaultColumns+` FROM vaults WHERE vault_id = $1`, vaultID)

	v, err := scanVault(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

// List returns one page of vaults, newest first.
func (s *VaultStore) List(ctx context.Context, f storage.VaultFilter, page storage.PageRequest) (result []*domain.Vault, total int, err error) {
	defer observe("list_vaults", time.Now(), &err)

	var w whereBuilder
	w.addIf("owner = ?", f.Owner)
	w.addIf("beneficiary = ?", f.Beneficiary)

	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM vaults `+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	where := w.sql()
	limit := w.page(page)
	rows, err := s.pool.Query(ctx, `
		SELECT `+vaultColumns+`
		FROM vaults `+where+`
		ORDER BY created_at_ms DESC, vault_id ASC
		`+limit, w.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		v, err := scanVault(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, v)
	}
	return result, total, rows.Err()
}

func scanVault(row rowScanner) (*domain.Vault, error) {
	var (
		v   domain.Vault
		seq int64
	)
	err := row.Scan(
		&v.VaultID, &v.Name, &v.Owner, &v.Beneficiary, &v.TargetAmount, &v.CreatedAtMs, &v.DeadlineMs,
		&v.DurationDays, &v.CurrentBalance, &v.Source.TxDigest, &seq, &v.Source.EventTimestampMs, &v.IndexedAt,
	)
	if err != nil {
		return nil, err
	}
	v.Source.EventSeq = uint64(seq)
	return &v, nil
}

// Verify interface compliance at compile time.
var _ storage.VaultStore = (*VaultStore)(nil)
