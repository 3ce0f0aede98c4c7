package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"vault-indexer/internal/domain"
	"vault-indexer/internal/storage"
)

// DepositStore is a PostgreSQL implementation of storage.DepositStore.
type DepositStore struct {
	pool *Pool
}

// NewDepositStore creates a new PostgreSQL deposit store.
func NewDepositStore(pool *Pool) *DepositStore {
	return &DepositStore{pool: pool}
}

// Insert adds a new deposit. Returns ErrDuplicateKey if (tx_digest, event_seq) exists.
func (s *DepositStore) Insert(ctx context.Context, d *domain.Deposit) (err error) {
	if d == nil || d.VaultID == "" || d.Source.TxDigest == "" {
		return storage.ErrInvalidInput
	}
	defer observe("insert_deposit", time.Now(), &err)

	id := d.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO deposits (
			id, vault_id, amount, depositor, created_at_ms,
			tx_digest, event_seq, event_timestamp_ms, indexed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`,
		id, d.VaultID, d.Amount, d.Depositor, d.CreatedAtMs,
		d.Source.TxDigest, int64(d.Source.EventSeq), d.Source.EventTimestampMs,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return err
	}
	return nil
}

// ListByVault returns one page of deposits for a vault, newest first.
func (s *DepositStore) ListByVault(ctx context.Context, vaultID string, page storage.PageRequest) (result []*domain.Deposit, total int, err error) {
	defer observe("list_deposits", time.Now(), &err)

	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM deposits WHERE vault_id = $1`, vaultID).Scan(&total); err != nil {
		return nil, 0, err
	}

	p := page.Normalize()
	rows, err := s.pool.Query(ctx, `
		SELECT id, vault_id, amount, depositor, created_at_ms,
		       tx_digest, event_seq, event_timestamp_ms, indexed_at
		FROM deposits
		WHERE vault_id = $1
		ORDER BY created_at_ms DESC, tx_digest DESC, event_seq DESC
		LIMIT $2 OFFSET $3
	`, vaultID, p.Limit, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			d   domain.Deposit
			seq int64
		)
		if err := rows.Scan(
			&d.ID, &d.VaultID, &d.Amount, &d.Depositor, &d.CreatedAtMs,
			&d.Source.TxDigest, &seq, &d.Source.EventTimestampMs, &d.IndexedAt,
		); err != nil {
			return nil, 0, err
		}
		d.Source.EventSeq = uint64(seq)
		result = append(result, &d)
	}
	return result, total, rows.Err()
}

// Verify interface compliance at compile time.
var _ storage.DepositStore = (*DepositStore)(nil)
