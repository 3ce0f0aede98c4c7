package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"vault-indexer/internal/domain"
	"vault-indexer/internal/storage"
)

// WithdrawalStore is a PostgreSQL implementation of storage.WithdrawalStore.
type WithdrawalStore struct {
	pool *Pool
}

// NewWithdrawalStore creates a new PostgreSQL withdrawal store.
func NewWithdrawalStore(pool *Pool) *WithdrawalStore {
	return &WithdrawalStore{pool: pool}
}

// Insert adds a new withdrawal. Returns ErrDuplicateKey if (tx_digest, event_seq) exists.
func (s *WithdrawalStore) Insert(ctx context.Context, w *domain.Withdrawal) (err error) {
	if w == nil || w.VaultID == "" || w.RequestID == "" || w.Source.TxDigest == "" {
		return storage.ErrInvalidInput
	}
	defer observe("insert_withdrawal", time.Now(), &err)

	id := w.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO withdrawals (
			id, request_id, vault_id, amount, left_balance, withdrawer, created_at_ms,
			tx_digest, event_seq, event_timestamp_ms, indexed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
	`,
		id, w.RequestID, w.VaultID, w.Amount, w.LeftBalance, w.Withdrawer, w.CreatedAtMs,
		w.Source.TxDigest, int64(w.Source.EventSeq), w.Source.EventTimestampMs,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return err
	}
	return nil
}

// ListByVault returns one page of withdrawals for a vault, newest first.
func (s *WithdrawalStore) ListByVault(ctx context.Context, vaultID string, page storage.PageRequest) (result []*domain.Withdrawal, total int, err error) {
	defer observe("list_withdrawals", time.Now(), &err)

	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM withdrawals WHERE vault_id = $1`, vaultID).Scan(&total); err != nil {
		return nil, 0, err
	}

	p := page.Normalize()
	rows, err := s.pool.Query(ctx, `
		SELECT id, request_id, vault_id, amount, left_balance, withdrawer, created_at_ms,
		       tx_digest, event_seq, event_timestamp_ms, indexed_at
		FROM withdrawals
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
			w   domain.Withdrawal
			seq int64
		)
		if err := rows.Scan(
			&w.ID, &w.RequestID, &w.VaultID, &w.Amount, &w.LeftBalance, &w.Withdrawer, &w.CreatedAtMs,
			&w.Source.TxDigest, &seq, &w.Source.EventTimestampMs, &w.IndexedAt,
		); err != nil {
			return nil, 0, err
		}
		w.Source.EventSeq = uint64(seq)
		result = append(result, &w)
	}
	return result, total, rows.Err()
}

// Verify interface compliance at compile time.
var _ storage.WithdrawalStore = (*WithdrawalStore)(nil)
