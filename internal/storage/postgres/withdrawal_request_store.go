package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"vault-indexer/internal/domain"
	"vault-indexer/internal/storage"
)

// WithdrawalRequestStore is a PostgreSQL implementation of storage.WithdrawalRequestStore.
type WithdrawalRequestStore struct {
	pool *Pool
}

// NewWithdrawalRequestStore creates a new PostgreSQL withdrawal request store.
func NewWithdrawalRequestStore(pool *Pool) *WithdrawalRequestStore {
	return &WithdrawalRequestStore{pool: pool}
}

const requestColumns = `request_id, vault_id, amount, requester, reason, status, approved_by,
	created_at_ms, audit_at_ms, tx_digest, event_seq, event_timestamp_ms, indexed_at, updated_at`

// Insert adds a new request. Returns ErrDuplicateKey if request_id exists.
func (s *WithdrawalRequestStore) Insert(ctx context.Context, r *domain.WithdrawalRequest) (err error) {
	if r == nil || r.RequestID == "" || !r.Status.IsValid() {
		return storage.ErrInvalidInput
	}
	defer observe("insert_withdrawal_request", time.Now(), &err)

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO withdrawal_requests (
			request_id, vault_id, amount, requester, reason, status, approved_by,
			created_at_ms, audit_at_ms, tx_digest, event_seq, event_timestamp_ms, indexed_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		ON CONFLICT (request_id) DO NOTHING
	`,
		r.RequestID, r.VaultID, r.Amount, r.Requester, r.Reason, string(r.Status), r.ApprovedBy,
		r.CreatedAtMs, r.AuditAtMs, r.Source.TxDigest, int64(r.Source.EventSeq), r.Source.EventTimestampMs,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrDuplicateKey
	}
	return nil
}

// GetByID retrieves a request by its ID. Returns ErrNotFound if not exists.
func (s *WithdrawalRequestStore) GetByID(ctx context.Context, requestID string) (*domain.WithdrawalRequest, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM withdrawal_requests WHERE request_id = $1`, requestID)

	r, err := scanRequest(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return r, nil
}

// Transition moves a request along its lifecycle.
// The row is locked with SELECT ... FOR UPDATE so the status check and the
// write are atomic against concurrent writers.
func (s *WithdrawalRequestStore) Transition(ctx context.Context, in domain.TransitionInput) (changed bool, err error) {
	if in.RequestID == "" {
		return false, storage.ErrInvalidInput
	}
	defer observe("transition_withdrawal_request", time.Now(), &err)

	err = s.pool.inTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			SELECT `+requestColumns+`
			FROM withdrawal_requests
			WHERE request_id = $1
			FOR UPDATE
		`, in.RequestID)

		r, err := scanRequest(row)
		if err != nil {
			if isNotFoundError(err) {
				return storage.ErrNotFound
			}
			return err
		}

		changed, err = domain.ApplyTransition(r, in)
		if err != nil || !changed {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE withdrawal_requests
			SET status = $2,
			    approved_by = $3,
			    audit_at_ms = $4,
			    updated_at = NOW()
			WHERE request_id = $1
		`, r.RequestID, string(r.Status), r.ApprovedBy, r.AuditAtMs)
		return err
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

// List returns one page of requests, newest first.
func (s *WithdrawalRequestStore) List(ctx context.Context, f storage.WithdrawalRequestFilter, page storage.PageRequest) (result []*domain.WithdrawalRequest, total int, err error) {
	defer observe("list_withdrawal_requests", time.Now(), &err)

	var w whereBuilder
	w.addIf("vault_id = ?", f.VaultID)
	w.addIf("requester = ?", f.Requester)
	w.addIf("status = ?", string(f.Status))

	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM withdrawal_requests `+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	where := w.sql()
	limit := w.page(page)
	rows, err := s.pool.Query(ctx, `
		SELECT `+requestColumns+`
		FROM withdrawal_requests `+where+`
		ORDER BY created_at_ms DESC, request_id ASC
		`+limit, w.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, r)
	}
	return result, total, rows.Err()
}

func scanRequest(row rowScanner) (*domain.WithdrawalRequest, error) {
	var (
		r      domain.WithdrawalRequest
		status string
		seq    int64
	)
	err := row.Scan(
		&r.RequestID, &r.VaultID, &r.Amount, &r.Requester, &r.Reason, &status, &r.ApprovedBy,
		&r.CreatedAtMs, &r.AuditAtMs, &r.Source.TxDigest, &seq, &r.Source.EventTimestampMs, &r.IndexedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Status = domain.RequestStatus(status)
	r.Source.EventSeq = uint64(seq)
	return &r, nil
}

// Verify interface compliance at compile time.
var _ storage.WithdrawalRequestStore = (*WithdrawalRequestStore)(nil)
