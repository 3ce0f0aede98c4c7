package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"vault-indexer/internal/domain"
	"vault-indexer/internal/storage"
)

// DeadLetterStore is a PostgreSQL implementation of storage.DeadLetterStore.
type DeadLetterStore struct {
	pool *Pool
}

// NewDeadLetterStore creates a new PostgreSQL dead letter store.
func NewDeadLetterStore(pool *Pool) *DeadLetterStore {
	return &DeadLetterStore{pool: pool}
}

const deadLetterColumns = `id, event_type, tx_digest, event_seq, timestamp_ms, payload, reason, error_class,
	retryable, attempts, first_seen_at, last_attempt_at, resolved_at`

// Insert parks a failed event or records another attempt on an existing one.
func (s *DeadLetterStore) Insert(ctx context.Context, d *domain.DeadLetter) (err error) {
	if d == nil || d.EventType == "" || d.Position.TxDigest == "" {
		return storage.ErrInvalidInput
	}
	defer observe("insert_dead_letter", time.Now(), &err)

	id := d.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	payload := []byte(d.Payload)
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO dead_letters (
			id, event_type, tx_digest, event_seq, timestamp_ms, payload, reason, error_class,
			retryable, attempts, first_seen_at, last_attempt_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, NOW(), NOW())
		ON CONFLICT (event_type, tx_digest, event_seq) DO UPDATE
		SET reason = EXCLUDED.reason,
		    error_class = EXCLUDED.error_class,
		    retryable = EXCLUDED.retryable,
		    attempts = dead_letters.attempts + 1,
		    last_attempt_at = NOW()
	`,
		id, d.EventType, d.Position.TxDigest, int64(d.Position.EventSeq), d.TimestampMs, payload,
		d.Reason, string(d.ErrorClass), d.Retryable,
	)
	return err
}

// ListPending returns unresolved retryable dead letters, oldest first.
func (s *DeadLetterStore) ListPending(ctx context.Context, limit int) ([]*domain.DeadLetter, error) {
	if limit <= 0 {
		limit = storage.MaxLimit
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+deadLetterColumns+`
		FROM dead_letters
		WHERE resolved_at IS NULL AND retryable
		ORDER BY first_seen_at ASC, event_seq ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.DeadLetter
	for rows.Next() {
		d, err := scanDeadLetter(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

// RecordAttempt bumps the attempt counter after a failed retry.
func (s *DeadLetterStore) RecordAttempt(ctx context.Context, id uuid.UUID, reason string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE dead_letters
		SET attempts = attempts + 1,
		    reason = $2,
		    last_attempt_at = NOW()
		WHERE id = $1
	`, id, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// MarkResolved flags a dead letter as successfully re-applied.
func (s *DeadLetterStore) MarkResolved(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE dead_letters
		SET resolved_at = COALESCE(resolved_at, NOW())
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// List returns one page of dead letters, newest first.
func (s *DeadLetterStore) List(ctx context.Context, f storage.DeadLetterFilter, page storage.PageRequest) (result []*domain.DeadLetter, total int, err error) {
	var w whereBuilder
	w.addIf("event_type = ?", f.EventType)
	if f.Resolved != nil {
		if *f.Resolved {
			w.conds = append(w.conds, "resolved_at IS NOT NULL")
		} else {
			w.conds = append(w.conds, "resolved_at IS NULL")
		}
	}

	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM dead_letters `+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	where := w.sql()
	limit := w.page(page)
	rows, err := s.pool.Query(ctx, `
		SELECT `+deadLetterColumns+`
		FROM dead_letters `+where+`
		ORDER BY first_seen_at DESC, id
		`+limit, w.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		d, err := scanDeadLetter(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, d)
	}
	return result, total, rows.Err()
}

func scanDeadLetter(row rowScanner) (*domain.DeadLetter, error) {
	var (
		d          domain.DeadLetter
		seq        int64
		payload    []byte
		errorClass string
	)
	err := row.Scan(
		&d.ID, &d.EventType, &d.Position.TxDigest, &seq, &d.TimestampMs, &payload, &d.Reason, &errorClass,
		&d.Retryable, &d.Attempts, &d.FirstSeenAt, &d.LastAttemptAt, &d.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Position.EventSeq = uint64(seq)
	d.Payload = payload
	d.ErrorClass = domain.ErrorClass(errorClass)
	return &d, nil
}

// Verify interface compliance at compile time.
var _ storage.DeadLetterStore = (*DeadLetterStore)(nil)
