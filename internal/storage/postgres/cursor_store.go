package postgres

import (
	"context"
	"time"

	"vault-indexer/internal/domain"
	"vault-indexer/internal/storage"
)

// CursorStore is a PostgreSQL implementation of storage.CursorStore.
type CursorStore struct {
	pool *Pool
}

// NewCursorStore creates a new PostgreSQL cursor store.
func NewCursorStore(pool *Pool) *CursorStore {
	return &CursorStore{pool: pool}
}

// Get returns the cursor for an event type. Returns ErrNotFound if none was stored yet.
func (s *CursorStore) Get(ctx context.Context, eventType string) (*domain.Cursor, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT event_type, tx_digest, event_seq, created_at, updated_at
		FROM cursors
		WHERE event_type = $1
	`, eventType)

	c, err := scanCursor(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

// Upsert atomically inserts or moves the cursor for an event type.
func (s *CursorStore) Upsert(ctx context.Context, eventType string, pos domain.Position) (c *domain.Cursor, err error) {
	if eventType == "" || pos.TxDigest == "" {
		return nil, storage.ErrInvalidInput
	}
	defer observe("upsert_cursor", time.Now(), &err)

	row := s.pool.QueryRow(ctx, `
		INSERT INTO cursors (event_type, tx_digest, event_seq, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (event_type) DO UPDATE
		SET tx_digest = EXCLUDED.tx_digest,
		    event_seq = EXCLUDED.event_seq,
		    updated_at = NOW()
		RETURNING event_type, tx_digest, event_seq, created_at, updated_at
	`, eventType, pos.TxDigest, int64(pos.EventSeq))

	return scanCursor(row)
}

// List returns all cursors ordered by event type.
func (s *CursorStore) List(ctx context.Context) ([]*domain.Cursor, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT event_type, tx_digest, event_seq, created_at, updated_at
		FROM cursors
		ORDER BY event_type
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.Cursor
	for rows.Next() {
		c, err := scanCursor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// Delete removes the cursor for an event type.
func (s *CursorStore) Delete(ctx context.Context, eventType string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM cursors WHERE event_type = $1`, eventType)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanCursor(row rowScanner) (*domain.Cursor, error) {
	var (
		c   domain.Cursor
		seq int64
	)
	if err := row.Scan(&c.EventType, &c.Position.TxDigest, &seq, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Position.EventSeq = uint64(seq)
	return &c, nil
}

// Verify interface compliance at compile time.
var _ storage.CursorStore = (*CursorStore)(nil)
