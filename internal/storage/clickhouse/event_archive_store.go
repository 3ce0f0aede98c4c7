package clickhouse

import (
	"context"
	"fmt"
	"time"

	"vault-indexer/internal/domain"
	"vault-indexer/internal/observability"
	"vault-indexer/internal/storage"
)

// EventArchiveStore implements storage.EventArchive using ClickHouse.
// raw_events is a ReplacingMergeTree, so re-archiving a page is harmless;
// reads use FINAL to hide not-yet-merged duplicates.
type EventArchiveStore struct {
	conn *Conn
}

// NewEventArchiveStore creates a new EventArchiveStore.
func NewEventArchiveStore(conn *Conn) *EventArchiveStore {
	return &EventArchiveStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EventArchive = (*EventArchiveStore)(nil)

// Archive appends a page of raw events in one batch.
func (s *EventArchiveStore) Archive(ctx context.Context, events []*domain.RawEvent) (err error) {
	if len(events) == 0 {
		return nil
	}

	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "archive_events", time.Since(start).Seconds(), err)
	}()

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO raw_events (
			event_type, tx_digest, event_seq, timestamp_ms, sender, payload
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		if e == nil {
			return storage.ErrInvalidInput
		}
		err = batch.Append(
			e.Type, e.Position.TxDigest, e.Position.EventSeq,
			e.TimestampMs, e.Sender, string(e.Payload),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByType returns archived events of one type, oldest first.
func (s *EventArchiveStore) GetByType(ctx context.Context, eventType string, limit int) ([]*domain.RawEvent, error) {
	query := `
		SELECT event_type, tx_digest, event_seq, timestamp_ms, sender, payload
		FROM raw_events FINAL
		WHERE event_type = ?
		ORDER BY timestamp_ms ASC, tx_digest ASC, event_seq ASC
	`
	args := []interface{}{eventType}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, uint64(limit))
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query raw events: %w", err)
	}
	defer rows.Close()

	var result []*domain.RawEvent
	for rows.Next() {
		var (
			e       domain.RawEvent
			payload string
		)
		if err := rows.Scan(&e.Type, &e.Position.TxDigest, &e.Position.EventSeq, &e.TimestampMs, &e.Sender, &payload); err != nil {
			return nil, fmt.Errorf("scan raw event: %w", err)
		}
		e.Payload = []byte(payload)
		result = append(result, &e)
	}

	return result, rows.Err()
}
