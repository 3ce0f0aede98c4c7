package domain

import (
	"fmt"
	"time"
)

// Position identifies one event in the ledger's delivery stream.
// Ordering is defined by the ledger; positions are opaque to the indexer.
type Position struct {
	TxDigest string `json:"tx_digest"` // transaction digest (base58)
	EventSeq uint64 `json:"event_seq"` // sequence number within the transaction
}

// String returns "<digest>:<seq>".
func (p Position) String() string {
	return fmt.Sprintf("%s:%d", p.TxDigest, p.EventSeq)
}

// IsZero reports whether the position is unset.
func (p Position) IsZero() bool {
	return p.TxDigest == "" && p.EventSeq == 0
}

// Cursor is the durable resume position of one event type.
// Corresponds to cursors table in PostgreSQL.
type Cursor struct {
	EventType string    `json:"event_type"` // PRIMARY KEY, "<package>::<module>::<Name>"
	Position  Position  `json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
