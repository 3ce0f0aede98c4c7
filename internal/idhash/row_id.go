package idhash

import (
	"fmt"

	"github.com/google/uuid"

	"vault-indexer/internal/domain"
)

// namespace scopes every derived id to this indexer.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("vault-indexer/rows"))

// RowID computes a deterministic row id using SHA1 (UUID version 5).
// Formula: UUIDv5(namespace, table|tx_digest|event_seq)
// Replaying the same ledger event always yields the same id.
func RowID(table, txDigest string, eventSeq uint64) uuid.UUID {
	data := fmt.Sprintf("%s|%s|%d", table, txDigest, eventSeq)
	return uuid.NewSHA1(namespace, []byte(data))
}

// DepositID derives the id of a deposit row from its event.
func DepositID(src domain.Provenance) uuid.UUID {
	return RowID("deposits", src.TxDigest, src.EventSeq)
}

// WithdrawalID derives the id of a withdrawal row from its event.
func WithdrawalID(src domain.Provenance) uuid.UUID {
	return RowID("withdrawals", src.TxDigest, src.EventSeq)
}

// DeadLetterID derives the id of a dead letter. The event type is part of
// the key because one position is polled once per type.
func DeadLetterID(eventType string, pos domain.Position) uuid.UUID {
	return RowID("dead_letters|"+eventType, pos.TxDigest, pos.EventSeq)
}
