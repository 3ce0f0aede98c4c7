package ingestion

import (
	"encoding/json"
	"fmt"

	"vault-indexer/internal/domain"
	"vault-indexer/internal/storage"
)

const (
	testPackage = "0xpkg"
	testModule  = "bucky_bank"
	testStartMs = int64(1_700_000_000_000)
)

// newRaw builds a raw event of the test package at (digest, seq).
func newRaw(kind domain.EventKind, digest string, seq uint64, payload string) *domain.RawEvent {
	ts := testStartMs + int64(seq)*1000
	return &domain.RawEvent{
		Type:        kind.TypeTag(testPackage, testModule),
		Position:    domain.Position{TxDigest: digest, EventSeq: seq},
		TimestampMs: &ts,
		Sender:      "0xsender",
		Payload:     json.RawMessage(payload),
	}
}

func vaultCreatedPayload(vaultID string, target int64) string {
	return fmt.Sprintf(`{"bucky_bank_id":%q,"name":"bike","parent":"0xparent","child":"0xchild",
		"target_amount":"%d","created_at_ms":"%d","deadline_ms":"%d","duration_days":"1"}`,
		vaultID, target, testStartMs, testStartMs+86_400_000)
}

func depositPayload(vaultID string, amount int64) string {
	return fmt.Sprintf(`{"bucky_bank_id":%q,"amount":"%d","depositor":"0xparent"}`, vaultID, amount)
}

func requestPayload(requestID, vaultID string, amount int64) string {
	return fmt.Sprintf(`{"request_id":%q,"bucky_bank_id":%q,"amount":"%d","requester":"0xchild",
		"reason":"books","status":{"variant":"Pending","fields":{}}}`, requestID, vaultID, amount)
}

func auditPayload(requestID, auditor string) string {
	return fmt.Sprintf(`{"request_id":%q,"approved_by":%q}`, requestID, auditor)
}

func withdrawnPayload(requestID, vaultID string, amount, left int64) string {
	return fmt.Sprintf(`{"request_id":%q,"bucky_bank_id":%q,"amount":"%d","left_balance":"%d","withdrawer":"0xchild"}`,
		requestID, vaultID, amount, left)
}

func pageAll() storage.PageRequest {
	return storage.PageRequest{Page: 1, Limit: storage.MaxLimit}
}

func storageFilterAll() storage.WithdrawalRequestFilter {
	return storage.WithdrawalRequestFilter{}
}
