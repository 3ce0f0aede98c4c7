package decoder

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vault-indexer/internal/domain"
)

func rawEvent(kind domain.EventKind, payload string) *domain.RawEvent {
	ts := int64(1_700_000_000_000)
	return &domain.RawEvent{
		Type:        kind.TypeTag("0xpkg", "bucky_bank"),
		Position:    domain.Position{TxDigest: "digest", EventSeq: 2},
		TimestampMs: &ts,
		Payload:     json.RawMessage(payload),
	}
}

func requireDecodeError(t *testing.T, err error, field string) {
	t.Helper()
	require.Error(t, err)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, field, de.Field)
}

func TestDecodeVaultCreated(t *testing.T) {
	raw := rawEvent(domain.EventVaultCreated, `{
		"bucky_bank_id": "0xV1",
		"name": "bike",
		"parent": "0xparent",
		"child": "0xchild",
		"target_amount": "1000000",
		"created_at_ms": "1700000000000",
		"deadline_ms": "1700086400000",
		"duration_days": "1",
		"current_balance_value": "0"
	}`)

	ev, err := DecodeVaultCreated(raw)
	require.NoError(t, err)

	v := ev.Vault
	assert.Equal(t, "0xV1", v.VaultID)
	assert.Equal(t, "bike", v.Name)
	assert.Equal(t, "0xparent", v.Owner)
	assert.Equal(t, "0xchild", v.Beneficiary)
	assert.Equal(t, int64(1_000_000), v.TargetAmount)
	assert.Equal(t, int64(1_700_086_400_000), v.DeadlineMs)
	assert.Equal(t, int64(1), v.DurationDays)
	assert.Equal(t, "digest", v.Source.TxDigest)
	assert.Equal(t, uint64(2), v.Source.EventSeq)
}

func TestDecodeVaultCreated_CanonicalNamesAndNumbers(t *testing.T) {
	raw := rawEvent(domain.EventVaultCreated, `{
		"vault_id": {"id": "0xV2"},
		"owner": "0xo",
		"beneficiary": "0xb",
		"target_amount": 500,
		"deadline_ms": 9000
	}`)

	ev, err := DecodeVaultCreated(raw)
	require.NoError(t, err)
	assert.Equal(t, "0xV2", ev.Vault.VaultID)
	assert.Equal(t, int64(500), ev.Vault.TargetAmount)
	// created_at_ms falls back to the ledger timestamp
	assert.Equal(t, *raw.TimestampMs, ev.Vault.CreatedAtMs)
}

func TestDecodeVaultCreated_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		field   string
	}{
		{"missing target_amount", `{"vault_id":"v","owner":"o","beneficiary":"b","deadline_ms":"1"}`, "target_amount"},
		{"non-numeric deadline_ms", `{"vault_id":"v","owner":"o","beneficiary":"b","target_amount":"1","deadline_ms":"soon"}`, "deadline_ms"},
		{"negative amount", `{"vault_id":"v","owner":"o","beneficiary":"b","target_amount":"-1","deadline_ms":"1"}`, "target_amount"},
		{"overflow", `{"vault_id":"v","owner":"o","beneficiary":"b","target_amount":"18446744073709551615","deadline_ms":"1"}`, "target_amount"},
		{"fractional", `{"vault_id":"v","owner":"o","beneficiary":"b","target_amount":1.5,"deadline_ms":"1"}`, "target_amount"},
		{"missing vault id", `{"owner":"o","beneficiary":"b","target_amount":"1","deadline_ms":"1"}`, "vault_id"},
		{"owner wrong type", `{"vault_id":"v","owner":7,"beneficiary":"b","target_amount":"1","deadline_ms":"1"}`, "owner"},
		{"null beneficiary", `{"vault_id":"v","owner":"o","beneficiary":null,"target_amount":"1","deadline_ms":"1"}`, "beneficiary"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeVaultCreated(rawEvent(domain.EventVaultCreated, tt.payload))
			requireDecodeError(t, err, tt.field)
		})
	}
}

func TestDecode_PayloadNotObject(t *testing.T) {
	for _, payload := range []string{``, `null`, `[]`, `"text"`} {
		_, err := Decode(domain.EventDepositMade, rawEvent(domain.EventDepositMade, payload))
		assert.True(t, IsDecodeError(err), "payload %q", payload)
	}
}

func TestDecodeDeposit(t *testing.T) {
	ev, err := DecodeDeposit(rawEvent(domain.EventDepositMade,
		`{"bucky_bank_id":"0xV1","amount":"500000","depositor":"0xparent","created_at_ms":"1700000001000"}`))
	require.NoError(t, err)

	assert.Equal(t, "0xV1", ev.Deposit.VaultID)
	assert.Equal(t, int64(500_000), ev.Deposit.Amount)
	assert.Equal(t, int64(1_700_000_001_000), ev.Deposit.CreatedAtMs)
}

func TestDecodeDeposit_NoTimestampAnywhere(t *testing.T) {
	raw := rawEvent(domain.EventDepositMade, `{"vault_id":"v","amount":"1","depositor":"d"}`)
	raw.TimestampMs = nil

	_, err := DecodeDeposit(raw)
	requireDecodeError(t, err, "created_at_ms")
}

func TestDecodeWithdrawalRequested_StatusForms(t *testing.T) {
	base := `"request_id":"0xR1","bucky_bank_id":"0xV1","amount":"200000","requester":"0xchild","reason":"books"`

	tests := []struct {
		name   string
		status string
		want   domain.RequestStatus
	}{
		{"plain string", `,"status":"Approved"`, domain.StatusApproved},
		{"tagged variant", `,"status":{"variant":"Approved","fields":{}}`, domain.StatusApproved},
		{"tagged pending", `,"status":{"variant":"Pending","fields":{}}`, domain.StatusPending},
		{"absent", ``, domain.StatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := DecodeWithdrawalRequested(rawEvent(domain.EventWithdrawalRequested, `{`+base+tt.status+`}`))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev.Request.Status)
			assert.Equal(t, "books", ev.Request.Reason)
			assert.Nil(t, ev.Request.ApprovedBy)
		})
	}
}

func TestDecodeWithdrawalRequested_UnknownVariant(t *testing.T) {
	payloads := []string{
		`{"request_id":"r","vault_id":"v","amount":"1","requester":"q","status":"Frozen"}`,
		`{"request_id":"r","vault_id":"v","amount":"1","requester":"q","status":{"variant":"Frozen","fields":{}}}`,
		`{"request_id":"r","vault_id":"v","amount":"1","requester":"q","status":{"fields":{}}}`,
		`{"request_id":"r","vault_id":"v","amount":"1","requester":"q","status":3}`,
	}

	for _, p := range payloads {
		_, err := DecodeWithdrawalRequested(rawEvent(domain.EventWithdrawalRequested, p))
		requireDecodeError(t, err, "status")
	}
}

func TestDecodeWithdrawalAudit(t *testing.T) {
	ev, err := DecodeWithdrawalAudit(domain.EventWithdrawalApproved, rawEvent(domain.EventWithdrawalApproved,
		`{"request_id":"0xR1","bucky_bank_id":"0xV1","approved_by":"0xauditor","audit_at_ms":"1700000002000"}`))
	require.NoError(t, err)

	assert.Equal(t, domain.EventWithdrawalApproved, ev.Kind())
	assert.Equal(t, domain.StatusApproved, ev.Status)
	require.NotNil(t, ev.Auditor)
	assert.Equal(t, "0xauditor", *ev.Auditor)
	require.NotNil(t, ev.AuditAtMs)
	assert.Equal(t, int64(1_700_000_002_000), *ev.AuditAtMs)

	rejected, err := DecodeWithdrawalAudit(domain.EventWithdrawalRejected, rawEvent(domain.EventWithdrawalRejected,
		`{"request_id":"0xR1","auditor":"0xauditor"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, rejected.Status)
	// audit time falls back to the ledger timestamp
	require.NotNil(t, rejected.AuditAtMs)
}

func TestDecodeWithdrawalAudit_Invalid(t *testing.T) {
	_, err := DecodeWithdrawalAudit(domain.EventWithdrawalApproved, rawEvent(domain.EventWithdrawalApproved, `{"request_id":"r"}`))
	requireDecodeError(t, err, "auditor")

	_, err = DecodeWithdrawalAudit(domain.EventWithdrawalApproved, rawEvent(domain.EventWithdrawalApproved,
		`{"request_id":"r","auditor":"a","status":{"variant":"Rejected","fields":{}}}`))
	requireDecodeError(t, err, "status")

	_, err = DecodeWithdrawalAudit(domain.EventDepositMade, rawEvent(domain.EventDepositMade, `{}`))
	assert.True(t, IsDecodeError(err))
}

func TestDecodeWithdrawalCancelled(t *testing.T) {
	ev, err := DecodeWithdrawalCancelled(rawEvent(domain.EventWithdrawalCancelled, `{"request_id":"0xR1"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, ev.Status)
	assert.Nil(t, ev.Auditor)
}

func TestDecodeWithdrawn(t *testing.T) {
	ev, err := DecodeWithdrawn(rawEvent(domain.EventWithdrawn,
		`{"request_id":"0xR1","bucky_bank_id":"0xV1","amount":"200000","left_balance":"300000","withdrawer":"0xchild"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(300_000), ev.Withdrawal.LeftBalance)
	assert.Equal(t, "0xR1", ev.Withdrawal.RequestID)

	_, err = DecodeWithdrawn(rawEvent(domain.EventWithdrawn,
		`{"request_id":"0xR1","vault_id":"0xV1","amount":"200000","withdrawer":"0xchild"}`))
	requireDecodeError(t, err, "left_balance")
}

func TestDecodeRaw(t *testing.T) {
	ev, err := DecodeRaw(rawEvent(domain.EventDepositMade, `{"vault_id":"v","amount":"1","depositor":"d"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.EventDepositMade, ev.Kind())
	assert.Equal(t, "digest", ev.Provenance().TxDigest)

	raw := rawEvent(domain.EventDepositMade, `{}`)
	raw.Type = "0xpkg::bucky_bank::Unrelated"
	ev, err = DecodeRaw(raw)
	assert.Nil(t, ev)
	assert.True(t, IsDecodeError(err))
	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.Contains(t, err.Error(), "unknown event kind")

	_, err = Decode(domain.EventKind("Unrelated"), raw)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestDecode_ErrorLeavesNilEvent(t *testing.T) {
	ev, err := Decode(domain.EventVaultCreated, rawEvent(domain.EventVaultCreated, `{}`))
	assert.Nil(t, ev)
	assert.Error(t, err)
}
