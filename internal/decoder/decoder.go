// Package decoder turns untyped ledger event payloads into domain records.
// Every function is pure: it never touches storage and fails closed on
// missing or malformed fields.
package decoder

import (
	"vault-indexer/internal/domain"
)

// Payload field aliases. The first name of each group is the canonical one
// and is reported in errors.
var (
	fieldVaultID     = []string{"vault_id", "bucky_bank_id"}
	fieldOwner       = []string{"owner", "parent"}
	fieldBeneficiary = []string{"beneficiary", "child"}
	fieldAuditor     = []string{"auditor", "approved_by"}
	fieldBalance     = []string{"current_balance_value", "current_balance"}
)

// Decode dispatches raw to the decoder for kind.
func Decode(kind domain.EventKind, raw *domain.RawEvent) (domain.Event, error) {
	switch kind {
	case domain.EventVaultCreated:
		return event(DecodeVaultCreated(raw))
	case domain.EventDepositMade:
		return event(DecodeDeposit(raw))
	case domain.EventWithdrawalRequested:
		return event(DecodeWithdrawalRequested(raw))
	case domain.EventWithdrawalApproved, domain.EventWithdrawalRejected:
		return event(DecodeWithdrawalAudit(kind, raw))
	case domain.EventWithdrawalCancelled:
		return event(DecodeWithdrawalCancelled(raw))
	case domain.EventWithdrawn:
		return event(DecodeWithdrawn(raw))
	}
	return nil, &DecodeError{Kind: kind, Err: ErrUnknownKind}
}

// event returns a nil Event whenever err is set.
func event(ev domain.Event, err error) (domain.Event, error) {
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// DecodeRaw resolves the kind from the raw event's type tag and decodes it.
func DecodeRaw(raw *domain.RawEvent) (domain.Event, error) {
	kind, ok := domain.ParseEventKind(raw.Type)
	if !ok {
		return nil, &DecodeError{Kind: domain.EventKind(raw.Type), Err: ErrUnknownKind}
	}
	return Decode(kind, raw)
}

// DecodeVaultCreated decodes a vault creation.
func DecodeVaultCreated(raw *domain.RawEvent) (domain.VaultCreatedEvent, error) {
	r, err := newReader(domain.EventVaultCreated, raw.Payload)
	if err != nil {
		return domain.VaultCreatedEvent{}, err
	}

	vault := domain.Vault{
		VaultID:      r.requiredString(fieldVaultID...),
		Owner:        r.requiredString(fieldOwner...),
		Beneficiary:  r.requiredString(fieldBeneficiary...),
		TargetAmount: r.requiredInt("target_amount"),
		DeadlineMs:   r.requiredInt("deadline_ms"),
		Source:       domain.ProvenanceOf(raw),
	}
	vault.Name, _ = r.optionalString("name")
	vault.CreatedAtMs = r.timestamp(raw, "created_at_ms")
	vault.DurationDays, _ = r.optionalInt("duration_days")
	vault.CurrentBalance, _ = r.optionalInt(fieldBalance...)

	if r.err != nil {
		return domain.VaultCreatedEvent{}, r.err
	}
	return domain.VaultCreatedEvent{Vault: vault}, nil
}

// DecodeDeposit decodes a deposit.
func DecodeDeposit(raw *domain.RawEvent) (domain.DepositMadeEvent, error) {
	r, err := newReader(domain.EventDepositMade, raw.Payload)
	if err != nil {
		return domain.DepositMadeEvent{}, err
	}

	deposit := domain.Deposit{
		VaultID:   r.requiredString(fieldVaultID...),
		Amount:    r.requiredInt("amount"),
		Depositor: r.requiredString("depositor"),
		Source:    domain.ProvenanceOf(raw),
	}
	deposit.CreatedAtMs = r.timestamp(raw, "created_at_ms")

	if r.err != nil {
		return domain.DepositMadeEvent{}, r.err
	}
	return domain.DepositMadeEvent{Deposit: deposit}, nil
}

// DecodeWithdrawalRequested decodes a new withdrawal request.
// A missing status means Pending.
func DecodeWithdrawalRequested(raw *domain.RawEvent) (domain.WithdrawalRequestedEvent, error) {
	r, err := newReader(domain.EventWithdrawalRequested, raw.Payload)
	if err != nil {
		return domain.WithdrawalRequestedEvent{}, err
	}

	req := domain.WithdrawalRequest{
		RequestID: r.requiredString("request_id"),
		VaultID:   r.requiredString(fieldVaultID...),
		Amount:    r.requiredInt("amount"),
		Requester: r.requiredString("requester"),
		Status:    domain.StatusPending,
		Source:    domain.ProvenanceOf(raw),
	}
	req.Reason, _ = r.optionalString("reason")
	if status, ok := r.optionalStatus("status"); ok {
		req.Status = status
	}
	if auditor, ok := r.optionalString(fieldAuditor...); ok {
		req.ApprovedBy = &auditor
	}
	req.CreatedAtMs = r.timestamp(raw, "created_at_ms")
	if at, ok := r.optionalInt("audit_at_ms"); ok {
		req.AuditAtMs = &at
	}

	if r.err != nil {
		return domain.WithdrawalRequestedEvent{}, r.err
	}
	return domain.WithdrawalRequestedEvent{Request: req}, nil
}

// DecodeWithdrawalAudit decodes an approval or rejection.
// The auditor is required; the audit time falls back to the event timestamp.
func DecodeWithdrawalAudit(kind domain.EventKind, raw *domain.RawEvent) (domain.WithdrawalAuditEvent, error) {
	var target domain.RequestStatus
	switch kind {
	case domain.EventWithdrawalApproved:
		target = domain.StatusApproved
	case domain.EventWithdrawalRejected:
		target = domain.StatusRejected
	default:
		return domain.WithdrawalAuditEvent{}, &DecodeError{Kind: kind, Reason: "not an audit event"}
	}

	r, err := newReader(kind, raw.Payload)
	if err != nil {
		return domain.WithdrawalAuditEvent{}, err
	}

	ev := domain.WithdrawalAuditEvent{
		EventKind: kind,
		RequestID: r.requiredString("request_id"),
		Status:    target,
		Source:    domain.ProvenanceOf(raw),
	}
	auditor := r.requiredString(fieldAuditor...)
	ev.Auditor = &auditor
	ev.VaultID, _ = r.optionalString(fieldVaultID...)
	ev.Reason, _ = r.optionalString("reason")
	ev.AuditAtMs = r.auditTime(raw)
	r.checkStatus(target)

	if r.err != nil {
		return domain.WithdrawalAuditEvent{}, r.err
	}
	return ev, nil
}

// DecodeWithdrawalCancelled decodes a cancellation by the requester.
func DecodeWithdrawalCancelled(raw *domain.RawEvent) (domain.WithdrawalAuditEvent, error) {
	r, err := newReader(domain.EventWithdrawalCancelled, raw.Payload)
	if err != nil {
		return domain.WithdrawalAuditEvent{}, err
	}

	ev := domain.WithdrawalAuditEvent{
		EventKind: domain.EventWithdrawalCancelled,
		RequestID: r.requiredString("request_id"),
		Status:    domain.StatusCancelled,
		Source:    domain.ProvenanceOf(raw),
	}
	ev.VaultID, _ = r.optionalString(fieldVaultID...)
	ev.Reason, _ = r.optionalString("reason")
	r.checkStatus(domain.StatusCancelled)

	if r.err != nil {
		return domain.WithdrawalAuditEvent{}, r.err
	}
	return ev, nil
}

// DecodeWithdrawn decodes the consumption of an approved request.
func DecodeWithdrawn(raw *domain.RawEvent) (domain.WithdrawnEvent, error) {
	r, err := newReader(domain.EventWithdrawn, raw.Payload)
	if err != nil {
		return domain.WithdrawnEvent{}, err
	}

	w := domain.Withdrawal{
		RequestID:   r.requiredString("request_id"),
		VaultID:     r.requiredString(fieldVaultID...),
		Amount:      r.requiredInt("amount"),
		LeftBalance: r.requiredInt("left_balance"),
		Withdrawer:  r.requiredString("withdrawer"),
		Source:      domain.ProvenanceOf(raw),
	}
	w.CreatedAtMs = r.timestamp(raw, "created_at_ms")

	if r.err != nil {
		return domain.WithdrawnEvent{}, r.err
	}
	return domain.WithdrawnEvent{Withdrawal: w}, nil
}

// timestamp reads a millisecond field, falling back to the ledger timestamp.
func (r *reader) timestamp(raw *domain.RawEvent, name string) int64 {
	if ms, ok := r.optionalInt(name); ok || r.err != nil {
		return ms
	}
	if raw.TimestampMs != nil {
		return *raw.TimestampMs
	}
	r.fail(name, "missing")
	return 0
}

func (r *reader) auditTime(raw *domain.RawEvent) *int64 {
	if ms, ok := r.optionalInt("audit_at_ms"); ok {
		return &ms
	}
	if r.err == nil && raw.TimestampMs != nil {
		ms := *raw.TimestampMs
		return &ms
	}
	return nil
}

// checkStatus rejects a payload whose own status contradicts the event kind.
func (r *reader) checkStatus(want domain.RequestStatus) {
	if status, ok := r.optionalStatus("status", "new_status"); ok && status != want {
		r.fail("status", "expected "+string(want)+", got "+string(status))
	}
}
