package domain

import (
	"encoding/json"
	"strings"
)

// EventKind is one of the fixed set of vault events emitted by the ledger.
type EventKind string

const (
	EventVaultCreated        EventKind = "VaultCreated"
	EventDepositMade         EventKind = "DepositMade"
	EventWithdrawalRequested EventKind = "WithdrawalRequested"
	EventWithdrawalApproved  EventKind = "WithdrawalApproved"
	EventWithdrawalRejected  EventKind = "WithdrawalRejected"
	EventWithdrawalCancelled EventKind = "WithdrawalCancelled"
	EventWithdrawn           EventKind = "Withdrawn"
)

// AllEventKinds returns every known kind in dependency order:
// creations first, lifecycle transitions after the records they reference.
func AllEventKinds() []EventKind {
	return []EventKind{
		EventVaultCreated,
		EventDepositMade,
		EventWithdrawalRequested,
		EventWithdrawalApproved,
		EventWithdrawalRejected,
		EventWithdrawalCancelled,
		EventWithdrawn,
	}
}

// String returns the string representation of EventKind.
func (k EventKind) String() string {
	return string(k)
}

// IsValid checks if the kind is a known value.
func (k EventKind) IsValid() bool {
	for _, known := range AllEventKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// eventNames lists the struct names the ledger uses for each kind. The first
// name is what the vault package emits and is the one queried.
var eventNames = map[EventKind][]string{
	EventVaultCreated:        {"BuckyBankCreated", "VaultCreated"},
	EventDepositMade:         {"DepositMade"},
	EventWithdrawalRequested: {"WithdrawalRequested"},
	EventWithdrawalApproved:  {"WithdrawalApproved"},
	EventWithdrawalRejected:  {"WithdrawalRejected"},
	EventWithdrawalCancelled: {"WithdrawalCancelled"},
	EventWithdrawn:           {"Withdrawed", "Withdrawn"},
}

// EventName returns the struct name the vault package emits for the kind.
func (k EventKind) EventName() string {
	if names := eventNames[k]; len(names) > 0 {
		return names[0]
	}
	return string(k)
}

// TypeTag returns the fully-qualified ledger type "<package>::<module>::<Name>"
// with the package address normalized.
func (k EventKind) TypeTag(packageID, module string) string {
	return NormalizeAddress(packageID) + "::" + module + "::" + k.EventName()
}

// ParseEventKind resolves a type tag or bare struct name to a known kind.
// Generic parameters ("Name<T>") are ignored. Returns false for unknown names.
func ParseEventKind(typeTag string) (EventKind, bool) {
	name := typeTag
	if i := strings.Index(name, "<"); i >= 0 {
		name = name[:i]
	}
	if i := strings.LastIndex(name, "::"); i >= 0 {
		name = name[i+2:]
	}
	for _, kind := range AllEventKinds() {
		for _, known := range eventNames[kind] {
			if name == known {
				return kind, true
			}
		}
	}
	return "", false
}

// Matches reports whether typeTag is an event of this kind emitted by the
// given package and module.
func (k EventKind) Matches(typeTag, packageID, module string) bool {
	tag, ok := ParseTypeTag(typeTag)
	if !ok || !tag.SameModule(packageID, module) {
		return false
	}
	kind, ok := ParseEventKind(tag.Name)
	return ok && kind == k
}

// RawEvent is an undecoded event as delivered by the event source.
type RawEvent struct {
	Type        string          // fully-qualified type tag
	Position    Position        // (tx digest, event seq)
	TimestampMs *int64          // ledger timestamp, if known
	Sender      string          // transaction sender
	Payload     json.RawMessage // untyped structured payload
}

// Event is a decoded vault event. The set of implementations is closed.
type Event interface {
	Kind() EventKind
	Provenance() Provenance
	isEvent()
}

// Provenance ties a materialized row back to the ledger event that produced it.
type Provenance struct {
	TxDigest         string `json:"tx_digest"`
	EventSeq         uint64 `json:"event_seq"`
	EventTimestampMs *int64 `json:"event_timestamp_ms,omitempty"`
}

// ProvenanceOf builds provenance from a raw event.
func ProvenanceOf(e *RawEvent) Provenance {
	return Provenance{
		TxDigest:         e.Position.TxDigest,
		EventSeq:         e.Position.EventSeq,
		EventTimestampMs: e.TimestampMs,
	}
}

// VaultCreatedEvent announces a new vault.
type VaultCreatedEvent struct {
	Vault Vault
}

// DepositMadeEvent records funds added to a vault.
type DepositMadeEvent struct {
	Deposit Deposit
}

// WithdrawalRequestedEvent opens a withdrawal request in Pending state.
type WithdrawalRequestedEvent struct {
	Request WithdrawalRequest
}

// WithdrawalAuditEvent approves, rejects or cancels a request.
type WithdrawalAuditEvent struct {
	EventKind EventKind
	RequestID string
	VaultID   string
	Status    RequestStatus
	Auditor   *string
	AuditAtMs *int64
	Reason    string
	Source    Provenance
}

// WithdrawnEvent consumes an approved request.
type WithdrawnEvent struct {
	Withdrawal Withdrawal
}

func (VaultCreatedEvent) Kind() EventKind        { return EventVaultCreated }
func (DepositMadeEvent) Kind() EventKind         { return EventDepositMade }
func (WithdrawalRequestedEvent) Kind() EventKind { return EventWithdrawalRequested }
func (e WithdrawalAuditEvent) Kind() EventKind   { return e.EventKind }
func (WithdrawnEvent) Kind() EventKind           { return EventWithdrawn }

func (e VaultCreatedEvent) Provenance() Provenance        { return e.Vault.Source }
func (e DepositMadeEvent) Provenance() Provenance         { return e.Deposit.Source }
func (e WithdrawalRequestedEvent) Provenance() Provenance { return e.Request.Source }
func (e WithdrawalAuditEvent) Provenance() Provenance     { return e.Source }
func (e WithdrawnEvent) Provenance() Provenance           { return e.Withdrawal.Source }

func (VaultCreatedEvent) isEvent()        {}
func (DepositMadeEvent) isEvent()         {}
func (WithdrawalRequestedEvent) isEvent() {}
func (WithdrawalAuditEvent) isEvent()     {}
func (WithdrawnEvent) isEvent()           {}
