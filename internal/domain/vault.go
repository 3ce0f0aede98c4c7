package domain

import (
	"time"

	"github.com/google/uuid"
)

// Vault is a savings vault created on the ledger. Immutable after insert.
// Corresponds to vaults table in PostgreSQL.
type Vault struct {
	VaultID        string     `json:"vault_id"`        // PRIMARY KEY, ledger object id
	Name           string     `json:"name"`            // display name (may be empty)
	Owner          string     `json:"owner"`           // creator address
	Beneficiary    string     `json:"beneficiary"`     // beneficiary address
	TargetAmount   int64      `json:"target_amount"`   // savings goal in base units
	CreatedAtMs    int64      `json:"created_at_ms"`   // Unix timestamp in milliseconds
	DeadlineMs     int64      `json:"deadline_ms"`     // Unix timestamp in milliseconds
	DurationDays   int64      `json:"duration_days"`   // planned duration
	CurrentBalance int64      `json:"current_balance"` // balance snapshot at creation
	Source         Provenance `json:"source"`          // creating event
	IndexedAt      time.Time  `json:"indexed_at"`      // row creation time
}

// Deposit is one deposit into a vault. Append-only.
// Corresponds to deposits table in PostgreSQL.
type Deposit struct {
	ID          uuid.UUID  `json:"id"`            // PRIMARY KEY
	VaultID     string     `json:"vault_id"`      // vault reference
	Amount      int64      `json:"amount"`        // deposited amount in base units
	Depositor   string     `json:"depositor"`     // depositor address
	CreatedAtMs int64      `json:"created_at_ms"` // Unix timestamp in milliseconds
	Source      Provenance `json:"source"`        // UNIQUE (tx_digest, event_seq)
	IndexedAt   time.Time  `json:"indexed_at"`
}

// Withdrawal is the consumption of an approved withdrawal request. Append-only.
// Corresponds to withdrawals table in PostgreSQL.
type Withdrawal struct {
	ID          uuid.UUID  `json:"id"`            // PRIMARY KEY
	RequestID   string     `json:"request_id"`    // withdrawal request reference
	VaultID     string     `json:"vault_id"`      // vault reference
	Amount      int64      `json:"amount"`        // withdrawn amount
	LeftBalance int64      `json:"left_balance"`  // vault balance after withdrawal
	Withdrawer  string     `json:"withdrawer"`    // receiving address
	CreatedAtMs int64      `json:"created_at_ms"` // Unix timestamp in milliseconds
	Source      Provenance `json:"source"`        // UNIQUE (tx_digest, event_seq)
	IndexedAt   time.Time  `json:"indexed_at"`
}

// WithdrawalRequest is a gated withdrawal moving through the request lifecycle.
// Status and audit fields are updated in place by later events.
// Corresponds to withdrawal_requests table in PostgreSQL.
type WithdrawalRequest struct {
	RequestID   string        `json:"request_id"`    // PRIMARY KEY, ledger object id
	VaultID     string        `json:"vault_id"`      // vault reference
	Amount      int64         `json:"amount"`        // requested amount
	Requester   string        `json:"requester"`     // requesting address
	Reason      string        `json:"reason"`        // free text
	Status      RequestStatus `json:"status"`        // lifecycle state
	ApprovedBy  *string       `json:"approved_by"`   // auditor address (nullable)
	CreatedAtMs int64         `json:"created_at_ms"` // Unix timestamp in milliseconds
	AuditAtMs   *int64        `json:"audit_at_ms"`   // audit time (nullable)
	Source      Provenance    `json:"source"`        // requesting event
	IndexedAt   time.Time     `json:"indexed_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}
