package storage

import (
	"context"

	"github.com/google/uuid"

	"vault-indexer/internal/domain"
)

// CursorStore provides access to cursors storage.
// One row per fully-qualified event type.
type CursorStore interface {
	// Get returns the cursor for an event type. Returns ErrNotFound if none was stored yet.
	Get(ctx context.Context, eventType string) (*domain.Cursor, error)

	// Upsert atomically inserts or moves the cursor for an event type.
	Upsert(ctx context.Context, eventType string, pos domain.Position) (*domain.Cursor, error)

	// List returns all cursors ordered by event type.
	List(ctx context.Context) ([]*domain.Cursor, error)

	// Delete removes the cursor for an event type. Returns ErrNotFound if not exists.
	Delete(ctx context.Context, eventType string) error
}

// VaultStore provides access to vaults storage.
type VaultStore interface {
	// Insert adds a new vault. Returns ErrDuplicateKey if vault_id exists; the stored row is untouched.
	Insert(ctx context.Context, v *domain.Vault) error

	// GetByID retrieves a vault by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, vaultID string) (*domain.Vault, error)

	// List returns one page of vaults, newest first, plus the total match count.
	List(ctx context.Context, f VaultFilter, page PageRequest) ([]*domain.Vault, int, error)
}

// DepositStore provides access to deposits storage.
type DepositStore interface {
	// Insert adds a new deposit. Returns ErrDuplicateKey if (tx_digest, event_seq) exists.
	Insert(ctx context.Context, d *domain.Deposit) error

	// ListByVault returns one page of deposits for a vault, newest first, plus the total.
	ListByVault(ctx context.Context, vaultID string, page PageRequest) ([]*domain.Deposit, int, error)
}

// WithdrawalRequestStore provides access to withdrawal_requests storage.
type WithdrawalRequestStore interface {
	// Insert adds a new request. Returns ErrDuplicateKey if request_id exists.
	Insert(ctx context.Context, r *domain.WithdrawalRequest) error

	// GetByID retrieves a request by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, requestID string) (*domain.WithdrawalRequest, error)

	// Transition moves a request along its lifecycle atomically.
	// Returns ErrNotFound for an unknown request id and domain.ErrIllegalTransition
	// for a rejected edge. The bool reports whether the stored row changed.
	Transition(ctx context.Context, in domain.TransitionInput) (bool, error)

	// List returns one page of requests, newest first, plus the total match count.
	List(ctx context.Context, f WithdrawalRequestFilter, page PageRequest) ([]*domain.WithdrawalRequest, int, error)
}

// WithdrawalStore provides access to withdrawals storage.
type WithdrawalStore interface {
	// Insert adds a new withdrawal. Returns ErrDuplicateKey if (tx_digest, event_seq) exists.
	Insert(ctx context.Context, w *domain.Withdrawal) error

	// ListByVault returns one page of withdrawals for a vault, newest first, plus the total.
	ListByVault(ctx context.Context, vaultID string, page PageRequest) ([]*domain.Withdrawal, int, error)
}

// DeadLetterStore provides access to dead_letters storage.
type DeadLetterStore interface {
	// Insert parks a failed event. A second insert for the same (event_type, position)
	// counts as another attempt and refreshes the failure reason.
	Insert(ctx context.Context, d *domain.DeadLetter) error

	// ListPending returns unresolved retryable dead letters, oldest first.
	ListPending(ctx context.Context, limit int) ([]*domain.DeadLetter, error)

	// RecordAttempt bumps the attempt counter after a failed retry.
	RecordAttempt(ctx context.Context, id uuid.UUID, reason string) error

	// MarkResolved flags a dead letter as successfully re-applied.
	MarkResolved(ctx context.Context, id uuid.UUID) error

	// List returns one page of dead letters, newest first, plus the total match count.
	List(ctx context.Context, f DeadLetterFilter, page PageRequest) ([]*domain.DeadLetter, int, error)
}

// EventArchive stores every fetched raw event for audit and replay.
// Archives are append-only and tolerate re-delivery.
type EventArchive interface {
	// Archive appends a page of raw events.
	Archive(ctx context.Context, events []*domain.RawEvent) error

	// GetByType returns archived events of one type, oldest first.
	GetByType(ctx context.Context, eventType string, limit int) ([]*domain.RawEvent, error)
}
