package ingestion

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"vault-indexer/internal/domain"
	"vault-indexer/internal/idhash"
	"vault-indexer/internal/storage"
)

// Outcome describes the storage effect of applying one event.
type Outcome int

const (
	// OutcomeApplied means the event changed stored state.
	OutcomeApplied Outcome = iota
	// OutcomeDuplicate means the event had already been applied.
	OutcomeDuplicate
	// OutcomeNotFound means the event references a request that is not stored yet.
	OutcomeNotFound
)

// String returns the metric label of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeNotFound:
		return "not_found"
	}
	return "unknown"
}

// Applier writes decoded events into the relational stores.
// Every write is idempotent: re-applying an event yields OutcomeDuplicate.
type Applier struct {
	stores *storage.Stores
}

// NewApplier creates an applier over the given stores.
func NewApplier(stores *storage.Stores) *Applier {
	return &Applier{stores: stores}
}

// Apply dispatches a decoded event to its write.
func (a *Applier) Apply(ctx context.Context, ev domain.Event) (Outcome, error) {
	switch e := ev.(type) {
	case domain.VaultCreatedEvent:
		return a.CreateVault(ctx, &e.Vault)
	case domain.DepositMadeEvent:
		return a.RecordDeposit(ctx, &e.Deposit)
	case domain.WithdrawalRequestedEvent:
		return a.CreateWithdrawalRequest(ctx, &e.Request)
	case domain.WithdrawalAuditEvent:
		return a.TransitionWithdrawalRequest(ctx, domain.TransitionInput{
			RequestID: e.RequestID,
			Target:    e.Status,
			Auditor:   e.Auditor,
			AuditAtMs: e.AuditAtMs,
		})
	case domain.WithdrawnEvent:
		return a.RecordWithdrawal(ctx, &e.Withdrawal)
	}
	return 0, fmt.Errorf("unsupported event %T", ev)
}

// CreateVault inserts a vault. An existing vault id is left untouched.
func (a *Applier) CreateVault(ctx context.Context, v *domain.Vault) (Outcome, error) {
	return insertOutcome(a.stores.Vaults.Insert(ctx, v))
}

// RecordDeposit inserts a deposit keyed by its ledger position.
func (a *Applier) RecordDeposit(ctx context.Context, d *domain.Deposit) (Outcome, error) {
	if d.ID == uuid.Nil {
		d.ID = idhash.DepositID(d.Source)
	}
	return insertOutcome(a.stores.Deposits.Insert(ctx, d))
}

// CreateWithdrawalRequest inserts a request. A replayed request id is OutcomeDuplicate.
func (a *Applier) CreateWithdrawalRequest(ctx context.Context, r *domain.WithdrawalRequest) (Outcome, error) {
	return insertOutcome(a.stores.WithdrawalRequests.Insert(ctx, r))
}

// TransitionWithdrawalRequest moves a request to a new status.
// An unknown request id is reported as OutcomeNotFound, not as an error;
// an illegal edge returns domain.ErrIllegalTransition.
func (a *Applier) TransitionWithdrawalRequest(ctx context.Context, in domain.TransitionInput) (Outcome, error) {
	changed, err := a.stores.WithdrawalRequests.Transition(ctx, in)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return OutcomeNotFound, nil
	case err != nil:
		return 0, err
	case !changed:
		return OutcomeDuplicate, nil
	}
	return OutcomeApplied, nil
}

// RecordWithdrawal stores the withdrawal row and moves its request to Withdrawn.
// The row is written first so a missing request only delays the status change;
// the retry finds the row already present and completes the transition.
func (a *Applier) RecordWithdrawal(ctx context.Context, w *domain.Withdrawal) (Outcome, error) {
	if w.ID == uuid.Nil {
		w.ID = idhash.WithdrawalID(w.Source)
	}
	inserted, err := insertOutcome(a.stores.Withdrawals.Insert(ctx, w))
	if err != nil {
		return 0, err
	}

	transitioned, err := a.TransitionWithdrawalRequest(ctx, domain.TransitionInput{
		RequestID: w.RequestID,
		Target:    domain.StatusWithdrawn,
	})
	if err != nil {
		return 0, err
	}

	switch {
	case transitioned == OutcomeNotFound:
		return OutcomeNotFound, nil
	case inserted == OutcomeApplied || transitioned == OutcomeApplied:
		return OutcomeApplied, nil
	}
	return OutcomeDuplicate, nil
}

func insertOutcome(err error) (Outcome, error) {
	switch {
	case errors.Is(err, storage.ErrDuplicateKey):
		return OutcomeDuplicate, nil
	case err != nil:
		return 0, err
	}
	return OutcomeApplied, nil
}
