package memory

import "vault-indexer/internal/storage"

// NewStores creates a full set of empty in-memory stores.
func NewStores() *storage.Stores {
	return &storage.Stores{
		Cursors:            NewCursorStore(),
		Vaults:             NewVaultStore(),
		Deposits:           NewDepositStore(),
		WithdrawalRequests: NewWithdrawalRequestStore(),
		Withdrawals:        NewWithdrawalStore(),
		DeadLetters:        NewDeadLetterStore(),
	}
}
