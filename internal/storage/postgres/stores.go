package postgres

import "vault-indexer/internal/storage"

// NewStores creates the full set of PostgreSQL stores sharing one pool.
func NewStores(pool *Pool) *storage.Stores {
	return &storage.Stores{
		Cursors:            NewCursorStore(pool),
		Vaults:             NewVaultStore(pool),
		Deposits:           NewDepositStore(pool),
		WithdrawalRequests: NewWithdrawalRequestStore(pool),
		Withdrawals:        NewWithdrawalStore(pool),
		DeadLetters:        NewDeadLetterStore(pool),
	}
}
