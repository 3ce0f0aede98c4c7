package storage

// Stores bundles every relational store the indexer writes to.
type Stores struct {
	Cursors            CursorStore
	Vaults             VaultStore
	Deposits           DepositStore
	WithdrawalRequests WithdrawalRequestStore
	Withdrawals        WithdrawalStore
	DeadLetters        DeadLetterStore
}
