package memory

import (
	"sort"

	"vault-indexer/internal/domain"
)

// sortNewestFirst orders rows by creation time DESC, then by ledger position DESC.
func sortNewestFirst[T any](rows []T, key func(T) (int64, domain.Provenance)) {
	sort.Slice(rows, func(i, j int) bool {
		ti, pi := key(rows[i])
		tj, pj := key(rows[j])
		if ti != tj {
			return ti > tj
		}
		if pi.TxDigest != pj.TxDigest {
			return pi.TxDigest > pj.TxDigest
		}
		return pi.EventSeq > pj.EventSeq
	})
}
