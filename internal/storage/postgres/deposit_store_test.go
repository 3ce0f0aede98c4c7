package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vault-indexer/internal/domain"
	"vault-indexer/internal/storage"
)

func TestDepositStore_InsertAndListByVault(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewDepositStore(pool)

	for i, ts := range []int64{1700000001000, 1700000003000, 1700000002000} {
		err := store.Insert(ctx, &domain.Deposit{
			VaultID:     "0xv1",
			Amount:      int64(100 * (i + 1)),
			Depositor:   "0xparent",
			CreatedAtMs: ts,
			Source:      domain.Provenance{TxDigest: "DepTx", EventSeq: uint64(i)},
		})
		require.NoError(t, err)
	}

	deposits, total, err := store.ListByVault(ctx, "0xv1", storage.PageRequest{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, deposits, 3)
	assert.Equal(t, int64(1700000003000), deposits[0].CreatedAtMs)
	assert.Equal(t, int64(1700000001000), deposits[2].CreatedAtMs)
	assert.NotZero(t, deposits[0].ID)

	deposits, total, err = store.ListByVault(ctx, "0xother", storage.PageRequest{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, deposits)
}

func TestDepositStore_InsertDuplicateProvenance(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewDepositStore(pool)

	d := &domain.Deposit{
		VaultID:     "0xv1",
		Amount:      100,
		Depositor:   "0xparent",
		CreatedAtMs: 1700000001000,
		Source:      domain.Provenance{TxDigest: "DupTx", EventSeq: 1},
	}
	require.NoError(t, store.Insert(ctx, d))

	assert.ErrorIs(t, store.Insert(ctx, d), storage.ErrDuplicateKey)
}

func TestWithdrawalStore_InsertAndListByVault(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewWithdrawalStore(pool)

	w := &domain.Withdrawal{
		RequestID:   "0xr1",
		VaultID:     "0xv1",
		Amount:      50,
		LeftBalance: 150,
		Withdrawer:  "0xchild",
		CreatedAtMs: 1700000005000,
		Source:      domain.Provenance{TxDigest: "WdTx", EventSeq: 0},
	}
	require.NoError(t, store.Insert(ctx, w))
	assert.ErrorIs(t, store.Insert(ctx, w), storage.ErrDuplicateKey)

	withdrawals, total, err := store.ListByVault(ctx, "0xv1", storage.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, withdrawals, 1)
	assert.Equal(t, "0xr1", withdrawals[0].RequestID)
	assert.Equal(t, int64(150), withdrawals[0].LeftBalance)
}
