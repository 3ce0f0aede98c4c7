package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vault-indexer/internal/domain"
	"vault-indexer/internal/storage"
)

func testRequest(id, vaultID string, createdAtMs int64) *domain.WithdrawalRequest {
	return &domain.WithdrawalRequest{
		RequestID:   id,
		VaultID:     vaultID,
		Amount:      100,
		Requester:   "0xchild",
		Reason:      "books",
		Status:      domain.StatusPending,
		CreatedAtMs: createdAtMs,
		Source:      domain.Provenance{TxDigest: "ReqTx" + id},
	}
}

func TestWithdrawalRequestStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewWithdrawalRequestStore(pool)

	r := testRequest("0xr1", "0xv1", 1700000000000)
	require.NoError(t, store.Insert(ctx, r))
	assert.ErrorIs(t, store.Insert(ctx, r), storage.ErrDuplicateKey)

	got, err := store.GetByID(ctx, "0xr1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, "books", got.Reason)
	assert.Nil(t, got.ApprovedBy)
	assert.Nil(t, got.AuditAtMs)

	_, err = store.GetByID(ctx, "0xmissing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestWithdrawalRequestStore_Transition(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewWithdrawalRequestStore(pool)
	require.NoError(t, store.Insert(ctx, testRequest("0xr1", "0xv1", 1700000000000)))

	changed, err := store.Transition(ctx, domain.TransitionInput{
		RequestID: "0xr1",
		Target:    domain.StatusApproved,
		Auditor:   ptr("0xparent"),
		AuditAtMs: ptr(int64(1700000001000)),
	})
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := store.GetByID(ctx, "0xr1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, got.Status)
	require.NotNil(t, got.ApprovedBy)
	assert.Equal(t, "0xparent", *got.ApprovedBy)
	require.NotNil(t, got.AuditAtMs)
	assert.Equal(t, int64(1700000001000), *got.AuditAtMs)

	// Replay of the same audit is a no-op.
	changed, err = store.Transition(ctx, domain.TransitionInput{RequestID: "0xr1", Target: domain.StatusApproved})
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = store.Transition(ctx, domain.TransitionInput{RequestID: "0xr1", Target: domain.StatusWithdrawn})
	require.NoError(t, err)
	assert.True(t, changed)

	_, err = store.Transition(ctx, domain.TransitionInput{RequestID: "0xr1", Target: domain.StatusPending})
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)

	got, err = store.GetByID(ctx, "0xr1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWithdrawn, got.Status)
}

func TestWithdrawalRequestStore_TransitionMergesLateAudit(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewWithdrawalRequestStore(pool)
	require.NoError(t, store.Insert(ctx, testRequest("0xr1", "0xv1", 1700000000000)))

	_, err := store.Transition(ctx, domain.TransitionInput{RequestID: "0xr1", Target: domain.StatusWithdrawn})
	require.NoError(t, err)

	changed, err := store.Transition(ctx, domain.TransitionInput{
		RequestID: "0xr1",
		Target:    domain.StatusApproved,
		Auditor:   ptr("0xparent"),
	})
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := store.GetByID(ctx, "0xr1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWithdrawn, got.Status)
	require.NotNil(t, got.ApprovedBy)
	assert.Equal(t, "0xparent", *got.ApprovedBy)
}

func TestWithdrawalRequestStore_TransitionNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := NewWithdrawalRequestStore(pool).Transition(context.Background(), domain.TransitionInput{
		RequestID: "0xmissing",
		Target:    domain.StatusApproved,
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestWithdrawalRequestStore_List(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewWithdrawalRequestStore(pool)
	require.NoError(t, store.Insert(ctx, testRequest("0xr1", "0xv1", 1700000000000)))
	require.NoError(t, store.Insert(ctx, testRequest("0xr2", "0xv1", 1700000001000)))
	require.NoError(t, store.Insert(ctx, testRequest("0xr3", "0xv2", 1700000002000)))

	_, err := store.Transition(ctx, domain.TransitionInput{RequestID: "0xr2", Target: domain.StatusRejected})
	require.NoError(t, err)

	requests, total, err := store.List(ctx, storage.WithdrawalRequestFilter{VaultID: "0xv1"}, storage.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, requests, 2)
	assert.Equal(t, "0xr2", requests[0].RequestID)

	requests, total, err = store.List(ctx, storage.WithdrawalRequestFilter{Status: domain.StatusPending}, storage.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "0xr3", requests[0].RequestID)
	assert.Equal(t, "0xr1", requests[1].RequestID)
}
