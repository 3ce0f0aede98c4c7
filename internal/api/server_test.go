package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vault-indexer/internal/domain"
	"vault-indexer/internal/storage"
	"vault-indexer/internal/storage/memory"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Total   *int            `json:"total"`
	Error   string          `json:"error"`
}

func newTestServer(t *testing.T, opts Options) (*httptest.Server, *storage.Stores) {
	t.Helper()
	if opts.Stores == nil {
		opts.Stores = memory.NewStores()
	}
	srv := httptest.NewServer(NewServer(opts).Handler())
	t.Cleanup(srv.Close)
	return srv, opts.Stores
}

func get(t *testing.T, srv *httptest.Server, path string) (int, envelope) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func seedVaults(t *testing.T, stores *storage.Stores, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		owner := "0xalice"
		if i%2 == 1 {
			owner = "0xbob"
		}
		require.NoError(t, stores.Vaults.Insert(ctx, &domain.Vault{
			VaultID:     fmt.Sprintf("0xvault%02d", i),
			Name:        fmt.Sprintf("vault %d", i),
			Owner:       owner,
			Beneficiary: "0xkid",
			CreatedAtMs: int64(1700000000000 + i*1000),
			Source:      domain.Provenance{TxDigest: fmt.Sprintf("tx%02d", i)},
		}))
	}
}

func seedRequest(t *testing.T, stores *storage.Stores, id, vaultID, requester string, createdAtMs int64) {
	t.Helper()
	require.NoError(t, stores.WithdrawalRequests.Insert(context.Background(), &domain.WithdrawalRequest{
		RequestID:   id,
		VaultID:     vaultID,
		Amount:      100,
		Requester:   requester,
		Status:      domain.StatusPending,
		CreatedAtMs: createdAtMs,
		Source:      domain.Provenance{TxDigest: "tx-" + id},
	}))
}

func TestListVaults_DefaultPagination(t *testing.T) {
	srv, stores := newTestServer(t, Options{})
	seedVaults(t, stores, 12)

	code, env := get(t, srv, "/api/vaults")
	require.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
	require.NotNil(t, env.Total)
	assert.Equal(t, 12, *env.Total)

	var vaults []domain.Vault
	require.NoError(t, json.Unmarshal(env.Data, &vaults))
	require.Len(t, vaults, storage.DefaultLimit)
	assert.Equal(t, "0xvault11", vaults[0].VaultID, "newest first")

	_, env = get(t, srv, "/api/vaults?page=2")
	require.NoError(t, json.Unmarshal(env.Data, &vaults))
	assert.Len(t, vaults, 2)
}

func TestListVaults_Filters(t *testing.T) {
	srv, stores := newTestServer(t, Options{})
	seedVaults(t, stores, 5)

	_, env := get(t, srv, "/api/vaults?owner=0xbob&limit=50")
	var vaults []domain.Vault
	require.NoError(t, json.Unmarshal(env.Data, &vaults))
	assert.Len(t, vaults, 2)
	assert.Equal(t, 2, *env.Total)
	for _, v := range vaults {
		assert.Equal(t, "0xbob", v.Owner)
	}
}

func TestListVaults_EmptyIsArray(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	code, env := get(t, srv, "/api/vaults?beneficiary=nobody")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, "[]", string(env.Data))
	assert.Equal(t, 0, *env.Total)
}

func TestListVaults_BadParams(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	for _, q := range []string{"page=abc", "limit=-1", "page=1.5"} {
		code, env := get(t, srv, "/api/vaults?"+q)
		assert.Equal(t, http.StatusBadRequest, code, q)
		assert.False(t, env.Success, q)
		assert.NotEmpty(t, env.Error, q)
	}
}

func TestListVaults_LimitClamped(t *testing.T) {
	srv, stores := newTestServer(t, Options{})
	seedVaults(t, stores, 3)

	code, env := get(t, srv, "/api/vaults?limit=100000")
	require.Equal(t, http.StatusOK, code)
	var vaults []domain.Vault
	require.NoError(t, json.Unmarshal(env.Data, &vaults))
	assert.Len(t, vaults, 3)
}

func TestListVaults_HugePageIsEmpty(t *testing.T) {
	srv, stores := newTestServer(t, Options{})
	seedVaults(t, stores, 3)

	code, env := get(t, srv, "/api/vaults?page=1000000000000000000")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, "[]", string(env.Data))
	assert.Equal(t, 3, *env.Total)
}

func TestGetVault(t *testing.T) {
	srv, stores := newTestServer(t, Options{})
	seedVaults(t, stores, 1)

	code, env := get(t, srv, "/api/vaults/0xvault00")
	require.Equal(t, http.StatusOK, code)
	var v domain.Vault
	require.NoError(t, json.Unmarshal(env.Data, &v))
	assert.Equal(t, "vault 0", v.Name)
	assert.Nil(t, env.Total)

	code, env = get(t, srv, "/api/vaults/0xmissing")
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, env.Success)
	assert.Equal(t, "not found", env.Error)
}

func TestVaultDepositsAndWithdrawals(t *testing.T) {
	srv, stores := newTestServer(t, Options{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, stores.Deposits.Insert(ctx, &domain.Deposit{
			ID:          uuid.New(),
			VaultID:     "0xv",
			Amount:      int64(10 * (i + 1)),
			Depositor:   "0xalice",
			CreatedAtMs: int64(1000 + i),
			Source:      domain.Provenance{TxDigest: "dep", EventSeq: uint64(i)},
		}))
	}
	require.NoError(t, stores.Withdrawals.Insert(ctx, &domain.Withdrawal{
		ID:          uuid.New(),
		RequestID:   "0xreq",
		VaultID:     "0xv",
		Amount:      5,
		LeftBalance: 55,
		Withdrawer:  "0xkid",
		CreatedAtMs: 2000,
		Source:      domain.Provenance{TxDigest: "wd"},
	}))

	_, env := get(t, srv, "/api/vaults/0xv/deposits")
	var deposits []domain.Deposit
	require.NoError(t, json.Unmarshal(env.Data, &deposits))
	require.Len(t, deposits, 3)
	assert.Equal(t, int64(30), deposits[0].Amount, "newest first")

	_, env = get(t, srv, "/api/vaults/0xv/withdrawals")
	var withdrawals []domain.Withdrawal
	require.NoError(t, json.Unmarshal(env.Data, &withdrawals))
	require.Len(t, withdrawals, 1)
	assert.Equal(t, int64(55), withdrawals[0].LeftBalance)

	_, env = get(t, srv, "/api/vaults/0xother/deposits")
	assert.Equal(t, 0, *env.Total)
}

func TestWithdrawalRequests(t *testing.T) {
	srv, stores := newTestServer(t, Options{})
	seedRequest(t, stores, "0xr1", "0xv1", "0xkid", 1000)
	seedRequest(t, stores, "0xr2", "0xv1", "0xkid", 2000)
	seedRequest(t, stores, "0xr3", "0xv2", "0xkid", 3000)
	seedRequest(t, stores, "0xr4", "0xv1", "0xother", 4000)

	auditor := "0xparent"
	at := int64(5000)
	_, err := stores.WithdrawalRequests.Transition(context.Background(), domain.TransitionInput{
		RequestID: "0xr2", Target: domain.StatusApproved, Auditor: &auditor, AuditAtMs: &at,
	})
	require.NoError(t, err)

	t.Run("by vault", func(t *testing.T) {
		_, env := get(t, srv, "/api/vaults/0xv1/withdrawal-requests")
		assert.Equal(t, 3, *env.Total)

		_, env = get(t, srv, "/api/vaults/0xv1/withdrawal-requests?requester=0xkid&status=Approved")
		var reqs []domain.WithdrawalRequest
		require.NoError(t, json.Unmarshal(env.Data, &reqs))
		require.Len(t, reqs, 1)
		assert.Equal(t, "0xr2", reqs[0].RequestID)
		require.NotNil(t, reqs[0].ApprovedBy)
		assert.Equal(t, auditor, *reqs[0].ApprovedBy)
	})

	t.Run("by requester", func(t *testing.T) {
		_, env := get(t, srv, "/api/withdrawal-requests/requester/0xkid")
		var reqs []domain.WithdrawalRequest
		require.NoError(t, json.Unmarshal(env.Data, &reqs))
		require.Len(t, reqs, 3)
		assert.Equal(t, "0xr3", reqs[0].RequestID)

		_, env = get(t, srv, "/api/withdrawal-requests/requester/0xkid?status=Pending")
		assert.Equal(t, 2, *env.Total)
	})

	t.Run("bad status", func(t *testing.T) {
		code, _ := get(t, srv, "/api/withdrawal-requests/requester/0xkid?status=Lost")
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("point lookup", func(t *testing.T) {
		code, env := get(t, srv, "/api/withdrawal-requests/0xr1")
		require.Equal(t, http.StatusOK, code)
		var req domain.WithdrawalRequest
		require.NoError(t, json.Unmarshal(env.Data, &req))
		assert.Equal(t, domain.StatusPending, req.Status)

		code, _ = get(t, srv, "/api/withdrawal-requests/0xnope")
		assert.Equal(t, http.StatusNotFound, code)
	})
}

func TestCursorsAndDeadLetters(t *testing.T) {
	srv, stores := newTestServer(t, Options{})
	ctx := context.Background()

	_, err := stores.Cursors.Upsert(ctx, "0xpkg::bucky_bank::DepositMade", domain.Position{TxDigest: "tx9", EventSeq: 2})
	require.NoError(t, err)
	require.NoError(t, stores.DeadLetters.Insert(ctx, &domain.DeadLetter{
		EventType:  "0xpkg::bucky_bank::DepositMade",
		Position:   domain.Position{TxDigest: "tx5"},
		Reason:     "missing field amount",
		ErrorClass: domain.ErrorClassDecode,
	}))

	_, env := get(t, srv, "/api/cursors")
	var cursors []domain.Cursor
	require.NoError(t, json.Unmarshal(env.Data, &cursors))
	require.Len(t, cursors, 1)
	assert.Equal(t, "tx9", cursors[0].Position.TxDigest)

	_, env = get(t, srv, "/api/dead-letters?resolved=false")
	var letters []domain.DeadLetter
	require.NoError(t, json.Unmarshal(env.Data, &letters))
	require.Len(t, letters, 1)
	assert.Equal(t, domain.ErrorClassDecode, letters[0].ErrorClass)

	_, env = get(t, srv, "/api/dead-letters?resolved=true")
	assert.Equal(t, 0, *env.Total)

	code, _ := get(t, srv, "/api/dead-letters?resolved=maybe")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestUnknownRoute(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	code, env := get(t, srv, "/api/unknown")
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, env.Success)
}

func TestCORSHeader(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	resp, err := http.Get(srv.URL + "/api/vaults")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}
