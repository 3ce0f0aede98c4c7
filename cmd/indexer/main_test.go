package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vault-indexer/internal/config"
	"vault-indexer/internal/ingestion"
)

func TestOpsServer_ProbesIgnoreRunnerState(t *testing.T) {
	cfg := &config.Config{}
	cfg.Indexer.UseMemory = true
	be, err := openBackend(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer be.close()

	stopped := ingestion.RunnerStats{Running: false, LastError: "rpc unavailable"}
	server := newOpsServer(":0", be, func() any { return stopped }, zap.NewNop())
	ts := httptest.NewServer(server.Handler)
	defer ts.Close()

	for _, path := range []string{"/ready", "/health"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.NotEqual(t, "degraded", body["status"], path)
		assert.NotEqual(t, "not ready", body["status"], path)
	}

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	var health struct {
		Runner ingestion.RunnerStats `json:"runner"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.False(t, health.Runner.Running)
	assert.Equal(t, "rpc unavailable", health.Runner.LastError)
}
