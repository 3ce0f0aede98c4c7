// Package api serves the read-only query API over the materialized tables
// together with the liveness, readiness and health probes.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"vault-indexer/internal/observability"
	"vault-indexer/internal/storage"
)

// DefaultReadyTimeout bounds each readiness check.
const DefaultReadyTimeout = 2 * time.Second

// Pinger is a dependency the service needs to be ready. *postgres.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Options configures a Server.
type Options struct {
	Stores *storage.Stores

	// Checks are probed by /ready and /health, keyed by dependency name.
	// Only storage belongs here; probes never depend on the poll loop.
	Checks map[string]Pinger

	// Status, when set, is rendered by /status and embedded in /health.
	// It never changes a probe's outcome.
	Status func() any

	ReadyTimeout time.Duration
	Logger       *zap.Logger
}

// Server holds the HTTP handlers.
type Server struct {
	stores       *storage.Stores
	checks       map[string]Pinger
	status       func() any
	readyTimeout time.Duration
	logger       *zap.Logger
	started      time.Time
}

// NewServer creates a new API server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.ReadyTimeout
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}
	return &Server{
		stores:       opts.Stores,
		checks:       opts.Checks,
		status:       opts.Status,
		readyTimeout: timeout,
		logger:       logger.With(zap.String("component", "api")),
		started:      time.Now(),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.recoverMiddleware, s.logMiddleware, corsMiddleware)

	r.HandleFunc("/live", s.handleLive).Methods(http.MethodGet)
	r.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.Handle("/metrics", observability.Handler()).Methods(http.MethodGet)

	a := r.PathPrefix("/api").Subrouter()
	a.HandleFunc("/vaults", s.handleListVaults).Methods(http.MethodGet)
	a.HandleFunc("/vaults/{id}", s.handleGetVault).Methods(http.MethodGet)
	a.HandleFunc("/vaults/{id}/deposits", s.handleListDeposits).Methods(http.MethodGet)
	a.HandleFunc("/vaults/{id}/withdrawals", s.handleListWithdrawals).Methods(http.MethodGet)
	a.HandleFunc("/vaults/{id}/withdrawal-requests", s.handleListVaultRequests).Methods(http.MethodGet)
	a.HandleFunc("/withdrawal-requests/requester/{requester}", s.handleListRequesterRequests).Methods(http.MethodGet)
	a.HandleFunc("/withdrawal-requests/{id}", s.handleGetRequest).Methods(http.MethodGet)
	a.HandleFunc("/cursors", s.handleListCursors).Methods(http.MethodGet)
	a.HandleFunc("/dead-letters", s.handleListDeadLetters).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, Response{Success: false, Data: []any{}, Error: "route not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, Response{Success: false, Data: []any{}, Error: "method not allowed"})
	})
	return r
}
