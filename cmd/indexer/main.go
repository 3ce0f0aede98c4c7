// Package main runs the vault event indexer: it polls the Sui ledger for
// vault events per event type, materializes them into Postgres and serves
// probes, metrics and cursor inspection over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vault-indexer/internal/api"
	"vault-indexer/internal/config"
	"vault-indexer/internal/ingestion"
	"vault-indexer/internal/logging"
	"vault-indexer/internal/replay"
	"vault-indexer/internal/storage"
	chstore "vault-indexer/internal/storage/clickhouse"
	"vault-indexer/internal/storage/memory"
	"vault-indexer/internal/storage/migrations"
	pgstore "vault-indexer/internal/storage/postgres"
	"vault-indexer/internal/sui"
	"vault-indexer/internal/verification"
)

// forceExitAfter bounds graceful shutdown after the first signal.
const forceExitAfter = 30 * time.Second

func main() {
	configPath := flag.String("config", os.Getenv("INDEXER_CONFIG"), "Path to YAML config file (optional)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	httpAddr := flag.String("http-addr", "", "Ops HTTP address (overrides config)")
	once := flag.Bool("once", false, "Run a single poll cycle and exit")
	replayArchive := flag.Bool("replay-archive", false, "Rebuild tables from the raw event archive and exit")
	verifyArchive := flag.Bool("verify-archive", false, "Compare tables with a rebuild from the raw event archive and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *useMemory {
		cfg.Indexer.UseMemory = true
	}
	if *httpAddr != "" {
		cfg.HTTP.Addr = *httpAddr
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.ValidateIndexer(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	logger.Info("starting indexer", zap.String("config", cfg.DebugString()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go handleSignals(cancel, done, logger)

	err = run(ctx, cfg, runMode{once: *once, replay: *replayArchive, verify: *verifyArchive}, logger)
	close(done)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("indexer stopped with error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// handleSignals cancels ctx on the first SIGINT/SIGTERM and exits hard
// on a second signal or when shutdown stalls.
func handleSignals(cancel context.CancelFunc, done <-chan struct{}, logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	case <-done:
		return
	}

	select {
	case sig := <-sigCh:
		logger.Warn("received second signal, forcing exit", zap.String("signal", sig.String()))
		os.Exit(1)
	case <-time.After(forceExitAfter):
		logger.Warn("graceful shutdown timed out, forcing exit", zap.Duration("timeout", forceExitAfter))
		os.Exit(1)
	case <-done:
	}
}

// runMode selects a one-shot operation instead of the polling loop.
type runMode struct {
	once   bool
	replay bool
	verify bool
}

func run(ctx context.Context, cfg *config.Config, mode runMode, logger *zap.Logger) error {
	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer be.close()

	policy, err := ingestion.ParseFailurePolicy(cfg.Indexer.FailurePolicy)
	if err != nil {
		return err
	}

	source := sui.NewHTTPClient(cfg.Sui.RPCURL,
		sui.WithTimeout(cfg.Sui.Timeout),
		sui.WithMaxRetries(cfg.Sui.MaxRetries),
	)

	coordinator := ingestion.NewCoordinator(ingestion.CoordinatorOptions{
		Source:           source,
		Stores:           be.stores,
		Archive:          be.archive,
		PackageID:        cfg.Sui.PackageID,
		Module:           cfg.Sui.Module,
		FilterMode:       ingestion.FilterMode(cfg.Indexer.FilterMode),
		PageLimit:        cfg.Indexer.PageLimit,
		Policy:           policy,
		Parallel:         cfg.Indexer.Parallel,
		RetryBatch:       cfg.Indexer.RetryBatch,
		MaxRetryAttempts: cfg.Indexer.MaxRetryAttempts,
		Logger:           logger,
	})

	if mode.replay {
		return replayArchive(ctx, be, coordinator, logger)
	}
	if mode.verify {
		return verifyArchive(ctx, be, coordinator, logger)
	}

	if mode.once {
		res, err := coordinator.PollAll(ctx)
		logger.Info("single cycle finished",
			zap.Int("applied", res.Applied),
			zap.Bool("has_more", res.HasMore),
			zap.Int("dead_letters_retried", res.Retried),
			zap.Int("dead_letters_resolved", res.Resolved),
		)
		return err
	}

	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		Poller:      coordinator,
		BusyDelay:   cfg.Indexer.BusyDelay,
		ActiveDelay: cfg.Indexer.ActiveDelay,
		IdleDelay:   cfg.Indexer.IdleDelay,
		Wake:        wakeChannel(ctx, cfg, logger),
		Logger:      logger,
	})

	server := newOpsServer(cfg.HTTP.Addr, be, func() any { return runner.Stats() }, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runner.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("ops http server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newOpsServer serves the query API and probes. Probes check storage only;
// runner state is reported through /status and /health without gating them.
func newOpsServer(addr string, be *backend, status func() any, logger *zap.Logger) *http.Server {
	return &http.Server{
		Addr: addr,
		Handler: api.NewServer(api.Options{
			Stores: be.stores,
			Checks: be.checks,
			Status: status,
			Logger: logger,
		}).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// replayArchive re-applies every archived event of the polled types.
// Cursors are left alone; the next polling run resumes where it stopped.
func replayArchive(ctx context.Context, be *backend, coordinator *ingestion.Coordinator, logger *zap.Logger) error {
	if be.archive == nil {
		return errArchiveRequired
	}

	engine := replay.NewApplyEngine(ingestion.NewApplier(be.stores))
	n, err := replay.NewRunner(be.archive, typeTags(coordinator)).Run(ctx, engine)
	sum := engine.Summary()
	logger.Info("archive replay finished",
		zap.Int("replayed", n),
		zap.Int("applied", sum.Applied),
		zap.Int("duplicates", sum.Duplicates),
		zap.Int("not_found", sum.NotFound),
		zap.Int("decode_failures", sum.DecodeFailures),
		zap.Int("illegal_transitions", sum.IllegalTransitions),
	)
	return err
}

// verifyArchive reports every vault and request whose stored state differs
// from a rebuild of the archive. Divergence fails the run.
func verifyArchive(ctx context.Context, be *backend, coordinator *ingestion.Coordinator, logger *zap.Logger) error {
	if be.archive == nil {
		return errArchiveRequired
	}

	report, err := verification.NewArchiveVerifier(be.stores, be.archive, typeTags(coordinator)).VerifyAll(ctx)
	if err != nil {
		return err
	}
	for _, res := range report.Results {
		logger.Warn("divergent record",
			zap.String("table", res.Table),
			zap.String("id", res.ID),
			zap.Any("divergences", res.Divergences),
		)
	}
	logger.Info("archive verification finished",
		zap.Int("records", report.TotalRecords),
		zap.Int("matched", report.MatchedRecords),
		zap.Int("divergent", report.DivergentRecords),
	)
	if report.DivergentRecords > 0 {
		return fmt.Errorf("%d divergent records", report.DivergentRecords)
	}
	return nil
}

var errArchiveRequired = errors.New("an event archive is required (CLICKHOUSE_DSN)")

func typeTags(coordinator *ingestion.Coordinator) []string {
	var tags []string
	for _, kind := range coordinator.Kinds() {
		tags = append(tags, coordinator.TypeTag(kind))
	}
	return tags
}

// wakeChannel subscribes to live notifications when a WebSocket endpoint is
// configured. Failures only cost latency, so they are logged and ignored.
func wakeChannel(ctx context.Context, cfg *config.Config, logger *zap.Logger) <-chan struct{} {
	if cfg.Sui.WSURL == "" {
		return nil
	}

	ws, err := sui.NewWSClient(ctx, cfg.Sui.WSURL, nil, logger)
	if err != nil {
		logger.Warn("websocket unavailable, polling on timers only", zap.Error(err))
		return nil
	}
	go func() {
		<-ctx.Done()
		_ = ws.Close()
	}()

	wake, err := ingestion.WakeOnEvents(ctx, ws, cfg.Sui.PackageID, cfg.Sui.Module, logger)
	if err != nil {
		logger.Warn("event subscription failed, polling on timers only", zap.Error(err))
		return nil
	}
	return wake
}

// backend is the storage wiring of one process.
type backend struct {
	stores  *storage.Stores
	archive storage.EventArchive
	checks  map[string]api.Pinger
	close   func()
}

// openBackend connects storage and applies migrations. The ClickHouse
// archive is optional; in memory mode an in-process archive stands in.
func openBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*backend, error) {
	if cfg.Indexer.UseMemory {
		logger.Info("using in-memory storage")
		return &backend{
			stores:  memory.NewStores(),
			archive: memory.NewEventArchive(),
			checks:  map[string]api.Pinger{},
			close:   func() {},
		}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, err
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrations: %w", err)
	}

	b := &backend{
		stores: pgstore.NewStores(pool),
		checks: map[string]api.Pinger{"postgres": pool},
		close:  pool.Close,
	}

	if cfg.Clickhouse.DSN == "" {
		return b, nil
	}
	chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.Clickhouse.DSN)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("clickhouse migrations: %w", err)
	}
	b.archive = chstore.NewEventArchiveStore(chConn)
	b.checks["clickhouse"] = chConn
	b.close = func() {
		_ = chConn.Close()
		pool.Close()
	}
	return b, nil
}
