// Package main serves the read-only vault query API over the tables the
// indexer materializes.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"vault-indexer/internal/api"
	"vault-indexer/internal/config"
	"vault-indexer/internal/logging"
	"vault-indexer/internal/storage/memory"
	pgstore "vault-indexer/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", os.Getenv("INDEXER_CONFIG"), "Path to YAML config file (optional)")
	useMemory := flag.Bool("use-memory", false, "Serve empty in-memory storage (development only)")
	httpAddr := flag.String("http-addr", "", "HTTP listen address (overrides config)")
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

	if err := cfg.ValidateAPI(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := api.Options{Logger: logger, Checks: map[string]api.Pinger{}}
	if cfg.Indexer.UseMemory {
		opts.Stores = memory.NewStores()
	} else {
		pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
		if err != nil {
			logger.Fatal("connect postgres", zap.Error(err))
		}
		defer pool.Close()
		opts.Stores = pgstore.NewStores(pool)
		opts.Checks["postgres"] = pool
	}

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewServer(opts).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("query api listening", zap.String("addr", cfg.HTTP.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
