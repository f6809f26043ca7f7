/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the loan ledger HTTP server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags) and validate it
  2. Create the logger
  3. Open the store and event publisher for the configured backend
  4. Create API handler with dependencies
  5. Configure HTTP router
  6. Start the daily summary scheduler
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port     HTTP server port (overrides PORT)
  -backend  memory | json | sqlite | redis (overrides DATA_BACKEND)
  -db       SQLite database path (overrides SQLITE_DB_PATH)
            Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close the store and publisher
  5. Exit

EXAMPLES:
  # Run with the default JSON document (database.json)
  ./server

  # Run with a SQLite file
  ./server -backend=sqlite -db="./data/loans.db"

  # Run in memory on a different port
  ./server -backend=memory -port=3000

ENVIRONMENT:
  See config/config.go.

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - factory/factory.go: Store and publisher selection
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/loan-ledger/api"
	"github.com/warp/loan-ledger/config"
	"github.com/warp/loan-ledger/factory"
	"github.com/warp/loan-ledger/logging"
)

func main() {
	cfg := config.Load()

	// Flags override the environment
	flag.StringVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.DataBackend, "backend", cfg.DataBackend, "Data backend (memory, json, sqlite, redis)")
	flag.StringVar(&cfg.SQLiteDBPath, "db", cfg.SQLiteDBPath, "SQLite database path")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging())
	logging.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", logging.FieldError, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	ctx := context.Background()

	// Initialize store and publisher
	backend, err := factory.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Failed(ctx, logging.OpShutdown, err)
		}
	}()

	// Initialize handler and router
	handler := api.NewHandler(backend.Store, backend.Publisher, logger)
	router := api.NewRouter(handler, cfg.CORSOrigins)

	// Daily summary job
	scheduler := api.NewSummaryScheduler(backend.Store, backend.Publisher, logger)
	scheduler.Interval = cfg.SummaryInterval
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			"addr", "http://localhost:"+cfg.Port,
			logging.FieldBackend, cfg.DataBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return err
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
