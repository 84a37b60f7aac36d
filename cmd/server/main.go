/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the expense ledger HTTP server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load config (file, then LEDGER_* env)
  2. Configure logging
  3. Open the storage backend (and the audit log when enabled)
  4. Create sessions, metrics and the API handler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML config file (default: ./ledger.yaml when present)
  -port    HTTP server port, overrides server.port
  -db      SQLite database path, overrides storage.sqlite_path
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # CSV files under ./data
  ./server

  # SQLite records, in memory
  LEDGER_STORAGE_BACKEND=sqlite ./server -db=":memory:"

  # Run on different port
  ./server -port=3000

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Settings and defaults
  - store/store.go: Backend selection
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/expense-ledger/api"
	"github.com/warp/expense-ledger/config"
	"github.com/warp/expense-ledger/pkg/logging"
	"github.com/warp/expense-ledger/store"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "YAML config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Storage.SQLitePath = *dbPath
	}
	logging.SetupFromString(cfg.Log.Level)

	// Initialize store
	opened, err := store.Open(cfg)
	if err != nil {
		slog.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer opened.Close()

	// Initialize handler
	sessions := api.NewSessions(opened.Backend, opened.ManagerOptions(cfg)...)
	sessions.MaxUsers = cfg.Server.MaxSessions
	handler := api.NewHandler(sessions, api.NewMetrics(), cfg.Ledger.User, cfg.Import.PreviewLimit)

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("server starting",
			"addr", fmt.Sprintf("http://localhost:%d", cfg.Server.Port),
			"backend", cfg.Storage.Backend,
			"audit", cfg.Audit.Enabled,
			"default_user", cfg.Ledger.User,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("server stopped")
}
