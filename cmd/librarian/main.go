package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mmynk/librarian/internal/config"
	"github.com/mmynk/librarian/internal/metrics"
	"github.com/mmynk/librarian/internal/service"
	"github.com/mmynk/librarian/internal/shell"
	"github.com/mmynk/librarian/internal/storage"
	"github.com/mmynk/librarian/internal/storage/memory"
	"github.com/mmynk/librarian/internal/storage/sqlite"
	"github.com/mmynk/librarian/pkg/logging"
)

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(getEnv("LIBRARIAN_CONFIG", ""))
	if err != nil {
		fmt.Fprintf(os.Stderr, "librarian: %v\n", err)
		return 1
	}

	// Logs go to stderr so they never mix with the menu on stdout
	logging.Setup(os.Stderr, cfg.LogLevel)

	store, err := openStore(cfg.Store.Backend)
	if err != nil {
		slog.Error("Failed to initialize storage", "backend", cfg.Store.Backend, "error", err)
		return 1
	}
	defer store.Close()
	slog.Info("Storage initialized", "backend", cfg.Store.Backend)

	m := metrics.New()
	catalog := service.NewCatalogService(store,
		service.WithFineRate(cfg.Fines.RatePerDay),
		service.WithCurrency(cfg.Fines.Currency),
		service.WithMetrics(m),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = shell.New(catalog, os.Stdin, os.Stdout).Run(ctx)
	logSummary(m)
	if err != nil && ctx.Err() == nil {
		slog.Error("Shell stopped", "error", err)
		return 1
	}

	return 0
}

func openStore(backend string) (storage.Store, error) {
	switch backend {
	case config.BackendSQLite:
		return sqlite.New()
	case config.BackendMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", backend)
	}
}

// logSummary writes the session's operation counts at debug level.
func logSummary(m *metrics.Metrics) {
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	lines, err := m.Summary()
	if err != nil {
		slog.Warn("Failed to summarize metrics", "error", err)
		return
	}
	for _, line := range lines {
		slog.Debug("Session metric", "metric", line)
	}
}
