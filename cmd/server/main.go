package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/JonMunkholm/importer/internal/config"
	"github.com/JonMunkholm/importer/internal/core"
	_ "github.com/JonMunkholm/importer/internal/core/importers" // Register all import kinds
	"github.com/JonMunkholm/importer/internal/logging"
	"github.com/JonMunkholm/importer/internal/pgstore"
	"github.com/JonMunkholm/importer/internal/web"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	templates, err := core.LoadTemplates(cfg.Import.TemplatesDir)
	if err != nil {
		slog.Error("failed to load import templates", "dir", cfg.Import.TemplatesDir, "error", err)
		os.Exit(1)
	}

	service := core.NewService(store, core.ServiceConfig{
		MaxConcurrentRuns: cfg.Import.MaxConcurrent,
		MaxWaitTime:       cfg.Import.MaxWaitTime,
		JobTimeout:        cfg.Import.JobTimeout,
		Templates:         templates,
	})

	slog.Info("importers registered", "count", core.Count(), "groups", len(core.Groups()))
	for _, group := range core.Groups() {
		slog.Debug("importer group", "group", group, "importers", len(core.ByGroup(group)))
	}

	jobCtx, cancelJobs := context.WithCancel(ctx)
	defer cancelJobs()
	go service.StartJobJanitor(jobCtx, core.JanitorConfig{
		Retention:     cfg.Import.JobRetention,
		CheckInterval: cfg.Import.JanitorInterval,
	})

	server := web.NewServer(service, cfg)

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.RunStatus(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
		}
		if err := service.Shutdown(shutdownCtx); err != nil {
			slog.Warn("imports did not complete in time", "error", err)
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-shutdownDone
	slog.Info("server stopped")
}

// openStore returns the configured document store and its close function.
func openStore(ctx context.Context, cfg *config.Config) (core.Store, func(), error) {
	if strings.ToLower(cfg.Store.Driver) != config.DriverPostgres {
		slog.Info("using in-memory document store")
		return core.NewMemoryStore(), func() {}, nil
	}

	store, err := pgstore.Open(ctx, pgstore.PoolConfig{
		URL:             cfg.Database.URL,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		return nil, nil, err
	}
	if cfg.Store.EnsureSchema {
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
	}
	return store, store.Close, nil
}
