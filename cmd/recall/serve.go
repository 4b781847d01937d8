package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/goclaw/recall/config"
	"github.com/goclaw/recall/pkg/api"
	"github.com/goclaw/recall/pkg/api/handlers"
	"github.com/goclaw/recall/pkg/logger"
	"github.com/goclaw/recall/pkg/memory"
	"github.com/goclaw/recall/pkg/metrics"
	"github.com/goclaw/recall/pkg/telemetry/tracing"
	"github.com/goclaw/recall/pkg/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, retention sweeper and metrics server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, configPath, buildOverrides())
	},
}

// runServe blocks until ctx is cancelled or the HTTP server fails.
func runServe(ctx context.Context, path string, overrides map[string]interface{}) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(path, overrides)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration:\n%s\n", err)
		return err
	}

	log := newLogger(cfg)
	logger.SetGlobal(log)
	defer log.Close()

	log.Info("Starting recall",
		"version", version.Version,
		"buildTime", version.BuildTime,
		"gitCommit", version.GitCommit,
		"app", cfg.App.Name,
		"environment", cfg.App.Environment,
	)
	log.Debug("Configuration loaded", "config", cfg.String())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, tracing.ServiceInfo{
		Name:           cfg.App.Name,
		Version:        version.Version,
		Environment:    cfg.App.Environment,
		Storage:        cfg.Storage.Type,
		EmbeddingModel: cfg.Embedding.Model,
	})
	if err != nil {
		log.Error("Failed to initialize tracing", "error", err)
		return err
	}

	metricsManager := metrics.NewManager(cfg.Metrics.ToMetricsConfig())
	if metricsManager.Enabled() {
		go func() {
			log.Info("Starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
			if err := metricsManager.StartServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
				log.Error("Metrics server error", "error", err)
			}
		}()
	}

	a, err := newApp(ctx, cfg, log, metricsManager)
	if err != nil {
		log.Error("Failed to initialize", "error", err)
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("Error closing resources", "error", err)
		}
	}()

	if cfg.Retention.Enabled {
		a.sweeper.Start(ctx)
		log.Info("Retention sweeper started",
			"window", cfg.Retention.Window,
			"interval", cfg.Retention.Interval,
		)
	}

	if src := loader.Source(); src != "" {
		startWatcher(ctx, a, loader, src, overrides)
	}

	apiHandlers := &api.Handlers{
		Memory:    handlers.NewMemoryHandler(a.engine, memory.NewPriorityAnalyzer(a.store, nil), log.With("component", "http")),
		Retention: handlers.NewRetentionHandler(a.sweeper, log.With("component", "http")),
		Health: handlers.NewHealthHandler(handlers.ServiceInfo{
			Name:           cfg.App.Name,
			Environment:    cfg.App.Environment,
			Storage:        cfg.Storage.Type,
			EmbeddingModel: a.provider.Model(),
			Dimension:      a.engine.Dimension(),
		}, a.checks()...),
		Metrics: metricsManager,
	}
	httpServer := api.NewHTTPServer(cfg, log, apiHandlers)
	if err := httpServer.Listen(); err != nil {
		log.Error("HTTP server error", "error", err)
		a.sweeper.Stop()
		_ = shutdownTracing(context.Background())
		return err
	}

	serverErrChan := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(); err != nil {
			serverErrChan <- err
		}
	}()

	log.Info("recall is running",
		"http_addr", httpServer.Addr(),
		"metrics_port", cfg.Metrics.Port,
		"storage", cfg.Storage.Type,
	)

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutdown requested")
	case runErr = <-serverErrChan:
		log.Error("HTTP server error", "error", runErr)
	}

	shutdownTimeout := cfg.Server.HTTP.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down HTTP server", "error", err)
	}

	a.sweeper.Stop()
	cancel()

	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("Error shutting down tracing", "error", err)
	}

	log.Info("recall stopped gracefully")
	return runErr
}

// startWatcher hot-reloads the log level and retrieval tuning on file changes.
func startWatcher(ctx context.Context, a *app, loader *config.Loader, path string, overrides map[string]interface{}) {
	watcher, err := config.NewWatcher(path, loader, config.WithOverrides(overrides))
	if err != nil {
		a.log.Warn("Config hot reload disabled", "error", err)
		return
	}

	current := config.ExtractHotReloadable(a.cfg)
	updates := make(chan config.HotReloadableConfig, 1)
	watcher.OnChange(func(cfg *config.Config) {
		select {
		case updates <- config.ExtractHotReloadable(cfg):
		case <-ctx.Done():
		}
	})

	go func() {
		if err := watcher.Watch(ctx); err != nil && ctx.Err() == nil {
			a.log.Warn("Config watcher stopped", "error", err)
		}
	}()

	// Reloads are applied in order from a single goroutine.
	go func() {
		defer watcher.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case next := <-updates:
				if next.Changed(current) {
					a.reload(current, next)
					current = next
				}
			}
		}
	}()
	a.log.Info("Watching configuration file", "path", path)
}
