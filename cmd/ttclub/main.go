package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"ttclub/internal/backend"
	"ttclub/internal/cache"
	"ttclub/internal/cli"
	apphttp "ttclub/internal/http"
	"ttclub/internal/log"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := cli.ShutdownContext(context.Background(), logger)
	defer cancel()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err.Error())
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to open ledger", log.FieldError, err.Error(), "backend", cfg.DataBackend)
		os.Exit(1)
	}

	var history apphttp.SnapshotHistory
	if res.History != nil {
		history = res.History
	}
	srv := apphttp.NewServer(res.Service, history, apphttp.Options{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		ExportCacheSize:    cfg.ExportCacheSize,
		ExportCacheTTL:     cfg.ExportCacheTTL,
		TrustedProxies:     cfg.TrustedProxies,
		Logger:             logger,
	})

	caches := cache.NewManager(logger)
	caches.Register(srv.Exports())
	caches.StartCleanup(cfg.ExportCacheTTL)
	defer caches.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting ttclub server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		cli.RunCleanup(logger, 30*time.Second, srv.Shutdown)
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
	}
	if err := res.Cleanup(); err != nil {
		logger.Error("Failed to close ledger", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
