package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stream-router/internal/api"
	"stream-router/internal/monitor"
	"stream-router/internal/platform/config"
	"stream-router/internal/platform/logger"
	"stream-router/internal/platform/metrics"
	"stream-router/internal/proxyapi"
	"stream-router/internal/routing"
	"stream-router/internal/xtream"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		logger.New("error", "json").Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	met := metrics.New()

	catalog := routing.NewInMemoryCatalog()
	if cfg.CatalogPath != "" {
		catalog, err = routing.LoadCatalogFile(cfg.CatalogPath)
		if err != nil {
			log.Error("load catalog", "path", cfg.CatalogPath, "error", err)
			os.Exit(1)
		}
	}

	store, closeStore := snapshotStore(cfg, log)
	defer closeStore()

	fetcher := xtream.NewClient(&http.Client{Timeout: cfg.XtreamTimeout})
	cache := routing.NewStatusCache(fetcher, store, cfg.StatusFetchTimeout, log, met)
	resolver := routing.NewResolver(catalog, cache, log, met)

	var mon api.Monitor
	if cfg.ProxyAPIURL != "" {
		client, err := proxyapi.NewClient(cfg.ProxyAPIURL, cfg.ProxyAPIToken, nil)
		if err != nil {
			log.Error("stream proxy client", "error", err)
			os.Exit(1)
		}
		mon = monitor.NewService(client, monitor.CatalogLookup(catalog), cfg.MonitorTimeout, log, met)
	}

	h := api.NewHandler(resolver, mon, log)
	r := api.NewRouter(h, api.RouterConfig{
		Log:                log,
		Metrics:            met,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", cfg.Port,
		"log_level", cfg.LogLevel,
		"catalog", cfg.CatalogPath,
		"redis", cfg.RedisAddr != "",
		"monitor", mon != nil,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}

// snapshotStore picks Redis when configured and reachable, falling back to
// process memory otherwise.
func snapshotStore(cfg config.Config, log *slog.Logger) (routing.SnapshotStore, func()) {
	if cfg.RedisAddr == "" {
		return routing.NewMemorySnapshotStore(), func() {}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rs, err := routing.NewRedisSnapshotStore(ctx, routing.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Warn("redis unavailable, caching provider status in memory",
			"addr", cfg.RedisAddr, "error", err)
		return routing.NewMemorySnapshotStore(), func() {}
	}
	return rs, func() {
		if err := rs.Close(); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("close redis", "error", err)
		}
	}
}
