package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hydrocore/hydrocore/internal/alerting"
	"github.com/hydrocore/hydrocore/internal/api"
	"github.com/hydrocore/hydrocore/internal/auth"
	"github.com/hydrocore/hydrocore/internal/config"
	"github.com/hydrocore/hydrocore/internal/ingest"
	"github.com/hydrocore/hydrocore/internal/metrics"
	"github.com/hydrocore/hydrocore/internal/persist"
	"github.com/hydrocore/hydrocore/internal/recommend"
	"github.com/hydrocore/hydrocore/internal/scrape"
	"github.com/hydrocore/hydrocore/internal/sensor"
	"github.com/hydrocore/hydrocore/internal/store"
	"github.com/hydrocore/hydrocore/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("hydrocore starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"sensors", len(cfg.Sensors),
		"suppression_window", cfg.Alerting.SuppressionWindow,
		"mongo_enabled", cfg.Mongo.Enabled,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Alert and recommendation persistence: MongoDB when enabled, otherwise
	// everything lives in memory and on the wire.
	var (
		alertStore persist.AlertStore          = persist.Discard{}
		recStore   persist.RecommendationStore = persist.Discard{}
	)
	if cfg.Mongo.Enabled {
		client, err := persist.Connect(ctx, cfg.Mongo.URI())
		if err != nil {
			slog.Error("failed to connect to mongodb", "err", err)
			os.Exit(1)
		}
		mongoStore, err := persist.NewMongoStore(client, cfg.Mongo.Database)
		if err != nil {
			slog.Error("failed to initialize mongodb store", "err", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := mongoStore.Close(shutdownCtx); err != nil {
				slog.Error("mongodb disconnect", "err", err)
			}
		}()
		alertStore = mongoStore
		recStore = mongoStore
		slog.Info("mongodb persistence enabled", "database", cfg.Mongo.Database)
	}

	// Process metrics registry: Go runtime collectors plus our own.
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	registry := sensor.NewRegistry(cfg.SensorBounds()...)

	// Measurement window with background TTL eviction.
	window := store.New(cfg.Window.TTL, cfg.Window.MaxPerKey)
	go window.Run(ctx)

	manager := alerting.NewManager(alertStore, cfg.Alerting.SuppressionWindow)

	engine := recommend.New()
	if len(cfg.Ranges) > 0 {
		engine.SetRanges(cfg.RangeOverrides())
	}

	// WebSocket hub broadcasting measurement snapshots and alerts.
	hub := ws.New()
	go hub.Run(ctx)

	pipeline := ingest.New(registry, window, manager, engine, recStore, hub, m)

	// Sensor-gateway pull adapter.
	if sources := cfg.ScrapeSources(); len(sources) > 0 {
		runner := scrape.NewRunner(sources, cfg.Scrape.Interval, registry, pipeline, m)
		go runner.Run(ctx)
		slog.Info("scrape runner started", "sources", len(sources))
	}

	// Config hot-reload: thresholds, optimal ranges, and the suppression
	// window apply without a restart. Listener and persistence settings
	// need one.
	go func() {
		err := config.Watch(ctx, *configPath, func(next *config.Config) {
			registry.Replace(next.SensorBounds())
			manager.SetSuppressionWindow(next.Alerting.SuppressionWindow)
			engine.SetRanges(next.RangeOverrides())
			slog.Info("runtime config applied", "sensors", len(next.Sensors))
		})
		if err != nil {
			slog.Error("config watch stopped", "err", err)
		}
	}()

	// Keep the subscriber gauge current without coupling the hub to metrics.
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.WSClients.Set(float64(hub.Count()))
			}
		}
	}()

	// Combined HTTP server: REST API + WebSocket hub + metrics on HTTPPort.
	authMW := auth.APIKeyMiddleware(
		cfg.Server.Auth.Mode,
		cfg.Server.Auth.EffectiveHeader(),
		cfg.Server.Auth.Key(),
	)
	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", authMW(api.New(pipeline, hub, registry)))
	httpMux.Handle("/ws/stream", hub)
	httpMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: httpMux,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("hydrocore shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}
