package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/patrickwarner/openbidbridge/internal/analytics"
	"github.com/patrickwarner/openbidbridge/internal/api"
	"github.com/patrickwarner/openbidbridge/internal/config"
	"github.com/patrickwarner/openbidbridge/internal/db"
	"github.com/patrickwarner/openbidbridge/internal/eventhandler"
	"github.com/patrickwarner/openbidbridge/internal/hostclient"
	"github.com/patrickwarner/openbidbridge/internal/models"
	"github.com/patrickwarner/openbidbridge/internal/observability"
	"github.com/patrickwarner/openbidbridge/internal/ratelimit"
)

func main() {
	cfg := config.Load()

	logger, err := observability.InitLoggerWithService(cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to sync logger: %v\n", err)
		}
	}()

	if err := run(logger, cfg); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *zap.Logger, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdown, err := observability.InitTracing(ctx, logger, cfg.ServiceName, cfg.TempoEndpoint, cfg.TracingSampleRate)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer shutdown()
	}

	seed, err := models.ParseSlots(cfg.Slots)
	if err != nil {
		return fmt.Errorf("parse SLOTS: %w", err)
	}

	var slotStore db.SlotStore
	if cfg.PostgresDSN != "" {
		pg, err := db.InitPostgres(cfg.PostgresDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
		if err != nil {
			return fmt.Errorf("failed to connect postgres: %w", err)
		}
		defer pg.Close()
		slotStore = pg
	}

	catalog, err := db.Init(ctx, slotStore, seed)
	if err != nil {
		return fmt.Errorf("failed to load slots: %w", err)
	}
	if len(catalog.Slots) == 0 {
		return fmt.Errorf("no slots configured: set SLOTS or POSTGRES_DSN")
	}

	store, err := db.InitRedis(cfg.RedisAddr)
	if err != nil {
		return fmt.Errorf("failed to connect redis: %w", err)
	}
	defer store.Close()

	analyticsSvc, err := analytics.InitClickHouse(cfg.ClickHouseDSN, cfg.CHMaxOpenConns, cfg.CHMaxIdleConns, cfg.CHConnMaxLifetime, cfg.CHConnMaxIdleTime)
	if err != nil {
		return fmt.Errorf("failed to connect clickhouse: %w", err)
	}
	defer analyticsSvc.Close()

	metricsRegistry := observability.NewPrometheusRegistry()
	client := hostclient.NewClient(cfg.HostAdServerURL, cfg.HostRequestTimeout, nil, logger, metricsRegistry)

	srvDeps := api.NewServer(logger, store, analyticsSvc, metricsRegistry, cfg.DecisionTimeout)
	defer srvDeps.Close()
	srvDeps.Limiter = ratelimit.NewSlotLimiter(ratelimit.Config{
		Capacity:   cfg.RateLimitCapacity,
		RefillRate: cfg.RateLimitRefillRate,
		Enabled:    cfg.RateLimitEnabled,
	}, metricsRegistry)

	base := eventhandler.Config{
		Logger:        logger,
		Metrics:       metricsRegistry,
		Recorders:     []eventhandler.DecisionRecorder{store, analyticsSvc},
		RecordTimeout: cfg.RecordTimeout,
	}
	if err := registerSlots(srvDeps, catalog, client, cfg, base, logger); err != nil {
		return fmt.Errorf("register slots: %w", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      otelhttp.NewHandler(srvDeps.Router(), "bridge"),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	logger.Info("Bridge running",
		zap.String("addr", addr),
		zap.String("host_ad_server", cfg.HostAdServerURL),
		zap.Strings("slots", srvDeps.SlotIDs()),
		zap.Duration("wait_window", cfg.WinWaitWindow))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return nil
}
