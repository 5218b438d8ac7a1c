package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hackgods/telehealth-scheduling/internal/account"
	"github.com/hackgods/telehealth-scheduling/internal/api"
	"github.com/hackgods/telehealth-scheduling/internal/appointment"
	"github.com/hackgods/telehealth-scheduling/internal/availability"
	"github.com/hackgods/telehealth-scheduling/internal/config"
	"github.com/hackgods/telehealth-scheduling/internal/db"
	"github.com/hackgods/telehealth-scheduling/internal/ledger"
	"github.com/hackgods/telehealth-scheduling/internal/logging"
	"github.com/hackgods/telehealth-scheduling/internal/metrics"
	"github.com/hackgods/telehealth-scheduling/internal/payout"
	"github.com/hackgods/telehealth-scheduling/internal/telemetry"
	"github.com/hackgods/telehealth-scheduling/internal/video"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger := logging.New("api-server", cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("api-server starting up", "env", cfg.Env, "http_port", cfg.HTTPPort, "version", cfg.Version)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(rootCtx, telemetry.Config{
		Enabled:      cfg.OTelEnabled,
		ServiceName:  "telehealth-api",
		Version:      cfg.Version,
		OTLPEndpoint: cfg.OTelEndpoint,
	})
	if err != nil {
		fatal(logger, "telemetry setup error", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Error("tracer shutdown error", "error", err)
		}
	}()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, logger)
	cancelPg()
	if err != nil {
		fatal(logger, "postgres connection error", err)
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	rdb := connectRedis(rootCtx, cfg, logger)
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("error closing redis", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	runner := db.NewRunner(pgPool, cfg.TxTimeout).OnRetry(m.IncTxRetry)
	ledgerSvc := ledger.New(ledger.NewPgStore())

	accounts := account.NewService(
		account.NewPgRepository(pgPool),
		rdb.cache,
		runner,
		pgPool,
		ledgerSvc,
		logger,
	)

	signer := video.NewSigner(cfg.VideoAPIKey, cfg.VideoAPISecret)
	videoClient := video.NewClient(cfg.VideoBaseURL, signer, cfg.VideoTimeout)

	windows := availability.NewPgWindowRepository(pgPool)

	appointments := appointment.NewService(appointment.Deps{
		Repo:     appointment.NewPgRepository(),
		Runner:   runner,
		Pool:     pgPool,
		Accounts: accounts,
		Windows:  availability.NewWindowLookup(windows),
		Ledger:   ledgerSvc,
		Video:    videoClient,
		Locker:   rdb.locker,
		Metrics:  m,
		Logger:   logger,
	}, cfg)

	resolver := availability.NewResolver(
		accounts,
		windows,
		appointments,
		cfg.AvailabilityDays,
		cfg.SlotDuration,
		logger,
	)

	payouts := payout.NewProcessor(payout.NewPgRepository(), runner, pgPool, accounts, ledgerSvc, appointments, m, logger)

	handler := api.NewRouter(api.RouterConfig{
		Accounts:     accounts,
		Availability: resolver,
		Appointments: appointments,
		Payouts:      payouts,
		Postgres:     pgPool,
		Redis:        rdb,
		Gatherer:     reg,
		Logger:       logger,
		Env:          cfg.Env,
		Version:      cfg.Version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("http server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}

	logger.Info("shutting down api-server")
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
