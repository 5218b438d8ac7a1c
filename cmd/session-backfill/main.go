package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackgods/telehealth-scheduling/internal/appointment"
	"github.com/hackgods/telehealth-scheduling/internal/config"
	"github.com/hackgods/telehealth-scheduling/internal/db"
	"github.com/hackgods/telehealth-scheduling/internal/logging"
	redisclient "github.com/hackgods/telehealth-scheduling/internal/redis"
	"github.com/hackgods/telehealth-scheduling/internal/telemetry"
	"github.com/hackgods/telehealth-scheduling/internal/video"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger := logging.New("session-backfill", cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("session-backfill starting up", "env", cfg.Env, "interval", cfg.WorkerInterval, "batch", cfg.BackfillBatch)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(rootCtx, telemetry.Config{
		Enabled:      cfg.OTelEnabled,
		ServiceName:  "telehealth-session-backfill",
		Version:      cfg.Version,
		OTLPEndpoint: cfg.OTelEndpoint,
	})
	if err != nil {
		logger.Error("telemetry setup error", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, logger)
	cancelPg()
	if err != nil {
		logger.Error("postgres connection error", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(rootCtx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		logger.Error("redis connection error", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("error closing redis", "error", err)
		}
	}()
	logger.Info("connected to Redis")

	svc := appointment.NewService(appointment.Deps{
		Repo:   appointment.NewPgRepository(),
		Runner: db.NewRunner(pgPool, cfg.TxTimeout),
		Pool:   pgPool,
		Video:  video.NewClient(cfg.VideoBaseURL, video.NewSigner(cfg.VideoAPIKey, cfg.VideoAPISecret), cfg.VideoTimeout),
		Locker: redisclient.NewRedisLocker(rdb, cfg.LockTTL, logger),
		Logger: logger,
	}, cfg)

	// Run once at startup
	runOnce(rootCtx, logger, svc, cfg.BackfillBatch)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received, stopping session backfill")
			return
		case <-ticker.C:
			runOnce(rootCtx, logger, svc, cfg.BackfillBatch)
		}
	}
}

func runOnce(ctx context.Context, logger *slog.Logger, svc *appointment.Service, batch int) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	attached, err := svc.BackfillSessions(runCtx, batch)
	if err != nil {
		logger.Error("backfill run error", "error", err, "attached", attached)
		return
	}
	logger.Info("backfill run complete", "attached", attached, "duration_ms", time.Since(start).Milliseconds())
}
