package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/telehealth-scheduling/internal/account"
	"github.com/hackgods/telehealth-scheduling/internal/config"
	redisclient "github.com/hackgods/telehealth-scheduling/internal/redis"
)

var errRedisUnavailable = errors.New("redis unavailable since startup")

// redisDeps carries the Redis-backed pieces of the API. When Redis cannot be
// reached at startup every field is nil: the account service reads doctors
// straight from Postgres and readiness reports redis as down.
type redisDeps struct {
	client *redis.Client
	cache  account.Cache
	locker redisclient.Locker
}

func connectRedis(ctx context.Context, cfg config.Config, logger *slog.Logger) redisDeps {
	rdb, err := redisclient.NewRedisClient(ctx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		logger.Warn("redis unavailable, serving without doctor cache", "addr", cfg.RedisAddr, "error", err)
		return redisDeps{}
	}
	logger.Info("connected to Redis")

	return redisDeps{
		client: rdb,
		cache:  redisclient.NewDoctorCache(rdb, cfg.DoctorCacheTTL),
		locker: redisclient.NewRedisLocker(rdb, cfg.LockTTL, logger),
	}
}

func (d redisDeps) Ping(ctx context.Context) error {
	if d.client == nil {
		return errRedisUnavailable
	}
	return d.client.Ping(ctx).Err()
}

func (d redisDeps) Close() error {
	if d.client == nil {
		return nil
	}
	return d.client.Close()
}
