package redisclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockNotAcquired = errors.New("lock not acquired")

// Locker guards a critical section across processes. Only one holder of a
// given key runs fn at a time; others get ErrLockNotAcquired immediately.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// RedisLocker stores each lock as a key holding a random owner token. The key
// expires after ttl, and fn's context is cut at the same point, so a crashed
// holder never blocks the key for longer than ttl.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisLocker(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisLocker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLocker{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func lockKey(key string) string {
	return "lock:" + key
}

func (l *RedisLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	redisKey := lockKey(key)
	owner := uuid.NewString()

	acquired, err := l.client.SetNX(ctx, redisKey, owner, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !acquired {
		return ErrLockNotAcquired
	}

	held, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	fnErr := fn(held)

	// The caller's context may already be done; release regardless.
	if err := l.release(context.WithoutCancel(ctx), redisKey, owner); err != nil {
		l.logger.WarnContext(ctx, "lock release failed", "key", key, "error", err)
	}
	return fnErr
}

// releaseScript deletes the key only while it still holds our owner token,
// so an expired lock that someone else re-acquired is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *RedisLocker) release(ctx context.Context, redisKey, owner string) error {
	err := releaseScript.Run(ctx, l.client, []string{redisKey}, owner).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}
