package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/telehealth-scheduling/internal/account"
)

// DoctorCache keeps verified doctor records for a bounded time.
type DoctorCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDoctorCache(client *redis.Client, ttl time.Duration) *DoctorCache {
	return &DoctorCache{client: client, ttl: ttl}
}

func doctorKey(id uuid.UUID) string {
	return "doctor:" + id.String()
}

// Get returns (nil, nil) on a miss.
func (c *DoctorCache) Get(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	raw, err := c.client.Get(ctx, doctorKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cached doctor: %w", err)
	}

	var a account.Account
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("decode cached doctor: %w", err)
	}
	return &a, nil
}

func (c *DoctorCache) Set(ctx context.Context, a *account.Account) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode doctor: %w", err)
	}
	if err := c.client.Set(ctx, doctorKey(a.ID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache doctor: %w", err)
	}
	return nil
}

func (c *DoctorCache) Delete(ctx context.Context, id uuid.UUID) error {
	if err := c.client.Del(ctx, doctorKey(id)).Err(); err != nil {
		return fmt.Errorf("evict cached doctor: %w", err)
	}
	return nil
}
