// Package cache keeps resolved principals in Redis so handshakes and REST
// calls skip the user lookup while the entry is fresh.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ahis-social/server/internal/domain"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const keyPrefix = "principal:"

type PrincipalCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPrincipalCache(client *redis.Client, ttl time.Duration) *PrincipalCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PrincipalCache{client: client, ttl: ttl}
}

// Connect dials Redis and verifies the connection.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		// Bare host:port, as in REDIS_URL=localhost:6379.
		opts = &redis.Options{Addr: addr}
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("unable to ping redis: %w", err)
	}
	return client, nil
}

func key(id uuid.UUID) string {
	return keyPrefix + id.String()
}

// Get returns (nil, nil) on a miss.
func (c *PrincipalCache) Get(ctx context.Context, id uuid.UUID) (*domain.Principal, error) {
	raw, err := c.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var p domain.Principal
	if err := json.Unmarshal(raw, &p); err != nil {
		// Corrupt entry: drop it and fall through to the store.
		_ = c.client.Del(ctx, key(id)).Err()
		return nil, nil
	}
	return &p, nil
}

func (c *PrincipalCache) Set(ctx context.Context, p *domain.Principal) error {
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key(p.ID), body, c.ttl).Err()
}

// Invalidate drops the cached entry, e.g. after an approval state change.
func (c *PrincipalCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	return c.client.Del(ctx, key(id)).Err()
}
