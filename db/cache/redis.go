// Package cache keeps recently computed audit reports in Redis, keyed by input digest.
// The engine is deterministic, so identical input text always maps to the same report.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lawaudit/decision/audit"
)

const keyPrefix = "lawaudit:report:"

// Cache stores reports with a fixed TTL
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a cache backed by Redis.
func New(addr, password string, db int, ttl time.Duration) *Cache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewWithClient(rdb, ttl)
}

// NewWithClient wraps an existing client
func NewWithClient(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{client: client, ttl: ttl}
}

// Key is the Redis key for a digest. Digests of masked reports carry a
// "redacted:" scope, giving lawaudit:report:redacted:<sha256>.
func Key(digest string) string {
	return keyPrefix + digest
}

// Get returns the cached report for digest, if any
func (c *Cache) Get(ctx context.Context, digest string) (*audit.Report, bool, error) {
	data, err := c.client.Get(ctx, Key(digest)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get failed: %w", err)
	}

	var report audit.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, false, fmt.Errorf("cache decode failed: %w", err)
	}
	return &report, true, nil
}

// Put stores report under digest
func (c *Cache) Put(ctx context.Context, digest string, report *audit.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("cache encode failed: %w", err)
	}
	if err := c.client.Set(ctx, Key(digest), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache put failed: %w", err)
	}
	return nil
}

// Ping checks connectivity
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the client
func (c *Cache) Close() error {
	return c.client.Close()
}
