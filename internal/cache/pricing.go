// Package cache keeps the hectare price table in Redis so every API
// replica reads the same prices between refreshes.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/smukkama/farm-carbon/internal/aggregation"
)

// PricingKey is the Redis key holding the encoded price table
const PricingKey = "pricing:hectare_usd"

// DefaultTTL bounds how stale a cached price table can get
const DefaultTTL = 60 * time.Second

// PricingSource loads and updates the authoritative price table
type PricingSource interface {
	ListHectarePrices(ctx context.Context) ([]aggregation.HectarePrice, error)
	UpsertHectarePrice(ctx context.Context, p aggregation.HectarePrice) error
}

// Store is the subset of the Redis client the cache uses
type Store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// pricingEntry is the cached representation of the table
type pricingEntry struct {
	Prices   []aggregation.HectarePrice `json:"prices"`
	CachedAt time.Time                  `json:"cached_at"`
}

// PricingCache is a read-through cache in front of a PricingSource
type PricingCache struct {
	store  Store
	source PricingSource
	ttl    time.Duration
	logger *zap.Logger
}

// NewPricingCache creates a cache; a non-positive ttl selects DefaultTTL
func NewPricingCache(store Store, source PricingSource, ttl time.Duration, logger *zap.Logger) *PricingCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PricingCache{store: store, source: source, ttl: ttl, logger: logger}
}

// ListHectarePrices returns the cached table, loading it from the source
// on a miss. Redis being unavailable degrades to reading the source.
func (c *PricingCache) ListHectarePrices(ctx context.Context) ([]aggregation.HectarePrice, error) {
	prices, err := c.get(ctx)
	if err == nil {
		return prices, nil
	}
	if !errors.Is(err, redis.Nil) {
		c.logger.Warn("Pricing cache read failed, loading from source", zap.Error(err))
	}

	prices, err = c.source.ListHectarePrices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load hectare prices: %w", err)
	}

	if err := c.set(ctx, prices); err != nil {
		c.logger.Warn("Pricing cache write failed", zap.Error(err))
	}
	return prices, nil
}

// SetHectarePrice writes p to the source and drops the cached table. A
// failed delete is logged only; the TTL still bounds staleness.
func (c *PricingCache) SetHectarePrice(ctx context.Context, p aggregation.HectarePrice) error {
	if err := c.source.UpsertHectarePrice(ctx, p); err != nil {
		return err
	}
	if err := c.Invalidate(ctx); err != nil {
		c.logger.Warn("Pricing cache not invalidated", zap.String("groupScheme", p.GroupScheme), zap.Error(err))
	}
	return nil
}

// Invalidate drops the cached table so the next read hits the source
func (c *PricingCache) Invalidate(ctx context.Context) error {
	if err := c.store.Del(ctx, PricingKey).Err(); err != nil {
		return fmt.Errorf("failed to delete pricing cache: %w", err)
	}
	return nil
}

func (c *PricingCache) get(ctx context.Context) ([]aggregation.HectarePrice, error) {
	data, err := c.store.Get(ctx, PricingKey).Result()
	if err != nil {
		return nil, err
	}

	var entry pricingEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pricing cache: %w", err)
	}
	return entry.Prices, nil
}

func (c *PricingCache) set(ctx context.Context, prices []aggregation.HectarePrice) error {
	data, err := json.Marshal(pricingEntry{Prices: prices, CachedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal pricing cache: %w", err)
	}
	return c.store.Set(ctx, PricingKey, data, c.ttl).Err()
}
