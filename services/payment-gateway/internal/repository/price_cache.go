// services/payment-gateway/internal/repository/price_cache.go
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tae5567/globalpay-gateway/shared/pkg/redis"
)

// PriceSource is the authoritative price store.
type PriceSource interface {
	GetPrice(ctx context.Context, listingID int64) (decimal.Decimal, error)
}

// Cache is the subset of the redis client the price cache uses.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

// CachedPriceLookup reads listing prices through redis for display. Cache
// errors are logged and fall through to the source.
//
// A miss fills the entry with SETNX and a price change overwrites it with
// Refresh, so a fill that read the old price before the change cannot
// replace the refreshed entry.
type CachedPriceLookup struct {
	source PriceSource
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedPriceLookup(source PriceSource, cache Cache, ttl time.Duration, logger *zap.Logger) *CachedPriceLookup {
	return &CachedPriceLookup{
		source: source,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

func priceKey(listingID int64) string {
	return fmt.Sprintf("price:listing:%d", listingID)
}

func (c *CachedPriceLookup) GetPrice(ctx context.Context, listingID int64) (decimal.Decimal, error) {
	key := priceKey(listingID)

	raw, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		price, parseErr := decimal.NewFromString(raw)
		if parseErr == nil {
			c.logger.Debug("price cache hit", zap.Int64("listing_id", listingID))
			return price, nil
		}
		c.logger.Warn("discarding malformed cached price",
			zap.String("key", key),
			zap.Error(parseErr))
		if err := c.cache.Delete(ctx, key); err != nil {
			c.logger.Warn("failed to drop malformed cached price", zap.Error(err))
		}
	case !errors.Is(err, redis.ErrKeyNotFound):
		c.logger.Warn("price cache unavailable", zap.Error(err))
	}

	price, err := c.source.GetPrice(ctx, listingID)
	if err != nil {
		return decimal.Zero, err
	}

	if _, err := c.cache.SetNX(ctx, key, price.String(), c.ttl); err != nil {
		c.logger.Warn("failed to cache price",
			zap.String("key", key),
			zap.Error(err))
	}
	return price, nil
}

// Refresh writes a listing's new price over any cached entry. If the write
// fails the entry is dropped and the write error is still returned.
func (c *CachedPriceLookup) Refresh(ctx context.Context, listingID int64, price decimal.Decimal) error {
	key := priceKey(listingID)
	setErr := c.cache.Set(ctx, key, price.String(), c.ttl)
	if setErr == nil {
		return nil
	}
	return fmt.Errorf("failed to refresh cached price: %w",
		errors.Join(setErr, c.cache.Delete(ctx, key)))
}
