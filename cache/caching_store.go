// Package cache puts Redis in front of the price store.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/icodeforyou/pvpc-go/hours"
	"github.com/icodeforyou/pvpc-go/types"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

type Store interface {
	QueryDay(ctx context.Context, date string) ([]types.PricePoint, error)
	ReplaceDay(ctx context.Context, date string, prices []types.PricePoint) error
	ThirtyDayAverage(ctx context.Context, date string) (decimal.Decimal, error)
	DailyAverages(ctx context.Context, from, to string) ([]types.DailyAverage, error)
}

// Purger deletes the prices of days older than retentionDays.
type Purger interface {
	PurgePrices(ctx context.Context, retentionDays int) error
}

// CachingStore caches complete days and thirty-day averages. Replacing a
// day drops the day and every average whose window contains it.
type CachingStore struct {
	inner     Store
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
	logger    *slog.Logger
}

// NewCachingStore with a nil client passes everything through to inner.
func NewCachingStore(logger *slog.Logger, rdb *redis.Client, ttl time.Duration, inner Store, namespace string) *CachingStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if namespace == "" {
		namespace = "pvpc"
	}
	return &CachingStore{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
		logger:    logger,
	}
}

type cachedPrice struct {
	Date  string          `json:"date"`
	Hour  uint8           `json:"hour"`
	Price decimal.Decimal `json:"price"`
}

func (c *CachingStore) QueryDay(ctx context.Context, date string) ([]types.PricePoint, error) {
	if c.rdb == nil {
		return c.inner.QueryDay(ctx, date)
	}

	key := c.dayKey(date)
	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var cached []cachedPrice
		if err := json.Unmarshal(b, &cached); err == nil {
			prices := make([]types.PricePoint, len(cached))
			for i, cp := range cached {
				prices[i] = types.NewPricePoint(hours.At(cp.Date, int(cp.Hour)), cp.Price)
			}
			return prices, nil
		}
		c.logger.Warn("dropping corrupted cache entry", slog.String("key", key))
		_ = c.rdb.Del(ctx, key).Err()
	}

	prices, err := c.inner.QueryDay(ctx, date)
	if err != nil {
		return nil, err
	}

	// Days still being filled are not worth caching.
	if len(prices) == 24 {
		cached := make([]cachedPrice, len(prices))
		for i, p := range prices {
			cached[i] = cachedPrice{Date: p.When.Date, Hour: p.When.Hour, Price: p.Price}
		}
		if b, err := json.Marshal(cached); err == nil {
			_ = c.rdb.Set(ctx, key, b, c.ttl).Err()
		}
	}

	return prices, nil
}

func (c *CachingStore) ThirtyDayAverage(ctx context.Context, date string) (decimal.Decimal, error) {
	if c.rdb == nil {
		return c.inner.ThirtyDayAverage(ctx, date)
	}

	key := c.averageKey(date)
	if s, err := c.rdb.Get(ctx, key).Result(); err == nil {
		if avg, err := decimal.NewFromString(s); err == nil {
			return avg, nil
		}
		c.logger.Warn("dropping corrupted cache entry", slog.String("key", key))
		_ = c.rdb.Del(ctx, key).Err()
	}

	avg, err := c.inner.ThirtyDayAverage(ctx, date)
	if err != nil {
		return decimal.Zero, err
	}
	_ = c.rdb.Set(ctx, key, avg.String(), c.ttl).Err()
	return avg, nil
}

func (c *CachingStore) DailyAverages(ctx context.Context, from, to string) ([]types.DailyAverage, error) {
	return c.inner.DailyAverages(ctx, from, to)
}

func (c *CachingStore) ReplaceDay(ctx context.Context, date string, prices []types.PricePoint) error {
	if err := c.inner.ReplaceDay(ctx, date, prices); err != nil {
		return err
	}
	c.Invalidate(ctx, date)
	return nil
}

// Invalidate drops the cached day and the averages of the thirty days after it.
func (c *CachingStore) Invalidate(ctx context.Context, date string) {
	if c.rdb == nil {
		return
	}
	keys := make([]string, 0, 32)
	keys = append(keys, c.dayKey(date))
	for i := 0; i <= 30; i++ {
		keys = append(keys, c.averageKey(hours.AddDays(date, i)))
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("cache invalidation failed", slog.String("date", date), slog.Any("error", err))
	}
}

// PurgePrices purges the inner store, then drops the cached days it deleted
// and the cached averages whose window reached into them.
func (c *CachingStore) PurgePrices(ctx context.Context, retentionDays int) error {
	purger, ok := c.inner.(Purger)
	if !ok {
		return fmt.Errorf("store %T can't purge prices", c.inner)
	}
	if err := purger.PurgePrices(ctx, retentionDays); err != nil {
		return err
	}
	if retentionDays < 1 || c.rdb == nil {
		return nil
	}

	cutoff := hours.AddDays(hours.Today(), -retentionDays)
	c.dropBefore(ctx, "day", cutoff)
	c.dropBefore(ctx, "avg30", hours.AddDays(cutoff, 30))
	return nil
}

// dropBefore deletes the keys of one kind dated before the given date.
func (c *CachingStore) dropBefore(ctx context.Context, kind string, before string) {
	prefix := fmt.Sprintf("%s:%s:", c.namespace, kind)
	var stale []string
	iter := c.rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if strings.TrimPrefix(iter.Val(), prefix) < before {
			stale = append(stale, iter.Val())
		}
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("cache scan failed", slog.String("kind", kind), slog.Any("error", err))
		return
	}
	if len(stale) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, stale...).Err(); err != nil {
		c.logger.Warn("cache purge failed", slog.String("kind", kind), slog.Any("error", err))
		return
	}
	c.logger.Debug("purged cache entries", slog.String("kind", kind), slog.Int("count", len(stale)))
}

func (c *CachingStore) dayKey(date string) string {
	return fmt.Sprintf("%s:day:%s", c.namespace, date)
}

func (c *CachingStore) averageKey(date string) string {
	return fmt.Sprintf("%s:avg30:%s", c.namespace, date)
}
