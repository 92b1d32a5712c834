package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// klineCacheKeyPrefix namespaces cached kline payloads in Redis
const klineCacheKeyPrefix = "marketflow:klines"

// cachedSeries is the serialized cache payload for one fetch
type cachedSeries struct {
	Price  []PriceBar    `json:"price"`
	Volume []VolumePoint `json:"volume"`
}

// CachedProvider decorates a Provider with a TTL kline cache. Redis is the
// primary store; when it is unavailable the cache transparently falls back
// to an in-memory map so analyses continue uninterrupted.
type CachedProvider struct {
	inner  Provider
	client *redis.Client
	logger zerolog.Logger

	mu       sync.RWMutex
	fallback map[string]fallbackEntry
}

type fallbackEntry struct {
	series    cachedSeries
	expiresAt time.Time
}

// NewCachedProvider wraps a provider with caching. The Redis client may be
// nil, in which case only the in-memory fallback is used.
func NewCachedProvider(inner Provider, client *redis.Client, logger zerolog.Logger) *CachedProvider {
	return &CachedProvider{
		inner:    inner,
		client:   client,
		logger:   logger.With().Str("component", "kline_cache").Logger(),
		fallback: make(map[string]fallbackEntry),
	}
}

// Fetch returns cached bars when fresh, delegating to the inner provider on
// a miss
func (c *CachedProvider) Fetch(ctx context.Context, ticker, interval, period string) ([]PriceBar, []VolumePoint, error) {
	key := fmt.Sprintf("%s:%s:%s:%s", klineCacheKeyPrefix, ticker, interval, period)

	if series, ok := c.get(ctx, key); ok {
		c.logger.Debug().Str("ticker", ticker).Str("interval", interval).Msg("kline cache hit")
		return series.Price, series.Volume, nil
	}

	price, volume, err := c.inner.Fetch(ctx, ticker, interval, period)
	if err != nil {
		return nil, nil, err
	}
	c.set(ctx, key, cachedSeries{Price: price, Volume: volume}, cacheTTL(interval))
	return price, volume, nil
}

func (c *CachedProvider) get(ctx context.Context, key string) (cachedSeries, bool) {
	if c.client != nil {
		payload, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			var series cachedSeries
			if jsonErr := json.Unmarshal(payload, &series); jsonErr == nil {
				return series, true
			}
		} else if err != redis.Nil {
			c.logger.Warn().Err(err).Msg("redis get failed, using in-memory fallback")
		}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.fallback[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return cachedSeries{}, false
	}
	return entry.series, true
}

func (c *CachedProvider) set(ctx context.Context, key string, series cachedSeries, ttl time.Duration) {
	if c.client != nil {
		payload, err := json.Marshal(series)
		if err == nil {
			if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
				c.logger.Warn().Err(err).Msg("redis set failed, using in-memory fallback")
			}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.fallback[key] = fallbackEntry{series: series, expiresAt: time.Now().Add(ttl)}
}

// Purge drops expired in-memory entries
func (c *CachedProvider) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for key, entry := range c.fallback {
		if now.After(entry.expiresAt) {
			delete(c.fallback, key)
		}
	}
}

// cacheTTL scales the cache lifetime with the bar interval
func cacheTTL(interval string) time.Duration {
	switch interval {
	case "1m":
		return 30 * time.Second
	case "5m":
		return 2 * time.Minute
	case "15m":
		return 5 * time.Minute
	case "30m":
		return 10 * time.Minute
	case "1h":
		return 30 * time.Minute
	case "4h":
		return 2 * time.Hour
	case "1d":
		return 12 * time.Hour
	default:
		return time.Minute
	}
}
