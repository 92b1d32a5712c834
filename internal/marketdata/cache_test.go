package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// countingProvider tracks how many real fetches the cache lets through
type countingProvider struct {
	calls int
}

func (c *countingProvider) Fetch(ctx context.Context, ticker, interval, period string) ([]PriceBar, []VolumePoint, error) {
	c.calls++
	ts := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	return []PriceBar{{Timestamp: ts, Open: 100, High: 101, Low: 99, Close: 100.5}},
		[]VolumePoint{{Timestamp: ts, Volume: 1000}}, nil
}

// TestCacheServesRepeatFetches hits the in-memory fallback on the second call
func TestCacheServesRepeatFetches(t *testing.T) {
	inner := &countingProvider{}
	cached := NewCachedProvider(inner, nil, zerolog.Nop())
	ctx := context.Background()

	price, volume, err := cached.Fetch(ctx, "AAPL", "1d", "60d")
	if err != nil {
		t.Fatalf("first fetch failed: %v", err)
	}
	if len(price) != 1 || len(volume) != 1 {
		t.Fatalf("unexpected series lengths: %d/%d", len(price), len(volume))
	}

	if _, _, err := cached.Fetch(ctx, "AAPL", "1d", "60d"); err != nil {
		t.Fatalf("second fetch failed: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", inner.calls)
	}

	// A different key misses the cache.
	if _, _, err := cached.Fetch(ctx, "MSFT", "1d", "60d"); err != nil {
		t.Fatalf("third fetch failed: %v", err)
	}
	if inner.calls != 2 {
		t.Errorf("expected 2 upstream calls after a new ticker, got %d", inner.calls)
	}
}

// TestCacheTTLScalesWithInterval sanity-checks the TTL ladder
func TestCacheTTLScalesWithInterval(t *testing.T) {
	if cacheTTL("1m") >= cacheTTL("1h") {
		t.Error("expected 1m TTL below 1h TTL")
	}
	if cacheTTL("1h") >= cacheTTL("1d") {
		t.Error("expected 1h TTL below 1d TTL")
	}
	if cacheTTL("unknown") != time.Minute {
		t.Error("expected the default TTL for unknown intervals")
	}
}
