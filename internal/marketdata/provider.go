// Package marketdata provides market data access for MarketFlow: the
// provider interface, the Polygon.io REST implementation, the parallel
// multi-timeframe fetcher, a Redis-backed kline cache and a websocket
// live-quote stream.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"marketflow/internal/logging"
)

const (
	maxRetries        = 3
	initialRetryDelay = 2 * time.Second
	maxRetryDelay     = 30 * time.Second
	requestTimeout    = 30 * time.Second
)

// Provider is the data access capability the engine consumes. Fetch returns
// the price table and volume series for one ticker and timeframe, aligned by
// timestamp, oldest bar first.
type Provider interface {
	Fetch(ctx context.Context, ticker, interval, period string) ([]PriceBar, []VolumePoint, error)
}

// PolygonProvider fetches aggregate bars from the Polygon.io REST API
type PolygonProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewPolygonProvider creates a Polygon.io provider
func NewPolygonProvider(apiKey string, logger *logging.Logger) *PolygonProvider {
	if logger == nil {
		logger = logging.Default()
	}
	return &PolygonProvider{
		apiKey:     apiKey,
		baseURL:    "https://api.polygon.io",
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger.WithComponent("polygon_provider"),
	}
}

// polygonAgg is one aggregate bar in a Polygon response
type polygonAgg struct {
	Timestamp int64   `json:"t"`
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	Volume    float64 `json:"v"`
}

// polygonAggsResponse is the envelope of a Polygon aggregates response
type polygonAggsResponse struct {
	Status       string       `json:"status"`
	ResultsCount int          `json:"resultsCount"`
	Results      []polygonAgg `json:"results"`
	Error        string       `json:"error,omitempty"`
}

// Fetch retrieves aggregate bars for a ticker with retry and backoff
func (p *PolygonProvider) Fetch(ctx context.Context, ticker, interval, period string) ([]PriceBar, []VolumePoint, error) {
	multiplier, timespan, err := parseInterval(interval)
	if err != nil {
		return nil, nil, NewProviderError(ErrorDataProcessing, ticker, interval, err)
	}
	start, end, err := parsePeriod(period, time.Now().UTC())
	if err != nil {
		return nil, nil, NewProviderError(ErrorDataProcessing, ticker, interval, err)
	}

	endpoint := fmt.Sprintf("%s/v2/aggs/ticker/%s/range/%d/%s/%s/%s",
		p.baseURL, url.PathEscape(strings.ToUpper(ticker)), multiplier, timespan,
		start.Format("2006-01-02"), end.Format("2006-01-02"))
	query := url.Values{}
	query.Set("adjusted", "true")
	query.Set("sort", "asc")
	query.Set("limit", "50000")
	query.Set("apiKey", p.apiKey)

	var lastErr error
	delay := initialRetryDelay
	for attempt := 1; attempt <= maxRetries; attempt++ {
		price, volume, err := p.fetchOnce(ctx, endpoint+"?"+query.Encode(), ticker, interval)
		if err == nil {
			return price, volume, nil
		}
		lastErr = err

		category := CategoryOf(err)
		if category == ErrorAuthentication || category == ErrorDataProcessing {
			return nil, nil, err
		}
		if attempt == maxRetries {
			break
		}
		p.logger.Warn("fetch attempt failed, retrying",
			"ticker", ticker, "interval", interval, "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return nil, nil, NewProviderError(ErrorNetwork, ticker, interval, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
	return nil, nil, lastErr
}

func (p *PolygonProvider) fetchOnce(ctx context.Context, requestURL, ticker, interval string) ([]PriceBar, []VolumePoint, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, nil, NewProviderError(ErrorUnknown, ticker, interval, err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, nil, NewProviderError(ErrorNetwork, ticker, interval, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, NewProviderError(ErrorNetwork, ticker, interval, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, nil, NewProviderError(ErrorAuthentication, ticker, interval, fmt.Errorf("status %d: %s", resp.StatusCode, body))
	case http.StatusTooManyRequests:
		return nil, nil, NewProviderError(ErrorRateLimit, ticker, interval, fmt.Errorf("rate limited: %s", body))
	default:
		return nil, nil, NewProviderError(ErrorAPI, ticker, interval, fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}

	var parsed polygonAggsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, nil, NewProviderError(ErrorDataProcessing, ticker, interval, err)
	}
	if parsed.Status == "ERROR" {
		return nil, nil, NewProviderError(ErrorAPI, ticker, interval, fmt.Errorf("api error: %s", parsed.Error))
	}

	price := make([]PriceBar, 0, len(parsed.Results))
	volume := make([]VolumePoint, 0, len(parsed.Results))
	for _, agg := range parsed.Results {
		ts := time.UnixMilli(agg.Timestamp).UTC()
		price = append(price, PriceBar{
			Timestamp: ts,
			Open:      agg.Open,
			High:      agg.High,
			Low:       agg.Low,
			Close:     agg.Close,
		})
		volume = append(volume, VolumePoint{Timestamp: ts, Volume: agg.Volume})
	}
	p.logger.Debug("fetched bars", "ticker", ticker, "interval", interval, "bars", len(price))
	return price, volume, nil
}

// parseInterval maps an interval string like "1d", "4h", "30m" to the
// provider's multiplier/timespan pair
func parseInterval(interval string) (int, string, error) {
	if len(interval) < 2 {
		return 0, "", fmt.Errorf("invalid interval %q", interval)
	}
	unit := interval[len(interval)-1:]
	multiplier, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil || multiplier <= 0 {
		return 0, "", fmt.Errorf("invalid interval %q", interval)
	}
	switch unit {
	case "m":
		return multiplier, "minute", nil
	case "h":
		return multiplier, "hour", nil
	case "d":
		return multiplier, "day", nil
	case "w":
		return multiplier, "week", nil
	default:
		return 0, "", fmt.Errorf("unsupported interval unit %q", unit)
	}
}

// parsePeriod maps a lookback string like "60d", "6mo" or "1y" to a date
// range ending now. An explicit range may be given as
// "2024-01-02/2024-06-28".
func parsePeriod(period string, now time.Time) (time.Time, time.Time, error) {
	if strings.Contains(period, "/") {
		parts := strings.SplitN(period, "/", 2)
		start, err := time.Parse("2006-01-02", parts[0])
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid period start %q", parts[0])
		}
		end, err := time.Parse("2006-01-02", parts[1])
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid period end %q", parts[1])
		}
		if end.Before(start) {
			return time.Time{}, time.Time{}, fmt.Errorf("period end %q before start %q", parts[1], parts[0])
		}
		return start, end, nil
	}

	var n int
	var unit string
	if strings.HasSuffix(period, "mo") {
		unit = "mo"
		v, err := strconv.Atoi(strings.TrimSuffix(period, "mo"))
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid period %q", period)
		}
		n = v
	} else if len(period) >= 2 {
		unit = period[len(period)-1:]
		v, err := strconv.Atoi(period[:len(period)-1])
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid period %q", period)
		}
		n = v
	} else {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid period %q", period)
	}
	if n <= 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid period %q", period)
	}

	switch unit {
	case "d":
		return now.AddDate(0, 0, -n), now, nil
	case "w":
		return now.AddDate(0, 0, -7*n), now, nil
	case "mo":
		return now.AddDate(0, -n, 0), now, nil
	case "y":
		return now.AddDate(-n, 0, 0), now, nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unsupported period unit in %q", period)
	}
}
