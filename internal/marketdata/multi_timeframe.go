package marketdata

import (
	"context"
	"sync"

	"marketflow/internal/logging"
)

// MultiTimeframeProvider fetches every configured timeframe for a ticker in
// parallel and reassembles the results deterministically by timeframe key
type MultiTimeframeProvider struct {
	provider Provider
	logger   *logging.Logger
}

// NewMultiTimeframeProvider wraps a provider with parallel multi-timeframe
// fetching
func NewMultiTimeframeProvider(provider Provider, logger *logging.Logger) *MultiTimeframeProvider {
	if logger == nil {
		logger = logging.Default()
	}
	return &MultiTimeframeProvider{
		provider: provider,
		logger:   logger.WithComponent("multi_timeframe_provider"),
	}
}

// FetchAll fetches all timeframes concurrently. Individual fetch failures
// are returned per timeframe; the call fails outright only on cancellation.
func (m *MultiTimeframeProvider) FetchAll(ctx context.Context, ticker string, timeframes []Timeframe) (map[string]TimeframeData, map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	data := make(map[string]TimeframeData, len(timeframes))
	failures := make(map[string]string)

	for _, tf := range timeframes {
		wg.Add(1)
		go func(tf Timeframe) {
			defer wg.Done()

			price, volume, err := m.provider.Fetch(ctx, ticker, tf.Interval, tf.Period)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				m.logger.Warn("timeframe fetch failed",
					"ticker", ticker, "interval", tf.Interval, "error", err)
				failures[tf.Key()] = err.Error()
				return
			}
			if len(price) == 0 {
				failures[tf.Key()] = "no bars returned"
				return
			}
			data[tf.Key()] = TimeframeData{Timeframe: tf, Price: price, Volume: volume}
		}(tf)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	m.logger.Debug("multi-timeframe fetch complete",
		"ticker", ticker, "fetched", len(data), "failed", len(failures))
	return data, failures, nil
}
