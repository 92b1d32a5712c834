package marketdata

import "time"

// PriceBar represents a single OHLC bar
type PriceBar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
}

// VolumePoint represents the traded volume for a single bar
type VolumePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Volume    float64   `json:"volume"`
}

// Timeframe describes one timeframe request: an interval string ("1d", "1h",
// "15m") and a lookback period string ("60d", "6mo", "1y")
type Timeframe struct {
	Interval string `json:"interval"`
	Period   string `json:"period"`
}

// Key returns the map key used for this timeframe in analysis results
func (tf Timeframe) Key() string {
	return tf.Interval
}

// TimeframeData bundles the aligned raw series fetched for one timeframe
type TimeframeData struct {
	Timeframe Timeframe
	Price     []PriceBar
	Volume    []VolumePoint
}
