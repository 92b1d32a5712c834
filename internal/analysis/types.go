package analysis

import (
	"time"

	"marketflow/internal/processor"
)

// SignalType is the action a signal recommends
type SignalType string

const (
	SignalBuy      SignalType = "BUY"
	SignalSell     SignalType = "SELL"
	SignalNoAction SignalType = "NO_ACTION"
)

// SignalStrength grades a signal
type SignalStrength string

const (
	StrengthStrong   SignalStrength = "STRONG"
	StrengthModerate SignalStrength = "MODERATE"
	StrengthNeutral  SignalStrength = "NEUTRAL"
)

// Bias is the directional lean of a trend reading
type Bias string

const (
	BiasBullish Bias = "BULLISH"
	BiasBearish Bias = "BEARISH"
	BiasNeutral Bias = "NEUTRAL"
)

// TrendDirection grades price movement over a lookback window
type TrendDirection string

const (
	TrendUp         TrendDirection = "UP"
	TrendSlightUp   TrendDirection = "SLIGHT_UP"
	TrendSideways   TrendDirection = "SIDEWAYS"
	TrendSlightDown TrendDirection = "SLIGHT_DOWN"
	TrendDown       TrendDirection = "DOWN"
)

// IsUp reports whether the direction is UP or SLIGHT_UP
func (d TrendDirection) IsUp() bool {
	return d == TrendUp || d == TrendSlightUp
}

// IsDown reports whether the direction is DOWN or SLIGHT_DOWN
func (d TrendDirection) IsDown() bool {
	return d == TrendDown || d == TrendSlightDown
}

// TrendSignal classifies the price/volume relationship over a window
type TrendSignal string

const (
	TrendValidation TrendSignal = "TREND_VALIDATION"
	TrendAnomaly    TrendSignal = "TREND_ANOMALY"
	Consolidation   TrendSignal = "CONSOLIDATION"
)

// BarSignal is the result of analyzing a single bar
type BarSignal struct {
	Type           SignalType               `json:"type"`
	Strength       SignalStrength           `json:"strength"`
	Details        string                   `json:"details"`
	CandleClass    processor.CandleClass    `json:"candle_class"`
	VolumeClass    processor.VolumeClass    `json:"volume_class"`
	PriceDirection processor.PriceDirection `json:"price_direction"`
	IsUpCandle     bool                     `json:"is_up_candle"`
}

// TrendResult is the result of analyzing a trend window
type TrendResult struct {
	Direction           TrendDirection            `json:"trend_direction"`
	PriceChangePercent  float64                   `json:"price_change_percent"`
	VolumeTrend         processor.VolumeDirection `json:"volume_trend"`
	VolumeChangePercent float64                   `json:"volume_change_percent"`
	Signal              TrendSignal               `json:"signal_type"`
	Bias                Bias                      `json:"signal_strength"`
	Details             string                    `json:"details"`
}

// Level is a clustered support or resistance price level
type Level struct {
	Price      float64   `json:"price"`
	Timestamp  time.Time `json:"timestamp"`
	Volume     float64   `json:"volume"`
	Strength   float64   `json:"strength"`
	Tests      int       `json:"tests"`
	HighVolume bool      `json:"high_volume,omitempty"`
}

// LevelVolume summarizes traded volume at a price level
type LevelVolume struct {
	Type         string  `json:"type"`
	CandlesCount int     `json:"candles_count"`
	TotalVolume  float64 `json:"total_volume"`
	AvgVolume    float64 `json:"avg_volume"`
}

// SupportResistance bundles the clustered levels for one timeframe
type SupportResistance struct {
	Support        []Level                 `json:"support"`
	Resistance     []Level                 `json:"resistance"`
	VolumeAtLevels map[float64]LevelVolume `json:"volume_at_levels"`
}
