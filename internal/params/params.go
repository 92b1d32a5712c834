// Package params holds the immutable configuration for MarketFlow analysis:
// classification thresholds, lookback windows, pattern and signal tunables,
// risk parameters and the default timeframe list. A Parameters value is
// validated once at construction and shared read-only across analyses.
package params

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"marketflow/internal/marketdata"
)

// ErrInvalidConfiguration is wrapped by every parameter validation failure
var ErrInvalidConfiguration = errors.New("invalid configuration")

// VolumeThresholds classify volume ratio into the five volume classes
type VolumeThresholds struct {
	VeryHighThreshold float64 `json:"very_high_threshold"`
	HighThreshold     float64 `json:"high_threshold"`
	LowThreshold      float64 `json:"low_threshold"`
	VeryLowThreshold  float64 `json:"very_low_threshold"`
	LookbackPeriod    int     `json:"lookback_period"`
}

// CandleThresholds classify candles by body, relative spread and wick size
type CandleThresholds struct {
	WideBodyThreshold     float64 `json:"wide_body_threshold"`
	NarrowBodyThreshold   float64 `json:"narrow_body_threshold"`
	WideSpreadThreshold   float64 `json:"wide_spread_threshold"`
	NarrowSpreadThreshold float64 `json:"narrow_spread_threshold"`
	WickRatio             float64 `json:"wick_ratio"`
}

// TrendParameters control trend direction and volume trend classification
type TrendParameters struct {
	LookbackPeriod     int     `json:"lookback_period"`
	SlightThresholdPct float64 `json:"slight_threshold_pct"`
	StrongThresholdPct float64 `json:"strong_threshold_pct"`
	VolumeThresholdPct float64 `json:"volume_threshold_pct"`
	DirectionPct       float64 `json:"direction_pct"`
	ATRPeriod          int     `json:"atr_period"`
	UseEMA             bool    `json:"use_ema"`
}

// PatternParameters control the sliding-window pattern recognizers
type PatternParameters struct {
	Window            int     `json:"window"`
	SidewaysPct       float64 `json:"sideways_pct"`
	TouchTolerancePct float64 `json:"touch_tolerance_pct"`
	MinHighVolume     int     `json:"min_high_volume"`
	MinTests          int     `json:"min_tests"`
	ClimaxBandPct     float64 `json:"climax_band_pct"`
	WideCandlePct     float64 `json:"wide_candle_pct"`
	ClimaxWickPct     float64 `json:"climax_wick_pct"`
	MaxTests          int     `json:"max_tests"`
}

// SignalParameters control multi-timeframe signal synthesis
type SignalParameters struct {
	StrongAlignmentPct   float64 `json:"strong_alignment_pct"`
	ModerateAlignmentPct float64 `json:"moderate_alignment_pct"`
}

// RiskParameters control stop-loss, take-profit and position sizing
type RiskParameters struct {
	DefaultStopLossPercent   float64 `json:"default_stop_loss_percent"`
	DefaultTakeProfitPercent float64 `json:"default_take_profit_percent"`
	SupportResistanceBuffer  float64 `json:"support_resistance_buffer"`
	DefaultRiskPercent       float64 `json:"default_risk_percent"`
	DefaultRiskReward        float64 `json:"default_risk_reward"`
}

// AccountParameters describe the account the risk assessor sizes against
type AccountParameters struct {
	AccountEquity float64 `json:"account_equity"`
}

// WyckoffParameters tune the Wyckoff event detection state machine
type WyckoffParameters struct {
	VolLookback           int     `json:"vol_lookback"`
	SwingN                int     `json:"swing_n"`
	ClimaxVolMultiplier   float64 `json:"climax_vol_multiplier"`
	ClimaxRangeMultiplier float64 `json:"climax_range_multiplier"`
	BreakoutVolMultiplier float64 `json:"breakout_vol_multiplier"`
	SpringPct             float64 `json:"spring_pct"`
	SpringVolMultiplier   float64 `json:"spring_vol_multiplier"`
	ARWindow              int     `json:"ar_window"`
	TestBandPct           float64 `json:"test_band_pct"`
	RangeMinLength        int     `json:"range_min_length"`
	JACGapPct             float64 `json:"jac_gap_pct"`
	TRMaxDuration         int     `json:"tr_max_duration"`
}

// SupportResistanceParameters control pivot clustering
type SupportResistanceParameters struct {
	Lookback            int     `json:"lookback"`
	PivotWindow         int     `json:"pivot_window"`
	ClusterTolerancePct float64 `json:"cluster_tolerance_pct"`
	MaxLevels           int     `json:"max_levels"`
}

// Parameters is the complete, immutable analysis configuration
type Parameters struct {
	Volume            VolumeThresholds            `json:"volume"`
	Candle            CandleThresholds            `json:"candle"`
	Trend             TrendParameters             `json:"trend"`
	Pattern           PatternParameters           `json:"pattern"`
	Signal            SignalParameters            `json:"signal"`
	Risk              RiskParameters              `json:"risk"`
	Account           AccountParameters           `json:"account"`
	Wyckoff           WyckoffParameters           `json:"wyckoff"`
	SupportResistance SupportResistanceParameters `json:"support_resistance"`
	Timeframes        []marketdata.Timeframe      `json:"timeframes"`
}

// Default returns the default parameter set
func Default() *Parameters {
	return &Parameters{
		Volume: VolumeThresholds{
			VeryHighThreshold: 2.0,
			HighThreshold:     1.3,
			LowThreshold:      0.6,
			VeryLowThreshold:  0.3,
			LookbackPeriod:    10,
		},
		Candle: CandleThresholds{
			WideBodyThreshold:     0.6,
			NarrowBodyThreshold:   0.3,
			WideSpreadThreshold:   1.3,
			NarrowSpreadThreshold: 0.6,
			WickRatio:             1.5,
		},
		Trend: TrendParameters{
			LookbackPeriod:     5,
			SlightThresholdPct: 2.0,
			StrongThresholdPct: 5.0,
			VolumeThresholdPct: 10.0,
			DirectionPct:       5.0,
			ATRPeriod:          14,
			UseEMA:             false,
		},
		Pattern: PatternParameters{
			Window:            20,
			SidewaysPct:       0.08,
			TouchTolerancePct: 0.01,
			MinHighVolume:     2,
			MinTests:          1,
			ClimaxBandPct:     0.03,
			WideCandlePct:     0.6,
			ClimaxWickPct:     0.25,
			MaxTests:          10,
		},
		Signal: SignalParameters{
			StrongAlignmentPct:   0.5,
			ModerateAlignmentPct: 0.25,
		},
		Risk: RiskParameters{
			DefaultStopLossPercent:   0.02,
			DefaultTakeProfitPercent: 0.05,
			SupportResistanceBuffer:  0.005,
			DefaultRiskPercent:       0.01,
			DefaultRiskReward:        2.0,
		},
		Account: AccountParameters{
			AccountEquity: 10000,
		},
		Wyckoff: WyckoffParameters{
			VolLookback:           20,
			SwingN:                5,
			ClimaxVolMultiplier:   2.0,
			ClimaxRangeMultiplier: 1.8,
			BreakoutVolMultiplier: 1.5,
			SpringPct:             0.02,
			SpringVolMultiplier:   0.5,
			ARWindow:              20,
			TestBandPct:           0.03,
			RangeMinLength:        5,
			JACGapPct:             0.01,
			TRMaxDuration:         100,
		},
		SupportResistance: SupportResistanceParameters{
			Lookback:            50,
			PivotWindow:         2,
			ClusterTolerancePct: 0.01,
			MaxLevels:           5,
		},
		Timeframes: []marketdata.Timeframe{
			{Interval: "1d", Period: "60d"},
			{Interval: "4h", Period: "30d"},
			{Interval: "1h", Period: "30d"},
			{Interval: "30m", Period: "10d"},
			{Interval: "15m", Period: "10d"},
			{Interval: "5m", Period: "10d"},
		},
	}
}

// New validates and returns a parameter set. Passing nil yields the defaults.
func New(p *Parameters) (*Parameters, error) {
	if p == nil {
		p = Default()
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// LoadFile reads a parameters JSON file, merging over the defaults
func LoadFile(path string) (*Parameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read parameters file: %w", err)
	}
	p := Default()
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse parameters file: %w", err)
	}
	return New(p)
}

// Validate enforces every cross-parameter invariant. A Parameters value that
// fails validation must not be used for analysis.
func (p *Parameters) Validate() error {
	v := p.Volume
	if !(v.VeryHighThreshold > v.HighThreshold && v.HighThreshold > 1.0 &&
		1.0 > v.LowThreshold && v.LowThreshold > v.VeryLowThreshold && v.VeryLowThreshold > 0) {
		return fmt.Errorf("%w: volume thresholds must satisfy very_high > high > 1.0 > low > very_low > 0, got %.2f/%.2f/%.2f/%.2f",
			ErrInvalidConfiguration, v.VeryHighThreshold, v.HighThreshold, v.LowThreshold, v.VeryLowThreshold)
	}
	if v.LookbackPeriod <= 0 {
		return fmt.Errorf("%w: volume lookback_period must be positive", ErrInvalidConfiguration)
	}
	c := p.Candle
	if c.WideBodyThreshold <= c.NarrowBodyThreshold || c.NarrowBodyThreshold < 0 || c.WideBodyThreshold > 1 {
		return fmt.Errorf("%w: candle body thresholds must satisfy 0 <= narrow < wide <= 1", ErrInvalidConfiguration)
	}
	if c.WideSpreadThreshold <= c.NarrowSpreadThreshold || c.NarrowSpreadThreshold <= 0 {
		return fmt.Errorf("%w: candle spread thresholds must satisfy 0 < narrow < wide", ErrInvalidConfiguration)
	}
	if c.WickRatio <= 0 {
		return fmt.Errorf("%w: wick_ratio must be positive", ErrInvalidConfiguration)
	}
	t := p.Trend
	if t.LookbackPeriod <= 0 || t.ATRPeriod <= 0 {
		return fmt.Errorf("%w: trend lookback_period and atr_period must be positive", ErrInvalidConfiguration)
	}
	if t.StrongThresholdPct < t.SlightThresholdPct || t.SlightThresholdPct < 0 {
		return fmt.Errorf("%w: trend thresholds must satisfy 0 <= slight <= strong", ErrInvalidConfiguration)
	}
	pt := p.Pattern
	if pt.Window <= 0 || pt.SidewaysPct <= 0 || pt.TouchTolerancePct <= 0 {
		return fmt.Errorf("%w: pattern window, sideways_pct and touch_tolerance_pct must be positive", ErrInvalidConfiguration)
	}
	s := p.Signal
	if s.StrongAlignmentPct < s.ModerateAlignmentPct || s.ModerateAlignmentPct <= 0 || s.StrongAlignmentPct > 1 {
		return fmt.Errorf("%w: signal alignment thresholds must satisfy 0 < moderate <= strong <= 1", ErrInvalidConfiguration)
	}
	r := p.Risk
	if r.DefaultRiskPercent <= 0 || r.DefaultRiskPercent >= 0.10 {
		return fmt.Errorf("%w: default_risk_percent must be in (0, 0.10), got %.4f", ErrInvalidConfiguration, r.DefaultRiskPercent)
	}
	if r.DefaultRiskReward < 1.0 {
		return fmt.Errorf("%w: default_risk_reward must be >= 1.0, got %.2f", ErrInvalidConfiguration, r.DefaultRiskReward)
	}
	if r.DefaultStopLossPercent <= 0 || r.DefaultStopLossPercent >= 1 ||
		r.DefaultTakeProfitPercent <= 0 || r.DefaultTakeProfitPercent >= 1 {
		return fmt.Errorf("%w: stop-loss and take-profit percentages must be in (0, 1)", ErrInvalidConfiguration)
	}
	if r.SupportResistanceBuffer < 0 || r.SupportResistanceBuffer >= 1 {
		return fmt.Errorf("%w: support_resistance_buffer must be in [0, 1)", ErrInvalidConfiguration)
	}
	if p.Account.AccountEquity <= 0 {
		return fmt.Errorf("%w: account_equity must be positive", ErrInvalidConfiguration)
	}
	w := p.Wyckoff
	if w.VolLookback <= 0 || w.SwingN <= 0 {
		return fmt.Errorf("%w: wyckoff vol_lookback and swing_n must be positive", ErrInvalidConfiguration)
	}
	if w.ClimaxVolMultiplier <= 1 || w.ClimaxRangeMultiplier <= 1 || w.BreakoutVolMultiplier <= 1 {
		return fmt.Errorf("%w: wyckoff climax and breakout multipliers must exceed 1", ErrInvalidConfiguration)
	}
	if w.SpringPct <= 0 || w.TestBandPct <= 0 || w.JACGapPct <= 0 {
		return fmt.Errorf("%w: wyckoff spring_pct, test_band_pct and jac_gap_pct must be positive", ErrInvalidConfiguration)
	}
	if w.ARWindow <= 0 || w.RangeMinLength <= 0 || w.TRMaxDuration <= 0 {
		return fmt.Errorf("%w: wyckoff window and duration parameters must be positive", ErrInvalidConfiguration)
	}
	sr := p.SupportResistance
	if sr.Lookback <= 0 || sr.PivotWindow <= 0 || sr.ClusterTolerancePct <= 0 || sr.MaxLevels <= 0 {
		return fmt.Errorf("%w: support/resistance parameters must be positive", ErrInvalidConfiguration)
	}
	if len(p.Timeframes) == 0 {
		return fmt.Errorf("%w: at least one timeframe is required", ErrInvalidConfiguration)
	}
	return nil
}

// PrimaryTimeframe returns the first configured timeframe, the one risk
// assessment and current price are read from
func (p *Parameters) PrimaryTimeframe() marketdata.Timeframe {
	return p.Timeframes[0]
}

// MinRequiredBars is the shortest aligned series the full pipeline accepts
func (p *Parameters) MinRequiredBars() int {
	min := p.Volume.LookbackPeriod
	if p.Wyckoff.VolLookback > min {
		min = p.Wyckoff.VolLookback
	}
	if p.Trend.ATRPeriod > min {
		min = p.Trend.ATRPeriod
	}
	return min + p.Wyckoff.SwingN
}
