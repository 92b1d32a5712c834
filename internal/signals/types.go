package signals

import (
	"marketflow/internal/analysis"
	"marketflow/internal/patterns"
	"marketflow/internal/processor"
	"marketflow/internal/wyckoff"
)

// TimeframeAnalysis bundles every analyzer's output for one timeframe
type TimeframeAnalysis struct {
	Candle            analysis.BarSignal         `json:"candle_analysis"`
	Trend             analysis.TrendResult       `json:"trend_analysis"`
	Patterns          patterns.Set               `json:"pattern_analysis"`
	SupportResistance analysis.SupportResistance `json:"support_resistance"`
	Wyckoff           *wyckoff.ResultSet         `json:"wyckoff,omitempty"`
	Processed         *processor.ProcessedData   `json:"-"`
}

// Confirmations summarizes cross-timeframe agreement
type Confirmations struct {
	BullishAlignment   float64     `json:"bullish_alignment"`
	BearishAlignment   float64     `json:"bearish_alignment"`
	VolumeConfirmation bool        `json:"volume_confirmation"`
	BullishPattern     bool        `json:"bullish_pattern"`
	BearishPattern     bool        `json:"bearish_pattern"`
	BullishTimeframes  []string    `json:"bullish_timeframes"`
	BearishTimeframes  []string    `json:"bearish_timeframes"`
	Divergences        [][2]string `json:"divergences,omitempty"`
}

// TimeframeEvidence is the per-timeframe excerpt attached to a signal
type TimeframeEvidence struct {
	TrendDirection analysis.TrendDirection `json:"trend_direction"`
	VolumeClass    processor.VolumeClass   `json:"volume_class"`
	Patterns       []string                `json:"patterns,omitempty"`
	Support        []float64               `json:"support,omitempty"`
	Resistance     []float64               `json:"resistance,omitempty"`
	Details        string                  `json:"details,omitempty"`
}

// Evidence is the structured support for a generated signal
type Evidence struct {
	Timeframes      map[string]TimeframeEvidence `json:"timeframes"`
	Confirmations   Confirmations                `json:"confirmations"`
	ConfidenceScore float64                      `json:"confidence_score"`
}

// Signal is the consolidated multi-timeframe trading signal
type Signal struct {
	Type     analysis.SignalType     `json:"type"`
	Strength analysis.SignalStrength `json:"strength"`
	Details  string                  `json:"details"`
	Evidence Evidence                `json:"evidence"`
}

// RiskAssessment derives trade management levels from a signal. It is absent
// for NO_ACTION signals.
type RiskAssessment struct {
	StopLoss        float64 `json:"stop_loss"`
	TakeProfit      float64 `json:"take_profit"`
	RiskRewardRatio float64 `json:"risk_reward_ratio"`
	PositionSize    float64 `json:"position_size"`
	RiskPerShare    float64 `json:"risk_per_share"`
}
