// Package analysis provides the per-bar, trend and support/resistance
// analyzers that interpret a processed feature bundle.
package analysis

import (
	"fmt"

	"marketflow/internal/logging"
	"marketflow/internal/params"
	"marketflow/internal/processor"
)

// CandleAnalyzer classifies a single bar into a buy/sell/no-action signal
// from its candle class, volume class and local price direction
type CandleAnalyzer struct {
	params *params.Parameters
	logger *logging.Logger
}

// NewCandleAnalyzer creates a candle analyzer
func NewCandleAnalyzer(p *params.Parameters, logger *logging.Logger) *CandleAnalyzer {
	if logger == nil {
		logger = logging.Default()
	}
	return &CandleAnalyzer{params: p, logger: logger.WithComponent("candle_analyzer")}
}

// AnalyzeBar classifies bar i. Rules are evaluated top-down; the first match
// wins. The only failure mode is an index outside the series.
func (ca *CandleAnalyzer) AnalyzeBar(i int, pd *processor.ProcessedData) (BarSignal, error) {
	if i < 0 || i >= pd.Len() {
		return BarSignal{}, fmt.Errorf("bar index %d out of range [0, %d)", i, pd.Len())
	}

	result := BarSignal{
		Type:           SignalNoAction,
		Strength:       StrengthNeutral,
		CandleClass:    pd.CandleClasses[i],
		VolumeClass:    pd.VolumeClasses[i],
		PriceDirection: pd.PriceDirections[i],
		IsUpCandle:     pd.IsUpCandle(i),
	}

	candle := pd.CandleClasses[i]
	volume := pd.VolumeClasses[i]
	direction := pd.PriceDirections[i]
	lowerWickDominant := pd.LowerWick[i] > pd.UpperWick[i]

	switch {
	case candle == processor.CandleWide && volume.IsHigh() && direction == processor.PriceUp && result.IsUpCandle:
		result.Type = SignalBuy
		result.Strength = StrengthStrong
		result.Details = "Wide spread up candle with high volume confirms bullish sentiment"
	case candle == processor.CandleWide && volume.IsHigh() && direction == processor.PriceDown && !result.IsUpCandle:
		result.Type = SignalSell
		result.Strength = StrengthStrong
		result.Details = "Wide spread down candle with high volume confirms bearish sentiment"
	case candle == processor.CandleWick && lowerWickDominant && volume.IsHigh():
		result.Type = SignalBuy
		result.Strength = StrengthModerate
		result.Details = "Long lower wick with high volume shows buying pressure at lows"
	case candle == processor.CandleWick && !lowerWickDominant && volume.IsHigh():
		result.Type = SignalSell
		result.Strength = StrengthModerate
		result.Details = "Long upper wick with high volume shows selling pressure at highs"
	case candle == processor.CandleNarrow && volume.IsLow():
		result.Details = "Narrow spread candle with low volume indicates contraction"
	default:
		result.Details = "No actionable candle signal"
	}

	ca.logger.Debug("bar analyzed", "index", i, "signal", string(result.Type), "strength", string(result.Strength))
	return result, nil
}

// Bias maps the bar signal onto a directional lean, used by the
// multi-timeframe confirmation pass
func (s BarSignal) Bias() Bias {
	switch s.Type {
	case SignalBuy:
		return BiasBullish
	case SignalSell:
		return BiasBearish
	default:
		return BiasNeutral
	}
}
