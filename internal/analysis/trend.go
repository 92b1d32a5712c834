package analysis

import (
	"fmt"
	"math"

	"marketflow/internal/logging"
	"marketflow/internal/params"
	"marketflow/internal/processor"
)

// TrendAnalyzer classifies trend direction over a lookback window and
// whether volume confirms or contradicts it
type TrendAnalyzer struct {
	params *params.Parameters
	logger *logging.Logger
}

// NewTrendAnalyzer creates a trend analyzer
func NewTrendAnalyzer(p *params.Parameters, logger *logging.Logger) *TrendAnalyzer {
	if logger == nil {
		logger = logging.Default()
	}
	return &TrendAnalyzer{params: p, logger: logger.WithComponent("trend_analyzer")}
}

// AnalyzeTrend evaluates the window of `lookback` bars ending at index i.
// Pass lookback <= 0 to use the configured trend lookback.
func (ta *TrendAnalyzer) AnalyzeTrend(pd *processor.ProcessedData, i, lookback int) (TrendResult, error) {
	if i < 0 || i >= pd.Len() {
		return TrendResult{}, fmt.Errorf("bar index %d out of range [0, %d)", i, pd.Len())
	}
	t := ta.params.Trend
	if lookback <= 0 {
		lookback = t.LookbackPeriod
	}
	start := i - lookback
	if start < 0 {
		start = 0
	}

	startPrice := pd.Close[start]
	endPrice := pd.Close[i]
	priceChangePct := (endPrice - startPrice) / startPrice * 100

	var direction TrendDirection
	switch {
	case math.Abs(priceChangePct) < t.SlightThresholdPct:
		direction = TrendSideways
	case priceChangePct > t.StrongThresholdPct:
		direction = TrendUp
	case priceChangePct > 0:
		direction = TrendSlightUp
	case priceChangePct < -t.StrongThresholdPct:
		direction = TrendDown
	default:
		direction = TrendSlightDown
	}

	volumeTrend, volumeChangePct := ta.volumeTrend(pd, start, i)

	result := TrendResult{
		Direction:           direction,
		PriceChangePercent:  round2(priceChangePct),
		VolumeTrend:         volumeTrend,
		VolumeChangePercent: round2(volumeChangePct),
	}

	switch {
	case direction == TrendSideways:
		result.Signal = Consolidation
		result.Bias = BiasNeutral
		result.Details = fmt.Sprintf("Sideways price movement (%.2f%%) indicates consolidation", result.PriceChangePercent)
	case direction.IsUp() && volumeTrend == processor.VolumeIncreasing:
		result.Signal = TrendValidation
		result.Bias = BiasBullish
		result.Details = fmt.Sprintf("Rising price (%.2f%%) with rising volume confirms bullish trend", result.PriceChangePercent)
	case direction.IsUp() && volumeTrend == processor.VolumeDecreasing:
		result.Signal = TrendAnomaly
		result.Bias = BiasBearish
		result.Details = fmt.Sprintf("Rising price (%.2f%%) with falling volume indicates weakening bullish trend", result.PriceChangePercent)
	case direction.IsDown() && volumeTrend == processor.VolumeIncreasing:
		result.Signal = TrendValidation
		result.Bias = BiasBearish
		result.Details = fmt.Sprintf("Falling price (%.2f%%) with rising volume confirms bearish trend", result.PriceChangePercent)
	case direction.IsDown() && volumeTrend == processor.VolumeDecreasing:
		result.Signal = TrendAnomaly
		result.Bias = BiasBullish
		result.Details = fmt.Sprintf("Falling price (%.2f%%) with falling volume indicates weakening bearish trend", result.PriceChangePercent)
	case direction.IsUp():
		result.Signal = TrendValidation
		result.Bias = BiasBullish
		result.Details = fmt.Sprintf("Rising price (%.2f%%) on flat volume", result.PriceChangePercent)
	default:
		result.Signal = TrendValidation
		result.Bias = BiasBearish
		result.Details = fmt.Sprintf("Falling price (%.2f%%) on flat volume", result.PriceChangePercent)
	}

	// Repeated high-volume bars pushing in one direction read as a climax,
	// which leans the other way.
	highVolumeCount := 0
	for j := start; j <= i; j++ {
		if pd.VolumeClasses[j].IsHigh() {
			highVolumeCount++
		}
	}
	if highVolumeCount >= 3 && direction == TrendUp {
		result.Details += "; multiple high volume bars in uptrend may indicate buying climax"
		result.Bias = BiasBearish
	} else if highVolumeCount >= 3 && direction == TrendDown {
		result.Details += "; multiple high volume bars in downtrend may indicate selling climax"
		result.Bias = BiasBullish
	}

	ta.logger.Debug("trend analyzed",
		"index", i, "direction", string(result.Direction),
		"signal", string(result.Signal), "bias", string(result.Bias))
	return result, nil
}

// volumeTrend classifies the OBV slope over [start, end]
func (ta *TrendAnalyzer) volumeTrend(pd *processor.ProcessedData, start, end int) (processor.VolumeDirection, float64) {
	t := ta.params.Trend

	obvChange := pd.OBV[end] - pd.OBV[start]

	var sum float64
	for j := start; j <= end; j++ {
		sum += math.Abs(pd.OBV[j])
	}
	avgOBV := sum / float64(end-start+1)
	threshold := avgOBV * (t.VolumeThresholdPct / 100)

	var changePct float64
	if avgOBV > 0 {
		changePct = obvChange / avgOBV * 100
	}

	switch {
	case obvChange > threshold:
		return processor.VolumeIncreasing, changePct
	case obvChange < -threshold:
		return processor.VolumeDecreasing, changePct
	default:
		return processor.VolumeFlat, changePct
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
