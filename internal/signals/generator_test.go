package signals

import (
	"testing"

	"marketflow/internal/analysis"
	"marketflow/internal/params"
	"marketflow/internal/patterns"
	"marketflow/internal/processor"
)

// tfAnalysis builds a minimal per-timeframe analysis for rule testing
func tfAnalysis(candle analysis.SignalType, trend analysis.TrendDirection, volume processor.VolumeClass, accumulation, distribution bool) TimeframeAnalysis {
	trendBias := analysis.BiasNeutral
	if trend.IsUp() {
		trendBias = analysis.BiasBullish
	} else if trend.IsDown() {
		trendBias = analysis.BiasBearish
	}
	return TimeframeAnalysis{
		Candle: analysis.BarSignal{
			Type:        candle,
			Strength:    analysis.StrengthModerate,
			VolumeClass: volume,
		},
		Trend: analysis.TrendResult{
			Direction: trend,
			Bias:      trendBias,
		},
		Patterns: patterns.Set{
			Accumulation: patterns.Result{Detected: accumulation},
			Distribution: patterns.Result{Detected: distribution},
		},
	}
}

// TestStrongBuy requires full alignment, volume and pattern confirmation
func TestStrongBuy(t *testing.T) {
	g := NewGenerator(params.Default(), nil)
	analyses := map[string]TimeframeAnalysis{
		"1d": tfAnalysis(analysis.SignalBuy, analysis.TrendUp, processor.VolumeHigh, true, false),
		"1h": tfAnalysis(analysis.SignalBuy, analysis.TrendSlightUp, processor.VolumeVeryHigh, false, false),
	}

	c := g.Confirm(analyses)
	if c.BullishAlignment != 1.0 {
		t.Errorf("expected full bullish alignment, got %.2f", c.BullishAlignment)
	}
	if !c.VolumeConfirmation {
		t.Error("expected volume confirmation with high volume on every timeframe")
	}
	if !c.BullishPattern {
		t.Error("expected bullish pattern confirmation from accumulation")
	}

	sig := g.Generate(analyses, c)
	if sig.Type != analysis.SignalBuy || sig.Strength != analysis.StrengthStrong {
		t.Errorf("expected BUY/STRONG, got %s/%s", sig.Type, sig.Strength)
	}
	if sig.Evidence.ConfidenceScore <= 0.5 {
		t.Errorf("expected confidence above neutral for a strong buy, got %.2f", sig.Evidence.ConfidenceScore)
	}
}

// TestStrongSell is the bearish mirror
func TestStrongSell(t *testing.T) {
	g := NewGenerator(params.Default(), nil)
	analyses := map[string]TimeframeAnalysis{
		"1d": tfAnalysis(analysis.SignalSell, analysis.TrendDown, processor.VolumeVeryHigh, false, true),
		"1h": tfAnalysis(analysis.SignalSell, analysis.TrendSlightDown, processor.VolumeHigh, false, false),
	}

	sig := g.Generate(analyses, g.Confirm(analyses))
	if sig.Type != analysis.SignalSell || sig.Strength != analysis.StrengthStrong {
		t.Errorf("expected SELL/STRONG, got %s/%s", sig.Type, sig.Strength)
	}
}

// TestModerateBuy fires on partial alignment with a pattern but no volume
func TestModerateBuy(t *testing.T) {
	g := NewGenerator(params.Default(), nil)
	analyses := map[string]TimeframeAnalysis{
		"1d": tfAnalysis(analysis.SignalBuy, analysis.TrendSlightUp, processor.VolumeAverage, true, false),
		"1h": tfAnalysis(analysis.SignalNoAction, analysis.TrendSideways, processor.VolumeAverage, false, false),
		"4h": tfAnalysis(analysis.SignalNoAction, analysis.TrendSideways, processor.VolumeLow, false, false),
	}

	c := g.Confirm(analyses)
	if c.VolumeConfirmation {
		t.Error("expected no volume confirmation")
	}
	sig := g.Generate(analyses, c)
	if sig.Type != analysis.SignalBuy || sig.Strength != analysis.StrengthModerate {
		t.Errorf("expected BUY/MODERATE, got %s/%s", sig.Type, sig.Strength)
	}
}

// TestNoAction is the neutral default
func TestNoAction(t *testing.T) {
	g := NewGenerator(params.Default(), nil)
	analyses := map[string]TimeframeAnalysis{
		"1d": tfAnalysis(analysis.SignalNoAction, analysis.TrendSideways, processor.VolumeAverage, false, false),
		"1h": tfAnalysis(analysis.SignalNoAction, analysis.TrendSideways, processor.VolumeAverage, false, false),
	}

	sig := g.Generate(analyses, g.Confirm(analyses))
	if sig.Type != analysis.SignalNoAction || sig.Strength != analysis.StrengthNeutral {
		t.Errorf("expected NO_ACTION/NEUTRAL, got %s/%s", sig.Type, sig.Strength)
	}
}

// TestMonotoneVoting swaps one timeframe more bullish and checks the final
// signal never weakens
func TestMonotoneVoting(t *testing.T) {
	g := NewGenerator(params.Default(), nil)
	rank := func(s Signal) int {
		switch {
		case s.Type == analysis.SignalBuy && s.Strength == analysis.StrengthStrong:
			return 2
		case s.Type == analysis.SignalBuy:
			return 1
		case s.Type == analysis.SignalNoAction:
			return 0
		case s.Strength == analysis.StrengthStrong:
			return -2
		default:
			return -1
		}
	}

	base := map[string]TimeframeAnalysis{
		"1d": tfAnalysis(analysis.SignalBuy, analysis.TrendUp, processor.VolumeHigh, true, false),
		"1h": tfAnalysis(analysis.SignalNoAction, analysis.TrendSideways, processor.VolumeAverage, false, false),
	}
	upgraded := map[string]TimeframeAnalysis{
		"1d": base["1d"],
		"1h": tfAnalysis(analysis.SignalBuy, analysis.TrendUp, processor.VolumeVeryHigh, false, false),
	}

	baseSignal := g.Generate(base, g.Confirm(base))
	upgradedSignal := g.Generate(upgraded, g.Confirm(upgraded))
	if rank(upgradedSignal) < rank(baseSignal) {
		t.Errorf("upgrading a timeframe weakened the signal: %s/%s -> %s/%s",
			baseSignal.Type, baseSignal.Strength, upgradedSignal.Type, upgradedSignal.Strength)
	}
}

// TestDivergenceDetection records opposing candle biases between timeframes
func TestDivergenceDetection(t *testing.T) {
	g := NewGenerator(params.Default(), nil)
	analyses := map[string]TimeframeAnalysis{
		"1d": tfAnalysis(analysis.SignalBuy, analysis.TrendUp, processor.VolumeAverage, false, false),
		"1h": tfAnalysis(analysis.SignalSell, analysis.TrendDown, processor.VolumeAverage, false, false),
	}

	c := g.Confirm(analyses)
	if len(c.Divergences) != 1 {
		t.Errorf("expected one divergence pair, got %d", len(c.Divergences))
	}
}
