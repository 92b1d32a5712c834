// Package signals collapses multi-timeframe analyses into a single typed
// trading signal and derives the accompanying risk assessment.
package signals

import (
	"sort"

	"marketflow/internal/analysis"
	"marketflow/internal/logging"
	"marketflow/internal/params"
)

// Generator synthesizes the consolidated signal from per-timeframe analyses
type Generator struct {
	params *params.Parameters
	logger *logging.Logger
}

// NewGenerator creates a signal generator
func NewGenerator(p *params.Parameters, logger *logging.Logger) *Generator {
	if logger == nil {
		logger = logging.Default()
	}
	return &Generator{params: p, logger: logger.WithComponent("signal_generator")}
}

// Confirm computes the cross-timeframe confirmation summary
func (g *Generator) Confirm(analyses map[string]TimeframeAnalysis) Confirmations {
	c := Confirmations{}
	if len(analyses) == 0 {
		return c
	}

	keys := sortedKeys(analyses)

	highVolume := 0
	for _, tf := range keys {
		a := analyses[tf]
		if a.Trend.Direction.IsUp() && a.Candle.Type == analysis.SignalBuy {
			c.BullishTimeframes = append(c.BullishTimeframes, tf)
		}
		if a.Trend.Direction.IsDown() && a.Candle.Type == analysis.SignalSell {
			c.BearishTimeframes = append(c.BearishTimeframes, tf)
		}
		if a.Candle.VolumeClass.IsHigh() {
			highVolume++
		}
		if a.Patterns.Accumulation.Detected {
			c.BullishPattern = true
		}
		if a.Patterns.Distribution.Detected {
			c.BearishPattern = true
		}
	}

	total := float64(len(keys))
	c.BullishAlignment = float64(len(c.BullishTimeframes)) / total
	c.BearishAlignment = float64(len(c.BearishTimeframes)) / total
	c.VolumeConfirmation = float64(highVolume) > total/2

	for i := 0; i < len(keys)-1; i++ {
		for j := i + 1; j < len(keys); j++ {
			b1 := analyses[keys[i]].Candle.Bias()
			b2 := analyses[keys[j]].Candle.Bias()
			if (b1 == analysis.BiasBullish && b2 == analysis.BiasBearish) ||
				(b1 == analysis.BiasBearish && b2 == analysis.BiasBullish) {
				c.Divergences = append(c.Divergences, [2]string{keys[i], keys[j]})
			}
		}
	}
	return c
}

// Generate applies the signal rules top-down; the first match wins
func (g *Generator) Generate(analyses map[string]TimeframeAnalysis, c Confirmations) Signal {
	cfg := g.params.Signal

	var sig Signal
	switch {
	case c.BullishAlignment >= cfg.StrongAlignmentPct && c.VolumeConfirmation && c.BullishPattern:
		sig = Signal{
			Type:     analysis.SignalBuy,
			Strength: analysis.StrengthStrong,
			Details:  "Strong buy signal confirmed across multiple timeframes",
		}
	case c.BearishAlignment >= cfg.StrongAlignmentPct && c.VolumeConfirmation && c.BearishPattern:
		sig = Signal{
			Type:     analysis.SignalSell,
			Strength: analysis.StrengthStrong,
			Details:  "Strong sell signal confirmed across multiple timeframes",
		}
	case c.BullishAlignment >= cfg.ModerateAlignmentPct && (c.VolumeConfirmation || c.BullishPattern):
		sig = Signal{
			Type:     analysis.SignalBuy,
			Strength: analysis.StrengthModerate,
			Details:  "Moderate buy signal with some timeframe confirmation",
		}
	case c.BearishAlignment >= cfg.ModerateAlignmentPct && (c.VolumeConfirmation || c.BearishPattern):
		sig = Signal{
			Type:     analysis.SignalSell,
			Strength: analysis.StrengthModerate,
			Details:  "Moderate sell signal with some timeframe confirmation",
		}
	default:
		sig = Signal{
			Type:     analysis.SignalNoAction,
			Strength: analysis.StrengthNeutral,
			Details:  "No clear signal detected",
		}
	}

	sig.Evidence = g.gatherEvidence(analyses, c, sig.Type)
	g.logger.Info("signal generated",
		"type", string(sig.Type), "strength", string(sig.Strength),
		"confidence", sig.Evidence.ConfidenceScore)
	return sig
}

// gatherEvidence assembles the per-timeframe excerpts and confidence score
func (g *Generator) gatherEvidence(analyses map[string]TimeframeAnalysis, c Confirmations, sigType analysis.SignalType) Evidence {
	ev := Evidence{
		Timeframes:    make(map[string]TimeframeEvidence, len(analyses)),
		Confirmations: c,
	}

	var total float64
	for _, tf := range sortedKeys(analyses) {
		a := analyses[tf]
		tfe := TimeframeEvidence{
			TrendDirection: a.Trend.Direction,
			VolumeClass:    a.Candle.VolumeClass,
			Details:        a.Trend.Details,
		}
		for name, res := range map[string]bool{
			"accumulation":   a.Patterns.Accumulation.Detected,
			"distribution":   a.Patterns.Distribution.Detected,
			"testing":        a.Patterns.Testing.Detected,
			"buying_climax":  a.Patterns.BuyingClimax.Detected,
			"selling_climax": a.Patterns.SellingClimax.Detected,
		} {
			if res {
				tfe.Patterns = append(tfe.Patterns, name)
			}
		}
		sort.Strings(tfe.Patterns)
		for _, l := range a.SupportResistance.Support {
			tfe.Support = append(tfe.Support, l.Price)
		}
		for _, l := range a.SupportResistance.Resistance {
			tfe.Resistance = append(tfe.Resistance, l.Price)
		}
		ev.Timeframes[tf] = tfe
		total += timeframeScore(a, sigType)
	}
	if len(analyses) > 0 {
		ev.ConfidenceScore = total / float64(len(analyses))
	}
	return ev
}

// timeframeScore grades how strongly one timeframe supports the signal
// direction, in [0, 1]
func timeframeScore(a TimeframeAnalysis, sigType analysis.SignalType) float64 {
	candle := directionalScore(a.Candle.Bias(), a.Candle.Strength)
	trend := directionalScore(a.Trend.Bias, analysis.StrengthModerate)
	score := (candle + trend) / 2
	if sigType == analysis.SignalSell {
		score = 1 - score
	}
	if sigType == analysis.SignalNoAction {
		// Distance from a decisive reading in either direction.
		score = 1 - 2*absFloat(score-0.5)
	}
	return score
}

// directionalScore maps a bias/strength pair onto [0, 1], 1 = fully bullish
func directionalScore(b analysis.Bias, s analysis.SignalStrength) float64 {
	weight := 0.5
	if s == analysis.StrengthStrong {
		weight = 1.0
	} else if s == analysis.StrengthModerate {
		weight = 0.75
	}
	switch b {
	case analysis.BiasBullish:
		return 0.5 + 0.5*weight
	case analysis.BiasBearish:
		return 0.5 - 0.5*weight
	default:
		return 0.5
	}
}

func sortedKeys(m map[string]TimeframeAnalysis) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
