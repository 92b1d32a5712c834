// Package wyckoff implements Wyckoff-method analysis: event detection,
// trading range construction and phase inference over a processed bar series.
// An Analyzer is scoped to a single run against one timeframe.
package wyckoff

import (
	"fmt"
	"math"
	"sort"

	"marketflow/internal/logging"
	"marketflow/internal/params"
	"marketflow/internal/processor"
)

// Analyzer detects Wyckoff events and phases on one processed bundle
type Analyzer struct {
	params *params.Parameters
	logger *logging.Logger

	pd *processor.ProcessedData

	// precomputed market dynamics
	volSpike   []float64
	rangeSpike []float64
	rollVol    []float64
	swingHigh  []bool
	swingLow   []bool

	events []DetectedEvent
	ranges []TradingRange
	added  map[string]bool
}

// New creates a Wyckoff analyzer for one run over pd
func New(pd *processor.ProcessedData, p *params.Parameters, logger *logging.Logger) *Analyzer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Analyzer{
		params: p,
		logger: logger.WithComponent("wyckoff_analyzer"),
		pd:     pd,
		added:  make(map[string]bool),
	}
}

// Run executes the full analysis. It fails only when the series is shorter
// than the pipeline-wide minimum (the same gate the processor applies);
// "no pattern found" yields an empty result set.
func (a *Analyzer) Run() (*ResultSet, error) {
	minLen := a.params.MinRequiredBars()
	if a.pd.Len() < minLen {
		return nil, fmt.Errorf("%w: %d bars, wyckoff analysis needs at least %d",
			processor.ErrInsufficientData, a.pd.Len(), minLen)
	}

	a.computeMarketDynamics()
	a.findSwingPoints()
	ctx := a.detectEvents()
	phases := a.inferPhases()

	a.logger.Debug("wyckoff analysis complete",
		"events", len(a.events), "ranges", len(a.ranges), "phases", len(phases), "context", string(ctx))

	return &ResultSet{
		Events:        a.events,
		TradingRanges: a.ranges,
		Phases:        phases,
		Context:       ctx,
	}, nil
}

// computeMarketDynamics fills the volume and range spike ratios. Warmup bars
// default to a neutral ratio of 1.0 so no event can trigger on them.
func (a *Analyzer) computeMarketDynamics() {
	w := a.params.Wyckoff
	n := a.pd.Len()

	rng := make([]float64, n)
	for i := 0; i < n; i++ {
		rng[i] = a.pd.High[i] - a.pd.Low[i]
	}

	a.rollVol = rollingMean(a.pd.Volume, w.VolLookback)
	rollRange := rollingMean(rng, w.VolLookback)

	a.volSpike = make([]float64, n)
	a.rangeSpike = make([]float64, n)
	for i := 0; i < n; i++ {
		a.volSpike[i] = spikeRatio(a.pd.Volume[i], a.rollVol[i])
		a.rangeSpike[i] = spikeRatio(rng[i], rollRange[i])
	}
}

// findSwingPoints marks swing highs and lows with the symmetric window rule
func (a *Analyzer) findSwingPoints() {
	n := a.pd.Len()
	sn := a.params.Wyckoff.SwingN
	a.swingHigh = make([]bool, n)
	a.swingLow = make([]bool, n)

	for i := sn; i < n-sn; i++ {
		isHigh, isLow := true, true
		for j := i - sn; j < i; j++ {
			if a.pd.High[j] > a.pd.High[i] {
				isHigh = false
			}
			if a.pd.Low[j] < a.pd.Low[i] {
				isLow = false
			}
		}
		for j := i + 1; j <= i+sn; j++ {
			if a.pd.High[j] >= a.pd.High[i] {
				isHigh = false
			}
			if a.pd.Low[j] <= a.pd.Low[i] {
				isLow = false
			}
		}
		a.swingHigh[i] = isHigh
		a.swingLow[i] = isLow
	}
}

// detectEvents walks the series once, maintaining the market context, the
// active trading range and the post-breakout state. Returns the final context.
func (a *Analyzer) detectEvents() MarketContext {
	w := a.params.Wyckoff
	pd := a.pd
	n := pd.Len()

	ctx := ContextUndetermined
	activeRange := -1 // index into a.ranges
	rangeStartIdx := -1
	climaxIdx := -1
	breakoutIdx := -1
	brokenLevel := 0.0
	psEmitted := false
	springIdx := -1
	springLow := 0.0
	testEmitted := false
	utSeen := false

	for i := w.VolLookback; i < n; i++ {
		// 1. Climax detection opens a new cycle.
		if activeRange < 0 && climaxIdx < 0 {
			scCandidate := a.swingLow[i] &&
				a.volSpike[i] >= w.ClimaxVolMultiplier &&
				a.rangeSpike[i] >= w.ClimaxRangeMultiplier &&
				pd.Close[i] < pd.Open[i] &&
				(ctx == ContextUndetermined || ctx == ContextDowntrend)
			if scCandidate {
				a.addEvent(SC, i, fmt.Sprintf("volume spike %.1fx", a.volSpike[i]))
				ctx = ContextAccumulation
				climaxIdx = i
				psEmitted = false
				continue
			}

			bcCandidate := a.swingHigh[i] &&
				a.volSpike[i] >= w.ClimaxVolMultiplier &&
				a.rangeSpike[i] >= w.ClimaxRangeMultiplier &&
				pd.Close[i] > pd.Open[i] &&
				(ctx == ContextUndetermined || ctx == ContextUptrend)
			if bcCandidate {
				a.addEvent(BC, i, fmt.Sprintf("volume spike %.1fx", a.volSpike[i]))
				ctx = ContextDistribution
				climaxIdx = i
				continue
			}

			// High-volume down bar that stops the decline without the full
			// climax signature.
			if !psEmitted &&
				(ctx == ContextUndetermined || ctx == ContextDowntrend) &&
				pd.Close[i] < pd.Open[i] &&
				a.volSpike[i] >= w.ClimaxVolMultiplier {
				a.addEvent(PS, i, "high-volume down bar, no climax signature yet")
				psEmitted = true
			}
		}

		// 2. After a climax, the first reaction swing defines the range.
		if climaxIdx >= 0 && activeRange < 0 {
			switch ctx {
			case ContextAccumulation:
				if a.swingHigh[i] && i > climaxIdx && i-climaxIdx <= w.ARWindow {
					a.addEvent(AR, i, "")
					a.ranges = append(a.ranges, TradingRange{
						Start:      pd.Timestamps[climaxIdx],
						Kind:       RangeAccumulation,
						Support:    pd.Low[climaxIdx],
						Resistance: pd.High[i],
					})
					activeRange = len(a.ranges) - 1
					rangeStartIdx = climaxIdx
					springIdx, testEmitted, utSeen = -1, false, false
				}
			case ContextDistribution:
				if a.swingLow[i] && i > climaxIdx && i-climaxIdx <= w.ARWindow {
					a.addEvent(AutoReaction, i, "")
					a.ranges = append(a.ranges, TradingRange{
						Start:      pd.Timestamps[climaxIdx],
						Kind:       RangeDistribution,
						Support:    pd.Low[i],
						Resistance: pd.High[climaxIdx],
					})
					activeRange = len(a.ranges) - 1
					rangeStartIdx = climaxIdx
					springIdx, testEmitted, utSeen = -1, false, false
				}
			}
		}

		// 3. In-range analysis.
		if activeRange >= 0 {
			tr := &a.ranges[activeRange]
			support, resistance := tr.Support, tr.Resistance
			matured := i-rangeStartIdx >= w.RangeMinLength

			if tr.Kind == RangeAccumulation {
				// Secondary test of the climax low on lighter volume.
				if a.swingLow[i] && i != climaxIdx &&
					relDiff(pd.Low[i], pd.Low[climaxIdx]) < w.TestBandPct &&
					pd.Volume[i] < pd.Volume[climaxIdx] {
					a.addEvent(ST, i, "test of climax low on lower volume")
					if pd.Low[i] < tr.Support {
						tr.Support = pd.Low[i]
					}
				}

				// Spring: shallow pierce of support that closes back inside.
				if pd.Low[i] < support &&
					(support-pd.Low[i])/support <= w.SpringPct &&
					pd.Close[i] > support &&
					a.volSpike[i] >= w.SpringVolMultiplier {
					a.addEvent(Spring, i, springSubtype(a.volSpike[i], w.BreakoutVolMultiplier))
					springIdx = i
					springLow = pd.Low[i]
					testEmitted = false
				}

				// Low-volume retest of the spring low.
				if springIdx >= 0 && i > springIdx && !testEmitted &&
					relDiff(pd.Low[i], springLow) < w.TestBandPct &&
					a.volSpike[i] < 1.0 &&
					pd.Close[i] > support {
					a.addEvent(Test, i, "low-volume retest of spring low")
					testEmitted = true
				}

				// Sign of strength: breakout above resistance on volume.
				if matured &&
					pd.Close[i] > resistance &&
					pd.Close[i] > pd.Open[i] &&
					a.volSpike[i] >= w.BreakoutVolMultiplier {
					a.addEvent(SOS, i, "")
					if (pd.Close[i]-resistance)/resistance >= w.JACGapPct {
						a.addEvent(JAC, i, "breakout gap above resistance")
					}
					tr.End = pd.Timestamps[i]
					ctx = ContextUptrend
					breakoutIdx = i
					brokenLevel = resistance
					activeRange = -1
					climaxIdx = -1
				}
			} else {
				// Secondary test of the climax high on lighter volume.
				if a.swingHigh[i] && i != climaxIdx &&
					relDiff(pd.High[i], pd.High[climaxIdx]) < w.TestBandPct &&
					pd.Volume[i] < pd.Volume[climaxIdx] {
					a.addEvent(ST, i, "test of climax high on lower volume")
					if pd.High[i] > tr.Resistance {
						tr.Resistance = pd.High[i]
					}
				}

				// Upthrust: shallow pierce of resistance closing back inside.
				if pd.High[i] > resistance &&
					(pd.High[i]-resistance)/resistance <= w.SpringPct &&
					pd.Close[i] < resistance {
					if utSeen {
						a.addEvent(UTAD, i, "repeat upthrust after distribution")
					} else {
						a.addEvent(UT, i, "")
						utSeen = true
					}
				}

				// Sign of weakness: breakdown below support on volume.
				if matured &&
					pd.Close[i] < support &&
					pd.Close[i] < pd.Open[i] &&
					a.volSpike[i] >= w.BreakoutVolMultiplier {
					a.addEvent(SOW, i, "")
					tr.End = pd.Timestamps[i]
					ctx = ContextDowntrend
					breakoutIdx = i
					brokenLevel = support
					activeRange = -1
					climaxIdx = -1
				}
			}
		}

		// 4. Post-breakout confirmation: a low-volume retest of the broken
		// level that holds.
		if breakoutIdx >= 0 && i > breakoutIdx && !math.IsNaN(a.rollVol[i]) {
			switch ctx {
			case ContextUptrend:
				if pd.Low[i] > brokenLevel &&
					(pd.Low[i]-brokenLevel)/brokenLevel < 0.05 &&
					pd.Volume[i] < a.rollVol[i] {
					a.addEvent(LPS, i, "low-volume pullback holding above broken resistance")
					breakoutIdx = -1
				}
			case ContextDowntrend:
				if pd.High[i] < brokenLevel &&
					(brokenLevel-pd.High[i])/brokenLevel < 0.05 &&
					pd.Volume[i] < a.rollVol[i] {
					a.addEvent(LPSY, i, "low-volume rally failing below broken support")
					breakoutIdx = -1
				}
			}
		}
	}

	sort.SliceStable(a.events, func(i, j int) bool {
		return a.events[i].Timestamp.Before(a.events[j].Timestamp)
	})
	return ctx
}

// inferPhases converts the detected event sequence into phase spans A-E
func (a *Analyzer) inferPhases() []PhaseSpan {
	if len(a.events) == 0 {
		return nil
	}

	var spans []PhaseSpan
	current := PhaseUnknown
	spanStart := a.events[0].Timestamp
	closeSpan := func(end int) {
		if current != PhaseUnknown {
			spans = append(spans, PhaseSpan{Start: spanStart, End: a.events[end].Timestamp, Phase: current})
		}
	}

	phaseAEvents := map[Event]bool{PS: true, SC: true, BC: true}
	phaseBEvents := map[Event]bool{AR: true, AutoReaction: true}
	phaseCEvents := map[Event]bool{Spring: true, Test: true, UT: true, UTAD: true}
	phaseDEvents := map[Event]bool{SOS: true, SOW: true, JAC: true}
	phaseEEvents := map[Event]bool{LPS: true, LPSY: true}

	for idx, ev := range a.events {
		e := ev.Event
		switch {
		case phaseAEvents[e] && (current == PhaseUnknown || current == PhaseE || current == PhaseD):
			// A new stopping action resets the cycle.
			closeSpan(idx)
			current = PhaseA
			spanStart = ev.Timestamp
		case phaseBEvents[e] && current == PhaseA:
			closeSpan(idx)
			current = PhaseB
			spanStart = ev.Timestamp
		case phaseCEvents[e] && (current == PhaseA || current == PhaseB):
			closeSpan(idx)
			current = PhaseC
			spanStart = ev.Timestamp
		case phaseDEvents[e] && (current == PhaseA || current == PhaseB || current == PhaseC):
			closeSpan(idx)
			current = PhaseD
			spanStart = ev.Timestamp
		case phaseEEvents[e] && current == PhaseD:
			closeSpan(idx)
			current = PhaseE
			spanStart = ev.Timestamp
		}
	}

	if current != PhaseUnknown {
		spans = append(spans, PhaseSpan{
			Start: spanStart,
			End:   a.pd.Timestamps[a.pd.LastIndex()],
			Phase: current,
		})
	}
	return spans
}

// addEvent records an event once per (timestamp, kind) pair
func (a *Analyzer) addEvent(e Event, i int, details string) {
	key := a.pd.Timestamps[i].String() + "|" + string(e)
	if a.added[key] {
		return
	}
	a.added[key] = true
	a.events = append(a.events, DetectedEvent{
		Timestamp: a.pd.Timestamps[i],
		Event:     e,
		Price:     a.pd.Close[i],
		Volume:    a.pd.Volume[i],
		Details:   details,
	})
	a.logger.Debug("wyckoff event", "event", string(e), "timestamp", a.pd.Timestamps[i], "details", details)
}

// springSubtype grades a spring by its volume signature
func springSubtype(volSpike, breakoutMultiplier float64) string {
	switch {
	case volSpike > breakoutMultiplier:
		return "terminal shakeout (high volume)"
	case volSpike > 1.0:
		return "needs test (medium volume)"
	default:
		return "high quality (low volume)"
	}
}

func spikeRatio(value, rolling float64) float64 {
	if math.IsNaN(rolling) || rolling <= 0 {
		return 1.0
	}
	return value / rolling
}

func relDiff(a, b float64) float64 {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d / b
}

// rollingMean is a NaN-free trailing mean with NaN warmup
func rollingMean(values []float64, window int) []float64 {
	n := len(values)
	out := make([]float64, n)
	var sum float64
	for i := 0; i < n; i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		if i < window-1 {
			out[i] = math.NaN()
		} else {
			out[i] = sum / float64(window)
		}
	}
	return out
}
