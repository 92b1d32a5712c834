// Package patterns detects VPA patterns — accumulation, distribution,
// boundary testing and buying/selling climaxes — over a trailing window of
// processed bars.
package patterns

import (
	"fmt"
	"time"

	"marketflow/internal/logging"
	"marketflow/internal/params"
	"marketflow/internal/processor"
)

// TestKind distinguishes support from resistance tests
type TestKind string

const (
	SupportTest    TestKind = "SUPPORT_TEST"
	ResistanceTest TestKind = "RESISTANCE_TEST"
)

// Test is a single boundary test found inside the window
type Test struct {
	Kind      TestKind  `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// Result describes one detected (or rejected) pattern
type Result struct {
	Detected bool   `json:"detected"`
	Strength int    `json:"strength"`
	Details  string `json:"details"`
	Tests    []Test `json:"tests,omitempty"`
}

// Set bundles every pattern evaluated on one window. Accumulation and
// distribution may both be detected on the same window; the signal generator
// consumes them independently.
type Set struct {
	Accumulation  Result `json:"accumulation"`
	Distribution  Result `json:"distribution"`
	Testing       Result `json:"testing"`
	BuyingClimax  Result `json:"buying_climax"`
	SellingClimax Result `json:"selling_climax"`
}

// DetectedNames lists the detected patterns in a stable order
func (s Set) DetectedNames() []string {
	var names []string
	if s.Accumulation.Detected {
		names = append(names, "Accumulation")
	}
	if s.Distribution.Detected {
		names = append(names, "Distribution")
	}
	if s.Testing.Detected {
		names = append(names, "Testing")
	}
	if s.BuyingClimax.Detected {
		names = append(names, "Buying Climax")
	}
	if s.SellingClimax.Detected {
		names = append(names, "Selling Climax")
	}
	return names
}

// Recognizer detects window-based VPA patterns
type Recognizer struct {
	params *params.Parameters
	logger *logging.Logger
}

// New creates a pattern recognizer
func New(p *params.Parameters, logger *logging.Logger) *Recognizer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Recognizer{params: p, logger: logger.WithComponent("pattern_recognizer")}
}

// Identify evaluates every pattern on the window ending at index i
func (r *Recognizer) Identify(pd *processor.ProcessedData, i int) (Set, error) {
	if i < 0 || i >= pd.Len() {
		return Set{}, fmt.Errorf("bar index %d out of range [0, %d)", i, pd.Len())
	}
	start := i - r.params.Pattern.Window
	if start < 0 {
		start = 0
	}

	set := Set{
		Accumulation:  r.detectAccumulation(pd, start, i),
		Distribution:  r.detectDistribution(pd, start, i),
		Testing:       r.detectTesting(pd, start, i),
		BuyingClimax:  r.detectBuyingClimax(pd, start, i),
		SellingClimax: r.detectSellingClimax(pd, start, i),
	}
	r.logger.Debug("patterns identified",
		"index", i,
		"accumulation", set.Accumulation.Detected,
		"distribution", set.Distribution.Detected,
		"testing", set.Testing.Detected,
		"buying_climax", set.BuyingClimax.Detected,
		"selling_climax", set.SellingClimax.Detected)
	return set, nil
}

// windowStats returns range extremes and the mean close over [start, end]
func windowStats(pd *processor.ProcessedData, start, end int) (maxHigh, minLow, meanClose float64) {
	maxHigh, minLow = pd.High[start], pd.Low[start]
	var sum float64
	for j := start; j <= end; j++ {
		if pd.High[j] > maxHigh {
			maxHigh = pd.High[j]
		}
		if pd.Low[j] < minLow {
			minLow = pd.Low[j]
		}
		sum += pd.Close[j]
	}
	meanClose = sum / float64(end-start+1)
	return maxHigh, minLow, meanClose
}

func (r *Recognizer) detectAccumulation(pd *processor.ProcessedData, start, end int) Result {
	cfg := r.params.Pattern

	maxHigh, minLow, meanClose := windowStats(pd, start, end)
	volatility := (maxHigh - minLow) / meanClose
	isSideways := volatility <= cfg.SidewaysPct

	highVolumeCount := 0
	for j := start; j <= end; j++ {
		if pd.VolumeClasses[j].IsHigh() {
			highVolumeCount++
		}
	}

	// A support test touches or undercuts the running window low and closes
	// back above it.
	supportTests := 0
	runningLow := pd.Low[start]
	for j := start + 1; j <= end; j++ {
		touch := pd.Low[j] <= runningLow*(1+cfg.TouchTolerancePct) &&
			pd.Low[j] >= runningLow*(1-cfg.TouchTolerancePct)
		if touch && pd.Close[j] > runningLow {
			supportTests++
		}
		if pd.Low[j] < runningLow {
			runningLow = pd.Low[j]
		}
	}

	detected := isSideways && highVolumeCount >= cfg.MinHighVolume && supportTests >= cfg.MinTests
	strength := clampStrength(min(highVolumeCount, supportTests))
	if !detected {
		strength = 0
	}
	return Result{
		Detected: detected,
		Strength: strength,
		Details: fmt.Sprintf("Sideways: %t, High volume count: %d, Support tests: %d",
			isSideways, highVolumeCount, supportTests),
	}
}

func (r *Recognizer) detectDistribution(pd *processor.ProcessedData, start, end int) Result {
	cfg := r.params.Pattern

	maxHigh, minLow, meanClose := windowStats(pd, start, end)
	volatility := (maxHigh - minLow) / meanClose
	isSideways := volatility <= cfg.SidewaysPct

	highVolumeCount := 0
	for j := start; j <= end; j++ {
		if pd.VolumeClasses[j].IsHigh() {
			highVolumeCount++
		}
	}

	// A resistance test touches or overshoots the running window high and
	// closes back below it.
	resistanceTests := 0
	runningHigh := pd.High[start]
	for j := start + 1; j <= end; j++ {
		touch := pd.High[j] >= runningHigh*(1-cfg.TouchTolerancePct) &&
			pd.High[j] <= runningHigh*(1+cfg.TouchTolerancePct)
		if touch && pd.Close[j] < runningHigh {
			resistanceTests++
		}
		if pd.High[j] > runningHigh {
			runningHigh = pd.High[j]
		}
	}

	detected := isSideways && highVolumeCount >= cfg.MinHighVolume && resistanceTests >= cfg.MinTests
	strength := clampStrength(min(highVolumeCount, resistanceTests))
	if !detected {
		strength = 0
	}
	return Result{
		Detected: detected,
		Strength: strength,
		Details: fmt.Sprintf("Sideways: %t, High volume count: %d, Resistance tests: %d",
			isSideways, highVolumeCount, resistanceTests),
	}
}

// detectTesting lists low-volume probes of recent lows and highs
func (r *Recognizer) detectTesting(pd *processor.ProcessedData, start, end int) Result {
	cfg := r.params.Pattern

	var tests []Test
	for j := start + 1; j <= end; j++ {
		lowTested := false
		highTested := false
		for k := max(start, j-5); k < j; k++ {
			if !lowTested && relDiff(pd.Low[j], pd.Low[k]) < cfg.TouchTolerancePct {
				lowTested = true
			}
			if !highTested && relDiff(pd.High[j], pd.High[k]) < cfg.TouchTolerancePct {
				highTested = true
			}
		}
		if !pd.VolumeClasses[j].IsLow() {
			continue
		}
		if lowTested {
			tests = append(tests, Test{Kind: SupportTest, Timestamp: pd.Timestamps[j], Price: pd.Low[j]})
		}
		if highTested {
			tests = append(tests, Test{Kind: ResistanceTest, Timestamp: pd.Timestamps[j], Price: pd.High[j]})
		}
	}

	strength := len(tests)
	if strength > cfg.MaxTests {
		strength = cfg.MaxTests
	}
	return Result{
		Detected: len(tests) > 0,
		Strength: strength,
		Details:  fmt.Sprintf("Found %d testing patterns", len(tests)),
		Tests:    tests,
	}
}

func (r *Recognizer) detectBuyingClimax(pd *processor.ProcessedData, start, end int) Result {
	cfg := r.params.Pattern

	maxHigh, _, _ := windowStats(pd, start, end)

	nearHigh := pd.Close[end] >= maxHigh*(1-cfg.ClimaxBandPct)
	veryHighVolume := pd.VolumeClasses[end] == processor.VolumeVeryHigh
	wideUp := pd.CandleClasses[end] == processor.CandleWide && pd.IsUpCandle(end)
	upperWick := pd.UpperWick[end] > pd.Spread[end]*cfg.ClimaxWickPct

	strength := 0
	for _, cond := range [4]bool{nearHigh, veryHighVolume, wideUp, upperWick} {
		if cond {
			strength++
		}
	}
	return Result{
		Detected: strength >= 3,
		Strength: strength,
		Details: fmt.Sprintf("Near high: %t, Very high volume: %t, Wide up candle: %t, Upper wick: %t",
			nearHigh, veryHighVolume, wideUp, upperWick),
	}
}

func (r *Recognizer) detectSellingClimax(pd *processor.ProcessedData, start, end int) Result {
	cfg := r.params.Pattern

	_, minLow, _ := windowStats(pd, start, end)

	nearLow := pd.Close[end] <= minLow*(1+cfg.ClimaxBandPct)
	veryHighVolume := pd.VolumeClasses[end] == processor.VolumeVeryHigh
	wideDown := pd.CandleClasses[end] == processor.CandleWide && !pd.IsUpCandle(end)
	lowerWick := pd.LowerWick[end] > pd.Spread[end]*cfg.ClimaxWickPct

	strength := 0
	for _, cond := range [4]bool{nearLow, veryHighVolume, wideDown, lowerWick} {
		if cond {
			strength++
		}
	}
	return Result{
		Detected: strength >= 3,
		Strength: strength,
		Details: fmt.Sprintf("Near low: %t, Very high volume: %t, Wide down candle: %t, Lower wick: %t",
			nearLow, veryHighVolume, wideDown, lowerWick),
	}
}

func clampStrength(v int) int {
	if v < 1 {
		return 1
	}
	if v > 3 {
		return 3
	}
	return v
}

func relDiff(a, b float64) float64 {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d / b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
