package analysis

import (
	"testing"
	"time"

	"marketflow/internal/params"
	"marketflow/internal/processor"
)

// singleBar builds a one-bar processed bundle with explicit classifications
func singleBar(open, high, low, close float64, candle processor.CandleClass, volume processor.VolumeClass, direction processor.PriceDirection) *processor.ProcessedData {
	return &processor.ProcessedData{
		Timestamps:       []time.Time{time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		Open:             []float64{open},
		High:             []float64{high},
		Low:              []float64{low},
		Close:            []float64{close},
		Volume:           []float64{1000},
		Spread:           []float64{abs(close - open)},
		BodyPercent:      []float64{abs(close-open) / (high - low)},
		UpperWick:        []float64{high - max(open, close)},
		LowerWick:        []float64{min(open, close) - low},
		AvgVolume:        []float64{1000},
		VolumeRatio:      []float64{1},
		ATR:              []float64{high - low},
		OBV:              []float64{0},
		VolumeClasses:    []processor.VolumeClass{volume},
		CandleClasses:    []processor.CandleClass{candle},
		PriceDirections:  []processor.PriceDirection{direction},
		VolumeDirections: []processor.VolumeDirection{processor.VolumeFlat},
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// TestWideHighVolumeUp is the strong buy rule
func TestWideHighVolumeUp(t *testing.T) {
	ca := NewCandleAnalyzer(params.Default(), nil)
	pd := singleBar(100, 106, 99.5, 105.5, processor.CandleWide, processor.VolumeVeryHigh, processor.PriceUp)

	result, err := ca.AnalyzeBar(0, pd)
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if result.Type != SignalBuy || result.Strength != StrengthStrong {
		t.Errorf("expected BUY/STRONG, got %s/%s", result.Type, result.Strength)
	}
	if result.Bias() != BiasBullish {
		t.Errorf("expected bullish bias, got %s", result.Bias())
	}
}

// TestWideHighVolumeDown is the strong sell rule
func TestWideHighVolumeDown(t *testing.T) {
	ca := NewCandleAnalyzer(params.Default(), nil)
	pd := singleBar(105, 105.5, 99, 99.5, processor.CandleWide, processor.VolumeHigh, processor.PriceDown)

	result, err := ca.AnalyzeBar(0, pd)
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if result.Type != SignalSell || result.Strength != StrengthStrong {
		t.Errorf("expected SELL/STRONG, got %s/%s", result.Type, result.Strength)
	}
}

// TestLowerWickHighVolume is the moderate buy rule
func TestLowerWickHighVolume(t *testing.T) {
	ca := NewCandleAnalyzer(params.Default(), nil)
	// Long lower wick: open 100, close 100.5, low 95, high 101.
	pd := singleBar(100, 101, 95, 100.5, processor.CandleWick, processor.VolumeHigh, processor.PriceSideways)

	result, err := ca.AnalyzeBar(0, pd)
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if result.Type != SignalBuy || result.Strength != StrengthModerate {
		t.Errorf("expected BUY/MODERATE, got %s/%s", result.Type, result.Strength)
	}
}

// TestUpperWickHighVolume is the moderate sell rule
func TestUpperWickHighVolume(t *testing.T) {
	ca := NewCandleAnalyzer(params.Default(), nil)
	// Long upper wick: open 100, close 99.5, high 105, low 99.
	pd := singleBar(100, 105, 99, 99.5, processor.CandleWick, processor.VolumeVeryHigh, processor.PriceSideways)

	result, err := ca.AnalyzeBar(0, pd)
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if result.Type != SignalSell || result.Strength != StrengthModerate {
		t.Errorf("expected SELL/MODERATE, got %s/%s", result.Type, result.Strength)
	}
}

// TestNarrowLowVolumeContraction is the no-action contraction rule
func TestNarrowLowVolumeContraction(t *testing.T) {
	ca := NewCandleAnalyzer(params.Default(), nil)
	pd := singleBar(100, 101, 99.5, 100.2, processor.CandleNarrow, processor.VolumeVeryLow, processor.PriceSideways)

	result, err := ca.AnalyzeBar(0, pd)
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if result.Type != SignalNoAction || result.Strength != StrengthNeutral {
		t.Errorf("expected NO_ACTION/NEUTRAL, got %s/%s", result.Type, result.Strength)
	}
}

// TestDefaultNoAction falls through to the neutral default
func TestDefaultNoAction(t *testing.T) {
	ca := NewCandleAnalyzer(params.Default(), nil)
	pd := singleBar(100, 101.5, 99, 100.8, processor.CandleNeutral, processor.VolumeAverage, processor.PriceSideways)

	result, err := ca.AnalyzeBar(0, pd)
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if result.Type != SignalNoAction {
		t.Errorf("expected NO_ACTION, got %s", result.Type)
	}
}

// TestBarIndexOutOfRange is the only failure mode
func TestBarIndexOutOfRange(t *testing.T) {
	ca := NewCandleAnalyzer(params.Default(), nil)
	pd := singleBar(100, 101, 99, 100.5, processor.CandleNeutral, processor.VolumeAverage, processor.PriceSideways)

	if _, err := ca.AnalyzeBar(1, pd); err == nil {
		t.Error("expected error for index past the series")
	}
	if _, err := ca.AnalyzeBar(-1, pd); err == nil {
		t.Error("expected error for negative index")
	}
}
