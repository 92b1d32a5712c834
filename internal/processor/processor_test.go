package processor

import (
	"errors"
	"math"
	"testing"
	"time"

	"marketflow/internal/marketdata"
	"marketflow/internal/params"
)

var testBase = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

// makeBars builds aligned daily price and volume series from close/volume
// pairs, with a fixed 2.5-point bar range around each close
func makeBars(closes, volumes []float64) ([]marketdata.PriceBar, []marketdata.VolumePoint) {
	price := make([]marketdata.PriceBar, len(closes))
	volume := make([]marketdata.VolumePoint, len(closes))
	for i, c := range closes {
		ts := testBase.Add(time.Duration(i) * 24 * time.Hour)
		price[i] = marketdata.PriceBar{
			Timestamp: ts,
			Open:      c - 0.5,
			High:      c + 1,
			Low:       c - 1.5,
			Close:     c,
		}
		volume[i] = marketdata.VolumePoint{Timestamp: ts, Volume: volumes[i]}
	}
	return price, volume
}

func constants(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func testParams(t *testing.T, mutate func(*params.Parameters)) *params.Parameters {
	t.Helper()
	p := params.Default()
	if mutate != nil {
		mutate(p)
	}
	validated, err := params.New(p)
	if err != nil {
		t.Fatalf("test parameters invalid: %v", err)
	}
	return validated
}

// shortLookbacks shrinks every window that feeds MinRequiredBars so short
// synthetic series stay above the pipeline-wide minimum (5+2 = 7 bars)
func shortLookbacks(p *params.Parameters) {
	p.Volume.LookbackPeriod = 5
	p.Trend.ATRPeriod = 5
	p.Wyckoff.VolLookback = 5
	p.Wyckoff.SwingN = 2
}

// TestProcessedSeriesLengths checks every derived series shares the price index
func TestProcessedSeriesLengths(t *testing.T) {
	price, volume := makeBars(constants(30, 100), constants(30, 1000))
	pr := New(testParams(t, nil), nil)

	pd, err := pr.Preprocess(price, volume)
	if err != nil {
		t.Fatalf("preprocess failed: %v", err)
	}

	n := pd.Len()
	if n != 30 {
		t.Fatalf("expected 30 aligned bars, got %d", n)
	}
	lengths := map[string]int{
		"open":              len(pd.Open),
		"high":              len(pd.High),
		"low":               len(pd.Low),
		"close":             len(pd.Close),
		"volume":            len(pd.Volume),
		"spread":            len(pd.Spread),
		"body_percent":      len(pd.BodyPercent),
		"upper_wick":        len(pd.UpperWick),
		"lower_wick":        len(pd.LowerWick),
		"avg_volume":        len(pd.AvgVolume),
		"volume_ratio":      len(pd.VolumeRatio),
		"atr":               len(pd.ATR),
		"obv":               len(pd.OBV),
		"volume_classes":    len(pd.VolumeClasses),
		"candle_classes":    len(pd.CandleClasses),
		"price_directions":  len(pd.PriceDirections),
		"volume_directions": len(pd.VolumeDirections),
	}
	for name, l := range lengths {
		if l != n {
			t.Errorf("series %s has length %d, want %d", name, l, n)
		}
	}
}

// TestCandleGeometry checks body percentage bounds and the wick identity
func TestCandleGeometry(t *testing.T) {
	closes := []float64{100, 102, 99, 105, 103, 104, 101, 106, 107, 105, 108, 110}
	price, volume := makeBars(closes, constants(len(closes), 500))
	pr := New(testParams(t, shortLookbacks), nil)

	pd, err := pr.Preprocess(price, volume)
	if err != nil {
		t.Fatalf("preprocess failed: %v", err)
	}

	for i := 0; i < pd.Len(); i++ {
		if pd.BodyPercent[i] < 0 || pd.BodyPercent[i] > 1 {
			t.Errorf("bar %d: body percent %.4f out of [0,1]", i, pd.BodyPercent[i])
		}
		if pd.UpperWick[i] < 0 || pd.LowerWick[i] < 0 {
			t.Errorf("bar %d: negative wick", i)
		}
		total := pd.UpperWick[i] + pd.LowerWick[i] + pd.Spread[i]
		barRange := pd.High[i] - pd.Low[i]
		if math.Abs(total-barRange) > 1e-9 {
			t.Errorf("bar %d: wicks+spread = %.9f, range = %.9f", i, total, barRange)
		}
	}
}

// TestVolumeClassification exercises the threshold ladder and warmup default
func TestVolumeClassification(t *testing.T) {
	volumes := []float64{100, 100, 100, 100, 900, 100, 100, 100, 100, 50, 100, 100, 100, 100, 10}
	price, volume := makeBars(constants(len(volumes), 100), volumes)
	pr := New(testParams(t, shortLookbacks), nil)

	pd, err := pr.Preprocess(price, volume)
	if err != nil {
		t.Fatalf("preprocess failed: %v", err)
	}

	// Warmup bars default to AVERAGE.
	for i := 0; i < 4; i++ {
		if pd.VolumeClasses[i] != VolumeAverage {
			t.Errorf("warmup bar %d classified %s, want AVERAGE", i, pd.VolumeClasses[i])
		}
	}
	// 900 against a (400+900)/5 = 260 trailing mean is a 3.46x ratio.
	if pd.VolumeClasses[4] != VolumeVeryHigh {
		t.Errorf("spike bar classified %s, want VERY_HIGH", pd.VolumeClasses[4])
	}
	// 50 against (400+50)/5 = 90 is a 0.56x ratio.
	if pd.VolumeClasses[9] != VolumeLow {
		t.Errorf("light bar classified %s, want LOW", pd.VolumeClasses[9])
	}
	// 10 against (400+10)/5 = 82 is a 0.12x ratio.
	if pd.VolumeClasses[14] != VolumeVeryLow {
		t.Errorf("dry bar classified %s, want VERY_LOW", pd.VolumeClasses[14])
	}
}

// TestVolumeClassOrderPreserving checks class rank is monotone in the ratio
func TestVolumeClassOrderPreserving(t *testing.T) {
	volumes := []float64{100, 120, 80, 300, 60, 150, 90, 500, 40, 110, 100, 130, 70, 250, 100}
	price, volume := makeBars(constants(len(volumes), 100), volumes)
	pr := New(testParams(t, shortLookbacks), nil)

	pd, err := pr.Preprocess(price, volume)
	if err != nil {
		t.Fatalf("preprocess failed: %v", err)
	}

	for i := 0; i < pd.Len(); i++ {
		for j := 0; j < pd.Len(); j++ {
			ri, rj := pd.VolumeRatio[i], pd.VolumeRatio[j]
			if math.IsNaN(ri) || math.IsNaN(rj) {
				continue
			}
			if ri < rj && pd.VolumeClasses[i].Rank() > pd.VolumeClasses[j].Rank() {
				t.Errorf("ratio %.3f ranked above ratio %.3f", ri, rj)
			}
		}
	}
}

// TestZeroVolumes checks the all-zero-volume boundary behavior
func TestZeroVolumes(t *testing.T) {
	price, volume := makeBars(constants(20, 100), constants(20, 0))
	pr := New(testParams(t, shortLookbacks), nil)

	pd, err := pr.Preprocess(price, volume)
	if err != nil {
		t.Fatalf("preprocess failed: %v", err)
	}

	for i := 0; i < pd.Len(); i++ {
		if pd.VolumeClasses[i] != VolumeAverage {
			t.Errorf("bar %d: zero volume classified %s, want AVERAGE", i, pd.VolumeClasses[i])
		}
		if pd.OBV[i] != 0 {
			t.Errorf("bar %d: OBV %.2f, want 0", i, pd.OBV[i])
		}
		if pd.VolumeDirections[i] != VolumeFlat {
			t.Errorf("bar %d: volume direction %s, want FLAT", i, pd.VolumeDirections[i])
		}
	}
}

// TestConstantPrices checks flat input yields sideways direction everywhere
func TestConstantPrices(t *testing.T) {
	price, volume := makeBars(constants(25, 100), constants(25, 500))
	pr := New(testParams(t, nil), nil)

	pd, err := pr.Preprocess(price, volume)
	if err != nil {
		t.Fatalf("preprocess failed: %v", err)
	}
	for i := 0; i < pd.Len(); i++ {
		if pd.PriceDirections[i] != PriceSideways {
			t.Errorf("bar %d: direction %s on constant prices, want SIDEWAYS", i, pd.PriceDirections[i])
		}
	}
}

// TestOBVSeededToZero checks the OBV running sum semantics
func TestOBVSeededToZero(t *testing.T) {
	closes := []float64{100, 101, 100, 100, 102, 102, 103, 101, 104, 103}
	volumes := []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	price, volume := makeBars(closes, volumes)
	pr := New(testParams(t, shortLookbacks), nil)

	pd, err := pr.Preprocess(price, volume)
	if err != nil {
		t.Fatalf("preprocess failed: %v", err)
	}

	if pd.OBV[0] != 0 {
		t.Errorf("OBV seed %.2f, want 0", pd.OBV[0])
	}
	// up +20, down -30, flat, up +50, flat, up +70, down -80, up +90, down -100
	want := []float64{0, 20, -10, -10, 40, 40, 110, 30, 120, 20}
	for i, w := range want {
		if math.Abs(pd.OBV[i]-w) > 1e-9 {
			t.Errorf("OBV[%d] = %.2f, want %.2f", i, pd.OBV[i], w)
		}
	}
}

// TestAlignmentDropsUnmatchedRows checks the inner join semantics
func TestAlignmentDropsUnmatchedRows(t *testing.T) {
	price, volume := makeBars(constants(20, 100), constants(20, 500))
	// Drop one volume row; its price row must disappear from the result.
	volume = append(volume[:7], volume[8:]...)

	pr := New(testParams(t, shortLookbacks), nil)
	pd, err := pr.Preprocess(price, volume)
	if err != nil {
		t.Fatalf("preprocess failed: %v", err)
	}
	if pd.Len() != 19 {
		t.Errorf("expected 19 aligned bars after dropping one volume row, got %d", pd.Len())
	}
}

// TestDuplicateTimestamps checks the data integrity failure
func TestDuplicateTimestamps(t *testing.T) {
	price, volume := makeBars(constants(15, 100), constants(15, 500))
	price[8].Timestamp = price[7].Timestamp

	pr := New(testParams(t, shortLookbacks), nil)
	_, err := pr.Preprocess(price, volume)
	if !errors.Is(err, ErrDataIntegrity) {
		t.Errorf("expected ErrDataIntegrity for duplicate timestamps, got: %v", err)
	}
}

// TestNegativeVolumeRejected checks invalid volume input fails integrity
func TestNegativeVolumeRejected(t *testing.T) {
	price, volume := makeBars(constants(15, 100), constants(15, 500))
	volume[3].Volume = -1

	pr := New(testParams(t, shortLookbacks), nil)
	_, err := pr.Preprocess(price, volume)
	if !errors.Is(err, ErrDataIntegrity) {
		t.Errorf("expected ErrDataIntegrity for negative volume, got: %v", err)
	}
}

// TestInsufficientData checks the short-series boundary at exactly the
// pipeline-wide minimum, max(lookbacks) + swing window
func TestInsufficientData(t *testing.T) {
	p := testParams(t, nil)
	pr := New(p, nil)
	minBars := p.MinRequiredBars() // 25 with the defaults

	price, volume := makeBars(constants(5, 100), constants(5, 500))
	if _, err := pr.Preprocess(price, volume); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData for 5 bars, got: %v", err)
	}

	price, volume = makeBars(constants(minBars-1, 100), constants(minBars-1, 500))
	if _, err := pr.Preprocess(price, volume); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData for %d bars with minimum %d, got: %v", minBars-1, minBars, err)
	}

	price, volume = makeBars(constants(minBars, 100), constants(minBars, 500))
	if _, err := pr.Preprocess(price, volume); err != nil {
		t.Errorf("expected success at exactly the minimum length, got: %v", err)
	}
}

// TestPreprocessDeterminism checks byte-identical reruns
func TestPreprocessDeterminism(t *testing.T) {
	closes := []float64{100, 102, 99, 105, 103, 104, 101, 106, 107, 105, 108, 110, 109, 111, 112}
	volumes := []float64{100, 120, 80, 300, 60, 150, 90, 500, 40, 110, 100, 130, 70, 250, 100}
	price, volume := makeBars(closes, volumes)
	pr := New(testParams(t, shortLookbacks), nil)

	first, err := pr.Preprocess(price, volume)
	if err != nil {
		t.Fatalf("preprocess failed: %v", err)
	}
	second, err := pr.Preprocess(price, volume)
	if err != nil {
		t.Fatalf("preprocess failed: %v", err)
	}

	checkEqualSeries(t, "avg_volume", first.AvgVolume, second.AvgVolume)
	checkEqualSeries(t, "volume_ratio", first.VolumeRatio, second.VolumeRatio)
	checkEqualSeries(t, "atr", first.ATR, second.ATR)
	checkEqualSeries(t, "obv", first.OBV, second.OBV)
	for i := range first.VolumeClasses {
		if first.VolumeClasses[i] != second.VolumeClasses[i] {
			t.Errorf("volume class differs at %d", i)
		}
		if first.CandleClasses[i] != second.CandleClasses[i] {
			t.Errorf("candle class differs at %d", i)
		}
		if first.PriceDirections[i] != second.PriceDirections[i] {
			t.Errorf("price direction differs at %d", i)
		}
	}
}

// checkEqualSeries compares float series treating NaN as equal to NaN
func checkEqualSeries(t *testing.T, name string, a, b []float64) {
	t.Helper()
	if len(a) != len(b) {
		t.Fatalf("%s length mismatch: %d vs %d", name, len(a), len(b))
	}
	for i := range a {
		if math.IsNaN(a[i]) && math.IsNaN(b[i]) {
			continue
		}
		if a[i] != b[i] {
			t.Errorf("%s differs at %d: %v vs %v", name, i, a[i], b[i])
		}
	}
}

// BenchmarkPreprocess measures the full feature derivation pipeline
func BenchmarkPreprocess(b *testing.B) {
	n := 1000
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i := 0; i < n; i++ {
		closes[i] = 100 + float64(i%50)
		volumes[i] = 500 + float64((i*37)%400)
	}
	price, volume := makeBars(closes, volumes)
	p := params.Default()
	pr := New(p, nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := pr.Preprocess(price, volume); err != nil {
			b.Fatal(err)
		}
	}
}
