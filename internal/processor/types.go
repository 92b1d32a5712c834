package processor

import "time"

// VolumeClass grades a bar's volume against its trailing average
type VolumeClass string

const (
	VolumeVeryHigh VolumeClass = "VERY_HIGH"
	VolumeHigh     VolumeClass = "HIGH"
	VolumeAverage  VolumeClass = "AVERAGE"
	VolumeLow      VolumeClass = "LOW"
	VolumeVeryLow  VolumeClass = "VERY_LOW"
)

// Rank orders volume classes from VERY_LOW (0) to VERY_HIGH (4)
func (v VolumeClass) Rank() int {
	switch v {
	case VolumeVeryLow:
		return 0
	case VolumeLow:
		return 1
	case VolumeAverage:
		return 2
	case VolumeHigh:
		return 3
	case VolumeVeryHigh:
		return 4
	default:
		return 2
	}
}

// IsHigh reports whether the class is HIGH or VERY_HIGH
func (v VolumeClass) IsHigh() bool {
	return v == VolumeHigh || v == VolumeVeryHigh
}

// IsLow reports whether the class is LOW or VERY_LOW
func (v VolumeClass) IsLow() bool {
	return v == VolumeLow || v == VolumeVeryLow
}

// CandleClass grades a bar's shape
type CandleClass string

const (
	CandleWide    CandleClass = "WIDE"
	CandleNarrow  CandleClass = "NARROW"
	CandleWick    CandleClass = "WICK"
	CandleNeutral CandleClass = "NEUTRAL"
)

// PriceDirection grades short-term price movement
type PriceDirection string

const (
	PriceUp       PriceDirection = "UP"
	PriceDown     PriceDirection = "DOWN"
	PriceSideways PriceDirection = "SIDEWAYS"
)

// VolumeDirection grades the slope of on-balance volume
type VolumeDirection string

const (
	VolumeIncreasing VolumeDirection = "INCREASING"
	VolumeDecreasing VolumeDirection = "DECREASING"
	VolumeFlat       VolumeDirection = "FLAT"
)

// ProcessedData is the per-timeframe feature bundle. Every slice is indexed
// by the shared timestamp index; rolling fields carry NaN during warmup and
// the categorical fields fall back to their neutral value there.
type ProcessedData struct {
	Timestamps []time.Time

	Open  []float64
	High  []float64
	Low   []float64
	Close []float64

	Volume []float64

	Spread      []float64
	BodyPercent []float64
	UpperWick   []float64
	LowerWick   []float64

	AvgVolume   []float64
	VolumeRatio []float64
	ATR         []float64
	OBV         []float64

	VolumeClasses    []VolumeClass
	CandleClasses    []CandleClass
	PriceDirections  []PriceDirection
	VolumeDirections []VolumeDirection
}

// Len returns the number of aligned bars
func (p *ProcessedData) Len() int {
	return len(p.Timestamps)
}

// LastIndex returns the index of the most recent bar
func (p *ProcessedData) LastIndex() int {
	return len(p.Timestamps) - 1
}

// IsUpCandle reports whether bar i closed above its open
func (p *ProcessedData) IsUpCandle(i int) bool {
	return p.Close[i] > p.Open[i]
}

// Truncate returns a copy of the bundle restricted to bars [0, n)
func (p *ProcessedData) Truncate(n int) *ProcessedData {
	if n > p.Len() {
		n = p.Len()
	}
	return &ProcessedData{
		Timestamps:       p.Timestamps[:n],
		Open:             p.Open[:n],
		High:             p.High[:n],
		Low:              p.Low[:n],
		Close:            p.Close[:n],
		Volume:           p.Volume[:n],
		Spread:           p.Spread[:n],
		BodyPercent:      p.BodyPercent[:n],
		UpperWick:        p.UpperWick[:n],
		LowerWick:        p.LowerWick[:n],
		AvgVolume:        p.AvgVolume[:n],
		VolumeRatio:      p.VolumeRatio[:n],
		ATR:              p.ATR[:n],
		OBV:              p.OBV[:n],
		VolumeClasses:    p.VolumeClasses[:n],
		CandleClasses:    p.CandleClasses[:n],
		PriceDirections:  p.PriceDirections[:n],
		VolumeDirections: p.VolumeDirections[:n],
	}
}
