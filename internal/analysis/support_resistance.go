package analysis

import (
	"math"
	"sort"

	"marketflow/internal/logging"
	"marketflow/internal/params"
	"marketflow/internal/processor"
)

// SupportResistanceAnalyzer derives clustered pivot levels from recent
// swings, weighted by the volume traded at the contributing pivots
type SupportResistanceAnalyzer struct {
	params *params.Parameters
	logger *logging.Logger
}

// NewSupportResistanceAnalyzer creates a support/resistance analyzer
func NewSupportResistanceAnalyzer(p *params.Parameters, logger *logging.Logger) *SupportResistanceAnalyzer {
	if logger == nil {
		logger = logging.Default()
	}
	return &SupportResistanceAnalyzer{params: p, logger: logger.WithComponent("sr_analyzer")}
}

// pivot is a local close extremum before clustering
type pivot struct {
	index  int
	price  float64
	volume float64
}

// Analyze identifies support levels below the current price and resistance
// levels above it from the trailing lookback window
func (sa *SupportResistanceAnalyzer) Analyze(pd *processor.ProcessedData) SupportResistance {
	cfg := sa.params.SupportResistance

	start := pd.Len() - cfg.Lookback
	if start < 0 {
		start = 0
	}
	currentPrice := pd.Close[pd.LastIndex()]

	lows, highs := sa.findPivots(pd, start)

	supports := sa.clusterLevels(pd, lows, currentPrice, true)
	resistances := sa.clusterLevels(pd, highs, currentPrice, false)

	volumeAtLevels := sa.volumeAtLevels(pd, start, supports, resistances)

	sa.logger.Debug("support/resistance analyzed",
		"supports", len(supports), "resistances", len(resistances))

	return SupportResistance{
		Support:        supports,
		Resistance:     resistances,
		VolumeAtLevels: volumeAtLevels,
	}
}

// findPivots locates local close extrema over the symmetric pivot window
func (sa *SupportResistanceAnalyzer) findPivots(pd *processor.ProcessedData, start int) (lows, highs []pivot) {
	k := sa.params.SupportResistance.PivotWindow
	for i := start + k; i < pd.Len()-k; i++ {
		isLow, isHigh := true, true
		for j := i - k; j <= i+k; j++ {
			if j == i {
				continue
			}
			if pd.Close[j] <= pd.Close[i] {
				isLow = false
			}
			if pd.Close[j] >= pd.Close[i] {
				isHigh = false
			}
			if !isLow && !isHigh {
				break
			}
		}
		if isLow {
			lows = append(lows, pivot{index: i, price: pd.Close[i], volume: pd.Volume[i]})
		}
		if isHigh {
			highs = append(highs, pivot{index: i, price: pd.Close[i], volume: pd.Volume[i]})
		}
	}
	return lows, highs
}

// clusterLevels merges pivots within the cluster tolerance into single
// levels, weights them by total pivot volume and keeps the strongest few on
// the correct side of the current price
func (sa *SupportResistanceAnalyzer) clusterLevels(pd *processor.ProcessedData, pivots []pivot, currentPrice float64, below bool) []Level {
	cfg := sa.params.SupportResistance

	sorted := make([]pivot, len(pivots))
	copy(sorted, pivots)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].price < sorted[j].price })

	var clusters [][]pivot
	for _, p := range sorted {
		if len(clusters) > 0 {
			last := clusters[len(clusters)-1]
			anchor := last[0].price
			if math.Abs(p.price-anchor)/anchor < cfg.ClusterTolerancePct {
				clusters[len(clusters)-1] = append(last, p)
				continue
			}
		}
		clusters = append(clusters, []pivot{p})
	}

	var levels []Level
	for _, cluster := range clusters {
		prices := make([]float64, len(cluster))
		var totalVolume float64
		lastIndex := 0
		for i, p := range cluster {
			prices[i] = p.price
			totalVolume += p.volume
			if p.index > lastIndex {
				lastIndex = p.index
			}
		}
		sort.Float64s(prices)
		price := prices[len(prices)/2]
		if len(prices)%2 == 0 {
			price = (prices[len(prices)/2-1] + prices[len(prices)/2]) / 2
		}

		if below && price >= currentPrice {
			continue
		}
		if !below && price <= currentPrice {
			continue
		}
		levels = append(levels, Level{
			Price:     price,
			Timestamp: pd.Timestamps[lastIndex],
			Volume:    totalVolume,
			Strength:  float64(len(cluster)),
			Tests:     len(cluster) - 1,
		})
	}

	// Strongest first by volume weight, recency breaking ties.
	sort.Slice(levels, func(i, j int) bool {
		if levels[i].Volume != levels[j].Volume {
			return levels[i].Volume > levels[j].Volume
		}
		return levels[i].Timestamp.After(levels[j].Timestamp)
	})
	if len(levels) > cfg.MaxLevels {
		levels = levels[:cfg.MaxLevels]
	}
	return levels
}

// volumeAtLevels sums the volume of every bar whose range covers each level
func (sa *SupportResistanceAnalyzer) volumeAtLevels(pd *processor.ProcessedData, start int, supports, resistances []Level) map[float64]LevelVolume {
	out := make(map[float64]LevelVolume, len(supports)+len(resistances))
	add := func(levels []Level, kind string) {
		for _, level := range levels {
			count := 0
			var total float64
			for i := start; i < pd.Len(); i++ {
				if pd.Low[i] <= level.Price && level.Price <= pd.High[i] {
					count++
					total += pd.Volume[i]
				}
			}
			avg := 0.0
			if count > 0 {
				avg = total / float64(count)
			}
			out[level.Price] = LevelVolume{
				Type:         kind,
				CandlesCount: count,
				TotalVolume:  total,
				AvgVolume:    avg,
			}
		}
	}
	add(supports, "support")
	add(resistances, "resistance")
	return out
}
