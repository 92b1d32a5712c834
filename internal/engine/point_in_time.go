package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"marketflow/internal/analysis"
	"marketflow/internal/logging"
	"marketflow/internal/marketdata"
	"marketflow/internal/params"
	"marketflow/internal/patterns"
	"marketflow/internal/processor"
	"marketflow/internal/signals"
)

// RiskReward summarizes trade management levels computed at a point in time
type RiskReward struct {
	CurrentPrice    float64 `json:"current_price"`
	StopLoss        float64 `json:"stop_loss"`
	TakeProfit      float64 `json:"take_profit"`
	Risk            float64 `json:"risk"`
	Reward          float64 `json:"reward"`
	RiskRewardRatio float64 `json:"risk_reward_ratio"`
}

// Volatility summarizes recent true-range volatility
type Volatility struct {
	ATR               float64 `json:"atr"`
	VolatilityPercent float64 `json:"volatility_percent"`
}

// PointInTimeResult is the reconstruction of an analysis at a historical bar
type PointInTimeResult struct {
	Ticker          string                               `json:"ticker"`
	Timestamp       time.Time                            `json:"timestamp"`
	Signals         map[string]signals.TimeframeAnalysis `json:"signals"`
	PatternSummary  string                               `json:"pattern_summary"`
	RiskReward      RiskReward                           `json:"risk_reward"`
	Volatility      Volatility                           `json:"volatility"`
	ConfidenceScore float64                              `json:"confidence_score"`
	Failures        map[string]string                    `json:"failures,omitempty"`
}

// PointInTimeAnalyzer evaluates the multi-timeframe analysis as of a
// specific historical timestamp, for backtesting-style queries
type PointInTimeAnalyzer struct {
	params *params.Parameters
	logger *logging.Logger
	mtf    *MultiTimeframeAnalyzer
}

// NewPointInTimeAnalyzer creates a point-in-time analyzer
func NewPointInTimeAnalyzer(p *params.Parameters, logger *logging.Logger) *PointInTimeAnalyzer {
	if logger == nil {
		logger = logging.Default()
	}
	return &PointInTimeAnalyzer{
		params: p,
		logger: logger.WithComponent("point_in_time_analyzer"),
		mtf:    NewMultiTimeframeAnalyzer(p, logger),
	}
}

// Analyze truncates every timeframe's series at the target timestamp and
// runs the per-timeframe analyzers on the truncated views
func (pit *PointInTimeAnalyzer) Analyze(ctx context.Context, ticker string, data map[string]marketdata.TimeframeData, at time.Time) (*PointInTimeResult, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("no timeframe data provided for %s", ticker)
	}

	minBars := pit.params.MinRequiredBars()
	results := make(map[string]signals.TimeframeAnalysis)
	failures := make(map[string]string)

	keys := make([]string, 0, len(data))
	for tf := range data {
		keys = append(keys, tf)
	}
	sort.Strings(keys)

	for _, tf := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		truncated := truncateAt(data[tf], at)
		if len(truncated.Price) < minBars {
			failures[tf] = fmt.Sprintf("%d bars at %s, need %d", len(truncated.Price), at.Format(time.RFC3339), minBars)
			continue
		}
		tfa, err := pit.mtf.AnalyzeTimeframe(truncated)
		if err != nil {
			failures[tf] = err.Error()
			continue
		}
		results[tf] = tfa
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: no timeframe retained enough bars at %s", processor.ErrInsufficientData, at.Format(time.RFC3339))
	}

	primary := pit.primaryKey(results)
	primaryAnalysis := results[primary]
	pd := primaryAnalysis.Processed

	result := &PointInTimeResult{
		Ticker:          ticker,
		Timestamp:       pd.Timestamps[pd.LastIndex()],
		Signals:         results,
		PatternSummary:  patternSummary(primaryAnalysis.Patterns),
		RiskReward:      pit.computeRiskReward(primaryAnalysis),
		Volatility:      computeVolatility(pd, 20),
		ConfidenceScore: confidenceScore(results),
		Failures:        failures,
	}
	pit.logger.Info("point-in-time analysis complete",
		"ticker", ticker, "timestamp", result.Timestamp, "confidence", result.ConfidenceScore)
	return result, nil
}

// primaryKey picks the configured primary timeframe if analyzed, otherwise
// the first analyzed key in sorted order
func (pit *PointInTimeAnalyzer) primaryKey(results map[string]signals.TimeframeAnalysis) string {
	primary := pit.params.PrimaryTimeframe().Key()
	if _, ok := results[primary]; ok {
		return primary
	}
	keys := make([]string, 0, len(results))
	for k := range results {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys[0]
}

// computeRiskReward derives levels from the primary timeframe's bias and its
// support/resistance snapshot
func (pit *PointInTimeAnalyzer) computeRiskReward(tfa signals.TimeframeAnalysis) RiskReward {
	pd := tfa.Processed
	currentPrice := pd.Close[pd.LastIndex()]
	sr := tfa.SupportResistance

	stopLoss := currentPrice
	takeProfit := currentPrice

	switch tfa.Candle.Bias() {
	case analysis.BiasBullish:
		stopLoss = currentPrice * 0.95
		if level, ok := nearestLevelBelow(sr.Support, currentPrice); ok {
			stopLoss = level
		}
		takeProfit = currentPrice * 1.10
		if level, ok := nearestLevelAbove(sr.Resistance, currentPrice); ok {
			takeProfit = level
		}
	case analysis.BiasBearish:
		stopLoss = currentPrice * 1.05
		if level, ok := nearestLevelAbove(sr.Resistance, currentPrice); ok {
			stopLoss = level
		}
		takeProfit = currentPrice * 0.90
		if level, ok := nearestLevelBelow(sr.Support, currentPrice); ok {
			takeProfit = level
		}
	}

	risk := absDiff(currentPrice, stopLoss)
	reward := absDiff(takeProfit, currentPrice)
	ratio := 0.0
	if risk > 0 {
		ratio = reward / risk
	}
	return RiskReward{
		CurrentPrice:    currentPrice,
		StopLoss:        stopLoss,
		TakeProfit:      takeProfit,
		Risk:            risk,
		Reward:          reward,
		RiskRewardRatio: ratio,
	}
}

// computeVolatility averages the true range over the trailing lookback
func computeVolatility(pd *processor.ProcessedData, lookback int) Volatility {
	start := pd.Len() - lookback
	if start < 1 {
		start = 1
	}
	var sum float64
	count := 0
	for i := start; i < pd.Len(); i++ {
		tr := pd.High[i] - pd.Low[i]
		prevClose := pd.Close[i-1]
		if d := absDiff(pd.High[i], prevClose); d > tr {
			tr = d
		}
		if d := absDiff(pd.Low[i], prevClose); d > tr {
			tr = d
		}
		sum += tr
		count++
	}
	if count == 0 {
		return Volatility{}
	}
	atr := sum / float64(count)
	currentPrice := pd.Close[pd.LastIndex()]
	pct := 0.0
	if currentPrice > 0 {
		pct = atr / currentPrice * 100
	}
	return Volatility{ATR: atr, VolatilityPercent: pct}
}

// confidenceScore scores the cross-timeframe agreement on a 0-100 scale,
// 50 being neutral
func confidenceScore(results map[string]signals.TimeframeAnalysis) float64 {
	bullish, bearish, neutral := 0, 0, 0
	count := func(b analysis.Bias) {
		switch b {
		case analysis.BiasBullish:
			bullish++
		case analysis.BiasBearish:
			bearish++
		default:
			neutral++
		}
	}

	for _, tfa := range results {
		count(tfa.Candle.Bias())
		count(tfa.Trend.Bias)

		if tfa.Patterns.BuyingClimax.Detected {
			bearish += 2
		}
		if tfa.Patterns.SellingClimax.Detected {
			bullish += 2
		}
		if tfa.Patterns.Accumulation.Detected {
			bullish++
		}
		if tfa.Patterns.Distribution.Detected {
			bearish++
		}
	}

	score := 50.0
	total := bullish + bearish + neutral
	if total > 0 {
		score += float64(bullish) / float64(total) * 25
		score -= float64(bearish) / float64(total) * 25
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// patternSummary lists the detected patterns on the primary timeframe
func patternSummary(set patterns.Set) string {
	names := set.DetectedNames()
	if len(names) == 0 {
		return "No significant patterns detected"
	}
	return strings.Join(names, ", ")
}

// truncateAt drops every bar after the target timestamp
func truncateAt(data marketdata.TimeframeData, at time.Time) marketdata.TimeframeData {
	out := marketdata.TimeframeData{Timeframe: data.Timeframe}
	for _, bar := range data.Price {
		if !bar.Timestamp.After(at) {
			out.Price = append(out.Price, bar)
		}
	}
	for _, v := range data.Volume {
		if !v.Timestamp.After(at) {
			out.Volume = append(out.Volume, v)
		}
	}
	return out
}

func nearestLevelBelow(levels []analysis.Level, limit float64) (float64, bool) {
	best, found := 0.0, false
	for _, l := range levels {
		if l.Price < limit && (!found || l.Price > best) {
			best, found = l.Price, true
		}
	}
	return best, found
}

func nearestLevelAbove(levels []analysis.Level, limit float64) (float64, bool) {
	best, found := 0.0, false
	for _, l := range levels {
		if l.Price > limit && (!found || l.Price < best) {
			best, found = l.Price, true
		}
	}
	return best, found
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
