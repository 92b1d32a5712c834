// Package engine orchestrates the full MarketFlow pipeline: multi-timeframe
// analysis, the facade entry point and point-in-time reconstruction.
package engine

import (
	"context"
	"fmt"

	"marketflow/internal/analysis"
	"marketflow/internal/logging"
	"marketflow/internal/marketdata"
	"marketflow/internal/params"
	"marketflow/internal/patterns"
	"marketflow/internal/processor"
	"marketflow/internal/signals"
	"marketflow/internal/wyckoff"
)

// MultiTimeframeAnalyzer runs the per-timeframe analyzers over every fetched
// timeframe and computes the cross-timeframe confirmations
type MultiTimeframeAnalyzer struct {
	params    *params.Parameters
	logger    *logging.Logger
	processor *processor.Processor
	candle    *analysis.CandleAnalyzer
	trend     *analysis.TrendAnalyzer
	sr        *analysis.SupportResistanceAnalyzer
	patterns  *patterns.Recognizer
	generator *signals.Generator
}

// NewMultiTimeframeAnalyzer wires the per-timeframe analyzers
func NewMultiTimeframeAnalyzer(p *params.Parameters, logger *logging.Logger) *MultiTimeframeAnalyzer {
	if logger == nil {
		logger = logging.Default()
	}
	return &MultiTimeframeAnalyzer{
		params:    p,
		logger:    logger.WithComponent("multi_timeframe_analyzer"),
		processor: processor.New(p, logger),
		candle:    analysis.NewCandleAnalyzer(p, logger),
		trend:     analysis.NewTrendAnalyzer(p, logger),
		sr:        analysis.NewSupportResistanceAnalyzer(p, logger),
		patterns:  patterns.New(p, logger),
		generator: signals.NewGenerator(p, logger),
	}
}

// Analyze processes every timeframe in order. A failure in one timeframe is
// recorded and does not invalidate the others; cancellation is honored
// between timeframes.
func (m *MultiTimeframeAnalyzer) Analyze(ctx context.Context, data map[string]marketdata.TimeframeData, order []string) (map[string]signals.TimeframeAnalysis, map[string]string, error) {
	analyses := make(map[string]signals.TimeframeAnalysis, len(data))
	failures := make(map[string]string)

	for _, tf := range order {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		tfData, ok := data[tf]
		if !ok {
			continue
		}

		result, err := m.AnalyzeTimeframe(tfData)
		if err != nil {
			m.logger.Warn("timeframe analysis failed", "timeframe", tf, "error", err)
			failures[tf] = err.Error()
			continue
		}
		analyses[tf] = result
	}
	return analyses, failures, nil
}

// AnalyzeTimeframe runs the full per-timeframe pipeline on one raw series
func (m *MultiTimeframeAnalyzer) AnalyzeTimeframe(data marketdata.TimeframeData) (signals.TimeframeAnalysis, error) {
	pd, err := m.processor.Preprocess(data.Price, data.Volume)
	if err != nil {
		return signals.TimeframeAnalysis{}, fmt.Errorf("preprocess %s: %w", data.Timeframe.Key(), err)
	}
	return m.AnalyzeProcessed(pd)
}

// AnalyzeProcessed runs the analyzers over an already-processed bundle
func (m *MultiTimeframeAnalyzer) AnalyzeProcessed(pd *processor.ProcessedData) (signals.TimeframeAnalysis, error) {
	last := pd.LastIndex()

	candleResult, err := m.candle.AnalyzeBar(last, pd)
	if err != nil {
		return signals.TimeframeAnalysis{}, err
	}
	trendResult, err := m.trend.AnalyzeTrend(pd, last, 0)
	if err != nil {
		return signals.TimeframeAnalysis{}, err
	}
	patternSet, err := m.patterns.Identify(pd, last)
	if err != nil {
		return signals.TimeframeAnalysis{}, err
	}
	srResult := m.sr.Analyze(pd)

	return signals.TimeframeAnalysis{
		Candle:            candleResult,
		Trend:             trendResult,
		Patterns:          patternSet,
		SupportResistance: srResult,
		Processed:         pd,
	}, nil
}

// Confirm computes cross-timeframe confirmations for the analyzed set
func (m *MultiTimeframeAnalyzer) Confirm(analyses map[string]signals.TimeframeAnalysis) signals.Confirmations {
	return m.generator.Confirm(analyses)
}

// RunWyckoff attaches a Wyckoff result set to one timeframe's analysis. The
// Wyckoff analyzer never fails on "no pattern"; it shares the processor's
// minimum-length gate, so a series that passed Preprocess cannot fail here —
// an error indicates a bug and must not be swallowed.
func (m *MultiTimeframeAnalyzer) RunWyckoff(tfa *signals.TimeframeAnalysis) error {
	wa := wyckoff.New(tfa.Processed, m.params, m.logger)
	result, err := wa.Run()
	if err != nil {
		return fmt.Errorf("wyckoff analysis: %w", err)
	}
	tfa.Wyckoff = result
	return nil
}
