package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"marketflow/internal/analysis"
	"marketflow/internal/events"
	"marketflow/internal/logging"
	"marketflow/internal/marketdata"
	"marketflow/internal/params"
	"marketflow/internal/signals"
	"marketflow/internal/wyckoff"
)

// ErrInternalInvariant flags a state that should be unreachable; it
// indicates a bug and is fatal for the run
var ErrInternalInvariant = errors.New("internal invariant violation")

// AnalysisResult is the complete output of one analysis run for one ticker
type AnalysisResult struct {
	RunID             string                               `json:"run_id"`
	Ticker            string                               `json:"ticker"`
	GeneratedAt       time.Time                            `json:"generated_at"`
	CurrentPrice      float64                              `json:"current_price"`
	TimeframeAnalyses map[string]signals.TimeframeAnalysis `json:"timeframe_analyses"`
	Confirmations     signals.Confirmations                `json:"confirmations"`
	Signal            signals.Signal                       `json:"signal"`
	RiskAssessment    *signals.RiskAssessment              `json:"risk_assessment,omitempty"`
	Failures          map[string]string                    `json:"failures,omitempty"`

	// Primary-timeframe Wyckoff view; the per-timeframe results live inside
	// each timeframe analysis.
	WyckoffEvents        []wyckoff.DetectedEvent `json:"wyckoff_events,omitempty"`
	WyckoffPhases        []wyckoff.PhaseSpan     `json:"wyckoff_phases,omitempty"`
	WyckoffTradingRanges []wyckoff.TradingRange  `json:"wyckoff_trading_ranges,omitempty"`
}

// SignalSummary is the signal-only view of an analysis result
type SignalSummary struct {
	Ticker         string                  `json:"ticker"`
	CurrentPrice   float64                 `json:"current_price"`
	Signal         signals.Signal          `json:"signal"`
	RiskAssessment *signals.RiskAssessment `json:"risk_assessment,omitempty"`
}

// Facade is the sole entry point used by external collaborators. It owns
// every analyzer by composition; analyzers carry no back-references and
// share the read-only parameter set.
type Facade struct {
	params    *params.Parameters
	provider  *marketdata.MultiTimeframeProvider
	mtf       *MultiTimeframeAnalyzer
	generator *signals.Generator
	risk      *signals.RiskAssessor
	pit       *PointInTimeAnalyzer
	bus       *events.EventBus
	logger    *logging.Logger
}

// NewFacade wires the full pipeline. The event bus is optional.
func NewFacade(p *params.Parameters, provider marketdata.Provider, bus *events.EventBus, logger *logging.Logger) *Facade {
	if logger == nil {
		logger = logging.Default()
	}
	return &Facade{
		params:    p,
		provider:  marketdata.NewMultiTimeframeProvider(provider, logger),
		mtf:       NewMultiTimeframeAnalyzer(p, logger),
		generator: signals.NewGenerator(p, logger),
		risk:      signals.NewRiskAssessor(p, logger),
		pit:       NewPointInTimeAnalyzer(p, logger),
		bus:       bus,
		logger:    logger.WithComponent("facade"),
	}
}

// AnalyzeTicker runs the full pipeline for one ticker. Per-timeframe
// failures are isolated; the analysis fails outright only when no timeframe
// succeeds. Cancellation is honored between the fetch, preprocess, analyze
// and synthesize phases.
func (f *Facade) AnalyzeTicker(ctx context.Context, ticker string, timeframes []marketdata.Timeframe) (*AnalysisResult, error) {
	if timeframes == nil {
		timeframes = f.params.Timeframes
	}
	runID := uuid.NewString()
	f.logger.Info("starting analysis", "run_id", runID, "ticker", ticker, "timeframes", len(timeframes))

	data, fetchFailures, err := f.provider.FetchAll(ctx, ticker, timeframes)
	if err != nil {
		f.publishFailed(runID, ticker, err)
		return nil, err
	}
	if len(data) == 0 {
		err := fmt.Errorf("no market data available for %s on any timeframe", ticker)
		f.publishFailed(runID, ticker, err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	order := make([]string, 0, len(timeframes))
	for _, tf := range timeframes {
		order = append(order, tf.Key())
	}

	analyses, failures, err := f.mtf.Analyze(ctx, data, order)
	if err != nil {
		f.publishFailed(runID, ticker, err)
		return nil, err
	}
	for tf, reason := range fetchFailures {
		failures[tf] = reason
	}
	for tf, reason := range failures {
		if f.bus != nil {
			f.bus.PublishTimeframeSkipped(ticker, tf, fmt.Errorf("%s", reason))
		}
	}
	if len(analyses) == 0 {
		err := fmt.Errorf("all timeframes failed for %s: %s", ticker, joinFailures(failures))
		f.publishFailed(runID, ticker, err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	confirmations := f.mtf.Confirm(analyses)
	signal := f.generator.Generate(analyses, confirmations)

	currentPrice, sr, ok := f.primarySnapshot(order, analyses)
	if !ok {
		// Analyses were produced for timeframes outside the requested set.
		err := fmt.Errorf("%w: no analyzed timeframe matches the requested order", ErrInternalInvariant)
		f.logger.Error("primary snapshot unavailable", "run_id", runID, "error", err)
		f.publishFailed(runID, ticker, err)
		return nil, err
	}
	if currentPrice <= 0 && signal.Type != analysis.SignalNoAction {
		// Without a price there is nothing to manage a trade against.
		signal.Type = analysis.SignalNoAction
		signal.Strength = analysis.StrengthNeutral
		signal.Details += " (current price unavailable, downgraded to no action)"
	}

	var riskAssessment *signals.RiskAssessment
	if signal.Type != analysis.SignalNoAction {
		riskAssessment = f.risk.Assess(signal, currentPrice, sr)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Wyckoff runs per timeframe on the already-processed bundles. Preprocess
	// applies the same minimum-length gate, so a failure here is a bug, not a
	// data problem; surface it rather than emit a partial result.
	for tf, tfa := range analyses {
		if err := f.mtf.RunWyckoff(&tfa); err != nil {
			err = fmt.Errorf("%w: timeframe %s passed preprocessing but failed wyckoff: %v", ErrInternalInvariant, tf, err)
			f.logger.Error("wyckoff analysis failed", "run_id", runID, "timeframe", tf, "error", err)
			f.publishFailed(runID, ticker, err)
			return nil, err
		}
		analyses[tf] = tfa
	}
	var wyckoffEvents []wyckoff.DetectedEvent
	var wyckoffPhases []wyckoff.PhaseSpan
	var wyckoffRanges []wyckoff.TradingRange
	for _, tf := range order {
		if tfa, ok := analyses[tf]; ok && tfa.Wyckoff != nil {
			wyckoffEvents = tfa.Wyckoff.Events
			wyckoffPhases = tfa.Wyckoff.Phases
			wyckoffRanges = tfa.Wyckoff.TradingRanges
			break
		}
	}

	result := &AnalysisResult{
		RunID:             runID,
		Ticker:            ticker,
		GeneratedAt:       time.Now().UTC(),
		CurrentPrice:      currentPrice,
		TimeframeAnalyses: analyses,
		Confirmations:     confirmations,
		Signal:            signal,
		RiskAssessment:    riskAssessment,
		Failures:          failures,

		WyckoffEvents:        wyckoffEvents,
		WyckoffPhases:        wyckoffPhases,
		WyckoffTradingRanges: wyckoffRanges,
	}

	if f.bus != nil {
		f.bus.PublishAnalysisCompleted(runID, ticker, string(signal.Type), string(signal.Strength), currentPrice)
	}
	f.logger.Info("analysis complete",
		"run_id", runID, "ticker", ticker,
		"signal", string(signal.Type), "strength", string(signal.Strength))
	return result, nil
}

// GetSignals returns the signal-only view for one ticker
func (f *Facade) GetSignals(ctx context.Context, ticker string, timeframes []marketdata.Timeframe) (*SignalSummary, error) {
	result, err := f.AnalyzeTicker(ctx, ticker, timeframes)
	if err != nil {
		return nil, err
	}
	return &SignalSummary{
		Ticker:         result.Ticker,
		CurrentPrice:   result.CurrentPrice,
		Signal:         result.Signal,
		RiskAssessment: result.RiskAssessment,
	}, nil
}

// BatchAnalyze analyzes several tickers; a failure in one ticker never
// prevents the others
func (f *Facade) BatchAnalyze(ctx context.Context, tickers []string, timeframes []marketdata.Timeframe) (map[string]*SignalSummary, map[string]error) {
	results := make(map[string]*SignalSummary, len(tickers))
	errs := make(map[string]error)
	for _, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			errs[ticker] = err
			continue
		}
		summary, err := f.GetSignals(ctx, ticker, timeframes)
		if err != nil {
			errs[ticker] = err
			continue
		}
		results[ticker] = summary
	}
	return results, errs
}

// ScanForSignals filters batch results by signal type and strength. Empty
// filter values match everything.
func (f *Facade) ScanForSignals(ctx context.Context, tickers []string, sigType analysis.SignalType, strength analysis.SignalStrength, timeframes []marketdata.Timeframe) (map[string]*SignalSummary, error) {
	all, errs := f.BatchAnalyze(ctx, tickers, timeframes)
	for ticker, err := range errs {
		f.logger.Warn("scan skipping ticker", "ticker", ticker, "error", err)
	}

	filtered := make(map[string]*SignalSummary)
	for ticker, summary := range all {
		if sigType != "" && summary.Signal.Type != sigType {
			continue
		}
		if strength != "" && summary.Signal.Strength != strength {
			continue
		}
		filtered[ticker] = summary
	}
	return filtered, nil
}

// ExplainSignal renders a plain-text explanation of a ticker's signal from
// its evidence
func (f *Facade) ExplainSignal(ctx context.Context, ticker string, timeframes []marketdata.Timeframe) (string, error) {
	result, err := f.AnalyzeTicker(ctx, ticker, timeframes)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "MarketFlow analysis for %s:\n\n", ticker)
	fmt.Fprintf(&b, "Signal: %s (%s)\n", result.Signal.Type, result.Signal.Strength)
	fmt.Fprintf(&b, "Details: %s\n\n", result.Signal.Details)

	b.WriteString("Supporting evidence:\n")
	for _, tf := range sortedEvidenceKeys(result.Signal.Evidence.Timeframes) {
		tfe := result.Signal.Evidence.Timeframes[tf]
		fmt.Fprintf(&b, "  %s: trend %s, volume %s", tf, tfe.TrendDirection, tfe.VolumeClass)
		if len(tfe.Patterns) > 0 {
			fmt.Fprintf(&b, ", patterns: %s", strings.Join(tfe.Patterns, ", "))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nCurrent price: %.2f\n", result.CurrentPrice)
	if ra := result.RiskAssessment; ra != nil {
		fmt.Fprintf(&b, "Stop loss: %.2f\n", ra.StopLoss)
		fmt.Fprintf(&b, "Take profit: %.2f\n", ra.TakeProfit)
		fmt.Fprintf(&b, "Risk/reward ratio: %.2f\n", ra.RiskRewardRatio)
		fmt.Fprintf(&b, "Position size: %.0f shares\n", ra.PositionSize)
	}
	return b.String(), nil
}

// AnalyzeAtPoint reconstructs the analysis as it would have looked at a
// historical timestamp
func (f *Facade) AnalyzeAtPoint(ctx context.Context, ticker string, data map[string]marketdata.TimeframeData, at time.Time) (*PointInTimeResult, error) {
	return f.pit.Analyze(ctx, ticker, data, at)
}

// primarySnapshot reads the current price and support/resistance from the
// first timeframe that produced an analysis, in configured order
func (f *Facade) primarySnapshot(order []string, analyses map[string]signals.TimeframeAnalysis) (float64, analysis.SupportResistance, bool) {
	for _, tf := range order {
		if tfa, ok := analyses[tf]; ok {
			pd := tfa.Processed
			return pd.Close[pd.LastIndex()], tfa.SupportResistance, true
		}
	}
	return 0, analysis.SupportResistance{}, false
}

func (f *Facade) publishFailed(runID, ticker string, err error) {
	if f.bus != nil {
		f.bus.PublishAnalysisFailed(runID, ticker, err)
	}
}

func joinFailures(failures map[string]string) string {
	parts := make([]string, 0, len(failures))
	for tf, reason := range failures {
		parts = append(parts, tf+": "+reason)
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

func sortedEvidenceKeys(m map[string]signals.TimeframeEvidence) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
