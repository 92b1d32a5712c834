package signals

import (
	"math"

	"marketflow/internal/analysis"
	"marketflow/internal/logging"
	"marketflow/internal/params"
)

// RiskAssessor derives stop-loss, take-profit, risk/reward and position size
// from a signal, the current price and the primary timeframe's levels
type RiskAssessor struct {
	params *params.Parameters
	logger *logging.Logger
}

// NewRiskAssessor creates a risk assessor
func NewRiskAssessor(p *params.Parameters, logger *logging.Logger) *RiskAssessor {
	if logger == nil {
		logger = logging.Default()
	}
	return &RiskAssessor{params: p, logger: logger.WithComponent("risk_assessor")}
}

// Assess computes the risk assessment for an actionable signal. It returns
// nil for NO_ACTION signals.
func (ra *RiskAssessor) Assess(sig Signal, currentPrice float64, sr analysis.SupportResistance) *RiskAssessment {
	if sig.Type == analysis.SignalNoAction || currentPrice <= 0 {
		return nil
	}

	stopLoss := ra.stopLoss(sig.Type, currentPrice, sr)
	takeProfit := ra.takeProfit(sig.Type, currentPrice, sr)

	riskPerShare := math.Abs(currentPrice - stopLoss)

	var riskReward float64
	if riskPerShare > 0 {
		riskReward = math.Abs(takeProfit-currentPrice) / riskPerShare
	}

	positionSize := 0.0
	if riskPerShare > 0 {
		equity := ra.params.Account.AccountEquity
		positionSize = math.Floor(equity * ra.params.Risk.DefaultRiskPercent / riskPerShare)
	}
	if positionSize < 0 {
		positionSize = 0
	}

	assessment := &RiskAssessment{
		StopLoss:        stopLoss,
		TakeProfit:      takeProfit,
		RiskRewardRatio: riskReward,
		PositionSize:    positionSize,
		RiskPerShare:    riskPerShare,
	}
	ra.logger.Debug("risk assessed",
		"signal", string(sig.Type), "stop_loss", stopLoss,
		"take_profit", takeProfit, "risk_reward", riskReward)
	return assessment
}

// stopLoss places the stop beyond the nearest level against the trade, with
// a percentage fallback when no suitable level exists
func (ra *RiskAssessor) stopLoss(sigType analysis.SignalType, currentPrice float64, sr analysis.SupportResistance) float64 {
	r := ra.params.Risk

	if sigType == analysis.SignalBuy {
		if level, ok := nearestBelow(sr.Support, currentPrice); ok {
			return level * (1 - r.SupportResistanceBuffer)
		}
		return currentPrice * (1 - r.DefaultStopLossPercent)
	}
	if level, ok := nearestAbove(sr.Resistance, currentPrice); ok {
		return level * (1 + r.SupportResistanceBuffer)
	}
	return currentPrice * (1 + r.DefaultStopLossPercent)
}

// takeProfit targets just inside the nearest level in the trade's favor,
// falling back to the default stop distance scaled by the risk/reward ratio
func (ra *RiskAssessor) takeProfit(sigType analysis.SignalType, currentPrice float64, sr analysis.SupportResistance) float64 {
	r := ra.params.Risk

	if sigType == analysis.SignalBuy {
		if level, ok := nearestAbove(sr.Resistance, currentPrice); ok {
			return level * (1 - r.SupportResistanceBuffer)
		}
		return currentPrice * (1 + r.DefaultStopLossPercent*r.DefaultRiskReward)
	}
	if level, ok := nearestBelow(sr.Support, currentPrice); ok {
		return level * (1 + r.SupportResistanceBuffer)
	}
	return currentPrice * (1 - r.DefaultStopLossPercent*r.DefaultRiskReward)
}

// nearestBelow returns the highest level price strictly below limit
func nearestBelow(levels []analysis.Level, limit float64) (float64, bool) {
	best := 0.0
	found := false
	for _, l := range levels {
		if l.Price < limit && (!found || l.Price > best) {
			best = l.Price
			found = true
		}
	}
	return best, found
}

// nearestAbove returns the lowest level price strictly above limit
func nearestAbove(levels []analysis.Level, limit float64) (float64, bool) {
	best := 0.0
	found := false
	for _, l := range levels {
		if l.Price > limit && (!found || l.Price < best) {
			best = l.Price
			found = true
		}
	}
	return best, found
}
