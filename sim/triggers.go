package sim

import (
	"github.com/rustyeddy/papertrade/position"
	"github.com/rustyeddy/papertrade/pricing"
)

// Reason explains why the engine closed a position on its own.
type Reason string

const (
	ReasonProfitSecured Reason = "profit secured under volatility"
	ReasonRiskMitigated Reason = "risk mitigated under extreme volatility"
	ReasonTargetReached Reason = "target price reached"
	ReasonStopLoss      Reason = "stop-loss triggered"
)

// Thresholds for the volatility-driven exit.
const (
	VolatileAbove        = 0.35
	ExtremeVolatileAbove = 0.45
	VolatilityExitOdds   = 0.1 // chance per tick is volatility * VolatilityExitOdds
	SecureProfitAbove    = 0.01
	MitigateLossAbove    = -0.05
)

// Decision is the evaluator's verdict for one position.
type Decision struct {
	Exit   bool
	Reason Reason
}

// Evaluate decides whether p should be closed at its current price. Manual
// positions never exit. For autopilot the rules run in priority order and
// the first match wins. src is drawn from at most once, and only when the
// volatility rule applies.
func Evaluate(p position.Position, src pricing.Source) Decision {
	if p.Mode != position.Autopilot {
		return Decision{}
	}

	if d, ok := volatilityExit(p, src); ok {
		return d
	}
	if hitTarget(p) {
		return Decision{Exit: true, Reason: ReasonTargetReached}
	}
	if hitStopLoss(p) {
		return Decision{Exit: true, Reason: ReasonStopLoss}
	}
	return Decision{}
}

func volatilityExit(p position.Position, src pricing.Source) (Decision, bool) {
	v := p.VolatilityFactor
	if !(v > VolatileAbove) {
		return Decision{}, false
	}
	if !(src.Float64() < v*VolatilityExitOdds) {
		return Decision{}, false
	}

	ret := p.Return()
	switch {
	case ret > SecureProfitAbove:
		return Decision{Exit: true, Reason: ReasonProfitSecured}, true
	case v > ExtremeVolatileAbove && ret > MitigateLossAbove:
		return Decision{Exit: true, Reason: ReasonRiskMitigated}, true
	}
	return Decision{}, false
}

func hitTarget(p position.Position) bool {
	if p.TargetPrice == nil {
		return false
	}
	return p.CurrentPrice >= *p.TargetPrice
}

func hitStopLoss(p position.Position) bool {
	if p.StopLossPrice == nil {
		return false
	}
	return p.CurrentPrice <= *p.StopLossPrice
}
