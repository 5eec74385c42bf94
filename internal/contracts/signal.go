package contracts

import "time"

// SignalType is the direction a strategy wants to be positioned.
type SignalType string

const (
	SignalLong  SignalType = "LONG"
	SignalShort SignalType = "SHORT"
	SignalFlat  SignalType = "FLAT"
)

// Signal is one strategy decision for a (strategy_id, symbol, date).
// ⭐ SSOT: 전략 평가 결과 전달은 이 레코드로만
// The explanation carries every gate/rule evaluated so the decision can be
// reconstructed without recomputation.
type Signal struct {
	StrategyID     string     `json:"strategy_id"`
	Symbol         string     `json:"symbol"`
	Date           time.Time  `json:"date"`
	Type           SignalType `json:"signal"`
	TargetExposure float64    `json:"target_exposure_fraction"`

	// Momentum20 is the 20-day momentum used for direction, stored as a
	// first-class field so the reversal-exit control reads typed history
	// instead of digging through the explanation payload.
	Momentum20 *float64 `json:"momentum_20,omitempty"`

	Explanation SignalExplanation `json:"explanation"`
}

// IsFlat reports whether the signal carries no exposure.
func (s *Signal) IsFlat() bool {
	return s.Type == SignalFlat || s.TargetExposure == 0
}

// DirectionSign returns +1 for LONG, -1 for SHORT, 0 for FLAT.
func (s *Signal) DirectionSign() float64 {
	switch s.Type {
	case SignalLong:
		return 1
	case SignalShort:
		return -1
	default:
		return 0
	}
}

// SignalExplanation is the structured audit trail of one evaluation.
type SignalExplanation struct {
	Regime       RegimeCheck      `json:"regime"`
	Direction    DirectionCheck   `json:"direction"`
	Sizing       SizingCheck      `json:"sizing"`
	RiskControls RiskControlState `json:"risk_controls"`
}

// RegimeRule records one regime gate rule with its inputs and outcome.
type RegimeRule struct {
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Passed    bool    `json:"passed"`
}

// RegimeCheck is the regime-gate portion of an explanation.
type RegimeCheck struct {
	On    bool         `json:"on"`
	Rules []RegimeRule `json:"rules"`
}

// DirectionCheck records the inputs behind the direction decision.
type DirectionCheck struct {
	Momentum20         *float64   `json:"momentum_20,omitempty"`
	Sentiment          int        `json:"sentiment"` // +1 bullish, 0 neutral, -1 bearish
	CallPutVolumeRatio *float64   `json:"call_put_volume_ratio,omitempty"`
	CallPutOIRatio     *float64   `json:"call_put_oi_ratio,omitempty"`
	Direction          SignalType `json:"direction"`
}

// SizingCheck records the volatility-scaled sizing inputs. Zeroed when the
// final signal is FLAT.
type SizingCheck struct {
	RV60           float64 `json:"rv60"`
	Scale          float64 `json:"scale"`
	BaseExposure   float64 `json:"base_exposure"`
	TargetExposure float64 `json:"target_exposure"`
}

// CooldownState is the snapshot of one cooldown-style risk control.
type CooldownState struct {
	Active        bool   `json:"active"`
	DaysRemaining int    `json:"days_remaining"`
	Reason        string `json:"reason,omitempty"`
}

// ReversalState is the snapshot of the momentum-reversal exit control.
type ReversalState struct {
	Active              bool       `json:"active"`
	HeldDirection       SignalType `json:"held_direction"`
	ConsecutiveOpposite int        `json:"consecutive_opposite"`
}

// RiskControlState bundles every risk control evaluated for one date.
// Any active control forces the signal FLAT regardless of direction.
type RiskControlState struct {
	DailyLossCooldown CooldownState `json:"daily_loss_cooldown"`
	DrawdownCooldown  CooldownState `json:"drawdown_cooldown"`
	ReversalExit      ReversalState `json:"reversal_exit"`
}

// AnyActive reports whether any risk control forces a flat signal.
func (r *RiskControlState) AnyActive() bool {
	return r.DailyLossCooldown.Active || r.DrawdownCooldown.Active || r.ReversalExit.Active
}

// RegimeState is the denormalized regime portion of a signal explanation,
// kept as its own keyed record for fast explainability lookups.
type RegimeState struct {
	StrategyID string       `json:"strategy_id"`
	Symbol     string       `json:"symbol"`
	Date       time.Time    `json:"date"`
	RegimeOn   bool         `json:"regime_on"`
	Rules      []RegimeRule `json:"rules"`
}
