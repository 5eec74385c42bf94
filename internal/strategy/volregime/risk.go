package volregime

import (
	"context"
	"fmt"
	"math"

	"github.com/voltlab/regimeflow/internal/contracts"
)

// CheckRiskControls evaluates the three stateful risk controls against the
// most recent portfolio/signal history (bounded by risk.lookback_days).
// Each control can independently force the day's signal FLAT; the full
// snapshot is recorded in the explanation regardless of the outcome.
func (s *Strategy) CheckRiskControls(ctx context.Context, symbol string, in contracts.StrategyInput) contracts.RiskControlState {
	states := in.PriorStates
	if len(states) > s.params.Risk.LookbackDays {
		states = states[:s.params.Risk.LookbackDays]
	}
	signals := in.PriorSignals
	if len(signals) > s.params.Risk.LookbackDays {
		signals = signals[:s.params.Risk.LookbackDays]
	}

	return contracts.RiskControlState{
		DailyLossCooldown: s.dailyLossCooldown(states),
		DrawdownCooldown:  s.drawdownCooldown(states),
		ReversalExit:      s.reversalExit(symbol, states, signals),
	}
}

// dailyLossCooldown activates when any of the last daily_loss_cooldown_days
// days breached daily_pnl <= daily_loss_stop_pct * nav. The cooldown runs for
// the remaining day count from the most recent breach.
func (s *Strategy) dailyLossCooldown(states []*contracts.PortfolioState) contracts.CooldownState {
	days := s.params.Risk.DailyLossCooldownDays
	stop := s.params.Risk.DailyLossStopPct

	for i, st := range states {
		if i >= days {
			break
		}
		if st.DailyPnL <= stop*st.NAV {
			return contracts.CooldownState{
				Active:        true,
				DaysRemaining: days - i,
				Reason: fmt.Sprintf("daily_pnl %.2f <= %.2f%% of nav %.2f on %s",
					st.DailyPnL, stop*100, st.NAV, st.Date.Format("2006-01-02")),
			}
		}
	}
	return contracts.CooldownState{}
}

// drawdownCooldown activates for drawdown_cooldown_days counting from the day
// the drawdown threshold was first crossed within the lookback window.
func (s *Strategy) drawdownCooldown(states []*contracts.PortfolioState) contracts.CooldownState {
	stop := s.params.Risk.MaxDrawdownStopPct
	days := s.params.Risk.DrawdownCooldownDays

	// First crossing = oldest breach inside the window. states are newest
	// first, so scan from the back.
	firstCross := -1
	for i := len(states) - 1; i >= 0; i-- {
		if states[i].Drawdown >= stop {
			firstCross = i
			break
		}
	}
	if firstCross < 0 {
		return contracts.CooldownState{}
	}

	age := firstCross + 1 // days elapsed since the crossing day
	if age > days {
		return contracts.CooldownState{}
	}
	return contracts.CooldownState{
		Active:        true,
		DaysRemaining: days - age,
		Reason: fmt.Sprintf("drawdown %.2f%% >= %.2f%% on %s",
			states[firstCross].Drawdown*100, stop*100, states[firstCross].Date.Format("2006-01-02")),
	}
}

// reversalExit forces an exit when a position is held and the last
// reversal_exit_days signals all showed momentum opposite to the held
// direction. Momentum comes from the typed Momentum20 field of prior
// signals, not from the explanation payload.
func (s *Strategy) reversalExit(symbol string, states []*contracts.PortfolioState, signals []*contracts.Signal) contracts.ReversalState {
	if len(states) == 0 {
		return contracts.ReversalState{HeldDirection: contracts.SignalFlat}
	}
	held := states[0].PositionQty(symbol)
	if math.Abs(held) < contracts.MinTradeQuantity {
		return contracts.ReversalState{HeldDirection: contracts.SignalFlat}
	}

	dir := contracts.SignalLong
	if held < 0 {
		dir = contracts.SignalShort
	}

	consecutive := 0
	for _, sig := range signals {
		if sig.Momentum20 == nil {
			break
		}
		opposite := (dir == contracts.SignalLong && *sig.Momentum20 < 0) ||
			(dir == contracts.SignalShort && *sig.Momentum20 > 0)
		if !opposite {
			break
		}
		consecutive++
	}

	return contracts.ReversalState{
		Active:              consecutive >= s.params.Risk.ReversalExitDays,
		HeldDirection:       dir,
		ConsecutiveOpposite: consecutive,
	}
}
