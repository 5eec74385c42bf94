package strategy

import (
	"fmt"

	"github.com/voltlab/regimeflow/internal/contracts"
)

// Validate checks all required parameter constraints. Any violation is a
// ConfigurationError: construction fails fast, never silently defaults.
func Validate(p *Params) error {
	if p.Meta.StrategyID == "" {
		return &contracts.ConfigurationError{Field: "meta.strategy_id", Message: "required"}
	}
	if p.Meta.Version == "" {
		return &contracts.ConfigurationError{Field: "meta.version", Message: "required"}
	}

	if err := validateUnitRange(p.Regime.RV20PercentileMin, "regime.rv20_percentile_min"); err != nil {
		return err
	}
	if err := validateUnitRange(p.Regime.ATR14PercentileMin, "regime.atr14_percentile_min"); err != nil {
		return err
	}
	if err := validateUnitRange(p.Regime.IVPercentileMin, "regime.iv_percentile_min"); err != nil {
		return err
	}

	if p.Direction.BullishRatioMin <= 0 {
		return &contracts.ConfigurationError{Field: "direction.bullish_ratio_min", Message: "must be > 0"}
	}
	if p.Direction.BearishRatioMax <= 0 {
		return &contracts.ConfigurationError{Field: "direction.bearish_ratio_max", Message: "must be > 0"}
	}
	if p.Direction.BearishRatioMax >= p.Direction.BullishRatioMin {
		return &contracts.ConfigurationError{Field: "direction", Message: "bearish_ratio_max must be < bullish_ratio_min"}
	}

	if p.Risk.DailyLossStopPct >= 0 {
		return &contracts.ConfigurationError{Field: "risk.daily_loss_stop_pct", Message: "must be negative (a loss threshold)"}
	}
	if p.Risk.DailyLossCooldownDays < 1 {
		return &contracts.ConfigurationError{Field: "risk.daily_loss_cooldown_days", Message: "must be >= 1"}
	}
	if p.Risk.MaxDrawdownStopPct <= 0 || p.Risk.MaxDrawdownStopPct >= 1 {
		return &contracts.ConfigurationError{Field: "risk.max_drawdown_stop_pct", Message: "must be in (0, 1)"}
	}
	if p.Risk.DrawdownCooldownDays < 1 {
		return &contracts.ConfigurationError{Field: "risk.drawdown_cooldown_days", Message: "must be >= 1"}
	}
	if p.Risk.ReversalExitDays < 1 {
		return &contracts.ConfigurationError{Field: "risk.reversal_exit_days", Message: "must be >= 1"}
	}
	if p.Risk.LookbackDays < p.Risk.DailyLossCooldownDays ||
		p.Risk.LookbackDays < p.Risk.DrawdownCooldownDays ||
		p.Risk.LookbackDays < p.Risk.ReversalExitDays {
		return &contracts.ConfigurationError{Field: "risk.lookback_days", Message: "must cover every cooldown window"}
	}

	if p.Sizing.BaseExposure <= 0 || p.Sizing.BaseExposure > 1 {
		return &contracts.ConfigurationError{Field: "sizing.base_exposure", Message: "must be in (0, 1]"}
	}
	if p.Sizing.RV60Target <= 0 {
		return &contracts.ConfigurationError{Field: "sizing.rv60_target", Message: "must be > 0"}
	}

	switch p.Execution.Timing {
	case contracts.TimingClose, contracts.TimingNextOpen:
	default:
		return &contracts.ConfigurationError{
			Field:   "execution.timing",
			Message: fmt.Sprintf("must be %q or %q", contracts.TimingClose, contracts.TimingNextOpen),
		}
	}
	if p.Execution.StartingCapital <= 0 {
		return &contracts.ConfigurationError{Field: "execution.starting_capital", Message: "must be > 0"}
	}

	return nil
}

func validateUnitRange(v float64, field string) error {
	if v < 0 || v > 1 {
		return &contracts.ConfigurationError{Field: field, Message: "must be in [0, 1]"}
	}
	return nil
}
