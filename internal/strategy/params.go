package strategy

import "github.com/voltlab/regimeflow/internal/contracts"

// Params is the full parameter document for the volatility-regime strategy.
// 전략 파라미터의 SSOT — 모든 임계값은 여기서만 정의
type Params struct {
	Meta      Meta      `yaml:"meta" json:"meta"`
	Regime    Regime    `yaml:"regime" json:"regime"`
	Direction Direction `yaml:"direction" json:"direction"`
	Risk      Risk      `yaml:"risk" json:"risk"`
	Sizing    Sizing    `yaml:"sizing" json:"sizing"`
	Execution Execution `yaml:"execution" json:"execution"`
}

// Meta identifies the strategy row.
type Meta struct {
	StrategyID string `yaml:"strategy_id" json:"strategy_id"`
	Name       string `yaml:"name" json:"name"`
	Version    string `yaml:"version" json:"version"`
}

// Regime holds the percentile thresholds of the regime gate.
type Regime struct {
	RV20PercentileMin  float64 `yaml:"rv20_percentile_min" json:"rv20_percentile_min"`
	ATR14PercentileMin float64 `yaml:"atr14_percentile_min" json:"atr14_percentile_min"`
	IVPercentileMin    float64 `yaml:"iv_percentile_min" json:"iv_percentile_min"`
}

// Direction holds the options-sentiment thresholds. A +1 sentiment needs both
// call/put ratios above BullishRatioMin, a -1 both below BearishRatioMax.
type Direction struct {
	BullishRatioMin float64 `yaml:"bullish_ratio_min" json:"bullish_ratio_min"`
	BearishRatioMax float64 `yaml:"bearish_ratio_max" json:"bearish_ratio_max"`
}

// Risk holds the stateful risk-control parameters.
type Risk struct {
	// DailyLossStopPct triggers the daily-loss cooldown when
	// daily_pnl <= DailyLossStopPct * nav (so the value is negative).
	DailyLossStopPct      float64 `yaml:"daily_loss_stop_pct" json:"daily_loss_stop_pct"`
	DailyLossCooldownDays int     `yaml:"daily_loss_cooldown_days" json:"daily_loss_cooldown_days"`
	MaxDrawdownStopPct    float64 `yaml:"max_drawdown_stop_pct" json:"max_drawdown_stop_pct"`
	DrawdownCooldownDays  int     `yaml:"drawdown_cooldown_days" json:"drawdown_cooldown_days"`
	ReversalExitDays      int     `yaml:"reversal_exit_days" json:"reversal_exit_days"`
	// LookbackDays bounds how much portfolio/signal history the controls read.
	LookbackDays int `yaml:"lookback_days" json:"lookback_days"`
}

// Sizing holds the volatility-scaled position sizing inputs.
type Sizing struct {
	BaseExposure float64 `yaml:"base_exposure" json:"base_exposure"`
	RV60Target   float64 `yaml:"rv60_target" json:"rv60_target"`
}

// Execution holds simulation execution settings.
type Execution struct {
	Timing          contracts.TradeTiming `yaml:"timing" json:"timing"`
	StartingCapital float64               `yaml:"starting_capital" json:"starting_capital"`
}

// DefaultParams returns the production defaults for the volatility-regime
// strategy (vol_regime_v1).
func DefaultParams() Params {
	return Params{
		Meta: Meta{
			StrategyID: "vol_regime_v1",
			Name:       "Volatility Regime",
			Version:    "1.0.0",
		},
		Regime: Regime{
			RV20PercentileMin:  0.60,
			ATR14PercentileMin: 0.60,
			IVPercentileMin:    0.60,
		},
		Direction: Direction{
			BullishRatioMin: 1.20,
			BearishRatioMax: 0.80,
		},
		Risk: Risk{
			DailyLossStopPct:      -0.015,
			DailyLossCooldownDays: 3,
			MaxDrawdownStopPct:    0.08,
			DrawdownCooldownDays:  10,
			ReversalExitDays:      3,
			LookbackDays:          20,
		},
		Sizing: Sizing{
			BaseExposure: 0.30,
			RV60Target:   0.20,
		},
		Execution: Execution{
			Timing:          contracts.TimingClose,
			StartingCapital: 100_000,
		},
	}
}
