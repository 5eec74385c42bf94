package contracts

import "time"

// Step identifies one pipeline stage for a (symbol, date) run.
//
// 파이프라인 흐름:
//
//	Features → Signal → Simulation
type Step string

const (
	StepFeatures   Step = "features"
	StepSignal     Step = "signal"
	StepSimulation Step = "simulation"
)

// StepResult is the outcome of one pipeline stage.
type StepResult struct {
	Completed bool   `json:"completed"`
	Skipped   bool   `json:"skipped,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// RunResult is the outcome of one (symbol, date) pipeline run. A failed stage
// leaves already-completed side effects in place; re-running is idempotent.
type RunResult struct {
	Symbol    string              `json:"symbol"`
	Date      time.Time           `json:"date"`
	Success   bool                `json:"success"`
	NotReady  bool                `json:"not_ready,omitempty"`
	Steps     map[Step]StepResult `json:"steps"`
	Signal    *Signal             `json:"signal,omitempty"`
	Portfolio *PortfolioState     `json:"portfolio_snapshot,omitempty"`
	Errors    []string            `json:"errors,omitempty"`
}

// BatchResult aggregates per-symbol results for one date.
type BatchResult struct {
	Date      time.Time             `json:"date"`
	Results   map[string]*RunResult `json:"results"`
	Succeeded int                   `json:"succeeded"`
	Failed    int                   `json:"failed"`
	NotReady  int                   `json:"not_ready"`
}

// DailyPoint is one day of a report's NAV series.
type DailyPoint struct {
	Date     time.Time `json:"date"`
	NAV      float64   `json:"nav"`
	DailyPnL float64   `json:"daily_pnl"`
	Drawdown float64   `json:"drawdown"`
}

// Report is the multi-day performance summary for a strategy.
type Report struct {
	StrategyID       string             `json:"strategy_id"`
	StartDate        time.Time          `json:"start_date"`
	EndDate          time.Time          `json:"end_date"`
	TradingDays      int                `json:"trading_days"`
	TotalReturn      float64            `json:"total_return"`
	AnnualizedReturn float64            `json:"annualized_return"`
	SharpeRatio      float64            `json:"sharpe_ratio"`
	MaxDrawdown      float64            `json:"max_drawdown"`
	TotalTrades      int                `json:"total_trades"`
	SignalCounts     map[SignalType]int `json:"signal_counts"`
	Daily            []DailyPoint       `json:"daily_series"`
}
