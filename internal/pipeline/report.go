package pipeline

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/voltlab/regimeflow/internal/contracts"
	"github.com/voltlab/regimeflow/internal/features"
)

// Report summarizes the portfolio chain over [from, to]: returns, Sharpe,
// max drawdown, trade and signal counts, plus the daily NAV series.
func (o *Orchestrator) Report(ctx context.Context, from, to time.Time) (*contracts.Report, error) {
	if to.Before(from) {
		return nil, &contracts.ConfigurationError{Field: "date_range", Message: "end date before start date"}
	}

	strategyID := o.strategy.ID()
	states, err := o.portfolios.GetRange(ctx, strategyID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load portfolio range: %w", err)
	}
	if len(states) == 0 {
		return nil, &contracts.MissingDataError{Kind: "portfolio_state", Symbol: strategyID, Date: from}
	}

	report := &contracts.Report{
		StrategyID:  strategyID,
		StartDate:   states[0].Date,
		EndDate:     states[len(states)-1].Date,
		TradingDays: len(states),
		Daily:       make([]contracts.DailyPoint, 0, len(states)),
	}

	// The NAV before the window opens anchors the first day's return.
	baseNAV := states[0].NAV - states[0].DailyPnL
	returns := make([]float64, 0, len(states))
	prevNAV := baseNAV
	for _, st := range states {
		if prevNAV > 0 {
			returns = append(returns, st.NAV/prevNAV-1)
		}
		prevNAV = st.NAV
		if st.Drawdown > report.MaxDrawdown {
			report.MaxDrawdown = st.Drawdown
		}
		report.Daily = append(report.Daily, contracts.DailyPoint{
			Date:     st.Date,
			NAV:      st.NAV,
			DailyPnL: st.DailyPnL,
			Drawdown: st.Drawdown,
		})
	}

	lastNAV := states[len(states)-1].NAV
	if baseNAV > 0 {
		report.TotalReturn = lastNAV/baseNAV - 1
		report.AnnualizedReturn = annualize(report.TotalReturn, len(states))
	}
	report.SharpeRatio = sharpe(returns)

	report.TotalTrades, err = o.trades.CountByStrategy(ctx, strategyID, from, to)
	if err != nil {
		return nil, fmt.Errorf("count trades: %w", err)
	}
	report.SignalCounts, err = o.signals.CountByType(ctx, strategyID, from, to)
	if err != nil {
		return nil, fmt.Errorf("count signals: %w", err)
	}
	return report, nil
}

func annualize(totalReturn float64, days int) float64 {
	if days <= 0 || totalReturn <= -1 {
		return 0
	}
	return math.Pow(1+totalReturn, float64(features.TradingDaysPerYear)/float64(days)) - 1
}

// sharpe is the annualized mean/stdev of daily returns (zero risk-free rate).
// Fewer than two returns, or a flat series, yields zero.
func sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns) - 1)
	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance) * math.Sqrt(float64(features.TradingDaysPerYear))
}
