package portfolio

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/voltlab/regimeflow/internal/contracts"
	"github.com/voltlab/regimeflow/pkg/logger"
)

// Config holds simulation settings (from the strategy parameter document).
type Config struct {
	Timing          contracts.TradeTiming
	StartingCapital float64
}

// Simulator advances a strategy's portfolio one day at a time: resolve state,
// execute the persisted signal, mark the book to market.
// ⭐ SSOT: 포트폴리오 시뮬레이션은 여기서만
// The simulator never persists; the orchestrator owns the write.
type Simulator struct {
	prices     contracts.PriceRepository
	signals    contracts.SignalRepository
	portfolios contracts.PortfolioRepository
	config     Config
	logger     *logger.Logger
}

// NewSimulator creates a new portfolio simulator.
func NewSimulator(
	prices contracts.PriceRepository,
	signals contracts.SignalRepository,
	portfolios contracts.PortfolioRepository,
	config Config,
	log *logger.Logger,
) *Simulator {
	return &Simulator{
		prices:     prices,
		signals:    signals,
		portfolios: portfolios,
		config:     config,
		logger:     log,
	}
}

// SimulateDay executes one (strategy, symbol, date): trade against the day's
// persisted signal, then mark to market. Returns the day's state and the
// trade, if any.
//
// Re-running a completed date is idempotent: sizing always works from the
// predecessor's NAV, so the recomputed quantity delta collapses below the
// trade threshold and the mark reproduces the same state.
func (s *Simulator) SimulateDay(ctx context.Context, strategyID, symbol string, date time.Time) (*contracts.PortfolioState, *contracts.Trade, error) {
	state, prev, err := s.resolveState(ctx, strategyID, date)
	if err != nil {
		return nil, nil, err
	}

	// The signal must already be persisted; this component never invokes the
	// strategy evaluator itself.
	sig, err := s.signals.GetByKey(ctx, strategyID, symbol, date)
	if err != nil {
		return nil, nil, err
	}

	prevNAV := s.config.StartingCapital
	prevCumulative := 0.0
	prevMaxDrawdown := 0.0
	peak := s.config.StartingCapital
	if prev != nil {
		prevNAV = prev.NAV
		prevCumulative = prev.CumulativePnL
		prevMaxDrawdown = prev.MaxDrawdown
		peak = prev.PeakNAV()
	}

	var trade *contracts.Trade
	if !sig.IsFlat() {
		trade, err = s.executeTrade(ctx, state, sig, prevNAV, date)
		if err != nil {
			return nil, nil, err
		}
	}

	if err := s.markToMarket(ctx, state, date, prevNAV, prevCumulative, prevMaxDrawdown, peak); err != nil {
		return nil, nil, err
	}

	s.logger.WithSymbolDate(symbol, date).WithFields(map[string]interface{}{
		"strategy":  strategyID,
		"nav":       state.NAV,
		"daily_pnl": state.DailyPnL,
		"drawdown":  state.Drawdown,
		"traded":    trade != nil,
	}).Debug("Simulated day")

	return state, trade, nil
}

// resolveState returns the working state for the date plus the predecessor
// state (nil when the chain starts here).
func (s *Simulator) resolveState(ctx context.Context, strategyID string, date time.Time) (*contracts.PortfolioState, *contracts.PortfolioState, error) {
	prev, err := s.portfolios.GetLatestBefore(ctx, strategyID, date)
	if err != nil {
		return nil, nil, fmt.Errorf("load predecessor state: %w", err)
	}

	existing, err := s.portfolios.GetByDate(ctx, strategyID, date)
	if err != nil {
		return nil, nil, fmt.Errorf("load current state: %w", err)
	}
	if existing != nil {
		existing.Positions = existing.ClonePositions()
		return existing, prev, nil
	}

	state := &contracts.PortfolioState{
		StrategyID: strategyID,
		Date:       date,
		Positions:  make(map[string]float64),
	}
	if prev != nil {
		// Carry forward from the most recent earlier date.
		state.Cash = prev.Cash
		state.Positions = prev.ClonePositions()
		state.NAV = prev.NAV
		state.CumulativePnL = prev.CumulativePnL
		state.MaxDrawdown = prev.MaxDrawdown
	} else {
		// No predecessor means start fresh with the configured capital.
		state.Cash = s.config.StartingCapital
		state.NAV = s.config.StartingCapital
	}
	return state, prev, nil
}

// executeTrade moves the position toward nav * target_exposure. Quantity
// changes below MinTradeQuantity are suppressed (no-op, not an error).
// Cash update is deliberately cost-free: cash -= qty * price.
func (s *Simulator) executeTrade(ctx context.Context, state *contracts.PortfolioState, sig *contracts.Signal, nav float64, date time.Time) (*contracts.Trade, error) {
	price, ok, err := s.executionPrice(ctx, sig.Symbol, date)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Next-open timing with no following bar yet: skip the trade.
		return nil, nil
	}

	target := nav * sig.TargetExposure / price * sig.DirectionSign()
	current := state.PositionQty(sig.Symbol)
	delta := target - current
	if math.Abs(delta) < contracts.MinTradeQuantity {
		return nil, nil
	}

	state.Cash -= delta * price
	state.Positions[sig.Symbol] = current + delta

	side := contracts.TradeBuy
	if delta < 0 {
		side = contracts.TradeSell
	}
	return &contracts.Trade{
		StrategyID: sig.StrategyID,
		Symbol:     sig.Symbol,
		Date:       date,
		Side:       side,
		Quantity:   math.Abs(delta),
		Price:      price,
		Timing:     s.config.Timing,
	}, nil
}

// executionPrice resolves the configured execution price. ok=false means the
// required bar does not exist yet (next-open only) and the trade is skipped.
func (s *Simulator) executionPrice(ctx context.Context, symbol string, date time.Time) (float64, bool, error) {
	switch s.config.Timing {
	case contracts.TimingNextOpen:
		next, err := s.prices.GetNextAfter(ctx, symbol, date)
		if err != nil {
			return 0, false, fmt.Errorf("load next bar: %w", err)
		}
		if next == nil {
			return 0, false, nil
		}
		return next.Open, true, nil
	default: // TimingClose
		bar, err := s.prices.GetBySymbolAndDate(ctx, symbol, date)
		if err != nil {
			return 0, false, err
		}
		return bar.Close, true, nil
	}
}

// markToMarket revalues every held position at the day's close and updates
// the PnL/drawdown chain.
func (s *Simulator) markToMarket(ctx context.Context, state *contracts.PortfolioState, date time.Time, prevNAV, prevCumulative, prevMaxDrawdown, peak float64) error {
	value := 0.0
	for symbol, qty := range state.Positions {
		if math.Abs(qty) < contracts.MinTradeQuantity {
			continue
		}
		bar, err := s.prices.GetLatestCloseUpTo(ctx, symbol, date)
		if err != nil {
			return fmt.Errorf("mark %s: %w", symbol, err)
		}
		value += qty * bar.Close
	}

	state.NAV = state.Cash + value
	state.DailyPnL = state.NAV - prevNAV
	state.CumulativePnL = prevCumulative + state.DailyPnL

	if state.NAV > peak {
		peak = state.NAV
	}
	state.Drawdown = 0
	if peak > 0 {
		state.Drawdown = (peak - state.NAV) / peak
	}
	state.MaxDrawdown = math.Max(prevMaxDrawdown, state.Drawdown)
	return nil
}
