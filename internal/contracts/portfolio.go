package contracts

import "time"

// TradeSide is the side of a simulated trade.
type TradeSide string

const (
	TradeBuy  TradeSide = "BUY"
	TradeSell TradeSide = "SELL"
)

// TradeTiming selects which price a trade executes against.
type TradeTiming string

const (
	// TimingClose executes at the same date's close (mark on close).
	TimingClose TradeTiming = "close"
	// TimingNextOpen executes at the following trading day's open.
	TimingNextOpen TradeTiming = "next_open"
)

// MinTradeQuantity is the share threshold below which a quantity change is
// suppressed: no Trade record is created and the position is left untouched.
const MinTradeQuantity = 0.01

// Trade is one simulated execution. Zero or one per (strategy_id, symbol, date).
type Trade struct {
	StrategyID string      `json:"strategy_id"`
	Symbol     string      `json:"symbol"`
	Date       time.Time   `json:"date"`
	Side       TradeSide   `json:"side"`
	Quantity   float64     `json:"quantity"` // always positive; Side carries direction
	Price      float64     `json:"price"`
	Timing     TradeTiming `json:"timing"`
}

// SignedQuantity returns the quantity with BUY positive and SELL negative.
func (t *Trade) SignedQuantity() float64 {
	if t.Side == TradeSell {
		return -t.Quantity
	}
	return t.Quantity
}

// PortfolioState is one day's portfolio snapshot for a strategy.
// ⭐ SSOT: 날짜 D+1 상태는 직전 영업일 상태에서만 이어짐 (singly-linked chain)
// Created on first access for a date, mutated once by trade execution and once
// by mark-to-market within the same pipeline run, never mutated afterward.
type PortfolioState struct {
	StrategyID    string             `json:"strategy_id"`
	Date          time.Time          `json:"date"`
	NAV           float64            `json:"net_asset_value"`
	Cash          float64            `json:"cash"`
	Positions     map[string]float64 `json:"positions"` // symbol -> quantity (signed)
	DailyPnL      float64            `json:"daily_pnl"`
	CumulativePnL float64            `json:"cumulative_pnl"`
	Drawdown      float64            `json:"drawdown"`
	MaxDrawdown   float64            `json:"max_drawdown"`
}

// PositionQty returns the held quantity for a symbol (0 when absent).
func (s *PortfolioState) PositionQty(symbol string) float64 {
	return s.Positions[symbol]
}

// PeakNAV reconstructs the running peak NAV from the stored drawdown.
// drawdown = (peak - nav) / peak  =>  peak = nav / (1 - drawdown)
func (s *PortfolioState) PeakNAV() float64 {
	if s.Drawdown >= 1 {
		return s.NAV
	}
	return s.NAV / (1 - s.Drawdown)
}

// ClonePositions returns a copy of the positions map safe to mutate.
func (s *PortfolioState) ClonePositions() map[string]float64 {
	out := make(map[string]float64, len(s.Positions))
	for sym, qty := range s.Positions {
		out[sym] = qty
	}
	return out
}
