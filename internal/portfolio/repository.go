package portfolio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voltlab/regimeflow/internal/contracts"
)

// StateRepository persists portfolio states in strategy.portfolio_states.
type StateRepository struct {
	pool *pgxpool.Pool
}

// NewStateRepository creates a new portfolio state repository.
func NewStateRepository(pool *pgxpool.Pool) *StateRepository {
	return &StateRepository{pool: pool}
}

const stateColumns = `strategy_id, state_date, nav, cash, positions,
	daily_pnl, cumulative_pnl, drawdown, max_drawdown`

// Save upserts a portfolio state. Re-running a date overwrites the row.
func (r *StateRepository) Save(ctx context.Context, state *contracts.PortfolioState) error {
	positions, err := json.Marshal(state.Positions)
	if err != nil {
		return fmt.Errorf("marshal positions: %w", err)
	}

	query := `
		INSERT INTO strategy.portfolio_states (` + stateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (strategy_id, state_date)
		DO UPDATE SET
			nav = EXCLUDED.nav,
			cash = EXCLUDED.cash,
			positions = EXCLUDED.positions,
			daily_pnl = EXCLUDED.daily_pnl,
			cumulative_pnl = EXCLUDED.cumulative_pnl,
			drawdown = EXCLUDED.drawdown,
			max_drawdown = EXCLUDED.max_drawdown,
			updated_at = NOW()
	`
	_, err = r.pool.Exec(ctx, query,
		state.StrategyID, state.Date, state.NAV, state.Cash, positions,
		state.DailyPnL, state.CumulativePnL, state.Drawdown, state.MaxDrawdown,
	)
	if err != nil {
		return fmt.Errorf("save portfolio state: %w", err)
	}
	return nil
}

// GetByDate returns the state for an exact date, or nil when none exists.
func (r *StateRepository) GetByDate(ctx context.Context, strategyID string, date time.Time) (*contracts.PortfolioState, error) {
	query := `
		SELECT ` + stateColumns + `
		FROM strategy.portfolio_states
		WHERE strategy_id = $1 AND state_date = $2
	`
	state, err := scanState(r.pool.QueryRow(ctx, query, strategyID, date))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get portfolio state: %w", err)
	}
	return state, nil
}

// GetLatestBefore returns the most recent state strictly before date, or nil.
func (r *StateRepository) GetLatestBefore(ctx context.Context, strategyID string, date time.Time) (*contracts.PortfolioState, error) {
	query := `
		SELECT ` + stateColumns + `
		FROM strategy.portfolio_states
		WHERE strategy_id = $1 AND state_date < $2
		ORDER BY state_date DESC
		LIMIT 1
	`
	state, err := scanState(r.pool.QueryRow(ctx, query, strategyID, date))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest portfolio state: %w", err)
	}
	return state, nil
}

// GetPrior returns up to limit states strictly before date, newest first.
func (r *StateRepository) GetPrior(ctx context.Context, strategyID string, date time.Time, limit int) ([]*contracts.PortfolioState, error) {
	query := `
		SELECT ` + stateColumns + `
		FROM strategy.portfolio_states
		WHERE strategy_id = $1 AND state_date < $2
		ORDER BY state_date DESC
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, strategyID, date, limit)
	if err != nil {
		return nil, fmt.Errorf("query prior states: %w", err)
	}
	defer rows.Close()

	var states []*contracts.PortfolioState
	for rows.Next() {
		state, err := scanState(rows)
		if err != nil {
			return nil, fmt.Errorf("scan portfolio state: %w", err)
		}
		states = append(states, state)
	}
	return states, rows.Err()
}

// GetRange returns all states in [from, to], oldest first.
func (r *StateRepository) GetRange(ctx context.Context, strategyID string, from, to time.Time) ([]*contracts.PortfolioState, error) {
	query := `
		SELECT ` + stateColumns + `
		FROM strategy.portfolio_states
		WHERE strategy_id = $1 AND state_date BETWEEN $2 AND $3
		ORDER BY state_date ASC
	`
	rows, err := r.pool.Query(ctx, query, strategyID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query state range: %w", err)
	}
	defer rows.Close()

	var states []*contracts.PortfolioState
	for rows.Next() {
		state, err := scanState(rows)
		if err != nil {
			return nil, fmt.Errorf("scan portfolio state: %w", err)
		}
		states = append(states, state)
	}
	return states, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanState(row rowScanner) (*contracts.PortfolioState, error) {
	var state contracts.PortfolioState
	var positions []byte
	err := row.Scan(
		&state.StrategyID, &state.Date, &state.NAV, &state.Cash, &positions,
		&state.DailyPnL, &state.CumulativePnL, &state.Drawdown, &state.MaxDrawdown,
	)
	if err != nil {
		return nil, err
	}
	state.Positions = make(map[string]float64)
	if len(positions) > 0 {
		if err := json.Unmarshal(positions, &state.Positions); err != nil {
			return nil, fmt.Errorf("unmarshal positions: %w", err)
		}
	}
	return &state, nil
}

// TradeRepository persists executed trades in strategy.trades.
type TradeRepository struct {
	pool *pgxpool.Pool
}

// NewTradeRepository creates a new trade repository.
func NewTradeRepository(pool *pgxpool.Pool) *TradeRepository {
	return &TradeRepository{pool: pool}
}

// Save upserts a trade. One trade at most per (strategy, symbol, date).
func (r *TradeRepository) Save(ctx context.Context, trade *contracts.Trade) error {
	query := `
		INSERT INTO strategy.trades (
			strategy_id, symbol, trade_date, side, quantity, price, timing
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (strategy_id, symbol, trade_date)
		DO UPDATE SET
			side = EXCLUDED.side,
			quantity = EXCLUDED.quantity,
			price = EXCLUDED.price,
			timing = EXCLUDED.timing
	`
	_, err := r.pool.Exec(ctx, query,
		trade.StrategyID, trade.Symbol, trade.Date,
		trade.Side, trade.Quantity, trade.Price, trade.Timing,
	)
	if err != nil {
		return fmt.Errorf("save trade: %w", err)
	}
	return nil
}

// CountByStrategy returns the number of trades in [from, to].
func (r *TradeRepository) CountByStrategy(ctx context.Context, strategyID string, from, to time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM strategy.trades
		WHERE strategy_id = $1 AND trade_date BETWEEN $2 AND $3
	`
	var count int
	if err := r.pool.QueryRow(ctx, query, strategyID, from, to).Scan(&count); err != nil {
		return 0, fmt.Errorf("count trades: %w", err)
	}
	return count, nil
}
