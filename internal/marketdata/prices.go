package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voltlab/regimeflow/internal/contracts"
)

// PriceRepository reads daily bars from market.daily_prices.
// 이 데이터의 수집/관리는 외부 컬렉터 담당 — this service only reads it.
type PriceRepository struct {
	pool *pgxpool.Pool
}

// NewPriceRepository creates a new price repository.
func NewPriceRepository(pool *pgxpool.Pool) *PriceRepository {
	return &PriceRepository{pool: pool}
}

const priceColumns = `symbol, price_date, open, high, low, close, volume, adj_close`

// GetBySymbolAndDate returns the bar exactly on date.
func (r *PriceRepository) GetBySymbolAndDate(ctx context.Context, symbol string, date time.Time) (*contracts.PriceBar, error) {
	query := `
		SELECT ` + priceColumns + `
		FROM market.daily_prices
		WHERE symbol = $1 AND price_date = $2
	`
	bar, err := scanBar(r.pool.QueryRow(ctx, query, symbol, date))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &contracts.MissingDataError{Kind: "price_bar", Symbol: symbol, Date: date}
	}
	if err != nil {
		return nil, fmt.Errorf("get price bar: %w", err)
	}
	return bar, nil
}

// GetUpTo returns up to limit bars with price_date <= date, oldest first.
func (r *PriceRepository) GetUpTo(ctx context.Context, symbol string, date time.Time, limit int) ([]*contracts.PriceBar, error) {
	// Take the newest bars first, then flip to ascending order.
	query := `
		SELECT ` + priceColumns + `
		FROM market.daily_prices
		WHERE symbol = $1 AND price_date <= $2
		ORDER BY price_date DESC
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, symbol, date, limit)
	if err != nil {
		return nil, fmt.Errorf("query price bars: %w", err)
	}
	defer rows.Close()

	var bars []*contracts.PriceBar
	for rows.Next() {
		bar, err := scanBar(rows)
		if err != nil {
			return nil, fmt.Errorf("scan price bar: %w", err)
		}
		bars = append(bars, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}

// GetNextAfter returns the first bar strictly after date, or nil when the
// store has no later bar yet.
func (r *PriceRepository) GetNextAfter(ctx context.Context, symbol string, date time.Time) (*contracts.PriceBar, error) {
	query := `
		SELECT ` + priceColumns + `
		FROM market.daily_prices
		WHERE symbol = $1 AND price_date > $2
		ORDER BY price_date ASC
		LIMIT 1
	`
	bar, err := scanBar(r.pool.QueryRow(ctx, query, symbol, date))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get next price bar: %w", err)
	}
	return bar, nil
}

// GetLatestCloseUpTo returns the most recent bar with price_date <= date.
func (r *PriceRepository) GetLatestCloseUpTo(ctx context.Context, symbol string, date time.Time) (*contracts.PriceBar, error) {
	query := `
		SELECT ` + priceColumns + `
		FROM market.daily_prices
		WHERE symbol = $1 AND price_date <= $2
		ORDER BY price_date DESC
		LIMIT 1
	`
	bar, err := scanBar(r.pool.QueryRow(ctx, query, symbol, date))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &contracts.MissingDataError{Kind: "price_bar", Symbol: symbol, Date: date}
	}
	if err != nil {
		return nil, fmt.Errorf("get latest price bar: %w", err)
	}
	return bar, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBar(row rowScanner) (*contracts.PriceBar, error) {
	var bar contracts.PriceBar
	err := row.Scan(
		&bar.Symbol, &bar.Date, &bar.Open, &bar.High, &bar.Low,
		&bar.Close, &bar.Volume, &bar.AdjClose,
	)
	if err != nil {
		return nil, err
	}
	return &bar, nil
}
