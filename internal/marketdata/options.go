package marketdata

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

// OptionsRepository reads daily options snapshots from market.options_snapshots.
type OptionsRepository struct {
	pool *pgxpool.Pool
}

// NewOptionsRepository creates a new options snapshot repository.
func NewOptionsRepository(pool *pgxpool.Pool) *OptionsRepository {
	return &OptionsRepository{pool: pool}
}

// GetBySymbolAndDate returns the snapshot for the date, or nil when the date
// has none. Missing options coverage is expected for many symbols.
func (r *OptionsRepository) GetBySymbolAndDate(ctx context.Context, symbol string, date time.Time) (*contracts.OptionsSnapshot, error) {
	query := `
		SELECT symbol, snapshot_date, expiries,
			call_volume, put_volume, call_open_interest, put_open_interest,
			unusual_count
		FROM market.options_snapshots
		WHERE symbol = $1 AND snapshot_date = $2
	`
	var snap contracts.OptionsSnapshot
	var expiries []byte
	err := r.pool.QueryRow(ctx, query, symbol, date).Scan(
		&snap.Symbol, &snap.Date, &expiries,
		&snap.CallVolume, &snap.PutVolume,
		&snap.CallOpenInterest, &snap.PutOpenInterest,
		&snap.UnusualCount,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get options snapshot: %w", err)
	}

	if len(expiries) > 0 {
		if err := json.Unmarshal(expiries, &snap.Expiries); err != nil {
			return nil, fmt.Errorf("unmarshal expiries: %w", err)
		}
	}
	return &snap, nil
}
