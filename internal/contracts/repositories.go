package contracts

import (
	"context"
	"time"
)

// ⭐ SSOT: Repository 인터페이스 정의는 여기서만

// PriceRepository provides read access to the historical price store.
// The store itself (ingestion, upkeep) is an external collaborator.
type PriceRepository interface {
	// GetBySymbolAndDate returns the bar exactly on date, or ErrNoRows-style
	// error from the driver when absent.
	GetBySymbolAndDate(ctx context.Context, symbol string, date time.Time) (*PriceBar, error)
	// GetUpTo returns up to limit bars with date <= the given date,
	// ascending by date.
	GetUpTo(ctx context.Context, symbol string, date time.Time, limit int) ([]*PriceBar, error)
	// GetNextAfter returns the first bar strictly after date, or nil when the
	// store has none yet (next-open execution needs it).
	GetNextAfter(ctx context.Context, symbol string, date time.Time) (*PriceBar, error)
	// GetLatestCloseUpTo returns the most recent bar with date <= the given
	// date, used for marking stale positions.
	GetLatestCloseUpTo(ctx context.Context, symbol string, date time.Time) (*PriceBar, error)
}

// OptionsRepository provides read access to daily options snapshots.
type OptionsRepository interface {
	// GetBySymbolAndDate returns the snapshot for the date, or nil when the
	// date has none (absence is not an error).
	GetBySymbolAndDate(ctx context.Context, symbol string, date time.Time) (*OptionsSnapshot, error)
}

// FeatureRepository persists computed feature records.
type FeatureRepository interface {
	Save(ctx context.Context, rec *FeatureRecord) error
	GetBySymbolAndDate(ctx context.Context, symbol string, date time.Time) (*FeatureRecord, error)
	// GetPrior returns up to limit records strictly before date, descending.
	GetPrior(ctx context.Context, symbol string, date time.Time, limit int) ([]*FeatureRecord, error)
}

// SignalRepository persists strategy signals with their explanations.
type SignalRepository interface {
	Save(ctx context.Context, sig *Signal) error
	GetByKey(ctx context.Context, strategyID, symbol string, date time.Time) (*Signal, error)
	// GetPrior returns up to limit signals strictly before date, descending.
	GetPrior(ctx context.Context, strategyID, symbol string, date time.Time, limit int) ([]*Signal, error)
	// CountByType counts signals per type over a date range.
	CountByType(ctx context.Context, strategyID string, from, to time.Time) (map[SignalType]int, error)
}

// RegimeRepository persists denormalized regime states.
type RegimeRepository interface {
	Save(ctx context.Context, st *RegimeState) error
	GetByKey(ctx context.Context, strategyID, symbol string, date time.Time) (*RegimeState, error)
}

// TradeRepository persists simulated trades.
type TradeRepository interface {
	Save(ctx context.Context, tr *Trade) error
	CountByStrategy(ctx context.Context, strategyID string, from, to time.Time) (int, error)
}

// PortfolioRepository persists the per-strategy portfolio chain.
type PortfolioRepository interface {
	Save(ctx context.Context, st *PortfolioState) error
	GetByDate(ctx context.Context, strategyID string, date time.Time) (*PortfolioState, error)
	// GetLatestBefore returns the most recent state strictly before date, or
	// nil when the chain has no predecessor (start fresh).
	GetLatestBefore(ctx context.Context, strategyID string, date time.Time) (*PortfolioState, error)
	// GetPrior returns up to limit states strictly before date, descending.
	GetPrior(ctx context.Context, strategyID string, date time.Time, limit int) ([]*PortfolioState, error)
	// GetRange returns states within [from, to], ascending.
	GetRange(ctx context.Context, strategyID string, from, to time.Time) ([]*PortfolioState, error)
}

// StrategyRepository persists strategy metadata singletons.
type StrategyRepository interface {
	Get(ctx context.Context, strategyID string) (*StrategyMetadata, error)
	// Ensure inserts the metadata when missing and leaves an existing row
	// untouched. Returns the stored row.
	Ensure(ctx context.Context, meta *StrategyMetadata) (*StrategyMetadata, error)
}
