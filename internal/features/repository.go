package features

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voltlab/regimeflow/internal/contracts"
)

// Repository implements contracts.FeatureRepository on PostgreSQL.
// ⭐ SSOT: 피처 레코드 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new feature repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const featureColumns = `
	symbol, calc_date, rv20, rv60, atr14,
	iv_median, iv_slope, call_put_volume_ratio, call_put_oi_ratio,
	rv20_percentile, atr14_percentile, iv_median_percentile, percentile_quality
`

// Save upserts one feature record keyed by (symbol, calc_date).
func (r *Repository) Save(ctx context.Context, rec *contracts.FeatureRecord) error {
	query := `
		INSERT INTO features.daily_features (` + featureColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (symbol, calc_date) DO UPDATE SET
			rv20 = EXCLUDED.rv20,
			rv60 = EXCLUDED.rv60,
			atr14 = EXCLUDED.atr14,
			iv_median = EXCLUDED.iv_median,
			iv_slope = EXCLUDED.iv_slope,
			call_put_volume_ratio = EXCLUDED.call_put_volume_ratio,
			call_put_oi_ratio = EXCLUDED.call_put_oi_ratio,
			rv20_percentile = EXCLUDED.rv20_percentile,
			atr14_percentile = EXCLUDED.atr14_percentile,
			iv_median_percentile = EXCLUDED.iv_median_percentile,
			percentile_quality = EXCLUDED.percentile_quality,
			updated_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query,
		rec.Symbol, rec.Date, rec.RV20, rec.RV60, rec.ATR14,
		rec.IVMedian, rec.IVSlope, rec.CallPutVolumeRatio, rec.CallPutOIRatio,
		rec.RV20Percentile, rec.ATR14Percentile, rec.IVMedianPercentile, string(rec.PercentileQuality),
	)
	return err
}

// GetBySymbolAndDate retrieves one feature record.
func (r *Repository) GetBySymbolAndDate(ctx context.Context, symbol string, date time.Time) (*contracts.FeatureRecord, error) {
	query := `
		SELECT ` + featureColumns + `
		FROM features.daily_features
		WHERE symbol = $1 AND calc_date = $2
	`

	rec, err := scanFeature(r.pool.QueryRow(ctx, query, symbol, date))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &contracts.MissingDataError{Kind: "feature_record", Symbol: symbol, Date: date}
		}
		return nil, fmt.Errorf("get feature record: %w", err)
	}
	return rec, nil
}

// GetPrior retrieves up to limit records strictly before date, newest first.
func (r *Repository) GetPrior(ctx context.Context, symbol string, date time.Time, limit int) ([]*contracts.FeatureRecord, error) {
	query := `
		SELECT ` + featureColumns + `
		FROM features.daily_features
		WHERE symbol = $1 AND calc_date < $2
		ORDER BY calc_date DESC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, symbol, date, limit)
	if err != nil {
		return nil, fmt.Errorf("query prior features: %w", err)
	}
	defer rows.Close()

	var recs []*contracts.FeatureRecord
	for rows.Next() {
		rec, err := scanFeature(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeature(row rowScanner) (*contracts.FeatureRecord, error) {
	var rec contracts.FeatureRecord
	var quality string
	if err := row.Scan(
		&rec.Symbol, &rec.Date, &rec.RV20, &rec.RV60, &rec.ATR14,
		&rec.IVMedian, &rec.IVSlope, &rec.CallPutVolumeRatio, &rec.CallPutOIRatio,
		&rec.RV20Percentile, &rec.ATR14Percentile, &rec.IVMedianPercentile, &quality,
	); err != nil {
		return nil, err
	}
	rec.PercentileQuality = contracts.PercentileQuality(quality)
	return &rec, nil
}
