package features

import (
	"context"
	"fmt"
	"time"

	"github.com/voltlab/regimeflow/internal/contracts"
	"github.com/voltlab/regimeflow/pkg/logger"
)

const (
	// minHistoryBars is 60 prior observations plus the target date itself.
	minHistoryBars = 61

	rvShortWindow = 20
	rvLongWindow  = 60
	atrPeriod     = 14

	// Percentile ranks use up to two years of strictly-prior records; below
	// one year the rank is computed best-effort and flagged insufficient.
	percentileWindow     = 504
	percentileMinSamples = 252
)

// Engine computes point-in-time feature records.
// ⭐ SSOT: 피처 계산은 여기서만, date 이하의 데이터만 사용
type Engine struct {
	prices   contracts.PriceRepository
	options  contracts.OptionsRepository
	features contracts.FeatureRepository
	logger   *logger.Logger
}

// NewEngine creates a new feature engine.
func NewEngine(
	prices contracts.PriceRepository,
	options contracts.OptionsRepository,
	features contracts.FeatureRepository,
	log *logger.Logger,
) *Engine {
	return &Engine{
		prices:   prices,
		options:  options,
		features: features,
		logger:   log,
	}
}

// Compute builds the feature record for (symbol, date) from historical data
// up to and including date, then persists it (idempotent overwrite).
//
// Returns contracts.ErrNotReady when fewer than 61 bars exist — not an
// error, a defined "not ready" state — and a MissingDataError when no bar
// sits exactly on the target date.
func (e *Engine) Compute(ctx context.Context, symbol string, date time.Time) (*contracts.FeatureRecord, error) {
	bars, err := e.prices.GetUpTo(ctx, symbol, date, minHistoryBars)
	if err != nil {
		return nil, fmt.Errorf("load price history: %w", err)
	}
	if len(bars) < minHistoryBars {
		return nil, fmt.Errorf("%w: %d of %d bars for %s", contracts.ErrNotReady, len(bars), minHistoryBars, symbol)
	}
	target := bars[len(bars)-1]
	if !sameDay(target.Date, date) {
		return nil, &contracts.MissingDataError{Kind: "price_bar", Symbol: symbol, Date: date}
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.EffectiveClose()
	}

	rec := &contracts.FeatureRecord{
		Symbol:            symbol,
		Date:              target.Date,
		PercentileQuality: contracts.QualitySufficient,
	}
	rec.RV20, _ = realizedVol(closes, rvShortWindow)
	rec.RV60, _ = realizedVol(closes, rvLongWindow)
	rec.ATR14, _ = wilderATR(bars, atrPeriod)

	if err := e.applyOptions(ctx, symbol, date, rec); err != nil {
		return nil, err
	}
	if err := e.applyPercentiles(ctx, symbol, date, rec); err != nil {
		return nil, err
	}

	if err := e.features.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("save feature record: %w", err)
	}

	e.logger.WithSymbolDate(symbol, date).WithFields(map[string]interface{}{
		"rv20":    rec.RV20,
		"atr14":   rec.ATR14,
		"quality": rec.PercentileQuality,
		"options": rec.HasOptions(),
	}).Debug("Computed feature record")

	return rec, nil
}

// applyOptions fills the options-derived metrics when a snapshot exists.
// Absence is not an error: the record degrades gracefully.
func (e *Engine) applyOptions(ctx context.Context, symbol string, date time.Time, rec *contracts.FeatureRecord) error {
	snap, err := e.options.GetBySymbolAndDate(ctx, symbol, date)
	if err != nil {
		return fmt.Errorf("load options snapshot: %w", err)
	}
	if snap == nil {
		return nil
	}
	m, ok := computeOptionsMetrics(snap)
	if !ok {
		return nil
	}
	rec.IVMedian = &m.ivMedian
	rec.IVSlope = m.ivSlope
	rec.CallPutVolumeRatio = &m.volumeRatio
	rec.CallPutOIRatio = &m.openInterestRatio
	return nil
}

// applyPercentiles ranks rv20/atr14/iv_median against up to 504 strictly
// earlier records for the same symbol. Any metric with fewer than 252 prior
// samples marks the whole record insufficient.
func (e *Engine) applyPercentiles(ctx context.Context, symbol string, date time.Time, rec *contracts.FeatureRecord) error {
	prior, err := e.features.GetPrior(ctx, symbol, date, percentileWindow)
	if err != nil {
		return fmt.Errorf("load prior feature records: %w", err)
	}

	rv20Sample := make([]float64, 0, len(prior))
	atrSample := make([]float64, 0, len(prior))
	ivSample := make([]float64, 0, len(prior))
	for _, p := range prior {
		rv20Sample = append(rv20Sample, p.RV20)
		atrSample = append(atrSample, p.ATR14)
		if p.IVMedian != nil {
			ivSample = append(ivSample, *p.IVMedian)
		}
	}

	rec.RV20Percentile = percentileRank(rv20Sample, rec.RV20)
	rec.ATR14Percentile = percentileRank(atrSample, rec.ATR14)
	if len(rv20Sample) < percentileMinSamples || len(atrSample) < percentileMinSamples {
		rec.PercentileQuality = contracts.QualityInsufficient
	}

	if rec.IVMedian != nil {
		pct := percentileRank(ivSample, *rec.IVMedian)
		rec.IVMedianPercentile = &pct
		if len(ivSample) < percentileMinSamples {
			rec.PercentileQuality = contracts.QualityInsufficient
		}
	}
	return nil
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
