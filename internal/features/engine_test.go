package features

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltlab/regimeflow/internal/contracts"
	"github.com/voltlab/regimeflow/pkg/config"
	"github.com/voltlab/regimeflow/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(&config.Config{Env: "development", LogLevel: "error", LogFormat: "json"})
}

func day(yy, mm, dd int) time.Time {
	return time.Date(yy, time.Month(mm), dd, 0, 0, 0, 0, time.UTC)
}

// fakePrices serves bars from a slice sorted ascending by date.
type fakePrices struct {
	bars []*contracts.PriceBar
}

func (f *fakePrices) GetBySymbolAndDate(_ context.Context, symbol string, date time.Time) (*contracts.PriceBar, error) {
	for _, b := range f.bars {
		if b.Date.Equal(date) {
			return b, nil
		}
	}
	return nil, &contracts.MissingDataError{Kind: "price_bar", Symbol: symbol, Date: date}
}

func (f *fakePrices) GetUpTo(_ context.Context, _ string, date time.Time, limit int) ([]*contracts.PriceBar, error) {
	var out []*contracts.PriceBar
	for _, b := range f.bars {
		if !b.Date.After(date) {
			out = append(out, b)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakePrices) GetNextAfter(_ context.Context, _ string, date time.Time) (*contracts.PriceBar, error) {
	for _, b := range f.bars {
		if b.Date.After(date) {
			return b, nil
		}
	}
	return nil, nil
}

func (f *fakePrices) GetLatestCloseUpTo(_ context.Context, symbol string, date time.Time) (*contracts.PriceBar, error) {
	var last *contracts.PriceBar
	for _, b := range f.bars {
		if !b.Date.After(date) {
			last = b
		}
	}
	if last == nil {
		return nil, &contracts.MissingDataError{Kind: "price_bar", Symbol: symbol, Date: date}
	}
	return last, nil
}

// fakeOptions serves snapshots keyed by date.
type fakeOptions struct {
	snaps map[string]*contracts.OptionsSnapshot
}

func (f *fakeOptions) GetBySymbolAndDate(_ context.Context, _ string, date time.Time) (*contracts.OptionsSnapshot, error) {
	if f.snaps == nil {
		return nil, nil
	}
	return f.snaps[date.Format("2006-01-02")], nil
}

// fakeFeatures stores saved records in memory, ascending by date.
type fakeFeatures struct {
	records []*contracts.FeatureRecord
}

func (f *fakeFeatures) Save(_ context.Context, rec *contracts.FeatureRecord) error {
	for i, existing := range f.records {
		if existing.Date.Equal(rec.Date) {
			f.records[i] = rec
			return nil
		}
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeFeatures) GetBySymbolAndDate(_ context.Context, symbol string, date time.Time) (*contracts.FeatureRecord, error) {
	for _, rec := range f.records {
		if rec.Date.Equal(date) {
			return rec, nil
		}
	}
	return nil, &contracts.MissingDataError{Kind: "feature_record", Symbol: symbol, Date: date}
}

func (f *fakeFeatures) GetPrior(_ context.Context, _ string, date time.Time, limit int) ([]*contracts.FeatureRecord, error) {
	var out []*contracts.FeatureRecord
	for i := len(f.records) - 1; i >= 0 && len(out) < limit; i-- {
		if f.records[i].Date.Before(date) {
			out = append(out, f.records[i])
		}
	}
	return out, nil
}

// genBars builds n consecutive daily bars ending before 2026-01-01, with a
// deterministic wobble so volatility is non-zero.
func genBars(n int) []*contracts.PriceBar {
	bars := make([]*contracts.PriceBar, n)
	start := day(2025, 1, 1)
	price := 100.0
	for i := 0; i < n; i++ {
		// Alternate up/down moves of differing size.
		if i%2 == 0 {
			price *= 1.01
		} else {
			price *= 0.995
		}
		bars[i] = &contracts.PriceBar{
			Symbol: "NVDA",
			Date:   start.AddDate(0, 0, i),
			Open:   price * 0.999,
			High:   price * 1.005,
			Low:    price * 0.994,
			Close:  price,
			Volume: 1_000_000,
		}
	}
	return bars
}

func newTestEngine(prices *fakePrices, options *fakeOptions, repo *fakeFeatures) *Engine {
	return NewEngine(prices, options, repo, testLogger())
}

func TestComputeNotReady(t *testing.T) {
	bars := genBars(60)
	engine := newTestEngine(&fakePrices{bars: bars}, &fakeOptions{}, &fakeFeatures{})

	_, err := engine.Compute(context.Background(), "NVDA", bars[len(bars)-1].Date)
	require.Error(t, err)
	assert.True(t, contracts.IsNotReady(err))
}

func TestComputeMissingTargetBar(t *testing.T) {
	bars := genBars(80)
	engine := newTestEngine(&fakePrices{bars: bars}, &fakeOptions{}, &fakeFeatures{})

	// A date after the last stored bar has 61+ bars of history but no bar of
	// its own.
	_, err := engine.Compute(context.Background(), "NVDA", bars[len(bars)-1].Date.AddDate(0, 0, 5))
	require.Error(t, err)
	assert.True(t, contracts.IsMissingData(err))
	assert.False(t, contracts.IsNotReady(err))
}

func TestComputeWithoutOptions(t *testing.T) {
	bars := genBars(61)
	repo := &fakeFeatures{}
	engine := newTestEngine(&fakePrices{bars: bars}, &fakeOptions{}, repo)

	date := bars[len(bars)-1].Date
	rec, err := engine.Compute(context.Background(), "NVDA", date)
	require.NoError(t, err)

	assert.Equal(t, "NVDA", rec.Symbol)
	assert.True(t, rec.Date.Equal(date))
	assert.Greater(t, rec.RV20, 0.0)
	assert.Greater(t, rec.RV60, 0.0)
	assert.Greater(t, rec.ATR14, 0.0)

	// Options absent: record degrades gracefully.
	assert.False(t, rec.HasOptions())
	assert.Nil(t, rec.IVMedian)
	assert.Nil(t, rec.IVMedianPercentile)

	// No prior records: rank 0, quality insufficient.
	assert.Equal(t, 0.0, rec.RV20Percentile)
	assert.Equal(t, contracts.QualityInsufficient, rec.PercentileQuality)

	// Persisted.
	require.Len(t, repo.records, 1)
}

func TestComputeWithOptions(t *testing.T) {
	bars := genBars(61)
	date := bars[len(bars)-1].Date
	options := &fakeOptions{snaps: map[string]*contracts.OptionsSnapshot{
		date.Format("2006-01-02"): {
			Symbol: "NVDA",
			Date:   date,
			Expiries: []contracts.OptionExpiry{
				{DaysToExpiry: 14, MedianIV: 0.45},
				{DaysToExpiry: 90, MedianIV: 0.38},
			},
			CallVolume:       1500,
			PutVolume:        1000,
			CallOpenInterest: 900,
			PutOpenInterest:  600,
		},
	}}
	engine := newTestEngine(&fakePrices{bars: bars}, options, &fakeFeatures{})

	rec, err := engine.Compute(context.Background(), "NVDA", date)
	require.NoError(t, err)

	require.True(t, rec.HasOptions())
	assert.InDelta(t, 0.415, *rec.IVMedian, 1e-12)
	require.NotNil(t, rec.IVSlope)
	assert.InDelta(t, 0.07, *rec.IVSlope, 1e-12)
	assert.InDelta(t, 1.5, *rec.CallPutVolumeRatio, 1e-12)
	require.NotNil(t, rec.IVMedianPercentile)
}

func TestComputeNoLookahead(t *testing.T) {
	// Computing a historical date must ignore every later bar.
	bars := genBars(120)
	target := bars[80].Date

	full := newTestEngine(&fakePrices{bars: bars}, &fakeOptions{}, &fakeFeatures{})
	truncated := newTestEngine(&fakePrices{bars: bars[:81]}, &fakeOptions{}, &fakeFeatures{})

	recFull, err := full.Compute(context.Background(), "NVDA", target)
	require.NoError(t, err)
	recTrunc, err := truncated.Compute(context.Background(), "NVDA", target)
	require.NoError(t, err)

	assert.Equal(t, recTrunc.RV20, recFull.RV20)
	assert.Equal(t, recTrunc.RV60, recFull.RV60)
	assert.Equal(t, recTrunc.ATR14, recFull.ATR14)
	assert.Equal(t, recTrunc.RV20Percentile, recFull.RV20Percentile)
}

func TestComputeQualitySufficient(t *testing.T) {
	bars := genBars(61)
	date := bars[len(bars)-1].Date

	// Seed 252 strictly-prior records.
	repo := &fakeFeatures{}
	for i := 0; i < 252; i++ {
		repo.records = append(repo.records, &contracts.FeatureRecord{
			Symbol: "NVDA",
			Date:   date.AddDate(0, 0, -(252 - i)),
			RV20:   0.10 + float64(i)*0.001,
			ATR14:  1.0 + float64(i)*0.01,
		})
	}

	engine := newTestEngine(&fakePrices{bars: bars}, &fakeOptions{}, repo)
	rec, err := engine.Compute(context.Background(), "NVDA", date)
	require.NoError(t, err)

	assert.Equal(t, contracts.QualitySufficient, rec.PercentileQuality)
	assert.GreaterOrEqual(t, rec.RV20Percentile, 0.0)
	assert.LessOrEqual(t, rec.RV20Percentile, 1.0)
	assert.False(t, math.IsNaN(rec.ATR14Percentile))
}

func TestComputeIdempotentOverwrite(t *testing.T) {
	bars := genBars(61)
	date := bars[len(bars)-1].Date
	repo := &fakeFeatures{}
	engine := newTestEngine(&fakePrices{bars: bars}, &fakeOptions{}, repo)

	first, err := engine.Compute(context.Background(), "NVDA", date)
	require.NoError(t, err)
	second, err := engine.Compute(context.Background(), "NVDA", date)
	require.NoError(t, err)

	require.Len(t, repo.records, 1)
	assert.Equal(t, first.RV20, second.RV20)
	assert.Equal(t, first.ATR14, second.ATR14)
}
