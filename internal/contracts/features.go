package contracts

import "time"

// PercentileQuality marks how trustworthy the percentile ranks of a
// FeatureRecord are. Below 252 prior observations the percentile is still
// computed best-effort but flagged insufficient so downstream consumers can
// discount confidence.
type PercentileQuality string

const (
	QualitySufficient   PercentileQuality = "sufficient"
	QualityInsufficient PercentileQuality = "insufficient"
)

// FeatureRecord is the fixed-shape, point-in-time feature snapshot for one
// (symbol, date). Derived, append-only; recomputation overwrites the same key.
// ⭐ SSOT: 날짜 D의 레코드는 date <= D 데이터만으로 계산됨 (no lookahead)
type FeatureRecord struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`

	// Volatility / range. Always present: the engine requires >= 61 bars.
	RV20  float64 `json:"rv20"`
	RV60  float64 `json:"rv60"`
	ATR14 float64 `json:"atr14"`

	// Options metrics. Nil when the date has no options snapshot.
	IVMedian           *float64 `json:"iv_median,omitempty"`
	IVSlope            *float64 `json:"iv_slope,omitempty"`
	CallPutVolumeRatio *float64 `json:"call_put_volume_ratio,omitempty"`
	CallPutOIRatio     *float64 `json:"call_put_oi_ratio,omitempty"`

	// Percentile ranks against strictly-prior history for the same symbol.
	RV20Percentile     float64  `json:"rv20_percentile"`
	ATR14Percentile    float64  `json:"atr14_percentile"`
	IVMedianPercentile *float64 `json:"iv_median_percentile,omitempty"`

	PercentileQuality PercentileQuality `json:"percentile_quality"`
}

// HasOptions reports whether options-derived metrics are present.
func (f *FeatureRecord) HasOptions() bool {
	return f.IVMedian != nil
}
