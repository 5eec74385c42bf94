package features

import "github.com/voltlab/regimeflow/internal/contracts"

// Expiry buckets for the IV term-structure slope. Near is the 7-21 day
// bucket, far the 60-120 day bucket; an empty bucket falls back to the single
// closest/furthest expiry with positive IV.
const (
	nearBucketMinDays = 7
	nearBucketMaxDays = 21
	farBucketMinDays  = 60
	farBucketMaxDays  = 120
)

// ratioEpsilon floors call/put ratio denominators. Zero put volume or open
// interest would otherwise divide by zero; the floor keeps the ratio finite
// while preserving its "extremely call-heavy" reading.
const ratioEpsilon = 1e-9

// optionsMetrics is the options-derived slice of a FeatureRecord.
type optionsMetrics struct {
	ivMedian          float64
	ivSlope           *float64
	volumeRatio       float64
	openInterestRatio float64
}

// computeOptionsMetrics derives IV and flow metrics from one snapshot.
// Reports ok=false when the snapshot has no expiry with positive IV.
func computeOptionsMetrics(snap *contracts.OptionsSnapshot) (optionsMetrics, bool) {
	var m optionsMetrics

	ivs := make([]float64, 0, len(snap.Expiries))
	for _, e := range snap.Expiries {
		if e.MedianIV > 0 {
			ivs = append(ivs, e.MedianIV)
		}
	}
	if len(ivs) == 0 {
		return m, false
	}
	m.ivMedian = median(ivs)

	if slope, ok := ivSlope(snap.Expiries); ok {
		m.ivSlope = &slope
	}

	m.volumeRatio = float64(snap.CallVolume) / maxFloat(float64(snap.PutVolume), ratioEpsilon)
	m.openInterestRatio = float64(snap.CallOpenInterest) / maxFloat(float64(snap.PutOpenInterest), ratioEpsilon)
	return m, true
}

// ivSlope is near-bucket median IV minus far-bucket median IV.
func ivSlope(expiries []contracts.OptionExpiry) (float64, bool) {
	near, nearOK := bucketMedian(expiries, nearBucketMinDays, nearBucketMaxDays, false)
	far, farOK := bucketMedian(expiries, farBucketMinDays, farBucketMaxDays, true)
	if !nearOK || !farOK {
		return 0, false
	}
	return near - far, true
}

// bucketMedian returns the median IV of expiries inside [minDays, maxDays].
// When the bucket is empty it falls back to the single closest (or, for the
// far bucket, furthest) expiry with positive IV.
func bucketMedian(expiries []contracts.OptionExpiry, minDays, maxDays int, furthest bool) (float64, bool) {
	var inBucket []float64
	for _, e := range expiries {
		if e.MedianIV > 0 && e.DaysToExpiry >= minDays && e.DaysToExpiry <= maxDays {
			inBucket = append(inBucket, e.MedianIV)
		}
	}
	if len(inBucket) > 0 {
		return median(inBucket), true
	}

	// Fallback: single nearest/furthest positive-IV expiry.
	best := -1
	for i, e := range expiries {
		if e.MedianIV <= 0 {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		if furthest && e.DaysToExpiry > expiries[best].DaysToExpiry {
			best = i
		}
		if !furthest && e.DaysToExpiry < expiries[best].DaysToExpiry {
			best = i
		}
	}
	if best < 0 {
		return 0, false
	}
	return expiries[best].MedianIV, true
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
