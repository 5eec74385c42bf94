package features

import (
	"math"
	"testing"

	"github.com/voltlab/regimeflow/internal/contracts"
)

func snapshot(expiries ...contracts.OptionExpiry) *contracts.OptionsSnapshot {
	return &contracts.OptionsSnapshot{
		Expiries:         expiries,
		CallVolume:       1200,
		PutVolume:        1000,
		CallOpenInterest: 500,
		PutOpenInterest:  400,
	}
}

func expiry(days int, iv float64) contracts.OptionExpiry {
	return contracts.OptionExpiry{DaysToExpiry: days, MedianIV: iv}
}

func TestComputeOptionsMetrics(t *testing.T) {
	snap := snapshot(
		expiry(10, 0.40),
		expiry(14, 0.50),
		expiry(90, 0.30),
	)

	m, ok := computeOptionsMetrics(snap)
	if !ok {
		t.Fatal("Expected metrics with positive IVs")
	}

	if m.ivMedian != 0.40 {
		t.Errorf("Expected iv_median 0.40, got %f", m.ivMedian)
	}
	if m.ivSlope == nil {
		t.Fatal("Expected iv_slope with both buckets populated")
	}
	// Near bucket median 0.45, far bucket 0.30.
	if math.Abs(*m.ivSlope-0.15) > 1e-12 {
		t.Errorf("Expected iv_slope 0.15, got %f", *m.ivSlope)
	}
	if math.Abs(m.volumeRatio-1.2) > 1e-12 {
		t.Errorf("Expected volume ratio 1.2, got %f", m.volumeRatio)
	}
	if math.Abs(m.openInterestRatio-1.25) > 1e-12 {
		t.Errorf("Expected OI ratio 1.25, got %f", m.openInterestRatio)
	}
}

func TestComputeOptionsMetricsNoPositiveIV(t *testing.T) {
	snap := snapshot(expiry(10, 0), expiry(90, -1))
	if _, ok := computeOptionsMetrics(snap); ok {
		t.Error("Expected ok=false with no positive IVs")
	}
}

func TestComputeOptionsMetricsZeroPutVolume(t *testing.T) {
	snap := snapshot(expiry(10, 0.40))
	snap.PutVolume = 0
	snap.PutOpenInterest = 0

	m, ok := computeOptionsMetrics(snap)
	if !ok {
		t.Fatal("Expected metrics")
	}
	// Epsilon-floored denominator: finite but extremely call-heavy.
	if math.IsInf(m.volumeRatio, 0) || math.IsNaN(m.volumeRatio) {
		t.Errorf("Expected finite ratio, got %f", m.volumeRatio)
	}
	if m.volumeRatio < 1e9 {
		t.Errorf("Expected very large ratio, got %f", m.volumeRatio)
	}
}

func TestIVSlopeBucketFallback(t *testing.T) {
	// No expiry lands in either bucket: nearest (5d) and furthest (200d)
	// positive-IV expiries stand in.
	expiries := []contracts.OptionExpiry{
		expiry(5, 0.60),
		expiry(40, 0.45),
		expiry(200, 0.35),
	}

	slope, ok := ivSlope(expiries)
	if !ok {
		t.Fatal("Expected slope via fallback")
	}
	if math.Abs(slope-0.25) > 1e-12 {
		t.Errorf("Expected slope 0.25, got %f", slope)
	}
}

func TestIVSlopeUnavailable(t *testing.T) {
	if _, ok := ivSlope(nil); ok {
		t.Error("Expected ok=false with no expiries")
	}
	if _, ok := ivSlope([]contracts.OptionExpiry{expiry(10, 0)}); ok {
		t.Error("Expected ok=false with no positive IVs")
	}
}

func TestBucketMedianPrefersInBucket(t *testing.T) {
	expiries := []contracts.OptionExpiry{
		expiry(5, 0.90), // outside, closer than bucket members
		expiry(10, 0.40),
		expiry(20, 0.50),
	}

	got, ok := bucketMedian(expiries, nearBucketMinDays, nearBucketMaxDays, false)
	if !ok {
		t.Fatal("Expected bucket median")
	}
	if got != 0.45 {
		t.Errorf("Expected in-bucket median 0.45, got %f", got)
	}
}
