package volregime

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltlab/regimeflow/internal/contracts"
	"github.com/voltlab/regimeflow/internal/strategy"
	"github.com/voltlab/regimeflow/pkg/config"
	"github.com/voltlab/regimeflow/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(&config.Config{Env: "development", LogLevel: "error", LogFormat: "json"})
}

func newTestStrategy(t *testing.T) *Strategy {
	t.Helper()
	s, err := New(strategy.DefaultParams(), testLogger())
	require.NoError(t, err)
	return s
}

func fp(v float64) *float64 { return &v }

// hotFeatures is a feature record that passes the full regime gate.
func hotFeatures() *contracts.FeatureRecord {
	return &contracts.FeatureRecord{
		Symbol:             "NVDA",
		RV20:               0.35,
		RV60:               0.20,
		ATR14:              5.0,
		RV20Percentile:     0.75,
		ATR14Percentile:    0.70,
		IVMedian:           fp(0.45),
		IVMedianPercentile: fp(0.80),
		IVSlope:            fp(0.05),
		CallPutVolumeRatio: fp(1.5),
		CallPutOIRatio:     fp(1.4),
		PercentileQuality:  contracts.QualitySufficient,
	}
}

// risingCloses yields 21 closes with positive 20-day momentum.
func risingCloses() []float64 {
	closes := make([]float64, 21)
	for i := range closes {
		closes[i] = 100 + float64(i)*0.5
	}
	return closes
}

func fallingCloses() []float64 {
	closes := make([]float64, 21)
	for i := range closes {
		closes[i] = 110 - float64(i)*0.5
	}
	return closes
}

func evalDate() time.Time {
	return time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
}

func TestGenerateSignalLong(t *testing.T) {
	s := newTestStrategy(t)

	sig, err := s.GenerateSignal(context.Background(), "NVDA", evalDate(), contracts.StrategyInput{
		Features: hotFeatures(),
		Closes:   risingCloses(),
	})
	require.NoError(t, err)

	assert.Equal(t, contracts.SignalLong, sig.Type)
	// rv60 equals the target: scale 1.0, exposure = base.
	assert.InDelta(t, 0.30, sig.TargetExposure, 1e-12)
	require.NotNil(t, sig.Momentum20)
	assert.Greater(t, *sig.Momentum20, 0.0)
	assert.True(t, sig.Explanation.Regime.On)
	assert.Len(t, sig.Explanation.Regime.Rules, 4)
	assert.Equal(t, 1, sig.Explanation.Direction.Sentiment)
}

func TestGenerateSignalShort(t *testing.T) {
	s := newTestStrategy(t)

	f := hotFeatures()
	f.CallPutVolumeRatio = fp(0.5)
	f.CallPutOIRatio = fp(0.6)

	sig, err := s.GenerateSignal(context.Background(), "NVDA", evalDate(), contracts.StrategyInput{
		Features: f,
		Closes:   fallingCloses(),
	})
	require.NoError(t, err)

	assert.Equal(t, contracts.SignalShort, sig.Type)
	assert.Equal(t, -1, sig.Explanation.Direction.Sentiment)
	assert.Greater(t, sig.TargetExposure, 0.0)
}

func TestGenerateSignalRegimeOffForcesFlat(t *testing.T) {
	s := newTestStrategy(t)

	f := hotFeatures()
	f.RV20Percentile = 0.30 // below the 0.60 gate

	sig, err := s.GenerateSignal(context.Background(), "NVDA", evalDate(), contracts.StrategyInput{
		Features: f,
		Closes:   risingCloses(),
	})
	require.NoError(t, err)

	assert.Equal(t, contracts.SignalFlat, sig.Type)
	assert.Equal(t, 0.0, sig.TargetExposure)
	assert.False(t, sig.Explanation.Regime.On)
	// Momentum is still recorded on a FLAT signal: the reversal-exit control
	// reads it from history later.
	assert.NotNil(t, sig.Momentum20)
	// Direction evaluation is recorded even though the gate forced FLAT.
	assert.Equal(t, contracts.SignalLong, sig.Explanation.Direction.Direction)
}

func TestGenerateSignalConflictingSentimentFlat(t *testing.T) {
	s := newTestStrategy(t)

	// Positive momentum but bearish options flow: no consensus, no trade.
	f := hotFeatures()
	f.CallPutVolumeRatio = fp(0.5)
	f.CallPutOIRatio = fp(0.6)

	sig, err := s.GenerateSignal(context.Background(), "NVDA", evalDate(), contracts.StrategyInput{
		Features: f,
		Closes:   risingCloses(),
	})
	require.NoError(t, err)

	assert.Equal(t, contracts.SignalFlat, sig.Type)
	assert.Equal(t, 0.0, sig.TargetExposure)
}

func TestRegimeIVDisjunction(t *testing.T) {
	s := newTestStrategy(t)

	// IV percentile below the gate but a positive term-structure slope keeps
	// the regime on.
	f := hotFeatures()
	f.IVMedianPercentile = fp(0.20)
	f.IVSlope = fp(0.03)

	regime := s.evaluateRegime(f)
	assert.True(t, regime.On)

	// Both IV rules failing turns the regime off.
	f.IVSlope = fp(-0.02)
	regime = s.evaluateRegime(f)
	assert.False(t, regime.On)
}

func TestRegimeMissingOptionsRules(t *testing.T) {
	s := newTestStrategy(t)

	// No options data at all: both IV rules fail, regime off.
	f := hotFeatures()
	f.IVMedian = nil
	f.IVMedianPercentile = nil
	f.IVSlope = nil
	f.CallPutVolumeRatio = nil
	f.CallPutOIRatio = nil

	regime := s.evaluateRegime(f)
	assert.False(t, regime.On)
}

func TestDirectionMissingHistory(t *testing.T) {
	s := newTestStrategy(t)

	check := s.evaluateDirection(hotFeatures(), []float64{100, 101, 102})
	assert.Nil(t, check.Momentum20)
	assert.Equal(t, contracts.SignalFlat, check.Direction)
}

func TestSentimentRequiresBothRatios(t *testing.T) {
	s := newTestStrategy(t)

	tests := []struct {
		name string
		vol  *float64
		oi   *float64
		want int
	}{
		{"both bullish", fp(1.5), fp(1.3), 1},
		{"both bearish", fp(0.5), fp(0.7), -1},
		{"split", fp(1.5), fp(0.5), 0},
		{"one neutral", fp(1.5), fp(1.0), 0},
		{"missing", nil, fp(1.5), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := hotFeatures()
			f.CallPutVolumeRatio = tt.vol
			f.CallPutOIRatio = tt.oi
			assert.Equal(t, tt.want, s.sentiment(f))
		})
	}
}

func TestSizing(t *testing.T) {
	s := newTestStrategy(t)

	tests := []struct {
		name         string
		rv60         float64
		wantScale    float64
		wantExposure float64
	}{
		{"at target", 0.20, 1.0, 0.30},
		{"calm market scales up", 0.05, 1.5, 0.45}, // 0.2/0.05=4 clipped to 1.5
		{"hot market scales down", 1.0, 0.5, 0.15}, // 0.2/1.0=0.2 clipped to 0.5
		{"zero vol clips at max", 0, 1.5, 0.45},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := hotFeatures()
			f.RV60 = tt.rv60
			sizing := s.evaluateSizing(f)
			assert.InDelta(t, tt.wantScale, sizing.Scale, 1e-12)
			assert.InDelta(t, tt.wantExposure, sizing.TargetExposure, 1e-12)
		})
	}
}

func TestSizingExposureFloor(t *testing.T) {
	params := strategy.DefaultParams()
	params.Sizing.BaseExposure = 0.05
	s, err := New(params, testLogger())
	require.NoError(t, err)

	f := hotFeatures()
	f.RV60 = 1.0 // scale clips to 0.5; raw exposure 0.025
	sizing := s.evaluateSizing(f)
	assert.InDelta(t, 0.10, sizing.TargetExposure, 1e-12)
}

func TestGenerateSignalDeterministic(t *testing.T) {
	s := newTestStrategy(t)
	in := contracts.StrategyInput{
		Features: hotFeatures(),
		Closes:   risingCloses(),
	}

	first, err := s.GenerateSignal(context.Background(), "NVDA", evalDate(), in)
	require.NoError(t, err)
	second, err := s.GenerateSignal(context.Background(), "NVDA", evalDate(), in)
	require.NoError(t, err)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Identical inputs produced different signals:\n%+v\n%+v", first, second)
	}
}

func TestGenerateSignalRequiresFeatures(t *testing.T) {
	s := newTestStrategy(t)
	_, err := s.GenerateSignal(context.Background(), "NVDA", evalDate(), contracts.StrategyInput{})
	assert.Error(t, err)
}

func TestInvalidParamsFailConstruction(t *testing.T) {
	params := strategy.DefaultParams()
	params.Sizing.RV60Target = -1
	_, err := New(params, testLogger())
	assert.Error(t, err)
}
