package volregime

import (
	"context"
	"fmt"
	"time"

	"github.com/voltlab/regimeflow/internal/contracts"
	"github.com/voltlab/regimeflow/internal/strategy"
	"github.com/voltlab/regimeflow/pkg/logger"
)

const (
	// momentumDays is the lookback of the direction momentum.
	momentumDays = 20

	// Sizing bounds: the volatility scale is clipped to [0.5, 1.5] and the
	// final exposure fraction to [0.10, 0.50].
	scaleMin    = 0.5
	scaleMax    = 1.5
	exposureMin = 0.10
	exposureMax = 0.50

	// volEpsilon floors the rv60 denominator in the sizing scale. A dead-flat
	// price series has rv60 = 0; the floor keeps the scale finite (it is
	// clipped to scaleMax immediately after).
	volEpsilon = 1e-9
)

// Strategy is the volatility-regime trading strategy: trade only when
// volatility percentiles say the regime is on, direction from 20-day momentum
// confirmed by options sentiment, exposure scaled inversely to rv60.
// ⭐ SSOT: 시그널 생성은 여기서만
type Strategy struct {
	params strategy.Params
	logger *logger.Logger
}

// New validates the parameters and builds the strategy. Invalid parameters
// fail construction; nothing is silently defaulted.
func New(params strategy.Params, log *logger.Logger) (*Strategy, error) {
	if err := strategy.Validate(&params); err != nil {
		return nil, err
	}
	return &Strategy{params: params, logger: log}, nil
}

// ID returns the strategy identifier.
func (s *Strategy) ID() string {
	return s.params.Meta.StrategyID
}

// Params returns the validated parameter document.
func (s *Strategy) Params() strategy.Params {
	return s.params
}

// GenerateSignal evaluates one (symbol, date). Pure function of the input:
// repeated invocations return bit-identical signals and explanations.
func (s *Strategy) GenerateSignal(ctx context.Context, symbol string, date time.Time, in contracts.StrategyInput) (*contracts.Signal, error) {
	if in.Features == nil {
		return nil, fmt.Errorf("volregime: feature record required for %s", symbol)
	}

	regime := s.evaluateRegime(in.Features)
	direction := s.evaluateDirection(in.Features, in.Closes)
	risk := s.CheckRiskControls(ctx, symbol, in)

	// Regime off or any active risk control forces FLAT. The direction and
	// risk snapshot stay in the explanation either way.
	sigType := contracts.SignalFlat
	if regime.On && !risk.AnyActive() {
		sigType = direction.Direction
	}

	var sizing contracts.SizingCheck
	if sigType != contracts.SignalFlat {
		sizing = s.evaluateSizing(in.Features)
	}

	sig := &contracts.Signal{
		StrategyID:     s.ID(),
		Symbol:         symbol,
		Date:           date,
		Type:           sigType,
		TargetExposure: sizing.TargetExposure,
		Momentum20:     direction.Momentum20,
		Explanation: contracts.SignalExplanation{
			Regime:       regime,
			Direction:    direction,
			Sizing:       sizing,
			RiskControls: risk,
		},
	}

	s.logger.WithFields(map[string]interface{}{
		"strategy": s.ID(),
		"symbol":   symbol,
		"date":     date.Format("2006-01-02"),
		"signal":   sig.Type,
		"exposure": sig.TargetExposure,
		"regime":   regime.On,
		"forced":   risk.AnyActive(),
	}).Debug("Generated signal")

	return sig, nil
}

// evaluateRegime applies the three-part gate. The IV rule is a disjunction:
// elevated IV percentile OR upward-sloping term structure.
func (s *Strategy) evaluateRegime(f *contracts.FeatureRecord) contracts.RegimeCheck {
	p := s.params.Regime

	rv20Rule := contracts.RegimeRule{
		Name:      "rv20_percentile",
		Value:     f.RV20Percentile,
		Threshold: p.RV20PercentileMin,
		Passed:    f.RV20Percentile >= p.RV20PercentileMin,
	}
	atrRule := contracts.RegimeRule{
		Name:      "atr14_percentile",
		Value:     f.ATR14Percentile,
		Threshold: p.ATR14PercentileMin,
		Passed:    f.ATR14Percentile >= p.ATR14PercentileMin,
	}

	ivRule := contracts.RegimeRule{Name: "iv_median_percentile", Threshold: p.IVPercentileMin}
	if f.IVMedianPercentile != nil {
		ivRule.Value = *f.IVMedianPercentile
		ivRule.Passed = *f.IVMedianPercentile >= p.IVPercentileMin
	}
	slopeRule := contracts.RegimeRule{Name: "iv_slope_positive", Threshold: 0}
	if f.IVSlope != nil {
		slopeRule.Value = *f.IVSlope
		slopeRule.Passed = *f.IVSlope > 0
	}

	return contracts.RegimeCheck{
		On:    rv20Rule.Passed && atrRule.Passed && (ivRule.Passed || slopeRule.Passed),
		Rules: []contracts.RegimeRule{rv20Rule, atrRule, ivRule, slopeRule},
	}
}

// evaluateDirection combines 20-day momentum with options sentiment.
// Missing 20-bar history yields FLAT with a nil momentum.
func (s *Strategy) evaluateDirection(f *contracts.FeatureRecord, closes []float64) contracts.DirectionCheck {
	check := contracts.DirectionCheck{
		CallPutVolumeRatio: f.CallPutVolumeRatio,
		CallPutOIRatio:     f.CallPutOIRatio,
		Direction:          contracts.SignalFlat,
	}

	n := len(closes)
	if n >= momentumDays+1 && closes[n-momentumDays-1] > 0 {
		mom := closes[n-1]/closes[n-momentumDays-1] - 1
		check.Momentum20 = &mom
	}

	check.Sentiment = s.sentiment(f)

	if check.Momentum20 == nil {
		return check
	}
	switch {
	case *check.Momentum20 > 0 && check.Sentiment >= 0:
		check.Direction = contracts.SignalLong
	case *check.Momentum20 < 0 && check.Sentiment <= 0:
		check.Direction = contracts.SignalShort
	}
	return check
}

// sentiment scores options flow: +1 only when both ratios are bullish,
// -1 only when both are bearish, 0 otherwise (including missing options).
func (s *Strategy) sentiment(f *contracts.FeatureRecord) int {
	if f.CallPutVolumeRatio == nil || f.CallPutOIRatio == nil {
		return 0
	}
	vol, oi := *f.CallPutVolumeRatio, *f.CallPutOIRatio
	p := s.params.Direction
	switch {
	case vol >= p.BullishRatioMin && oi >= p.BullishRatioMin:
		return 1
	case vol <= p.BearishRatioMax && oi <= p.BearishRatioMax:
		return -1
	default:
		return 0
	}
}

// evaluateSizing scales the base exposure inversely with rv60:
// scale = clip(rv60_target / max(rv60, ε), 0.5, 1.5)
// exposure = clip(base * scale, 0.10, 0.50)
func (s *Strategy) evaluateSizing(f *contracts.FeatureRecord) contracts.SizingCheck {
	rv60 := f.RV60
	denom := rv60
	if denom < volEpsilon {
		denom = volEpsilon
	}
	scale := clip(s.params.Sizing.RV60Target/denom, scaleMin, scaleMax)
	exposure := clip(s.params.Sizing.BaseExposure*scale, exposureMin, exposureMax)

	return contracts.SizingCheck{
		RV60:           rv60,
		Scale:          scale,
		BaseExposure:   s.params.Sizing.BaseExposure,
		TargetExposure: exposure,
	}
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
