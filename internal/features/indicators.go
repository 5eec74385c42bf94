package features

import (
	"math"
	"sort"

	"github.com/voltlab/regimeflow/internal/contracts"
)

// TradingDaysPerYear annualizes daily volatility (×√252).
const TradingDaysPerYear = 252

// logReturns computes r_t = ln(C_t / C_{t-1}) over effective closes.
// Returns len(closes)-1 values; non-positive closes contribute 0.
func logReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev, cur := closes[i-1], closes[i]
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// realizedVol computes the annualized sample standard deviation of log
// returns over the trailing window. Needs window+1 closes; reports ok=false
// below that.
func realizedVol(closes []float64, window int) (float64, bool) {
	if window < 2 || len(closes) < window+1 {
		return 0, false
	}
	rets := logReturns(closes[len(closes)-window-1:])

	var sum, sum2 float64
	for _, r := range rets {
		sum += r
		sum2 += r * r
	}
	n := float64(len(rets))
	mean := sum / n
	variance := (sum2 - n*mean*mean) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance) * math.Sqrt(TradingDaysPerYear), true
}

// trueRange is max(high-low, |high-prevClose|, |low-prevClose|).
func trueRange(bar, prev *contracts.PriceBar) float64 {
	tr := bar.High - bar.Low
	if v := math.Abs(bar.High - prev.Close); v > tr {
		tr = v
	}
	if v := math.Abs(bar.Low - prev.Close); v > tr {
		tr = v
	}
	return tr
}

// wilderATR computes the Wilder-smoothed average true range over the trailing
// period+1 bars: the first TR seeds the recursion, each subsequent TR is
// blended with weight 1/period. Needs period+1 bars; reports ok=false below.
func wilderATR(bars []*contracts.PriceBar, period int) (float64, bool) {
	if period < 1 || len(bars) < period+1 {
		return 0, false
	}
	window := bars[len(bars)-period-1:]
	alpha := 1.0 / float64(period)

	atr := trueRange(window[1], window[0])
	for i := 2; i < len(window); i++ {
		tr := trueRange(window[i], window[i-1])
		atr += alpha * (tr - atr)
	}
	return atr, true
}

// median returns the median of values (input left unmodified).
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// percentileRank returns the fraction of the sample that is <= value.
// An empty sample ranks 0 (caller flags quality separately).
func percentileRank(sample []float64, value float64) float64 {
	if len(sample) == 0 {
		return 0
	}
	count := 0
	for _, v := range sample {
		if v <= value {
			count++
		}
	}
	return float64(count) / float64(len(sample))
}
