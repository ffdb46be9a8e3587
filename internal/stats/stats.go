// Package stats implements the return/risk statistics kernel: cumulative and
// annualized returns, drawdown series, Sharpe/Sortino/Calmar/Omega ratios,
// OLS alpha/beta, capture ratios, tail statistics, bootstrap resampling, and
// Generalized Pareto Distribution (GPD) tail-risk estimation.
//
// Conventions:
//
//   - Functions operate on plain []float64 return series ordered oldest to
//     newest. Date alignment belongs to the caller (see the timeseries
//     package); two-series statistics expect already-aligned inputs.
//   - NaN observations are skipped the way numpy's nan-aware reductions skip
//     them; cumulative compounding treats NaN as 0.
//   - Sample standard deviations use ddof=1 unless noted.
//   - Below the minimum sample size (fewer than 2 observations for most
//     statistics) functions return NaN rather than failing: numerical
//     degeneracy is a value, not an error.
package stats

import (
	"math"
	"sort"
)

// Period describes the sampling frequency of a return series for
// annualization purposes.
type Period string

const (
	Daily   Period = "daily"
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
	Yearly  Period = "yearly"
)

// Approximate observation counts per year by period.
const (
	DailyFactor   = 252
	WeeklyFactor  = 52
	MonthlyFactor = 12
	YearlyFactor  = 1
)

// annualizationFactor resolves the periods-per-year factor. A positive
// override wins over the period default.
func annualizationFactor(period Period, annualization int) float64 {
	if annualization > 0 {
		return float64(annualization)
	}
	switch period {
	case Weekly:
		return WeeklyFactor
	case Monthly:
		return MonthlyFactor
	case Yearly:
		return YearlyFactor
	default:
		return DailyFactor
	}
}

// SimpleReturns converts a price series into simple returns. The result has
// one fewer element than the input.
func SimpleReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		out[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
	}
	return out
}

// CumReturns compounds simple returns into a cumulative series. NaN returns
// compound as 0. With startingValue 0 the series is Π(1+r) − 1; otherwise it
// is Π(1+r) × startingValue.
func CumReturns(returns []float64, startingValue float64) []float64 {
	out := make([]float64, len(returns))
	acc := 1.0
	for i, r := range returns {
		if math.IsNaN(r) {
			r = 0
		}
		acc *= 1 + r
		if startingValue == 0 {
			out[i] = acc - 1
		} else {
			out[i] = acc * startingValue
		}
	}
	return out
}

// CumReturnsFinal returns the last value of CumReturns, or NaN for an empty
// series.
func CumReturnsFinal(returns []float64, startingValue float64) float64 {
	if len(returns) == 0 {
		return math.NaN()
	}
	acc := 1.0
	for _, r := range returns {
		if math.IsNaN(r) {
			r = 0
		}
		acc *= 1 + r
	}
	if startingValue == 0 {
		return acc - 1
	}
	return acc * startingValue
}

// DrawdownSeries returns the per-observation drawdown: the cumulative value
// relative to its running maximum, minus 1. Compounding is seeded at 100 so
// the running maximum can never be zero.
func DrawdownSeries(returns []float64) []float64 {
	out := make([]float64, len(returns))
	acc := 100.0
	runMax := 100.0
	for i, r := range returns {
		if math.IsNaN(r) {
			r = 0
		}
		acc *= 1 + r
		if acc > runMax {
			runMax = acc
		}
		out[i] = (acc - runMax) / runMax
	}
	return out
}

// MaxDrawdown returns the minimum of the drawdown series: always ≤ 0, and 0
// only when the cumulative value never declines. NaN for an empty series.
func MaxDrawdown(returns []float64) float64 {
	if len(returns) < 1 {
		return math.NaN()
	}
	minDD := 0.0
	for _, dd := range DrawdownSeries(returns) {
		if dd < minDD {
			minDD = dd
		}
	}
	return minDD
}

// AnnualReturn determines the compound annual growth rate:
// (final cumulative value)^(factor/n) − 1.
func AnnualReturn(returns []float64, period Period, annualization int) float64 {
	if len(returns) < 1 {
		return math.NaN()
	}
	factor := annualizationFactor(period, annualization)
	numYears := float64(len(returns)) / factor
	ending := CumReturnsFinal(returns, 1)
	return math.Pow(ending, 1/numYears) - 1
}

// AnnualVolatility is the sample standard deviation scaled by the square
// root of the annualization factor.
func AnnualVolatility(returns []float64, period Period, annualization int) float64 {
	if len(returns) < 2 {
		return math.NaN()
	}
	factor := annualizationFactor(period, annualization)
	return nanStd(returns, 1) * math.Sqrt(factor)
}

// Volatility estimates the volatility of a price (or valuation) series as
// the sample standard deviation of its log returns scaled by the square root
// of the series length.
func Volatility(prices []float64) float64 {
	if len(prices) < 1 {
		return math.NaN()
	}
	logReturns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		logReturns[i-1] = math.Log(prices[i] / prices[i-1])
	}
	return nanStd(logReturns, 1) * math.Sqrt(float64(len(prices)))
}

// SharpeRatio is mean(excess return) / std(excess return, ddof=1) scaled by
// the square root of the annualization factor.
func SharpeRatio(returns []float64, riskFree float64, period Period, annualization int) float64 {
	if len(returns) < 2 {
		return math.NaN()
	}
	adj := adjustReturns(returns, riskFree)
	factor := annualizationFactor(period, annualization)
	return nanMean(adj) / nanStd(adj, 1) * math.Sqrt(factor)
}

// SortinoRatio is the annualized mean excess return over the annualized
// downside risk below requiredReturn.
func SortinoRatio(returns []float64, requiredReturn float64, period Period, annualization int) float64 {
	if len(returns) < 2 {
		return math.NaN()
	}
	factor := annualizationFactor(period, annualization)
	avgAnnual := nanMean(adjustReturns(returns, requiredReturn)) * factor
	return avgAnnual / DownsideRisk(returns, requiredReturn, period, annualization)
}

// DownsideRisk is the downside deviation below requiredReturn: the root
// mean square of the clamped-below-zero excess returns, annualized.
func DownsideRisk(returns []float64, requiredReturn float64, period Period, annualization int) float64 {
	if len(returns) < 1 {
		return math.NaN()
	}
	factor := annualizationFactor(period, annualization)
	sq := make([]float64, len(returns))
	for i, r := range returns {
		d := r - requiredReturn
		if d > 0 {
			d = 0
		}
		sq[i] = d * d
	}
	return math.Sqrt(nanMean(sq)) * math.Sqrt(factor)
}

// CalmarRatio is the annual return over the absolute max drawdown. NaN when
// the drawdown is not negative or the ratio is infinite.
func CalmarRatio(returns []float64, period Period, annualization int) float64 {
	maxDD := MaxDrawdown(returns)
	if !(maxDD < 0) {
		return math.NaN()
	}
	ratio := AnnualReturn(returns, period, annualization) / math.Abs(maxDD)
	if math.IsInf(ratio, 0) {
		return math.NaN()
	}
	return ratio
}

// OmegaRatio is the sum of returns above the threshold over the absolute sum
// of returns below it. requiredReturn is interpreted as annual and converted
// with the annualization factor (factor 1 uses it as-is); requiredReturn ≤ −1
// with a factor above 1 yields NaN, as does a zero denominator.
func OmegaRatio(returns []float64, riskFree, requiredReturn float64, annualization int) float64 {
	if len(returns) < 2 {
		return math.NaN()
	}
	factor := float64(annualization)
	if annualization <= 0 {
		factor = DailyFactor
	}
	var threshold float64
	switch {
	case factor == 1:
		threshold = requiredReturn
	case requiredReturn <= -1:
		return math.NaN()
	default:
		threshold = math.Pow(1+requiredReturn, 1/factor) - 1
	}
	var numer, denom float64
	for _, r := range returns {
		v := r - riskFree - threshold
		if v > 0 {
			numer += v
		} else if v < 0 {
			denom -= v
		}
	}
	if denom > 0 {
		return numer / denom
	}
	return math.NaN()
}

// Beta is the OLS regression slope of returns against factorReturns on
// already-aligned series. Observations where either side is NaN are skipped;
// a factor variance below 1e-30 yields NaN.
func Beta(returns, factorReturns []float64) float64 {
	if len(returns) < 1 || len(factorReturns) < 2 {
		return math.NaN()
	}
	independent := make([]float64, len(returns))
	for i := range returns {
		if math.IsNaN(returns[i]) {
			independent[i] = math.NaN()
		} else {
			independent[i] = factorReturns[i]
		}
	}
	indMean := nanMean(independent)

	cov := make([]float64, len(returns))
	variance := make([]float64, len(returns))
	for i := range returns {
		residual := independent[i] - indMean
		cov[i] = residual * returns[i]
		variance[i] = residual * residual
	}
	v := nanMean(variance)
	if v < 1e-30 {
		return math.NaN()
	}
	return nanMean(cov) / v
}

// Alpha is the annualized regression intercept of returns against
// factorReturns: (mean(excess − β×factor excess) + 1)^factor − 1.
func Alpha(returns, factorReturns []float64, riskFree float64, period Period, annualization int) float64 {
	a, _ := AlphaBeta(returns, factorReturns, riskFree, period, annualization)
	return a
}

// AlphaBeta computes both regression coefficients in one pass.
func AlphaBeta(returns, factorReturns []float64, riskFree float64, period Period, annualization int) (alpha, beta float64) {
	beta = Beta(returns, factorReturns)
	if len(returns) < 2 {
		return math.NaN(), beta
	}
	factor := annualizationFactor(period, annualization)
	series := make([]float64, len(returns))
	for i := range returns {
		series[i] = (returns[i] - riskFree) - beta*(factorReturns[i]-riskFree)
	}
	alpha = math.Pow(nanMean(series)+1, factor) - 1
	return alpha, beta
}

// ExcessSharpe is the information ratio of returns over factorReturns: mean
// active return over its sample standard deviation, not annualized.
func ExcessSharpe(returns, factorReturns []float64) float64 {
	if len(returns) < 2 {
		return math.NaN()
	}
	active := make([]float64, len(returns))
	for i := range returns {
		active[i] = returns[i] - factorReturns[i]
	}
	return nanMean(active) / nanStd(active, 1)
}

// TrackingError is the annualized sample standard deviation of the return
// differences against a baseline.
func TrackingError(returns, factorReturns []float64) float64 {
	if len(returns) < 2 {
		return math.NaN()
	}
	diff := make([]float64, len(returns))
	for i := range returns {
		diff[i] = returns[i] - factorReturns[i]
	}
	return nanStd(diff, 1) * math.Sqrt(DailyFactor)
}

// Capture is the ratio of annualized returns against the factor.
func Capture(returns, factorReturns []float64, period Period) float64 {
	return AnnualReturn(returns, period, 0) / AnnualReturn(factorReturns, period, 0)
}

// UpCapture is the capture ratio over observations where the factor return
// is positive.
func UpCapture(returns, factorReturns []float64, period Period) float64 {
	r, f := maskBySign(returns, factorReturns, true)
	return Capture(r, f, period)
}

// DownCapture is the capture ratio over observations where the factor
// return is negative.
func DownCapture(returns, factorReturns []float64, period Period) float64 {
	r, f := maskBySign(returns, factorReturns, false)
	return Capture(r, f, period)
}

// UpAlphaBeta regresses returns on the factor over positive-factor days.
func UpAlphaBeta(returns, factorReturns []float64, riskFree float64, period Period, annualization int) (float64, float64) {
	r, f := maskBySign(returns, factorReturns, true)
	return AlphaBeta(r, f, riskFree, period, annualization)
}

// DownAlphaBeta regresses returns on the factor over negative-factor days.
func DownAlphaBeta(returns, factorReturns []float64, riskFree float64, period Period, annualization int) (float64, float64) {
	r, f := maskBySign(returns, factorReturns, false)
	return AlphaBeta(r, f, riskFree, period, annualization)
}

// Stability is the R² of a linear fit to the cumulative log returns.
func Stability(returns []float64) float64 {
	if len(returns) < 2 {
		return math.NaN()
	}
	clean := dropNaN(returns)
	cum := make([]float64, len(clean))
	acc := 0.0
	for i, r := range clean {
		acc += math.Log1p(r)
		cum[i] = acc
	}
	r := correlationWithIndex(cum)
	return r * r
}

// TailRatio is |95th percentile| / |5th percentile| of the returns.
func TailRatio(returns []float64) float64 {
	clean := dropNaN(returns)
	if len(clean) < 1 {
		return math.NaN()
	}
	return math.Abs(percentile(clean, 95)) / math.Abs(percentile(clean, 5))
}

// ValueAtRisk is the cutoff quantile of the return distribution (cutoff 0.05
// = the 5th percentile).
func ValueAtRisk(returns []float64, cutoff float64) float64 {
	if len(returns) < 1 {
		return math.NaN()
	}
	sorted := append([]float64(nil), returns...)
	sortFloats(sorted)
	return percentileSorted(sorted, 100*cutoff)
}

// ConditionalValueAtRisk is the mean return on the worst cutoff fraction of
// days, the cutoff-index observation included.
func ConditionalValueAtRisk(returns []float64, cutoff float64) float64 {
	if len(returns) < 1 {
		return math.NaN()
	}
	sorted := append([]float64(nil), returns...)
	sortFloats(sorted)
	cutoffIndex := int(float64(len(returns)-1) * cutoff)
	sum := 0.0
	for _, v := range sorted[:cutoffIndex+1] {
		sum += v
	}
	return sum / float64(cutoffIndex+1)
}

// DailyValueAtRisk is the parametric sigma-deviation VaR: mean − sigma×std.
func DailyValueAtRisk(returns []float64, sigma float64) float64 {
	if len(returns) < 2 {
		return math.NaN()
	}
	return nanMean(returns) - sigma*nanStd(returns, 1)
}

// Skew is the biased Fisher-Pearson skewness coefficient m3/m2^1.5.
func Skew(returns []float64) float64 {
	m2, m3, _ := centralMoments(returns)
	if m2 == 0 {
		return math.NaN()
	}
	return m3 / math.Pow(m2, 1.5)
}

// Kurtosis is the biased excess kurtosis m4/m2² − 3.
func Kurtosis(returns []float64) float64 {
	m2, _, m4 := centralMoments(returns)
	if m2 == 0 {
		return math.NaN()
	}
	return m4/(m2*m2) - 3
}

// --- helpers ---

func adjustReturns(returns []float64, adjustment float64) []float64 {
	if adjustment == 0 {
		return returns
	}
	out := make([]float64, len(returns))
	for i, r := range returns {
		out[i] = r - adjustment
	}
	return out
}

func maskBySign(returns, factorReturns []float64, positive bool) ([]float64, []float64) {
	r := make([]float64, 0, len(returns))
	f := make([]float64, 0, len(factorReturns))
	for i := range factorReturns {
		keep := factorReturns[i] > 0
		if !positive {
			keep = factorReturns[i] < 0
		}
		if keep {
			r = append(r, returns[i])
			f = append(f, factorReturns[i])
		}
	}
	return r, f
}

func dropNaN(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// nanMean averages the non-NaN values; NaN when none remain.
func nanMean(values []float64) float64 {
	sum, n := 0.0, 0
	for _, v := range values {
		if !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// nanStd is the standard deviation of the non-NaN values with the given
// delta degrees of freedom.
func nanStd(values []float64, ddof int) float64 {
	m := nanMean(values)
	if math.IsNaN(m) {
		return math.NaN()
	}
	sum, n := 0.0, 0
	for _, v := range values {
		if !math.IsNaN(v) {
			d := v - m
			sum += d * d
			n++
		}
	}
	if n-ddof <= 0 {
		return math.NaN()
	}
	return math.Sqrt(sum / float64(n-ddof))
}

// centralMoments returns the biased 2nd, 3rd and 4th central moments.
func centralMoments(values []float64) (m2, m3, m4 float64) {
	if len(values) == 0 {
		return math.NaN(), math.NaN(), math.NaN()
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	for _, v := range values {
		d := v - mean
		m2 += d * d
		m3 += d * d * d
		m4 += d * d * d * d
	}
	n := float64(len(values))
	return m2 / n, m3 / n, m4 / n
}

// correlationWithIndex is the Pearson correlation of the values against
// their 0..n-1 positions.
func correlationWithIndex(values []float64) float64 {
	n := float64(len(values))
	xMean := (n - 1) / 2
	yMean := nanMean(values)
	var sxy, sxx, syy float64
	for i, v := range values {
		dx := float64(i) - xMean
		dy := v - yMean
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return math.NaN()
	}
	return sxy / math.Sqrt(sxx*syy)
}

// percentile is the linearly interpolated q-th percentile (numpy default).
func percentile(values []float64, q float64) float64 {
	sorted := append([]float64(nil), values...)
	sortFloats(sorted)
	return percentileSorted(sorted, q)
}

func percentileSorted(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	rank := q / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

func sortFloats(values []float64) {
	sort.Float64s(values)
}
