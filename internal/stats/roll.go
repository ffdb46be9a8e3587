package stats

import (
	"math"
	"math/rand"
)

// DefaultBootstrapSamples is the resample count used when the caller does
// not supply one.
const DefaultBootstrapSamples = 1000

// Default forecast cone widths in standard deviations.
var DefaultConeStd = []float64{1.0, 1.5, 2.0}

// Roll applies fn to each trailing window of the returns. The output is
// aligned with the input: positions before the first full window are NaN.
func Roll(returns []float64, window int, fn func([]float64) float64) []float64 {
	out := make([]float64, len(returns))
	for i := range out {
		if i+1 < window {
			out[i] = math.NaN()
			continue
		}
		out[i] = fn(returns[i+1-window : i+1])
	}
	return out
}

// RollAlphaBeta regresses each trailing window of the returns against the
// aligned factor window. Both outputs are NaN before the first full window.
func RollAlphaBeta(returns, factorReturns []float64, window int) (alphas, betas []float64) {
	alphas = make([]float64, len(returns))
	betas = make([]float64, len(returns))
	for i := range returns {
		if i+1 < window {
			alphas[i], betas[i] = math.NaN(), math.NaN()
			continue
		}
		alphas[i], betas[i] = AlphaBeta(returns[i+1-window:i+1], factorReturns[i+1-window:i+1], 0, Daily, 0)
	}
	return alphas, betas
}

// RollingVolatility is the trailing-window sample standard deviation scaled
// to annual terms.
func RollingVolatility(returns []float64, window int) []float64 {
	return Roll(returns, window, func(w []float64) float64 {
		return nanStd(w, 1) * math.Sqrt(DailyFactor)
	})
}

// RollingSharpe is the trailing-window mean over standard deviation scaled
// to annual terms.
func RollingSharpe(returns []float64, window int) []float64 {
	return Roll(returns, window, func(w []float64) float64 {
		return nanMean(w) / nanStd(w, 1) * math.Sqrt(DailyFactor)
	})
}

// Bootstrap resamples the returns with replacement nSamples times (default
// 1000) and applies fn to each resample.
func Bootstrap(fn func([]float64) float64, returns []float64, nSamples int, rng *rand.Rand) []float64 {
	if nSamples <= 0 {
		nSamples = DefaultBootstrapSamples
	}
	out := make([]float64, nSamples)
	sample := make([]float64, len(returns))
	for i := range out {
		for j := range sample {
			sample[j] = returns[rng.Intn(len(returns))]
		}
		out[i] = fn(sample)
	}
	return out
}

// BootstrapFactor resamples returns and factor returns in pairs, preserving
// their alignment, and applies fn to each resample.
func BootstrapFactor(fn func(r, f []float64) float64, returns, factorReturns []float64, nSamples int, rng *rand.Rand) []float64 {
	if nSamples <= 0 {
		nSamples = DefaultBootstrapSamples
	}
	out := make([]float64, nSamples)
	r := make([]float64, len(returns))
	f := make([]float64, len(returns))
	for i := range out {
		for j := range r {
			k := rng.Intn(len(returns))
			r[j], f[j] = returns[k], factorReturns[k]
		}
		out[i] = fn(r, f)
	}
	return out
}

// DistributionStats summarizes a bootstrap sample distribution.
type DistributionStats struct {
	Mean   float64
	Median float64
	Std    float64
	P5     float64
	P25    float64
	P75    float64
	P95    float64
	IQR    float64
}

// Describe computes the distribution summary of samples. The standard
// deviation is the population one (ddof=0).
func Describe(samples []float64) DistributionStats {
	p25 := percentile(samples, 25)
	p75 := percentile(samples, 75)
	return DistributionStats{
		Mean:   nanMean(samples),
		Median: percentile(samples, 50),
		Std:    nanStd(samples, 0),
		P5:     percentile(samples, 5),
		P25:    p25,
		P75:    p75,
		P95:    percentile(samples, 95),
		IQR:    p75 - p25,
	}
}

// SimulatePaths draws numSamples bootstrap return paths of numDays each,
// sampling the historical returns with replacement.
func SimulatePaths(returns []float64, numDays, numSamples int, rng *rand.Rand) [][]float64 {
	paths := make([][]float64, numSamples)
	for i := range paths {
		path := make([]float64, numDays)
		for j := range path {
			path[j] = returns[rng.Intn(len(returns))]
		}
		paths[i] = path
	}
	return paths
}

// ConeBand is a symmetric forecast band at a given width in standard
// deviations around the mean cumulative path.
type ConeBand struct {
	Std   float64
	Upper []float64
	Lower []float64
}

// SummarizePaths compounds each sampled path from startingValue and returns
// the per-day mean cumulative value plus bands at each coneStd width
// (default 1, 1.5 and 2 standard deviations). The band deviation is the
// population one across samples.
func SummarizePaths(samples [][]float64, coneStd []float64, startingValue float64) (mean []float64, bands []ConeBand) {
	if len(samples) == 0 {
		return nil, nil
	}
	if len(coneStd) == 0 {
		coneStd = DefaultConeStd
	}
	numDays := len(samples[0])
	cum := make([][]float64, len(samples))
	for i, path := range samples {
		cum[i] = CumReturns(path, startingValue)
	}
	mean = make([]float64, numDays)
	std := make([]float64, numDays)
	column := make([]float64, len(samples))
	for day := 0; day < numDays; day++ {
		for i := range cum {
			column[i] = cum[i][day]
		}
		mean[day] = nanMean(column)
		std[day] = nanStd(column, 0)
	}
	bands = make([]ConeBand, len(coneStd))
	for i, numStd := range coneStd {
		upper := make([]float64, numDays)
		lower := make([]float64, numDays)
		for day := 0; day < numDays; day++ {
			upper[day] = mean[day] + std[day]*numStd
			lower[day] = mean[day] - std[day]*numStd
		}
		bands[i] = ConeBand{Std: numStd, Upper: upper, Lower: lower}
	}
	return mean, bands
}

// Stat is one named row of a performance sheet.
type Stat struct {
	Name  string
	Value float64
}

// PerfStats computes the standard performance sheet for a daily return
// series. "Daily value at risk" is the parametric mean − 2σ variant.
func PerfStats(returns []float64) []Stat {
	return []Stat{
		{"Annual return", AnnualReturn(returns, Daily, 0)},
		{"Cumulative returns", CumReturnsFinal(returns, 0)},
		{"Annual volatility", AnnualVolatility(returns, Daily, 0)},
		{"Sharpe ratio", SharpeRatio(returns, 0, Daily, 0)},
		{"Calmar ratio", CalmarRatio(returns, Daily, 0)},
		{"Stability", Stability(returns)},
		{"Max drawdown", MaxDrawdown(returns)},
		{"Omega ratio", OmegaRatio(returns, 0, 0, 0)},
		{"Sortino ratio", SortinoRatio(returns, 0, Daily, 0)},
		{"Skew", Skew(returns)},
		{"Kurtosis", Kurtosis(returns)},
		{"Tail ratio", TailRatio(returns)},
		{"Daily value at risk", DailyValueAtRisk(returns, 2)},
	}
}

// PerfStatsWithFactor appends the regression rows against a factor series to
// the standard sheet.
func PerfStatsWithFactor(returns, factorReturns []float64) []Stat {
	sheet := PerfStats(returns)
	alpha, beta := AlphaBeta(returns, factorReturns, 0, Daily, 0)
	return append(sheet, Stat{"Alpha", alpha}, Stat{"Beta", beta})
}
