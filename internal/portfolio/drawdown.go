package portfolio

import (
	"math"
	"time"

	"github.com/quantfold/hedge-engine/internal/stats"
	"github.com/quantfold/hedge-engine/internal/timeseries"
)

// Drawdown is one peak-to-valley episode of the cumulative return curve.
// Recovery is nil while the episode is still underwater; Duration counts
// business days from peak through recovery.
type Drawdown struct {
	Peak           time.Time  `json:"peak"`
	Valley         time.Time  `json:"valley"`
	Recovery       *time.Time `json:"recovery"`
	NetDrawdownPct Metric     `json:"net_drawdown_pct"`
	Duration       int        `json:"duration_days,omitempty"`
}

// Underwater maps a daily return series to its drawdown curve: the
// fraction of compounded growth lost against the running peak. Zero marks
// a fresh high.
func Underwater(returns timeseries.Series) timeseries.Series {
	cum := stats.CumReturns(returns.Values(), 1.0)
	values := make([]float64, len(cum))
	runningMax := math.Inf(-1)
	for i, v := range cum {
		if v > runningMax {
			runningMax = v
		}
		values[i] = v/runningMax - 1
	}
	out, err := timeseries.NewSeries(returns.Dates(), values)
	if err != nil {
		// The input dates were already validated by the series they came from.
		panic(err)
	}
	return out
}

// TopDrawdowns extracts the top worst drawdown episodes, deepest first.
// Each round removes the interior of the episode from the curve so the
// next deepest one surfaces.
func TopDrawdowns(returns timeseries.Series, top int) []Drawdown {
	if returns.Empty() || top <= 0 {
		return nil
	}
	cum, err := timeseries.NewSeries(returns.Dates(), stats.CumReturns(returns.Values(), 1.0))
	if err != nil {
		panic(err)
	}
	under := Underwater(returns)

	var out []Drawdown
	for len(out) < top && under.Len() > 0 && minValue(under) < 0 {
		peak, valley, recovery, recovered := deepestEpisode(under)

		dd := Drawdown{Peak: peak, Valley: valley}
		peakValue, _ := cum.At(peak)
		valleyValue, _ := cum.At(valley)
		dd.NetDrawdownPct = Metric((peakValue - valleyValue) / peakValue * 100)
		if recovered {
			r := recovery
			dd.Recovery = &r
			dd.Duration = businessDays(peak, recovery)
			// Carve out the recovered episode, keeping its zero endpoints.
			under = seriesWhere(under, func(d time.Time) bool {
				return !(d.After(peak) && d.Before(recovery))
			})
		} else {
			under = seriesWhere(under, func(d time.Time) bool {
				return !d.After(peak)
			})
		}
		out = append(out, dd)
	}
	return out
}

// deepestEpisode locates the deepest drawdown on the curve: the valley at
// the minimum, the last fresh high before it and the first fresh high
// after it.
func deepestEpisode(under timeseries.Series) (peak, valley, recovery time.Time, recovered bool) {
	minI := 0
	for i := 1; i < under.Len(); i++ {
		if under.Value(i) < under.Value(minI) {
			minI = i
		}
	}
	valley = under.Date(minI)

	peak = under.Date(0)
	for i := minI; i >= 0; i-- {
		if under.Value(i) == 0 {
			peak = under.Date(i)
			break
		}
	}
	for i := minI; i < under.Len(); i++ {
		if under.Value(i) == 0 {
			return peak, valley, under.Date(i), true
		}
	}
	return peak, valley, time.Time{}, false
}

func seriesWhere(s timeseries.Series, keep func(time.Time) bool) timeseries.Series {
	dates := make([]time.Time, 0, s.Len())
	values := make([]float64, 0, s.Len())
	for i := 0; i < s.Len(); i++ {
		if keep(s.Date(i)) {
			dates = append(dates, s.Date(i))
			values = append(values, s.Value(i))
		}
	}
	out, err := timeseries.NewSeries(dates, values)
	if err != nil {
		panic(err)
	}
	return out
}

func minValue(s timeseries.Series) float64 {
	min := s.Value(0)
	for i := 1; i < s.Len(); i++ {
		if v := s.Value(i); v < min {
			min = v
		}
	}
	return min
}

// businessDays counts weekdays in the closed interval [from, to].
func businessDays(from, to time.Time) int {
	n := 0
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n++
		}
	}
	return n
}
