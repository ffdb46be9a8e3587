// Package timeseries implements the date-indexed Series and Frame types the
// portfolio and hedging layers are built on.
//
// Dates are civil days: time.Time values normalized to midnight UTC. A Frame
// is a dense rectangular table over a strictly increasing date index with
// named float64 columns; a Series is a single date-indexed column. Missing
// values are math.NaN(), and the row-dropping, joining and merging semantics
// below are what the valuation math depends on:
//
//   - DropNaNRows removes a row if ANY column is NaN.
//   - InnerJoin keeps only dates present in both series where both values
//     are non-NaN.
//   - MaxMerge takes the per-cell maximum over the union of dates and
//     columns, ignoring NaN.
package timeseries

import (
	"errors"
	"math"
	"sort"
	"time"
)

var (
	// ErrLengthMismatch is returned when dates and values differ in length.
	ErrLengthMismatch = errors.New("timeseries: dates and values length mismatch")
	// ErrUnsortedDates is returned when a date index is not strictly increasing.
	ErrUnsortedDates = errors.New("timeseries: dates must be strictly increasing")
	// ErrUnknownColumn is returned when a named column does not exist.
	ErrUnknownColumn = errors.New("timeseries: unknown column")
	// ErrUnknownDate is returned when a date is not part of a frame's index.
	ErrUnknownDate = errors.New("timeseries: date not in index")
	// ErrDuplicateColumn is returned when adding a column that already exists.
	ErrDuplicateColumn = errors.New("timeseries: duplicate column")
)

// Day returns the civil date at midnight UTC.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Midnight normalizes t to its civil date at midnight UTC.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateRange returns every civil day from start through end inclusive.
// An empty slice is returned when end precedes start.
func DateRange(start, end time.Time) []time.Time {
	start, end = Midnight(start), Midnight(end)
	var out []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// Series is an immutable ordered sequence of (date, value) observations.
type Series struct {
	dates  []time.Time
	values []float64
}

// NewSeries builds a Series from parallel date/value slices. Dates are
// normalized to midnight UTC and must be strictly increasing.
func NewSeries(dates []time.Time, values []float64) (Series, error) {
	if len(dates) != len(values) {
		return Series{}, ErrLengthMismatch
	}
	ds := make([]time.Time, len(dates))
	vs := make([]float64, len(values))
	for i, d := range dates {
		ds[i] = Midnight(d)
		if i > 0 && !ds[i].After(ds[i-1]) {
			return Series{}, ErrUnsortedDates
		}
		vs[i] = values[i]
	}
	return Series{dates: ds, values: vs}, nil
}

// Len reports the number of observations.
func (s Series) Len() int { return len(s.dates) }

// Empty reports whether the series has no observations.
func (s Series) Empty() bool { return len(s.dates) == 0 }

// Date returns the i-th date.
func (s Series) Date(i int) time.Time { return s.dates[i] }

// Value returns the i-th value.
func (s Series) Value(i int) float64 { return s.values[i] }

// Dates returns a copy of the date index.
func (s Series) Dates() []time.Time {
	out := make([]time.Time, len(s.dates))
	copy(out, s.dates)
	return out
}

// Values returns a copy of the values.
func (s Series) Values() []float64 {
	out := make([]float64, len(s.values))
	copy(out, s.values)
	return out
}

// At returns the value on date d. The second return is false when d is not
// in the index.
func (s Series) At(d time.Time) (float64, bool) {
	i := s.search(Midnight(d))
	if i < 0 {
		return math.NaN(), false
	}
	return s.values[i], true
}

// First returns the earliest observation, or (zero time, NaN) when empty.
func (s Series) First() (time.Time, float64) {
	if s.Empty() {
		return time.Time{}, math.NaN()
	}
	return s.dates[0], s.values[0]
}

// Last returns the latest observation, or (zero time, NaN) when empty.
func (s Series) Last() (time.Time, float64) {
	if s.Empty() {
		return time.Time{}, math.NaN()
	}
	return s.dates[len(s.dates)-1], s.values[len(s.values)-1]
}

// From returns the observations dated on or after d.
func (s Series) From(d time.Time) Series {
	d = Midnight(d)
	i := sort.Search(len(s.dates), func(i int) bool { return !s.dates[i].Before(d) })
	return Series{dates: s.dates[i:], values: s.values[i:]}
}

// After returns the observations dated strictly after d.
func (s Series) After(d time.Time) Series {
	d = Midnight(d)
	i := sort.Search(len(s.dates), func(i int) bool { return s.dates[i].After(d) })
	return Series{dates: s.dates[i:], values: s.values[i:]}
}

// TailWindow returns the observations dated strictly later than the last
// date minus days calendar days.
func (s Series) TailWindow(days int) Series {
	if s.Empty() {
		return s
	}
	return s.After(s.dates[len(s.dates)-1].AddDate(0, 0, -days))
}

// DropNaN removes NaN observations.
func (s Series) DropNaN() Series {
	dates := make([]time.Time, 0, len(s.dates))
	values := make([]float64, 0, len(s.values))
	for i, v := range s.values {
		if !math.IsNaN(v) {
			dates = append(dates, s.dates[i])
			values = append(values, v)
		}
	}
	return Series{dates: dates, values: values}
}

// PctChange returns the day-over-day relative change. The first element is
// 0, and any NaN change (for example 0/0) is mapped to 0.
func (s Series) PctChange() Series {
	values := make([]float64, len(s.values))
	for i := range s.values {
		if i == 0 {
			values[i] = 0
			continue
		}
		v := s.values[i]/s.values[i-1] - 1
		if math.IsNaN(v) {
			v = 0
		}
		values[i] = v
	}
	return Series{dates: s.dates, values: values}
}

// CumProd1p returns the running product of (1 + value).
func (s Series) CumProd1p() Series {
	values := make([]float64, len(s.values))
	acc := 1.0
	for i, v := range s.values {
		acc *= 1 + v
		values[i] = acc
	}
	return Series{dates: s.dates, values: values}
}

// InnerJoin aligns two series on their common dates and drops rows where
// either value is NaN. The returned series share one date index.
func (s Series) InnerJoin(o Series) (Series, Series) {
	dates := make([]time.Time, 0, min(len(s.dates), len(o.dates)))
	left := make([]float64, 0, cap(dates))
	right := make([]float64, 0, cap(dates))
	i, j := 0, 0
	for i < len(s.dates) && j < len(o.dates) {
		switch {
		case s.dates[i].Before(o.dates[j]):
			i++
		case o.dates[j].Before(s.dates[i]):
			j++
		default:
			if !math.IsNaN(s.values[i]) && !math.IsNaN(o.values[j]) {
				dates = append(dates, s.dates[i])
				left = append(left, s.values[i])
				right = append(right, o.values[j])
			}
			i++
			j++
		}
	}
	return Series{dates: dates, values: left}, Series{dates: dates, values: right}
}

func (s Series) search(d time.Time) int {
	i := sort.Search(len(s.dates), func(i int) bool { return !s.dates[i].Before(d) })
	if i < len(s.dates) && s.dates[i].Equal(d) {
		return i
	}
	return -1
}
