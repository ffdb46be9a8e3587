package timeseries

import (
	"math"
	"sort"
	"time"
)

// Frame is a dense table over a strictly increasing date index with named
// float64 columns. Cells default to NaN until set.
type Frame struct {
	dates   []time.Time
	rowIdx  map[int64]int
	columns []string
	colIdx  map[string]int
	data    [][]float64 // column-major, data[c][r]
}

// NewFrame builds an all-NaN frame over the given dates and columns. Dates
// are normalized to midnight UTC and must be strictly increasing; column
// names must be unique.
func NewFrame(dates []time.Time, columns []string) (*Frame, error) {
	f := &Frame{
		dates:   make([]time.Time, len(dates)),
		rowIdx:  make(map[int64]int, len(dates)),
		columns: make([]string, 0, len(columns)),
		colIdx:  make(map[string]int, len(columns)),
	}
	for i, d := range dates {
		f.dates[i] = Midnight(d)
		if i > 0 && !f.dates[i].After(f.dates[i-1]) {
			return nil, ErrUnsortedDates
		}
		f.rowIdx[f.dates[i].Unix()] = i
	}
	for _, c := range columns {
		col := make([]float64, len(dates))
		for i := range col {
			col[i] = math.NaN()
		}
		if err := f.addColumn(c, col); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (f *Frame) addColumn(name string, values []float64) error {
	if _, ok := f.colIdx[name]; ok {
		return ErrDuplicateColumn
	}
	if len(values) != len(f.dates) {
		return ErrLengthMismatch
	}
	f.colIdx[name] = len(f.columns)
	f.columns = append(f.columns, name)
	f.data = append(f.data, values)
	return nil
}

// NumRows reports the number of dates.
func (f *Frame) NumRows() int { return len(f.dates) }

// Dates returns a copy of the date index.
func (f *Frame) Dates() []time.Time {
	out := make([]time.Time, len(f.dates))
	copy(out, f.dates)
	return out
}

// RowDate returns the i-th date of the index.
func (f *Frame) RowDate(i int) time.Time { return f.dates[i] }

// FirstDate returns the earliest indexed date, or the zero time when empty.
func (f *Frame) FirstDate() time.Time {
	if len(f.dates) == 0 {
		return time.Time{}
	}
	return f.dates[0]
}

// LastDate returns the latest indexed date, or the zero time when empty.
func (f *Frame) LastDate() time.Time {
	if len(f.dates) == 0 {
		return time.Time{}
	}
	return f.dates[len(f.dates)-1]
}

// Columns returns a copy of the column names in insertion order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.columns))
	copy(out, f.columns)
	return out
}

// HasColumn reports whether the named column exists.
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.colIdx[name]
	return ok
}

// At returns the cell value for (date, column). The second return is false
// when the date or the column is not part of the frame; a present-but-NaN
// cell returns (NaN, true).
func (f *Frame) At(d time.Time, column string) (float64, bool) {
	r, rok := f.rowIdx[Midnight(d).Unix()]
	c, cok := f.colIdx[column]
	if !rok || !cok {
		return math.NaN(), false
	}
	return f.data[c][r], true
}

// AtRow returns the cell value for row i of the named column. The second
// return is false when the column does not exist.
func (f *Frame) AtRow(i int, column string) (float64, bool) {
	c, ok := f.colIdx[column]
	if !ok {
		return math.NaN(), false
	}
	return f.data[c][i], true
}

// Set writes the cell value for (date, column).
func (f *Frame) Set(d time.Time, column string, v float64) error {
	r, rok := f.rowIdx[Midnight(d).Unix()]
	if !rok {
		return ErrUnknownDate
	}
	c, cok := f.colIdx[column]
	if !cok {
		return ErrUnknownColumn
	}
	f.data[c][r] = v
	return nil
}

// AddColumn appends a named column. The values slice is retained.
func (f *Frame) AddColumn(name string, values []float64) error {
	return f.addColumn(name, values)
}

// Column returns the named column as a Series. The returned series copies
// the frame's data.
func (f *Frame) Column(name string) (Series, error) {
	c, ok := f.colIdx[name]
	if !ok {
		return Series{}, ErrUnknownColumn
	}
	dates := make([]time.Time, len(f.dates))
	copy(dates, f.dates)
	values := make([]float64, len(f.data[c]))
	copy(values, f.data[c])
	return Series{dates: dates, values: values}, nil
}

// Drop returns a copy of the frame without the named column. Dropping an
// absent column is a no-op copy.
func (f *Frame) Drop(column string) *Frame {
	out := f.emptyLike()
	for c, name := range f.columns {
		if name == column {
			continue
		}
		col := make([]float64, len(f.data[c]))
		copy(col, f.data[c])
		out.addColumn(name, col)
	}
	return out
}

// DropNaNRows returns a copy of the frame keeping only rows where every
// column is non-NaN.
func (f *Frame) DropNaNRows() *Frame {
	keep := make([]int, 0, len(f.dates))
	for r := range f.dates {
		ok := true
		for c := range f.columns {
			if math.IsNaN(f.data[c][r]) {
				ok = false
				break
			}
		}
		if ok {
			keep = append(keep, r)
		}
	}
	return f.takeRows(keep)
}

// Reindex returns a frame over exactly the given dates, carrying values for
// dates present in the source and NaN elsewhere.
func (f *Frame) Reindex(dates []time.Time) (*Frame, error) {
	out, err := NewFrame(dates, f.columns)
	if err != nil {
		return nil, err
	}
	for c, name := range f.columns {
		dst := out.data[out.colIdx[name]]
		for r, d := range out.dates {
			if src, ok := f.rowIdx[d.Unix()]; ok {
				dst[r] = f.data[c][src]
			}
		}
	}
	return out, nil
}

// Mul returns the element-wise product of two frames over the intersection
// of their date indexes and the union of their columns. A cell missing from
// either side is NaN.
func (f *Frame) Mul(o *Frame) *Frame {
	dates := intersectDates(f.dates, o.dates)
	out, _ := NewFrame(dates, unionColumns(f.columns, o.columns))
	for c, name := range out.columns {
		fc, fok := f.colIdx[name]
		oc, ook := o.colIdx[name]
		if !fok || !ook {
			continue // stays NaN
		}
		for r, d := range out.dates {
			fr := f.rowIdx[d.Unix()]
			or := o.rowIdx[d.Unix()]
			out.data[c][r] = f.data[fc][fr] * o.data[oc][or]
		}
	}
	return out
}

// MaxMerge returns a frame over the union of dates and columns holding the
// per-cell maximum of the two frames, ignoring NaN. Cells absent or NaN on
// both sides stay NaN.
func (f *Frame) MaxMerge(o *Frame) *Frame {
	dates := unionDates(f.dates, o.dates)
	out, _ := NewFrame(dates, unionColumns(f.columns, o.columns))
	for c, name := range out.columns {
		for r, d := range out.dates {
			v := math.NaN()
			if fv, ok := cell(f, d, name); ok && !math.IsNaN(fv) {
				v = fv
			}
			if ov, ok := cell(o, d, name); ok && !math.IsNaN(ov) {
				if math.IsNaN(v) || ov > v {
					v = ov
				}
			}
			out.data[c][r] = v
		}
	}
	return out
}

// SumRows returns the per-row sum across all columns. NaN cells propagate;
// call DropNaNRows first when NaN rows must be excluded.
func (f *Frame) SumRows() Series {
	dates := make([]time.Time, len(f.dates))
	copy(dates, f.dates)
	values := make([]float64, len(f.dates))
	for r := range f.dates {
		sum := 0.0
		for c := range f.columns {
			sum += f.data[c][r]
		}
		values[r] = sum
	}
	return Series{dates: dates, values: values}
}

func (f *Frame) emptyLike() *Frame {
	dates := make([]time.Time, len(f.dates))
	copy(dates, f.dates)
	out := &Frame{
		dates:  dates,
		rowIdx: make(map[int64]int, len(dates)),
		colIdx: make(map[string]int),
	}
	for i, d := range dates {
		out.rowIdx[d.Unix()] = i
	}
	return out
}

func (f *Frame) takeRows(rows []int) *Frame {
	dates := make([]time.Time, len(rows))
	for i, r := range rows {
		dates[i] = f.dates[r]
	}
	out, _ := NewFrame(dates, f.columns)
	for c := range f.columns {
		for i, r := range rows {
			out.data[c][i] = f.data[c][r]
		}
	}
	return out
}

func cell(f *Frame, d time.Time, column string) (float64, bool) {
	c, cok := f.colIdx[column]
	r, rok := f.rowIdx[d.Unix()]
	if !cok || !rok {
		return math.NaN(), false
	}
	return f.data[c][r], true
}

func intersectDates(a, b []time.Time) []time.Time {
	set := make(map[int64]bool, len(b))
	for _, d := range b {
		set[d.Unix()] = true
	}
	var out []time.Time
	for _, d := range a {
		if set[d.Unix()] {
			out = append(out, d)
		}
	}
	return out
}

func unionDates(a, b []time.Time) []time.Time {
	set := make(map[int64]time.Time, len(a)+len(b))
	for _, d := range a {
		set[d.Unix()] = d
	}
	for _, d := range b {
		set[d.Unix()] = d
	}
	out := make([]time.Time, 0, len(set))
	for _, d := range set {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func unionColumns(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]bool, len(a)+len(b))
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
