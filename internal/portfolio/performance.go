package portfolio

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/quantfold/hedge-engine/internal/stats"
	"github.com/quantfold/hedge-engine/internal/timeseries"
)

// ErrNoObservations means the start-date filter left no valuation rows.
var ErrNoObservations = errors.New("portfolio: no observations on or after the start date")

// Volatility windows in calendar days.
const (
	windowQuarter   = 93
	windowHalfYear  = 183
	windowYear      = 365
	windowThreeYear = 1095
)

// Metric is a float64 that marshals NaN and infinities as JSON null, the
// way a missing statistic should read on the wire.
type Metric float64

func (m Metric) MarshalJSON() ([]byte, error) {
	f := float64(m)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

func (m *Metric) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = Metric(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*m = Metric(f)
	return nil
}

// Report summarises portfolio performance over an observation window.
// Profit includes settlement cash from exercised hedges; the baseline
// block is nil unless a baseline portfolio was supplied.
type Report struct {
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
	StartValue Metric    `json:"start_value"`
	EndValue   Metric    `json:"end_value"`

	Profit                 Metric `json:"profit"`
	Profitability          Metric `json:"profitability"`
	HedgeCost              Metric `json:"hedge_cost"`
	ProfitWithHedge        Metric `json:"profit_with_hedge"`
	ProfitabilityWithHedge Metric `json:"profitability_with_hedge"`

	Volatility3M  Metric `json:"volatility_3m"`
	Volatility6M  Metric `json:"volatility_6m"`
	Volatility12M Metric `json:"volatility_12m"`
	Volatility3Y  Metric `json:"volatility_3y"`
	Sharpe        Metric `json:"sharpe"`
	Sortino       Metric `json:"sortino"`
	MaxDrawdown   Metric `json:"max_drawdown"`

	UpsideCapture   *Metric `json:"upside_capture_ratio"`
	DownsideCapture *Metric `json:"downside_capture_ratio"`
	Alpha           *Metric `json:"alpha"`
	Beta            *Metric `json:"beta"`
	TrackingError   *Metric `json:"tracking_error"`
}

// Performance computes the report over observations on or after startDate.
// A zero startDate keeps the full history. The baseline block compares
// daily returns on the dates both portfolios were valued; pass nil to skip
// it.
func (p *Portfolio) Performance(baseline *Portfolio, startDate time.Time) (*Report, error) {
	capitalisation := p.capitalisation
	returns := p.returns
	if !startDate.IsZero() {
		from := timeseries.Midnight(startDate)
		capitalisation = capitalisation.From(from)
		returns = returns.From(from)
	}
	if capitalisation.Empty() {
		return nil, ErrNoObservations
	}

	first, startValue := capitalisation.First()
	last, endValue := capitalisation.Last()
	profit := p.cash + endValue - startValue

	windowVol := func(days int) Metric {
		return Metric(stats.Volatility(capitalisation.TailWindow(days).Values()))
	}

	r := &Report{
		StartDate:  first,
		EndDate:    last,
		StartValue: Metric(startValue),
		EndValue:   Metric(endValue),

		Profit:                 Metric(profit),
		Profitability:          Metric(profit / startValue),
		HedgeCost:              Metric(p.hedgeCost),
		ProfitWithHedge:        Metric(profit - p.hedgeCost),
		ProfitabilityWithHedge: Metric((profit - p.hedgeCost) / startValue),

		Volatility3M:  windowVol(windowQuarter),
		Volatility6M:  windowVol(windowHalfYear),
		Volatility12M: windowVol(windowYear),
		Volatility3Y:  windowVol(windowThreeYear),
		Sharpe:        Metric(stats.SharpeRatio(returns.Values(), 0, stats.Daily, 0)),
		Sortino:       Metric(stats.SortinoRatio(returns.Values(), 0, stats.Daily, 0)),
		MaxDrawdown:   Metric(stats.MaxDrawdown(returns.Values())),
	}

	if baseline != nil {
		baseReturns := baseline.returns
		if !startDate.IsZero() {
			baseReturns = baseReturns.From(timeseries.Midnight(startDate))
		}
		own, base := returns.InnerJoin(baseReturns)
		alpha, beta := stats.AlphaBeta(own.Values(), base.Values(), 0, stats.Daily, 0)
		r.UpsideCapture = metric(stats.UpCapture(own.Values(), base.Values(), stats.Daily))
		r.DownsideCapture = metric(stats.DownCapture(own.Values(), base.Values(), stats.Daily))
		r.Alpha = metric(alpha)
		r.Beta = metric(beta)
		r.TrackingError = metric(stats.TrackingError(own.Values(), base.Values()))
	}
	return r, nil
}

func metric(f float64) *Metric {
	m := Metric(f)
	return &m
}

// Row is one line of the formatted performance summary.
type Row struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Rows renders the report as a two-column summary table. Percentages show
// two decimals, ratios three; statistics without a value show N/A.
func (r *Report) Rows() []Row {
	rows := []Row{
		{"Start Date", r.StartDate.Format("2006-01-02")},
		{"End Date", r.EndDate.Format("2006-01-02")},
		{"Start Portfolio Value", formatMoney(r.StartValue)},
		{"End Portfolio Value", formatMoney(r.EndValue)},
		{"Profit", formatMoney(r.Profit)},
		{"Profitability", formatPercent(r.Profitability)},
		{"Hedging Cost", formatMoney(r.HedgeCost)},
		{"Profit including Hedge Cost", formatMoney(r.ProfitWithHedge)},
		{"Profitability including Hedge Cost", formatPercent(r.ProfitabilityWithHedge)},
		{"Volatility (3m)", formatPercent(r.Volatility3M)},
		{"Volatility (6m)", formatPercent(r.Volatility6M)},
		{"Volatility (12m)", formatPercent(r.Volatility12M)},
		{"Volatility (3y)", formatPercent(r.Volatility3Y)},
		{"Sharpe Ratio", formatRatio(r.Sharpe)},
		{"Sortino Ratio", formatRatio(r.Sortino)},
		{"Max Drawdown", formatRatio(r.MaxDrawdown)},
	}
	if r.Beta != nil {
		rows = append(rows,
			Row{"Upside Capture Ratio", formatRatio(*r.UpsideCapture)},
			Row{"Downside Capture Ratio", formatRatio(*r.DownsideCapture)},
			Row{"Alpha", formatRatio(*r.Alpha)},
			Row{"Beta", formatRatio(*r.Beta)},
			Row{"Tracking Error", formatRatio(*r.TrackingError)},
		)
	}
	return rows
}

func formatMoney(m Metric) string {
	f := float64(m)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "N/A"
	}
	return groupThousands(formatFloat(f, 2))
}

func formatPercent(m Metric) string {
	f := float64(m)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "N/A"
	}
	return formatFloat(f*100, 2) + " %"
}

func formatRatio(m Metric) string {
	f := float64(m)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "N/A"
	}
	return formatFloat(f, 3)
}

func formatFloat(f float64, decimals int) string {
	return strconv.FormatFloat(f, 'f', decimals, 64)
}

// groupThousands inserts comma separators into the integer part of a
// plain decimal string.
func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, fracPart := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i:]
	}
	if len(intPart) <= 3 {
		return sign + intPart + fracPart
	}
	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	return sign + b.String() + fracPart
}
