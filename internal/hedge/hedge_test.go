package hedge

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/quantfold/hedge-engine/internal/model"
	"github.com/quantfold/hedge-engine/internal/portfolio"
	"github.com/quantfold/hedge-engine/internal/timeseries"
)

var (
	histStart = timeseries.Day(2022, 1, 1)
	tradeDate = timeseries.Day(2023, 1, 2) // a Monday
)

// stubPrices serves closing prices from in-memory series, clipped to the
// requested window.
type stubPrices struct {
	series map[string]timeseries.Series
}

func (s stubPrices) ClosingPrices(_ context.Context, ticker string, from, to time.Time) (timeseries.Series, error) {
	full, ok := s.series[ticker]
	if !ok {
		return timeseries.Series{}, fmt.Errorf("no prices for %s", ticker)
	}
	var dates []time.Time
	var values []float64
	for i := 0; i < full.Len(); i++ {
		d := full.Date(i)
		if d.Before(from) || d.After(to) {
			continue
		}
		dates = append(dates, d)
		values = append(values, full.Value(i))
	}
	return timeseries.NewSeries(dates, values)
}

// dailySeries builds a calendar-daily series over [from, to]; NaN values
// drop the day entirely.
func dailySeries(t *testing.T, from, to time.Time, value func(time.Time) float64) timeseries.Series {
	t.Helper()
	var dates []time.Time
	var values []float64
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		v := value(d)
		if math.IsNaN(v) {
			continue
		}
		dates = append(dates, d)
		values = append(values, v)
	}
	s, err := timeseries.NewSeries(dates, values)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

// wigglyUntil alternates the 2022 history between 95 and 105 so trailing
// volatility is positive, then hands over to level.
func wigglyUntil(cut time.Time, level func(time.Time) float64) func(time.Time) float64 {
	return func(d time.Time) float64 {
		if d.Before(cut) {
			if d.Day()%2 == 0 {
				return 95
			}
			return 105
		}
		return level(d)
	}
}

func acmeSource(t *testing.T, until time.Time, level func(time.Time) float64) stubPrices {
	t.Helper()
	return stubPrices{series: map[string]timeseries.Series{
		"ACME": dailySeries(t, histStart, until, wigglyUntil(tradeDate, level)),
	}}
}

func buildPortfolio(t *testing.T, src stubPrices, txs []model.Transaction, asOf time.Time) *portfolio.Portfolio {
	t.Helper()
	p, err := portfolio.Build(context.Background(), src, txs, asOf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return p
}

func approx(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.IsNaN(got) || math.Abs(got-want) > tol {
		t.Errorf("%s: expected %v, got %v", name, want, got)
	}
}

// --- Config tests ---

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want error
	}{
		{"valid", Config{RelativeStrike: 0.9, MaturityMonths: 3}, nil},
		{"valid with trigger", Config{RelativeStrike: 0.9, MaturityMonths: 3, Trigger: 1.1}, nil},
		{"zero strike", Config{MaturityMonths: 3}, ErrInvalidStrike},
		{"negative strike", Config{RelativeStrike: -0.5, MaturityMonths: 3}, ErrInvalidStrike},
		{"zero maturity", Config{RelativeStrike: 0.9}, ErrInvalidMaturity},
		{"trigger below 1", Config{RelativeStrike: 0.9, MaturityMonths: 3, Trigger: 0.5}, ErrInvalidTrigger},
		{"trigger exactly 1", Config{RelativeStrike: 0.9, MaturityMonths: 3, Trigger: 1}, ErrInvalidTrigger},
	}
	for _, c := range cases {
		if got := c.cfg.Validate(); got != c.want {
			t.Errorf("%s: expected %v, got %v", c.name, c.want, got)
		}
	}
}

func TestSimulate_RejectsInvalidConfig(t *testing.T) {
	src := acmeSource(t, timeseries.Day(2023, 2, 20), func(time.Time) float64 { return 100 })
	p := buildPortfolio(t, src, []model.Transaction{{Date: tradeDate, Ticker: "ACME", Amount: 10}}, timeseries.Day(2023, 2, 21))
	if _, err := Simulate(context.Background(), Config{}, p, src); !errors.Is(err, ErrInvalidStrike) {
		t.Errorf("expected ErrInvalidStrike, got %v", err)
	}
}

func TestSimulate_RequiresBuys(t *testing.T) {
	src := acmeSource(t, timeseries.Day(2023, 2, 20), func(time.Time) float64 { return 100 })
	p := buildPortfolio(t, src, []model.Transaction{{Date: tradeDate, Ticker: "ACME", Amount: -5}}, timeseries.Day(2023, 2, 21))
	if _, err := Simulate(context.Background(), Config{RelativeStrike: 1, MaturityMonths: 1}, p, src); !errors.Is(err, ErrNoBuys) {
		t.Errorf("expected ErrNoBuys, got %v", err)
	}
}

// --- Walk tests ---

func TestSimulate_WorthlessExpiryReopensCoverage(t *testing.T) {
	src := acmeSource(t, timeseries.Day(2023, 2, 20), func(time.Time) float64 { return 100 })
	p := buildPortfolio(t, src, []model.Transaction{{Date: tradeDate, Ticker: "ACME", Amount: 10}}, timeseries.Day(2023, 2, 21))

	res, err := Simulate(context.Background(), Config{RelativeStrike: 1, MaturityMonths: 1}, p, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Options) != 2 {
		t.Fatalf("expected 2 options, got %d", len(res.Options))
	}

	seed := res.Options[0]
	if !seed.OpenDate.Equal(tradeDate) || !seed.Expiry.Equal(timeseries.Day(2023, 2, 3)) {
		t.Errorf("seed window %v..%v", seed.OpenDate, seed.Expiry)
	}
	if seed.Amount != 10 || seed.Strike != 100 {
		t.Errorf("seed legs: amount %d strike %v", seed.Amount, seed.Strike)
	}
	if seed.Premium <= 0 || math.IsNaN(seed.Premium) {
		t.Errorf("seed premium: %v", seed.Premium)
	}

	// The worthless expiry leaves the position uncovered, so a matching
	// put reopens at the expiry close.
	refill := res.Options[1]
	if !refill.OpenDate.Equal(timeseries.Day(2023, 2, 3)) || !refill.Expiry.Equal(timeseries.Day(2023, 3, 10)) {
		t.Errorf("refill window %v..%v", refill.OpenDate, refill.Expiry)
	}
	if refill.Amount != 10 || refill.Strike != 100 {
		t.Errorf("refill legs: amount %d strike %v", refill.Amount, refill.Strike)
	}

	if res.SettlementCash != 0 {
		t.Errorf("expected no settlement cash, got %v", res.SettlementCash)
	}
	if got := res.Hedged.Transactions(); len(got) != 1 {
		t.Errorf("expected only the original buy, got %d transactions", len(got))
	}
	approx(t, "hedge cost", res.HedgeCost, seed.Cost()+refill.Cost(), 1e-9)
	approx(t, "hedged portfolio cost", res.Hedged.HedgeCost(), res.HedgeCost, 0)

	_, last := res.Hedged.Capitalisation().Last()
	approx(t, "hedged capitalisation", last, 1000, 1e-9)
}

func TestSimulate_InTheMoneySettlement(t *testing.T) {
	expiry := timeseries.Day(2023, 2, 3)
	src := acmeSource(t, timeseries.Day(2023, 2, 20), func(d time.Time) float64 {
		if d.Before(expiry) {
			return 100
		}
		return 80
	})
	p := buildPortfolio(t, src, []model.Transaction{{Date: tradeDate, Ticker: "ACME", Amount: 10}}, timeseries.Day(2023, 2, 21))

	res, err := Simulate(context.Background(), Config{RelativeStrike: 1, MaturityMonths: 1}, p, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 1000 of strike proceeds buys back 12 shares at the 80 close and
	// leaves 40 in cash.
	approx(t, "settlement cash", res.SettlementCash, 40, 1e-12)
	if len(res.Options) != 2 {
		t.Fatalf("expected 2 options, got %d", len(res.Options))
	}
	refill := res.Options[1]
	if refill.Amount != 12 || refill.Strike != 80 || !refill.OpenDate.Equal(expiry) {
		t.Errorf("refill legs: amount %d strike %v open %v", refill.Amount, refill.Strike, refill.OpenDate)
	}

	txs := res.Hedged.Transactions()
	if len(txs) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(txs))
	}
	sell, rebuy := txs[1], txs[2]
	if sell.Amount != -10 || !sell.Date.Equal(timeseries.Day(2023, 2, 2)) {
		t.Errorf("settlement sell: %+v", sell)
	}
	if rebuy.Amount != 12 || !rebuy.Date.Equal(expiry) {
		t.Errorf("settlement buy: %+v", rebuy)
	}

	shares, _ := res.Hedged.Positions().At(timeseries.Day(2023, 2, 2), "ACME")
	if shares != 0 {
		t.Errorf("expected flat position on the eve of settlement, got %v", shares)
	}
	shares, _ = res.Hedged.Positions().At(expiry, "ACME")
	if shares != 12 {
		t.Errorf("expected 12 shares after settlement, got %v", shares)
	}

	// The put held the portfolio at its pre-crash value while the raw
	// position lost a fifth.
	_, hedged := res.Hedged.Capitalisation().Last()
	approx(t, "hedged capitalisation", hedged, 1000, 1e-9)
	_, raw := p.Capitalisation().Last()
	approx(t, "raw capitalisation", raw, 800, 1e-9)
}

func TestSimulate_RallyTriggerRollsUp(t *testing.T) {
	jump := timeseries.Day(2023, 1, 10)
	rise := timeseries.Day(2023, 2, 6)
	src := acmeSource(t, timeseries.Day(2023, 2, 14), func(d time.Time) float64 {
		switch {
		case d.Before(jump):
			return 100
		case d.Before(rise):
			return 115
		default:
			return 120
		}
	})
	p := buildPortfolio(t, src, []model.Transaction{{Date: tradeDate, Ticker: "ACME", Amount: 10}}, timeseries.Day(2023, 2, 15))

	res, err := Simulate(context.Background(), Config{RelativeStrike: 0.9, MaturityMonths: 2, Trigger: 1.1}, p, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 115 clears 100 * 1.1, so the whole position rolls into a new put.
	// The later climb to 120 stays under the raised bar of 126.5 * 1.1.
	if len(res.Options) != 2 {
		t.Fatalf("expected 2 options, got %d", len(res.Options))
	}
	rally := res.Options[1]
	if !rally.OpenDate.Equal(jump) || rally.Amount != 10 {
		t.Errorf("rally option: open %v amount %d", rally.OpenDate, rally.Amount)
	}
	approx(t, "rally strike", rally.Strike, 103.5, 1e-9)

	if res.SettlementCash != 0 {
		t.Errorf("expected no settlement cash, got %v", res.SettlementCash)
	}
	if got := res.Hedged.Transactions(); len(got) != 1 {
		t.Errorf("expected only the original buy, got %d transactions", len(got))
	}
}

func TestSimulate_ExpiryThenRallySameDay(t *testing.T) {
	expiry := timeseries.Day(2023, 2, 3)
	src := acmeSource(t, timeseries.Day(2023, 2, 20), func(d time.Time) float64 {
		if d.Before(expiry) {
			return 100
		}
		return 115
	})
	p := buildPortfolio(t, src, []model.Transaction{{Date: tradeDate, Ticker: "ACME", Amount: 10}}, timeseries.Day(2023, 2, 21))

	res, err := Simulate(context.Background(), Config{RelativeStrike: 1, MaturityMonths: 1, Trigger: 1.1}, p, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The expiry settles worthless and refills first; the rally check then
	// sees 115 over the 110 bar and writes a second put the same day.
	if len(res.Options) != 3 {
		t.Fatalf("expected 3 options, got %d", len(res.Options))
	}
	refill, rally := res.Options[1], res.Options[2]
	if !refill.OpenDate.Equal(expiry) || !rally.OpenDate.Equal(expiry) {
		t.Errorf("same-day opens: refill %v rally %v", refill.OpenDate, rally.OpenDate)
	}
	if refill.Amount != 10 || rally.Amount != 10 {
		t.Errorf("amounts: refill %d rally %d", refill.Amount, rally.Amount)
	}
	if refill.Strike != 115 || rally.Strike != 115 {
		t.Errorf("strikes: refill %v rally %v", refill.Strike, rally.Strike)
	}
	if res.SettlementCash != 0 {
		t.Errorf("expected no settlement cash, got %v", res.SettlementCash)
	}
}

func TestSimulate_SameDayExpiriesBothSettle(t *testing.T) {
	expiry := timeseries.Day(2023, 2, 3)
	src := acmeSource(t, timeseries.Day(2023, 3, 20), func(d time.Time) float64 {
		if d.Before(expiry) {
			return 100
		}
		return 115
	})
	p := buildPortfolio(t, src, []model.Transaction{{Date: tradeDate, Ticker: "ACME", Amount: 10}}, timeseries.Day(2023, 3, 21))

	res, err := Simulate(context.Background(), Config{RelativeStrike: 1, MaturityMonths: 1, Trigger: 1.1}, p, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The refill and the rally put of 2023-02-03 share the 2023-03-10
	// expiry. Both settle worthless on that Friday and a single put
	// re-covers the position.
	if len(res.Options) != 4 {
		t.Fatalf("expected 4 options, got %d", len(res.Options))
	}
	final := res.Options[3]
	if !final.OpenDate.Equal(timeseries.Day(2023, 3, 10)) || !final.Expiry.Equal(timeseries.Day(2023, 4, 14)) {
		t.Errorf("final window %v..%v", final.OpenDate, final.Expiry)
	}
	if final.Amount != 10 || final.Strike != 115 {
		t.Errorf("final legs: amount %d strike %v", final.Amount, final.Strike)
	}
	if res.SettlementCash != 0 {
		t.Errorf("expected no settlement cash, got %v", res.SettlementCash)
	}
	if got := res.Hedged.Transactions(); len(got) != 1 {
		t.Errorf("expected only the original buy, got %d transactions", len(got))
	}
}

func TestSimulate_EachBuyWalksIndependently(t *testing.T) {
	src := acmeSource(t, timeseries.Day(2023, 2, 20), func(time.Time) float64 { return 100 })
	txs := []model.Transaction{
		{Date: tradeDate, Ticker: "ACME", Amount: 10},
		{Date: timeseries.Day(2023, 1, 16), Ticker: "ACME", Amount: 5},
	}
	p := buildPortfolio(t, src, txs, timeseries.Day(2023, 2, 21))

	res, err := Simulate(context.Background(), Config{RelativeStrike: 1, MaturityMonths: 1}, p, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.Options) != 4 {
		t.Fatalf("expected 4 options, got %d", len(res.Options))
	}
	wantAmounts := []int64{10, 10, 5, 5}
	wantOpens := []time.Time{
		tradeDate,
		timeseries.Day(2023, 2, 3),
		timeseries.Day(2023, 1, 16),
		timeseries.Day(2023, 2, 17),
	}
	for i, o := range res.Options {
		if o.Amount != wantAmounts[i] || !o.OpenDate.Equal(wantOpens[i]) {
			t.Errorf("option %d: amount %d open %v", i, o.Amount, o.OpenDate)
		}
	}
	if got := res.Hedged.Transactions(); len(got) != 2 {
		t.Errorf("expected 2 transactions, got %d", len(got))
	}
}

// --- Data completeness tests ---

func TestSimulate_MissingExpiryRowFails(t *testing.T) {
	expiry := timeseries.Day(2023, 2, 3)
	src := acmeSource(t, timeseries.Day(2023, 2, 20), func(d time.Time) float64 {
		if d.Equal(expiry) {
			return math.NaN() // the expiry day never trades
		}
		return 100
	})
	p := buildPortfolio(t, src, []model.Transaction{{Date: tradeDate, Ticker: "ACME", Amount: 10}}, timeseries.Day(2023, 2, 21))

	_, err := Simulate(context.Background(), Config{RelativeStrike: 1, MaturityMonths: 1}, p, src)
	if !errors.Is(err, ErrExpiryGap) {
		t.Errorf("expected ErrExpiryGap, got %v", err)
	}
}

func TestSimulate_FlatHistoryHasNoVolatility(t *testing.T) {
	// No 2022 wiggle: the trailing window is perfectly flat.
	src := stubPrices{series: map[string]timeseries.Series{
		"ACME": dailySeries(t, histStart, timeseries.Day(2023, 2, 20), func(time.Time) float64 { return 100 }),
	}}
	p := buildPortfolio(t, src, []model.Transaction{{Date: tradeDate, Ticker: "ACME", Amount: 10}}, timeseries.Day(2023, 2, 21))

	_, err := Simulate(context.Background(), Config{RelativeStrike: 1, MaturityMonths: 1}, p, src)
	if !errors.Is(err, ErrVolatility) {
		t.Errorf("expected ErrVolatility, got %v", err)
	}
}
