// Package hedge simulates protective-put overlays on buy-and-hold
// portfolios.
//
// Each buy transaction seeds its own walk through the daily price history:
// a put covering the bought shares opens at the transaction close, and the
// walk then advances day by day settling expiries and rolling coverage up
// on rallies. An expiring put that lands in the money converts its strike
// proceeds back into shares at the settlement close; either way a new put
// re-covers whatever the expiry left unprotected. When a rally trigger is
// configured, a close above the trailing maximum times the trigger opens a
// fresh put over the entire position and ratchets the maximum up.
//
// The result is a rebuilt portfolio whose price frame floors each close at
// the strike of any put protecting that day, so downside below the hedge
// never reaches the valuation.
package hedge

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/quantfold/hedge-engine/internal/model"
	"github.com/quantfold/hedge-engine/internal/option"
	"github.com/quantfold/hedge-engine/internal/portfolio"
	"github.com/quantfold/hedge-engine/internal/stats"
	"github.com/quantfold/hedge-engine/internal/timeseries"
)

// volLookbackDays is the trailing calendar window used to estimate the
// volatility fed to the pricer.
const volLookbackDays = 366

var (
	ErrInvalidStrike   = errors.New("hedge: relative strike must be positive")
	ErrInvalidMaturity = errors.New("hedge: maturity months must be positive")
	ErrInvalidTrigger  = errors.New("hedge: trigger must exceed 1")
	ErrNoBuys          = errors.New("hedge: portfolio has no buy transactions")
	ErrSpotMissing     = errors.New("hedge: spot price missing for option open date")
	ErrVolatility      = errors.New("hedge: trailing volatility unavailable")
	ErrExpiryGap       = errors.New("hedge: option expiry missing from the price index")
)

// Config parameterises a protective-put simulation. RelativeStrike scales
// the spot close into the strike of every put written. Trigger of zero
// disables rally re-hedging; when set it must exceed 1.
type Config struct {
	RelativeStrike float64 `json:"relative_strike"`
	MaturityMonths int     `json:"maturity_months"`
	Trigger        float64 `json:"trigger,omitempty"`
	RiskFree       float64 `json:"risk_free,omitempty"`
}

// Validate checks the configuration against domain rules.
func (c Config) Validate() error {
	if c.RelativeStrike <= 0 || math.IsNaN(c.RelativeStrike) || math.IsInf(c.RelativeStrike, 0) {
		return ErrInvalidStrike
	}
	if c.MaturityMonths <= 0 {
		return ErrInvalidMaturity
	}
	if c.Trigger != 0 && (c.Trigger <= 1 || math.IsNaN(c.Trigger) || math.IsInf(c.Trigger, 0)) {
		return ErrInvalidTrigger
	}
	return nil
}

// Result is the outcome of one simulation run. HedgeCost is the total
// premium paid for every option opened; SettlementCash is the residual
// cash generated when in-the-money proceeds did not divide evenly into
// shares.
type Result struct {
	Hedged         *portfolio.Portfolio
	HedgeCost      float64
	SettlementCash float64
	Options        []option.Put
}

// Simulate runs the protective-put overlay against p and returns the
// hedged portfolio rebuilt from the synthetic transaction log. hist
// supplies the trailing closes behind each volatility estimate; it may
// reach further back than the portfolio's own price frame.
//
// The simulation is pure: p is read, never modified.
func Simulate(ctx context.Context, cfg Config, p *portfolio.Portfolio, hist portfolio.PriceSource) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var buys, sells []model.Transaction
	for _, tx := range p.Transactions() {
		if tx.IsBuy() {
			buys = append(buys, tx)
		} else {
			sells = append(sells, tx)
		}
	}
	if len(buys) == 0 {
		return nil, ErrNoBuys
	}

	w := &walker{
		cfg:   cfg,
		p:     p,
		hist:  hist,
		dense: p.Prices().DropNaNRows(),
	}
	for _, tx := range buys {
		if err := w.run(ctx, tx); err != nil {
			return nil, err
		}
	}

	log := append(w.transactions, sells...)
	sort.SliceStable(log, func(i, j int) bool { return log[i].Date.Before(log[j].Date) })

	adjusted, err := adjustedPrices(p, w.options)
	if err != nil {
		return nil, err
	}
	asOf := p.Positions().LastDate().AddDate(0, 0, 1)
	positions, err := portfolio.BuildPositions(log, asOf)
	if err != nil {
		return nil, err
	}
	hedged, err := portfolio.New(positions, adjusted, log)
	if err != nil {
		return nil, err
	}

	cost := 0.0
	for _, o := range w.options {
		cost += o.Cost()
	}
	hedged.SetHedge(cost, w.cash)

	return &Result{
		Hedged:         hedged,
		HedgeCost:      cost,
		SettlementCash: w.cash,
		Options:        w.options,
	}, nil
}

// walker carries the state shared across the per-buy walks: every option
// opened, the synthetic transaction log and the settlement cash.
type walker struct {
	cfg   Config
	p     *portfolio.Portfolio
	hist  portfolio.PriceSource
	dense *timeseries.Frame

	options      []option.Put
	transactions []model.Transaction
	cash         float64
}

// run walks one buy transaction forward through the dense price history.
// Counters are local to the walk: each buy protects its own shares.
func (w *walker) run(ctx context.Context, tx model.Transaction) error {
	ticker := tx.Ticker
	openDate := timeseries.Midnight(tx.Date)

	seed, err := w.openPut(ctx, ticker, openDate, tx.Amount)
	if err != nil {
		return err
	}
	w.transactions = append(w.transactions, tx)

	spot, _ := w.p.Prices().At(openDate, ticker) // openPut already validated it
	position := tx.Amount
	covered := seed.Amount
	maxPrice := spot

	active := &activeOptionSet{}
	active.add(seed)
	next, _ := active.popNext()

	closes, err := w.dense.Column(ticker)
	if err != nil {
		return fmt.Errorf("hedge: %w", err)
	}
	walk := closes.After(openDate)
	for i := 0; i < walk.Len(); i++ {
		date, price := walk.Date(i), walk.Value(i)

		if date.After(next.put.Expiry) {
			return fmt.Errorf("%w: %s expiring %s", ErrExpiryGap,
				ticker, next.put.Expiry.Format("2006-01-02"))
		}
		// Same-day opens share an expiry Friday, so one walk day can settle
		// several puts.
		for date.Equal(next.put.Expiry) {
			covered -= next.put.Amount
			if price < next.put.Strike {
				// Exercise: strike proceeds buy back shares at the
				// settlement close, the indivisible remainder accrues as
				// cash.
				proceeds := next.put.Strike * float64(next.put.Amount)
				shares := int64(proceeds / price)
				w.cash += proceeds - float64(shares)*price
				if additional := shares - next.put.Amount; additional > 0 {
					w.transactions = append(w.transactions,
						model.Transaction{Date: date.AddDate(0, 0, -1), Ticker: ticker, Amount: -next.put.Amount},
						model.Transaction{Date: date, Ticker: ticker, Amount: shares},
					)
					position += additional
				}
			}
			if gap := position - covered; gap > 0 {
				opt, err := w.openPut(ctx, ticker, date, gap)
				if err != nil {
					return err
				}
				active.add(opt)
				covered += gap
			}
			var ok bool
			if next, ok = active.popNext(); !ok {
				return nil
			}
		}

		if w.cfg.Trigger > 0 && price > maxPrice*w.cfg.Trigger {
			opt, err := w.openPut(ctx, ticker, date, position)
			if err != nil {
				return err
			}
			active.add(opt)
			covered += position
			maxPrice = price * w.cfg.Trigger
			active.requeue(next)
			next, _ = active.popNext()
		}
	}
	return nil
}

// openPut prices and records a new protective put covering amount shares
// at the close of date.
func (w *walker) openPut(ctx context.Context, ticker string, date time.Time, amount int64) (option.Put, error) {
	spot, ok := w.p.Prices().At(date, ticker)
	if !ok || math.IsNaN(spot) {
		return option.Put{}, fmt.Errorf("%w: %s on %s", ErrSpotMissing, ticker, date.Format("2006-01-02"))
	}
	trailing, err := w.hist.ClosingPrices(ctx, ticker, date.AddDate(0, 0, -volLookbackDays), date)
	if err != nil {
		return option.Put{}, fmt.Errorf("hedge: load trailing closes for %s: %w", ticker, err)
	}
	sigma := stats.Volatility(trailing.Values())
	if math.IsNaN(sigma) || sigma <= 0 {
		return option.Put{}, fmt.Errorf("%w: %s on %s", ErrVolatility, ticker, date.Format("2006-01-02"))
	}

	strike := spot * w.cfg.RelativeStrike
	put := option.Put{
		Ticker:   ticker,
		OpenDate: date,
		Expiry:   option.ExpiryDate(date, w.cfg.MaturityMonths),
		Amount:   amount,
		Strike:   strike,
		Premium:  option.PutPrice(spot, strike, float64(w.cfg.MaturityMonths)/12, w.cfg.RiskFree, sigma),
	}
	w.options = append(w.options, put)
	return put, nil
}

// adjustedPrices floors each ticker's closes at the strike of any put
// protecting that day and restricts the frame to the valuation index. The
// synthetic cash column drops out; the rebuilt portfolio derives its own.
func adjustedPrices(p *portfolio.Portfolio, opts []option.Put) (*timeseries.Frame, error) {
	merged := p.Prices().MaxMerge(strikeFrame(opts))
	out, err := merged.Reindex(p.Returns().Dates())
	if err != nil {
		return nil, err
	}
	return out.Drop(model.CashTicker), nil
}

// strikeFrame expands every put into its protection window, the calendar
// days from open through the day before expiry, keeping the highest strike
// per ticker per day.
func strikeFrame(opts []option.Put) *timeseries.Frame {
	perTicker := make(map[string]map[int64]float64)
	byUnix := make(map[int64]time.Time)
	for _, o := range opts {
		strikes := perTicker[o.Ticker]
		if strikes == nil {
			strikes = make(map[int64]float64)
			perTicker[o.Ticker] = strikes
		}
		for d := o.OpenDate; d.Before(o.Expiry); d = d.AddDate(0, 0, 1) {
			u := d.Unix()
			if o.Strike > strikes[u] {
				strikes[u] = o.Strike
			}
			byUnix[u] = d
		}
	}

	dates := make([]time.Time, 0, len(byUnix))
	for _, d := range byUnix {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	frame, err := timeseries.NewFrame(dates, nil)
	if err != nil {
		panic(err) // dates are sorted and unique by construction
	}
	tickers := make([]string, 0, len(perTicker))
	for ticker := range perTicker {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)
	for _, ticker := range tickers {
		values := make([]float64, len(dates))
		for i, d := range dates {
			if s, ok := perTicker[ticker][d.Unix()]; ok {
				values[i] = s
			} else {
				values[i] = math.NaN()
			}
		}
		if err := frame.AddColumn(ticker, values); err != nil {
			panic(err) // tickers are unique by construction
		}
	}
	return frame
}
