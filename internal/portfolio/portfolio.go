// Package portfolio turns transaction logs into daily position grids,
// valuations and return series.
//
// A portfolio is assembled in three steps: expand transactions into a
// calendar grid of share counts per ticker, price the grid with daily
// closes, then derive the cash balance, capitalisation and returns. The
// synthetic "cash" column carries the running cash balance priced at 1.00;
// the initial balance defaults to the first day's holdings value, so a
// portfolio begins fully funded.
//
// Valuation rows survive only where every column has a price: non-trading
// days drop out of the capitalisation rather than interpolating.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/quantfold/hedge-engine/internal/model"
	"github.com/quantfold/hedge-engine/internal/timeseries"
)

var (
	ErrNoTransactions = errors.New("portfolio: no transactions")
	ErrNoHistory      = errors.New("portfolio: transactions start on or after the as-of date")
	ErrPriceMissing   = errors.New("portfolio: price missing for transaction date")
	ErrNoOverlap      = errors.New("portfolio: no dates with complete prices")
)

// PriceSource provides daily closing prices for one instrument over an
// inclusive date window. Dates must be normalized to UTC midnight and
// strictly increasing.
type PriceSource interface {
	ClosingPrices(ctx context.Context, ticker string, from, to time.Time) (timeseries.Series, error)
}

// Portfolio holds a priced position grid and the series derived from it.
// All series share the valuation index: the grid dates where every column
// has a price.
type Portfolio struct {
	positions    *timeseries.Frame
	prices       *timeseries.Frame
	transactions []model.Transaction

	capitalisation timeseries.Series
	returns        timeseries.Series
	cumulative     timeseries.Series

	hedgeCost float64
	cash      float64
}

// BuildPositions expands transactions into a daily share-count grid running
// from the earliest transaction date through the day before asOf. Each
// transaction contributes its amount to every day from its date onward.
func BuildPositions(transactions []model.Transaction, asOf time.Time) (*timeseries.Frame, error) {
	if len(transactions) == 0 {
		return nil, ErrNoTransactions
	}
	first := timeseries.Midnight(transactions[0].Date)
	for _, tx := range transactions[1:] {
		if d := timeseries.Midnight(tx.Date); d.Before(first) {
			first = d
		}
	}
	last := timeseries.Midnight(asOf).AddDate(0, 0, -1)
	if first.After(last) {
		return nil, ErrNoHistory
	}
	dates := timeseries.DateRange(first, last)

	grid, err := timeseries.NewFrame(dates, nil)
	if err != nil {
		return nil, err
	}
	for _, ticker := range tickersOf(transactions) {
		values := make([]float64, len(dates))
		for _, tx := range transactions {
			if tx.Ticker != ticker {
				continue
			}
			start := int(timeseries.Midnight(tx.Date).Sub(first).Hours() / 24)
			if start < 0 {
				start = 0
			}
			for i := start; i < len(values); i++ {
				values[i] += float64(tx.Amount)
			}
		}
		if err := grid.AddColumn(ticker, values); err != nil {
			return nil, err
		}
	}
	return grid, nil
}

// Build loads closing prices for every ticker in the transactions and
// assembles the portfolio as of asOf. The initial cash balance defaults to
// the first day's holdings value.
func Build(ctx context.Context, src PriceSource, transactions []model.Transaction, asOf time.Time) (*Portfolio, error) {
	return build(ctx, src, transactions, asOf, nil)
}

// BuildWithStartCash is Build with an explicit initial cash balance.
func BuildWithStartCash(ctx context.Context, src PriceSource, transactions []model.Transaction, asOf time.Time, startCash float64) (*Portfolio, error) {
	return build(ctx, src, transactions, asOf, &startCash)
}

// Benchmark builds the one-share baseline portfolio: a single buy of ticker
// dated at start.
func Benchmark(ctx context.Context, src PriceSource, ticker string, start, asOf time.Time) (*Portfolio, error) {
	tx := model.Transaction{Date: timeseries.Midnight(start), Ticker: ticker, Amount: 1}
	return Build(ctx, src, []model.Transaction{tx}, asOf)
}

func build(ctx context.Context, src PriceSource, transactions []model.Transaction, asOf time.Time, startCash *float64) (*Portfolio, error) {
	for _, tx := range transactions {
		if err := tx.Validate(); err != nil {
			return nil, fmt.Errorf("portfolio: transaction %s/%s: %w", tx.Ticker, tx.Date.Format("2006-01-02"), err)
		}
	}
	positions, err := BuildPositions(transactions, asOf)
	if err != nil {
		return nil, err
	}

	prices, err := timeseries.NewFrame(positions.Dates(), nil)
	if err != nil {
		return nil, err
	}
	for _, ticker := range tickersOf(transactions) {
		closes, err := src.ClosingPrices(ctx, ticker, positions.FirstDate(), positions.LastDate())
		if err != nil {
			return nil, fmt.Errorf("portfolio: load prices for %s: %w", ticker, err)
		}
		values := make([]float64, positions.NumRows())
		for i := range values {
			values[i] = math.NaN()
		}
		if err := prices.AddColumn(ticker, values); err != nil {
			return nil, err
		}
		for i := 0; i < closes.Len(); i++ {
			d := timeseries.Midnight(closes.Date(i))
			if err := prices.Set(d, ticker, closes.Value(i)); err != nil {
				return nil, fmt.Errorf("portfolio: price for %s on %s: %w", ticker, d.Format("2006-01-02"), err)
			}
		}
	}

	if startCash != nil {
		return NewWithStartCash(positions, prices, transactions, *startCash)
	}
	return New(positions, prices, transactions)
}

// New assembles a portfolio from a positions grid, a price frame over the
// same dates and the transactions behind them. The initial cash balance
// defaults to the first day's holdings value, so the portfolio starts
// fully funded.
func New(positions, prices *timeseries.Frame, transactions []model.Transaction) (*Portfolio, error) {
	return assemble(positions, prices, transactions, nil)
}

// NewWithStartCash is New with an explicit initial cash balance.
func NewWithStartCash(positions, prices *timeseries.Frame, transactions []model.Transaction, startCash float64) (*Portfolio, error) {
	return assemble(positions, prices, transactions, &startCash)
}

func assemble(positions, prices *timeseries.Frame, transactions []model.Transaction, startCash *float64) (*Portfolio, error) {
	if len(transactions) == 0 {
		return nil, ErrNoTransactions
	}

	holdings := positions.Mul(prices).DropNaNRows()
	if holdings.NumRows() == 0 {
		return nil, ErrNoOverlap
	}
	initialCash := 0.0
	if startCash != nil {
		initialCash = *startCash
	} else {
		_, initialCash = holdings.SumRows().First()
	}

	// Net cash movement per date: every buy debits, every sell credits at
	// that day's close.
	deltas := make(map[int64]float64, len(transactions))
	for _, tx := range transactions {
		d := timeseries.Midnight(tx.Date)
		v, ok := prices.At(d, tx.Ticker)
		if !ok || math.IsNaN(v) {
			return nil, fmt.Errorf("%w: %s on %s", ErrPriceMissing, tx.Ticker, d.Format("2006-01-02"))
		}
		deltas[d.Unix()] += float64(tx.Amount) * v * -1
	}

	cash := make([]float64, positions.NumRows())
	running := initialCash
	for i, d := range positions.Dates() {
		running += deltas[d.Unix()]
		cash[i] = running
	}
	positionsWithCash := withColumn(positions, model.CashTicker, cash)
	pricesWithCash := withColumn(prices, model.CashTicker, ones(prices.NumRows()))

	capitalisation := positionsWithCash.Mul(pricesWithCash).DropNaNRows().SumRows()
	if capitalisation.Empty() {
		return nil, ErrNoOverlap
	}
	returns := capitalisation.PctChange()

	return &Portfolio{
		positions:      positionsWithCash,
		prices:         pricesWithCash,
		transactions:   append([]model.Transaction(nil), transactions...),
		capitalisation: capitalisation,
		returns:        returns,
		cumulative:     returns.CumProd1p(),
	}, nil
}

// Positions returns the daily share-count grid, cash column included.
func (p *Portfolio) Positions() *timeseries.Frame { return p.positions }

// Prices returns the daily price frame, cash column included.
func (p *Portfolio) Prices() *timeseries.Frame { return p.prices }

// Transactions returns the transaction log behind the portfolio.
func (p *Portfolio) Transactions() []model.Transaction {
	return append([]model.Transaction(nil), p.transactions...)
}

// Capitalisation is the daily portfolio value: holdings plus cash balance.
func (p *Portfolio) Capitalisation() timeseries.Series { return p.capitalisation }

// Returns is the daily simple return series of the capitalisation. The
// first observation is zero.
func (p *Portfolio) Returns() timeseries.Series { return p.returns }

// CumulativeReturns is the compounded growth of one unit invested at the
// first valuation date.
func (p *Portfolio) CumulativeReturns() timeseries.Series { return p.cumulative }

// HedgeCost is the total option premium charged against the portfolio.
func (p *Portfolio) HedgeCost() float64 { return p.hedgeCost }

// Cash is the settlement cash generated by hedge exercises.
func (p *Portfolio) Cash() float64 { return p.cash }

// SetHedge records the cost and settlement cash of a hedge simulation so
// they flow into performance reports.
func (p *Portfolio) SetHedge(cost, cash float64) {
	p.hedgeCost = cost
	p.cash = cash
}

func tickersOf(transactions []model.Transaction) []string {
	seen := make(map[string]bool, len(transactions))
	var tickers []string
	for _, tx := range transactions {
		if !seen[tx.Ticker] {
			seen[tx.Ticker] = true
			tickers = append(tickers, tx.Ticker)
		}
	}
	sort.Strings(tickers)
	return tickers
}

func withColumn(f *timeseries.Frame, name string, values []float64) *timeseries.Frame {
	out := f.Drop(name)
	// Drop copies, so the append cannot alias the input frame.
	if err := out.AddColumn(name, values); err != nil {
		// The column was just dropped; re-adding it cannot collide.
		panic(err)
	}
	return out
}

func ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}
