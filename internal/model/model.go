// Package model defines the core domain types shared across the hedge engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CashTicker is the synthetic column the portfolio engine reserves for the
// running cash balance. Real instruments can never use it.
const CashTicker = "cash"

var (
	ErrEmptyTicker    = errors.New("model: ticker is empty")
	ErrReservedTicker = errors.New("model: ticker is reserved")
	ErrZeroAmount     = errors.New("model: transaction amount is zero")
	ErrZeroDate       = errors.New("model: transaction date is not set")
)

// Transaction is one signed trade: positive Amount buys shares, negative
// sells. Dates are calendar days at UTC midnight.
type Transaction struct {
	ID          string    `json:"id" db:"id"`
	PortfolioID string    `json:"portfolio_id" db:"portfolio_id"`
	Date        time.Time `json:"date" db:"date"`
	Ticker      string    `json:"ticker" db:"ticker"`
	Amount      int64     `json:"amount" db:"amount"` // signed: +buy, -sell
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Validate checks the transaction fields against domain rules.
func (t Transaction) Validate() error {
	if t.Ticker == "" {
		return ErrEmptyTicker
	}
	if strings.EqualFold(t.Ticker, CashTicker) {
		return fmt.Errorf("%w: %s", ErrReservedTicker, t.Ticker)
	}
	if t.Amount == 0 {
		return ErrZeroAmount
	}
	if t.Date.IsZero() {
		return ErrZeroDate
	}
	return nil
}

// IsBuy reports whether the transaction adds shares.
func (t Transaction) IsBuy() bool {
	return t.Amount > 0
}

// PriceBar is one daily OHLC bar for an instrument.
type PriceBar struct {
	Ticker string          `json:"ticker" db:"ticker"`
	Date   time.Time       `json:"date" db:"date"`
	Open   decimal.Decimal `json:"open" db:"open"`
	Close  decimal.Decimal `json:"close" db:"close"`
	High   decimal.Decimal `json:"high" db:"high"`
	Low    decimal.Decimal `json:"low" db:"low"`
}

// Instrument holds static reference data for a tradable ticker.
type Instrument struct {
	Ticker string `json:"ticker" db:"ticker"`
	Name   string `json:"name" db:"name"`
	Sector string `json:"sector" db:"sector"`
}

// PortfolioRecord is the persisted header of a transaction portfolio.
// StartCash nil means the initial cash balance equals the first-day
// capitalisation.
type PortfolioRecord struct {
	ID              string           `json:"id" db:"id"`
	Name            string           `json:"name" db:"name"`
	BenchmarkTicker string           `json:"benchmark_ticker" db:"benchmark_ticker"`
	StartCash       *decimal.Decimal `json:"start_cash,omitempty" db:"start_cash"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
}

// OptionLeg is one protective put written during a hedge simulation.
type OptionLeg struct {
	Symbol   string          `json:"symbol"`
	Ticker   string          `json:"ticker"`
	OpenDate time.Time       `json:"open_date"`
	Expiry   time.Time       `json:"expiry"`
	Amount   int64           `json:"amount"`
	Strike   decimal.Decimal `json:"strike"`
	Premium  decimal.Decimal `json:"premium"`
	Cost     decimal.Decimal `json:"cost"`
}

// HedgeRun is the persisted outcome of one protective-put simulation.
// Trigger nil disables rally re-hedging.
type HedgeRun struct {
	ID             string           `json:"id" db:"id"`
	PortfolioID    string           `json:"portfolio_id" db:"portfolio_id"`
	RelativeStrike decimal.Decimal  `json:"relative_strike" db:"relative_strike"`
	MaturityMonths int              `json:"maturity_months" db:"maturity_months"`
	Trigger        *decimal.Decimal `json:"trigger,omitempty" db:"trigger"`
	HedgeCost      decimal.Decimal  `json:"hedge_cost" db:"hedge_cost"`
	SettlementCash decimal.Decimal  `json:"settlement_cash" db:"settlement_cash"`
	Options        []OptionLeg      `json:"options" db:"options"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
}
