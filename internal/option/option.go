// Package option implements Black-Scholes European option pricing and the
// calendar conventions of listed equity options: Friday expiries and
// OCC-style option symbols.
//
// Pricing is pure float64 — premiums are statistical estimates, not ledger
// money. Conversion to decimal happens at the persistence boundary.
//
// Reference: Black, F. & Scholes, M. (1973) "The Pricing of Options and
// Corporate Liabilities"
package option

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Option kinds as encoded in symbols.
const (
	KindCall = "C"
	KindPut  = "P"
)

// ErrInvalidSymbol is returned when an option symbol cannot be parsed.
var ErrInvalidSymbol = errors.New("option: invalid symbol format")

// symbolRegex matches OCC-style symbols: {root}{YYMMDD}{C|P}{strike×1000}.
// Example: AAPL260116P00152500
var symbolRegex = regexp.MustCompile(
	`^([A-Z][A-Z0-9.]{0,5})(\d{6})([CP])(\d{8})$`,
)

// normCDF is the standard normal cumulative distribution function.
func normCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

// dOne computes the d1 term of the Black-Scholes model.
func dOne(s, k, t, r, sigma float64) float64 {
	return (math.Log(s/k) + (r+0.5*sigma*sigma)*t) / (sigma * math.Sqrt(t))
}

// PutPrice computes the Black-Scholes premium of a European put:
//
//	P = K·e^(−rT)·Φ(−d2) − S·Φ(−d1)
//
// s is the spot price, k the strike, t the time to expiry in years, r the
// risk-free rate and sigma the annualized volatility. s, k, t and sigma must
// be positive; outside that domain the result is NaN.
func PutPrice(s, k, t, r, sigma float64) float64 {
	d1 := dOne(s, k, t, r, sigma)
	d2 := d1 - sigma*math.Sqrt(t)
	return k*math.Exp(-r*t)*normCDF(-d2) - s*normCDF(-d1)
}

// CallPrice computes the Black-Scholes premium of a European call:
//
//	C = S·Φ(d1) − K·e^(−rT)·Φ(d2)
func CallPrice(s, k, t, r, sigma float64) float64 {
	d1 := dOne(s, k, t, r, sigma)
	d2 := d1 - sigma*math.Sqrt(t)
	return s*normCDF(d1) - k*math.Exp(-r*t)*normCDF(d2)
}

// NextFriday returns the first Friday strictly after t. A Friday maps to the
// Friday of the following week.
func NextFriday(t time.Time) time.Time {
	dow := (int(t.Weekday()) + 6) % 7 // Monday = 0
	if dow >= 4 {
		dow -= 7
	}
	return t.AddDate(0, 0, 4-dow)
}

// MaturityDays converts whole months to calendar days at 30.5 days per
// month, truncated.
func MaturityDays(months int) int {
	return months * 61 / 2
}

// ExpiryDate returns the Friday expiry of an option opened on open with the
// given maturity in whole months.
func ExpiryDate(open time.Time, maturityMonths int) time.Time {
	return NextFriday(open.AddDate(0, 0, MaturityDays(maturityMonths)))
}

// Put is one protective put position covering Amount shares of Ticker.
type Put struct {
	Ticker   string
	OpenDate time.Time
	Expiry   time.Time
	Amount   int64
	Strike   float64
	Premium  float64
}

// Cost is the total premium paid: amount × premium.
func (p Put) Cost() float64 {
	return float64(p.Amount) * p.Premium
}

// Symbol renders the OCC-style symbol of the put, with the strike encoded
// in thousandths.
func (p Put) Symbol() string {
	return fmt.Sprintf("%s%s%s%08d",
		strings.ToUpper(p.Ticker), p.Expiry.Format("060102"), KindPut,
		int64(math.Round(p.Strike*1000)))
}

// Symbol is a parsed OCC-style option symbol.
type Symbol struct {
	Raw    string    `json:"raw"`
	Ticker string    `json:"ticker"`
	Expiry time.Time `json:"expiry"`
	Kind   string    `json:"kind"` // "C" or "P"
	Strike float64   `json:"strike"`
}

// ParseSymbol parses and validates an OCC-style option symbol.
// Format: {root}{YYMMDD}{C|P}{strike×1000, zero-padded to 8 digits}
func ParseSymbol(sym string) (*Symbol, error) {
	matches := symbolRegex.FindStringSubmatch(sym)
	if matches == nil {
		return nil, fmt.Errorf("%w: %s (expected {root}{YYMMDD}{C|P}{strike})",
			ErrInvalidSymbol, sym)
	}

	expiry, err := time.Parse("060102", matches[2])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date %s", ErrInvalidSymbol, matches[2])
	}
	milli, err := strconv.ParseInt(matches[4], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid strike %s", ErrInvalidSymbol, matches[4])
	}

	return &Symbol{
		Raw:    sym,
		Ticker: matches[1],
		Expiry: expiry,
		Kind:   matches[3],
		Strike: float64(milli) / 1000,
	}, nil
}
