// Package universe filters transaction logs by instrument sector.
//
// Performance queries can scope a portfolio to one slice of the book: keep
// only the technology names, or drop the energy names, and re-run the
// valuation over whatever remains. The filter works on the transaction log
// rather than the position grid, so the reduced portfolio rebuilds its own
// cash balance from the trades that survive.
package universe

import (
	"sort"
	"strings"

	"github.com/quantfold/hedge-engine/internal/model"
)

// Filter returns the transactions whose ticker belongs to one of the named
// sectors. Sector names match case-insensitively; tickers missing from the
// sector map never match.
func Filter(transactions []model.Transaction, sectors map[string]string, keep ...string) []model.Transaction {
	want := normalize(keep)
	var out []model.Transaction
	for _, tx := range transactions {
		sector, ok := sectors[tx.Ticker]
		if !ok {
			continue
		}
		if want[strings.ToLower(sector)] {
			out = append(out, tx)
		}
	}
	return out
}

// Exclude returns the transactions whose ticker does not belong to any of
// the named sectors. Tickers missing from the sector map are kept.
func Exclude(transactions []model.Transaction, sectors map[string]string, drop ...string) []model.Transaction {
	avoid := normalize(drop)
	var out []model.Transaction
	for _, tx := range transactions {
		if sector, ok := sectors[tx.Ticker]; ok && avoid[strings.ToLower(sector)] {
			continue
		}
		out = append(out, tx)
	}
	return out
}

// Tickers returns the distinct tickers of a transaction log, sorted.
func Tickers(transactions []model.Transaction) []string {
	seen := make(map[string]bool, len(transactions))
	var out []string
	for _, tx := range transactions {
		if !seen[tx.Ticker] {
			seen[tx.Ticker] = true
			out = append(out, tx.Ticker)
		}
	}
	sort.Strings(out)
	return out
}

func normalize(names []string) map[string]bool {
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[strings.ToLower(n)] = true
	}
	return out
}
