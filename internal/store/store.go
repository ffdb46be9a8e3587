// Package store defines the persistence interface for the hedge engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/quantfold/hedge-engine/internal/model"
)

// ErrNotFound is returned when a requested record does not exist. Wrap it
// so callers can map lookups to 404s with errors.Is.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Price operations ---

	// UpsertPrices inserts daily bars, replacing existing (ticker, date) rows.
	UpsertPrices(ctx context.Context, bars []model.PriceBar) error

	// ClosingPrices returns the bars of a ticker with from <= date <= to,
	// ordered by date ascending.
	ClosingPrices(ctx context.Context, ticker string, from, to time.Time) ([]model.PriceBar, error)

	// --- Instrument operations ---

	// UpsertInstruments inserts or replaces instrument reference data.
	UpsertInstruments(ctx context.Context, instruments []model.Instrument) error

	// Sectors returns the ticker-to-sector mapping of all known instruments.
	Sectors(ctx context.Context) (map[string]string, error)

	// --- Portfolio operations ---

	// CreatePortfolio persists a new portfolio header.
	CreatePortfolio(ctx context.Context, p *model.PortfolioRecord) error

	// GetPortfolio retrieves a portfolio by its ID.
	GetPortfolio(ctx context.Context, id string) (*model.PortfolioRecord, error)

	// ListPortfolios returns all portfolios, newest first.
	ListPortfolios(ctx context.Context) ([]model.PortfolioRecord, error)

	// AddTransactions appends trades to a portfolio's transaction log.
	AddTransactions(ctx context.Context, portfolioID string, txs []model.Transaction) error

	// Transactions returns a portfolio's trades ordered by date.
	Transactions(ctx context.Context, portfolioID string) ([]model.Transaction, error)

	// --- Hedge run operations ---

	// InsertHedgeRun persists the outcome of a hedge simulation.
	InsertHedgeRun(ctx context.Context, run *model.HedgeRun) error

	// GetHedgeRun retrieves a hedge run by its ID.
	GetHedgeRun(ctx context.Context, id string) (*model.HedgeRun, error)

	// HedgeRuns returns all hedge runs of a portfolio, newest first.
	HedgeRuns(ctx context.Context, portfolioID string) ([]model.HedgeRun, error)
}
