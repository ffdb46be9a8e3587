package store

import (
	"context"
	"time"

	"github.com/quantfold/hedge-engine/internal/metrics"
	"github.com/quantfold/hedge-engine/internal/model"
)

// InstrumentedStore wraps a Store and reports per-operation latency to
// Prometheus. Mount it as the outermost layer so cache hits are measured
// too.
type InstrumentedStore struct {
	next Store
}

// NewInstrumentedStore wraps next with latency instrumentation.
func NewInstrumentedStore(next Store) *InstrumentedStore {
	return &InstrumentedStore{next: next}
}

// observe records the elapsed time of one store operation.
func observe(op string, start time.Time) {
	metrics.StoreQueryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (s *InstrumentedStore) UpsertPrices(ctx context.Context, bars []model.PriceBar) error {
	defer observe("upsert_prices", time.Now())
	return s.next.UpsertPrices(ctx, bars)
}

func (s *InstrumentedStore) ClosingPrices(ctx context.Context, ticker string, from, to time.Time) ([]model.PriceBar, error) {
	defer observe("closing_prices", time.Now())
	return s.next.ClosingPrices(ctx, ticker, from, to)
}

func (s *InstrumentedStore) UpsertInstruments(ctx context.Context, instruments []model.Instrument) error {
	defer observe("upsert_instruments", time.Now())
	return s.next.UpsertInstruments(ctx, instruments)
}

func (s *InstrumentedStore) Sectors(ctx context.Context) (map[string]string, error) {
	defer observe("sectors", time.Now())
	return s.next.Sectors(ctx)
}

func (s *InstrumentedStore) CreatePortfolio(ctx context.Context, p *model.PortfolioRecord) error {
	defer observe("create_portfolio", time.Now())
	return s.next.CreatePortfolio(ctx, p)
}

func (s *InstrumentedStore) GetPortfolio(ctx context.Context, id string) (*model.PortfolioRecord, error) {
	defer observe("get_portfolio", time.Now())
	return s.next.GetPortfolio(ctx, id)
}

func (s *InstrumentedStore) ListPortfolios(ctx context.Context) ([]model.PortfolioRecord, error) {
	defer observe("list_portfolios", time.Now())
	return s.next.ListPortfolios(ctx)
}

func (s *InstrumentedStore) AddTransactions(ctx context.Context, portfolioID string, txs []model.Transaction) error {
	defer observe("add_transactions", time.Now())
	return s.next.AddTransactions(ctx, portfolioID, txs)
}

func (s *InstrumentedStore) Transactions(ctx context.Context, portfolioID string) ([]model.Transaction, error) {
	defer observe("transactions", time.Now())
	return s.next.Transactions(ctx, portfolioID)
}

func (s *InstrumentedStore) InsertHedgeRun(ctx context.Context, run *model.HedgeRun) error {
	defer observe("insert_hedge_run", time.Now())
	return s.next.InsertHedgeRun(ctx, run)
}

func (s *InstrumentedStore) GetHedgeRun(ctx context.Context, id string) (*model.HedgeRun, error) {
	defer observe("get_hedge_run", time.Now())
	return s.next.GetHedgeRun(ctx, id)
}

func (s *InstrumentedStore) HedgeRuns(ctx context.Context, portfolioID string) ([]model.HedgeRun, error) {
	defer observe("hedge_runs", time.Now())
	return s.next.HedgeRuns(ctx, portfolioID)
}
