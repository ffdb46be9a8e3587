package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/quantfold/hedge-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu           sync.RWMutex
	prices       map[string]map[int64]model.PriceBar // ticker -> unix date -> bar
	instruments  map[string]model.Instrument
	portfolios   map[string]*model.PortfolioRecord
	transactions map[string][]model.Transaction
	hedgeRuns    map[string]*model.HedgeRun
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		prices:       make(map[string]map[int64]model.PriceBar),
		instruments:  make(map[string]model.Instrument),
		portfolios:   make(map[string]*model.PortfolioRecord),
		transactions: make(map[string][]model.Transaction),
		hedgeRuns:    make(map[string]*model.HedgeRun),
	}
}

func (s *MemoryStore) UpsertPrices(_ context.Context, bars []model.PriceBar) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range bars {
		byDate, ok := s.prices[b.Ticker]
		if !ok {
			byDate = make(map[int64]model.PriceBar)
			s.prices[b.Ticker] = byDate
		}
		byDate[b.Date.Unix()] = b
	}
	return nil
}

func (s *MemoryStore) ClosingPrices(_ context.Context, ticker string, from, to time.Time) ([]model.PriceBar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var bars []model.PriceBar
	for _, b := range s.prices[ticker] {
		if b.Date.Before(from) || b.Date.After(to) {
			continue
		}
		bars = append(bars, b)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

func (s *MemoryStore) UpsertInstruments(_ context.Context, instruments []model.Instrument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, inst := range instruments {
		s.instruments[inst.Ticker] = inst
	}
	return nil
}

func (s *MemoryStore) Sectors(_ context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sectors := make(map[string]string, len(s.instruments))
	for ticker, inst := range s.instruments {
		sectors[ticker] = inst.Sector
	}
	return sectors, nil
}

func (s *MemoryStore) CreatePortfolio(_ context.Context, p *model.PortfolioRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.portfolios[p.ID]; ok {
		return fmt.Errorf("portfolio %s already exists", p.ID)
	}

	// Store a copy to avoid external mutation.
	copy := *p
	s.portfolios[p.ID] = &copy
	return nil
}

func (s *MemoryStore) GetPortfolio(_ context.Context, id string) (*model.PortfolioRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.portfolios[id]
	if !ok {
		return nil, fmt.Errorf("portfolio %s: %w", id, ErrNotFound)
	}
	copy := *p
	return &copy, nil
}

func (s *MemoryStore) ListPortfolios(_ context.Context) ([]model.PortfolioRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	portfolios := make([]model.PortfolioRecord, 0, len(s.portfolios))
	for _, p := range s.portfolios {
		portfolios = append(portfolios, *p)
	}
	sort.Slice(portfolios, func(i, j int) bool {
		return portfolios[i].CreatedAt.After(portfolios[j].CreatedAt)
	})
	return portfolios, nil
}

func (s *MemoryStore) AddTransactions(_ context.Context, portfolioID string, txs []model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transactions[portfolioID] = append(s.transactions[portfolioID], txs...)
	return nil
}

func (s *MemoryStore) Transactions(_ context.Context, portfolioID string) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txs := make([]model.Transaction, len(s.transactions[portfolioID]))
	copy(txs, s.transactions[portfolioID])
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].Date.Before(txs[j].Date) })
	return txs, nil
}

func (s *MemoryStore) InsertHedgeRun(_ context.Context, run *model.HedgeRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *run
	stored.Options = append([]model.OptionLeg(nil), run.Options...)
	s.hedgeRuns[run.ID] = &stored
	return nil
}

func (s *MemoryStore) GetHedgeRun(_ context.Context, id string) (*model.HedgeRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.hedgeRuns[id]
	if !ok {
		return nil, fmt.Errorf("hedge run %s: %w", id, ErrNotFound)
	}
	copy := *run
	copy.Options = append([]model.OptionLeg(nil), run.Options...)
	return &copy, nil
}

func (s *MemoryStore) HedgeRuns(_ context.Context, portfolioID string) ([]model.HedgeRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var runs []model.HedgeRun
	for _, run := range s.hedgeRuns {
		if run.PortfolioID != portfolioID {
			continue
		}
		r := *run
		r.Options = append([]model.OptionLeg(nil), run.Options...)
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].CreatedAt.After(runs[j].CreatedAt) })
	return runs, nil
}
