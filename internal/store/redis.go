package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quantfold/hedge-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
//
// Price history is cached per query range under a per-ticker generation
// counter: upserting bars bumps the counter, which orphans every cached
// range of that ticker without scanning for keys. Orphans expire with
// their TTL.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) UpsertPrices(ctx context.Context, bars []model.PriceBar) error {
	if err := s.primary.UpsertPrices(ctx, bars); err != nil {
		return err
	}

	// Bump the generation of every touched ticker.
	seen := make(map[string]bool)
	for _, b := range bars {
		if !seen[b.Ticker] {
			seen[b.Ticker] = true
			s.rdb.Incr(ctx, priceGenKey(b.Ticker))
		}
	}
	return nil
}

func (s *CachedStore) UpsertInstruments(ctx context.Context, instruments []model.Instrument) error {
	if err := s.primary.UpsertInstruments(ctx, instruments); err != nil {
		return err
	}
	s.rdb.Del(ctx, sectorsKey)
	return nil
}

func (s *CachedStore) CreatePortfolio(ctx context.Context, p *model.PortfolioRecord) error {
	if err := s.primary.CreatePortfolio(ctx, p); err != nil {
		return err
	}
	s.cachePortfolio(ctx, p)
	return nil
}

func (s *CachedStore) AddTransactions(ctx context.Context, portfolioID string, txs []model.Transaction) error {
	if err := s.primary.AddTransactions(ctx, portfolioID, txs); err != nil {
		return err
	}
	// Invalidate the transaction log; next read will re-populate.
	s.rdb.Del(ctx, transactionsKey(portfolioID))
	return nil
}

func (s *CachedStore) InsertHedgeRun(ctx context.Context, run *model.HedgeRun) error {
	if err := s.primary.InsertHedgeRun(ctx, run); err != nil {
		return err
	}
	s.rdb.Del(ctx, hedgeRunsKey(run.PortfolioID))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) ClosingPrices(ctx context.Context, ticker string, from, to time.Time) ([]model.PriceBar, error) {
	gen, err := s.rdb.Get(ctx, priceGenKey(ticker)).Result()
	if err != nil {
		gen = "0"
	}
	key := pricesKey(ticker, gen, from, to)

	// Try cache.
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var bars []model.PriceBar
		if json.Unmarshal(data, &bars) == nil {
			return bars, nil
		}
	}

	// Cache miss: read from primary.
	bars, err := s.primary.ClosingPrices(ctx, ticker, from, to)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(bars); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
	return bars, nil
}

func (s *CachedStore) Sectors(ctx context.Context) (map[string]string, error) {
	data, err := s.rdb.Get(ctx, sectorsKey).Bytes()
	if err == nil {
		var sectors map[string]string
		if json.Unmarshal(data, &sectors) == nil {
			return sectors, nil
		}
	}

	sectors, err := s.primary.Sectors(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(sectors); err == nil {
		s.rdb.Set(ctx, sectorsKey, data, s.ttl)
	}
	return sectors, nil
}

func (s *CachedStore) GetPortfolio(ctx context.Context, id string) (*model.PortfolioRecord, error) {
	data, err := s.rdb.Get(ctx, portfolioKey(id)).Bytes()
	if err == nil {
		var p model.PortfolioRecord
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	}

	p, err := s.primary.GetPortfolio(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cachePortfolio(ctx, p)
	return p, nil
}

func (s *CachedStore) Transactions(ctx context.Context, portfolioID string) ([]model.Transaction, error) {
	data, err := s.rdb.Get(ctx, transactionsKey(portfolioID)).Bytes()
	if err == nil {
		var txs []model.Transaction
		if json.Unmarshal(data, &txs) == nil {
			return txs, nil
		}
	}

	txs, err := s.primary.Transactions(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(txs); err == nil {
		s.rdb.Set(ctx, transactionsKey(portfolioID), data, s.ttl)
	}
	return txs, nil
}

func (s *CachedStore) GetHedgeRun(ctx context.Context, id string) (*model.HedgeRun, error) {
	// Runs are immutable once inserted, so a hit never goes stale.
	data, err := s.rdb.Get(ctx, hedgeRunKey(id)).Bytes()
	if err == nil {
		var run model.HedgeRun
		if json.Unmarshal(data, &run) == nil {
			return &run, nil
		}
	}

	run, err := s.primary.GetHedgeRun(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(run); err == nil {
		s.rdb.Set(ctx, hedgeRunKey(id), data, s.ttl)
	}
	return run, nil
}

func (s *CachedStore) HedgeRuns(ctx context.Context, portfolioID string) ([]model.HedgeRun, error) {
	data, err := s.rdb.Get(ctx, hedgeRunsKey(portfolioID)).Bytes()
	if err == nil {
		var runs []model.HedgeRun
		if json.Unmarshal(data, &runs) == nil {
			return runs, nil
		}
	}

	runs, err := s.primary.HedgeRuns(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(runs); err == nil {
		s.rdb.Set(ctx, hedgeRunsKey(portfolioID), data, s.ttl)
	}
	return runs, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListPortfolios(ctx context.Context) ([]model.PortfolioRecord, error) {
	return s.primary.ListPortfolios(ctx)
}

// --- Cache helpers ---

func (s *CachedStore) cachePortfolio(ctx context.Context, p *model.PortfolioRecord) {
	if data, err := json.Marshal(p); err == nil {
		s.rdb.Set(ctx, portfolioKey(p.ID), data, s.ttl)
	}
}

const sectorsKey = "sectors"

func priceGenKey(ticker string) string { return fmt.Sprintf("price_gen:%s", ticker) }

func pricesKey(ticker, gen string, from, to time.Time) string {
	return fmt.Sprintf("prices:%s:%s:%d:%d", ticker, gen, from.Unix(), to.Unix())
}

func portfolioKey(id string) string    { return fmt.Sprintf("portfolio:%s", id) }
func transactionsKey(id string) string { return fmt.Sprintf("transactions:%s", id) }
func hedgeRunKey(id string) string     { return fmt.Sprintf("hedge_run:%s", id) }
func hedgeRunsKey(id string) string    { return fmt.Sprintf("hedge_runs:%s", id) }
