package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/quantfold/hedge-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision;
// option legs of a hedge run are stored as a JSONB document.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// --- Price operations ---

func (s *PostgresStore) UpsertPrices(ctx context.Context, bars []model.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	// One round trip for the whole batch; history loads run to thousands
	// of bars per ticker.
	batch := &pgx.Batch{}
	for _, b := range bars {
		batch.Queue(
			`INSERT INTO prices (ticker, date, open, close, high, low)
			 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC)
			 ON CONFLICT (ticker, date) DO UPDATE
			 SET open = EXCLUDED.open, close = EXCLUDED.close,
			     high = EXCLUDED.high, low = EXCLUDED.low`,
			b.Ticker, b.Date,
			b.Open.String(), b.Close.String(), b.High.String(), b.Low.String(),
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range bars {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert price bar: %w", err)
		}
	}
	return results.Close()
}

func (s *PostgresStore) ClosingPrices(ctx context.Context, ticker string, from, to time.Time) ([]model.PriceBar, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ticker, date, open::TEXT, close::TEXT, high::TEXT, low::TEXT
		 FROM prices
		 WHERE ticker = $1 AND date >= $2 AND date <= $3
		 ORDER BY date`, ticker, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPriceBars(rows)
}

// --- Instrument operations ---

func (s *PostgresStore) UpsertInstruments(ctx context.Context, instruments []model.Instrument) error {
	if len(instruments) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, inst := range instruments {
		batch.Queue(
			`INSERT INTO instruments (ticker, name, sector)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (ticker) DO UPDATE
			 SET name = EXCLUDED.name, sector = EXCLUDED.sector`,
			inst.Ticker, inst.Name, inst.Sector,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range instruments {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert instrument: %w", err)
		}
	}
	return results.Close()
}

func (s *PostgresStore) Sectors(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT ticker, sector FROM instruments`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sectors := make(map[string]string)
	for rows.Next() {
		var ticker, sector string
		if err := rows.Scan(&ticker, &sector); err != nil {
			return nil, err
		}
		sectors[ticker] = sector
	}
	return sectors, rows.Err()
}

// --- Portfolio operations ---

func (s *PostgresStore) CreatePortfolio(ctx context.Context, p *model.PortfolioRecord) error {
	var startCash *string
	if p.StartCash != nil {
		v := p.StartCash.String()
		startCash = &v
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO portfolios (id, name, benchmark_ticker, start_cash, created_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5)`,
		p.ID, p.Name, p.BenchmarkTicker, startCash, p.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetPortfolio(ctx context.Context, id string) (*model.PortfolioRecord, error) {
	var p model.PortfolioRecord
	var startCash *string

	err := s.pool.QueryRow(ctx,
		`SELECT id, name, benchmark_ticker, start_cash::TEXT, created_at
		 FROM portfolios WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.BenchmarkTicker, &startCash, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get portfolio %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get portfolio %s: %w", id, err)
	}

	if startCash != nil {
		cash, _ := decimal.NewFromString(*startCash)
		p.StartCash = &cash
	}
	return &p, nil
}

func (s *PostgresStore) ListPortfolios(ctx context.Context) ([]model.PortfolioRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, benchmark_ticker, start_cash::TEXT, created_at
		 FROM portfolios ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var portfolios []model.PortfolioRecord
	for rows.Next() {
		var p model.PortfolioRecord
		var startCash *string
		if err := rows.Scan(&p.ID, &p.Name, &p.BenchmarkTicker, &startCash, &p.CreatedAt); err != nil {
			return nil, err
		}
		if startCash != nil {
			cash, _ := decimal.NewFromString(*startCash)
			p.StartCash = &cash
		}
		portfolios = append(portfolios, p)
	}
	return portfolios, rows.Err()
}

func (s *PostgresStore) AddTransactions(ctx context.Context, portfolioID string, txs []model.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, tx := range txs {
		batch.Queue(
			`INSERT INTO transactions (id, portfolio_id, date, ticker, amount, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			tx.ID, portfolioID, tx.Date, tx.Ticker, tx.Amount, tx.CreatedAt,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range txs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
	}
	return results.Close()
}

func (s *PostgresStore) Transactions(ctx context.Context, portfolioID string) ([]model.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, portfolio_id, date, ticker, amount, created_at
		 FROM transactions
		 WHERE portfolio_id = $1
		 ORDER BY date, created_at`, portfolioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []model.Transaction
	for rows.Next() {
		var tx model.Transaction
		if err := rows.Scan(&tx.ID, &tx.PortfolioID, &tx.Date, &tx.Ticker, &tx.Amount, &tx.CreatedAt); err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// --- Hedge run operations ---

func (s *PostgresStore) InsertHedgeRun(ctx context.Context, run *model.HedgeRun) error {
	options, err := json.Marshal(run.Options)
	if err != nil {
		return fmt.Errorf("encode option legs: %w", err)
	}

	var trigger *string
	if run.Trigger != nil {
		v := run.Trigger.String()
		trigger = &v
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO hedge_runs (id, portfolio_id, relative_strike, maturity_months,
		                         trigger, hedge_cost, settlement_cash, options, created_at)
		 VALUES ($1, $2, $3::NUMERIC, $4, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8, $9)`,
		run.ID, run.PortfolioID,
		run.RelativeStrike.String(), run.MaturityMonths, trigger,
		run.HedgeCost.String(), run.SettlementCash.String(),
		options, run.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetHedgeRun(ctx context.Context, id string) (*model.HedgeRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, portfolio_id, relative_strike::TEXT, maturity_months,
		        trigger::TEXT, hedge_cost::TEXT, settlement_cash::TEXT,
		        options, created_at
		 FROM hedge_runs WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs, err := scanHedgeRuns(rows)
	if err != nil {
		return nil, fmt.Errorf("get hedge run %s: %w", id, err)
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("get hedge run %s: %w", id, ErrNotFound)
	}
	return &runs[0], nil
}

func (s *PostgresStore) HedgeRuns(ctx context.Context, portfolioID string) ([]model.HedgeRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, portfolio_id, relative_strike::TEXT, maturity_months,
		        trigger::TEXT, hedge_cost::TEXT, settlement_cash::TEXT,
		        options, created_at
		 FROM hedge_runs
		 WHERE portfolio_id = $1
		 ORDER BY created_at DESC`, portfolioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanHedgeRuns(rows)
}

// --- Scan helpers ---

// pgxRows is the subset of pgx.Rows the scan helpers need.
type pgxRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanPriceBars(rows pgxRows) ([]model.PriceBar, error) {
	var bars []model.PriceBar
	for rows.Next() {
		var b model.PriceBar
		var openS, closeS, highS, lowS string

		if err := rows.Scan(&b.Ticker, &b.Date, &openS, &closeS, &highS, &lowS); err != nil {
			return nil, err
		}
		b.Open, _ = decimal.NewFromString(openS)
		b.Close, _ = decimal.NewFromString(closeS)
		b.High, _ = decimal.NewFromString(highS)
		b.Low, _ = decimal.NewFromString(lowS)
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

func scanHedgeRuns(rows pgxRows) ([]model.HedgeRun, error) {
	var runs []model.HedgeRun
	for rows.Next() {
		var run model.HedgeRun
		var relStrikeS, hedgeCostS, settlementS string
		var triggerS *string
		var options []byte

		if err := rows.Scan(&run.ID, &run.PortfolioID, &relStrikeS, &run.MaturityMonths,
			&triggerS, &hedgeCostS, &settlementS, &options, &run.CreatedAt); err != nil {
			return nil, err
		}
		run.RelativeStrike, _ = decimal.NewFromString(relStrikeS)
		run.HedgeCost, _ = decimal.NewFromString(hedgeCostS)
		run.SettlementCash, _ = decimal.NewFromString(settlementS)
		if triggerS != nil {
			trigger, _ := decimal.NewFromString(*triggerS)
			run.Trigger = &trigger
		}
		if err := json.Unmarshal(options, &run.Options); err != nil {
			return nil, fmt.Errorf("decode option legs: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
