// Package service provides the HTTP handlers and business logic for
// loading market data, managing portfolios, and running performance and
// hedge analytics over them.
//
// Handlers follow one shape: decode, validate, load from the store,
// compute with the domain packages, persist, broadcast, write JSON.
// Monetary values cross the wire as shopspring/decimal; statistics are
// float64 with NaN encoded as null.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quantfold/hedge-engine/internal/hedge"
	"github.com/quantfold/hedge-engine/internal/metrics"
	"github.com/quantfold/hedge-engine/internal/model"
	"github.com/quantfold/hedge-engine/internal/portfolio"
	"github.com/quantfold/hedge-engine/internal/store"
	"github.com/quantfold/hedge-engine/internal/timeseries"
	"github.com/quantfold/hedge-engine/internal/universe"
)

// dateLayout is the wire format of calendar dates.
const dateLayout = "2006-01-02"

// Config carries the service-level defaults.
type Config struct {
	// BenchmarkTicker is the default baseline for performance reports when
	// neither the request nor the portfolio names one.
	BenchmarkTicker string
	// RiskFree is the annual risk-free rate passed to option pricing.
	RiskFree float64
	// Now returns the current time. Injectable for tests; nil means
	// time.Now.
	Now func() time.Time
}

// Service handles portfolio and hedge operations. Simulations are pure
// functions of the store contents, so no request serialization is needed.
type Service struct {
	store store.Store
	hub   *Hub // optional WebSocket hub for run notifications
	cfg   Config
}

// NewService creates a new service. Pass nil for hub if WebSocket
// broadcasting is not needed.
func NewService(st store.Store, hub *Hub, cfg Config) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{store: st, hub: hub, cfg: cfg}
}

// asOf is the valuation date of every rebuild: today at UTC midnight.
func (s *Service) asOf() time.Time {
	return timeseries.Midnight(s.cfg.Now().UTC())
}

// priceSource adapts the store to the portfolio engine's PriceSource.
type priceSource struct {
	store store.Store
}

func (ps priceSource) ClosingPrices(ctx context.Context, ticker string, from, to time.Time) (timeseries.Series, error) {
	bars, err := ps.store.ClosingPrices(ctx, ticker, from, to)
	if err != nil {
		return timeseries.Series{}, err
	}
	dates := make([]time.Time, len(bars))
	values := make([]float64, len(bars))
	for i, b := range bars {
		dates[i] = timeseries.Midnight(b.Date)
		values[i] = b.Close.InexactFloat64()
	}
	return timeseries.NewSeries(dates, values)
}

// --- Request/Response types ---

// PriceBarInput is one daily bar in a price upload. Dates use 2006-01-02.
type PriceBarInput struct {
	Ticker string          `json:"ticker"`
	Date   string          `json:"date"`
	Open   decimal.Decimal `json:"open"`
	Close  decimal.Decimal `json:"close"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
}

// PriceUpload is the JSON body for POST /api/v1/prices.
type PriceUpload struct {
	Bars []PriceBarInput `json:"bars"`
}

// InstrumentUpload is the JSON body for POST /api/v1/instruments.
type InstrumentUpload struct {
	Instruments []model.Instrument `json:"instruments"`
}

// TransactionInput is one trade in a portfolio upload. Dates use
// 2006-01-02; positive amounts buy, negative sell.
type TransactionInput struct {
	Date   string `json:"date"`
	Ticker string `json:"ticker"`
	Amount int64  `json:"amount"`
}

// CreatePortfolioRequest is the JSON body for portfolio creation.
type CreatePortfolioRequest struct {
	Name            string             `json:"name"`
	BenchmarkTicker string             `json:"benchmark_ticker,omitempty"`
	StartCash       *decimal.Decimal   `json:"start_cash,omitempty"`
	Transactions    []TransactionInput `json:"transactions"`
}

// PortfolioResponse is a portfolio record plus its transaction log.
type PortfolioResponse struct {
	Portfolio    model.PortfolioRecord `json:"portfolio"`
	Transactions []model.Transaction   `json:"transactions"`
}

// --- HTTP Handlers ---

// UpsertPrices handles POST /api/v1/prices
func (s *Service) UpsertPrices(w http.ResponseWriter, r *http.Request) {
	var req PriceUpload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Bars) == 0 {
		writeError(w, "bars is empty", http.StatusBadRequest)
		return
	}

	bars := make([]model.PriceBar, 0, len(req.Bars))
	for _, in := range req.Bars {
		if in.Ticker == "" {
			writeError(w, "ticker is required", http.StatusBadRequest)
			return
		}
		date, err := time.Parse(dateLayout, in.Date)
		if err != nil {
			writeError(w, "invalid date: "+in.Date, http.StatusBadRequest)
			return
		}
		bars = append(bars, model.PriceBar{
			Ticker: in.Ticker,
			Date:   date,
			Open:   in.Open,
			Close:  in.Close,
			High:   in.High,
			Low:    in.Low,
		})
	}

	if err := s.store.UpsertPrices(r.Context(), bars); err != nil {
		writeError(w, "failed to store prices", http.StatusInternalServerError)
		return
	}

	metrics.PriceBarsUpserted.Add(float64(len(bars)))
	slog.Info("prices upserted", "bars", len(bars))

	writeJSON(w, http.StatusOK, map[string]int{"upserted": len(bars)})
}

// GetPrices handles GET /api/v1/prices/{ticker}?start=2006-01-02&end=2006-01-02
// Omitted bounds default to all stored history up to today.
func (s *Service) GetPrices(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	start, err := dateParam(r, "start")
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if start.IsZero() {
		start = timeseries.Day(1900, 1, 1)
	}
	end, err := dateParam(r, "end")
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if end.IsZero() {
		end = s.asOf()
	}

	bars, err := s.store.ClosingPrices(r.Context(), ticker, start, end)
	if err != nil {
		writeError(w, "failed to load prices", http.StatusInternalServerError)
		return
	}
	if bars == nil {
		bars = []model.PriceBar{}
	}

	writeJSON(w, http.StatusOK, bars)
}

// UpsertInstruments handles POST /api/v1/instruments
func (s *Service) UpsertInstruments(w http.ResponseWriter, r *http.Request) {
	var req InstrumentUpload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Instruments) == 0 {
		writeError(w, "instruments is empty", http.StatusBadRequest)
		return
	}
	for _, inst := range req.Instruments {
		if inst.Ticker == "" {
			writeError(w, "ticker is required", http.StatusBadRequest)
			return
		}
	}

	if err := s.store.UpsertInstruments(r.Context(), req.Instruments); err != nil {
		writeError(w, "failed to store instruments", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"upserted": len(req.Instruments)})
}

// CreatePortfolio handles POST /api/v1/portfolios
func (s *Service) CreatePortfolio(w http.ResponseWriter, r *http.Request) {
	var req CreatePortfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		writeError(w, "name is required", http.StatusBadRequest)
		return
	}
	if len(req.Transactions) == 0 {
		writeError(w, "transactions is empty", http.StatusBadRequest)
		return
	}

	now := s.cfg.Now().UTC()
	portfolioID := uuid.New().String()

	txs := make([]model.Transaction, 0, len(req.Transactions))
	for _, in := range req.Transactions {
		date, err := time.Parse(dateLayout, in.Date)
		if err != nil {
			writeError(w, "invalid date: "+in.Date, http.StatusBadRequest)
			return
		}
		tx := model.Transaction{
			ID:          uuid.New().String(),
			PortfolioID: portfolioID,
			Date:        date,
			Ticker:      in.Ticker,
			Amount:      in.Amount,
			CreatedAt:   now,
		}
		if err := tx.Validate(); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		txs = append(txs, tx)
	}

	benchmark := req.BenchmarkTicker
	if benchmark == "" {
		benchmark = s.cfg.BenchmarkTicker
	}
	record := &model.PortfolioRecord{
		ID:              portfolioID,
		Name:            req.Name,
		BenchmarkTicker: benchmark,
		StartCash:       req.StartCash,
		CreatedAt:       now,
	}

	ctx := r.Context()
	if err := s.store.CreatePortfolio(ctx, record); err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}
	if err := s.store.AddTransactions(ctx, portfolioID, txs); err != nil {
		writeError(w, "failed to store transactions", http.StatusInternalServerError)
		return
	}

	metrics.PortfoliosCreated.Inc()
	slog.Info("portfolio created",
		"id", portfolioID,
		"name", req.Name,
		"transactions", len(txs),
	)

	writeJSON(w, http.StatusCreated, PortfolioResponse{Portfolio: *record, Transactions: txs})
}

// GetPortfolio handles GET /api/v1/portfolios/{portfolioID}
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "portfolioID")
	ctx := r.Context()

	record, err := s.store.GetPortfolio(ctx, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	txs, err := s.store.Transactions(ctx, id)
	if err != nil {
		writeError(w, "failed to load transactions", http.StatusInternalServerError)
		return
	}
	if txs == nil {
		txs = []model.Transaction{}
	}

	writeJSON(w, http.StatusOK, PortfolioResponse{Portfolio: *record, Transactions: txs})
}

// ListPortfolios handles GET /api/v1/portfolios
func (s *Service) ListPortfolios(w http.ResponseWriter, r *http.Request) {
	portfolios, err := s.store.ListPortfolios(r.Context())
	if err != nil {
		writeError(w, "failed to list portfolios", http.StatusInternalServerError)
		return
	}
	if portfolios == nil {
		portfolios = []model.PortfolioRecord{}
	}

	writeJSON(w, http.StatusOK, portfolios)
}

// --- Portfolio rebuild ---

// loadPortfolio rebuilds the valuation model from the stored transaction
// log. A sector filter reduces the log before the rebuild so the reduced
// portfolio reconciles its own cash column.
func (s *Service) loadPortfolio(ctx context.Context, id, sector string) (*model.PortfolioRecord, *portfolio.Portfolio, error) {
	record, err := s.store.GetPortfolio(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	txs, err := s.store.Transactions(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if sector != "" {
		sectors, err := s.store.Sectors(ctx)
		if err != nil {
			return nil, nil, err
		}
		txs = universe.Filter(txs, sectors, sector)
	}

	src := priceSource{store: s.store}
	var p *portfolio.Portfolio
	if record.StartCash != nil {
		p, err = portfolio.BuildWithStartCash(ctx, src, txs, s.asOf(), record.StartCash.InexactFloat64())
	} else {
		p, err = portfolio.Build(ctx, src, txs, s.asOf())
	}
	if err != nil {
		return nil, nil, err
	}
	return record, p, nil
}

// benchmark builds the optional 1-share baseline portfolio aligned with p.
func (s *Service) benchmark(ctx context.Context, ticker string, p *portfolio.Portfolio) (*portfolio.Portfolio, error) {
	start, _ := p.Capitalisation().First()
	return portfolio.Benchmark(ctx, priceSource{store: s.store}, ticker, start, s.asOf())
}

// --- Response plumbing ---

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError translates store and engine errors: unknown records map
// to 404, invalid parameters to 400, incomplete market data to 422,
// anything else to 500.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, "not found", http.StatusNotFound)
	case errors.Is(err, hedge.ErrInvalidStrike),
		errors.Is(err, hedge.ErrInvalidMaturity),
		errors.Is(err, hedge.ErrInvalidTrigger):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, portfolio.ErrNoTransactions),
		errors.Is(err, portfolio.ErrNoHistory),
		errors.Is(err, portfolio.ErrPriceMissing),
		errors.Is(err, portfolio.ErrNoOverlap),
		errors.Is(err, portfolio.ErrNoObservations),
		errors.Is(err, hedge.ErrNoBuys),
		errors.Is(err, hedge.ErrSpotMissing),
		errors.Is(err, hedge.ErrVolatility),
		errors.Is(err, hedge.ErrExpiryGap):
		writeError(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		writeError(w, "internal error", http.StatusInternalServerError)
	}
}

// dateParam parses an optional 2006-01-02 query parameter. The zero time
// means the parameter was absent.
func dateParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %s", name, raw)
	}
	return t, nil
}
