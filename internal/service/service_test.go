package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/quantfold/hedge-engine/internal/model"
	"github.com/quantfold/hedge-engine/internal/portfolio"
	"github.com/quantfold/hedge-engine/internal/service"
	"github.com/quantfold/hedge-engine/internal/store"
)

// The clock is pinned so every rebuild values portfolios as of 2023-03-01.
var testNow = time.Date(2023, 3, 1, 12, 0, 0, 0, time.UTC)

// newTestEnv creates a test Service with in-memory store and chi router.
func newTestEnv(t *testing.T) (*store.MemoryStore, chi.Router) {
	t.Helper()
	ms := store.NewMemoryStore()
	svc := service.NewService(ms, nil, service.Config{
		RiskFree: 0.02,
		Now:      func() time.Time { return testNow },
	})

	r := chi.NewRouter()
	r.Post("/api/v1/prices", svc.UpsertPrices)
	r.Get("/api/v1/prices/{ticker}", svc.GetPrices)
	r.Post("/api/v1/instruments", svc.UpsertInstruments)
	r.Get("/api/v1/portfolios", svc.ListPortfolios)
	r.Post("/api/v1/portfolios", svc.CreatePortfolio)
	r.Get("/api/v1/portfolios/{portfolioID}", svc.GetPortfolio)
	r.Get("/api/v1/portfolios/{portfolioID}/performance", svc.Performance)
	r.Get("/api/v1/portfolios/{portfolioID}/risk", svc.Risk)
	r.Post("/api/v1/portfolios/{portfolioID}/hedge", svc.RunHedge)
	r.Get("/api/v1/portfolios/{portfolioID}/hedge-runs", svc.ListHedgeRuns)
	r.Get("/api/v1/hedge-runs/{runID}", svc.GetHedgeRun)

	return ms, r
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// seedPrices writes one close per calendar day directly into the store.
func seedPrices(t *testing.T, ms *store.MemoryStore, ticker string, from, to time.Time, value func(time.Time) float64) {
	t.Helper()
	var bars []model.PriceBar
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		v := decimal.NewFromFloat(value(d))
		bars = append(bars, model.PriceBar{Ticker: ticker, Date: d, Open: v, Close: v, High: v, Low: v})
	}
	if err := ms.UpsertPrices(context.Background(), bars); err != nil {
		t.Fatalf("failed to seed prices: %v", err)
	}
}

// ramp climbs one point per day from 100 at start.
func ramp(start time.Time) func(time.Time) float64 {
	return func(d time.Time) float64 {
		return 100 + d.Sub(start).Hours()/24
	}
}

func flat(level float64) func(time.Time) float64 {
	return func(time.Time) float64 { return level }
}

// choppyThenFlat alternates ±5% around level before cut, so a trailing
// volatility estimate exists, and holds level from cut onward.
func choppyThenFlat(cut time.Time, level float64) func(time.Time) float64 {
	return func(d time.Time) float64 {
		if d.Before(cut) {
			if d.Day()%2 == 0 {
				return level * 0.95
			}
			return level * 1.05
		}
		return level
	}
}

func doJSON(t *testing.T, router chi.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createPortfolio(t *testing.T, router chi.Router, req service.CreatePortfolioRequest) service.PortfolioResponse {
	t.Helper()
	w := doJSON(t, router, "POST", "/api/v1/portfolios", req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create portfolio: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp service.PortfolioResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode portfolio response: %v", err)
	}
	return resp
}

func approx(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.IsNaN(got) || math.Abs(got-want) > tol {
		t.Errorf("%s: expected %v, got %v", name, want, got)
	}
}

// --- Market data tests ---

func TestUpsertPrices_RoundTrip(t *testing.T) {
	_, router := newTestEnv(t)

	upload := service.PriceUpload{Bars: []service.PriceBarInput{
		{Ticker: "ACME", Date: "2023-01-02", Open: decimal.NewFromInt(99), Close: decimal.NewFromInt(100), High: decimal.NewFromInt(101), Low: decimal.NewFromInt(98)},
		{Ticker: "ACME", Date: "2023-01-03", Open: decimal.NewFromInt(100), Close: decimal.NewFromInt(102), High: decimal.NewFromInt(103), Low: decimal.NewFromInt(99)},
		{Ticker: "SPY", Date: "2023-01-02", Open: decimal.NewFromInt(400), Close: decimal.NewFromInt(401), High: decimal.NewFromInt(402), Low: decimal.NewFromInt(399)},
	}}
	w := doJSON(t, router, "POST", "/api/v1/prices", upload)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]int
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["upserted"] != 3 {
		t.Errorf("expected 3 upserted, got %d", resp["upserted"])
	}

	w = doJSON(t, router, "GET", "/api/v1/prices/ACME?start=2023-01-03&end=2023-01-31", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var bars []model.PriceBar
	json.Unmarshal(w.Body.Bytes(), &bars)
	if len(bars) != 1 {
		t.Fatalf("expected 1 bar in range, got %d", len(bars))
	}
	if !bars[0].Close.Equal(decimal.NewFromInt(102)) {
		t.Errorf("expected close 102, got %s", bars[0].Close)
	}
}

func TestUpsertPrices_Validation(t *testing.T) {
	_, router := newTestEnv(t)

	cases := []struct {
		name string
		body service.PriceUpload
	}{
		{"empty bars", service.PriceUpload{}},
		{"missing ticker", service.PriceUpload{Bars: []service.PriceBarInput{{Date: "2023-01-02"}}}},
		{"bad date", service.PriceUpload{Bars: []service.PriceBarInput{{Ticker: "ACME", Date: "01/02/2023"}}}},
	}
	for _, tc := range cases {
		if w := doJSON(t, router, "POST", "/api/v1/prices", tc.body); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tc.name, w.Code)
		}
	}

	if w := doJSON(t, router, "GET", "/api/v1/prices/ACME?start=notadate", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad start param: expected 400, got %d", w.Code)
	}
}

func TestUpsertInstruments_Validation(t *testing.T) {
	_, router := newTestEnv(t)

	if w := doJSON(t, router, "POST", "/api/v1/instruments", service.InstrumentUpload{}); w.Code != http.StatusBadRequest {
		t.Errorf("empty instruments: expected 400, got %d", w.Code)
	}
	noTicker := service.InstrumentUpload{Instruments: []model.Instrument{{Name: "Nameless", Sector: "Energy"}}}
	if w := doJSON(t, router, "POST", "/api/v1/instruments", noTicker); w.Code != http.StatusBadRequest {
		t.Errorf("missing ticker: expected 400, got %d", w.Code)
	}

	ok := service.InstrumentUpload{Instruments: []model.Instrument{
		{Ticker: "TECH1", Name: "Tech One", Sector: "Technology"},
		{Ticker: "OILX", Name: "Oil Exploration", Sector: "Energy"},
	}}
	if w := doJSON(t, router, "POST", "/api/v1/instruments", ok); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

// --- Portfolio tests ---

func TestCreatePortfolio_Validation(t *testing.T) {
	_, router := newTestEnv(t)

	tx := func(date, ticker string, amount int64) []service.TransactionInput {
		return []service.TransactionInput{{Date: date, Ticker: ticker, Amount: amount}}
	}
	cases := []struct {
		name string
		body service.CreatePortfolioRequest
	}{
		{"missing name", service.CreatePortfolioRequest{Transactions: tx("2023-01-02", "ACME", 10)}},
		{"no transactions", service.CreatePortfolioRequest{Name: "p"}},
		{"bad date", service.CreatePortfolioRequest{Name: "p", Transactions: tx("01/02/2023", "ACME", 10)}},
		{"zero amount", service.CreatePortfolioRequest{Name: "p", Transactions: tx("2023-01-02", "ACME", 0)}},
		{"reserved ticker", service.CreatePortfolioRequest{Name: "p", Transactions: tx("2023-01-02", "cash", 10)}},
	}
	for _, tc := range cases {
		if w := doJSON(t, router, "POST", "/api/v1/portfolios", tc.body); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tc.name, w.Code)
		}
	}
}

func TestCreatePortfolio_AndGet(t *testing.T) {
	_, router := newTestEnv(t)

	created := createPortfolio(t, router, service.CreatePortfolioRequest{
		Name:            "growth",
		BenchmarkTicker: "SPY",
		Transactions: []service.TransactionInput{
			{Date: "2023-01-05", Ticker: "ACME", Amount: 10},
			{Date: "2023-01-02", Ticker: "ACME", Amount: 5},
		},
	})
	if created.Portfolio.ID == "" {
		t.Fatal("expected non-empty portfolio ID")
	}
	if len(created.Transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(created.Transactions))
	}

	w := doJSON(t, router, "GET", "/api/v1/portfolios/"+created.Portfolio.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var got service.PortfolioResponse
	json.Unmarshal(w.Body.Bytes(), &got)
	if got.Portfolio.Name != "growth" || got.Portfolio.BenchmarkTicker != "SPY" {
		t.Errorf("round trip mismatch: %+v", got.Portfolio)
	}
	// Transaction log comes back date-sorted.
	if !got.Transactions[0].Date.Equal(day(2023, 1, 2)) || got.Transactions[0].Amount != 5 {
		t.Errorf("expected first transaction 5 shares on Jan 2, got %+v", got.Transactions[0])
	}

	if w := doJSON(t, router, "GET", "/api/v1/portfolios/missing", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown portfolio, got %d", w.Code)
	}

	w = doJSON(t, router, "GET", "/api/v1/portfolios", nil)
	var list []model.PortfolioRecord
	json.Unmarshal(w.Body.Bytes(), &list)
	if len(list) != 1 {
		t.Errorf("expected 1 portfolio in list, got %d", len(list))
	}
}

// --- Performance endpoint tests ---

func TestPerformance_Report(t *testing.T) {
	ms, router := newTestEnv(t)
	start := day(2023, 1, 2)
	seedPrices(t, ms, "ACME", start, day(2023, 2, 28), ramp(start))

	created := createPortfolio(t, router, service.CreatePortfolioRequest{
		Name:         "ramp",
		Transactions: []service.TransactionInput{{Date: "2023-01-02", Ticker: "ACME", Amount: 10}},
	})

	w := doJSON(t, router, "GET", "/api/v1/portfolios/"+created.Portfolio.ID+"/performance", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var rep portfolio.Report
	if err := json.Unmarshal(w.Body.Bytes(), &rep); err != nil {
		t.Fatalf("decode report: %v", err)
	}

	if !rep.StartDate.Equal(day(2023, 1, 2)) || !rep.EndDate.Equal(day(2023, 2, 28)) {
		t.Errorf("unexpected report dates: %v .. %v", rep.StartDate, rep.EndDate)
	}
	approx(t, "start value", float64(rep.StartValue), 1000, 1e-9)
	approx(t, "end value", float64(rep.EndValue), 1570, 1e-9)
	approx(t, "profit", float64(rep.Profit), 570, 1e-9)
	approx(t, "profitability", float64(rep.Profitability), 0.57, 1e-12)
	approx(t, "max drawdown", float64(rep.MaxDrawdown), 0, 1e-12)
	if rep.Beta != nil {
		t.Error("expected no baseline block without a benchmark")
	}
}

func TestPerformance_BaselineAndTable(t *testing.T) {
	ms, router := newTestEnv(t)
	start := day(2023, 1, 2)
	seedPrices(t, ms, "ACME", start, day(2023, 2, 28), ramp(start))
	seedPrices(t, ms, "SPY", start, day(2023, 2, 28), ramp(start))

	created := createPortfolio(t, router, service.CreatePortfolioRequest{
		Name:            "ramp",
		BenchmarkTicker: "SPY",
		Transactions:    []service.TransactionInput{{Date: "2023-01-02", Ticker: "ACME", Amount: 10}},
	})
	base := "/api/v1/portfolios/" + created.Portfolio.ID + "/performance"

	w := doJSON(t, router, "GET", base, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var rep portfolio.Report
	json.Unmarshal(w.Body.Bytes(), &rep)
	if rep.Beta == nil {
		t.Fatal("expected baseline block against SPY")
	}
	// The portfolio tracks an identical ramp, so the regression is exact.
	approx(t, "beta", float64(*rep.Beta), 1, 1e-9)
	approx(t, "alpha", float64(*rep.Alpha), 0, 1e-9)
	approx(t, "tracking error", float64(*rep.TrackingError), 0, 1e-9)
	approx(t, "upside capture", float64(*rep.UpsideCapture), 1, 1e-9)

	w = doJSON(t, router, "GET", base+"?format=table", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var table struct {
		Rows []portfolio.Row `json:"rows"`
	}
	json.Unmarshal(w.Body.Bytes(), &table)
	if len(table.Rows) != 21 {
		t.Fatalf("expected 21 summary rows with baseline, got %d", len(table.Rows))
	}
	if table.Rows[0].Name != "Start Date" || table.Rows[0].Value != "2023-01-02" {
		t.Errorf("unexpected first row: %+v", table.Rows[0])
	}
}

func TestPerformance_StartDateAndSector(t *testing.T) {
	ms, router := newTestEnv(t)
	start := day(2023, 1, 2)
	seedPrices(t, ms, "TECH1", start, day(2023, 2, 28), ramp(start))
	seedPrices(t, ms, "OILX", start, day(2023, 2, 28), flat(50))

	instruments := service.InstrumentUpload{Instruments: []model.Instrument{
		{Ticker: "TECH1", Name: "Tech One", Sector: "Technology"},
		{Ticker: "OILX", Name: "Oil Exploration", Sector: "Energy"},
	}}
	if w := doJSON(t, router, "POST", "/api/v1/instruments", instruments); w.Code != http.StatusOK {
		t.Fatalf("seed instruments: got %d", w.Code)
	}

	created := createPortfolio(t, router, service.CreatePortfolioRequest{
		Name: "mixed",
		Transactions: []service.TransactionInput{
			{Date: "2023-01-02", Ticker: "TECH1", Amount: 10},
			{Date: "2023-01-02", Ticker: "OILX", Amount: 5},
		},
	})
	base := "/api/v1/portfolios/" + created.Portfolio.ID + "/performance"

	var rep portfolio.Report
	w := doJSON(t, router, "GET", base, nil)
	json.Unmarshal(w.Body.Bytes(), &rep)
	approx(t, "full start value", float64(rep.StartValue), 1250, 1e-9)
	approx(t, "full end value", float64(rep.EndValue), 1820, 1e-9)

	w = doJSON(t, router, "GET", base+"?sector=Technology", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("sector filter: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	json.Unmarshal(w.Body.Bytes(), &rep)
	approx(t, "sector start value", float64(rep.StartValue), 1000, 1e-9)
	approx(t, "sector end value", float64(rep.EndValue), 1570, 1e-9)

	w = doJSON(t, router, "GET", base+"?start_date=2023-02-01", nil)
	json.Unmarshal(w.Body.Bytes(), &rep)
	approx(t, "filtered start value", float64(rep.StartValue), 1550, 1e-9)

	if w := doJSON(t, router, "GET", base+"?start_date=2024-01-01", nil); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("start beyond history: expected 422, got %d", w.Code)
	}
	if w := doJSON(t, router, "GET", base+"?start_date=notadate", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad start_date: expected 400, got %d", w.Code)
	}
	if w := doJSON(t, router, "GET", base+"?sector=Imaginary", nil); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty sector: expected 422, got %d", w.Code)
	}
}

// --- Risk endpoint tests ---

func TestRisk_Report(t *testing.T) {
	ms, router := newTestEnv(t)
	start := day(2023, 1, 2)
	seedPrices(t, ms, "ACME", start, day(2023, 2, 28), ramp(start))
	seedPrices(t, ms, "SPY", start, day(2023, 2, 28), ramp(start))

	created := createPortfolio(t, router, service.CreatePortfolioRequest{
		Name:         "ramp",
		Transactions: []service.TransactionInput{{Date: "2023-01-02", Ticker: "ACME", Amount: 10}},
	})
	base := "/api/v1/portfolios/" + created.Portfolio.ID + "/risk"

	w := doJSON(t, router, "GET", base, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp service.RiskResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode risk response: %v", err)
	}
	if len(resp.Stats) != 13 {
		t.Fatalf("expected 13 stats without factor, got %d", len(resp.Stats))
	}
	if resp.Stats[0].Name != "Annual return" {
		t.Errorf("unexpected first stat: %s", resp.Stats[0].Name)
	}
	// A rising series has no losses: no tail fit, no drawdowns.
	if resp.TailEstimateAvailable || resp.TailRisk != nil {
		t.Error("expected no tail estimate for a rising series")
	}
	if len(resp.Drawdowns) != 0 {
		t.Errorf("expected no drawdowns, got %d", len(resp.Drawdowns))
	}

	w = doJSON(t, router, "GET", base+"?factor=SPY", nil)
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Stats) != 15 {
		t.Fatalf("expected 15 stats with factor, got %d", len(resp.Stats))
	}
	if resp.Stats[14].Name != "Beta" {
		t.Errorf("expected Beta last, got %s", resp.Stats[14].Name)
	}
	approx(t, "factor beta", float64(resp.Stats[14].Value), 1, 1e-9)

	if w := doJSON(t, router, "GET", base+"?var_p=2", nil); w.Code != http.StatusBadRequest {
		t.Errorf("var_p out of range: expected 400, got %d", w.Code)
	}
	if w := doJSON(t, router, "GET", base+"?top=0", nil); w.Code != http.StatusBadRequest {
		t.Errorf("top below 1: expected 400, got %d", w.Code)
	}
}

// --- Hedge endpoint tests ---

func TestRunHedge_PersistsAndReports(t *testing.T) {
	ms, router := newTestEnv(t)
	cut := day(2023, 1, 1)
	seedPrices(t, ms, "ACME", day(2022, 1, 1), day(2023, 2, 28), choppyThenFlat(cut, 100))

	created := createPortfolio(t, router, service.CreatePortfolioRequest{
		Name:         "hedged",
		Transactions: []service.TransactionInput{{Date: "2023-01-02", Ticker: "ACME", Amount: 10}},
	})
	pid := created.Portfolio.ID

	w := doJSON(t, router, "POST", "/api/v1/portfolios/"+pid+"/hedge", service.HedgeRequest{
		RelativeStrikePrice: 1.0,
		MaturityMonths:      1,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp service.HedgeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode hedge response: %v", err)
	}

	if resp.Run.ID == "" {
		t.Fatal("expected non-empty run ID")
	}
	if resp.Run.Trigger != nil {
		t.Error("expected nil trigger when rally re-hedging is off")
	}
	// Seed put plus the worthless-expiry replacement.
	if len(resp.Run.Options) != 2 {
		t.Fatalf("expected 2 option legs, got %d", len(resp.Run.Options))
	}
	first := resp.Run.Options[0]
	if first.Symbol != "ACME230203P00100000" {
		t.Errorf("unexpected seed symbol: %s", first.Symbol)
	}
	if !first.OpenDate.Equal(day(2023, 1, 2)) || !first.Expiry.Equal(day(2023, 2, 3)) || first.Amount != 10 {
		t.Errorf("unexpected seed leg: %+v", first)
	}
	second := resp.Run.Options[1]
	if !second.OpenDate.Equal(day(2023, 2, 3)) || !second.Expiry.Equal(day(2023, 3, 10)) || second.Amount != 10 {
		t.Errorf("unexpected replacement leg: %+v", second)
	}
	if !resp.Run.HedgeCost.IsPositive() {
		t.Errorf("expected positive hedge cost, got %s", resp.Run.HedgeCost)
	}
	if !resp.Run.SettlementCash.IsZero() {
		t.Errorf("expected zero settlement cash, got %s", resp.Run.SettlementCash)
	}

	// Flat walk prices: the hedged portfolio neither gains nor loses, but
	// carries the premium drag.
	if resp.Performance == nil {
		t.Fatal("expected hedged performance block")
	}
	approx(t, "hedged profit", float64(resp.Performance.Profit), 0, 1e-9)
	if float64(resp.Performance.ProfitWithHedge) >= 0 {
		t.Errorf("expected negative profit including hedge cost, got %v", resp.Performance.ProfitWithHedge)
	}

	// Runs are persisted and retrievable.
	w = doJSON(t, router, "GET", "/api/v1/hedge-runs/"+resp.Run.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get run: expected 200, got %d", w.Code)
	}
	var run model.HedgeRun
	json.Unmarshal(w.Body.Bytes(), &run)
	if !run.RelativeStrike.Equal(decimal.NewFromInt(1)) || run.MaturityMonths != 1 {
		t.Errorf("run round trip mismatch: %+v", run)
	}
	if len(run.Options) != 2 {
		t.Errorf("expected 2 legs after round trip, got %d", len(run.Options))
	}

	w = doJSON(t, router, "GET", "/api/v1/portfolios/"+pid+"/hedge-runs", nil)
	var runs []model.HedgeRun
	json.Unmarshal(w.Body.Bytes(), &runs)
	if len(runs) != 1 || runs[0].ID != resp.Run.ID {
		t.Errorf("expected the run in the portfolio list, got %+v", runs)
	}

	if w := doJSON(t, router, "GET", "/api/v1/hedge-runs/unknown", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown run: expected 404, got %d", w.Code)
	}
}

func TestRunHedge_Errors(t *testing.T) {
	ms, router := newTestEnv(t)
	start := day(2023, 1, 2)
	// Flat from the very beginning: no trailing volatility to price with.
	seedPrices(t, ms, "ACME", day(2022, 1, 1), day(2023, 2, 28), flat(100))

	created := createPortfolio(t, router, service.CreatePortfolioRequest{
		Name:         "flat",
		Transactions: []service.TransactionInput{{Date: start.Format("2006-01-02"), Ticker: "ACME", Amount: 10}},
	})
	pid := created.Portfolio.ID

	if w := doJSON(t, router, "POST", "/api/v1/portfolios/"+pid+"/hedge", service.HedgeRequest{
		RelativeStrikePrice: 0, MaturityMonths: 1,
	}); w.Code != http.StatusBadRequest {
		t.Errorf("zero strike: expected 400, got %d", w.Code)
	}
	if w := doJSON(t, router, "POST", "/api/v1/portfolios/"+pid+"/hedge", service.HedgeRequest{
		RelativeStrikePrice: 1, MaturityMonths: 0,
	}); w.Code != http.StatusBadRequest {
		t.Errorf("zero maturity: expected 400, got %d", w.Code)
	}
	if w := doJSON(t, router, "POST", "/api/v1/portfolios/missing/hedge", service.HedgeRequest{
		RelativeStrikePrice: 1, MaturityMonths: 1,
	}); w.Code != http.StatusNotFound {
		t.Errorf("unknown portfolio: expected 404, got %d", w.Code)
	}
	if w := doJSON(t, router, "POST", "/api/v1/portfolios/"+pid+"/hedge", service.HedgeRequest{
		RelativeStrikePrice: 1, MaturityMonths: 1,
	}); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("flat history: expected 422, got %d", w.Code)
	}
}
