package service

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quantfold/hedge-engine/internal/hedge"
	"github.com/quantfold/hedge-engine/internal/metrics"
	"github.com/quantfold/hedge-engine/internal/model"
	"github.com/quantfold/hedge-engine/internal/option"
	"github.com/quantfold/hedge-engine/internal/portfolio"
	"github.com/quantfold/hedge-engine/internal/stats"
)

// --- Request/Response types ---

// HedgeRequest is the JSON body for POST /api/v1/portfolios/{id}/hedge.
// NewOptionTrigger of zero disables rally re-hedging.
type HedgeRequest struct {
	RelativeStrikePrice float64 `json:"relative_strike_price"`
	MaturityMonths      int     `json:"maturity_months"`
	NewOptionTrigger    float64 `json:"new_option_trigger,omitempty"`
}

// HedgeResponse is the JSON body returned from a hedge run: the persisted
// run plus the hedged portfolio's performance measured against the
// unhedged one.
type HedgeResponse struct {
	Run         model.HedgeRun    `json:"run"`
	Performance *portfolio.Report `json:"performance"`
}

// StatRow is one named statistic with NaN encoded as null.
type StatRow struct {
	Name  string           `json:"name"`
	Value portfolio.Metric `json:"value"`
}

// TailRisk is the GPD tail fit block of a risk response.
type TailRisk struct {
	Probability float64          `json:"probability"`
	Threshold   portfolio.Metric `json:"threshold"`
	Scale       portfolio.Metric `json:"scale"`
	Shape       portfolio.Metric `json:"shape"`
	VaR         portfolio.Metric `json:"value_at_risk"`
	ES          portfolio.Metric `json:"expected_shortfall"`
}

// RiskResponse is the JSON body of GET /api/v1/portfolios/{id}/risk.
// TailRisk is nil when no acceptable GPD fit exists.
type RiskResponse struct {
	PortfolioID           string               `json:"portfolio_id"`
	Stats                 []StatRow            `json:"stats"`
	TailEstimateAvailable bool                 `json:"tail_estimate_available"`
	TailRisk              *TailRisk            `json:"tail_risk,omitempty"`
	Drawdowns             []portfolio.Drawdown `json:"drawdowns"`
}

// --- HTTP Handlers ---

// Performance handles GET /api/v1/portfolios/{portfolioID}/performance
// Query: baseline (ticker), start_date (2006-01-02), sector,
// format=table for the two-column summary.
func (s *Service) Performance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "portfolioID")
	ctx := r.Context()

	startDate, err := dateParam(r, "start_date")
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	record, p, err := s.loadPortfolio(ctx, id, r.URL.Query().Get("sector"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	baselineTicker := r.URL.Query().Get("baseline")
	if baselineTicker == "" {
		baselineTicker = record.BenchmarkTicker
	}
	var baseline *portfolio.Portfolio
	if baselineTicker != "" {
		baseline, err = s.benchmark(ctx, baselineTicker, p)
		if err != nil {
			writeDomainError(w, err)
			return
		}
	}

	report, err := p.Performance(baseline, startDate)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "table" {
		writeJSON(w, http.StatusOK, map[string][]portfolio.Row{"rows": report.Rows()})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Risk handles GET /api/v1/portfolios/{portfolioID}/risk
// Query: factor (regression ticker), sector, var_p (GPD tail probability),
// top (drawdown episodes, default 10).
func (s *Service) Risk(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "portfolioID")
	ctx := r.Context()

	varP := stats.DefaultVaRProbability
	if raw := r.URL.Query().Get("var_p"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 || v >= 1 {
			writeError(w, "invalid var_p: "+raw, http.StatusBadRequest)
			return
		}
		varP = v
	}
	top := 10
	if raw := r.URL.Query().Get("top"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			writeError(w, "invalid top: "+raw, http.StatusBadRequest)
			return
		}
		top = v
	}

	record, p, err := s.loadPortfolio(ctx, id, r.URL.Query().Get("sector"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	factorTicker := r.URL.Query().Get("factor")
	if factorTicker == "" {
		factorTicker = record.BenchmarkTicker
	}
	var sheet []stats.Stat
	if factorTicker != "" {
		factor, err := s.benchmark(ctx, factorTicker, p)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		own, fac := p.Returns().InnerJoin(factor.Returns())
		sheet = stats.PerfStatsWithFactor(own.Values(), fac.Values())
	} else {
		sheet = stats.PerfStats(p.Returns().Values())
	}

	tail := stats.GPDRiskEstimates(p.Returns().Values(), varP)

	resp := RiskResponse{
		PortfolioID:           id,
		Stats:                 statRows(sheet),
		TailEstimateAvailable: tail.Available(),
		Drawdowns:             portfolio.TopDrawdowns(p.Returns(), top),
	}
	if tail.Available() {
		resp.TailRisk = &TailRisk{
			Probability: varP,
			Threshold:   portfolio.Metric(tail.Threshold),
			Scale:       portfolio.Metric(tail.Scale),
			Shape:       portfolio.Metric(tail.Shape),
			VaR:         portfolio.Metric(tail.VaR),
			ES:          portfolio.Metric(tail.ES),
		}
	}
	if resp.Drawdowns == nil {
		resp.Drawdowns = []portfolio.Drawdown{}
	}

	writeJSON(w, http.StatusOK, resp)
}

// RunHedge handles POST /api/v1/portfolios/{portfolioID}/hedge
// Runs the protective-put simulation, persists the run, and broadcasts
// its completion.
func (s *Service) RunHedge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "portfolioID")
	ctx := r.Context()

	var req HedgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	cfg := hedge.Config{
		RelativeStrike: req.RelativeStrikePrice,
		MaturityMonths: req.MaturityMonths,
		Trigger:        req.NewOptionTrigger,
		RiskFree:       s.cfg.RiskFree,
	}
	if err := cfg.Validate(); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	record, p, err := s.loadPortfolio(ctx, id, "")
	if err != nil {
		writeDomainError(w, err)
		return
	}

	started := time.Now()
	result, err := hedge.Simulate(ctx, cfg, p, priceSource{store: s.store})
	if err != nil {
		metrics.HedgeRunsTotal.WithLabelValues("error").Inc()
		writeDomainError(w, err)
		return
	}
	metrics.HedgeRunsTotal.WithLabelValues("ok").Inc()
	metrics.HedgeRunDuration.Observe(time.Since(started).Seconds())
	metrics.HedgeOptionsOpened.Add(float64(len(result.Options)))

	run := &model.HedgeRun{
		ID:             uuid.New().String(),
		PortfolioID:    record.ID,
		RelativeStrike: decimal.NewFromFloat(req.RelativeStrikePrice),
		MaturityMonths: req.MaturityMonths,
		HedgeCost:      decimal.NewFromFloat(result.HedgeCost),
		SettlementCash: decimal.NewFromFloat(result.SettlementCash),
		Options:        optionLegs(result.Options),
		CreatedAt:      s.cfg.Now().UTC(),
	}
	if req.NewOptionTrigger > 0 {
		trigger := decimal.NewFromFloat(req.NewOptionTrigger)
		run.Trigger = &trigger
	}

	if err := s.store.InsertHedgeRun(ctx, run); err != nil {
		writeError(w, "failed to store hedge run", http.StatusInternalServerError)
		return
	}

	// Measure the hedged portfolio against the unhedged one.
	report, err := result.Hedged.Performance(p, time.Time{})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	slog.Info("hedge run completed",
		"run_id", run.ID,
		"portfolio", record.ID,
		"relative_strike", req.RelativeStrikePrice,
		"maturity_months", req.MaturityMonths,
		"options", len(result.Options),
		"hedge_cost", run.HedgeCost.String(),
		"settlement_cash", run.SettlementCash.String(),
	)

	if s.hub != nil {
		s.hub.Broadcast(Event{
			Type:           "hedge_run_completed",
			PortfolioID:    record.ID,
			RunID:          run.ID,
			HedgeCost:      run.HedgeCost.String(),
			SettlementCash: run.SettlementCash.String(),
			OptionsOpened:  len(result.Options),
		})
	}

	writeJSON(w, http.StatusCreated, HedgeResponse{Run: *run, Performance: report})
}

// GetHedgeRun handles GET /api/v1/hedge-runs/{runID}
func (s *Service) GetHedgeRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	run, err := s.store.GetHedgeRun(r.Context(), runID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// ListHedgeRuns handles GET /api/v1/portfolios/{portfolioID}/hedge-runs
func (s *Service) ListHedgeRuns(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "portfolioID")
	ctx := r.Context()

	if _, err := s.store.GetPortfolio(ctx, id); err != nil {
		writeDomainError(w, err)
		return
	}
	runs, err := s.store.HedgeRuns(ctx, id)
	if err != nil {
		writeError(w, "failed to list hedge runs", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []model.HedgeRun{}
	}

	writeJSON(w, http.StatusOK, runs)
}

// --- Conversion helpers ---

// optionLegs converts engine puts to persisted legs; floats become
// decimal at this boundary.
func optionLegs(puts []option.Put) []model.OptionLeg {
	legs := make([]model.OptionLeg, len(puts))
	for i, p := range puts {
		legs[i] = model.OptionLeg{
			Symbol:   p.Symbol(),
			Ticker:   p.Ticker,
			OpenDate: p.OpenDate,
			Expiry:   p.Expiry,
			Amount:   p.Amount,
			Strike:   decimal.NewFromFloat(p.Strike),
			Premium:  decimal.NewFromFloat(p.Premium),
			Cost:     decimal.NewFromFloat(p.Cost()),
		}
	}
	return legs
}

func statRows(sheet []stats.Stat) []StatRow {
	rows := make([]StatRow, len(sheet))
	for i, st := range sheet {
		rows[i] = StatRow{Name: st.Name, Value: portfolio.Metric(st.Value)}
	}
	return rows
}
