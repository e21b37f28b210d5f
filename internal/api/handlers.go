package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"macross/internal/config"
	"macross/internal/domain"
	"macross/internal/metrics"
	"macross/internal/report"
	"macross/internal/signal"
	"macross/internal/store"
	"macross/internal/strategy"
	"macross/pkg/macross"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleStrategies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, macross.StrategiesResponse{Strategies: s.registry.List()})
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	market := r.URL.Query().Get("market")
	if market == "" {
		market = s.cfg.Backtest.Market
	}
	syms, err := s.store.ListSymbols(r.Context(), market)
	if err != nil {
		s.fail(w, err)
		return
	}
	if syms == nil {
		syms = []string{}
	}
	writeJSON(w, macross.SymbolsResponse{Market: market, Symbols: syms})
}

func (s *Server) handleRunBacktest(w http.ResponseWriter, r *http.Request) {
	var req macross.BacktestRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	b := applyRequest(s.cfg.Backtest, req)
	if err := b.Validate(); err != nil {
		s.fail(w, err)
		return
	}

	res, err := s.runBacktest(r, b)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.results.Store(res.RunID, res)
	w.Header().Set("Location", "/api/v1/backtests/"+res.RunID)
	writeJSONStatus(w, http.StatusCreated, res)
}

func (s *Server) runBacktest(r *http.Request, b config.Backtest) (*strategy.BacktestResult, error) {
	spec, err := strategy.SpecFromConfig(b)
	if err != nil {
		return nil, err
	}
	params, err := strategy.ParamsFromConfig(b)
	if err != nil {
		return nil, err
	}
	strat, err := s.registry.New(b.Strategy, spec)
	if err != nil {
		return nil, err
	}
	ser, err := store.LoadSeries(r.Context(), s.store, b.Symbol, b.Market)
	if err != nil {
		return nil, err
	}
	bt, err := strategy.NewBacktester(strat, params, s.log)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	res, err := bt.Run(r.Context(), ser)
	days := 0
	if res != nil {
		days = len(res.Ledger)
	}
	metrics.ObserveBacktest(b.Strategy, time.Since(started), days, err)
	return res, err
}

func (s *Server) handleGetBacktest(w http.ResponseWriter, r *http.Request) {
	res, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, res)
}

func (s *Server) handleBlotterCSV(w http.ResponseWriter, r *http.Request) {
	res, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.WriteBlotterCSV(&buf, res.Blotter); err != nil {
		s.fail(w, err)
		return
	}
	writeCSV(w, res.RunID+"-blotter.csv", buf.Bytes())
}

func (s *Server) handleLedgerCSV(w http.ResponseWriter, r *http.Request) {
	res, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.WriteLedgerCSV(&buf, res.Ledger); err != nil {
		s.fail(w, err)
		return
	}
	writeCSV(w, res.RunID+"-ledger.csv", buf.Bytes())
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req macross.OptimizeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	b := applyRequest(s.cfg.Backtest, req.BacktestRequest)
	if err := b.Validate(); err != nil {
		s.fail(w, err)
		return
	}
	factory, ok := s.registry.Get(b.Strategy)
	if !ok {
		s.fail(w, fmt.Errorf("unknown strategy %q: %w", b.Strategy, domain.ErrInvalidConfiguration))
		return
	}
	spec, err := strategy.SpecFromConfig(b)
	if err != nil {
		s.fail(w, err)
		return
	}
	params, err := strategy.ParamsFromConfig(b)
	if err != nil {
		s.fail(w, err)
		return
	}

	oreq := strategy.OptimizeRequest{
		Factory: factory,
		Spec:    spec,
		Params:  params,
		Short:   signal.Range{Min: s.cfg.Optimize.Short.Min, Max: s.cfg.Optimize.Short.Max},
		Long:    signal.Range{Min: s.cfg.Optimize.Long.Min, Max: s.cfg.Optimize.Long.Max},
		Workers: s.cfg.Optimize.Workers,
	}
	if req.Short != nil {
		oreq.Short = signal.Range{Min: req.Short.Min, Max: req.Short.Max}
	}
	if req.Long != nil {
		oreq.Long = signal.Range{Min: req.Long.Min, Max: req.Long.Max}
	}
	if req.Workers > 0 {
		oreq.Workers = req.Workers
	}

	ser, err := store.LoadSeries(r.Context(), s.store, b.Symbol, b.Market)
	if err != nil {
		s.fail(w, err)
		return
	}
	cands, err := strategy.Optimize(r.Context(), ser, oreq, s.log)
	if err != nil {
		s.fail(w, err)
		return
	}
	metrics.OptimizeCandidates.Add(float64(len(cands)))
	if req.Top > 0 && len(cands) > req.Top {
		cands = cands[:req.Top]
	}

	resp := macross.OptimizeResponse{Symbol: b.Symbol, Strategy: b.Strategy, Candidates: make([]macross.Candidate, len(cands))}
	for i, c := range cands {
		resp.Candidates[i] = macross.Candidate{
			Pair:        macross.Pair{Short: c.Pair.Short, Long: c.Pair.Long},
			FinalValue:  c.FinalValue,
			TotalReturn: c.TotalReturn,
			SharpeRatio: c.SharpeRatio,
			MaxDrawdown: c.MaxDrawdown,
			TotalTrades: c.TotalTrades,
		}
	}
	writeJSON(w, resp)
}

// lookup fetches the stored run named by the {id} path value, writing a 404
// when absent.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*strategy.BacktestResult, bool) {
	id := r.PathValue("id")
	v, ok := s.results.Load(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("backtest %q not found", id))
		return nil, false
	}
	return v.(*strategy.BacktestResult), true
}

// applyRequest overlays the non-zero fields of req onto b.
func applyRequest(b config.Backtest, req macross.BacktestRequest) config.Backtest {
	if req.Symbol != "" {
		b.Symbol = req.Symbol
	}
	if req.Market != "" {
		b.Market = req.Market
	}
	if req.Strategy != "" {
		b.Strategy = req.Strategy
	}
	if req.StartDate != "" {
		b.StartDate = req.StartDate
	}
	if req.EndDate != "" {
		b.EndDate = req.EndDate
	}
	if req.InitialCash != 0 {
		b.InitialCash = req.InitialCash
	}
	if req.ShortWindow != 0 {
		b.ShortWindow = req.ShortWindow
	}
	if req.LongWindow != 0 {
		b.LongWindow = req.LongWindow
	}
	if req.ShortRange != nil {
		b.Sweep.Short = config.WindowRange{Min: req.ShortRange.Min, Max: req.ShortRange.Max}
	}
	if req.LongRange != nil {
		b.Sweep.Long = config.WindowRange{Min: req.LongRange.Min, Max: req.LongRange.Max}
	}
	if len(req.PriceFields) > 0 {
		b.PriceFields = req.PriceFields
	}
	if req.BuyFraction != nil {
		b.BuyFraction = *req.BuyFraction
	}
	if req.SellFraction != nil {
		b.SellFraction = *req.SellFraction
	}
	if req.MinBuyStrength != nil {
		b.Sweep.MinBuyStrength = *req.MinBuyStrength
	}
	if req.MinSellStrength != nil {
		b.Sweep.MinSellStrength = *req.MinSellStrength
	}
	return b
}

// statusFor maps a domain error to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidConfiguration), errors.Is(err, domain.ErrInvalidSeries):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNoDataInRange), errors.Is(err, domain.ErrInsufficientHistory):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "error", err)
	}
	writeError(w, status, err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decoding request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSONStatus(w, status, macross.ErrorResponse{Error: msg})
}

func writeCSV(w http.ResponseWriter, name string, body []byte) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
