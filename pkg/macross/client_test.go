package macross

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:8080/"
	c := NewClient(baseURL)

	if c == nil {
		t.Fatal("expected non-nil client")
	}

	if c.baseURL != "http://localhost:8080" {
		t.Errorf("expected trailing slash trimmed, got %q", c.baseURL)
	}

	if c.httpClient == nil {
		t.Fatal("expected non-nil httpClient")
	}
}

func TestClientRoundTrip(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/strategies", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(StrategiesResponse{Strategies: []string{"sma-cross", "vote-sweep"}})
	})
	mux.HandleFunc("GET /api/v1/symbols", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(SymbolsResponse{Market: r.URL.Query().Get("market"), Symbols: []string{"IVV"}})
	})
	mux.HandleFunc("POST /api/v1/backtests", func(w http.ResponseWriter, r *http.Request) {
		var req BacktestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.BuyFraction == nil || *req.BuyFraction != 0.25 {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(ErrorResponse{Error: "buy_fraction not sent"})
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Backtest{RunID: "run-1", Symbol: req.Symbol, Strategy: req.Strategy})
	})
	mux.HandleFunc("GET /api/v1/backtests/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "backtest " + r.PathValue("id") + " not found"})
	})
	mux.HandleFunc("GET /api/v1/backtests/{id}/blotter.csv", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("date,id\n"))
	})
	mux.HandleFunc("POST /api/v1/optimize", func(w http.ResponseWriter, r *http.Request) {
		var req OptimizeRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(OptimizeResponse{
			Symbol:     req.Symbol,
			Candidates: []Candidate{{Pair: Pair{Short: req.Short.Min, Long: req.Long.Min}, FinalValue: 11000}},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	c := NewClient(srv.URL)

	names, err := c.Strategies(ctx)
	if err != nil || len(names) != 2 {
		t.Fatalf("Strategies = %v, %v", names, err)
	}

	syms, err := c.Symbols(ctx, "us")
	if err != nil || len(syms) != 1 || syms[0] != "IVV" {
		t.Fatalf("Symbols = %v, %v", syms, err)
	}

	frac := 0.25
	res, err := c.RunBacktest(ctx, BacktestRequest{Symbol: "IVV", Strategy: "sma-cross", BuyFraction: &frac})
	if err != nil {
		t.Fatalf("RunBacktest: %v", err)
	}
	if res.RunID != "run-1" || res.Symbol != "IVV" {
		t.Errorf("RunBacktest = %+v", res)
	}

	_, err = c.GetBacktest(ctx, "missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("GetBacktest error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Message != "backtest missing not found" {
		t.Errorf("APIError = %+v", apiErr)
	}

	csv, err := c.BlotterCSV(ctx, "run-1")
	if err != nil || string(csv) != "date,id\n" {
		t.Errorf("BlotterCSV = %q, %v", csv, err)
	}

	opt, err := c.Optimize(ctx, OptimizeRequest{
		BacktestRequest: BacktestRequest{Symbol: "IVV"},
		Short:           &Range{Min: 2, Max: 3},
		Long:            &Range{Min: 5, Max: 6},
	})
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if len(opt.Candidates) != 1 || opt.Candidates[0].Pair != (Pair{Short: 2, Long: 5}) {
		t.Errorf("Optimize = %+v", opt)
	}
}
