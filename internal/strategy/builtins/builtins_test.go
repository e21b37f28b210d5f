package builtins

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"macross/internal/domain"
	"macross/internal/series"
	"macross/internal/signal"
	"macross/internal/strategy"
	"macross/internal/util"
)

// rampSeries is flat at 100 for ten days, ramps 90..110 over days 10-15 and
// holds 110 through day 19. Each open equals the prior close.
func rampSeries(t *testing.T) *series.Series {
	t.Helper()
	closes := []float64{
		100, 100, 100, 100, 100, 100, 100, 100, 100, 100,
		90, 94, 98, 102, 106, 110,
		110, 110, 110, 110,
	}
	return buildSeries(t, closes)
}

func buildSeries(t *testing.T, closes []float64) *series.Series {
	t.Helper()
	start := time.Date(2015, 4, 6, 0, 0, 0, 0, time.UTC)
	days := util.Weekdays(start, start.AddDate(0, 0, 2*len(closes)+7))[:len(closes)]
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		bars[i] = domain.Bar{
			Symbol: "TEST", Date: days[i],
			Open: open, High: math.Max(open, c) + 1, Low: math.Min(open, c) - 1, Close: c,
			Volume: 1000,
		}
	}
	s, err := series.New("TEST", bars)
	if err != nil {
		t.Fatalf("series.New: %v", err)
	}
	return s
}

func TestSMACrossEndToEnd(t *testing.T) {
	s := rampSeries(t)
	strat, err := NewSMACross(2, 5, nil)
	if err != nil {
		t.Fatalf("NewSMACross: %v", err)
	}
	bt, err := strategy.NewBacktester(strat, strategy.DefaultParams(), nil)
	if err != nil {
		t.Fatalf("NewBacktester: %v", err)
	}
	res, err := bt.Run(context.Background(), s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Blotter) != 15 || len(res.Ledger) != 15 {
		t.Fatalf("rows = %d/%d, want 15/15", len(res.Blotter), len(res.Ledger))
	}
	var buys []domain.Order
	for _, o := range res.Blotter {
		switch o.Action {
		case domain.SignalBuy:
			buys = append(buys, o)
		case domain.SignalSell:
			t.Errorf("unexpected SELL on %s", util.FormatDay(o.Date))
		}
	}
	if len(buys) != 1 {
		t.Fatalf("buys = %d, want 1", len(buys))
	}
	if !buys[0].Date.Equal(s.Bar(14).Date) {
		t.Errorf("BUY on %s, want %s", util.FormatDay(buys[0].Date), util.FormatDay(s.Bar(14).Date))
	}
	if buys[0].Price != 102 {
		t.Errorf("BUY price = %v, want open 102", buys[0].Price)
	}

	shares := 5000.0 / 102
	want := 5000 + shares*110
	if got := res.Summary.FinalValue; math.Abs(got-want) > 1e-6 {
		t.Errorf("final value = %v, want %v", got, want)
	}
	if res.BuyAndHold != 11000 {
		t.Errorf("BuyAndHold = %v, want 11000", res.BuyAndHold)
	}
	last := res.Ledger[len(res.Ledger)-1]
	if math.Abs(last.Position-shares) > 1e-9 || math.Abs(last.Cash-5000) > 1e-9 {
		t.Errorf("last snapshot = %+v", last)
	}
}

func TestSMACrossWarmup(t *testing.T) {
	if _, err := NewSMACross(5, 5, nil); !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Errorf("NewSMACross(5,5) err = %v", err)
	}
	strat, err := NewSMACross(2, 5, nil)
	if err != nil {
		t.Fatalf("NewSMACross: %v", err)
	}
	if _, err := strat.Evaluate(context.Background(), 5); err == nil {
		t.Error("Evaluate before Init should fail")
	}
	if err := strat.Init(context.Background(), rampSeries(t)); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := strat.Evaluate(context.Background(), 4); !errors.Is(err, domain.ErrInsufficientHistory) {
		t.Errorf("Evaluate(4) err = %v, want ErrInsufficientHistory", err)
	}
	sig, err := strat.Evaluate(context.Background(), 5)
	if err != nil || sig != domain.SignalHold {
		t.Errorf("Evaluate(5) = %v, %v; want HOLD", sig, err)
	}
}

func TestVoteSweepMatchesDirectSweep(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + 10*math.Sin(float64(i)/4)
	}
	s := buildSeries(t, closes)

	short, long := signal.Range{Min: 5, Max: 6}, signal.Range{Min: 10, Max: 12}
	vs, err := NewVoteSweep(short, long, nil, signal.Thresholds{})
	if err != nil {
		t.Fatalf("NewVoteSweep: %v", err)
	}
	if vs.Warmup() != 12 || len(vs.Pairs()) != 6 {
		t.Fatalf("warmup = %d pairs = %d", vs.Warmup(), len(vs.Pairs()))
	}
	ctx := context.Background()
	if err := vs.Init(ctx, s); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := vs.Evaluate(ctx, 11); !errors.Is(err, domain.ErrInsufficientHistory) {
		t.Errorf("Evaluate(11) err = %v, want ErrInsufficientHistory", err)
	}

	avg := series.NewAverager(s, series.OHLC, 5, 6, 10, 11, 12)
	for i := 12; i < s.Len(); i++ {
		got, err := vs.Evaluate(ctx, i)
		if err != nil {
			t.Fatalf("Evaluate(%d): %v", i, err)
		}
		tally := vs.LastTally()
		if tally.Buy+tally.Sell+tally.Skipped != 6 {
			t.Errorf("index %d: tally %+v does not cover 6 pairs", i, tally)
		}
		want, _, err := signal.Sweep(ctx, avg, i, vs.Pairs(), ReferencePrice(s.Bar(i-1)), signal.Thresholds{})
		if err != nil {
			t.Fatalf("Sweep(%d): %v", i, err)
		}
		if got != want {
			t.Errorf("index %d: Evaluate = %s, direct sweep = %s", i, got, want)
		}
	}

	bt, err := strategy.NewBacktester(vs, strategy.DefaultParams(), nil)
	if err != nil {
		t.Fatalf("NewBacktester: %v", err)
	}
	res, err := bt.Run(ctx, s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Ledger) != s.Len()-12 {
		t.Errorf("ledger rows = %d, want %d", len(res.Ledger), s.Len()-12)
	}
}

func TestNewVoteSweepValidates(t *testing.T) {
	if _, err := NewVoteSweep(signal.Range{Min: 5, Max: 10}, signal.Range{Min: 10, Max: 12}, nil, signal.Thresholds{}); !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Errorf("overlapping ranges err = %v", err)
	}
	if _, err := NewVoteSweep(signal.Range{Min: 5, Max: 6}, signal.Range{Min: 10, Max: 12}, nil, signal.Thresholds{MinBuyStrength: 1.5}); !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Errorf("bad threshold err = %v", err)
	}
}

func TestReferencePrice(t *testing.T) {
	if got := ReferencePrice(domain.Bar{High: 12, Low: 9, Close: 10.5, VWAP: 10.2}); got != 10.2 {
		t.Errorf("with VWAP = %v, want 10.2", got)
	}
	if got := ReferencePrice(domain.Bar{High: 12, Low: 9, Close: 12}); got != 11 {
		t.Errorf("typical price = %v, want 11", got)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	names := r.List()
	if len(names) != 2 || names[0] != SMACrossName || names[1] != VoteSweepName {
		t.Fatalf("List() = %v", names)
	}
	strat, err := r.New(SMACrossName, strategy.Spec{ShortWindow: 2, LongWindow: 10})
	if err != nil {
		t.Fatalf("New(sma-cross): %v", err)
	}
	if strat.Warmup() != 10 {
		t.Errorf("Warmup = %d, want 10", strat.Warmup())
	}
	_, err = r.New(VoteSweepName, strategy.Spec{
		ShortRange: signal.Range{Min: 5, Max: 6},
		LongRange:  signal.Range{Min: 10, Max: 12},
	})
	if err != nil {
		t.Fatalf("New(vote-sweep): %v", err)
	}
}

func TestOptimize(t *testing.T) {
	s := rampSeries(t)
	f, _ := NewRegistry().Get(SMACrossName)
	cands, err := strategy.Optimize(context.Background(), s, strategy.OptimizeRequest{
		Factory: f,
		Params:  strategy.DefaultParams(),
		Short:   signal.Range{Min: 1, Max: 3},
		Long:    signal.Range{Min: 4, Max: 6},
		Workers: 2,
	}, nil)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if len(cands) != 9 {
		t.Fatalf("candidates = %d, want 9", len(cands))
	}
	for i := 1; i < len(cands); i++ {
		a, b := cands[i-1], cands[i]
		if a.FinalValue < b.FinalValue {
			t.Errorf("not sorted at %d: %v < %v", i, a.FinalValue, b.FinalValue)
		}
		if a.FinalValue == b.FinalValue && (a.Pair.Short > b.Pair.Short ||
			(a.Pair.Short == b.Pair.Short && a.Pair.Long > b.Pair.Long)) {
			t.Errorf("tie not ordered at %d: %+v then %+v", i, a.Pair, b.Pair)
		}
	}
	found := false
	for _, c := range cands {
		if c.Pair == (signal.Pair{Short: 2, Long: 5}) {
			found = true
			if want := 5000 + 5000.0/102*110; math.Abs(c.FinalValue-want) > 1e-6 {
				t.Errorf("pair 2/5 final = %v, want %v", c.FinalValue, want)
			}
		}
	}
	if !found {
		t.Error("pair 2/5 missing from candidates")
	}

	_, err = strategy.Optimize(context.Background(), s, strategy.OptimizeRequest{
		Factory: f,
		Params:  strategy.DefaultParams(),
		Short:   signal.Range{Min: 5, Max: 6},
		Long:    signal.Range{Min: 2, Max: 4},
	}, nil)
	if !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Errorf("empty grid err = %v, want ErrInvalidConfiguration", err)
	}

	// A sweep strategy ignores the per-pair windows, so every grid point
	// would backtest the same thing.
	vf, _ := NewRegistry().Get(VoteSweepName)
	_, err = strategy.Optimize(context.Background(), s, strategy.OptimizeRequest{
		Factory: vf,
		Spec: strategy.Spec{
			ShortRange: signal.Range{Min: 2, Max: 3},
			LongRange:  signal.Range{Min: 4, Max: 5},
		},
		Params: strategy.DefaultParams(),
		Short:  signal.Range{Min: 2, Max: 3},
		Long:   signal.Range{Min: 4, Max: 6},
	}, nil)
	if !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Errorf("vote-sweep optimize err = %v, want ErrInvalidConfiguration", err)
	}
}

func TestSMACrossPair(t *testing.T) {
	s, err := NewSMACross(3, 8, nil)
	if err != nil {
		t.Fatalf("NewSMACross: %v", err)
	}
	if got := s.Pair(); got != (signal.Pair{Short: 3, Long: 8}) {
		t.Errorf("Pair = %+v, want 3/8", got)
	}
}
