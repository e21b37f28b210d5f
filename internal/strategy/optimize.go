package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"macross/internal/domain"
	"macross/internal/series"
	"macross/internal/signal"
	"macross/internal/util"
)

// Candidate is the outcome of one (short, long) grid point.
type Candidate struct {
	Pair        signal.Pair `json:"pair"`
	FinalValue  float64     `json:"final_value"`
	TotalReturn float64     `json:"total_return"`
	SharpeRatio float64     `json:"sharpe_ratio"`
	MaxDrawdown float64     `json:"max_drawdown"`
	TotalTrades int         `json:"total_trades"`
}

// Paired is implemented by strategies whose signal is driven by a single
// (short, long) window pair. Only those can be optimized over a pair grid.
type Paired interface {
	Pair() signal.Pair
}

// OptimizeRequest describes a grid search over window pairs for one
// strategy factory.
type OptimizeRequest struct {
	Factory Factory
	Spec    Spec // ShortWindow and LongWindow are overwritten per pair
	Params  Params
	Short   signal.Range
	Long    signal.Range
	Workers int // <= 0: GOMAXPROCS
}

// Optimize backtests every pair with short < long drawn from req.Short and
// req.Long, running up to req.Workers backtests concurrently. The factory
// must build Paired strategies that honour the spec's window pair. Pairs whose
// warmup leaves no bar to simulate are skipped. Results are sorted by final
// value descending, then by shorter short and shorter long window.
func Optimize(ctx context.Context, s *series.Series, req OptimizeRequest, log *slog.Logger) ([]Candidate, error) {
	log = util.OrDefault(log)
	if req.Factory == nil {
		return nil, fmt.Errorf("nil strategy factory: %w", domain.ErrInvalidConfiguration)
	}
	if err := req.Short.Validate(); err != nil {
		return nil, fmt.Errorf("short: %w", err)
	}
	if err := req.Long.Validate(); err != nil {
		return nil, fmt.Errorf("long: %w", err)
	}
	pairs := signal.Pairs(req.Short, req.Long)
	if len(pairs) == 0 {
		return nil, fmt.Errorf("no pair with short < long in grid: %w", domain.ErrInvalidConfiguration)
	}
	if err := checkPaired(req, pairs[0]); err != nil {
		return nil, err
	}

	workers := req.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var (
		mu      sync.Mutex
		results = make([]Candidate, 0, len(pairs))
	)
	// Backtest logs are per pair; keep them below info to avoid flooding.
	quiet := slog.New(slog.DiscardHandler)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, p := range pairs {
		g.Go(func() error {
			spec := req.Spec
			spec.ShortWindow, spec.LongWindow = p.Short, p.Long
			strat, err := req.Factory(spec)
			if err != nil {
				return fmt.Errorf("pair %d/%d: %w", p.Short, p.Long, err)
			}
			bt, err := NewBacktester(strat, req.Params, quiet)
			if err != nil {
				return err
			}
			res, err := bt.Run(gctx, s)
			if errors.Is(err, domain.ErrInsufficientHistory) {
				log.Debug("optimize: pair skipped", "short", p.Short, "long", p.Long, "error", err)
				return nil
			}
			if err != nil {
				return fmt.Errorf("pair %d/%d: %w", p.Short, p.Long, err)
			}
			mu.Lock()
			results = append(results, Candidate{
				Pair:        p,
				FinalValue:  res.Summary.FinalValue,
				TotalReturn: res.Summary.TotalReturn,
				SharpeRatio: res.Summary.SharpeRatio,
				MaxDrawdown: res.Summary.MaxDrawdown,
				TotalTrades: res.Summary.TotalTrades,
			})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.FinalValue != b.FinalValue {
			return a.FinalValue > b.FinalValue
		}
		if a.Pair.Short != b.Pair.Short {
			return a.Pair.Short < b.Pair.Short
		}
		return a.Pair.Long < b.Pair.Long
	})

	log.Info("optimize complete", "symbol", s.Symbol(), "pairs", len(pairs), "scored", len(results))
	return results, nil
}

// checkPaired builds the strategy for p and requires it to run on p.
func checkPaired(req OptimizeRequest, p signal.Pair) error {
	spec := req.Spec
	spec.ShortWindow, spec.LongWindow = p.Short, p.Long
	strat, err := req.Factory(spec)
	if err != nil {
		return fmt.Errorf("pair %d/%d: %w", p.Short, p.Long, err)
	}
	paired, ok := strat.(Paired)
	if !ok {
		return fmt.Errorf("%s is not driven by a single window pair: %w", strat.Name(), domain.ErrInvalidConfiguration)
	}
	if got := paired.Pair(); got != p {
		return fmt.Errorf("%s ignores the window pair (built %d/%d, runs %d/%d): %w",
			strat.Name(), p.Short, p.Long, got.Short, got.Long, domain.ErrInvalidConfiguration)
	}
	return nil
}
