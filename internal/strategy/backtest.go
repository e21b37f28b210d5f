package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"macross/internal/domain"
	"macross/internal/engine"
	"macross/internal/series"
	"macross/internal/util"
)

// Params are the run parameters independent of the strategy.
type Params struct {
	InitialCash  float64   `json:"initial_cash"`
	BuyFraction  float64   `json:"buy_fraction"`
	SellFraction float64   `json:"sell_fraction"`
	Start        time.Time `json:"start"` // zero: first bar
	End          time.Time `json:"end"`   // zero: last bar
}

// DefaultParams returns 10,000 cash with half-cash buys and half-position
// sells over the whole series.
func DefaultParams() Params {
	return Params{
		InitialCash:  10000,
		BuyFraction:  engine.DefaultBuyFraction,
		SellFraction: engine.DefaultSellFraction,
	}
}

// Phase is the lifecycle stage of a backtest run.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseResolving
	PhaseRunning
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseResolving:
		return "resolving"
	case PhaseRunning:
		return "running"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// BacktestResult holds the blotter, ledger and summary metrics of a run.
type BacktestResult struct {
	RunID       string            `json:"run_id"`
	Strategy    string            `json:"strategy"`
	Symbol      string            `json:"symbol"`
	Start       time.Time         `json:"start"`
	End         time.Time         `json:"end"`
	TradeStart  time.Time         `json:"trade_start"`
	InitialCash float64           `json:"initial_cash"`
	BuyAndHold  float64           `json:"buy_and_hold"`
	Blotter     []domain.Order    `json:"blotter"`
	Ledger      []domain.Snapshot `json:"ledger"`
	Summary     Summary           `json:"summary"`
}

// Backtester replays a price series through one strategy instance.
type Backtester struct {
	strat  Strategy
	policy *engine.Policy
	params Params
	log    *slog.Logger
}

// NewBacktester validates params and pairs them with strat. A nil logger
// falls back to slog.Default().
func NewBacktester(strat Strategy, params Params, log *slog.Logger) (*Backtester, error) {
	if strat == nil {
		return nil, fmt.Errorf("nil strategy: %w", domain.ErrInvalidConfiguration)
	}
	if !(params.InitialCash > 0) {
		return nil, fmt.Errorf("initial cash %v must be positive: %w", params.InitialCash, domain.ErrInvalidConfiguration)
	}
	policy, err := engine.NewPolicy(params.BuyFraction, params.SellFraction)
	if err != nil {
		return nil, err
	}
	return &Backtester{
		strat:  strat,
		policy: policy,
		params: params,
		log:    util.OrDefault(log).With("strategy", strat.Name()),
	}, nil
}

// Run simulates every bar from max(start, warmup) through end. One blotter
// row and one ledger row are written per simulated day; orders fill at the
// day's open.
func (bt *Backtester) Run(ctx context.Context, s *series.Series) (*BacktestResult, error) {
	started := time.Now()
	phase := PhaseInit
	fail := func(err error) (*BacktestResult, error) {
		bt.log.Warn("backtest failed", "symbol", s.Symbol(), "phase", phase.String(), "error", err)
		return nil, fmt.Errorf("%s %s (%s): %w", bt.strat.Name(), s.Symbol(), phase, err)
	}

	book, err := engine.NewBook(s.Symbol(), bt.params.InitialCash)
	if err != nil {
		return fail(err)
	}
	if err := bt.strat.Init(ctx, s); err != nil {
		return fail(err)
	}

	phase = PhaseResolving
	start, end := bt.params.Start, bt.params.End
	if s.Len() > 0 && start.IsZero() {
		start = s.First()
	}
	if s.Len() > 0 && end.IsZero() {
		end = s.Last()
	}
	lo, hi, err := s.Resolve(start, end)
	if err != nil {
		return fail(err)
	}
	first := max(lo, bt.strat.Warmup())
	if first > hi {
		return fail(fmt.Errorf("warmup index %d beyond range end %d: %w", first, hi, domain.ErrInsufficientHistory))
	}

	phase = PhaseRunning
	bt.log.Debug("backtest running", "symbol", s.Symbol(), "from", util.FormatDay(s.Bar(first).Date), "to", util.FormatDay(s.Bar(hi).Date))
	for i := first; i <= hi; i++ {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		bar := s.Bar(i)
		sig, err := bt.strat.Evaluate(ctx, i)
		if err != nil {
			return fail(fmt.Errorf("%s: %w", util.FormatDay(bar.Date), err))
		}
		fill, err := bt.policy.Apply(sig, book.Cash(), book.Position(), bar.Open)
		if err != nil {
			return fail(err)
		}
		if _, _, err := book.Record(bar.Date, sig, fill.Size, bar.Open, fill.Cash, fill.Position); err != nil {
			return fail(err)
		}
	}
	phase = PhaseDone

	res := &BacktestResult{
		RunID:       uuid.NewString(),
		Strategy:    bt.strat.Name(),
		Symbol:      s.Symbol(),
		Start:       s.Bar(lo).Date,
		End:         s.Bar(hi).Date,
		TradeStart:  s.Bar(first).Date,
		InitialCash: bt.params.InitialCash,
		BuyAndHold:  BuyAndHold(s.Bar(first), s.Bar(hi), bt.params.InitialCash),
		Blotter:     book.Blotter(),
		Ledger:      book.Ledger(),
	}
	res.Summary = Summarize(res.Blotter, res.Ledger, res.InitialCash, res.BuyAndHold)

	bt.log.Info("backtest complete",
		"symbol", res.Symbol,
		"days", len(res.Ledger),
		"trades", res.Summary.TotalTrades,
		"final_value", res.Summary.FinalValue,
		"buy_and_hold", res.BuyAndHold,
		"elapsed", time.Since(started),
	)
	return res, nil
}

// BuyAndHold is the value of investing cash at first's open and holding to
// last's close.
func BuyAndHold(first, last domain.Bar, cash float64) float64 {
	return last.Close / first.Open * cash
}
