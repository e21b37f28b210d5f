package builtins

import (
	"context"
	"fmt"

	"macross/internal/domain"
	"macross/internal/series"
	"macross/internal/signal"
	"macross/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*VoteSweep)(nil)

// VoteSweepName is the registry key of VoteSweep.
const VoteSweepName = "vote-sweep"

// VoteSweep polls every (short, long) pair of two window ranges. Each pair
// solves for the price at which its two average lines meet and votes SELL
// when that price sits below the previous day's reference price, BUY
// otherwise. The majority decides, subject to minimum vote strengths.
type VoteSweep struct {
	short, long signal.Range
	pairs       []signal.Pair
	blend       series.Blend
	thresholds  signal.Thresholds

	ser  *series.Series
	avg  *series.Averager
	last signal.Tally
}

// NewVoteSweep validates the ranges and thresholds. A nil blend averages
// open, high, low and close.
func NewVoteSweep(short, long signal.Range, blend series.Blend, th signal.Thresholds) (*VoteSweep, error) {
	if err := signal.ValidateSweep(short, long); err != nil {
		return nil, err
	}
	if err := th.Validate(); err != nil {
		return nil, err
	}
	if len(blend) == 0 {
		blend = series.OHLC
	}
	return &VoteSweep{
		short:      short,
		long:       long,
		pairs:      signal.Pairs(short, long),
		blend:      blend,
		thresholds: th,
	}, nil
}

func newVoteSweep(spec strategy.Spec) (strategy.Strategy, error) {
	return NewVoteSweep(spec.ShortRange, spec.LongRange, spec.Fields, spec.Thresholds)
}

// Name returns "vote-sweep".
func (v *VoteSweep) Name() string { return VoteSweepName }

// Pairs returns the swept window pairs.
func (v *VoteSweep) Pairs() []signal.Pair {
	out := make([]signal.Pair, len(v.pairs))
	copy(out, v.pairs)
	return out
}

// LastTally is the vote count of the most recent Evaluate.
func (v *VoteSweep) LastTally() signal.Tally { return v.last }

// Init precomputes every window in both ranges.
func (v *VoteSweep) Init(_ context.Context, ser *series.Series) error {
	windows := make([]int, 0, v.short.Max-v.short.Min+v.long.Max-v.long.Min+2)
	for w := v.short.Min; w <= v.short.Max; w++ {
		windows = append(windows, w)
	}
	for w := v.long.Min; w <= v.long.Max; w++ {
		windows = append(windows, w)
	}
	v.ser = ser
	v.avg = series.NewAverager(ser, v.blend, windows...)
	return nil
}

// Warmup is the largest long window.
func (v *VoteSweep) Warmup() int { return v.long.Max }

// Evaluate runs the sweep at index against the previous bar's reference
// price.
func (v *VoteSweep) Evaluate(ctx context.Context, index int) (domain.Signal, error) {
	if v.avg == nil {
		return domain.SignalHold, fmt.Errorf("%s: evaluate before init", VoteSweepName)
	}
	if index < v.Warmup() {
		return domain.SignalHold, fmt.Errorf("index %d below long window %d: %w", index, v.Warmup(), domain.ErrInsufficientHistory)
	}
	if index >= v.ser.Len() {
		return domain.SignalHold, fmt.Errorf("index %d beyond series length %d: %w", index, v.ser.Len(), domain.ErrInsufficientHistory)
	}
	sig, tally, err := signal.Sweep(ctx, v.avg, index, v.pairs, ReferencePrice(v.ser.Bar(index-1)), v.thresholds)
	v.last = tally
	return sig, err
}

// ReferencePrice is the bar's VWAP, or its typical price (high+low+close)/3
// when the source carries no VWAP.
func ReferencePrice(bar domain.Bar) float64 {
	if bar.VWAP > 0 {
		return bar.VWAP
	}
	return (bar.High + bar.Low + bar.Close) / 3
}
