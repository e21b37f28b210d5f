package signal

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"macross/internal/domain"
)

// Pair is one (short, long) window combination.
type Pair struct {
	Short int `json:"short" yaml:"short"`
	Long  int `json:"long" yaml:"long"`
}

// Range is an inclusive window range.
type Range struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

// Validate checks 0 < Min <= Max.
func (r Range) Validate() error {
	if r.Min <= 0 || r.Max < r.Min {
		return fmt.Errorf("window range [%d, %d]: %w", r.Min, r.Max, domain.ErrInvalidConfiguration)
	}
	return nil
}

// Pairs returns the cross product of short and long in ascending order,
// keeping only pairs with short < long.
func Pairs(short, long Range) []Pair {
	var out []Pair
	for s := short.Min; s <= short.Max; s++ {
		for l := long.Min; l <= long.Max; l++ {
			if s < l {
				out = append(out, Pair{Short: s, Long: l})
			}
		}
	}
	return out
}

// ValidateSweep checks both ranges and requires every short window to sit
// below every long window.
func ValidateSweep(short, long Range) error {
	if err := short.Validate(); err != nil {
		return fmt.Errorf("short: %w", err)
	}
	if err := long.Validate(); err != nil {
		return fmt.Errorf("long: %w", err)
	}
	if short.Max >= long.Min {
		return fmt.Errorf("short max %d must be below long min %d: %w", short.Max, long.Min, domain.ErrInvalidConfiguration)
	}
	return nil
}

// CrossingPrice solves for the price at which the short and long average
// lines, each drawn from yesterday's to today's value, intersect. It returns
// domain.ErrSingularSystem when the lines are parallel.
func CrossingPrice(short, long, prevShort, prevLong float64) (float64, error) {
	// Unknowns (t, p): (prevLong-long)*t + p = prevLong and
	// (prevShort-short)*t + p = prevShort.
	a := mat.NewDense(2, 2, []float64{
		prevLong - long, 1,
		prevShort - short, 1,
	})
	b := mat.NewVecDense(2, []float64{prevLong, prevShort})

	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		return 0, fmt.Errorf("crossing point: %v: %w", err, domain.ErrSingularSystem)
	}
	p := x.AtVec(1)
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0, fmt.Errorf("crossing point not finite: %w", domain.ErrSingularSystem)
	}
	return p, nil
}

// Vote casts one pair's vote at index: BUY when the crossing price is at or
// above ref, SELL when below. HOLD means no vote: the pair lacks a previous
// window or its lines are parallel.
func Vote(avg Averager, index int, p Pair, ref float64) (domain.Signal, error) {
	if index < p.Long {
		return domain.SignalHold, fmt.Errorf("index %d below long window %d: %w", index, p.Long, domain.ErrInsufficientHistory)
	}
	g, err := geometryAt(avg, index, p)
	if errors.Is(err, errNoPrevious) {
		return domain.SignalHold, nil
	}
	if err != nil {
		return domain.SignalHold, err
	}
	joint, err := CrossingPrice(g.short, g.long, g.prevShort, g.prevLong)
	if errors.Is(err, domain.ErrSingularSystem) {
		return domain.SignalHold, nil
	}
	if err != nil {
		return domain.SignalHold, err
	}
	if joint < ref {
		return domain.SignalSell, nil
	}
	return domain.SignalBuy, nil
}

// Thresholds are the minimum vote strengths a majority needs to act.
type Thresholds struct {
	MinBuyStrength  float64 `json:"min_buy_strength" yaml:"min_buy_strength"`
	MinSellStrength float64 `json:"min_sell_strength" yaml:"min_sell_strength"`
}

// Validate checks both thresholds lie in [0, 1].
func (th Thresholds) Validate() error {
	if th.MinBuyStrength < 0 || th.MinBuyStrength > 1 || th.MinSellStrength < 0 || th.MinSellStrength > 1 {
		return fmt.Errorf("vote thresholds %v/%v outside [0,1]: %w", th.MinBuyStrength, th.MinSellStrength, domain.ErrInvalidConfiguration)
	}
	return nil
}

// Tally counts the votes of a sweep.
type Tally struct {
	Buy     int `json:"buy"`
	Sell    int `json:"sell"`
	Skipped int `json:"skipped"`
}

// Add returns t with v counted.
func (t Tally) Add(v domain.Signal) Tally {
	switch v {
	case domain.SignalBuy:
		t.Buy++
	case domain.SignalSell:
		t.Sell++
	default:
		t.Skipped++
	}
	return t
}

// Strength is |buy-sell| / (buy+sell), or 0 with no votes.
func (t Tally) Strength() float64 {
	n := t.Buy + t.Sell
	if n == 0 {
		return 0
	}
	return math.Abs(float64(t.Buy-t.Sell)) / float64(n)
}

// Decide maps the tally to a signal under th.
func (t Tally) Decide(th Thresholds) domain.Signal {
	switch {
	case t.Buy > t.Sell && t.Strength() >= th.MinBuyStrength:
		return domain.SignalBuy
	case t.Sell > t.Buy && t.Strength() >= th.MinSellStrength:
		return domain.SignalSell
	default:
		return domain.SignalHold
	}
}

// Sweep folds Vote over pairs at index and decides the aggregate signal.
// The context is checked between pairs.
func Sweep(ctx context.Context, avg Averager, index int, pairs []Pair, ref float64, th Thresholds) (domain.Signal, Tally, error) {
	var tally Tally
	for _, p := range pairs {
		if err := ctx.Err(); err != nil {
			return domain.SignalHold, tally, err
		}
		v, err := Vote(avg, index, p, ref)
		if err != nil {
			return domain.SignalHold, tally, fmt.Errorf("pair %d/%d: %w", p.Short, p.Long, err)
		}
		tally = tally.Add(v)
	}
	return tally.Decide(th), tally, nil
}
