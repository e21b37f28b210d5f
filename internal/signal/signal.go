// Package signal turns rolling-average geometry into trading signals: the
// single-pair crossover rule and the multi-pair crossing-point vote.
package signal

import (
	"errors"
	"fmt"
	"math"

	"macross/internal/domain"
)

// Averager supplies the mean blended price over bars [index-window, index).
type Averager interface {
	Average(index, window int) (float64, error)
}

// exactAverager is implemented by averagers whose fast path may differ from
// an in-order window sum by rounding residue.
type exactAverager interface {
	ExactAverage(index, window int) (float64, error)
}

// tieTolerance is the relative gap under which two averages are recomputed
// exactly before being compared.
const tieTolerance = 1e-9

// Classify applies the crossover rule to today's and yesterday's averages.
// BUY needs short >= long after short < long; SELL needs short <= long after
// short > long. The mixed strict/non-strict comparisons keep an exact tie
// from firing twice.
func Classify(short, long, prevShort, prevLong float64) domain.Signal {
	switch {
	case short >= long && prevShort < prevLong:
		return domain.SignalBuy
	case short <= long && prevShort > prevLong:
		return domain.SignalSell
	default:
		return domain.SignalHold
	}
}

// ValidatePair checks that both windows are positive and short < long.
func ValidatePair(short, long int) error {
	if short <= 0 || long <= 0 {
		return fmt.Errorf("windows %d/%d must be positive: %w", short, long, domain.ErrInvalidConfiguration)
	}
	if short >= long {
		return fmt.Errorf("short window %d must be below long window %d: %w", short, long, domain.ErrInvalidConfiguration)
	}
	return nil
}

// Crossover evaluates the basic rule at index. It fails with
// domain.ErrInsufficientHistory when index < long. At index == long there is
// no full previous-day long window, so the result is HOLD.
func Crossover(avg Averager, index, short, long int) (domain.Signal, error) {
	if err := ValidatePair(short, long); err != nil {
		return domain.SignalHold, err
	}
	if index < long {
		return domain.SignalHold, fmt.Errorf("index %d below long window %d: %w", index, long, domain.ErrInsufficientHistory)
	}
	g, err := geometryAt(avg, index, Pair{Short: short, Long: long})
	if errors.Is(err, errNoPrevious) {
		return domain.SignalHold, nil
	}
	if err != nil {
		return domain.SignalHold, err
	}
	return Classify(g.short, g.long, g.prevShort, g.prevLong), nil
}

var errNoPrevious = errors.New("no previous window")

// geometry holds the two average lines at yesterday and today.
type geometry struct {
	short, long, prevShort, prevLong float64
}

func geometryAt(avg Averager, index int, p Pair) (geometry, error) {
	if index-1 < p.Long {
		return geometry{}, errNoPrevious
	}
	var g geometry
	var err error
	if g.short, err = avg.Average(index, p.Short); err != nil {
		return g, err
	}
	if g.long, err = avg.Average(index, p.Long); err != nil {
		return g, err
	}
	if g.prevShort, err = avg.Average(index-1, p.Short); err != nil {
		return g, err
	}
	if g.prevLong, err = avg.Average(index-1, p.Long); err != nil {
		return g, err
	}

	exact, ok := avg.(exactAverager)
	if !ok {
		return g, nil
	}
	if nearTie(g.short, g.long) {
		if g.short, g.long, err = exactPair(exact, index, p); err != nil {
			return g, err
		}
	}
	if nearTie(g.prevShort, g.prevLong) {
		if g.prevShort, g.prevLong, err = exactPair(exact, index-1, p); err != nil {
			return g, err
		}
	}
	return g, nil
}

func nearTie(a, b float64) bool {
	return math.Abs(a-b) <= tieTolerance*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func exactPair(avg exactAverager, index int, p Pair) (short, long float64, err error) {
	if short, err = avg.ExactAverage(index, p.Short); err != nil {
		return 0, 0, err
	}
	if long, err = avg.ExactAverage(index, p.Long); err != nil {
		return 0, 0, err
	}
	return short, long, nil
}
