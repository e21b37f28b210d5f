// Package builtins provides the strategy implementations that ship with
// macross.
package builtins

import (
	"context"
	"fmt"

	"macross/internal/domain"
	"macross/internal/series"
	"macross/internal/signal"
	"macross/internal/strategy"
)

// Compile-time interface checks.
var (
	_ strategy.Strategy = (*SMACross)(nil)
	_ strategy.Paired   = (*SMACross)(nil)
)

// SMACrossName is the registry key of SMACross.
const SMACrossName = "sma-cross"

// SMACross implements a simple moving average crossover strategy. It generates
// a buy signal when the short-period average crosses above the long-period
// average, and a sell signal when it crosses below.
type SMACross struct {
	shortPeriod int
	longPeriod  int
	blend       series.Blend
	avg         *series.Averager
}

// NewSMACross creates a new SMACross strategy with the specified short and
// long moving average periods. A nil blend averages the close price.
func NewSMACross(short, long int, blend series.Blend) (*SMACross, error) {
	if err := signal.ValidatePair(short, long); err != nil {
		return nil, err
	}
	if len(blend) == 0 {
		blend = series.CloseOnly
	}
	return &SMACross{
		shortPeriod: short,
		longPeriod:  long,
		blend:       blend,
	}, nil
}

func newSMACross(spec strategy.Spec) (strategy.Strategy, error) {
	return NewSMACross(spec.ShortWindow, spec.LongWindow, spec.Fields)
}

// Name returns "sma-cross".
func (s *SMACross) Name() string {
	return SMACrossName
}

// Pair returns the short and long periods.
func (s *SMACross) Pair() signal.Pair {
	return signal.Pair{Short: s.shortPeriod, Long: s.longPeriod}
}

// Init precomputes the blended price and both averages over the series.
func (s *SMACross) Init(_ context.Context, ser *series.Series) error {
	s.avg = series.NewAverager(ser, s.blend, s.shortPeriod, s.longPeriod)
	return nil
}

// Warmup is the long period.
func (s *SMACross) Warmup() int {
	return s.longPeriod
}

// Evaluate applies the crossover rule at index.
func (s *SMACross) Evaluate(_ context.Context, index int) (domain.Signal, error) {
	if s.avg == nil {
		return domain.SignalHold, fmt.Errorf("%s: evaluate before init", SMACrossName)
	}
	return signal.Crossover(s.avg, index, s.shortPeriod, s.longPeriod)
}
