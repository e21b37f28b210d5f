package series

import (
	"fmt"

	talib "github.com/markcheno/go-talib"

	"macross/internal/domain"
)

// Averager answers rolling-mean queries over a blended price series.
//
// Average(i, n) is the mean of the blended price over bars [i-n, i), so the
// value at i never reads bar i itself. Windows passed to NewAverager are
// precomputed once with an incremental SMA; other windows fall back to a
// direct scan. The incremental sums carry rounding residue, so callers that
// compare averages for exact ties use ExactAverage near a tie. An Averager is
// read-only after construction and safe for concurrent use.
type Averager struct {
	prices []float64
	sma    map[int][]float64
}

// NewAverager blends every bar of s and precomputes the given windows.
func NewAverager(s *Series, blend Blend, windows ...int) *Averager {
	prices := make([]float64, s.Len())
	for i := range prices {
		prices[i] = blend.Price(s.Bar(i))
	}

	a := &Averager{prices: prices, sma: make(map[int][]float64, len(windows))}
	for _, n := range windows {
		if n <= 0 || n > len(prices) {
			continue
		}
		if _, done := a.sma[n]; done {
			continue
		}
		a.sma[n] = talib.Sma(prices, n)
	}
	return a
}

// Len returns the number of blended prices.
func (a *Averager) Len() int { return len(a.prices) }

// Price returns the blended price of bar i.
func (a *Averager) Price(i int) float64 { return a.prices[i] }

// Average returns the mean blended price over bars [index-window, index).
func (a *Averager) Average(index, window int) (float64, error) {
	if err := a.check(index, window); err != nil {
		return 0, err
	}
	if sma, ok := a.sma[window]; ok {
		// talib's out[j] is the mean of prices[j-window+1 .. j].
		return sma[index-1], nil
	}
	return a.scan(index, window), nil
}

// ExactAverage is Average computed by summing the window in bar order,
// ignoring any precomputed SMA.
func (a *Averager) ExactAverage(index, window int) (float64, error) {
	if err := a.check(index, window); err != nil {
		return 0, err
	}
	return a.scan(index, window), nil
}

func (a *Averager) check(index, window int) error {
	if window <= 0 {
		return fmt.Errorf("window %d: %w", window, domain.ErrInvalidConfiguration)
	}
	if index-window < 0 || index > len(a.prices) {
		return fmt.Errorf("average at index %d over window %d: %w", index, window, domain.ErrInsufficientHistory)
	}
	return nil
}

func (a *Averager) scan(index, window int) float64 {
	total := 0.0
	for i := index - window; i < index; i++ {
		total += a.prices[i]
	}
	return total / float64(window)
}
