// Package series holds a validated, read-only sequence of daily bars and the
// rolling averages computed over it.
package series

import (
	"fmt"
	"math"
	"sort"
	"time"

	"macross/internal/domain"
	"macross/internal/util"
)

// Series is an ascending, duplicate-free sequence of daily bars for one
// symbol. It is never mutated after New and may be shared between runs.
type Series struct {
	symbol string
	bars   []domain.Bar
}

// New validates bars and returns a Series over a private copy of them. Bar
// dates are truncated to calendar days.
func New(symbol string, bars []domain.Bar) (*Series, error) {
	out := make([]domain.Bar, len(bars))
	for i, b := range bars {
		b.Date = util.Day(b.Date)
		if !finite(b.Open, b.High, b.Low, b.Close, b.AdjClose, b.VWAP) {
			return nil, fmt.Errorf("bar %d (%s): non-finite price: %w", i, util.FormatDay(b.Date), domain.ErrInvalidSeries)
		}
		if b.Open <= 0 || b.Close <= 0 {
			return nil, fmt.Errorf("bar %d (%s): non-positive open/close: %w", i, util.FormatDay(b.Date), domain.ErrInvalidSeries)
		}
		if i > 0 && !b.Date.After(out[i-1].Date) {
			return nil, fmt.Errorf("bar %d (%s) not after bar %d (%s): %w",
				i, util.FormatDay(b.Date), i-1, util.FormatDay(out[i-1].Date), domain.ErrInvalidSeries)
		}
		out[i] = b
	}
	return &Series{symbol: symbol, bars: out}, nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Symbol returns the series symbol.
func (s *Series) Symbol() string { return s.symbol }

// Len returns the number of bars.
func (s *Series) Len() int { return len(s.bars) }

// Bar returns the bar at position i.
func (s *Series) Bar(i int) domain.Bar { return s.bars[i] }

// Bars returns a copy of all bars.
func (s *Series) Bars() []domain.Bar {
	out := make([]domain.Bar, len(s.bars))
	copy(out, s.bars)
	return out
}

// First returns the date of the first bar. The series must be non-empty.
func (s *Series) First() time.Time { return s.bars[0].Date }

// Last returns the date of the last bar. The series must be non-empty.
func (s *Series) Last() time.Time { return s.bars[len(s.bars)-1].Date }

// IndexOf returns the position of the bar dated exactly on day.
func (s *Series) IndexOf(day time.Time) (int, bool) {
	day = util.Day(day)
	i := s.search(day)
	if i < len(s.bars) && s.bars[i].Date.Equal(day) {
		return i, true
	}
	return 0, false
}

// search returns the first position whose date is not before day.
func (s *Series) search(day time.Time) int {
	return sort.Search(len(s.bars), func(i int) bool {
		return !s.bars[i].Date.Before(day)
	})
}

// Resolve maps a requested [start, end] calendar range onto bar positions.
// The start date moves forward, and the end date backward, through
// non-trading days until each lands on a bar. It fails with
// domain.ErrNoDataInRange when the end lies past the last bar, when either
// bound falls outside the series, or when the two bounds cross without
// meeting a bar.
func (s *Series) Resolve(start, end time.Time) (int, int, error) {
	start, end = util.Day(start), util.Day(end)
	if len(s.bars) == 0 {
		return 0, 0, fmt.Errorf("%s: empty series: %w", s.symbol, domain.ErrNoDataInRange)
	}
	if end.Before(start) {
		return 0, 0, fmt.Errorf("%s: end %s before start %s: %w",
			s.symbol, util.FormatDay(end), util.FormatDay(start), domain.ErrNoDataInRange)
	}
	if end.After(s.Last()) {
		return 0, 0, fmt.Errorf("%s: end %s after last bar %s: %w",
			s.symbol, util.FormatDay(end), util.FormatDay(s.Last()), domain.ErrNoDataInRange)
	}
	if end.Before(s.First()) {
		return 0, 0, fmt.Errorf("%s: end %s before first bar %s: %w",
			s.symbol, util.FormatDay(end), util.FormatDay(s.First()), domain.ErrNoDataInRange)
	}

	// First bar on or after start; equivalent to stepping one day at a time.
	lo := s.search(start)
	// Last bar on or before end.
	hi := s.search(end.AddDate(0, 0, 1)) - 1

	if lo > hi {
		return 0, 0, fmt.Errorf("%s: no bar between %s and %s: %w",
			s.symbol, util.FormatDay(start), util.FormatDay(end), domain.ErrNoDataInRange)
	}
	return lo, hi, nil
}
