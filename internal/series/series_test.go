package series

import (
	"errors"
	"math"
	"testing"
	"time"

	"macross/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// weekBars returns bars for Mon 2015-04-06 .. Fri 2015-04-17, skipping the
// weekend in between.
func weekBars() []domain.Bar {
	var bars []domain.Bar
	price := 100.0
	for d := day(2015, 4, 6); !d.After(day(2015, 4, 17)); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		bars = append(bars, domain.Bar{
			Symbol: "IVV", Date: d,
			Open: price, High: price + 2, Low: price - 2, Close: price + 1,
		})
		price++
	}
	return bars
}

func TestNewRejectsInvalidBars(t *testing.T) {
	bars := weekBars()

	dup := append([]domain.Bar{}, bars...)
	dup[3].Date = dup[2].Date
	if _, err := New("IVV", dup); !errors.Is(err, domain.ErrInvalidSeries) {
		t.Errorf("duplicate dates: err = %v, want ErrInvalidSeries", err)
	}

	unordered := append([]domain.Bar{}, bars...)
	unordered[0], unordered[1] = unordered[1], unordered[0]
	if _, err := New("IVV", unordered); !errors.Is(err, domain.ErrInvalidSeries) {
		t.Errorf("unordered dates: err = %v, want ErrInvalidSeries", err)
	}

	zero := append([]domain.Bar{}, bars...)
	zero[4].Open = 0
	if _, err := New("IVV", zero); !errors.Is(err, domain.ErrInvalidSeries) {
		t.Errorf("zero open: err = %v, want ErrInvalidSeries", err)
	}

	nonFinite := []struct {
		name string
		mut  func(*domain.Bar)
	}{
		{"nan close", func(b *domain.Bar) { b.Close = math.NaN() }},
		{"inf open", func(b *domain.Bar) { b.Open = math.Inf(1) }},
		{"nan high", func(b *domain.Bar) { b.High = math.NaN() }},
		{"negative inf low", func(b *domain.Bar) { b.Low = math.Inf(-1) }},
		{"inf adj close", func(b *domain.Bar) { b.AdjClose = math.Inf(1) }},
	}
	for _, tc := range nonFinite {
		mutated := append([]domain.Bar{}, bars...)
		tc.mut(&mutated[5])
		if _, err := New("IVV", mutated); !errors.Is(err, domain.ErrInvalidSeries) {
			t.Errorf("%s: err = %v, want ErrInvalidSeries", tc.name, err)
		}
	}
}

func TestNewCopiesBars(t *testing.T) {
	bars := weekBars()
	s, err := New("IVV", bars)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	bars[0].Close = 1
	if s.Bar(0).Close == 1 {
		t.Error("series shares storage with the input slice")
	}
	got := s.Bars()
	got[1].Close = 1
	if s.Bar(1).Close == 1 {
		t.Error("Bars() exposes internal storage")
	}
}

func TestResolveForwardOverWeekend(t *testing.T) {
	s, err := New("IVV", weekBars())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Saturday start resolves forward to Monday, Sunday end backward to Friday.
	lo, hi, err := s.Resolve(day(2015, 4, 11), day(2015, 4, 12).AddDate(0, 0, 5))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := s.Bar(lo).Date; !got.Equal(day(2015, 4, 13)) {
		t.Errorf("start resolved to %v, want 2015-04-13", got)
	}
	if got := s.Bar(hi).Date; !got.Equal(day(2015, 4, 17)) {
		t.Errorf("end resolved to %v, want 2015-04-17", got)
	}

	lo, hi, err = s.Resolve(day(2015, 4, 10), day(2015, 4, 12))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if lo != hi || !s.Bar(lo).Date.Equal(day(2015, 4, 10)) {
		t.Errorf("Resolve(Fri, Sun) = [%d, %d], want the single Friday bar", lo, hi)
	}

	// A start before the first bar resolves to the first bar.
	lo, _, err = s.Resolve(day(2015, 4, 1), day(2015, 4, 8))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if lo != 0 {
		t.Errorf("start before series resolved to %d, want 0", lo)
	}
}

func TestResolveNoData(t *testing.T) {
	s, err := New("IVV", weekBars())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cases := []struct {
		name       string
		start, end time.Time
	}{
		{"end past last bar", day(2015, 4, 6), day(2015, 4, 20)},
		{"weekend only", day(2015, 4, 11), day(2015, 4, 12)},
		{"end before first bar", day(2015, 3, 1), day(2015, 4, 3)},
		{"inverted", day(2015, 4, 9), day(2015, 4, 7)},
	}
	for _, tc := range cases {
		if _, _, err := s.Resolve(tc.start, tc.end); !errors.Is(err, domain.ErrNoDataInRange) {
			t.Errorf("%s: err = %v, want ErrNoDataInRange", tc.name, err)
		}
	}

	empty, _ := New("IVV", nil)
	if _, _, err := empty.Resolve(day(2015, 4, 6), day(2015, 4, 6)); !errors.Is(err, domain.ErrNoDataInRange) {
		t.Errorf("empty series: err = %v, want ErrNoDataInRange", err)
	}
}

func TestIndexOf(t *testing.T) {
	s, _ := New("IVV", weekBars())
	if i, ok := s.IndexOf(day(2015, 4, 13)); !ok || i != 5 {
		t.Errorf("IndexOf(Mon 13th) = %d, %v; want 5, true", i, ok)
	}
	if _, ok := s.IndexOf(day(2015, 4, 11)); ok {
		t.Error("IndexOf found a Saturday bar")
	}
}

func TestBlend(t *testing.T) {
	bar := domain.Bar{Open: 10, High: 14, Low: 8, Close: 12}
	if got := CloseOnly.Price(bar); got != 12 {
		t.Errorf("CloseOnly = %v, want 12", got)
	}
	if got := OHLC.Price(bar); got != 11 {
		t.Errorf("OHLC = %v, want 11", got)
	}
	// Missing adjusted close falls back to close.
	if got := OHLCA.Price(bar); got != (10+14+8+12+12)/5.0 {
		t.Errorf("OHLCA = %v", got)
	}
	bar.AdjClose = 2
	if got := (Blend{FieldAdjClose}).Price(bar); got != 2 {
		t.Errorf("adj close blend = %v, want 2", got)
	}

	b, err := ParseBlend([]string{"open", "High", "low", "close", "Adj Close"})
	if err != nil {
		t.Fatalf("ParseBlend: %v", err)
	}
	if len(b) != 5 || b[4] != FieldAdjClose {
		t.Errorf("ParseBlend = %v", b.Names())
	}
	if _, err := ParseBlend([]string{"close", "volume"}); !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Errorf("unknown field: err = %v, want ErrInvalidConfiguration", err)
	}
	if _, err := ParseBlend([]string{"close", "close"}); !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Errorf("duplicate field: err = %v, want ErrInvalidConfiguration", err)
	}
}

func TestAveragerMatchesDirectScan(t *testing.T) {
	s, _ := New("IVV", weekBars())
	cached := NewAverager(s, OHLC, 2, 3, 5)
	direct := NewAverager(s, OHLC)

	for _, n := range []int{2, 3, 5} {
		for i := n; i <= s.Len(); i++ {
			want, err := direct.Average(i, n)
			if err != nil {
				t.Fatalf("direct Average(%d, %d): %v", i, n, err)
			}
			got, err := cached.Average(i, n)
			if err != nil {
				t.Fatalf("cached Average(%d, %d): %v", i, n, err)
			}
			if math.Abs(got-want) > 1e-9 {
				t.Errorf("Average(%d, %d) = %v, want %v", i, n, got, want)
			}
		}
	}
}

func TestExactAverageIgnoresCache(t *testing.T) {
	s, _ := New("IVV", weekBars())
	cached := NewAverager(s, CloseOnly, 3)

	got, err := cached.ExactAverage(4, 3)
	if err != nil {
		t.Fatalf("ExactAverage: %v", err)
	}
	// Closes of bars 1..3 are 102, 103, 104.
	if got != 103 {
		t.Errorf("ExactAverage(4, 3) = %v, want 103", got)
	}
	if _, err := cached.ExactAverage(2, 3); !errors.Is(err, domain.ErrInsufficientHistory) {
		t.Errorf("ExactAverage(2, 3): err = %v, want ErrInsufficientHistory", err)
	}
	if _, err := cached.ExactAverage(4, 0); !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Errorf("ExactAverage(4, 0): err = %v, want ErrInvalidConfiguration", err)
	}
}

func TestAverageWindowExcludesCurrentBar(t *testing.T) {
	s, _ := New("IVV", weekBars())
	a := NewAverager(s, CloseOnly, 2)

	// Closes are 101, 102, 103, ...; the window ending before index 3 is
	// bars 1 and 2.
	got, err := a.Average(3, 2)
	if err != nil {
		t.Fatalf("Average: %v", err)
	}
	if got != 102.5 {
		t.Errorf("Average(3, 2) = %v, want 102.5", got)
	}

	if _, err := a.Average(1, 2); !errors.Is(err, domain.ErrInsufficientHistory) {
		t.Errorf("Average(1, 2): err = %v, want ErrInsufficientHistory", err)
	}
	if _, err := a.Average(3, 0); !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Errorf("Average(3, 0): err = %v, want ErrInvalidConfiguration", err)
	}
}
