package series

import (
	"fmt"
	"strings"

	"macross/internal/domain"
)

// Field selects one price column of a bar.
type Field uint8

const (
	FieldOpen Field = iota
	FieldHigh
	FieldLow
	FieldClose
	FieldAdjClose
)

var fieldNames = map[Field]string{
	FieldOpen:     "open",
	FieldHigh:     "high",
	FieldLow:      "low",
	FieldClose:    "close",
	FieldAdjClose: "adj_close",
}

func (f Field) String() string {
	if n, ok := fieldNames[f]; ok {
		return n
	}
	return fmt.Sprintf("field(%d)", uint8(f))
}

// Blend is the set of price fields averaged, with equal weight, into the
// single price a rolling window is taken over.
type Blend []Field

var (
	// CloseOnly averages the close price alone.
	CloseOnly = Blend{FieldClose}
	// OHLC averages open, high, low and close.
	OHLC = Blend{FieldOpen, FieldHigh, FieldLow, FieldClose}
	// OHLCA adds the adjusted close to OHLC.
	OHLCA = Blend{FieldOpen, FieldHigh, FieldLow, FieldClose, FieldAdjClose}
)

// ParseBlend converts field names ("open", "high", "low", "close",
// "adj_close") into a Blend. Duplicates are rejected.
func ParseBlend(names []string) (Blend, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("empty price field list: %w", domain.ErrInvalidConfiguration)
	}
	seen := make(map[Field]bool, len(names))
	b := make(Blend, 0, len(names))
	for _, name := range names {
		f, ok := lookupField(name)
		if !ok {
			return nil, fmt.Errorf("unknown price field %q: %w", name, domain.ErrInvalidConfiguration)
		}
		if seen[f] {
			return nil, fmt.Errorf("duplicate price field %q: %w", name, domain.ErrInvalidConfiguration)
		}
		seen[f] = true
		b = append(b, f)
	}
	return b, nil
}

func lookupField(name string) (Field, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "adjclose" || name == "adj close" {
		name = "adj_close"
	}
	for f, n := range fieldNames {
		if n == name {
			return f, true
		}
	}
	return 0, false
}

// Names returns the field names of b.
func (b Blend) Names() []string {
	out := make([]string, len(b))
	for i, f := range b {
		out[i] = f.String()
	}
	return out
}

// Price returns the equal-weighted mean of b's fields on bar. The adjusted
// close falls back to the close on bars that lack one.
func (b Blend) Price(bar domain.Bar) float64 {
	if len(b) == 0 {
		return bar.Close
	}
	total := 0.0
	for _, f := range b {
		total += fieldValue(bar, f)
	}
	return total / float64(len(b))
}

func fieldValue(bar domain.Bar, f Field) float64 {
	switch f {
	case FieldOpen:
		return bar.Open
	case FieldHigh:
		return bar.High
	case FieldLow:
		return bar.Low
	case FieldAdjClose:
		if bar.AdjClose != 0 {
			return bar.AdjClose
		}
		return bar.Close
	default:
		return bar.Close
	}
}
