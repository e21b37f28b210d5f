package report

import (
	"strings"

	"github.com/shopspring/decimal"
)

// groupThousands inserts comma separators into the integer part of a
// plain decimal string.
func groupThousands(s string) string {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	start := len(intPart) % 3
	if start > 0 {
		b.WriteString(intPart[:start])
	}
	for i := start; i < len(intPart); i += 3 {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

// FormatMoney renders v rounded half away from zero to cents with thousands
// separators, e.g. 10392.157 -> "10,392.16".
func FormatMoney(v float64) string {
	return groupThousands(decimal.NewFromFloat(v).StringFixed(2))
}

// FormatPct renders a fraction as a signed percentage, e.g. 0.0392 -> "+3.92%".
func FormatPct(f float64) string {
	s := decimal.NewFromFloat(f).Mul(decimal.NewFromInt(100)).StringFixed(2)
	if !strings.HasPrefix(s, "-") {
		s = "+" + s
	}
	return s + "%"
}

// FormatShares renders a share count to four decimals, or "-" for zero.
func FormatShares(v float64) string {
	if v == 0 {
		return "-"
	}
	return decimal.NewFromFloat(v).StringFixed(4)
}

// FormatRatio renders a unitless ratio to two decimals.
func FormatRatio(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
