package display

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// Trend directions carried by display values.
const (
	TrendUp   = "up"
	TrendDown = "down"
	TrendFlat = "flat"
)

const invalidNumber = "-"

// -----------------------------------------------------------------------------

// ParseDecimal parses an exchange decimal string. ok is false for anything
// that is not a finite number.
func ParseDecimal(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// -----------------------------------------------------------------------------

// grouped renders v with thousands separators, rounded to maxDecimals and
// with trailing zeros trimmed down to minDecimals.
func grouped(v float64, minDecimals, maxDecimals int) string {
	format := "#,###."
	if maxDecimals > 0 {
		format += strings.Repeat("#", maxDecimals)
	}
	s := humanize.FormatFloat(format, v)

	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		return s
	}
	keep := len(s)
	for keep > dot+1+minDecimals && s[keep-1] == '0' {
		keep--
	}
	if keep == dot+1 {
		keep = dot
	}
	return s[:keep]
}

// -----------------------------------------------------------------------------

// FormatPrice renders "$40,000.00" style prices: grouped, 2 to 3 decimals.
func FormatPrice(raw string) string {
	v, ok := ParseDecimal(raw)
	if !ok {
		return invalidNumber
	}
	return "$" + grouped(v, 2, 3)
}

// -----------------------------------------------------------------------------

// FormatPercent renders a signed change with 2 decimals. Only strictly
// positive values get a "+".
func FormatPercent(raw string) string {
	v, ok := ParseDecimal(raw)
	if !ok {
		return invalidNumber
	}
	sign := ""
	if v > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, v)
}

// -----------------------------------------------------------------------------

// FormatVolume renders a grouped volume with at most 3 decimals.
func FormatVolume(raw string) string {
	v, ok := ParseDecimal(raw)
	if !ok {
		return invalidNumber
	}
	return grouped(v, 0, 3)
}

// -----------------------------------------------------------------------------

// CountUpDecimals picks the animated precision from the magnitude of v.
func CountUpDecimals(v float64) int {
	a := math.Abs(v)
	switch {
	case a < 0.01:
		return 6
	case a < 0.1:
		return 4
	case a < 1:
		return 3
	case a < 100:
		return 2
	default:
		return 0
	}
}

// -----------------------------------------------------------------------------

// FormatCountUp renders v at its count-up precision, optionally grouped.
func FormatCountUp(v float64, grouping bool) string {
	d := CountUpDecimals(v)
	s := strconv.FormatFloat(v, 'f', d, 64)
	if !grouping {
		return s
	}
	return grouped(v, d, d)
}

// -----------------------------------------------------------------------------

func Trend(previous, current float64) string {
	switch {
	case current > previous:
		return TrendUp
	case current < previous:
		return TrendDown
	default:
		return TrendFlat
	}
}
