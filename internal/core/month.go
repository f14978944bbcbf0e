package core

import (
	"strconv"
	"strings"
	"time"
)

// Month selects records by the calendar month of their dateOfSale, any year.
// AnyMonth matches everything and NoMonth matches nothing.
type Month int

const (
	AnyMonth Month = 0
	NoMonth  Month = -1
)

// ParseMonth turns a query value into a Month. Empty input means AnyMonth,
// 1-12 and English month names (full or three letters) select a month, and
// anything else yields NoMonth rather than an error.
func ParseMonth(s string) Month {
	s = strings.TrimSpace(s)
	if s == "" {
		return AnyMonth
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n >= 1 && n <= 12 {
			return Month(n)
		}
		return NoMonth
	}
	lower := strings.ToLower(s)
	for m := time.January; m <= time.December; m++ {
		name := strings.ToLower(m.String())
		if lower == name || lower == name[:3] {
			return Month(m)
		}
	}
	return NoMonth
}

// IsSpecific reports whether m names a single calendar month.
func (m Month) IsSpecific() bool {
	return m >= 1 && m <= 12
}

// Matches reports whether d falls in the selected month.
func (m Month) Matches(d Date) bool {
	switch {
	case m == AnyMonth:
		return true
	case m.IsSpecific():
		return d.Month() == int(m)
	default:
		return false
	}
}

func (m Month) String() string {
	switch {
	case m == AnyMonth:
		return "any"
	case m.IsSpecific():
		return time.Month(m).String()
	default:
		return "none"
	}
}
