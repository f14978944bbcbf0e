package http

import (
	"net/url"
	"strings"

	"txdash/internal/core"
)

// ParseListParams reads month, search, page and perPage from the query.
// page and perPage follow parseInt semantics: leading digits are used and
// anything unparsable or below 1 falls back to the defaults.
func ParseListParams(query url.Values) core.ListParams {
	return core.ListParams{
		Month:   ParseMonthParam(query),
		Search:  query.Get("search"),
		Page:    parsePositiveInt(query.Get("page"), core.DefaultPage),
		PerPage: parsePositiveInt(query.Get("perPage"), core.DefaultPerPage),
	}
}

// ParseMonthParam reads the month query parameter. It never fails:
// unrecognised values select nothing.
func ParseMonthParam(query url.Values) core.Month {
	return core.ParseMonth(query.Get("month"))
}

func parsePositiveInt(s string, def int) int {
	n, ok := parseLeadingInt(s)
	if !ok || n < 1 {
		return def
	}
	return n
}

// parseLeadingInt accepts optional whitespace, an optional sign and at
// least one digit; trailing characters are ignored. "12abc" yields 12.
func parseLeadingInt(s string) (int, bool) {
	s = strings.TrimLeft(s, " \t\n\r")
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}

	const limit = 1 << 31
	n, digits := 0, 0
	for digits < len(s) && s[digits] >= '0' && s[digits] <= '9' {
		if n < limit {
			n = n*10 + int(s[digits]-'0')
		}
		digits++
	}
	if digits == 0 {
		return 0, false
	}
	if n > limit {
		n = limit
	}
	if neg {
		n = -n
	}
	return n, true
}
