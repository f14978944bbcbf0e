package core

import (
	"strconv"
	"strings"
)

const (
	DefaultPage    = 1
	DefaultPerPage = 10
)

// Filter narrows the transaction set. A nil Sold matches both partitions.
type Filter struct {
	Month  Month
	Search string
	Sold   *bool
}

// Page is a skip/limit window. A zero Limit means no cap.
type Page struct {
	Skip  int
	Limit int
}

// ListParams are the inputs of the list endpoint.
type ListParams struct {
	Month   Month
	Search  string
	Page    int
	PerPage int
}

// Filter returns the store filter for the list parameters.
func (p ListParams) Filter() Filter {
	return Filter{Month: p.Month, Search: p.Search}
}

// Window converts 1-based page numbers into a skip/limit window.
func (p ListParams) Window() Page {
	page, perPage := p.Page, p.PerPage
	if page < 1 {
		page = DefaultPage
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	return Page{Skip: (page - 1) * perPage, Limit: perPage}
}

// SoldOnly and UnsoldOnly return a copy of f restricted to one partition.
func (f Filter) SoldOnly() Filter {
	sold := true
	f.Sold = &sold
	return f
}

func (f Filter) UnsoldOnly() Filter {
	sold := false
	f.Sold = &sold
	return f
}

// Matches applies the filter to a single record.
func (f Filter) Matches(t Transaction) bool {
	if !f.Month.Matches(t.DateOfSale) {
		return false
	}
	if f.Sold != nil && t.Sold != *f.Sold {
		return false
	}
	return MatchesSearch(t, f.Search)
}

// MatchesSearch does a case-insensitive substring match on title,
// description and the textual price. An empty term matches everything.
func MatchesSearch(t Transaction, term string) bool {
	if term == "" {
		return true
	}
	needle := strings.ToLower(term)
	return strings.Contains(strings.ToLower(t.ProductTitle), needle) ||
		strings.Contains(strings.ToLower(t.ProductDescription), needle) ||
		strings.Contains(PriceText(t.Price), needle)
}

// PriceText is the searchable text form of a price: shortest decimal, no exponent.
func PriceText(price float64) string {
	return strconv.FormatFloat(price, 'f', -1, 64)
}
