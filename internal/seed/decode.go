package seed

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"txdash/internal/core"
)

// ErrMalformedFeed wraps JSON and mapping failures; these are never retried.
var ErrMalformedFeed = errors.New("malformed feed")

// feedRecord mirrors one feed entry. Pointers distinguish missing fields from zero values.
type feedRecord struct {
	ID                 *int64     `json:"id"`
	DateOfSale         *core.Date `json:"dateOfSale"`
	ProductTitle       string     `json:"productTitle"`
	ProductDescription string     `json:"productDescription"`
	Price              *float64   `json:"price"`
	Category           string     `json:"category"`
	Sold               *bool      `json:"sold"`
}

func (r feedRecord) toTransaction(index int) (core.Transaction, error) {
	switch {
	case r.ID == nil:
		return core.Transaction{}, fmt.Errorf("%w: entry %d: missing id", core.ErrInvalidRecord, index)
	case r.DateOfSale == nil:
		return core.Transaction{}, fmt.Errorf("%w (id=%d): missing dateOfSale", core.ErrInvalidRecord, *r.ID)
	case r.Price == nil:
		return core.Transaction{}, fmt.Errorf("%w (id=%d): missing price", core.ErrInvalidRecord, *r.ID)
	case r.Sold == nil:
		return core.Transaction{}, fmt.Errorf("%w (id=%d): missing sold", core.ErrInvalidRecord, *r.ID)
	}

	t := core.Transaction{
		ID:                 *r.ID,
		DateOfSale:         *r.DateOfSale,
		ProductTitle:       r.ProductTitle,
		ProductDescription: r.ProductDescription,
		Price:              *r.Price,
		Category:           r.Category,
		Sold:               *r.Sold,
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

// Decode maps a JSON array of feed entries onto transactions. Unknown fields
// are ignored. Any invalid entry rejects the whole feed.
func Decode(r io.Reader) ([]core.Transaction, error) {
	var records []feedRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFeed, err)
	}

	txs := make([]core.Transaction, 0, len(records))
	for i, rec := range records {
		t, err := rec.toTransaction(i)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedFeed, err)
		}
		txs = append(txs, t)
	}
	return txs, nil
}
