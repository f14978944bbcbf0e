package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// dateLayout is the wire layout for dateOfSale: UTC with millisecond precision.
const dateLayout = "2006-01-02T15:04:05.000Z07:00"

// Accepted seed feed layouts, tried in order.
var feedDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

type (
	// Date wraps time.Time and always serializes in UTC.
	Date struct {
		time.Time
	}

	// Transaction is one product purchase event from the seed feed.
	Transaction struct {
		ID                 int64   `json:"id"`
		DateOfSale         Date    `json:"dateOfSale"`
		ProductTitle       string  `json:"productTitle"`
		ProductDescription string  `json:"productDescription"`
		Price              float64 `json:"price"`
		Category           string  `json:"category"`
		Sold               bool    `json:"sold"`
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidRecord    = errors.New("invalid transaction record")
	ErrEmptyTitle       = errors.New("empty product title")
	ErrEmptyDescription = errors.New("empty product description")
	ErrEmptyCategory    = errors.New("empty category")
)

// NewDate builds a UTC date at midnight.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a seed feed date string. Offsets are honoured and the
// result is normalized to UTC.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrInvalidDate
	}
	for _, layout := range feedDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Time: t.UTC()}, nil
		}
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// Month returns the calendar month in UTC.
func (d Date) Month() int {
	return int(d.Time.UTC().Month())
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Time.UTC().Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(strings.Trim(s, `"`))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Validate checks that every required field is present.
func (t Transaction) Validate() error {
	if err := t.DateOfSale.Validate(); err != nil {
		return fmt.Errorf("%w (id=%d): %v", ErrInvalidRecord, t.ID, err)
	}
	if strings.TrimSpace(t.ProductTitle) == "" {
		return fmt.Errorf("%w (id=%d): %v", ErrInvalidRecord, t.ID, ErrEmptyTitle)
	}
	if strings.TrimSpace(t.ProductDescription) == "" {
		return fmt.Errorf("%w (id=%d): %v", ErrInvalidRecord, t.ID, ErrEmptyDescription)
	}
	if strings.TrimSpace(t.Category) == "" {
		return fmt.Errorf("%w (id=%d): %v", ErrInvalidRecord, t.ID, ErrEmptyCategory)
	}
	return nil
}
