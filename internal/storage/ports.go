package storage

import (
	"context"

	"txdash/internal/core"
)

// Store holds the seeded transactions and answers filter/aggregate queries.
// Load is the only write; it replaces the whole data set.
type Store interface {
	Load(ctx context.Context, txs []core.Transaction) error
	FindPage(ctx context.Context, f core.Filter, p core.Page) ([]core.Transaction, error)
	Count(ctx context.Context, f core.Filter) (int64, error)
	// SumPrice returns 0 when nothing matches.
	SumPrice(ctx context.Context, f core.Filter) (float64, error)
	// PriceHistogram returns only non-empty buckets, in bucket order.
	PriceHistogram(ctx context.Context, f core.Filter) ([]core.BucketCount, error)
	// CategoryCounts returns one entry per category, ordered by name.
	CategoryCounts(ctx context.Context, f core.Filter) ([]core.CategoryCount, error)
	Close() error
}
