package memory

import (
	"context"
	"sort"
	"sync"

	"txdash/internal/core"
	"txdash/internal/storage"
)

// Store keeps transactions in process memory.
type Store struct {
	mu    sync.RWMutex
	items []core.Transaction
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// Load replaces the data set. Items are kept pre-sorted in list order so
// FindPage only has to filter and slice.
func (s *Store) Load(_ context.Context, txs []core.Transaction) error {
	items := append([]core.Transaction(nil), txs...)
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.DateOfSale.Equal(b.DateOfSale.Time) {
			return a.DateOfSale.After(b.DateOfSale.Time)
		}
		return a.ID < b.ID
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
	return nil
}

func (s *Store) FindPage(ctx context.Context, f core.Filter, p core.Page) ([]core.Transaction, error) {
	out := make([]core.Transaction, 0)
	skipped := 0
	err := s.each(ctx, f, func(t core.Transaction) bool {
		if skipped < p.Skip {
			skipped++
			return true
		}
		out = append(out, t)
		return p.Limit <= 0 || len(out) < p.Limit
	})
	return out, err
}

func (s *Store) Count(ctx context.Context, f core.Filter) (int64, error) {
	var n int64
	err := s.each(ctx, f, func(core.Transaction) bool {
		n++
		return true
	})
	return n, err
}

func (s *Store) SumPrice(ctx context.Context, f core.Filter) (float64, error) {
	var prices []float64
	err := s.each(ctx, f, func(t core.Transaction) bool {
		prices = append(prices, t.Price)
		return true
	})
	if err != nil {
		return 0, err
	}
	return core.SumPrices(prices), nil
}

func (s *Store) PriceHistogram(ctx context.Context, f core.Filter) ([]core.BucketCount, error) {
	counts := make(map[int]int64)
	err := s.each(ctx, f, func(t core.Transaction) bool {
		counts[core.BucketIndex(t.Price)]++
		return true
	})
	if err != nil {
		return nil, err
	}
	return core.BucketCountsFromIndex(counts), nil
}

func (s *Store) CategoryCounts(ctx context.Context, f core.Filter) ([]core.CategoryCount, error) {
	counts := make(map[string]int64)
	err := s.each(ctx, f, func(t core.Transaction) bool {
		counts[t.Category]++
		return true
	})
	if err != nil {
		return nil, err
	}
	out := make([]core.CategoryCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, core.CategoryCount{Category: name, Count: n})
	}
	core.SortCategoryCounts(out)
	return out, nil
}

func (s *Store) Close() error { return nil }

// Len returns the number of stored transactions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// each calls fn for every matching item in list order until fn returns false.
func (s *Store) each(ctx context.Context, f core.Filter, fn func(core.Transaction) bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.items {
		if !f.Matches(t) {
			continue
		}
		if !fn(t) {
			break
		}
	}
	return nil
}
