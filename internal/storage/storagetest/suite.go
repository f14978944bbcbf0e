// Package storagetest holds a behavioural suite every storage.Store must pass.
package storagetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txdash/internal/core"
	"txdash/internal/storage"
)

// Tx builds a valid transaction for fixtures.
func Tx(id int64, date core.Date, title string, price float64, category string, sold bool) core.Transaction {
	return core.Transaction{
		ID:                 id,
		DateOfSale:         date,
		ProductTitle:       title,
		ProductDescription: "description of " + title,
		Price:              price,
		Category:           category,
		Sold:               sold,
	}
}

// ScenarioFixture is the three-record data set used across the suites.
func ScenarioFixture() []core.Transaction {
	return []core.Transaction{
		Tx(1, core.NewDate(2022, 3, 5), "Blue Shirt", 50, "A", true),
		Tx(2, core.NewDate(2022, 3, 9), "Laptop", 550, "B", false),
		Tx(3, core.NewDate(2022, 4, 2), "Red Hat", 120, "A", true),
	}
}

// PagingFixture returns 25 March records with distinct days plus noise from
// other months. Record i (1-based) is sold on March i so the newest is id 25.
func PagingFixture() []core.Transaction {
	var out []core.Transaction
	for i := 1; i <= 25; i++ {
		d := core.Date{Time: time.Date(2021, 3, i, 12, 0, 0, 0, time.UTC)}
		out = append(out, Tx(int64(i), d, fmt.Sprintf("Widget %02d", i), float64(i*40), "gadgets", i%2 == 0))
	}
	out = append(out,
		Tx(100, core.NewDate(2021, 5, 1), "Widget May", 10, "gadgets", true),
		Tx(101, core.NewDate(2022, 3, 31), "Other thing", 10, "misc", true),
	)
	return out
}

// Run executes the suite. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	ctx := context.Background()

	load := func(t *testing.T, txs []core.Transaction) storage.Store {
		t.Helper()
		s := newStore(t)
		t.Cleanup(func() { _ = s.Close() })
		require.NoError(t, s.Load(ctx, txs))
		return s
	}

	t.Run("empty store", func(t *testing.T) {
		s := load(t, nil)
		page, err := s.FindPage(ctx, core.Filter{}, core.Page{Limit: 10})
		require.NoError(t, err)
		assert.NotNil(t, page)
		assert.Empty(t, page)

		sum, err := s.SumPrice(ctx, core.Filter{Month: 3}.SoldOnly())
		require.NoError(t, err)
		assert.Equal(t, 0.0, sum)

		hist, err := s.PriceHistogram(ctx, core.Filter{})
		require.NoError(t, err)
		assert.Empty(t, hist)

		cats, err := s.CategoryCounts(ctx, core.Filter{})
		require.NoError(t, err)
		assert.Empty(t, cats)
	})

	t.Run("scenario aggregates", func(t *testing.T) {
		s := load(t, ScenarioFixture())
		march := core.Filter{Month: 3}

		sum, err := s.SumPrice(ctx, march.SoldOnly())
		require.NoError(t, err)
		assert.Equal(t, 50.0, sum)

		sold, err := s.Count(ctx, march.SoldOnly())
		require.NoError(t, err)
		assert.Equal(t, int64(1), sold)

		unsold, err := s.Count(ctx, march.UnsoldOnly())
		require.NoError(t, err)
		assert.Equal(t, int64(1), unsold)

		cats, err := s.CategoryCounts(ctx, march)
		require.NoError(t, err)
		assert.Equal(t, []core.CategoryCount{{Category: "A", Count: 1}, {Category: "B", Count: 1}}, cats)

		hist, err := s.PriceHistogram(ctx, march)
		require.NoError(t, err)
		assert.Equal(t, []core.BucketCount{{Label: "0-100", Count: 1}, {Label: "501-600", Count: 1}}, hist)

		all, err := s.Count(ctx, core.Filter{})
		require.NoError(t, err)
		assert.Equal(t, int64(3), all)

		none, err := s.Count(ctx, core.Filter{Month: core.NoMonth})
		require.NoError(t, err)
		assert.Equal(t, int64(0), none)
	})

	t.Run("bucket edges", func(t *testing.T) {
		d := core.NewDate(2022, 6, 1)
		s := load(t, []core.Transaction{
			Tx(1, d, "a", 0, "x", false),
			Tx(2, d, "b", 100, "x", false),
			Tx(3, d, "c", 100.01, "x", false),
			Tx(4, d, "d", 900, "x", false),
			Tx(5, d, "e", 900.5, "x", false),
		})
		hist, err := s.PriceHistogram(ctx, core.Filter{Month: 6})
		require.NoError(t, err)
		assert.Equal(t, []core.BucketCount{
			{Label: "0-100", Count: 2},
			{Label: "101-200", Count: 1},
			{Label: "801-900", Count: 1},
			{Label: "901-above", Count: 1},
		}, hist)
	})

	t.Run("paging and ordering", func(t *testing.T) {
		s := load(t, PagingFixture())
		f := core.Filter{Month: 3, Search: "widget"}

		n, err := s.Count(ctx, f)
		require.NoError(t, err)
		assert.Equal(t, int64(25), n)

		page, err := s.FindPage(ctx, f, core.ListParams{Page: 2, PerPage: 10}.Window())
		require.NoError(t, err)
		require.Len(t, page, 10)
		for i, tx := range page {
			// Newest first: page 2 holds the 11th..20th newest, ids 15..6.
			assert.Equal(t, int64(15-i), tx.ID)
		}

		tail, err := s.FindPage(ctx, f, core.Page{Skip: 20, Limit: 10})
		require.NoError(t, err)
		assert.Len(t, tail, 5)

		all, err := s.FindPage(ctx, core.Filter{Month: 3}, core.Page{})
		require.NoError(t, err)
		assert.Len(t, all, 26)
		assert.Equal(t, int64(101), all[0].ID)
	})

	t.Run("search", func(t *testing.T) {
		s := load(t, []core.Transaction{
			Tx(1, core.NewDate(2022, 3, 1), "Blue Shirt", 329.85, "clothes", true),
			Tx(2, core.NewDate(2022, 3, 2), "Green Hat", 15, "clothes", true),
			Tx(3, core.NewDate(2022, 3, 3), "50% off mug", 7.5, "home", false),
			Tx(4, core.NewDate(2022, 3, 4), "ÉCLAIR Jacket", 80, "clothes", false),
		})
		find := func(term string) []int64 {
			t.Helper()
			page, err := s.FindPage(ctx, core.Filter{Search: term}, core.Page{})
			require.NoError(t, err)
			ids := make([]int64, 0, len(page))
			for _, tx := range page {
				ids = append(ids, tx.ID)
			}
			return ids
		}
		assert.Equal(t, []int64{1}, find("blue"))
		assert.Equal(t, []int64{1}, find("SHIRT"))
		assert.Equal(t, []int64{1}, find("329.85"))
		assert.Equal(t, []int64{3}, find("7.5"))
		assert.Equal(t, []int64{3}, find("50%"))
		assert.Equal(t, []int64{4, 3, 2, 1}, find("description of "))
		assert.Empty(t, find("_"))
		// non-ASCII letters fold like ASCII ones
		assert.Equal(t, []int64{4}, find("éclair"))
		assert.Equal(t, []int64{4}, find("ÉCLAIR JACKET"))
	})

	t.Run("round trip fields", func(t *testing.T) {
		want := core.Transaction{
			ID:                 42,
			DateOfSale:         core.Date{Time: time.Date(2021, 11, 27, 14, 59, 54, 123e6, time.UTC)},
			ProductTitle:       "Fjallraven Backpack",
			ProductDescription: "Your perfect pack",
			Price:              109.95,
			Category:           "men's clothing",
			Sold:               true,
		}
		s := load(t, []core.Transaction{want})
		got, err := s.FindPage(ctx, core.Filter{}, core.Page{})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, want.ID, got[0].ID)
		assert.True(t, want.DateOfSale.Equal(got[0].DateOfSale.Time))
		assert.Equal(t, want.ProductTitle, got[0].ProductTitle)
		assert.Equal(t, want.ProductDescription, got[0].ProductDescription)
		assert.Equal(t, want.Price, got[0].Price)
		assert.Equal(t, want.Category, got[0].Category)
		assert.Equal(t, want.Sold, got[0].Sold)
	})

	t.Run("load replaces", func(t *testing.T) {
		s := load(t, ScenarioFixture())
		require.NoError(t, s.Load(ctx, ScenarioFixture()[:1]))
		n, err := s.Count(ctx, core.Filter{})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
}
