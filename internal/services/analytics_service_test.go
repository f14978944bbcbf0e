package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txdash/internal/cache"
	"txdash/internal/core"
	"txdash/internal/storage"
	"txdash/internal/storage/memory"
	"txdash/internal/storage/storagetest"
)

func newService(t *testing.T, txs []core.Transaction, opts AnalyticsOptions) (*AnalyticsService, *memory.Store) {
	t.Helper()
	store := memory.New()
	require.NoError(t, store.Load(context.Background(), txs))
	return NewAnalyticsService(store, opts), store
}

// randomFixture builds a reproducible data set spanning several years.
func randomFixture(n int) []core.Transaction {
	rng := rand.New(rand.NewSource(42))
	categories := []string{"electronics", "jewelery", "men's clothing", "women's clothing"}
	out := make([]core.Transaction, 0, n)
	for i := 1; i <= n; i++ {
		d := time.Date(2020+rng.Intn(3), time.Month(1+rng.Intn(12)), 1+rng.Intn(28), rng.Intn(24), 0, 0, 0, time.UTC)
		price := float64(rng.Intn(120000)) / 100
		out = append(out, storagetest.Tx(int64(i), core.Date{Time: d}, fmt.Sprintf("Item %d", i), price, categories[rng.Intn(len(categories))], rng.Intn(2) == 0))
	}
	return out
}

func TestAnalyticsService_Scenario(t *testing.T) {
	svc, _ := newService(t, storagetest.ScenarioFixture(), AnalyticsOptions{})
	ctx := context.Background()

	stats, err := svc.Statistics(ctx, core.ParseMonth("3"))
	require.NoError(t, err)
	assert.Equal(t, core.Statistics{TotalSaleAmount: 50, TotalSoldItems: 1, TotalNotSoldItems: 1}, stats)

	pie, err := svc.PieChart(ctx, core.ParseMonth("March"))
	require.NoError(t, err)
	assert.Equal(t, []core.CategoryCount{{Category: "A", Count: 1}, {Category: "B", Count: 1}}, pie)

	bar, err := svc.BarChart(ctx, core.ParseMonth("mar"))
	require.NoError(t, err)
	assert.Equal(t, []core.BucketCount{{Label: "0-100", Count: 1}, {Label: "501-600", Count: 1}}, bar)
}

func TestAnalyticsService_Properties(t *testing.T) {
	txs := randomFixture(400)
	svc, _ := newService(t, txs, AnalyticsOptions{})
	ctx := context.Background()

	for month := 1; month <= 12; month++ {
		t.Run(time.Month(month).String(), func(t *testing.T) {
			m := core.Month(month)

			var matching []core.Transaction
			var soldPrices []float64
			categories := map[string]int64{}
			for _, tx := range txs {
				if tx.DateOfSale.Month() != month {
					continue
				}
				matching = append(matching, tx)
				categories[tx.Category]++
				if tx.Sold {
					soldPrices = append(soldPrices, tx.Price)
				}
			}
			total := int64(len(matching))

			stats, err := svc.Statistics(ctx, m)
			require.NoError(t, err)
			assert.Equal(t, total, stats.TotalSoldItems+stats.TotalNotSoldItems)
			assert.InDelta(t, core.SumPrices(soldPrices), stats.TotalSaleAmount, 1e-6)

			bar, err := svc.BarChart(ctx, m)
			require.NoError(t, err)
			var barSum int64
			for _, b := range bar {
				assert.Positive(t, b.Count, "empty buckets are omitted")
				barSum += b.Count
			}
			assert.Equal(t, total, barSum)

			pie, err := svc.PieChart(ctx, m)
			require.NoError(t, err)
			var pieSum int64
			seen := map[string]bool{}
			for _, c := range pie {
				assert.False(t, seen[c.Category], "category %q listed twice", c.Category)
				seen[c.Category] = true
				assert.Equal(t, categories[c.Category], c.Count)
				pieSum += c.Count
			}
			assert.Equal(t, total, pieSum)
			assert.Len(t, pie, len(categories))
		})
	}
}

func TestAnalyticsService_ListTransactions(t *testing.T) {
	svc, _ := newService(t, storagetest.PagingFixture(), AnalyticsOptions{MaxPerPage: 5})
	ctx := context.Background()

	page, err := svc.ListTransactions(ctx, core.ListParams{Month: 3, Search: "WIDGET", Page: 2, PerPage: 10})
	require.NoError(t, err)
	// perPage is capped at 5, so page 2 holds the 6th..10th newest
	require.Len(t, page, 5)
	assert.Equal(t, int64(20), page[0].ID)
	assert.Equal(t, int64(16), page[4].ID)

	none, err := svc.ListTransactions(ctx, core.ListParams{Month: core.NoMonth})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestAnalyticsService_Combined(t *testing.T) {
	svc, _ := newService(t, storagetest.PagingFixture(), AnalyticsOptions{})

	got, err := svc.Combined(context.Background(), core.Month(3))
	require.NoError(t, err)

	// month filter only: all 26 March records, unpaged
	assert.Len(t, got.Transactions, 26)
	assert.Equal(t, int64(26), got.Statistics.TotalSoldItems+got.Statistics.TotalNotSoldItems)
	assert.NotEmpty(t, got.BarChartData)
	assert.Equal(t, []core.CategoryCount{{Category: "gadgets", Count: 25}, {Category: "misc", Count: 1}}, got.PieChartData)

	empty, err := svc.Combined(context.Background(), core.NoMonth)
	require.NoError(t, err)
	assert.NotNil(t, empty.Transactions)
	assert.NotNil(t, empty.BarChartData)
	assert.NotNil(t, empty.PieChartData)
}

type failingStore struct {
	storage.Store
	calls atomic.Int32
}

func (f *failingStore) Count(context.Context, core.Filter) (int64, error) {
	f.calls.Add(1)
	return 0, errors.New("connection reset")
}

type failureCounter map[string]int

func (f failureCounter) QueryFailed(op string) { f[op]++ }

func TestAnalyticsService_StoreErrorsPropagate(t *testing.T) {
	store := &failingStore{Store: memory.New()}
	failures := failureCounter{}
	svc := NewAnalyticsService(store, AnalyticsOptions{Failures: failures})

	_, err := svc.Statistics(context.Background(), core.Month(3))
	assert.ErrorContains(t, err, "connection reset")

	_, err = svc.Combined(context.Background(), core.Month(3))
	assert.Error(t, err)

	assert.Equal(t, 1, failures["statistics"])
	assert.Equal(t, 1, failures["combined"])
}

type countingStore struct {
	storage.Store
	histograms atomic.Int32
}

func (c *countingStore) PriceHistogram(ctx context.Context, f core.Filter) ([]core.BucketCount, error) {
	c.histograms.Add(1)
	return c.Store.PriceHistogram(ctx, f)
}

func TestAnalyticsService_CachesOnlyWhenReady(t *testing.T) {
	mem := memory.New()
	require.NoError(t, mem.Load(context.Background(), storagetest.ScenarioFixture()))
	store := &countingStore{Store: mem}

	var ready atomic.Bool
	lru := cache.NewLRUCache[any](10, time.Minute)
	svc := NewAnalyticsService(store, AnalyticsOptions{Cache: lru, Ready: ready.Load})
	ctx := context.Background()

	_, err := svc.BarChart(ctx, 3)
	require.NoError(t, err)
	_, err = svc.BarChart(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int32(2), store.histograms.Load(), "not cached before ready")

	ready.Store(true)
	first, err := svc.BarChart(ctx, 3)
	require.NoError(t, err)
	second, err := svc.BarChart(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int32(3), store.histograms.Load())
	assert.Equal(t, first, second)

	lru.Purge()
	_, err = svc.BarChart(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int32(4), store.histograms.Load())
}

type slowStore struct {
	storage.Store
}

func (slowStore) SumPrice(ctx context.Context, _ core.Filter) (float64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestAnalyticsService_QueryTimeout(t *testing.T) {
	svc := NewAnalyticsService(slowStore{Store: memory.New()}, AnalyticsOptions{QueryTimeout: 20 * time.Millisecond})

	_, err := svc.Statistics(context.Background(), 3)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// gatedStore computes category counts, then holds the answer until release
// is closed.
type gatedStore struct {
	storage.Store
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedStore(inner storage.Store) *gatedStore {
	return &gatedStore{Store: inner, started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedStore) CategoryCounts(ctx context.Context, f core.Filter) ([]core.CategoryCount, error) {
	counts, err := g.Store.CategoryCounts(ctx, f)
	g.once.Do(func() { close(g.started) })
	select {
	case <-g.release:
		return counts, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestAnalyticsService_QueryStartedBeforeReadyIsNotCached(t *testing.T) {
	mem := memory.New()
	store := newGatedStore(mem)
	var ready atomic.Bool
	svc := NewAnalyticsService(store, AnalyticsOptions{
		Cache: cache.NewLRUCache[any](10, time.Minute),
		Ready: ready.Load,
	})
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = svc.PieChart(ctx, 3)
	}()
	<-store.started

	// the seed lands while the first query is still running
	require.NoError(t, mem.Load(ctx, storagetest.ScenarioFixture()))
	ready.Store(true)

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = svc.PieChart(ctx, 3)
	}()
	time.Sleep(20 * time.Millisecond)
	close(store.release)
	wg.Wait()

	got, err := svc.PieChart(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []core.CategoryCount{{Category: "A", Count: 1}, {Category: "B", Count: 1}}, got)
}

func TestAnalyticsService_CallerCancelDoesNotFailSharedQuery(t *testing.T) {
	mem := memory.New()
	require.NoError(t, mem.Load(context.Background(), storagetest.ScenarioFixture()))
	store := newGatedStore(mem)
	svc := NewAnalyticsService(store, AnalyticsOptions{QueryTimeout: 5 * time.Second})

	cancelCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.PieChart(cancelCtx, 3)
		firstErr <- err
	}()
	<-store.started

	type result struct {
		counts []core.CategoryCount
		err    error
	}
	second := make(chan result, 1)
	go func() {
		counts, err := svc.PieChart(context.Background(), 3)
		second <- result{counts, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(store.release)
	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, []core.CategoryCount{{Category: "A", Count: 1}, {Category: "B", Count: 1}}, res.counts)
}
