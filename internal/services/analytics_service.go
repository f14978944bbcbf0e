package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"txdash/internal/cache"
	"txdash/internal/core"
	applog "txdash/internal/log"
	"txdash/internal/storage"
)

// FailureRecorder counts failed operations, e.g. a Prometheus counter.
type FailureRecorder interface {
	QueryFailed(operation string)
}

// AnalyticsOptions tune an AnalyticsService. Zero values disable the feature.
type AnalyticsOptions struct {
	QueryTimeout time.Duration
	MaxPerPage   int
	Cache        cache.Cache[any]
	// Ready gates caching: results are only cached once the data set is final.
	Ready    func() bool
	Failures FailureRecorder
	Logger   *applog.Logger
}

// AnalyticsService answers the dashboard queries against a Store.
type AnalyticsService struct {
	store  storage.Store
	opts   AnalyticsOptions
	logger *applog.Logger
	flight singleflight.Group
}

func NewAnalyticsService(store storage.Store, opts AnalyticsOptions) *AnalyticsService {
	logger := opts.Logger
	if logger == nil {
		logger = applog.Wrap(nil, applog.ComponentAnalytics)
	}
	return &AnalyticsService{
		store:  store,
		opts:   opts,
		logger: logger.WithComponent(applog.ComponentAnalytics),
	}
}

// ListTransactions returns one page of month and search filtered
// transactions, newest first.
func (s *AnalyticsService) ListTransactions(ctx context.Context, p core.ListParams) ([]core.Transaction, error) {
	if s.opts.MaxPerPage > 0 && p.PerPage > s.opts.MaxPerPage {
		p.PerPage = s.opts.MaxPerPage
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	txs, err := s.store.FindPage(ctx, p.Filter(), p.Window())
	if err != nil {
		return nil, s.fail(ctx, applog.OpList, p.Month, err)
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	return txs, nil
}

// Statistics returns the sold amount and the sold/unsold counts of a month.
func (s *AnalyticsService) Statistics(ctx context.Context, m core.Month) (core.Statistics, error) {
	return cached(ctx, s, applog.OpStatistics, m, s.statistics)
}

func (s *AnalyticsService) statistics(ctx context.Context, m core.Month) (core.Statistics, error) {
	f := core.Filter{Month: m}
	var stats core.Statistics

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sum, err := s.store.SumPrice(gctx, f.SoldOnly())
		stats.TotalSaleAmount = sum
		return err
	})
	g.Go(func() error {
		n, err := s.store.Count(gctx, f.SoldOnly())
		stats.TotalSoldItems = n
		return err
	})
	g.Go(func() error {
		n, err := s.store.Count(gctx, f.UnsoldOnly())
		stats.TotalNotSoldItems = n
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Statistics{}, err
	}
	return stats, nil
}

// BarChart returns the non-empty price buckets of a month.
func (s *AnalyticsService) BarChart(ctx context.Context, m core.Month) ([]core.BucketCount, error) {
	return cached(ctx, s, applog.OpBarChart, m, func(ctx context.Context, m core.Month) ([]core.BucketCount, error) {
		buckets, err := s.store.PriceHistogram(ctx, core.Filter{Month: m})
		if buckets == nil && err == nil {
			buckets = []core.BucketCount{}
		}
		return buckets, err
	})
}

// PieChart returns the per-category counts of a month.
func (s *AnalyticsService) PieChart(ctx context.Context, m core.Month) ([]core.CategoryCount, error) {
	return cached(ctx, s, applog.OpPieChart, m, func(ctx context.Context, m core.Month) ([]core.CategoryCount, error) {
		counts, err := s.store.CategoryCounts(ctx, core.Filter{Month: m})
		if counts == nil && err == nil {
			counts = []core.CategoryCount{}
		}
		return counts, err
	})
}

// Combined computes every dashboard view of a month concurrently. The
// transaction list is month filtered only, without search or paging.
func (s *AnalyticsService) Combined(ctx context.Context, m core.Month) (core.CombinedData, error) {
	return cached(ctx, s, applog.OpCombined, m, s.combined)
}

func (s *AnalyticsService) combined(ctx context.Context, m core.Month) (core.CombinedData, error) {
	var out core.CombinedData

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		txs, err := s.store.FindPage(gctx, core.Filter{Month: m}, core.Page{})
		if txs == nil {
			txs = []core.Transaction{}
		}
		out.Transactions = txs
		return err
	})
	g.Go(func() error {
		stats, err := s.statistics(gctx, m)
		out.Statistics = stats
		return err
	})
	g.Go(func() error {
		buckets, err := s.store.PriceHistogram(gctx, core.Filter{Month: m})
		if buckets == nil {
			buckets = []core.BucketCount{}
		}
		out.BarChartData = buckets
		return err
	})
	g.Go(func() error {
		counts, err := s.store.CategoryCounts(gctx, core.Filter{Month: m})
		if counts == nil {
			counts = []core.CategoryCount{}
		}
		out.PieChartData = counts
		return err
	})
	if err := g.Wait(); err != nil {
		return core.CombinedData{}, err
	}
	return out, nil
}

// cached runs fn under the query timeout, deduplicates concurrent identical
// calls and memoizes the result while the data set is ready. The shared
// query is detached from any single caller's cancellation; each caller
// still stops waiting when its own context ends. Readiness is read by the
// query itself, so a result computed before the seed finished is never
// stored even when a later caller joins it.
func cached[T any](ctx context.Context, s *AnalyticsService, op string, m core.Month, fn func(context.Context, core.Month) (T, error)) (T, error) {
	var zero T
	key := op + ":" + m.String()

	if s.opts.Cache != nil && s.ready() {
		if v, ok := s.opts.Cache.Get(key); ok {
			if typed, ok := v.(T); ok {
				return typed, nil
			}
		}
	}

	ch := s.flight.DoChan(key, func() (any, error) {
		final := s.ready()
		qctx, cancel := s.withTimeout(context.WithoutCancel(ctx))
		defer cancel()

		v, err := fn(qctx, m)
		if err == nil && final && s.opts.Cache != nil {
			s.opts.Cache.Set(key, v)
		}
		return v, err
	})

	select {
	case <-ctx.Done():
		return zero, fmt.Errorf("%s: %w", op, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return zero, s.fail(ctx, op, m, res.Err)
		}
		return res.Val.(T), nil
	}
}

func (s *AnalyticsService) ready() bool {
	return s.opts.Ready == nil || s.opts.Ready()
}

func (s *AnalyticsService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.QueryTimeout)
}

func (s *AnalyticsService) fail(ctx context.Context, op string, m core.Month, err error) error {
	if s.opts.Failures != nil {
		s.opts.Failures.QueryFailed(op)
	}
	s.logger.ErrorContext(ctx, "Analytics query failed",
		applog.FieldOperation, op,
		applog.FieldMonth, m.String(),
		applog.FieldError, err)
	return fmt.Errorf("%s: %w", op, err)
}
