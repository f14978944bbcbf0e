package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"txdash/internal/core"
	"txdash/internal/storage"
)

const selectColumns = "SELECT id, date_of_sale, product_title, product_description, price, category, sold FROM transactions"

// Repository is a Store backed by a Postgres connection pool.
type Repository struct {
	pool    *pgxpool.Pool
	dialect storage.Dialect
}

var _ storage.Store = (*Repository)(nil)

// New runs migrations and opens a pool against databaseURL.
func New(ctx context.Context, databaseURL string) (*Repository, error) {
	if err := RunMigrations(databaseURL); err != nil {
		return nil, err
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnLifetime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Repository{pool: pool, dialect: storage.PostgresDialect}, nil
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

// Load replaces every stored transaction in one database transaction using COPY.
func (r *Repository) Load(ctx context.Context, txs []core.Transaction) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin load: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "TRUNCATE transactions RESTART IDENTITY"); err != nil {
		return fmt.Errorf("truncate transactions: %w", err)
	}

	rows := make([][]any, len(txs))
	for i, t := range txs {
		rows[i] = []any{
			t.ID,
			storage.FormatDate(t.DateOfSale),
			int16(t.DateOfSale.Month()),
			t.ProductTitle,
			t.ProductDescription,
			storage.Fold(t.ProductTitle),
			storage.Fold(t.ProductDescription),
			t.Price,
			core.PriceText(t.Price),
			t.Category,
			t.Sold,
		}
	}

	columns := []string{"id", "date_of_sale", "sale_month", "product_title", "product_description", "title_folded", "description_folded", "price", "price_text", "category", "sold"}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"transactions"}, columns, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("copy transactions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit load: %w", err)
	}

	slog.InfoContext(ctx, "Transactions loaded into Postgres", "count", len(txs))
	return nil
}

func (r *Repository) FindPage(ctx context.Context, f core.Filter, p core.Page) ([]core.Transaction, error) {
	where, args := r.dialect.Where(f)
	query := selectColumns + where + storage.OrderBy
	if p.Limit > 0 {
		args = append(args, p.Limit)
		query += " LIMIT " + r.dialect.Placeholder(len(args))
	}
	if p.Skip > 0 {
		args = append(args, p.Skip)
		query += " OFFSET " + r.dialect.Placeholder(len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	out := make([]core.Transaction, 0)
	for rows.Next() {
		var (
			t    core.Transaction
			date string
		)
		if err := rows.Scan(&t.ID, &date, &t.ProductTitle, &t.ProductDescription, &t.Price, &t.Category, &t.Sold); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if t.DateOfSale, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("transaction %d: %w", t.ID, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (r *Repository) Count(ctx context.Context, f core.Filter) (int64, error) {
	where, args := r.dialect.Where(f)
	var n int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM transactions"+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

func (r *Repository) SumPrice(ctx context.Context, f core.Filter) (float64, error) {
	where, args := r.dialect.Where(f)
	var total float64
	if err := r.pool.QueryRow(ctx, "SELECT COALESCE(SUM(price), 0)::float8 FROM transactions"+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum prices: %w", err)
	}
	return core.RoundAmount(total), nil
}

func (r *Repository) PriceHistogram(ctx context.Context, f core.Filter) ([]core.BucketCount, error) {
	where, args := r.dialect.Where(f)
	query := "SELECT " + storage.BucketExpr() + " AS bucket, COUNT(*) FROM transactions" + where + " GROUP BY bucket"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query price histogram: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int64)
	for rows.Next() {
		var (
			bucket int32
			n      int64
		)
		if err := rows.Scan(&bucket, &n); err != nil {
			return nil, fmt.Errorf("scan bucket: %w", err)
		}
		counts[int(bucket)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate buckets: %w", err)
	}
	return core.BucketCountsFromIndex(counts), nil
}

func (r *Repository) CategoryCounts(ctx context.Context, f core.Filter) ([]core.CategoryCount, error) {
	where, args := r.dialect.Where(f)
	query := "SELECT category, COUNT(*) FROM transactions" + where + ` GROUP BY category ORDER BY category COLLATE "C"`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query category counts: %w", err)
	}
	defer rows.Close()

	out := make([]core.CategoryCount, 0)
	for rows.Next() {
		var c core.CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category counts: %w", err)
	}
	return out, nil
}
