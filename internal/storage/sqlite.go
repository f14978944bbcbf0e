package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"txdash/internal/core"

	_ "modernc.org/sqlite"
)

const selectColumns = "SELECT id, date_of_sale, product_title, product_description, price, category, sold FROM transactions"

// SQLiteRepository is a Store backed by a local SQLite file.
type SQLiteRepository struct {
	db      *sql.DB
	dialect Dialect
}

var _ Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// WAL lets readers keep going while the seed load holds the write lock.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, dialect: SQLiteDialect}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Load replaces every stored transaction inside one database transaction.
func (r *SQLiteRepository) Load(ctx context.Context, txs []core.Transaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin load: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM transactions"); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO transactions
		(id, date_of_sale, sale_month, product_title, product_description, title_folded, description_folded, price, price_text, category, sold)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range txs {
		if _, err := stmt.ExecContext(ctx,
			t.ID,
			FormatDate(t.DateOfSale),
			t.DateOfSale.Month(),
			t.ProductTitle,
			t.ProductDescription,
			Fold(t.ProductTitle),
			Fold(t.ProductDescription),
			t.Price,
			core.PriceText(t.Price),
			t.Category,
			t.Sold,
		); err != nil {
			return fmt.Errorf("insert transaction %d: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit load: %w", err)
	}

	slog.InfoContext(ctx, "Transactions loaded into SQLite", "count", len(txs))
	return nil
}

func (r *SQLiteRepository) FindPage(ctx context.Context, f core.Filter, p core.Page) ([]core.Transaction, error) {
	where, args := r.dialect.Where(f)
	query := selectColumns + where + OrderBy
	if p.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, p.Limit, p.Skip)
	} else if p.Skip > 0 {
		query += " LIMIT -1 OFFSET ?"
		args = append(args, p.Skip)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
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

func (r *SQLiteRepository) Count(ctx context.Context, f core.Filter) (int64, error) {
	where, args := r.dialect.Where(f)
	var n int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions"+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) SumPrice(ctx context.Context, f core.Filter) (float64, error) {
	where, args := r.dialect.Where(f)
	var total float64
	if err := r.db.QueryRowContext(ctx, "SELECT COALESCE(SUM(price), 0) FROM transactions"+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum prices: %w", err)
	}
	return core.RoundAmount(total), nil
}

func (r *SQLiteRepository) PriceHistogram(ctx context.Context, f core.Filter) ([]core.BucketCount, error) {
	where, args := r.dialect.Where(f)
	query := "SELECT " + BucketExpr() + " AS bucket, COUNT(*) FROM transactions" + where + " GROUP BY bucket"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query price histogram: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int64)
	for rows.Next() {
		var (
			bucket int
			n      int64
		)
		if err := rows.Scan(&bucket, &n); err != nil {
			return nil, fmt.Errorf("scan bucket: %w", err)
		}
		counts[bucket] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate buckets: %w", err)
	}
	return core.BucketCountsFromIndex(counts), nil
}

func (r *SQLiteRepository) CategoryCounts(ctx context.Context, f core.Filter) ([]core.CategoryCount, error) {
	where, args := r.dialect.Where(f)
	query := "SELECT category, COUNT(*) FROM transactions" + where + " GROUP BY category ORDER BY category"

	rows, err := r.db.QueryContext(ctx, query, args...)
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
