package storage

import (
	"strconv"
	"strings"

	"txdash/internal/core"
)

// Dialect covers the SQL differences between the supported databases.
type Dialect struct {
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// Contains renders a substring test of needle inside haystack.
	Contains func(haystack, needle string) string
}

var (
	SQLiteDialect = Dialect{
		Placeholder: func(int) string { return "?" },
		Contains:    func(h, n string) string { return "instr(" + h + ", " + n + ") > 0" },
	}
	PostgresDialect = Dialect{
		Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
		Contains:    func(h, n string) string { return "strpos(" + h + ", " + n + ") > 0" },
	}
)

// Where renders the WHERE clause (including the keyword, or empty) for f.
// Columns follow the transactions table of the embedded migrations.
func (d Dialect) Where(f core.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	next := func(v any) string {
		args = append(args, v)
		return d.Placeholder(len(args))
	}

	switch {
	case f.Month == core.AnyMonth:
	case f.Month.IsSpecific():
		conds = append(conds, "sale_month = "+next(int(f.Month)))
	default:
		conds = append(conds, "1 = 0")
	}

	if f.Sold != nil {
		conds = append(conds, "sold = "+next(*f.Sold))
	}

	if f.Search != "" {
		needle := Fold(f.Search)
		conds = append(conds, "("+
			d.Contains("title_folded", next(needle))+" OR "+
			d.Contains("description_folded", next(needle))+" OR "+
			d.Contains("price_text", next(needle))+")")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Fold is the case folding applied to the stored title_folded and
// description_folded columns and to search needles. SQL lower() is not
// used because SQLite only folds ASCII.
func Fold(s string) string { return strings.ToLower(s) }

// BucketExpr is a CASE expression yielding the core.PriceBuckets index of price.
func BucketExpr() string {
	var b strings.Builder
	b.WriteString("CASE")
	last := len(core.PriceBuckets) - 1
	for i, bucket := range core.PriceBuckets[:last] {
		b.WriteString(" WHEN price <= ")
		b.WriteString(strconv.FormatFloat(bucket.Upper, 'f', -1, 64))
		b.WriteString(" THEN ")
		b.WriteString(strconv.Itoa(i))
	}
	b.WriteString(" ELSE ")
	b.WriteString(strconv.Itoa(last))
	b.WriteString(" END")
	return b.String()
}

// OrderBy is the list ordering: newest sale first, then feed id, then load order.
const OrderBy = " ORDER BY date_of_sale DESC, id ASC, row_id ASC"

// FormatDate is the sortable text form stored in date_of_sale.
func FormatDate(d core.Date) string {
	return d.UTC().Format("2006-01-02T15:04:05.000Z")
}
