package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Statistics summarizes one month of transactions.
type Statistics struct {
	TotalSaleAmount   float64 `json:"totalSaleAmount"`
	TotalSoldItems    int64   `json:"totalSoldItems"`
	TotalNotSoldItems int64   `json:"totalNotSoldItems"`
}

// BucketCount is one bar of the price histogram.
type BucketCount struct {
	Label string `json:"_id"`
	Count int64  `json:"count"`
}

// CategoryCount is one slice of the category pie chart.
type CategoryCount struct {
	Category string `json:"_id"`
	Count    int64  `json:"count"`
}

// CombinedData bundles every dashboard query for a month.
type CombinedData struct {
	Transactions []Transaction   `json:"transactions"`
	Statistics   Statistics      `json:"statistics"`
	BarChartData []BucketCount   `json:"barChartData"`
	PieChartData []CategoryCount `json:"pieChartData"`
}

// SumPrices adds prices in decimal arithmetic so that e.g. 0.1+0.2 stays 0.3.
func SumPrices(prices []float64) float64 {
	total := decimal.Zero
	for _, p := range prices {
		total = total.Add(decimal.NewFromFloat(p))
	}
	return total.InexactFloat64()
}

// RoundAmount trims binary float noise from a database-side SUM.
func RoundAmount(amount float64) float64 {
	return decimal.NewFromFloat(amount).Round(6).InexactFloat64()
}

// SortCategoryCounts orders category counts by name.
func SortCategoryCounts(counts []CategoryCount) {
	sort.Slice(counts, func(i, j int) bool { return counts[i].Category < counts[j].Category })
}
