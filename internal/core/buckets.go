package core

import "math"

// PriceBucket is one of the fixed histogram ranges (Lower, Upper].
// The first bucket also takes everything at or below its upper bound and the
// last one is open ended.
type PriceBucket struct {
	Label string
	Lower float64
	Upper float64
}

// PriceBuckets lists the histogram ranges in ascending order.
var PriceBuckets = []PriceBucket{
	{Label: "0-100", Lower: math.Inf(-1), Upper: 100},
	{Label: "101-200", Lower: 100, Upper: 200},
	{Label: "201-300", Lower: 200, Upper: 300},
	{Label: "301-400", Lower: 300, Upper: 400},
	{Label: "401-500", Lower: 400, Upper: 500},
	{Label: "501-600", Lower: 500, Upper: 600},
	{Label: "601-700", Lower: 600, Upper: 700},
	{Label: "701-800", Lower: 700, Upper: 800},
	{Label: "801-900", Lower: 800, Upper: 900},
	{Label: "901-above", Lower: 900, Upper: math.Inf(1)},
}

// BucketIndex returns the position in PriceBuckets for a price.
func BucketIndex(price float64) int {
	for i, b := range PriceBuckets {
		if price <= b.Upper {
			return i
		}
	}
	return len(PriceBuckets) - 1
}

// BucketLabel returns the histogram label for a price.
func BucketLabel(price float64) string {
	return PriceBuckets[BucketIndex(price)].Label
}

// BucketCountsFromIndex turns per-index counts into the histogram output,
// dropping empty buckets and keeping bucket order.
func BucketCountsFromIndex(counts map[int]int64) []BucketCount {
	out := make([]BucketCount, 0, len(counts))
	for i, b := range PriceBuckets {
		if n := counts[i]; n > 0 {
			out = append(out, BucketCount{Label: b.Label, Count: n})
		}
	}
	return out
}
