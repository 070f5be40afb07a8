package stats

import (
	"math"
	"sort"
	"strconv"
)

// Count is a distinct value with its number of occurrences.
type Count struct {
	Value string
	N     int
}

// ValueCounts tallies keys and returns them by descending count. Ties keep
// the order in which each value was first seen, which makes "the most common
// value" deterministic.
func ValueCounts(keys []string) []Count {
	idx := make(map[string]int, len(keys))
	var out []Count
	for _, k := range keys {
		if i, ok := idx[k]; ok {
			out[i].N++
			continue
		}
		idx[k] = len(out)
		out = append(out, Count{Value: k, N: 1})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].N > out[j].N })
	return out
}

// FloatMode returns the most frequent value of vals and its count, ties
// broken by first occurrence. Values are compared after rounding to 12
// significant digits so accumulated float noise does not split a bucket.
func FloatMode(vals []float64) (mode float64, count int, distinct int) {
	if len(vals) == 0 {
		return 0, 0, 0
	}
	type bucket struct {
		v float64
		n int
	}
	idx := map[float64]int{}
	var buckets []bucket
	for _, v := range vals {
		k := RoundSig(v, 12)
		if i, ok := idx[k]; ok {
			buckets[i].n++
			continue
		}
		idx[k] = len(buckets)
		buckets = append(buckets, bucket{v: k, n: 1})
	}
	best := 0
	for i := range buckets {
		if buckets[i].n > buckets[best].n {
			best = i
		}
	}
	return buckets[best].v, buckets[best].n, len(buckets)
}

// RoundSig rounds v to the given number of significant digits.
func RoundSig(v float64, digits int) float64 {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'g', digits, 64), 64)
	if err != nil {
		return v
	}
	return r
}
