// Package stats holds the numeric helpers shared by the detectors.
//
// Conventions follow common dataframe tooling so results are comparable with
// reports produced elsewhere: quantiles interpolate linearly between order
// statistics, the default standard deviation is the sample one (n-1), and
// Pearson correlation is computed over pairwise complete observations.
package stats

import (
	"math"
	"sort"
)

// Quantile returns the q-quantile of an ascending slice using linear
// interpolation between the two nearest ranks (position q*(n-1)).
func Quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

// Sorted returns an ascending copy of vals.
func Sorted(vals []float64) []float64 {
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	return cp
}

// Median of vals; zero for an empty slice.
func Median(vals []float64) float64 {
	return Quantile(Sorted(vals), 0.5)
}

// MedianMAD computes the median and the median absolute deviation of vals.
func MedianMAD(vals []float64) (median, mad float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	cp := Sorted(vals)
	median = Quantile(cp, 0.5)
	dev := make([]float64, len(cp))
	for i, v := range cp {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad = Quantile(dev, 0.5)
	return
}

// Mean returns the arithmetic mean; zero for an empty slice.
func Mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var s float64
	for _, v := range vals {
		s += v
	}
	return s / float64(len(vals))
}

// SampleStd is the n-1 standard deviation. ok is false when fewer than two
// values are available.
func SampleStd(vals []float64) (std float64, ok bool) {
	if len(vals) < 2 {
		return 0, false
	}
	m := Mean(vals)
	var ss float64
	for _, v := range vals {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(vals)-1)), true
}

// PopStd is the population (n) standard deviation.
func PopStd(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	m := Mean(vals)
	var ss float64
	for _, v := range vals {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(vals)))
}

// MinMax returns the extremes of a non-empty slice.
func MinMax(vals []float64) (lo, hi float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	lo, hi = vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// perfectTolerance snaps correlations within rounding noise of +-1.
const perfectTolerance = 1e-12

// Pearson computes the correlation of two equally long series using a
// centered two-pass formula. ok is false when fewer than two pairs exist or
// either series has zero variance. The result is clamped to [-1, 1] and
// values within 1e-12 of +-1 are reported as exactly +-1.
func Pearson(x, y []float64) (r float64, ok bool) {
	n := len(x)
	if n != len(y) || n < 2 {
		return 0, false
	}
	mx, my := Mean(x), Mean(y)
	var sxy, sxx, syy float64
	for i := 0; i < n; i++ {
		dx := x[i] - mx
		dy := y[i] - my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0, false
	}
	r = sxy / math.Sqrt(sxx*syy)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, false
	}
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}
	if 1-math.Abs(r) < perfectTolerance {
		r = math.Copysign(1, r)
	}
	return r, true
}

// Histogram bins vals into equal-width bins spanning [min, max]; the last
// bin is closed on the right. A constant series is centred on a unit-wide
// range, so every value lands in the middle bin.
func Histogram(vals []float64, bins int) []int {
	counts := make([]int, bins)
	if len(vals) == 0 || bins <= 0 {
		return counts
	}
	lo, hi := MinMax(vals)
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}
	width := (hi - lo) / float64(bins)
	for _, v := range vals {
		idx := int((v - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		if idx < 0 {
			idx = 0
		}
		counts[idx]++
	}
	return counts
}

// IsInteger reports whether v is finite and has no fractional part.
func IsInteger(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v) && v == math.Trunc(v)
}

// IsPrime uses trial division up to sqrt(n).
func IsPrime(n int64) bool {
	if n < 2 {
		return false
	}
	if n < 4 {
		return true
	}
	if n%2 == 0 {
		return false
	}
	for i := int64(3); i*i <= n; i += 2 {
		if n%i == 0 {
			return false
		}
	}
	return true
}

// IsPowerOfTwo reports whether n is a positive power of two (1 included).
func IsPowerOfTwo(n int64) bool {
	return n > 0 && n&(n-1) == 0
}
