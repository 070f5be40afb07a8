package pattern

import (
	"context"
	"math"
	"strconv"

	"github.com/KaramelBytes/tabscan/internal/dataset"
	"github.com/KaramelBytes/tabscan/internal/stats"
)

// benfordExpected holds the expected first-digit percentages for 1..9.
var benfordExpected = [9]float64{30.1, 17.6, 12.5, 9.7, 7.9, 6.7, 5.8, 5.1, 4.6}

// numerical runs the number-theoretic and distribution heuristics over
// numeric columns with more than three values.
func numerical(ctx context.Context, ds *dataset.Dataset, _ Config) ([]Finding, error) {
	var out []Finding
	for _, c := range ds.ColumnsOf(dataset.Numeric) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vals := c.Floats()
		if len(vals) <= 3 {
			continue
		}
		if fibonacciLike(vals) {
			out = append(out, Finding{Type: FibonacciLike, Column: c.Name, Suspicion: "high"})
		}
		if len(vals) > 5 {
			pct, err := primeShare(ctx, vals)
			if err != nil {
				return nil, err
			}
			if pct > 0.7 {
				out = append(out, Finding{Type: HighPrimePercentage, Column: c.Name, Metrics: map[string]float64{"percentage": pct}})
			}
		}
		if n := powersOfTwo(vals); float64(n) > 0.3*float64(len(vals)) {
			out = append(out, Finding{
				Type:    PowersOfTwo,
				Column:  c.Name,
				Metrics: map[string]float64{"count": float64(n), "percentage": float64(n) / float64(len(vals))},
			})
		}
		if digits := firstDigits(vals); len(digits) >= 30 {
			dev := benfordDeviation(digits)
			if dev > 0.1 {
				level := "medium"
				if dev > 0.2 {
					level = "high"
				}
				out = append(out, Finding{
					Type:      BenfordDeviation,
					Column:    c.Name,
					Metrics:   map[string]float64{"deviation": dev, "samples": float64(len(digits))},
					Suspicion: level,
				})
			}
		}
		if u, ok := histogramUniformity(vals); ok && u < 0.2 {
			out = append(out, Finding{
				Type:      TooUniformDistribution,
				Column:    c.Name,
				Metrics:   map[string]float64{"uniformity_score": u},
				Suspicion: "artificial_data_generation",
			})
		}
	}
	return out, nil
}

// fibonacciLike reports whether at least 60% of the consecutive triples
// of the sorted values satisfy v[i] = v[i-1] + v[i-2] within 1.
func fibonacciLike(vals []float64) bool {
	if len(vals) < 3 {
		return false
	}
	s := stats.Sorted(vals)
	matches := 0
	for i := 2; i < len(s); i++ {
		if math.Abs(s[i]-(s[i-1]+s[i-2])) < 1 {
			matches++
		}
	}
	return float64(matches) >= 0.6*float64(len(s)-2)
}

// maxPrimeCandidate bounds trial division to about half a million steps
// per value. Larger integers are not counted.
const maxPrimeCandidate = 1e12

// primeShare is the fraction of integer-valued entries up to
// maxPrimeCandidate that are prime.
func primeShare(ctx context.Context, vals []float64) (float64, error) {
	ints, primes := 0, 0
	for i, v := range vals {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		if !stats.IsInteger(v) || math.Abs(v) > maxPrimeCandidate {
			continue
		}
		ints++
		if stats.IsPrime(int64(v)) {
			primes++
		}
	}
	if ints == 0 {
		return 0, nil
	}
	return float64(primes) / float64(ints), nil
}

func powersOfTwo(vals []float64) int {
	n := 0
	for _, v := range vals {
		if v > 0 && stats.IsInteger(v) && stats.IsPowerOfTwo(int64(v)) {
			n++
		}
	}
	return n
}

// firstDigits extracts the leading digit of each value's decimal text,
// skipping values whose text starts with 0 or a sign.
func firstDigits(vals []float64) []int {
	out := make([]int, 0, len(vals))
	for _, v := range vals {
		s := strconv.FormatFloat(v, 'f', -1, 64)
		if s == "" || s[0] < '1' || s[0] > '9' {
			continue
		}
		out = append(out, int(s[0]-'0'))
	}
	return out
}

// benfordDeviation is the mean absolute gap, in percentage points divided
// by 100, between the observed first-digit shares and Benford's law.
func benfordDeviation(digits []int) float64 {
	if len(digits) == 0 {
		return 0
	}
	var counts [9]int
	for _, d := range digits {
		if d >= 1 && d <= 9 {
			counts[d-1]++
		}
	}
	total := float64(len(digits))
	var sum float64
	for i, n := range counts {
		observed := float64(n) * 100 / total
		sum += math.Abs(observed - benfordExpected[i])
	}
	return sum / 9 / 100
}

// histogramUniformity is std/mean of a 10-bin histogram's counts.
func histogramUniformity(vals []float64) (float64, bool) {
	h := stats.Histogram(vals, 10)
	counts := make([]float64, len(h))
	for i, n := range h {
		counts[i] = float64(n)
	}
	mean := stats.Mean(counts)
	if mean <= 0 {
		return 0, false
	}
	return stats.PopStd(counts) / mean, true
}
