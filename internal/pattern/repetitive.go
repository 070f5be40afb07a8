package pattern

import (
	"context"
	"math"
	"strings"

	"github.com/KaramelBytes/tabscan/internal/dataset"
	"github.com/KaramelBytes/tabscan/internal/stats"
)

// repetitive reports values that fill more than 10% of a column and text
// values built from a repeating prefix.
func repetitive(ctx context.Context, ds *dataset.Dataset, cfg Config) ([]Finding, error) {
	var out []Finding
	for _, c := range ds.Columns() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		keys := c.Keys()
		if len(keys) == 0 {
			continue
		}
		counts := stats.ValueCounts(keys)
		for i, vc := range counts {
			if i >= cfg.TopValues {
				break
			}
			freq := float64(vc.N) / float64(len(keys))
			if freq <= 0.1 {
				continue
			}
			out = append(out, Finding{
				Type:    HighFrequencyValue,
				Column:  c.Name,
				Value:   truncate(vc.Value, cfg.MaxValueChars),
				Metrics: map[string]float64{"count": float64(vc.N), "frequency": freq},
			})
		}
		if c.Kind == dataset.Text {
			out = append(out, cyclical(c.Name, c.Texts(), cfg)...)
		}
	}
	return out, nil
}

// cyclical checks whether a short prefix of a value occurs more than twice
// in it. Only the first cfg.SampleRows values are scanned.
func cyclical(column string, texts []string, cfg Config) []Finding {
	var out []Finding
	if len(texts) > cfg.SampleRows {
		texts = texts[:cfg.SampleRows]
	}
	for _, t := range texts {
		r := []rune(t)
		if len(r) <= 4 {
			continue
		}
		maxLen := len(r) / 2
		if maxLen > 10 {
			maxLen = 10
		}
		for l := 2; l < maxLen; l++ {
			sub := string(r[:l])
			n := strings.Count(t, sub)
			if n > 2 {
				out = append(out, Finding{
					Type:     CyclicalSubstring,
					Column:   column,
					Value:    sub,
					Metrics:  map[string]float64{"repetitions": float64(n)},
					Examples: []string{truncate(t, 50)},
				})
				break
			}
		}
	}
	return out
}

// frequency inspects the shape of the value-count distribution.
func frequency(ctx context.Context, ds *dataset.Dataset, _ Config) ([]Finding, error) {
	var out []Finding
	for _, c := range ds.Columns() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		keys := c.Keys()
		if len(keys) <= 10 {
			continue
		}
		counts := stats.ValueCounts(keys)
		if f, ok := uniformFrequency(c.Name, counts); ok {
			out = append(out, f)
		}
		if dev := zipfDeviation(counts); dev > 0.3 {
			out = append(out, Finding{
				Type:      ZipfDeviation,
				Column:    c.Name,
				Metrics:   map[string]float64{"deviation_score": dev},
				Suspicion: "significant_deviation",
			})
		}
	}
	return out, nil
}

// uniformFrequency groups distinct values by how often they occur. When
// one occurrence count is shared by more than 30% of the distinct values
// the column looks generated. Values seen only once are left out of the
// shared-count test: singletons sharing a count is ordinary. The cost is
// that a generator emitting each value exactly once goes unflagged here,
// while mostly-unique columns with a few repeats stay quiet.
func uniformFrequency(column string, counts []stats.Count) (Finding, bool) {
	buckets := map[int]int{}
	var order []int
	for _, vc := range counts {
		if _, ok := buckets[vc.N]; !ok {
			order = append(order, vc.N)
		}
		buckets[vc.N]++
	}
	if len(buckets) <= 1 {
		return Finding{}, false
	}
	best, bestN := 0, 0
	for _, n := range order {
		if n < 2 {
			continue
		}
		if buckets[n] > bestN {
			best, bestN = n, buckets[n]
		}
	}
	unique := float64(len(counts))
	if float64(bestN) <= 0.3*unique {
		return Finding{}, false
	}
	level := "medium"
	if float64(bestN) > 0.5*unique {
		level = "high"
	}
	return Finding{
		Type:   UniformFrequency,
		Column: column,
		Metrics: map[string]float64{
			"frequency":                   float64(best),
			"count_values_with_frequency": float64(bestN),
		},
		Suspicion: level,
	}, true
}

// zipfDeviation compares ranked counts with top/k and returns the mean
// relative gap. Fewer than three distinct values yield 0.
func zipfDeviation(counts []stats.Count) float64 {
	if len(counts) < 3 {
		return 0
	}
	top := float64(counts[0].N)
	var sum float64
	for i, vc := range counts {
		expected := top / float64(i+1)
		sum += math.Abs(float64(vc.N)-expected) / expected
	}
	return sum / float64(len(counts))
}
