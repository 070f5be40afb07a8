package pattern

import (
	"context"
	"math"

	"github.com/KaramelBytes/tabscan/internal/dataset"
	"github.com/KaramelBytes/tabscan/internal/stats"
)

// correlation computes Pearson's r for every pair of numeric columns over
// the rows where both are present.
func correlation(ctx context.Context, ds *dataset.Dataset, _ Config) ([]Finding, error) {
	cols := ds.ColumnsOf(dataset.Numeric)
	if len(cols) < 2 {
		return nil, nil
	}
	n := len(cols)
	strong := make([]int, n)
	var out []Finding
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for j := i + 1; j < n; j++ {
			r, ok := pairwise(cols[i], cols[j])
			if !ok {
				continue
			}
			abs := math.Abs(r)
			if abs > 0.8 {
				strong[i]++
				strong[j]++
			}
			switch {
			case abs == 1:
				out = append(out, Finding{
					Type:      PerfectCorrelation,
					Columns:   []string{cols[i].Name, cols[j].Name},
					Metrics:   map[string]float64{"correlation": r},
					Suspicion: "identical_or_linear_transformation",
				})
			case abs > 0.95:
				out = append(out, Finding{
					Type:      HighCorrelation,
					Columns:   []string{cols[i].Name, cols[j].Name},
					Metrics:   map[string]float64{"correlation": r},
					Suspicion: "derived_or_duplicated_data",
				})
			}
		}
	}

	var many []string
	for i, c := range cols {
		if float64(strong[i]) > 0.3*float64(n-1) {
			many = append(many, c.Name)
		}
	}
	if len(many) > 0 {
		out = append(out, Finding{
			Type:      MultipleHighCorrelations,
			Columns:   many,
			Suspicion: "data_redundancy_or_artificial_generation",
		})
	}
	return out, nil
}

func pairwise(a, b *dataset.Column) (float64, bool) {
	var x, y []float64
	for i := 0; i < a.Len(); i++ {
		va, okA := a.Float(i)
		vb, okB := b.Float(i)
		if okA && okB {
			x = append(x, va)
			y = append(y, vb)
		}
	}
	if len(x) < 2 {
		return 0, false
	}
	return stats.Pearson(x, y)
}
