package pattern

import (
	"context"

	"github.com/KaramelBytes/tabscan/internal/dataset"
	"github.com/KaramelBytes/tabscan/internal/stats"
)

// sequential flags numeric columns whose successive differences or ratios
// take at most three values with one of them covering more than 70%.
func sequential(ctx context.Context, ds *dataset.Dataset, _ Config) ([]Finding, error) {
	var out []Finding
	for _, c := range ds.ColumnsOf(dataset.Numeric) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vals := c.Floats()
		if len(vals) <= 3 {
			continue
		}
		diffs := make([]float64, len(vals)-1)
		for i := 1; i < len(vals); i++ {
			diffs[i-1] = vals[i] - vals[i-1]
		}
		if step, conf, ok := dominantStep(diffs); ok && step != 0 {
			out = append(out, Finding{
				Type:    ArithmeticSequence,
				Column:  c.Name,
				Metrics: map[string]float64{"difference": step, "confidence": conf},
			})
		}

		if !allPositive(vals) {
			continue
		}
		ratios := make([]float64, len(vals)-1)
		for i := 1; i < len(vals); i++ {
			ratios[i-1] = vals[i] / vals[i-1]
		}
		if ratio, conf, ok := dominantStep(ratios); ok {
			out = append(out, Finding{
				Type:    GeometricSequence,
				Column:  c.Name,
				Metrics: map[string]float64{"ratio": ratio, "confidence": conf},
			})
		}
	}
	return out, nil
}

// dominantStep returns the most common step and its share when there are
// at most three distinct steps and the most common covers more than 70%.
func dominantStep(steps []float64) (float64, float64, bool) {
	mode, count, distinct := stats.FloatMode(steps)
	if distinct == 0 || distinct > 3 {
		return 0, 0, false
	}
	if float64(count) <= 0.7*float64(len(steps)) {
		return 0, 0, false
	}
	return mode, float64(count) / float64(len(steps)), true
}

func allPositive(vals []float64) bool {
	for _, v := range vals {
		if v <= 0 {
			return false
		}
	}
	return true
}
