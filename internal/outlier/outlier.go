// Package outlier flags univariate outliers in numeric columns with three
// independent methods: the interquartile range fence, the z-score and the
// MAD based modified z-score.
package outlier

import (
	"context"
	"math"

	"github.com/KaramelBytes/tabscan/internal/dataset"
	"github.com/KaramelBytes/tabscan/internal/fault"
	"github.com/KaramelBytes/tabscan/internal/stats"
)

// Config holds the fixed method constants.
type Config struct {
	// MinValues: a column needs strictly more non-missing values than this.
	MinValues          int
	IQRMultiplier      float64
	ZThreshold         float64
	ModifiedZThreshold float64
	// ModifiedZScale is the normal-consistency constant 0.6745.
	ModifiedZScale float64
	MaxSamples     int
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		MinValues:          10,
		IQRMultiplier:      1.5,
		ZThreshold:         3,
		ModifiedZThreshold: 3.5,
		ModifiedZScale:     0.6745,
		MaxSamples:         10,
	}
}

// Result is the outcome of one method on one column.
type Result struct {
	Applicable bool      `json:"applicable" yaml:"applicable"`
	Reason     string    `json:"reason,omitempty" yaml:"reason,omitempty"`
	Count      int       `json:"count" yaml:"count"`
	Percentage float64   `json:"percentage" yaml:"percentage"`
	Samples    []float64 `json:"samples" yaml:"samples"`
}

// IQRResult adds the quartiles and fences.
type IQRResult struct {
	Result `yaml:",inline"`
	Q1     float64 `json:"q1" yaml:"q1"`
	Q3     float64 `json:"q3" yaml:"q3"`
	IQR    float64 `json:"iqr" yaml:"iqr"`
	Lower  float64 `json:"lower_bound" yaml:"lower_bound"`
	Upper  float64 `json:"upper_bound" yaml:"upper_bound"`
}

// ZResult adds the moments used for scoring.
type ZResult struct {
	Result `yaml:",inline"`
	Mean   float64 `json:"mean" yaml:"mean"`
	Std    float64 `json:"std" yaml:"std"`
}

// ModifiedZResult adds the robust location and scale.
type ModifiedZResult struct {
	Result `yaml:",inline"`
	Median float64 `json:"median" yaml:"median"`
	MAD    float64 `json:"mad" yaml:"mad"`
}

// ColumnReport carries the three method results for one column.
type ColumnReport struct {
	Column    string          `json:"column" yaml:"column"`
	Values    int             `json:"values" yaml:"values"`
	IQR       IQRResult       `json:"iqr" yaml:"iqr"`
	ZScore    ZResult         `json:"z_score" yaml:"z_score"`
	ModifiedZ ModifiedZResult `json:"modified_z_score" yaml:"modified_z_score"`
}

// Skipped records a numeric column that was not analyzed.
type Skipped struct {
	Column string `json:"column" yaml:"column"`
	Values int    `json:"values" yaml:"values"`
	Reason string `json:"reason" yaml:"reason"`
}

// Report is the per-column outlier analysis in source column order.
type Report struct {
	Columns []ColumnReport `json:"columns" yaml:"columns"`
	Skipped []Skipped      `json:"skipped" yaml:"skipped"`
}

// Column finds the report of a column by name.
func (r *Report) Column(name string) (*ColumnReport, bool) {
	if r == nil {
		return nil, false
	}
	for i := range r.Columns {
		if r.Columns[i].Column == name {
			return &r.Columns[i], true
		}
	}
	return nil, false
}

// Analyze runs every method on each numeric column with enough values.
// Cancellation is observed between columns.
func Analyze(ctx context.Context, ds *dataset.Dataset, cfg Config) (*Report, error) {
	rep := &Report{Columns: []ColumnReport{}, Skipped: []Skipped{}}
	for _, c := range ds.ColumnsOf(dataset.Numeric) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vals := c.Floats()
		if len(vals) <= cfg.MinValues {
			rep.Skipped = append(rep.Skipped, Skipped{Column: c.Name, Values: len(vals), Reason: fault.ErrInsufficientData.Error()})
			continue
		}
		rep.Columns = append(rep.Columns, AnalyzeValues(c.Name, vals, cfg))
	}
	return rep, nil
}

// AnalyzeValues applies the three methods to the values of one column,
// given in row order.
func AnalyzeValues(name string, vals []float64, cfg Config) ColumnReport {
	cr := ColumnReport{Column: name, Values: len(vals)}

	sorted := stats.Sorted(vals)
	q1 := stats.Quantile(sorted, 0.25)
	q3 := stats.Quantile(sorted, 0.75)
	iqr := q3 - q1
	lo, hi := q1-cfg.IQRMultiplier*iqr, q3+cfg.IQRMultiplier*iqr
	cr.IQR = IQRResult{Q1: q1, Q3: q3, IQR: iqr, Lower: lo, Upper: hi}
	cr.IQR.Result = collect(vals, cfg, func(v float64) bool { return v < lo || v > hi })

	mean := stats.Mean(vals)
	std, _ := stats.SampleStd(vals)
	cr.ZScore = ZResult{Mean: mean, Std: std}
	if std == 0 {
		cr.ZScore.Result = Result{Applicable: true, Reason: "zero standard deviation", Samples: []float64{}}
	} else {
		cr.ZScore.Result = collect(vals, cfg, func(v float64) bool {
			return math.Abs((v-mean)/std) > cfg.ZThreshold
		})
	}

	median, mad := stats.MedianMAD(vals)
	cr.ModifiedZ = ModifiedZResult{Median: median, MAD: mad}
	if mad == 0 {
		cr.ModifiedZ.Result = Result{Applicable: false, Reason: fault.ErrDegenerate.Error() + ": median absolute deviation is zero", Samples: []float64{}}
	} else {
		cr.ModifiedZ.Result = collect(vals, cfg, func(v float64) bool {
			return math.Abs(cfg.ModifiedZScale*(v-median)/mad) > cfg.ModifiedZThreshold
		})
	}
	return cr
}

func collect(vals []float64, cfg Config, flagged func(float64) bool) Result {
	res := Result{Applicable: true, Samples: []float64{}}
	for _, v := range vals {
		if !flagged(v) {
			continue
		}
		res.Count++
		if len(res.Samples) < cfg.MaxSamples {
			res.Samples = append(res.Samples, v)
		}
	}
	res.Percentage = float64(res.Count) * 100 / float64(len(vals))
	return res
}
