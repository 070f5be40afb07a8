// Package density finds multivariate anomalies in the numeric part of a
// dataset: rows an isolation forest separates quickly and rows DBSCAN
// leaves outside every dense region.
package density

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/KaramelBytes/tabscan/internal/dataset"
	"github.com/KaramelBytes/tabscan/internal/fault"
	"github.com/KaramelBytes/tabscan/internal/stats"
)

const strategyName = "density"

// Config holds the model parameters.
type Config struct {
	MinRows        int
	Trees          int
	MaxSamples     int
	Contamination  float64
	Seed           int64
	Eps            float64
	MinPts         int
	MaxComponents  int
	MaxExamples    int
	PreviewColumns int
	PreviewChars   int
}

// DefaultConfig returns the standard parameters with seed 42.
func DefaultConfig() Config {
	return Config{
		MinRows:        10,
		Trees:          100,
		MaxSamples:     256,
		Contamination:  0.1,
		Seed:           42,
		Eps:            0.5,
		MinPts:         5,
		MaxComponents:  maxGridDims,
		MaxExamples:    20,
		PreviewColumns: 5,
		PreviewChars:   100,
	}
}

// Cell is one field of a row preview.
type Cell struct {
	Column string `json:"column" yaml:"column"`
	Value  string `json:"value" yaml:"value"`
}

// AnomalyRecord is an anomalous row with its score and a short preview.
type AnomalyRecord struct {
	RowIndex     int     `json:"row_index" yaml:"row_index"`
	AnomalyScore float64 `json:"anomaly_score" yaml:"anomaly_score"`
	Preview      []Cell  `json:"preview" yaml:"preview"`
}

// FeatureWeight ranks how strongly a feature separates anomalies.
type FeatureWeight struct {
	Feature    string  `json:"feature" yaml:"feature"`
	Importance float64 `json:"importance" yaml:"importance"`
}

// IsolationResult summarizes the isolation forest.
type IsolationResult struct {
	TotalAnomalies    int             `json:"total_anomalies" yaml:"total_anomalies"`
	Percentage        float64         `json:"anomaly_percentage" yaml:"anomaly_percentage"`
	Offset            float64         `json:"offset" yaml:"offset"`
	Examples          []AnomalyRecord `json:"examples" yaml:"examples"`
	FeatureImportance []FeatureWeight `json:"feature_importance" yaml:"feature_importance"`
}

// Cluster is one dense group found by DBSCAN.
type Cluster struct {
	Label      int     `json:"label" yaml:"label"`
	Name       string  `json:"name" yaml:"name"`
	Size       int     `json:"size" yaml:"size"`
	Percentage float64 `json:"percentage" yaml:"percentage"`
}

// ClusteringResult summarizes DBSCAN.
type ClusteringResult struct {
	Dimensions        int       `json:"dimensions" yaml:"dimensions"`
	Reduced           bool      `json:"reduced" yaml:"reduced"`
	ExplainedVariance float64   `json:"explained_variance,omitempty" yaml:"explained_variance,omitempty"`
	NoisePoints       int       `json:"noise_points" yaml:"noise_points"`
	NoisePercentage   float64   `json:"noise_percentage" yaml:"noise_percentage"`
	NoiseIndices      []int     `json:"noise_indices" yaml:"noise_indices"`
	Clusters          []Cluster `json:"clusters" yaml:"clusters"`
	TotalClusters     int       `json:"total_clusters" yaml:"total_clusters"`
}

// Report holds both sub-analyses. A sub-analysis that failed has a nil
// result and a non-nil error entry; the other one is unaffected.
type Report struct {
	Rows            int               `json:"complete_rows" yaml:"complete_rows"`
	Features        []string          `json:"features" yaml:"features"`
	Isolation       *IsolationResult  `json:"isolation_forest,omitempty" yaml:"isolation_forest,omitempty"`
	IsolationError  *fault.Failure    `json:"isolation_forest_error,omitempty" yaml:"isolation_forest_error,omitempty"`
	Clustering      *ClusteringResult `json:"dbscan,omitempty" yaml:"dbscan,omitempty"`
	ClusteringError *fault.Failure    `json:"dbscan_error,omitempty" yaml:"dbscan_error,omitempty"`
}

// matrix is the standardized complete-case numeric data.
type matrix struct {
	rows     []int
	features []string
	data     [][]float64
}

// Analyze runs both sub-analyses. It fails with an insufficient-data
// failure when fewer than cfg.MinRows rows have every numeric value present.
func Analyze(ctx context.Context, ds *dataset.Dataset, cfg Config) (*Report, error) {
	m := completeCases(ds)
	if len(m.features) == 0 {
		return nil, fault.Insufficient(strategyName, "no numeric columns")
	}
	if len(m.rows) < cfg.MinRows {
		return nil, fault.Insufficient(strategyName, "need at least %d complete rows, have %d", cfg.MinRows, len(m.rows))
	}
	standardize(m.data)

	rep := &Report{Rows: len(m.rows), Features: m.features}
	rep.Isolation, rep.IsolationError = guard("isolation_forest", func() (*IsolationResult, error) {
		return isolation(ctx, ds, m, cfg)
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rep.Clustering, rep.ClusteringError = guard("dbscan", func() (*ClusteringResult, error) {
		return clustering(ctx, m, cfg)
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rep, nil
}

// guard runs one sub-analysis, turning errors and panics into a failure.
func guard[T any](name string, fn func() (*T, error)) (res *T, f *fault.Failure) {
	defer func() {
		if r := recover(); r != nil {
			res, f = nil, fault.Recovered(name, r)
		}
	}()
	out, err := fn()
	if err != nil {
		return nil, fault.From(name, err)
	}
	return out, nil
}

func completeCases(ds *dataset.Dataset) *matrix {
	cols := ds.ColumnsOf(dataset.Numeric)
	m := &matrix{features: make([]string, 0, len(cols))}
	for _, c := range cols {
		m.features = append(m.features, c.Name)
	}
	if len(cols) == 0 {
		return m
	}
rows:
	for i := 0; i < ds.Rows(); i++ {
		row := make([]float64, len(cols))
		for j, c := range cols {
			v, ok := c.Float(i)
			if !ok {
				continue rows
			}
			row[j] = v
		}
		m.rows = append(m.rows, i)
		m.data = append(m.data, row)
	}
	return m
}

// standardize centers each feature and scales it to unit population
// variance. Constant features keep a scale of one.
func standardize(data [][]float64) {
	if len(data) == 0 {
		return
	}
	col := make([]float64, len(data))
	for j := range data[0] {
		for i := range data {
			col[i] = data[i][j]
		}
		mean := stats.Mean(col)
		std := stats.PopStd(col)
		if std == 0 {
			std = 1
		}
		for i := range data {
			data[i][j] = (data[i][j] - mean) / std
		}
	}
}

func isolation(ctx context.Context, ds *dataset.Dataset, m *matrix, cfg Config) (*IsolationResult, error) {
	forest := NewForest(cfg.Trees, cfg.MaxSamples, cfg.Seed)
	if err := forest.Fit(ctx, m.data); err != nil {
		return nil, err
	}
	n := len(m.data)
	decision := make([]float64, n)
	neg := make([]float64, n)
	for i, row := range m.data {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		neg[i] = -forest.Score(row)
	}
	// The offset puts the decision boundary at the contamination quantile,
	// so roughly that share of rows scores below zero.
	offset := stats.Quantile(stats.Sorted(neg), cfg.Contamination)
	var anomalous []int
	for i := range neg {
		decision[i] = neg[i] - offset
		if decision[i] < 0 {
			anomalous = append(anomalous, i)
		}
	}

	res := &IsolationResult{
		TotalAnomalies:    len(anomalous),
		Percentage:        float64(len(anomalous)) * 100 / float64(n),
		Offset:            offset,
		Examples:          []AnomalyRecord{},
		FeatureImportance: importance(m, anomalous),
	}
	for _, i := range anomalous {
		if len(res.Examples) >= cfg.MaxExamples {
			break
		}
		row := m.rows[i]
		res.Examples = append(res.Examples, AnomalyRecord{
			RowIndex:     row,
			AnomalyScore: decision[i],
			Preview:      preview(ds, row, cfg),
		})
	}
	return res, nil
}

// importance compares group means of the standardized features and
// normalizes the absolute gaps by the largest one.
func importance(m *matrix, anomalous []int) []FeatureWeight {
	out := make([]FeatureWeight, len(m.features))
	for j, f := range m.features {
		out[j].Feature = f
	}
	n := len(m.data)
	if len(anomalous) == 0 || len(anomalous) == n {
		return out
	}
	isAnom := make([]bool, n)
	for _, i := range anomalous {
		isAnom[i] = true
	}
	maxGap := 0.0
	for j := range m.features {
		var sa, sn float64
		for i, row := range m.data {
			if isAnom[i] {
				sa += row[j]
			} else {
				sn += row[j]
			}
		}
		gap := math.Abs(sa/float64(len(anomalous)) - sn/float64(n-len(anomalous)))
		out[j].Importance = gap
		maxGap = math.Max(maxGap, gap)
	}
	if maxGap == 0 {
		for j := range out {
			out[j].Importance = 0
		}
		return out
	}
	for j := range out {
		out[j].Importance /= maxGap
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Importance > out[b].Importance })
	return out
}

func preview(ds *dataset.Dataset, row int, cfg Config) []Cell {
	cols := ds.Columns()
	if len(cols) > cfg.PreviewColumns {
		cols = cols[:cfg.PreviewColumns]
	}
	out := make([]Cell, 0, len(cols))
	for _, c := range cols {
		v := "nan"
		if !c.IsNull(row) {
			v = c.Raw(row)
		}
		if r := []rune(v); len(r) > cfg.PreviewChars {
			v = string(r[:cfg.PreviewChars])
		}
		out = append(out, Cell{Column: c.Name, Value: v})
	}
	return out
}

func clustering(ctx context.Context, m *matrix, cfg Config) (*ClusteringResult, error) {
	points := m.data
	res := &ClusteringResult{Dimensions: len(m.features)}
	limit := cfg.MaxComponents
	if limit <= 0 || limit > maxGridDims {
		limit = maxGridDims
	}
	if len(m.features) > limit {
		reduced, ratio, err := project(points, limit)
		if err != nil {
			return nil, fmt.Errorf("reduce dimensions: %w", err)
		}
		points = reduced
		res.Dimensions = len(reduced[0])
		res.Reduced = true
		res.ExplainedVariance = ratio
	}
	labels, err := dbscan(ctx, points, cfg.Eps, cfg.MinPts)
	if err != nil {
		return nil, err
	}

	n := len(labels)
	sizes := map[int]int{}
	res.NoiseIndices = []int{}
	for i, l := range labels {
		if l == Noise {
			res.NoisePoints++
			if len(res.NoiseIndices) < cfg.MaxExamples {
				res.NoiseIndices = append(res.NoiseIndices, m.rows[i])
			}
			continue
		}
		sizes[l]++
	}
	res.NoisePercentage = float64(res.NoisePoints) * 100 / float64(n)
	res.Clusters = make([]Cluster, 0, len(sizes))
	for l := 0; l < len(sizes); l++ {
		res.Clusters = append(res.Clusters, Cluster{
			Label:      l,
			Name:       fmt.Sprintf("cluster_%d", l),
			Size:       sizes[l],
			Percentage: float64(sizes[l]) * 100 / float64(n),
		})
	}
	res.TotalClusters = len(sizes)
	return res, nil
}
