package density

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/tabscan/internal/dataset"
	"github.com/KaramelBytes/tabscan/internal/fault"
)

// gridWithOutliers is a 10x10 unit grid followed by two far away rows at
// indices 100 and 101.
func gridWithOutliers() *dataset.Dataset {
	var xs, ys []float64
	for i := 0; i < 100; i++ {
		xs = append(xs, float64(i%10))
		ys = append(ys, float64(i/10))
	}
	xs = append(xs, 100, -100)
	ys = append(ys, 100, 50)
	return dataset.MustNew("grid",
		dataset.NumericColumn("x", xs),
		dataset.NumericColumn("y", ys),
	)
}

func TestAnalyzeFlagsFarRows(t *testing.T) {
	rep, err := Analyze(context.Background(), gridWithOutliers(), DefaultConfig())
	require.NoError(t, err)
	require.Nil(t, rep.IsolationError)
	require.Nil(t, rep.ClusteringError)
	assert.Equal(t, 102, rep.Rows)

	iso := rep.Isolation
	require.NotNil(t, iso)
	assert.GreaterOrEqual(t, iso.TotalAnomalies, 2)
	assert.LessOrEqual(t, iso.TotalAnomalies, 11)
	rows := map[int]bool{}
	for _, ex := range iso.Examples {
		rows[ex.RowIndex] = true
		assert.Less(t, ex.AnomalyScore, 0.0)
	}
	assert.True(t, rows[100] && rows[101], "far rows should be isolated: %v", rows)
	require.Len(t, iso.FeatureImportance, 2)
	assert.Equal(t, 1.0, iso.FeatureImportance[0].Importance)

	cl := rep.Clustering
	require.NotNil(t, cl)
	assert.False(t, cl.Reduced)
	assert.Equal(t, 2, cl.NoisePoints)
	assert.Equal(t, []int{100, 101}, cl.NoiseIndices)
	assert.Equal(t, 1, cl.TotalClusters)
	require.Len(t, cl.Clusters, 1)
	assert.Equal(t, "cluster_0", cl.Clusters[0].Name)
	assert.Equal(t, 100, cl.Clusters[0].Size)
}

func TestAnalyzeIsDeterministicForSeed(t *testing.T) {
	ds := gridWithOutliers()
	a, err := Analyze(context.Background(), ds, DefaultConfig())
	require.NoError(t, err)
	b, err := Analyze(context.Background(), ds, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestAnalyzeInsufficientRows(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5, 6, 7, 8, math.NaN(), 10}
	ds := dataset.MustNew("small",
		dataset.NumericColumn("a", vals),
		dataset.NumericColumn("b", vals),
	)
	_, err := Analyze(context.Background(), ds, DefaultConfig())
	require.Error(t, err)
	var f *fault.Failure
	require.True(t, errors.As(err, &f))
	assert.Equal(t, fault.InsufficientData, f.Kind)

	text := dataset.MustNew("text", dataset.TextColumn("t", []string{"a", "b"}))
	_, err = Analyze(context.Background(), text, DefaultConfig())
	require.True(t, errors.As(err, &f))
	assert.Equal(t, fault.InsufficientData, f.Kind)
}

func TestAnalyzeAtMinimumRows(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, math.NaN(), 11}
	ds := dataset.MustNew("boundary",
		dataset.NumericColumn("a", vals),
		dataset.NumericColumn("b", vals),
	)
	rep, err := Analyze(context.Background(), ds, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 10, rep.Rows)
	require.Nil(t, rep.IsolationError)
	require.NotNil(t, rep.Isolation)
	assert.GreaterOrEqual(t, rep.Isolation.Percentage, 0.0)
	assert.LessOrEqual(t, rep.Isolation.Percentage, 100.0)
	assert.LessOrEqual(t, rep.Isolation.TotalAnomalies, 10)
}

func TestClusteringReducesWideInput(t *testing.T) {
	cols := make([]*dataset.Column, 0, 7)
	for j := 0; j < 7; j++ {
		vals := make([]float64, 60)
		for i := range vals {
			vals[i] = float64((i*(j+3))%17) + float64(j)
		}
		cols = append(cols, dataset.NumericColumn(string(rune('a'+j)), vals))
	}
	rep, err := Analyze(context.Background(), dataset.MustNew("wide", cols...), DefaultConfig())
	require.NoError(t, err)
	require.Nil(t, rep.ClusteringError)
	assert.True(t, rep.Clustering.Reduced)
	assert.Equal(t, 5, rep.Clustering.Dimensions)
	assert.Greater(t, rep.Clustering.ExplainedVariance, 0.0)
	assert.LessOrEqual(t, rep.Clustering.ExplainedVariance, 1.0+1e-9)
}

func TestPreviewTruncates(t *testing.T) {
	long := strings.Repeat("é", 150)
	cols := []*dataset.Column{dataset.TextColumn("note", []string{long})}
	for j := 0; j < 6; j++ {
		cols = append(cols, dataset.NumericColumn(string(rune('a'+j)), []float64{float64(j)}))
	}
	ds := dataset.MustNew("p", cols...)
	cells := preview(ds, 0, DefaultConfig())
	require.Len(t, cells, 5)
	assert.Equal(t, "note", cells[0].Column)
	assert.Equal(t, 100, len([]rune(cells[0].Value)))
	assert.Equal(t, "0", cells[1].Value)
}

func TestDBSCANBorderAndCore(t *testing.T) {
	// Five points within 0.5 of the first form a core; the far point is noise.
	pts := [][]float64{{0, 0}, {0.1, 0}, {0.2, 0}, {0, 0.1}, {0.1, 0.1}, {0.55, 0}, {5, 5}}
	labels, err := dbscan(context.Background(), pts, 0.5, 5)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0, 0, 0, 0, Noise}, labels)
}

func TestAveragePathLength(t *testing.T) {
	assert.Equal(t, 0.0, averagePathLength(1))
	assert.Equal(t, 1.0, averagePathLength(2))
	want := 2*(math.Log(255)+0.5772156649) - 2*255.0/256.0
	assert.InDelta(t, want, averagePathLength(256), 1e-12)
}

func TestAnalyzeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Analyze(ctx, gridWithOutliers(), DefaultConfig())
	require.ErrorIs(t, err, context.Canceled)
}
