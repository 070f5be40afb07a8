package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/tabscan/internal/dataset"
	"github.com/KaramelBytes/tabscan/internal/density"
	"github.com/KaramelBytes/tabscan/internal/outlier"
)

func TestSummarizePoints(t *testing.T) {
	tests := []struct {
		name    string
		stats   dataset.Stats
		score   int
		level   Level
		factors []string
	}{
		{"clean", dataset.Stats{Rows: 100}, 0, VeryLow, []string{}},
		{"moderate missing", dataset.Stats{Rows: 100, MissingPercentage: 10.5}, 1, Low, []string{"Moderate missing data"}},
		{"missing at boundary", dataset.Stats{Rows: 100, MissingPercentage: 10}, 0, VeryLow, []string{}},
		{"high missing", dataset.Stats{Rows: 100, MissingPercentage: 30.1}, 2, Low, []string{"High percentage of missing data"}},
		{"some duplicates", dataset.Stats{Rows: 100, DuplicatePercentage: 6}, 1, Low, []string{"Some duplicate rows"}},
		{"uniformity", dataset.Stats{Rows: 100, SuspiciousUniformity: true}, 3, Medium, []string{"Suspicious data uniformity"}},
		{"everything", dataset.Stats{Rows: 100, MissingPercentage: 50, DuplicatePercentage: 25, SuspiciousUniformity: true, EncodingAnomaly: true}, 9, High, []string{
			"High percentage of missing data",
			"High percentage of duplicate rows",
			"Suspicious data uniformity",
			"Potential encoding issues",
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st := tc.stats
			a := Summarize(&st, nil, nil)
			assert.Equal(t, tc.score, a.Score)
			assert.Equal(t, tc.level, a.Level)
			assert.Equal(t, tc.factors, a.Factors)
			assert.Equal(t, Recommendation(tc.level), a.Recommendation)
		})
	}
}

func TestLevelThresholds(t *testing.T) {
	want := map[int]Level{0: VeryLow, 1: Low, 2: Low, 3: Medium, 5: Medium, 6: High, 9: High}
	for score, lvl := range want {
		assert.Equal(t, lvl, LevelFor(score), "score %d", score)
	}
	assert.Equal(t, "Very Low", VeryLow.String())
	b, err := High.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "High", string(b))
}

func TestScoreMonotoneInMissingAndDuplicates(t *testing.T) {
	prev := -1
	for _, pct := range []float64{0, 5, 10, 10.01, 20, 30, 30.01, 80} {
		st := dataset.Stats{Rows: 10, MissingPercentage: pct, DuplicatePercentage: pct}
		s := Summarize(&st, nil, nil).Score
		assert.GreaterOrEqual(t, s, prev, "pct %v", pct)
		prev = s
	}
}

func TestNilInputsContributeNothing(t *testing.T) {
	a := Summarize(nil, nil, nil)
	assert.Equal(t, 0, a.Score)
	assert.Equal(t, VeryLow, a.Level)
	assert.Empty(t, a.Factors)
	assert.Empty(t, a.Evidence)
}

func TestEvidenceDoesNotScore(t *testing.T) {
	out := &outlier.Report{Columns: []outlier.ColumnReport{{Column: "x"}}}
	out.Columns[0].IQR.Count = 3
	den := &density.Report{
		Rows:       50,
		Isolation:  &density.IsolationResult{TotalAnomalies: 5, Percentage: 10},
		Clustering: &density.ClusteringResult{NoisePoints: 2, TotalClusters: 1, NoisePercentage: 4},
	}
	st := dataset.Stats{Rows: 50}
	a := Summarize(&st, out, den)
	assert.Equal(t, 0, a.Score)
	require.Len(t, a.Evidence, 3)
	assert.Contains(t, a.Evidence[0], "1 of 1 numeric columns")
	assert.Contains(t, a.Evidence[1], "flagged 5 of 50")
	assert.Contains(t, a.Evidence[2], "2 rows outside 1 clusters")
}

func TestIndicators(t *testing.T) {
	st := dataset.Stats{Rows: 100, DuplicateRows: 11, MissingPercentage: 21}
	a := Summarize(&st, nil, nil)
	assert.True(t, a.Indicators.ManyDuplicates)
	assert.True(t, a.Indicators.HighNullPercentage)
	assert.False(t, a.Indicators.EncodingIssues)
}
