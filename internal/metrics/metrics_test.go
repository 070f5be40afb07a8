package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectors(t *testing.T) {
	m := New()
	m.ObserveStrategy("outliers", "success", 20*time.Millisecond)
	m.ObserveStrategy("outliers", "success", 10*time.Millisecond)
	m.ObserveStrategy("density", "failure", time.Millisecond)
	m.AddFindings("temporal", 3)
	m.AddFindings("temporal", 0)
	m.ObserveDataset(120, 4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StrategyRuns.WithLabelValues("outliers", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StrategyRuns.WithLabelValues("density", "failure")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Findings.WithLabelValues("temporal")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.RiskScore))
	assert.Equal(t, 120.0, testutil.ToFloat64(m.DatasetRows))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.ObserveDataset(10, 1)
	path := filepath.Join(t.TempDir(), "tabscan.prom")
	require.NoError(t, m.WriteTextfile(path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(b), "tabscan_risk_score 1"), string(b))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.ObserveStrategy("x", "success", time.Second)
	m.AddFindings("x", 1)
	m.ObserveDataset(1, 1)
}
