// Package metrics exposes run statistics as Prometheus collectors on a
// private registry, exportable in the node-exporter textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors of one process.
type Metrics struct {
	Registry *prometheus.Registry

	StrategyRuns     *prometheus.CounterVec
	StrategyDuration *prometheus.HistogramVec
	Findings         *prometheus.CounterVec
	RiskScore        prometheus.Gauge
	DatasetRows      prometheus.Gauge
	DatasetsAnalyzed prometheus.Counter
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		StrategyRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tabscan_strategy_runs_total",
				Help: "Detection strategy executions by outcome",
			},
			[]string{"strategy", "status"},
		),
		StrategyDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tabscan_strategy_duration_seconds",
				Help:    "Detection strategy duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms to ~4min
			},
			[]string{"strategy"},
		),
		Findings: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tabscan_findings_total",
				Help: "Findings reported per family",
			},
			[]string{"family"},
		),
		RiskScore: f.NewGauge(prometheus.GaugeOpts{
			Name: "tabscan_risk_score",
			Help: "Risk score of the last analyzed dataset",
		}),
		DatasetRows: f.NewGauge(prometheus.GaugeOpts{
			Name: "tabscan_dataset_rows",
			Help: "Row count of the last analyzed dataset",
		}),
		DatasetsAnalyzed: f.NewCounter(prometheus.CounterOpts{
			Name: "tabscan_datasets_analyzed_total",
			Help: "Datasets analyzed by this process",
		}),
	}
}

// ObserveStrategy records one strategy run.
func (m *Metrics) ObserveStrategy(name, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.StrategyRuns.WithLabelValues(name, status).Inc()
	m.StrategyDuration.WithLabelValues(name).Observe(d.Seconds())
}

// AddFindings counts findings of a family.
func (m *Metrics) AddFindings(family string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Findings.WithLabelValues(family).Add(float64(n))
}

// ObserveDataset records the size and verdict of an analyzed dataset.
func (m *Metrics) ObserveDataset(rows, score int) {
	if m == nil {
		return
	}
	m.DatasetsAnalyzed.Inc()
	m.DatasetRows.Set(float64(rows))
	m.RiskScore.Set(float64(score))
}

// WriteTextfile writes every collector to path in the Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
