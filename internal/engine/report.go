package engine

import (
	"slices"

	"github.com/KaramelBytes/tabscan/internal/dataset"
	"github.com/KaramelBytes/tabscan/internal/density"
	"github.com/KaramelBytes/tabscan/internal/fault"
	"github.com/KaramelBytes/tabscan/internal/outlier"
	"github.com/KaramelBytes/tabscan/internal/pattern"
	"github.com/KaramelBytes/tabscan/internal/risk"
	"github.com/KaramelBytes/tabscan/internal/screen"
)

// DatasetInfo identifies the analyzed dataset.
type DatasetInfo struct {
	Name    string         `json:"name" yaml:"name"`
	Rows    int            `json:"rows" yaml:"rows"`
	Columns int            `json:"columns" yaml:"columns"`
	Source  dataset.Source `json:"source" yaml:"source"`
	Notes   []string       `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Status is the outcome of one strategy.
type Status struct {
	Name       string         `json:"name" yaml:"name"`
	Success    bool           `json:"success" yaml:"success"`
	Skipped    bool           `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	DurationMS int64          `json:"duration_ms" yaml:"duration_ms"`
	Error      *fault.Failure `json:"error,omitempty" yaml:"error,omitempty"`
}

// Report is the result of one run. Sections of failed or skipped
// strategies are nil.
type Report struct {
	RunID      string      `json:"run_id" yaml:"run_id"`
	StartedAt  string      `json:"started_at" yaml:"started_at"`
	FinishedAt string      `json:"finished_at" yaml:"finished_at"`
	Dataset    DatasetInfo `json:"dataset" yaml:"dataset"`

	Stats     *dataset.Stats  `json:"dataset_stats,omitempty" yaml:"dataset_stats,omitempty"`
	Outliers  *outlier.Report `json:"statistical_outliers,omitempty" yaml:"statistical_outliers,omitempty"`
	Density   *density.Report `json:"density_anomalies,omitempty" yaml:"density_anomalies,omitempty"`
	Patterns  *pattern.Report `json:"patterns,omitempty" yaml:"patterns,omitempty"`
	Screening *screen.Report  `json:"screening,omitempty" yaml:"screening,omitempty"`

	Risk       risk.Assessment `json:"risk" yaml:"risk"`
	Strategies []Status        `json:"strategies" yaml:"strategies"`
}

// Status returns the outcome of the named strategy.
func (r *Report) Status(name string) (Status, bool) {
	for _, s := range r.Strategies {
		if s.Name == name {
			return s, true
		}
	}
	return Status{}, false
}

// Failures lists the errors of strategies that ran and failed, followed by
// the partial failures recorded inside the pattern and screening reports.
func (r *Report) Failures() []*fault.Failure {
	var out []*fault.Failure
	for _, s := range r.Strategies {
		if s.Error != nil {
			out = append(out, s.Error)
		}
	}
	return append(out, partialFailures(r)...)
}

func describe(ds *dataset.Dataset) DatasetInfo {
	return DatasetInfo{
		Name:    ds.Name,
		Rows:    ds.Rows(),
		Columns: len(ds.Columns()),
		Source:  ds.Source,
		Notes:   slices.Clone(ds.Notes),
	}
}
