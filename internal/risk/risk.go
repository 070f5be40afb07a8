// Package risk reduces dataset-level quality indicators to a single
// weighted verdict.
package risk

import (
	"fmt"

	"github.com/KaramelBytes/tabscan/internal/dataset"
	"github.com/KaramelBytes/tabscan/internal/density"
	"github.com/KaramelBytes/tabscan/internal/outlier"
)

// Level is the categorical risk verdict.
type Level int

const (
	VeryLow Level = iota
	Low
	Medium
	High
)

func (l Level) String() string {
	switch l {
	case Low:
		return "Low"
	case Medium:
		return "Medium"
	case High:
		return "High"
	default:
		return "Very Low"
	}
}

// MarshalText renders the level by name in JSON and YAML.
func (l Level) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// LevelFor maps a score to a level.
func LevelFor(score int) Level {
	switch {
	case score >= 6:
		return High
	case score >= 3:
		return Medium
	case score >= 1:
		return Low
	default:
		return VeryLow
	}
}

var recommendations = map[Level]string{
	VeryLow: "Data appears normal. Continue with standard analysis.",
	Low:     "Minor issues detected. Review identified anomalies.",
	Medium:  "Several anomalies detected. Investigate data sources and collection methods.",
	High:    "Significant anomalies detected. Recommend thorough forensic investigation and data validation.",
}

// Recommendation returns the fixed advice for a level.
func Recommendation(l Level) string { return recommendations[l] }

// Indicators are boolean quick-look flags shown next to the verdict. They
// do not feed the score.
type Indicators struct {
	HighNullPercentage   bool `json:"high_null_percentage" yaml:"high_null_percentage"`
	ManyDuplicates       bool `json:"many_duplicates" yaml:"many_duplicates"`
	SuspiciousUniformity bool `json:"suspicious_uniformity" yaml:"suspicious_uniformity"`
	EncodingIssues       bool `json:"encoding_issues" yaml:"encoding_issues"`
}

// Assessment is the aggregated verdict.
type Assessment struct {
	Score          int        `json:"risk_score" yaml:"risk_score"`
	Level          Level      `json:"risk_level" yaml:"risk_level"`
	Factors        []string   `json:"risk_factors" yaml:"risk_factors"`
	Recommendation string     `json:"recommendation" yaml:"recommendation"`
	Indicators     Indicators `json:"anomaly_indicators" yaml:"anomaly_indicators"`
	Evidence       []string   `json:"evidence" yaml:"evidence"`
}

// Summarize scores the dataset statistics. The outlier and density reports
// only contribute evidence notes; any argument may be nil, in which case it
// contributes nothing.
func Summarize(st *dataset.Stats, out *outlier.Report, den *density.Report) Assessment {
	a := Assessment{Factors: []string{}, Evidence: []string{}}
	if st != nil {
		switch {
		case st.MissingPercentage > 30:
			a.add(2, "High percentage of missing data")
		case st.MissingPercentage > 10:
			a.add(1, "Moderate missing data")
		}
		switch {
		case st.DuplicatePercentage > 20:
			a.add(2, "High percentage of duplicate rows")
		case st.DuplicatePercentage > 5:
			a.add(1, "Some duplicate rows")
		}
		if st.SuspiciousUniformity {
			a.add(3, "Suspicious data uniformity")
		}
		if st.EncodingAnomaly {
			a.add(2, "Potential encoding issues")
		}
		a.Indicators = Indicators{
			HighNullPercentage:   st.MissingPercentage > 20,
			ManyDuplicates:       float64(st.DuplicateRows) > 0.1*float64(st.Rows),
			SuspiciousUniformity: st.SuspiciousUniformity,
			EncodingIssues:       st.EncodingAnomaly,
		}
	}
	a.Level = LevelFor(a.Score)
	a.Recommendation = Recommendation(a.Level)
	a.Evidence = append(a.Evidence, outlierEvidence(out)...)
	a.Evidence = append(a.Evidence, densityEvidence(den)...)
	return a
}

func (a *Assessment) add(points int, factor string) {
	a.Score += points
	a.Factors = append(a.Factors, factor)
}

func outlierEvidence(r *outlier.Report) []string {
	if r == nil || len(r.Columns) == 0 {
		return nil
	}
	var withIQR, withZ, total int
	for _, c := range r.Columns {
		if c.IQR.Count > 0 {
			withIQR++
		}
		if c.ZScore.Count > 0 {
			withZ++
		}
		total += c.IQR.Count
	}
	if withIQR == 0 && withZ == 0 {
		return nil
	}
	return []string{fmt.Sprintf("%d of %d numeric columns have IQR outliers (%d values), %d have z-score outliers",
		withIQR, len(r.Columns), total, withZ)}
}

func densityEvidence(r *density.Report) []string {
	if r == nil {
		return nil
	}
	var out []string
	if iso := r.Isolation; iso != nil && iso.TotalAnomalies > 0 {
		out = append(out, fmt.Sprintf("isolation forest flagged %d of %d complete rows (%.1f%%)", iso.TotalAnomalies, r.Rows, iso.Percentage))
	}
	if cl := r.Clustering; cl != nil && cl.NoisePoints > 0 {
		out = append(out, fmt.Sprintf("DBSCAN left %d rows outside %d clusters (%.1f%%)", cl.NoisePoints, cl.TotalClusters, cl.NoisePercentage))
	}
	return out
}
