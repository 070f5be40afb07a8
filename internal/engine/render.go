package engine

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/tabscan/internal/fault"
	"github.com/KaramelBytes/tabscan/internal/outlier"
	"github.com/KaramelBytes/tabscan/internal/pattern"
	"github.com/KaramelBytes/tabscan/internal/utils"
)

// Output formats accepted by Render.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatYAML     = "yaml"
)

// NormalizeFormat maps user spellings to one of the Format constants.
func NormalizeFormat(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported format %q (use markdown|json|yaml)", s)
	}
}

// Extension is the file extension used for a format.
func Extension(format string) string {
	switch format {
	case FormatJSON:
		return ".json"
	case FormatYAML:
		return ".yaml"
	default:
		return ".md"
	}
}

// Render serializes the report in the given format.
func (r *Report) Render(format string) ([]byte, error) {
	f, err := NormalizeFormat(format)
	if err != nil {
		return nil, err
	}
	switch f {
	case FormatJSON:
		return utils.PrettyJSON(r)
	case FormatYAML:
		b, err := yaml.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("marshal yaml: %w", err)
		}
		return b, nil
	default:
		return []byte(r.Markdown()), nil
	}
}

// Markdown renders a compact, sectioned report for terminals and docs.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Dataset.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", r.Dataset.Name))
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", r.Dataset.Rows))
	b.WriteString(fmt.Sprintf("Columns: %d\n", r.Dataset.Columns))
	if src := r.Dataset.Source; src.Format != "" {
		b.WriteString(fmt.Sprintf("Format: %s", src.Format))
		if src.Encoding != "" {
			b.WriteString(fmt.Sprintf(", encoding %s", src.Encoding))
		}
		if src.Table != "" {
			b.WriteString(fmt.Sprintf(", table %s", safeVal(src.Table)))
		}
		b.WriteString("\n")
	}
	if sha := r.Dataset.Source.SHA256; sha != "" {
		b.WriteString(fmt.Sprintf("SHA-256: %s\n", sha))
	}
	b.WriteString(fmt.Sprintf("Run: %s (%s to %s)\n", r.RunID, r.StartedAt, r.FinishedAt))
	for _, n := range r.Dataset.Notes {
		b.WriteString(fmt.Sprintf("Note: %s\n", n))
	}

	b.WriteString("\n[RISK ASSESSMENT]\n")
	b.WriteString(fmt.Sprintf("Score: %d (%s)\n", r.Risk.Score, r.Risk.Level))
	for _, f := range r.Risk.Factors {
		b.WriteString(fmt.Sprintf("- %s\n", f))
	}
	b.WriteString(fmt.Sprintf("Recommendation: %s\n", r.Risk.Recommendation))
	ind := r.Risk.Indicators
	b.WriteString(fmt.Sprintf("Indicators: high nulls %s, many duplicates %s, suspicious uniformity %s, encoding issues %s\n",
		yesNo(ind.HighNullPercentage), yesNo(ind.ManyDuplicates), yesNo(ind.SuspiciousUniformity), yesNo(ind.EncodingIssues)))
	for _, e := range r.Risk.Evidence {
		b.WriteString(fmt.Sprintf("  • %s\n", e))
	}

	if st := r.Stats; st != nil {
		b.WriteString("\n[SCHEMA]\n")
		b.WriteString(fmt.Sprintf("Missing cells: %d (%.1f%%), duplicate rows: %d (%.1f%%)\n",
			st.MissingCells, st.MissingPercentage, st.DuplicateRows, st.DuplicatePercentage))
		for _, c := range st.Profile {
			total := c.NonNull + c.Missing
			missPct := 0.0
			if total > 0 {
				missPct = float64(c.Missing) * 100.0 / float64(total)
			}
			b.WriteString(fmt.Sprintf("- %s: %s (non-null %d, missing %.1f%%, unique %d)\n",
				safeName(c.Name), c.Kind, c.NonNull, missPct, c.Unique))
		}
		if len(st.UniformColumns) > 0 {
			b.WriteString(fmt.Sprintf("Uniform columns: %s\n", joinNames(st.UniformColumns)))
		}
		if len(st.EncodingColumns) > 0 {
			b.WriteString(fmt.Sprintf("Mostly non-ASCII columns: %s\n", joinNames(st.EncodingColumns)))
		}
	}

	if out := r.Outliers; out != nil {
		b.WriteString("\n[OUTLIERS]\n")
		if len(out.Columns) == 0 && len(out.Skipped) == 0 {
			b.WriteString("No numeric columns.\n")
		}
		for _, c := range out.Columns {
			b.WriteString(fmt.Sprintf("- %s (n=%d): IQR %s [%.4g, %.4g]; z-score %s; modified z %s\n",
				safeName(c.Column), c.Values,
				methodSummary(c.IQR.Result), c.IQR.Lower, c.IQR.Upper,
				methodSummary(c.ZScore.Result), methodSummary(c.ModifiedZ.Result)))
		}
		for _, s := range out.Skipped {
			b.WriteString(fmt.Sprintf("- %s (n=%d): skipped, %s\n", safeName(s.Column), s.Values, s.Reason))
		}
	}

	if den := r.Density; den != nil {
		b.WriteString("\n[DENSITY ANOMALIES]\n")
		b.WriteString(fmt.Sprintf("Complete rows: %d over %d numeric features\n", den.Rows, len(den.Features)))
		if iso := den.Isolation; iso != nil {
			b.WriteString(fmt.Sprintf("Isolation forest: %d anomalies (%.1f%%)\n", iso.TotalAnomalies, iso.Percentage))
			for _, ex := range iso.Examples {
				cells := make([]string, 0, len(ex.Preview))
				for _, c := range ex.Preview {
					cells = append(cells, fmt.Sprintf("%s=%s", safeName(c.Column), safeVal(c.Value)))
				}
				b.WriteString(fmt.Sprintf("  • row %d: score %.4f (%s)\n", ex.RowIndex, ex.AnomalyScore, strings.Join(cells, ", ")))
			}
			if len(iso.FeatureImportance) > 0 {
				parts := make([]string, 0, len(iso.FeatureImportance))
				for _, w := range iso.FeatureImportance {
					parts = append(parts, fmt.Sprintf("%s %.2f", safeName(w.Feature), w.Importance))
				}
				b.WriteString(fmt.Sprintf("Feature importance: %s\n", strings.Join(parts, ", ")))
			}
		}
		if den.IsolationError != nil {
			b.WriteString(fmt.Sprintf("Isolation forest failed: %s\n", den.IsolationError.Message))
		}
		if cl := den.Clustering; cl != nil {
			b.WriteString(fmt.Sprintf("DBSCAN: %d clusters, %d noise points (%.1f%%) in %d dimensions",
				cl.TotalClusters, cl.NoisePoints, cl.NoisePercentage, cl.Dimensions))
			if cl.Reduced {
				b.WriteString(fmt.Sprintf(" after PCA (explained variance %.1f%%)", cl.ExplainedVariance*100))
			}
			b.WriteString("\n")
			for _, c := range cl.Clusters {
				b.WriteString(fmt.Sprintf("  • %s: %d rows (%.1f%%)\n", c.Name, c.Size, c.Percentage))
			}
		}
		if den.ClusteringError != nil {
			b.WriteString(fmt.Sprintf("DBSCAN failed: %s\n", den.ClusteringError.Message))
		}
	}

	if pr := r.Patterns; pr != nil {
		b.WriteString("\n[PATTERNS]\n")
		if pr.Total() == 0 {
			b.WriteString("No patterns detected.\n")
		}
		for _, fam := range pr.Families() {
			if len(fam.Findings) == 0 {
				continue
			}
			b.WriteString(fmt.Sprintf("%s (%d)\n", fam.Name, len(fam.Findings)))
			writeFindings(&b, fam.Findings)
		}
	}

	if sr := r.Screening; sr != nil {
		b.WriteString("\n[SCREENING]\n")
		if sr.Total() == 0 {
			b.WriteString("Nothing flagged.\n")
		}
		for _, grp := range []struct {
			name     string
			findings []pattern.Finding
		}{{"values", sr.Values}, {"temporal", sr.Temporal}, {"text", sr.Text}} {
			if len(grp.findings) == 0 {
				continue
			}
			b.WriteString(fmt.Sprintf("%s (%d)\n", grp.name, len(grp.findings)))
			writeFindings(&b, grp.findings)
		}
	}

	b.WriteString("\n[STRATEGIES]\n")
	for _, s := range r.Strategies {
		switch {
		case s.Skipped:
			b.WriteString(fmt.Sprintf("- %s: skipped\n", s.Name))
		case s.Success:
			b.WriteString(fmt.Sprintf("- %s: ok (%d ms)\n", s.Name, s.DurationMS))
		default:
			b.WriteString(fmt.Sprintf("- %s: failed (%d ms) %s\n", s.Name, s.DurationMS, describeFailure(s.Error)))
		}
	}
	partial := partialFailures(r)
	if len(partial) > 0 {
		b.WriteString("\n[PARTIAL FAILURES]\n")
		for _, f := range partial {
			b.WriteString(fmt.Sprintf("- %s\n", describeFailure(f)))
		}
	}
	return b.String()
}

func writeFindings(b *strings.Builder, fs []pattern.Finding) {
	for _, f := range fs {
		b.WriteString(fmt.Sprintf("- %s", f.Type))
		switch {
		case f.Column != "":
			b.WriteString(fmt.Sprintf(" [%s]", safeName(f.Column)))
		case len(f.Columns) > 0:
			b.WriteString(fmt.Sprintf(" [%s]", joinNames(f.Columns)))
		}
		if f.Value != "" {
			b.WriteString(fmt.Sprintf(": %s", safeVal(f.Value)))
		}
		if len(f.Metrics) > 0 {
			parts := make([]string, 0, len(f.Metrics))
			for _, k := range f.MetricNames() {
				parts = append(parts, fmt.Sprintf("%s=%.4g", k, f.Metrics[k]))
			}
			b.WriteString(fmt.Sprintf(" (%s)", strings.Join(parts, ", ")))
		}
		if f.Suspicion != "" {
			b.WriteString(fmt.Sprintf(" suspicion %s", f.Suspicion))
		}
		b.WriteString("\n")
		if len(f.Examples) > 0 {
			ex := make([]string, len(f.Examples))
			for i, e := range f.Examples {
				ex[i] = safeVal(e)
			}
			b.WriteString(fmt.Sprintf("  e.g. %s\n", strings.Join(ex, " | ")))
		}
	}
}

// partialFailures are the failures recorded inside reports of strategies
// that otherwise succeeded.
func partialFailures(r *Report) []*fault.Failure {
	var out []*fault.Failure
	if r.Density != nil {
		for _, f := range []*fault.Failure{r.Density.IsolationError, r.Density.ClusteringError} {
			if f != nil {
				out = append(out, f)
			}
		}
	}
	if r.Patterns != nil {
		out = append(out, r.Patterns.Errors...)
	}
	if r.Screening != nil {
		out = append(out, r.Screening.Errors...)
	}
	return out
}

func methodSummary(res outlier.Result) string {
	if !res.Applicable {
		return fmt.Sprintf("n/a (%s)", res.Reason)
	}
	s := fmt.Sprintf("%d (%.1f%%)", res.Count, res.Percentage)
	if res.Reason != "" {
		s += fmt.Sprintf(", %s", res.Reason)
	}
	return s
}

func describeFailure(f *fault.Failure) string {
	if f == nil {
		return ""
	}
	if f.Strategy != "" {
		return fmt.Sprintf("%s %s: %s", f.Strategy, f.Kind, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func joinNames(names []string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = safeName(n)
	}
	return strings.Join(out, ", ")
}

func safeName(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(unnamed)"
	}
	return safeVal(s)
}

func safeVal(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", "/")
}
