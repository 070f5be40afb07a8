package outlier

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/KaramelBytes/tabscan/internal/dataset"
	"github.com/KaramelBytes/tabscan/internal/fault"
)

func seq(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i + 1)
	}
	return out
}

func TestAnalyzeSingleExtremeValue(t *testing.T) {
	vals := append(seq(100), 10000)
	ds := dataset.MustNew("t", dataset.NumericColumn("amount", vals))
	rep, err := Analyze(context.Background(), ds, DefaultConfig())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	cr, ok := rep.Column("amount")
	if !ok {
		t.Fatalf("amount not analyzed: %+v", rep)
	}
	for name, res := range map[string]Result{"iqr": cr.IQR.Result, "z": cr.ZScore.Result, "modified_z": cr.ModifiedZ.Result} {
		if !res.Applicable || res.Count != 1 {
			t.Fatalf("%s: count=%d applicable=%v, want exactly one", name, res.Count, res.Applicable)
		}
		if len(res.Samples) != 1 || res.Samples[0] != 10000 {
			t.Fatalf("%s: samples = %v", name, res.Samples)
		}
		if math.Abs(res.Percentage-100.0/101.0) > 1e-9 {
			t.Fatalf("%s: percentage = %v", name, res.Percentage)
		}
	}
	if cr.IQR.Q1 != 26 || cr.IQR.Q3 != 76 || cr.IQR.Upper != 151 || cr.IQR.Lower != -49 {
		t.Fatalf("iqr fences = %+v", cr.IQR)
	}
	if cr.ModifiedZ.Median != 51 || cr.ModifiedZ.MAD != 25 {
		t.Fatalf("median/mad = %v/%v", cr.ModifiedZ.Median, cr.ModifiedZ.MAD)
	}
}

func TestConstantColumnHasNoOutliers(t *testing.T) {
	vals := make([]float64, 50)
	for i := range vals {
		vals[i] = 7
	}
	cr := AnalyzeValues("flat", vals, DefaultConfig())
	if cr.IQR.Count != 0 || cr.ZScore.Count != 0 || cr.ModifiedZ.Count != 0 {
		t.Fatalf("constant column flagged: %+v", cr)
	}
	if !cr.ZScore.Applicable {
		t.Fatalf("z-score with zero std should still apply with zero outliers")
	}
	if cr.ModifiedZ.Applicable {
		t.Fatalf("modified z-score must be inapplicable when MAD is zero")
	}
}

func TestModifiedZInapplicableKeepsOtherMethods(t *testing.T) {
	vals := []float64{5, 5, 5, 5, 5, 5, 5, 5, 1, 9, 100}
	cr := AnalyzeValues("skewed", vals, DefaultConfig())
	if cr.ModifiedZ.Applicable || cr.ModifiedZ.MAD != 0 {
		t.Fatalf("expected degenerate modified z: %+v", cr.ModifiedZ)
	}
	if !strings.HasPrefix(cr.ModifiedZ.Reason, fault.ErrDegenerate.Error()) {
		t.Fatalf("reason = %q", cr.ModifiedZ.Reason)
	}
	// Q1 = Q3 = 5 so every value other than 5 sits outside the fences.
	if cr.IQR.Count != 3 {
		t.Fatalf("iqr count = %d, want 3", cr.IQR.Count)
	}
	want := []float64{1, 9, 100}
	for i, v := range want {
		if cr.IQR.Samples[i] != v {
			t.Fatalf("samples must follow row order: %v", cr.IQR.Samples)
		}
	}
	if cr.ZScore.Count != 1 || cr.ZScore.Samples[0] != 100 {
		t.Fatalf("z = %+v", cr.ZScore)
	}
}

func TestSamplesCappedAtTen(t *testing.T) {
	vals := make([]float64, 0, 200)
	for i := 0; i < 180; i++ {
		vals = append(vals, float64(i%3))
	}
	for i := 0; i < 20; i++ {
		vals = append(vals, 1000+float64(i))
	}
	cr := AnalyzeValues("tail", vals, DefaultConfig())
	if cr.IQR.Count != 20 || len(cr.IQR.Samples) != 10 || cr.IQR.Samples[0] != 1000 {
		t.Fatalf("iqr = count %d samples %v", cr.IQR.Count, cr.IQR.Samples)
	}
}

func TestAnalyzeSkipsSmallAndNonNumericColumns(t *testing.T) {
	small := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	withGaps := append(seq(10), math.NaN(), 11)
	ds := dataset.MustNew("t",
		dataset.NumericColumn("small", append(small, math.NaN(), math.NaN())),
		dataset.NumericColumn("ok", withGaps),
		dataset.TextColumn("label", []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"}),
	)
	rep, err := Analyze(context.Background(), ds, DefaultConfig())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(rep.Columns) != 1 || rep.Columns[0].Column != "ok" || rep.Columns[0].Values != 11 {
		t.Fatalf("columns = %+v", rep.Columns)
	}
	if len(rep.Skipped) != 1 || rep.Skipped[0].Column != "small" || rep.Skipped[0].Values != 10 || rep.Skipped[0].Reason != fault.ErrInsufficientData.Error() {
		t.Fatalf("skipped = %+v", rep.Skipped)
	}
}

func TestAnalyzeHonoursCancellation(t *testing.T) {
	ds := dataset.MustNew("t", dataset.NumericColumn("x", seq(50)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Analyze(ctx, ds, DefaultConfig()); err == nil {
		t.Fatalf("expected cancellation error")
	}
}
