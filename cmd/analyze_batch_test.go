package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAnalyzeBatch_WritesReportsWithoutOverwriting(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	// Two inputs with the same basename in different directories
	writeOrders(t, filepath.Join(home, "d1", "metrics.csv"))
	writeOrders(t, filepath.Join(home, "d2", "metrics.csv"))
	outDir := filepath.Join(home, "reports")

	out := mustRun(t, "analyze-batch", filepath.Join(home, "d*", "metrics.csv"), "--out-dir", outDir, "--format", "yaml", "--log-level", "error")
	if !strings.Contains(out, "[1/2] Processing metrics.csv") || !strings.Contains(out, "[2/2] Processing metrics.csv") {
		t.Fatalf("missing progress lines:\n%s", out)
	}

	first := filepath.Join(outDir, "metrics.yaml")
	second := filepath.Join(outDir, "metrics-2.yaml")
	for _, p := range []string{first, second} {
		b, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("missing report %s: %v", p, err)
		}
		if !strings.Contains(string(b), "risk_level:") {
			t.Fatalf("report %s is not the yaml report:\n%s", p, b)
		}
	}
}

func TestAnalyzeBatch_ContinuesPastLoadErrors(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	good := filepath.Join(home, "good.csv")
	writeOrders(t, good)
	empty := filepath.Join(home, "empty.csv")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatalf("write empty: %v", err)
	}
	outDir := filepath.Join(home, "reports")

	out, err := runCmd(t, "analyze-batch", good, empty, "--out-dir", outDir, "--log-level", "error")
	if err == nil || !strings.Contains(err.Error(), "1 of 2 datasets failed") {
		t.Fatalf("expected partial failure, got %v", err)
	}
	if !strings.Contains(out, "✗ empty.csv") {
		t.Fatalf("missing failure line:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(outDir, "good.md")); err != nil {
		t.Fatalf("good report not written: %v", err)
	}
}

func TestAnalyzeBatch_NoMatches(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if _, err := runCmd(t, "analyze-batch", filepath.Join(t.TempDir(), "*.csv")); err == nil {
		t.Fatalf("expected error when nothing matches")
	}
}
