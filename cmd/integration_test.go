package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/KaramelBytes/tabscan/internal/dataset"
)

// runCmd executes the root command with args and returns its output.
// Flags are reset first because cobra keeps their state between runs.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCmd(t, args...)
	if err != nil {
		t.Fatalf("command %v failed: %v\n%s", args, err, out)
	}
	return out
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sc := range c.Commands() {
		resetFlags(sc)
	}
}

// writeOrders writes a small ledger with one obvious outlier.
func writeOrders(t *testing.T, path string) {
	t.Helper()
	var b strings.Builder
	b.WriteString("id,amount,created_at,region\n")
	regions := []string{"north", "south", "east"}
	for i := 0; i < 40; i++ {
		amount := 100 + float64(i%7)*3.5
		if i == 13 {
			amount = 9000
		}
		b.WriteString(fmt.Sprintf("%d,%.2f,2024-01-%02d 10:00:00,%s\n", i+1, amount, i%28+1, regions[i%3]))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
}

func TestCLI_AnalyzeWritesJSONReportAndMetrics(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	csv := filepath.Join(home, "orders.csv")
	writeOrders(t, csv)
	out := filepath.Join(home, "out", "orders.json")
	prom := filepath.Join(home, "tabscan.prom")

	stdout := mustRun(t, "analyze", csv, "--format", "json", "-o", out, "--metrics-file", prom, "--log-level", "error")
	if !strings.Contains(stdout, "✓ Wrote report to") {
		t.Fatalf("unexpected stdout: %s", stdout)
	}

	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var rep struct {
		Dataset struct {
			Rows   int `json:"rows"`
			Source struct {
				Format string `json:"format"`
				SHA256 string `json:"sha256"`
			} `json:"source"`
		} `json:"dataset"`
		Risk struct {
			Level string `json:"risk_level"`
		} `json:"risk"`
		Strategies []struct {
			Name    string `json:"name"`
			Success bool   `json:"success"`
		} `json:"strategies"`
	}
	if err := json.Unmarshal(b, &rep); err != nil {
		t.Fatalf("report is not json: %v", err)
	}
	if rep.Dataset.Rows != 40 || rep.Dataset.Source.Format != "csv" || len(rep.Dataset.Source.SHA256) != 64 {
		t.Fatalf("dataset = %+v", rep.Dataset)
	}
	if rep.Risk.Level == "" {
		t.Fatalf("missing risk level")
	}
	if len(rep.Strategies) != 5 {
		t.Fatalf("strategies = %+v", rep.Strategies)
	}
	for _, s := range rep.Strategies {
		if !s.Success {
			t.Fatalf("strategy %s failed", s.Name)
		}
	}

	m, err := os.ReadFile(prom)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(m), "tabscan_datasets_analyzed_total 1") {
		t.Fatalf("metrics missing dataset counter:\n%s", m)
	}
}

func TestCLI_AnalyzeMarkdownWithSkip(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	csv := filepath.Join(home, "orders.csv")
	writeOrders(t, csv)

	out := mustRun(t, "analyze", csv, "--skip", "density,screening", "--log-level", "error")
	for _, want := range []string{"[DATASET SUMMARY]", "[RISK ASSESSMENT]", "[OUTLIERS]", "- density: skipped", "- screening: skipped"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "[DENSITY ANOMALIES]") {
		t.Fatalf("skipped strategy rendered:\n%s", out)
	}
}

func TestCLI_AnalyzeRejectsBadInput(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	csv := filepath.Join(home, "orders.csv")
	writeOrders(t, csv)

	cases := [][]string{
		{"analyze", csv, "--delimiter", "x"},
		{"analyze", csv, "--skip", "bogus"},
		{"analyze", csv, "--format", "xml"},
		{"analyze", csv, "--encoding", "ebcdic"},
	}
	for _, args := range cases {
		if _, err := runCmd(t, args...); err == nil {
			t.Fatalf("expected error for %v", args)
		}
	}

	_, err := runCmd(t, "analyze", filepath.Join(home, "missing.csv"), "--log-level", "error")
	var le *dataset.LoadError
	if !errors.As(err, &le) {
		t.Fatalf("want *dataset.LoadError, got %v", err)
	}
}

func TestCLI_ConfigSetAndShow(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	mustRun(t, "config", "set", "seed", "7")
	mustRun(t, "config", "set", "timeouts.density", "30")
	mustRun(t, "config", "set", "skip", "screening")
	if _, err := os.Stat(filepath.Join(home, ".tabscan", "config.yaml")); err != nil {
		t.Fatalf("config not saved: %v", err)
	}

	out := mustRun(t, "config", "show")
	for _, want := range []string{"seed: 7", "timeouts.density: 30", "skip: screening", "output_format: markdown"} {
		if !strings.Contains(out, want) {
			t.Fatalf("show missing %q:\n%s", want, out)
		}
	}

	for _, args := range [][]string{
		{"config", "set", "nope", "1"},
		{"config", "set", "isolation_trees", "10"},
		{"config", "set", "timeouts.bogus", "5"},
		{"config", "set", "log_format", "xml"},
	} {
		if _, err := runCmd(t, args...); err == nil {
			t.Fatalf("expected error for %v", args)
		}
	}
}

func TestCLI_Inspect(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	csv := filepath.Join(home, "orders.csv")
	writeOrders(t, csv)

	out := mustRun(t, "inspect", csv)
	for _, want := range []string{"[SOURCE]", "Format: csv", "SHA-256: ", "[SCHEMA]", "Rows: 40", "- amount: numeric", "- region: text"} {
		if !strings.Contains(out, want) {
			t.Fatalf("inspect missing %q:\n%s", want, out)
		}
	}

	js := mustRun(t, "inspect", csv, "--json")
	var decoded map[string]any
	if err := json.Unmarshal([]byte(js), &decoded); err != nil {
		t.Fatalf("inspect --json: %v\n%s", err, js)
	}
	if _, ok := decoded["stats"]; !ok {
		t.Fatalf("missing stats: %v", decoded)
	}
}
