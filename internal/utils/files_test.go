package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSafeWriteFileCreatesParents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.json")
	if err := SafeWriteFile(path, []byte("{}")); err != nil {
		t.Fatalf("SafeWriteFile: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil || string(b) != "{}" {
		t.Fatalf("read back %q, %v", b, err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind")
	}
}

func TestPrettyJSON(t *testing.T) {
	b, err := PrettyJSON(map[string]int{"a": 1})
	if err != nil {
		t.Fatalf("PrettyJSON: %v", err)
	}
	if !strings.Contains(string(b), "\n  \"a\": 1") {
		t.Fatalf("not indented: %s", b)
	}
}

func TestReportPathAvoidsCollisions(t *testing.T) {
	taken := map[string]bool{}
	a := ReportPath("out", "data/sales.csv", ".md", taken)
	b := ReportPath("out", "other/sales.xlsx", ".md", taken)
	if a != filepath.Join("out", "sales.md") || b != filepath.Join("out", "sales-2.md") {
		t.Fatalf("paths = %s, %s", a, b)
	}
}
