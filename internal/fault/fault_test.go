package fault

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/KaramelBytes/tabscan/internal/dataset"
)

func TestFromClassifies(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"insufficient", fmt.Errorf("density: %w", ErrInsufficientData), InsufficientData},
		{"degenerate", fmt.Errorf("mad: %w", ErrDegenerate), Degenerate},
		{"timeout", fmt.Errorf("run: %w", context.DeadlineExceeded), Cancelled},
		{"cancel", context.Canceled, Cancelled},
		{"load", &dataset.LoadError{Path: "x.csv", Op: "stat", Err: errors.New("missing")}, Load},
		{"other", errors.New("boom"), Strategy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := From("patterns", tt.err)
			if f.Kind != tt.want {
				t.Fatalf("kind = %s, want %s", f.Kind, tt.want)
			}
			if f.Strategy != "patterns" {
				t.Fatalf("strategy = %q", f.Strategy)
			}
		})
	}
	if From("x", nil) != nil {
		t.Fatalf("nil error must map to nil failure")
	}
}

func TestFromKeepsExistingFailure(t *testing.T) {
	orig := Insufficient("", "only %d rows", 3)
	f := From("density", fmt.Errorf("wrapped: %w", orig))
	if f.Kind != InsufficientData || f.Strategy != "density" || f.Message != "only 3 rows" {
		t.Fatalf("failure = %+v", f)
	}
	if orig.Strategy != "" {
		t.Fatalf("original failure mutated")
	}
}
