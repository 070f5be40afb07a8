// Package fault defines the error taxonomy shared by the detectors and the
// engine. Detector failures are data, not control flow: they are recorded
// next to the results they replace and never abort sibling analyses.
package fault

import (
	"context"
	"errors"
	"fmt"

	"github.com/KaramelBytes/tabscan/internal/dataset"
)

// Kind classifies a failure.
type Kind string

const (
	InsufficientData Kind = "insufficient_data"
	Degenerate       Kind = "degenerate_distribution"
	Load             Kind = "load_error"
	Strategy         Kind = "strategy_failure"
	Cancelled        Kind = "cancelled"
)

var (
	// ErrInsufficientData means too few usable values for a method.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrDegenerate means a zero spread made a method inapplicable.
	ErrDegenerate = errors.New("degenerate distribution")
)

// Failure is the structured error entry stored in reports.
type Failure struct {
	Kind     Kind   `json:"kind" yaml:"kind"`
	Strategy string `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	Message  string `json:"message" yaml:"message"`
}

func (f *Failure) Error() string {
	if f == nil {
		return "failure"
	}
	if f.Strategy != "" {
		return fmt.Sprintf("%s: %s: %s", f.Strategy, f.Kind, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// From converts err into a Failure for the named strategy.
func From(strategy string, err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		out := *f
		if out.Strategy == "" {
			out.Strategy = strategy
		}
		return &out
	}
	kind := Strategy
	var le *dataset.LoadError
	switch {
	case errors.As(err, &le):
		kind = Load
	case errors.Is(err, ErrInsufficientData):
		kind = InsufficientData
	case errors.Is(err, ErrDegenerate):
		kind = Degenerate
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		kind = Cancelled
	}
	return &Failure{Kind: kind, Strategy: strategy, Message: err.Error()}
}

// Insufficient builds an insufficient-data failure.
func Insufficient(strategy, format string, args ...any) *Failure {
	return &Failure{Kind: InsufficientData, Strategy: strategy, Message: fmt.Sprintf(format, args...)}
}

// Recovered turns a recovered panic value into a strategy failure.
func Recovered(strategy string, v any) *Failure {
	return &Failure{Kind: Strategy, Strategy: strategy, Message: fmt.Sprintf("panic: %v", v)}
}
