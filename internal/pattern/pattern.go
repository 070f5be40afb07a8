// Package pattern mines a dataset for regularities that suggest synthetic
// or manipulated data. Seven families of heuristics run independently;
// a failing family is recorded in the report and the others carry on.
package pattern

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/KaramelBytes/tabscan/internal/dataset"
	"github.com/KaramelBytes/tabscan/internal/fault"
)

// Type names a kind of finding.
type Type string

const (
	ArithmeticSequence       Type = "arithmetic_sequence"
	GeometricSequence        Type = "geometric_sequence"
	HighFrequencyValue       Type = "high_frequency_value"
	CyclicalSubstring        Type = "cyclical_substring"
	UniformFrequency         Type = "uniform_frequency_distribution"
	ZipfDeviation            Type = "zipf_deviation"
	Email                    Type = "email"
	Phone                    Type = "phone"
	URL                      Type = "url"
	IPAddress                Type = "ip_address"
	CreditCard               Type = "credit_card"
	SocialSecurity           Type = "social_security"
	HexCode                  Type = "hex_code"
	Base64                   Type = "base64"
	UniformLength            Type = "uniform_length"
	CharacterAnalysis        Type = "character_analysis"
	FibonacciLike            Type = "fibonacci_like"
	HighPrimePercentage      Type = "high_prime_percentage"
	PowersOfTwo              Type = "powers_of_2"
	BenfordDeviation         Type = "benford_law_deviation"
	TooUniformDistribution   Type = "too_uniform_distribution"
	RegularIntervals         Type = "regular_intervals"
	ConcentratedHourActivity Type = "concentrated_hour_activity"
	BusinessHoursOnly        Type = "business_hours_only"
	WeekdaysOnly             Type = "weekdays_only"
	WeekendsOnly             Type = "weekends_only"
	HighCorrelation          Type = "high_correlation"
	PerfectCorrelation       Type = "perfect_correlation"
	MultipleHighCorrelations Type = "multiple_high_correlations"
)

// Finding is one observation. Type-specific numbers live in Metrics.
type Finding struct {
	Type      Type               `json:"type" yaml:"type"`
	Column    string             `json:"column,omitempty" yaml:"column,omitempty"`
	Columns   []string           `json:"columns,omitempty" yaml:"columns,omitempty"`
	Value     string             `json:"value,omitempty" yaml:"value,omitempty"`
	Metrics   map[string]float64 `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Suspicion string             `json:"suspicion,omitempty" yaml:"suspicion,omitempty"`
	Examples  []string           `json:"examples,omitempty" yaml:"examples,omitempty"`
}

// Metric returns a named metric, or 0 when absent.
func (f Finding) Metric(name string) float64 { return f.Metrics[name] }

// MetricNames lists the metric keys in sorted order.
func (f Finding) MetricNames() []string {
	names := make([]string, 0, len(f.Metrics))
	for k := range f.Metrics {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Report holds the findings of each family. Every list is non-nil.
type Report struct {
	Sequential  []Finding        `json:"sequential" yaml:"sequential"`
	Repetitive  []Finding        `json:"repetitive" yaml:"repetitive"`
	Frequency   []Finding        `json:"frequency" yaml:"frequency"`
	Text        []Finding        `json:"text" yaml:"text"`
	Numerical   []Finding        `json:"numerical" yaml:"numerical"`
	Temporal    []Finding        `json:"temporal" yaml:"temporal"`
	Correlation []Finding        `json:"correlation" yaml:"correlation"`
	Errors      []*fault.Failure `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Family is a named list of findings.
type Family struct {
	Name     string
	Findings []Finding
}

// Families returns the families in report order.
func (r *Report) Families() []Family {
	return []Family{
		{"sequential", r.Sequential},
		{"repetitive", r.Repetitive},
		{"frequency", r.Frequency},
		{"text", r.Text},
		{"numerical", r.Numerical},
		{"temporal", r.Temporal},
		{"correlation", r.Correlation},
	}
}

// Total counts all findings.
func (r *Report) Total() int {
	n := 0
	for _, f := range r.Families() {
		n += len(f.Findings)
	}
	return n
}

// Find returns the findings of type t, optionally restricted to a column.
func (r *Report) Find(t Type, column string) []Finding {
	var out []Finding
	for _, fam := range r.Families() {
		for _, f := range fam.Findings {
			if f.Type == t && (column == "" || f.Column == column) {
				out = append(out, f)
			}
		}
	}
	return out
}

// Config holds the tunable parts of the detector. The statistical
// thresholds are fixed.
type Config struct {
	// DateKeywords select temporal columns by case-insensitive substring
	// match on the column name.
	DateKeywords []string
	// SampleRows caps the values scanned for cyclical substrings.
	SampleRows    int
	TopValues     int
	MaxValueChars int
	MaxExamples   int
}

// DefaultConfig returns the standard settings.
func DefaultConfig() Config {
	return Config{
		DateKeywords:  []string{"date", "time", "created", "modified"},
		SampleRows:    100,
		TopValues:     5,
		MaxValueChars: 100,
		MaxExamples:   3,
	}
}

// Detector runs the pattern families.
type Detector struct {
	cfg Config
	log *zap.Logger
}

// New returns a detector. A nil logger discards output.
func New(cfg Config, log *zap.Logger) *Detector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Detector{cfg: cfg, log: log}
}

type family struct {
	name string
	dst  *[]Finding
	run  func(context.Context, *dataset.Dataset, Config) ([]Finding, error)
}

// Detect runs every family. Family failures are logged and recorded in
// Report.Errors; only cancellation of ctx is returned as an error.
func (d *Detector) Detect(ctx context.Context, ds *dataset.Dataset) (*Report, error) {
	rep := &Report{}
	families := []family{
		{"sequential", &rep.Sequential, sequential},
		{"repetitive", &rep.Repetitive, repetitive},
		{"frequency", &rep.Frequency, frequency},
		{"text", &rep.Text, text},
		{"numerical", &rep.Numerical, numerical},
		{"temporal", &rep.Temporal, temporal},
		{"correlation", &rep.Correlation, correlation},
	}
	for _, fam := range families {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found, fail := d.runFamily(ctx, ds, fam)
		if fail != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			d.log.Warn("pattern family failed", zap.String("family", fam.name), zap.String("kind", string(fail.Kind)), zap.String("error", fail.Message))
			rep.Errors = append(rep.Errors, fail)
		}
		if found == nil {
			found = []Finding{}
		}
		*fam.dst = found
	}
	return rep, nil
}

func (d *Detector) runFamily(ctx context.Context, ds *dataset.Dataset, fam family) (found []Finding, fail *fault.Failure) {
	defer func() {
		if r := recover(); r != nil {
			found, fail = nil, fault.Recovered("patterns."+fam.name, r)
		}
	}()
	found, err := fam.run(ctx, ds, d.cfg)
	if err != nil {
		return nil, fault.From("patterns."+fam.name, err)
	}
	return found, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// MatchesKeyword reports whether name contains any keyword, ignoring case.
func MatchesKeyword(name string, keywords []string) bool {
	lower := strings.ToLower(name)
	for _, k := range keywords {
		if k != "" && strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}
