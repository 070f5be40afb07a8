// Package screen holds quick screening heuristics that complement the
// pattern detector: rare and dominant values, odd text lengths, gaps and
// bursts in timelines, and text that looks encoded or corrupted.
package screen

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/KaramelBytes/tabscan/internal/dataset"
	"github.com/KaramelBytes/tabscan/internal/fault"
	"github.com/KaramelBytes/tabscan/internal/pattern"
	"github.com/KaramelBytes/tabscan/internal/stats"
)

const (
	RareValues        pattern.Type = "rare_values"
	DominantValue     pattern.Type = "dominant_value"
	AbnormalLength    pattern.Type = "abnormal_length"
	TemporalGaps      pattern.Type = "temporal_gaps"
	ActivityBursts    pattern.Type = "activity_bursts"
	EncodingAnomalies pattern.Type = "encoding_anomalies"
	EncodedData       pattern.Type = "encoded_data"
	RepetitiveText    pattern.Type = "repetitive_text"
)

// Config controls column selection and example counts.
type Config struct {
	DateKeywords  []string
	MaxExamples   int
	MaxValueChars int
}

// DefaultConfig mirrors the pattern detector's keyword list.
func DefaultConfig() Config {
	return Config{
		DateKeywords:  pattern.DefaultConfig().DateKeywords,
		MaxExamples:   3,
		MaxValueChars: 100,
	}
}

// Report groups findings by the part of the data they concern.
type Report struct {
	Values   []pattern.Finding `json:"values" yaml:"values"`
	Temporal []pattern.Finding `json:"temporal" yaml:"temporal"`
	Text     []pattern.Finding `json:"text" yaml:"text"`
	Errors   []*fault.Failure  `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Total counts all findings.
func (r *Report) Total() int { return len(r.Values) + len(r.Temporal) + len(r.Text) }

// Screener runs the heuristics.
type Screener struct {
	cfg Config
	log *zap.Logger
}

// New returns a screener; a nil logger discards output.
func New(cfg Config, log *zap.Logger) *Screener {
	if log == nil {
		log = zap.NewNop()
	}
	return &Screener{cfg: cfg, log: log}
}

type check func(context.Context, *dataset.Dataset, Config) ([]pattern.Finding, error)

// Screen runs all heuristic groups. A failing group is logged and noted in
// Report.Errors.
func (s *Screener) Screen(ctx context.Context, ds *dataset.Dataset) (*Report, error) {
	rep := &Report{}
	groups := []struct {
		name string
		dst  *[]pattern.Finding
		fn   check
	}{
		{"values", &rep.Values, valueChecks},
		{"temporal", &rep.Temporal, temporalChecks},
		{"text", &rep.Text, textChecks},
	}
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found, fail := s.guard(ctx, ds, g.name, g.fn)
		if fail != nil {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			s.log.Warn("screening check failed", zap.String("check", g.name), zap.Error(fail))
			rep.Errors = append(rep.Errors, fail)
		}
		if found == nil {
			found = []pattern.Finding{}
		}
		*g.dst = found
	}
	return rep, nil
}

func (s *Screener) guard(ctx context.Context, ds *dataset.Dataset, name string, fn check) (found []pattern.Finding, fail *fault.Failure) {
	defer func() {
		if r := recover(); r != nil {
			found, fail = nil, fault.Recovered("screening."+name, r)
		}
	}()
	found, err := fn(ctx, ds, s.cfg)
	if err != nil {
		return nil, fault.From("screening."+name, err)
	}
	return found, nil
}

func valueChecks(ctx context.Context, ds *dataset.Dataset, cfg Config) ([]pattern.Finding, error) {
	var out []pattern.Finding
	for _, c := range ds.Columns() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		keys := c.Keys()
		if len(keys) <= 10 {
			continue
		}
		counts := stats.ValueCounts(keys)
		if len(counts) > 1 {
			var singles []string
			for _, vc := range counts {
				if vc.N == 1 {
					singles = append(singles, vc.Value)
				}
			}
			pct := float64(len(singles)) * 100 / float64(len(counts))
			if len(singles) > 0 && pct < 10 {
				ex := singles
				if len(ex) > 5 {
					ex = ex[:5]
				}
				out = append(out, pattern.Finding{
					Type:     RareValues,
					Column:   c.Name,
					Metrics:  map[string]float64{"count": float64(len(singles)), "percentage": pct},
					Examples: ex,
				})
			}
		}
		if top := counts[0]; float64(top.N) > 0.8*float64(len(keys)) {
			out = append(out, pattern.Finding{
				Type:    DominantValue,
				Column:  c.Name,
				Value:   truncate(top.Value, cfg.MaxValueChars),
				Metrics: map[string]float64{"frequency": float64(top.N), "percentage": float64(top.N) * 100 / float64(len(keys))},
			})
		}
	}

	for _, c := range ds.ColumnsOf(dataset.Text) {
		texts := c.Texts()
		if len(texts) == 0 {
			continue
		}
		lengths := make([]float64, len(texts))
		for i, t := range texts {
			lengths[i] = float64(utf8.RuneCountInString(t))
		}
		std, ok := stats.SampleStd(lengths)
		if !ok || std == 0 {
			continue
		}
		mean := stats.Mean(lengths)
		var examples []string
		var odd []float64
		for i, l := range lengths {
			if math.Abs((l-mean)/std) <= 3 {
				continue
			}
			odd = append(odd, l)
			if len(examples) < cfg.MaxExamples {
				examples = append(examples, texts[i])
			}
		}
		if len(odd) == 0 {
			continue
		}
		out = append(out, pattern.Finding{
			Type:     AbnormalLength,
			Column:   c.Name,
			Metrics:  map[string]float64{"count": float64(len(odd)), "mean_length": mean, "max_anomaly_length": maxOf(odd)},
			Examples: examples,
		})
	}
	return out, nil
}

func temporalChecks(ctx context.Context, ds *dataset.Dataset, cfg Config) ([]pattern.Finding, error) {
	var out []pattern.Finding
	for _, c := range ds.Columns() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !pattern.MatchesKeyword(c.Name, cfg.DateKeywords) {
			continue
		}
		dates := pattern.ColumnTimes(c)
		if len(dates) <= 5 {
			continue
		}
		if f, ok := gaps(c.Name, dates, cfg); ok {
			out = append(out, f)
		}
		if f, ok := bursts(c.Name, dates, cfg); ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// gaps flags intervals longer than mean + 3 standard deviations.
func gaps(column string, dates []time.Time, cfg Config) (pattern.Finding, bool) {
	intervals := pattern.SortedIntervals(dates)
	if len(intervals) <= 3 {
		return pattern.Finding{}, false
	}
	secs := make([]float64, len(intervals))
	for i, d := range intervals {
		secs[i] = d.Seconds()
	}
	std, ok := stats.SampleStd(secs)
	if !ok || std <= 0 {
		return pattern.Finding{}, false
	}
	mean := stats.Mean(secs)
	threshold := mean + 3*std

	sorted := make([]time.Time, len(dates))
	copy(sorted, dates)
	sortTimes(sorted)
	count := 0
	largest := 0.0
	var at []string
	for i, s := range secs {
		if s <= threshold {
			continue
		}
		count++
		largest = math.Max(largest, s)
		if len(at) < cfg.MaxExamples {
			at = append(at, sorted[i+1].Format(time.RFC3339))
		}
	}
	if count == 0 {
		return pattern.Finding{}, false
	}
	return pattern.Finding{
		Type:   TemporalGaps,
		Column: column,
		Value:  seconds(largest).String(),
		Metrics: map[string]float64{
			"count":                 float64(count),
			"largest_gap_seconds":   largest,
			"mean_interval_seconds": mean,
		},
		Examples: at,
	}, true
}

// bursts flags days whose event count exceeds mean + 3 standard
// deviations of the daily counts.
func bursts(column string, dates []time.Time, cfg Config) (pattern.Finding, bool) {
	days := make([]string, len(dates))
	for i, t := range dates {
		days[i] = t.Format("2006-01-02")
	}
	counts := stats.ValueCounts(days)
	if len(counts) <= 1 {
		return pattern.Finding{}, false
	}
	daily := make([]float64, len(counts))
	for i, vc := range counts {
		daily[i] = float64(vc.N)
	}
	std, ok := stats.SampleStd(daily)
	if !ok || std <= 0 {
		return pattern.Finding{}, false
	}
	mean := stats.Mean(daily)
	threshold := mean + 3*std
	var burstDays []string
	peak := 0
	for _, vc := range counts {
		if float64(vc.N) <= threshold {
			continue
		}
		if len(burstDays) < cfg.MaxExamples {
			burstDays = append(burstDays, vc.Value)
		}
		if vc.N > peak {
			peak = vc.N
		}
	}
	if peak == 0 {
		return pattern.Finding{}, false
	}
	n := 0
	for _, vc := range counts {
		if float64(vc.N) > threshold {
			n++
		}
	}
	return pattern.Finding{
		Type:   ActivityBursts,
		Column: column,
		Metrics: map[string]float64{
			"count":               float64(n),
			"max_daily_activity":  float64(peak),
			"mean_daily_activity": mean,
		},
		Examples: burstDays,
	}, true
}

func textChecks(ctx context.Context, ds *dataset.Dataset, cfg Config) ([]pattern.Finding, error) {
	var out []pattern.Finding
	for _, c := range ds.ColumnsOf(dataset.Text) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		texts := c.Texts()
		if len(texts) <= 10 {
			continue
		}

		var broken []string
		brokenN := 0
		for _, t := range texts {
			if controlChars(t) == 0 {
				continue
			}
			brokenN++
			if len(broken) < 5 {
				broken = append(broken, truncate(t, 50))
			}
		}
		if brokenN > 0 {
			out = append(out, pattern.Finding{
				Type:     EncodingAnomalies,
				Column:   c.Name,
				Metrics:  map[string]float64{"count": float64(brokenN)},
				Examples: broken,
			})
		}

		var encoded []string
		encodedN := 0
		for _, t := range texts {
			if !looksEncoded(t) {
				continue
			}
			encodedN++
			if len(encoded) < cfg.MaxExamples {
				encoded = append(encoded, t)
			}
		}
		if float64(encodedN) > 0.1*float64(len(texts)) {
			out = append(out, pattern.Finding{
				Type:     EncodedData,
				Column:   c.Name,
				Metrics:  map[string]float64{"count": float64(encodedN), "percentage": float64(encodedN) * 100 / float64(len(texts))},
				Examples: encoded,
			})
		}

		var repeated []string
		repeatedN := 0
		for _, t := range texts {
			if !dominatedByOneChar(t) {
				continue
			}
			repeatedN++
			if len(repeated) < cfg.MaxExamples {
				repeated = append(repeated, truncate(t, 50))
			}
		}
		if repeatedN > 0 {
			out = append(out, pattern.Finding{
				Type:     RepetitiveText,
				Column:   c.Name,
				Metrics:  map[string]float64{"count": float64(repeatedN)},
				Examples: repeated,
			})
		}
	}
	return out, nil
}

// controlChars counts characters below 0x20 other than tab, newline and
// carriage return.
func controlChars(s string) int {
	n := 0
	for _, r := range s {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			n++
		}
	}
	return n
}

const (
	hexDigits     = "0123456789abcdefABCDEF"
	base64Charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/="
)

// looksEncoded matches hex digests of MD5/SHA-1/SHA-256 length and long
// base64-shaped strings.
func looksEncoded(s string) bool {
	switch len(s) {
	case 32, 40, 64:
		if onlyChars(s, hexDigits) {
			return true
		}
	}
	return len(s) > 20 && len(s)%4 == 0 && onlyChars(s, base64Charset)
}

func onlyChars(s, set string) bool {
	for _, r := range s {
		if !strings.ContainsRune(set, r) {
			return false
		}
	}
	return true
}

// dominatedByOneChar reports texts over 10 characters where a single
// character makes up more than half.
func dominatedByOneChar(s string) bool {
	n := utf8.RuneCountInString(s)
	if n <= 10 {
		return false
	}
	counts := map[rune]int{}
	top := 0
	for _, r := range s {
		counts[r]++
		if counts[r] > top {
			top = counts[r]
		}
	}
	return float64(top) > 0.5*float64(n)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func maxOf(vals []float64) float64 {
	_, hi := stats.MinMax(vals)
	return hi
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func sortTimes(ts []time.Time) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })
}
