package pattern

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/KaramelBytes/tabscan/internal/dataset"
	"github.com/KaramelBytes/tabscan/internal/stats"
)

type textPattern struct {
	typ Type
	re  *regexp.Regexp
}

// textPatterns are matched against the start of each value, in this order.
var textPatterns = []textPattern{
	{Email, regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)},
	{Phone, regexp.MustCompile(`^\+?[1-9]\d{0,15}$`)},
	{URL, regexp.MustCompile(`^https?://`)},
	{IPAddress, regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)},
	{CreditCard, regexp.MustCompile(`^\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}$`)},
	{SocialSecurity, regexp.MustCompile(`^\d{3}-\d{2}-\d{4}$`)},
	{HexCode, regexp.MustCompile(`^[0-9a-fA-F]+$`)},
	{Base64, regexp.MustCompile(`^[A-Za-z0-9+/]*={0,2}$`)},
}

// text runs the regex library, the length check and the character usage
// check over text columns.
func text(ctx context.Context, ds *dataset.Dataset, cfg Config) ([]Finding, error) {
	var out []Finding
	for _, c := range ds.ColumnsOf(dataset.Text) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		texts := c.Texts()
		if len(texts) == 0 {
			continue
		}
		for _, p := range textPatterns {
			matches := 0
			var examples []string
			for _, t := range texts {
				if !p.re.MatchString(t) {
					continue
				}
				matches++
				if len(examples) < cfg.MaxExamples {
					examples = append(examples, t)
				}
			}
			if matches == 0 {
				continue
			}
			out = append(out, Finding{
				Type:   p.typ,
				Column: c.Name,
				Metrics: map[string]float64{
					"matches":    float64(matches),
					"percentage": float64(matches) * 100 / float64(len(texts)),
				},
				Examples: examples,
			})
		}

		if f, ok := uniformLength(c.Name, texts, c.Unique()); ok {
			out = append(out, f)
		}
		if f, ok := characterUsage(c.Name, texts); ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func uniformLength(column string, texts []string, unique int) (Finding, bool) {
	lengths := make([]float64, len(texts))
	for i, t := range texts {
		lengths[i] = float64(utf8.RuneCountInString(t))
	}
	std, ok := stats.SampleStd(lengths)
	if !ok || std >= 1 || unique <= 1 {
		return Finding{}, false
	}
	lo, hi := stats.MinMax(lengths)
	return Finding{
		Type:   UniformLength,
		Column: column,
		Metrics: map[string]float64{
			"length":     stats.Mean(lengths),
			"min_length": lo,
			"max_length": hi,
			"std_length": std,
		},
		Suspicion: "strings_same_length_suspicious",
	}, true
}

// characterUsage flags text that mixes in non-ASCII characters while using
// very few distinct characters overall.
func characterUsage(column string, texts []string) (Finding, bool) {
	all := strings.Join(texts, " ")
	seen := map[rune]bool{}
	var nonASCII []string
	total := 0
	for _, r := range all {
		total++
		if seen[r] {
			continue
		}
		seen[r] = true
		if r > 127 && len(nonASCII) < 10 {
			nonASCII = append(nonASCII, string(r))
		}
	}
	if total == 0 || len(nonASCII) == 0 {
		return Finding{}, false
	}
	diversity := float64(len(seen)) / float64(total)
	if diversity >= 0.1 {
		return Finding{}, false
	}
	return Finding{
		Type:     CharacterAnalysis,
		Column:   column,
		Metrics:  map[string]float64{"character_diversity": diversity, "unique_characters": float64(len(seen))},
		Examples: nonASCII,
	}, true
}
