package dataset

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ParseOptions controls how cell text is interpreted.
type ParseOptions struct {
	// DecimalSeparator for numbers. If 0, auto-detect per value.
	DecimalSeparator rune
	// ThousandsSeparator is optional; if 0, common separators (',' '.' space)
	// other than the decimal one are dropped.
	ThousandsSeparator rune
}

// Builder accumulates raw records and resolves column kinds on Build.
type Builder struct {
	names []string
	cells [][]string
}

// NewBuilder starts a dataset with the given header. Blank names become
// "Unnamed: <i>" and repeated names get a ".<n>" suffix.
func NewBuilder(header []string) *Builder {
	seen := map[string]int{}
	names := make([]string, len(header))
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if _, dup := seen[name]; dup {
			base, n := name, seen[name]
			for {
				n++
				name = fmt.Sprintf("%s.%d", base, n)
				if _, taken := seen[name]; !taken {
					break
				}
			}
			seen[base] = n
		}
		seen[name] = 0
		names[i] = name
	}
	return &Builder{names: names, cells: make([][]string, len(header))}
}

// Append adds one record, padding or truncating it to the header width.
func (b *Builder) Append(rec []string) {
	for j := range b.names {
		v := ""
		if j < len(rec) {
			v = strings.TrimSpace(rec[j])
		}
		b.cells[j] = append(b.cells[j], v)
	}
}

// Rows is the number of appended records.
func (b *Builder) Rows() int {
	if len(b.cells) == 0 {
		return 0
	}
	return len(b.cells[0])
}

// Build resolves each column's kind and returns the dataset. A column is
// numeric, boolean or datetime only when every present cell parses as such;
// anything else is text.
func (b *Builder) Build(ctx context.Context, name string, opt ParseOptions) (*Dataset, error) {
	cols := make([]*Column, len(b.names))
	for j, n := range b.names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cols[j] = inferColumn(n, b.cells[j], opt)
	}
	return New(name, cols...)
}

func inferColumn(name string, cells []string, opt ParseOptions) *Column {
	c := &Column{Name: name, Kind: Text, raw: make([]string, len(cells)), null: make([]bool, len(cells))}
	present := 0
	for i, v := range cells {
		if isMissing(v) {
			c.null[i] = true
			continue
		}
		c.raw[i] = v
		present++
	}
	if present == 0 {
		return c
	}
	if nums, ok := parseAll(c, func(s string) (float64, bool) { return parseNumeric(s, opt) }); ok {
		c.Kind, c.nums = Numeric, nums
		return c
	}
	if nums, ok := parseAll(c, parseBool); ok {
		c.Kind, c.nums = Boolean, nums
		return c
	}
	times := make([]time.Time, len(cells))
	for i, v := range c.raw {
		if c.null[i] {
			continue
		}
		t, ok := parseTimeMaybe(v)
		if !ok {
			return c
		}
		times[i] = t
	}
	c.Kind, c.times = Datetime, times
	return c
}

func parseAll(c *Column, parse func(string) (float64, bool)) ([]float64, bool) {
	out := make([]float64, len(c.raw))
	for i, v := range c.raw {
		if c.null[i] {
			continue
		}
		x, ok := parse(v)
		if !ok {
			return nil, false
		}
		out[i] = x
	}
	return out, true
}

var missingTokens = map[string]struct{}{
	"": {}, "na": {}, "n/a": {}, "nan": {}, "null": {}, "none": {}, "#n/a": {}, "<na>": {}, "nat": {},
}

func isMissing(s string) bool {
	_, ok := missingTokens[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

func parseBool(s string) (float64, bool) {
	switch strings.ToLower(s) {
	case "true":
		return 1, true
	case "false":
		return 0, true
	}
	return 0, false
}

// ParseTime parses the timestamp layouts recognised by the loaders.
func ParseTime(s string) (time.Time, bool) { return parseTimeMaybe(strings.TrimSpace(s)) }

var timeLayouts = []string{
	time.RFC3339Nano, time.RFC3339,
	"2006-01-02", "2006/01/02", "01/02/2006", "02/01/2006", "02.01.2006",
	"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04", "2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999", "2006-01-02 15:04:05Z07:00",
	"1/2/2006", "1/2/2006 15:04", "1/2/2006 15:04:05",
}

func parseTimeMaybe(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseNumeric accepts plain and locale formatted numbers ("1.234,5",
// "1 234.5"). Infinite values are rejected.
func parseNumeric(s string, opt ParseOptions) (float64, bool) {
	raw := strings.ReplaceAll(strings.TrimSpace(s), "\u00a0", " ")
	if raw == "" {
		return 0, false
	}
	dec := opt.DecimalSeparator
	thou := opt.ThousandsSeparator
	if dec == 0 {
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		switch {
		case cpos >= 0 && dpos >= 0 && cpos > dpos:
			dec, thou = ',', '.'
		case cpos >= 0 && dpos >= 0:
			dec, thou = '.', ','
		case cpos >= 0:
			dec = ','
		default:
			dec = '.'
		}
	}
	if thou == 0 {
		for _, sep := range []rune{',', '.', ' '} {
			if sep != dec {
				raw = strings.ReplaceAll(raw, string(sep), "")
			}
		}
	} else if thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
