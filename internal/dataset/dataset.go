// Package dataset holds the immutable table model consumed by every
// detector, plus the loaders that materialize it from files.
package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind is the resolved type of a column. It is decided once at load time.
type Kind int

const (
	Text Kind = iota
	Numeric
	Datetime
	Boolean
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Datetime:
		return "datetime"
	case Boolean:
		return "boolean"
	default:
		return "text"
	}
}

// MarshalText renders the kind by name in JSON and YAML output.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Column is one named, typed series. Missing cells are tracked in a null
// mask; the raw text of every present cell is kept for previews and for
// text-oriented heuristics.
type Column struct {
	Name  string
	Kind  Kind
	raw   []string
	null  []bool
	nums  []float64
	times []time.Time
}

// Len is the number of rows, missing cells included.
func (c *Column) Len() int { return len(c.null) }

// IsNull reports whether row i is missing.
func (c *Column) IsNull(i int) bool { return c.null[i] }

// Raw returns the source text of row i, or "" when missing.
func (c *Column) Raw(i int) string { return c.raw[i] }

// Float returns the numeric value of row i. Boolean columns read as 0/1.
func (c *Column) Float(i int) (float64, bool) {
	if c.null[i] || c.nums == nil {
		return 0, false
	}
	return c.nums[i], true
}

// Time returns the timestamp of row i for datetime columns.
func (c *Column) Time(i int) (time.Time, bool) {
	if c.null[i] || c.times == nil {
		return time.Time{}, false
	}
	return c.times[i], true
}

// Key is the canonical identity of row i used for counting and duplicate
// detection: equal values produce equal keys regardless of source spelling.
func (c *Column) Key(i int) string {
	if c.null[i] {
		return ""
	}
	switch c.Kind {
	case Numeric:
		return strconv.FormatFloat(c.nums[i], 'g', -1, 64)
	case Datetime:
		return c.times[i].Format(time.RFC3339Nano)
	case Boolean:
		if c.nums[i] != 0 {
			return "True"
		}
		return "False"
	default:
		return c.raw[i]
	}
}

// NonNull counts present cells.
func (c *Column) NonNull() int {
	n := 0
	for _, m := range c.null {
		if !m {
			n++
		}
	}
	return n
}

// Floats returns the present numeric values in row order.
func (c *Column) Floats() []float64 {
	if c.nums == nil {
		return nil
	}
	out := make([]float64, 0, len(c.nums))
	for i, v := range c.nums {
		if !c.null[i] {
			out = append(out, v)
		}
	}
	return out
}

// Times returns the present timestamps in row order.
func (c *Column) Times() []time.Time {
	if c.times == nil {
		return nil
	}
	out := make([]time.Time, 0, len(c.times))
	for i, t := range c.times {
		if !c.null[i] {
			out = append(out, t)
		}
	}
	return out
}

// Keys returns the canonical keys of present cells in row order.
func (c *Column) Keys() []string {
	out := make([]string, 0, len(c.null))
	for i := range c.null {
		if !c.null[i] {
			out = append(out, c.Key(i))
		}
	}
	return out
}

// Texts returns the raw text of present cells in row order.
func (c *Column) Texts() []string {
	out := make([]string, 0, len(c.null))
	for i, s := range c.raw {
		if !c.null[i] {
			out = append(out, s)
		}
	}
	return out
}

// Unique counts distinct present values.
func (c *Column) Unique() int {
	seen := make(map[string]struct{}, len(c.null))
	for i := range c.null {
		if !c.null[i] {
			seen[c.Key(i)] = struct{}{}
		}
	}
	return len(seen)
}

// Dataset is an ordered, immutable collection of equally long columns.
type Dataset struct {
	Name    string
	Source  Source
	Notes   []string
	columns []*Column
	index   map[string]int
	rows    int
}

// New assembles a dataset from columns, checking lengths and name
// uniqueness.
func New(name string, cols ...*Column) (*Dataset, error) {
	ds := &Dataset{Name: name, index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if i == 0 {
			ds.rows = c.Len()
		} else if c.Len() != ds.rows {
			return nil, fmt.Errorf("column %q has %d rows, want %d", c.Name, c.Len(), ds.rows)
		}
		if _, dup := ds.index[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column name %q", c.Name)
		}
		ds.index[c.Name] = i
	}
	ds.columns = cols
	return ds, nil
}

// MustNew is New for fixtures; it panics on invalid input.
func MustNew(name string, cols ...*Column) *Dataset {
	ds, err := New(name, cols...)
	if err != nil {
		panic(err)
	}
	return ds
}

// Rows is the number of records.
func (d *Dataset) Rows() int { return d.rows }

// Columns returns all columns in source order.
func (d *Dataset) Columns() []*Column { return d.columns }

// Column looks a column up by name.
func (d *Dataset) Column(name string) (*Column, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return d.columns[i], true
}

// ColumnsOf returns the columns of the given kind in source order.
func (d *Dataset) ColumnsOf(k Kind) []*Column {
	var out []*Column
	for _, c := range d.columns {
		if c.Kind == k {
			out = append(out, c)
		}
	}
	return out
}

// RowKey joins the canonical keys of row i; missing cells compare equal.
func (d *Dataset) RowKey(i int) string {
	var b strings.Builder
	for j, c := range d.columns {
		if j > 0 {
			b.WriteByte(0x1f)
		}
		if c.IsNull(i) {
			b.WriteByte(0x00)
			continue
		}
		b.WriteString(c.Key(i))
	}
	return b.String()
}

// NumericColumn builds a numeric column; NaN marks a missing value.
func NumericColumn(name string, vals []float64) *Column {
	c := &Column{Name: name, Kind: Numeric, raw: make([]string, len(vals)), null: make([]bool, len(vals)), nums: make([]float64, len(vals))}
	for i, v := range vals {
		if math.IsNaN(v) {
			c.null[i] = true
			continue
		}
		c.nums[i] = v
		c.raw[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return c
}

// TextColumn builds a text column; the empty string marks a missing value.
func TextColumn(name string, vals []string) *Column {
	c := &Column{Name: name, Kind: Text, raw: make([]string, len(vals)), null: make([]bool, len(vals))}
	for i, v := range vals {
		if v == "" {
			c.null[i] = true
			continue
		}
		c.raw[i] = v
	}
	return c
}

// TimeColumn builds a datetime column; the zero time marks a missing value.
func TimeColumn(name string, vals []time.Time) *Column {
	c := &Column{Name: name, Kind: Datetime, raw: make([]string, len(vals)), null: make([]bool, len(vals)), times: make([]time.Time, len(vals))}
	for i, v := range vals {
		if v.IsZero() {
			c.null[i] = true
			continue
		}
		c.times[i] = v
		c.raw[i] = v.Format(time.RFC3339)
	}
	return c
}

// BoolColumn builds a boolean column with every value present.
func BoolColumn(name string, vals []bool) *Column {
	c := &Column{Name: name, Kind: Boolean, raw: make([]string, len(vals)), null: make([]bool, len(vals)), nums: make([]float64, len(vals))}
	for i, v := range vals {
		if v {
			c.nums[i] = 1
			c.raw[i] = "True"
		} else {
			c.raw[i] = "False"
		}
	}
	return c
}
