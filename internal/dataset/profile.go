package dataset

import (
	"context"
	"unicode/utf8"
)

// ColumnProfile is the per-column part of a dataset profile.
type ColumnProfile struct {
	Name    string `json:"name" yaml:"name"`
	Kind    Kind   `json:"kind" yaml:"kind"`
	NonNull int    `json:"non_null" yaml:"non_null"`
	Missing int    `json:"missing" yaml:"missing"`
	Unique  int    `json:"unique" yaml:"unique"`
}

// Stats are the dataset-level aggregates the risk verdict is built from.
type Stats struct {
	Rows                 int             `json:"rows" yaml:"rows"`
	Columns              int             `json:"columns" yaml:"columns"`
	NumericColumns       int             `json:"numeric_columns" yaml:"numeric_columns"`
	TextColumns          int             `json:"text_columns" yaml:"text_columns"`
	DatetimeColumns      int             `json:"datetime_columns" yaml:"datetime_columns"`
	MissingCells         int             `json:"missing_cells" yaml:"missing_cells"`
	MissingPercentage    float64         `json:"missing_percentage" yaml:"missing_percentage"`
	DuplicateRows        int             `json:"duplicate_rows" yaml:"duplicate_rows"`
	DuplicatePercentage  float64         `json:"duplicate_percentage" yaml:"duplicate_percentage"`
	EligibleColumns      int             `json:"uniformity_eligible_columns" yaml:"uniformity_eligible_columns"`
	UniformColumns       []string        `json:"uniform_columns" yaml:"uniform_columns"`
	SuspiciousUniformity bool            `json:"suspicious_uniformity" yaml:"suspicious_uniformity"`
	EncodingColumns      []string        `json:"encoding_columns" yaml:"encoding_columns"`
	EncodingAnomaly      bool            `json:"encoding_anomaly" yaml:"encoding_anomaly"`
	Profile              []ColumnProfile `json:"column_profile" yaml:"column_profile"`
}

const (
	uniformityMinValues  = 10
	uniformityRatio      = 0.1
	uniformityShare      = 0.3
	encodingSampleValues = 100
	encodingSampleRunes  = 100
	encodingNonASCII     = 0.5
)

// ComputeStats profiles the dataset: missing cells, duplicate rows,
// low-cardinality columns and mostly non-ASCII text columns.
func ComputeStats(ctx context.Context, ds *Dataset) (*Stats, error) {
	st := &Stats{
		Rows:            ds.Rows(),
		Columns:         len(ds.Columns()),
		UniformColumns:  []string{},
		EncodingColumns: []string{},
	}
	for _, c := range ds.Columns() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		nn := c.NonNull()
		unique := c.Unique()
		st.MissingCells += c.Len() - nn
		st.Profile = append(st.Profile, ColumnProfile{Name: c.Name, Kind: c.Kind, NonNull: nn, Missing: c.Len() - nn, Unique: unique})
		switch c.Kind {
		case Numeric:
			st.NumericColumns++
		case Datetime:
			st.DatetimeColumns++
		case Text:
			st.TextColumns++
			if mostlyNonASCII(c) {
				st.EncodingColumns = append(st.EncodingColumns, c.Name)
			}
		}
		if nn > uniformityMinValues {
			st.EligibleColumns++
			if float64(unique)/float64(nn) < uniformityRatio {
				st.UniformColumns = append(st.UniformColumns, c.Name)
			}
		}
	}
	if cells := st.Rows * st.Columns; cells > 0 {
		st.MissingPercentage = float64(st.MissingCells) * 100 / float64(cells)
	}
	seen := make(map[string]struct{}, ds.Rows())
	for i := 0; i < ds.Rows(); i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		k := ds.RowKey(i)
		if _, dup := seen[k]; dup {
			st.DuplicateRows++
			continue
		}
		seen[k] = struct{}{}
	}
	if st.Rows > 0 && st.Columns > 0 {
		st.DuplicatePercentage = float64(st.DuplicateRows) * 100 / float64(st.Rows)
	}
	st.SuspiciousUniformity = float64(len(st.UniformColumns)) > float64(st.EligibleColumns)*uniformityShare
	st.EncodingAnomaly = len(st.EncodingColumns) > 0
	return st, nil
}

// mostlyNonASCII reports whether any sampled value is more than half
// non-ASCII within its first encodingSampleRunes runes.
func mostlyNonASCII(c *Column) bool {
	seen := 0
	for i := 0; i < c.Len() && seen < encodingSampleValues; i++ {
		if c.IsNull(i) {
			continue
		}
		seen++
		s := c.Raw(i)
		var total, nonASCII int
		for n := 0; n < encodingSampleRunes && s != ""; n++ {
			r, size := utf8.DecodeRuneInString(s)
			s = s[size:]
			total++
			if r > 127 {
				nonASCII++
			}
		}
		if total > 0 && float64(nonASCII)/float64(total) > encodingNonASCII {
			return true
		}
	}
	return false
}
