package pattern

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/KaramelBytes/tabscan/internal/dataset"
	"github.com/KaramelBytes/tabscan/internal/stats"
)

// temporal examines columns whose names look date-like: spacing between
// events, hour of day and day of week.
func temporal(ctx context.Context, ds *dataset.Dataset, cfg Config) ([]Finding, error) {
	var out []Finding
	for _, c := range ds.Columns() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !MatchesKeyword(c.Name, cfg.DateKeywords) {
			continue
		}
		dates := ColumnTimes(c)
		if len(dates) <= 5 {
			continue
		}
		if f, ok := regularIntervals(c.Name, dates); ok {
			out = append(out, f)
		}
		out = append(out, hourPatterns(c.Name, dates)...)
		if f, ok := weekdayPattern(c.Name, dates); ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// ColumnTimes returns the timestamps of a column: native values for
// datetime columns, parsed cells for text columns. Unparseable cells are
// dropped. Other kinds yield nothing.
func ColumnTimes(c *dataset.Column) []time.Time {
	switch c.Kind {
	case dataset.Datetime:
		return c.Times()
	case dataset.Text:
		var out []time.Time
		for _, s := range c.Texts() {
			if t, ok := dataset.ParseTime(s); ok {
				out = append(out, t)
			}
		}
		return out
	}
	return nil
}

// SortedIntervals returns the gaps between consecutive sorted timestamps.
func SortedIntervals(dates []time.Time) []time.Duration {
	s := make([]time.Time, len(dates))
	copy(s, dates)
	sort.Slice(s, func(i, j int) bool { return s[i].Before(s[j]) })
	out := make([]time.Duration, 0, len(s))
	for i := 1; i < len(s); i++ {
		out = append(out, s[i].Sub(s[i-1]))
	}
	return out
}

func regularIntervals(column string, dates []time.Time) (Finding, bool) {
	intervals := SortedIntervals(dates)
	if len(intervals) <= 3 {
		return Finding{}, false
	}
	keys := make([]string, len(intervals))
	for i, d := range intervals {
		keys[i] = fmt.Sprint(int64(d))
	}
	counts := stats.ValueCounts(keys)
	if len(counts) > 3 {
		return Finding{}, false
	}
	freq := float64(counts[0].N) / float64(len(intervals))
	if freq <= 0.5 {
		return Finding{}, false
	}
	var top time.Duration
	for _, d := range intervals {
		if fmt.Sprint(int64(d)) == counts[0].Value {
			top = d
			break
		}
	}
	return Finding{
		Type:      RegularIntervals,
		Column:    column,
		Value:     top.String(),
		Metrics:   map[string]float64{"frequency": freq, "interval_seconds": top.Seconds()},
		Suspicion: "automated_generation",
	}, true
}

// hourPatterns only applies when the timestamps carry more than one
// distinct hour.
func hourPatterns(column string, dates []time.Time) []Finding {
	var hours [24]int
	distinct := 0
	for _, t := range dates {
		h := t.Hour()
		if hours[h] == 0 {
			distinct++
		}
		hours[h]++
	}
	if distinct <= 1 {
		return nil
	}
	total := float64(len(dates))
	var out []Finding
	peak := 0
	for h := range hours {
		if hours[h] > hours[peak] {
			peak = h
		}
	}
	if float64(hours[peak]) > 0.3*total {
		out = append(out, Finding{
			Type:    ConcentratedHourActivity,
			Column:  column,
			Metrics: map[string]float64{"peak_hour": float64(peak), "percentage": float64(hours[peak]) * 100 / total},
		})
	}
	business := 0
	for h := 9; h <= 17; h++ {
		business += hours[h]
	}
	if share := float64(business) / total; share > 0.9 {
		out = append(out, Finding{
			Type:    BusinessHoursOnly,
			Column:  column,
			Metrics: map[string]float64{"percentage": share * 100},
		})
	}
	return out
}

func weekdayPattern(column string, dates []time.Time) (Finding, bool) {
	weekdays := 0
	for _, t := range dates {
		if wd := t.Weekday(); wd != time.Saturday && wd != time.Sunday {
			weekdays++
		}
	}
	share := float64(weekdays) / float64(len(dates))
	switch {
	case share > 0.9:
		return Finding{Type: WeekdaysOnly, Column: column, Metrics: map[string]float64{"weekday_percentage": share * 100}}, true
	case share < 0.1:
		return Finding{Type: WeekendsOnly, Column: column, Metrics: map[string]float64{"weekend_percentage": (1 - share) * 100}}, true
	}
	return Finding{}, false
}
