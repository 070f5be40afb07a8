package pattern

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/tabscan/internal/dataset"
	"github.com/KaramelBytes/tabscan/internal/fault"
	"github.com/KaramelBytes/tabscan/internal/stats"
)

func detect(t *testing.T, cols ...*dataset.Column) *Report {
	t.Helper()
	ds, err := dataset.New("t", cols...)
	if err != nil {
		t.Fatalf("dataset: %v", err)
	}
	rep, err := New(DefaultConfig(), nil).Detect(context.Background(), ds)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(rep.Errors) != 0 {
		t.Fatalf("unexpected family errors: %v", rep.Errors)
	}
	return rep
}

func TestHighFrequencyValueWithoutUniformFlag(t *testing.T) {
	vals := make([]string, 0, 50)
	for i := 0; i < 45; i++ {
		vals = append(vals, "X")
	}
	vals = append(vals, "a", "b", "c", "d", "e")
	rep := detect(t, dataset.TextColumn("code", vals))

	hf := rep.Find(HighFrequencyValue, "code")
	if len(hf) != 1 || hf[0].Value != "X" || hf[0].Metric("frequency") != 0.9 || hf[0].Metric("count") != 45 {
		t.Fatalf("high_frequency_value = %+v", hf)
	}
	if got := rep.Find(UniformFrequency, "code"); len(got) != 0 {
		t.Fatalf("uniform_frequency_distribution should not fire: %+v", got)
	}
}

func TestUniformFrequencyFires(t *testing.T) {
	// Ten values seen three times each plus one seen once.
	var vals []string
	for i := 0; i < 10; i++ {
		for k := 0; k < 3; k++ {
			vals = append(vals, string(rune('a'+i)))
		}
	}
	vals = append(vals, "z")
	rep := detect(t, dataset.TextColumn("tag", vals))
	got := rep.Find(UniformFrequency, "tag")
	if len(got) != 1 || got[0].Suspicion != "high" || got[0].Metric("frequency") != 3 {
		t.Fatalf("uniform frequency = %+v", got)
	}
}

func TestUniformFrequencyIgnoresSingletons(t *testing.T) {
	var counts []stats.Count
	for i := 0; i < 3; i++ {
		counts = append(counts, stats.Count{Value: fmt.Sprintf("dup%d", i), N: 2})
	}
	for i := 0; i < 20; i++ {
		counts = append(counts, stats.Count{Value: fmt.Sprintf("id%d", i), N: 1})
	}
	if f, ok := uniformFrequency("id", counts); ok {
		t.Fatalf("mostly-unique column flagged: %+v", f)
	}
}

func TestRegularDailyIntervals(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	dates := make([]time.Time, 30)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
	}
	rep := detect(t, dataset.TimeColumn("created_at", dates))
	got := rep.Find(RegularIntervals, "created_at")
	if len(got) != 1 || got[0].Metric("frequency") != 1.0 || got[0].Metric("interval_seconds") != 86400 {
		t.Fatalf("regular_intervals = %+v", got)
	}
	if h := rep.Find(ConcentratedHourActivity, ""); len(h) != 0 {
		t.Fatalf("single hour must not produce hour findings: %+v", h)
	}
}

func TestTemporalParsesTextAndHours(t *testing.T) {
	// Weekday office-hour timestamps stored as text.
	var vals []string
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC) // Monday
	for i := 0; i < 10; i++ {
		ts := day.AddDate(0, 0, i%5).Add(time.Duration(10+i%2) * time.Hour).Add(time.Duration(i) * time.Minute)
		vals = append(vals, ts.Format("2006-01-02 15:04:05"))
	}
	rep := detect(t, dataset.TextColumn("Modified", vals))
	if got := rep.Find(BusinessHoursOnly, "Modified"); len(got) != 1 || got[0].Metric("percentage") != 100 {
		t.Fatalf("business hours = %+v", got)
	}
	if got := rep.Find(ConcentratedHourActivity, "Modified"); len(got) != 1 || got[0].Metric("percentage") != 50 {
		t.Fatalf("hour concentration = %+v", got)
	}
	if got := rep.Find(WeekdaysOnly, "Modified"); len(got) != 1 {
		t.Fatalf("weekdays = %+v", got)
	}
}

func TestPerfectCorrelation(t *testing.T) {
	a := []float64{3, 1, 4, 1, 5, 9, 2, 6, 5, 3, 5, 8}
	b := make([]float64, len(a))
	for i, v := range a {
		b[i] = 2 * v
	}
	rep := detect(t, dataset.NumericColumn("a", a), dataset.NumericColumn("b", b))
	got := rep.Find(PerfectCorrelation, "")
	if len(got) != 1 || got[0].Metric("correlation") != 1.0 {
		t.Fatalf("perfect_correlation = %+v", got)
	}
	if cols := got[0].Columns; len(cols) != 2 || cols[0] != "a" || cols[1] != "b" {
		t.Fatalf("columns = %v", cols)
	}
	if m := rep.Find(MultipleHighCorrelations, ""); len(m) != 1 || len(m[0].Columns) != 2 {
		t.Fatalf("multiple_high_correlations = %+v", m)
	}
	if h := rep.Find(HighCorrelation, ""); len(h) != 0 {
		t.Fatalf("perfect pair must not also be high: %+v", h)
	}
}

func TestBenfordDeviation(t *testing.T) {
	perfect := []int{}
	for d, n := range []int{301, 176, 125, 97, 79, 67, 58, 51, 46} {
		for i := 0; i < n; i++ {
			perfect = append(perfect, d+1)
		}
	}
	if dev := benfordDeviation(perfect); dev != 0 {
		t.Fatalf("perfect distribution deviation = %v", dev)
	}
	prev := 0.0
	for _, extra := range []int{100, 300, 900} {
		skewed := append([]int{}, perfect...)
		for i := 0; i < extra; i++ {
			skewed = append(skewed, 1)
		}
		dev := benfordDeviation(skewed)
		if dev <= prev {
			t.Fatalf("deviation must grow with skew: %v after %v", dev, prev)
		}
		prev = dev
	}
}

func TestBenfordFindingNeedsThirtySamples(t *testing.T) {
	vals := make([]float64, 29)
	for i := range vals {
		vals[i] = 9
	}
	rep := detect(t, dataset.NumericColumn("n", vals))
	if got := rep.Find(BenfordDeviation, "n"); len(got) != 0 {
		t.Fatalf("29 samples must not be tested: %+v", got)
	}
	rep = detect(t, dataset.NumericColumn("n", append(vals, 9)))
	got := rep.Find(BenfordDeviation, "n")
	if len(got) != 1 || got[0].Suspicion != "high" {
		t.Fatalf("benford = %+v", got)
	}
}

func TestSequences(t *testing.T) {
	rep := detect(t,
		dataset.NumericColumn("arith", []float64{2, 4, 6, 8, 10, 12}),
		dataset.NumericColumn("geo", []float64{3, 6, 12, 24, 48, 96}),
	)
	ar := rep.Find(ArithmeticSequence, "arith")
	if len(ar) != 1 || ar[0].Metric("difference") != 2 || ar[0].Metric("confidence") != 1 {
		t.Fatalf("arithmetic = %+v", ar)
	}
	geo := rep.Find(GeometricSequence, "geo")
	if len(geo) != 1 || geo[0].Metric("ratio") != 2 {
		t.Fatalf("geometric = %+v", geo)
	}
	if got := rep.Find(ArithmeticSequence, "geo"); len(got) != 0 {
		t.Fatalf("doubling has four distinct diffs: %+v", got)
	}
}

func TestConstantColumnIsGeometricNotArithmetic(t *testing.T) {
	rep := detect(t, dataset.NumericColumn("c", []float64{8, 8, 8, 8, 8}))
	geo := rep.Find(GeometricSequence, "c")
	if len(geo) != 1 || geo[0].Metric("ratio") != 1 || geo[0].Metric("confidence") != 1 {
		t.Fatalf("geometric = %+v", geo)
	}
	if got := rep.Find(ArithmeticSequence, "c"); len(got) != 0 {
		t.Fatalf("zero step must not be arithmetic: %+v", got)
	}
}

func TestNumericalHeuristics(t *testing.T) {
	rep := detect(t,
		dataset.NumericColumn("fib", []float64{1, 2, 3, 5, 8, 13, 21}),
		dataset.NumericColumn("primes", []float64{2, 3, 5, 7, 11, 13, 17}),
		dataset.NumericColumn("pow", []float64{1, 2, 4, 8, 3, 5, 7}),
	)
	if got := rep.Find(FibonacciLike, "fib"); len(got) != 1 {
		t.Fatalf("fibonacci = %+v", got)
	}
	if got := rep.Find(HighPrimePercentage, "primes"); len(got) != 1 || got[0].Metric("percentage") != 1 {
		t.Fatalf("primes = %+v", got)
	}
	if got := rep.Find(PowersOfTwo, "pow"); len(got) != 1 || got[0].Metric("count") != 4 {
		t.Fatalf("powers of two = %+v", got)
	}
}

func TestPrimeShareSkipsHugeIntegersAndStopsOnCancel(t *testing.T) {
	vals := []float64{2, 3, 4, 9007199254740881, 1e15 + 37, 1e18}
	pct, err := primeShare(context.Background(), vals)
	if err != nil {
		t.Fatalf("prime share: %v", err)
	}
	if pct != 2.0/3.0 {
		t.Fatalf("share = %v, want only small integers counted", pct)
	}

	big := make([]float64, 5000)
	for i := range big {
		big[i] = 999999999989
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := primeShare(ctx, big); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestTooUniformHistogram(t *testing.T) {
	vals := make([]float64, 100)
	for i := range vals {
		vals[i] = float64(i + 1)
	}
	rep := detect(t, dataset.NumericColumn("u", vals))
	got := rep.Find(TooUniformDistribution, "u")
	if len(got) != 1 || got[0].Metric("uniformity_score") != 0 {
		t.Fatalf("too uniform = %+v", got)
	}
}

func TestTextFamily(t *testing.T) {
	emails := []string{"a@example.com", "b@example.org", "not an email", "c@x.io"}
	rep := detect(t, dataset.TextColumn("contact", emails))
	got := rep.Find(Email, "contact")
	if len(got) != 1 || got[0].Metric("matches") != 3 || got[0].Metric("percentage") != 75 {
		t.Fatalf("email = %+v", got)
	}
	if len(got[0].Examples) != 3 || got[0].Examples[0] != "a@example.com" {
		t.Fatalf("examples = %v", got[0].Examples)
	}

	codes := []string{"AB12", "CD34", "EF56", "GH78"}
	rep = detect(t, dataset.TextColumn("code", codes))
	if got := rep.Find(UniformLength, "code"); len(got) != 1 || got[0].Metric("length") != 4 {
		t.Fatalf("uniform length = %+v", got)
	}

	accents := make([]string, 20)
	for i := range accents {
		accents[i] = strings.Repeat("é", 9)
	}
	rep = detect(t, dataset.TextColumn("name", accents))
	got = rep.Find(CharacterAnalysis, "name")
	if len(got) != 1 || len(got[0].Examples) != 1 || got[0].Examples[0] != "é" {
		t.Fatalf("character analysis = %+v", got)
	}
}

func TestCyclicalSubstring(t *testing.T) {
	rep := detect(t, dataset.TextColumn("s", []string{"abcabcabc", "xyz", "hello world"}))
	got := rep.Find(CyclicalSubstring, "s")
	if len(got) != 1 || got[0].Value != "ab" || got[0].Metric("repetitions") != 3 {
		t.Fatalf("cyclical = %+v", got)
	}
}

func TestEmptyFamiliesSerializeAsLists(t *testing.T) {
	rep := detect(t, dataset.TextColumn("x", []string{"a", "b"}))
	b, err := json.Marshal(rep)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{"sequential", "repetitive", "frequency", "text", "numerical", "temporal", "correlation"} {
		if !strings.Contains(string(b), `"`+key+`":[`) {
			t.Fatalf("%s missing or null in %s", key, b)
		}
	}
}

func TestFamilyPanicIsIsolated(t *testing.T) {
	d := New(DefaultConfig(), nil)
	ds := dataset.MustNew("t", dataset.TextColumn("x", []string{"a"}))
	found, fail := d.runFamily(context.Background(), ds, family{
		name: "boom",
		run: func(context.Context, *dataset.Dataset, Config) ([]Finding, error) {
			panic("index out of range")
		},
	})
	if found != nil || fail == nil || fail.Kind != fault.Strategy || fail.Strategy != "patterns.boom" {
		t.Fatalf("found=%v fail=%+v", found, fail)
	}
}

func TestDetectCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ds := dataset.MustNew("t", dataset.TextColumn("x", []string{"a"}))
	if _, err := New(DefaultConfig(), nil).Detect(ctx, ds); err == nil {
		t.Fatalf("expected cancellation error")
	}
}
