// Package engine runs the detection strategies over one dataset in
// parallel and assembles their results into a single report.
//
// Strategies are fault isolated: an error, a panic or an expired timeout in
// one of them is recorded in the report's strategy table and the others
// carry on. Only cancellation of the caller's context aborts a run.
package engine

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/tabscan/internal/config"
	"github.com/KaramelBytes/tabscan/internal/dataset"
	"github.com/KaramelBytes/tabscan/internal/density"
	"github.com/KaramelBytes/tabscan/internal/fault"
	"github.com/KaramelBytes/tabscan/internal/metrics"
	"github.com/KaramelBytes/tabscan/internal/outlier"
	"github.com/KaramelBytes/tabscan/internal/pattern"
	"github.com/KaramelBytes/tabscan/internal/risk"
	"github.com/KaramelBytes/tabscan/internal/screen"
)

// Strategy names, also used as config keys for timeouts and skips.
const (
	Profile   = "profile"
	Outliers  = "outliers"
	Density   = "density"
	Patterns  = "patterns"
	Screening = "screening"
)

// Strategies lists every strategy in report order.
var Strategies = []string{Profile, Outliers, Density, Patterns, Screening}

// Options configures the detectors and the scheduling of a run.
type Options struct {
	Outlier outlier.Config
	Density density.Config
	Pattern pattern.Config
	Screen  screen.Config
	// Timeouts bounds individual strategies; missing or zero means none.
	Timeouts map[string]time.Duration
	// Skip names strategies that are not run.
	Skip []string
}

// DefaultOptions uses every detector's defaults without time limits.
func DefaultOptions() Options {
	return Options{
		Outlier:  outlier.DefaultConfig(),
		Density:  density.DefaultConfig(),
		Pattern:  pattern.DefaultConfig(),
		Screen:   screen.DefaultConfig(),
		Timeouts: map[string]time.Duration{},
	}
}

// OptionsFrom applies the loaded configuration on top of the defaults.
func OptionsFrom(g *config.Global) Options {
	o := DefaultOptions()
	if g == nil {
		return o
	}
	o.Density.Seed = g.Seed
	if g.IsolationTrees > 0 {
		o.Density.Trees = g.IsolationTrees
	}
	if len(g.DateKeywords) > 0 {
		o.Pattern.DateKeywords = slices.Clone(g.DateKeywords)
		o.Screen.DateKeywords = slices.Clone(g.DateKeywords)
	}
	for _, name := range Strategies {
		if d := g.Timeout(name); d > 0 {
			o.Timeouts[name] = d
		}
	}
	o.Skip = slices.Clone(g.Skip)
	return o
}

type runFunc func(ctx context.Context, ds *dataset.Dataset, rep *Report) error

type strategy struct {
	name string
	run  runFunc
}

// Engine is safe for concurrent use by multiple runs.
type Engine struct {
	opts       Options
	log        *zap.Logger
	metrics    *metrics.Metrics
	strategies []strategy
	now        func() time.Time
}

// New builds an engine. A nil logger discards logs and nil metrics are
// not recorded.
func New(opts Options, log *zap.Logger, m *metrics.Metrics) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{opts: opts, log: log, metrics: m, now: time.Now}
	detector := pattern.New(opts.Pattern, log.Named("patterns"))
	screener := screen.New(opts.Screen, log.Named("screening"))
	e.strategies = []strategy{
		{Profile, func(ctx context.Context, ds *dataset.Dataset, rep *Report) error {
			st, err := dataset.ComputeStats(ctx, ds)
			if err != nil {
				return err
			}
			rep.Stats = st
			return nil
		}},
		{Outliers, func(ctx context.Context, ds *dataset.Dataset, rep *Report) error {
			out, err := outlier.Analyze(ctx, ds, opts.Outlier)
			if err != nil {
				return err
			}
			rep.Outliers = out
			return nil
		}},
		{Density, func(ctx context.Context, ds *dataset.Dataset, rep *Report) error {
			den, err := density.Analyze(ctx, ds, opts.Density)
			if err != nil {
				return err
			}
			rep.Density = den
			return nil
		}},
		{Patterns, func(ctx context.Context, ds *dataset.Dataset, rep *Report) error {
			pr, err := detector.Detect(ctx, ds)
			if err != nil {
				return err
			}
			rep.Patterns = pr
			return nil
		}},
		{Screening, func(ctx context.Context, ds *dataset.Dataset, rep *Report) error {
			sr, err := screener.Screen(ctx, ds)
			if err != nil {
				return err
			}
			rep.Screening = sr
			return nil
		}},
	}
	return e
}

// Run analyzes ds with every enabled strategy. Strategy failures are
// reported in Report.Strategies; the returned error is non-nil only when
// ctx itself is done.
func (e *Engine) Run(ctx context.Context, ds *dataset.Dataset) (*Report, error) {
	if ds == nil {
		return nil, fmt.Errorf("run: nil dataset")
	}
	started := e.now()
	rep := &Report{
		RunID:     uuid.NewString(),
		StartedAt: started.UTC().Format(time.RFC3339),
		Dataset:   describe(ds),
	}
	log := e.log.With(zap.String("run_id", rep.RunID), zap.String("dataset", ds.Name))
	log.Info("analysis started", zap.Int("rows", ds.Rows()), zap.Int("columns", len(ds.Columns())))

	statuses := make([]Status, len(e.strategies))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range e.strategies {
		i, s := i, s
		if slices.Contains(e.opts.Skip, s.name) {
			statuses[i] = Status{Name: s.name, Skipped: true}
			log.Info("strategy skipped", zap.String("strategy", s.name))
			e.metrics.ObserveStrategy(s.name, "skipped", 0)
			continue
		}
		g.Go(func() error {
			statuses[i] = e.execute(gctx, log, ds, rep, s)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		log.Warn("analysis cancelled", zap.Error(err))
		return nil, fmt.Errorf("analysis of %s cancelled: %w", ds.Name, err)
	}

	rep.Strategies = statuses
	rep.Risk = risk.Summarize(rep.Stats, rep.Outliers, rep.Density)
	if rep.Patterns != nil {
		for _, fam := range rep.Patterns.Families() {
			e.metrics.AddFindings(fam.Name, len(fam.Findings))
		}
	}
	if rep.Screening != nil {
		e.metrics.AddFindings("screening.values", len(rep.Screening.Values))
		e.metrics.AddFindings("screening.temporal", len(rep.Screening.Temporal))
		e.metrics.AddFindings("screening.text", len(rep.Screening.Text))
	}
	e.metrics.ObserveDataset(ds.Rows(), rep.Risk.Score)
	rep.FinishedAt = e.now().UTC().Format(time.RFC3339)

	log.Info("analysis finished",
		zap.Int("risk_score", rep.Risk.Score),
		zap.Stringer("risk_level", rep.Risk.Level),
		zap.Int("failed_strategies", len(rep.Failures())),
		zap.Duration("elapsed", e.now().Sub(started)),
	)
	return rep, nil
}

// execute runs one strategy under its own deadline and converts whatever
// goes wrong into a Failure.
func (e *Engine) execute(ctx context.Context, log *zap.Logger, ds *dataset.Dataset, rep *Report, s strategy) (st Status) {
	st.Name = s.name
	if d := e.opts.Timeouts[s.name]; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	start := e.now()
	defer func() {
		if r := recover(); r != nil {
			st.Error = fault.Recovered(s.name, r)
		}
		elapsed := e.now().Sub(start)
		st.DurationMS = elapsed.Milliseconds()
		st.Success = st.Error == nil
		e.record(log, st, elapsed)
	}()
	if err := s.run(ctx, ds, rep); err != nil {
		st.Error = fault.From(s.name, err)
	}
	return st
}

func (e *Engine) record(log *zap.Logger, st Status, elapsed time.Duration) {
	status := "success"
	switch {
	case st.Error == nil:
		log.Debug("strategy finished", zap.String("strategy", st.Name), zap.Duration("elapsed", elapsed))
	case st.Error.Kind == fault.Cancelled:
		status = "cancelled"
		log.Warn("strategy cancelled", zap.String("strategy", st.Name), zap.String("error", st.Error.Message))
	default:
		status = "failure"
		log.Warn("strategy failed",
			zap.String("strategy", st.Name),
			zap.String("kind", string(st.Error.Kind)),
			zap.String("error", st.Error.Message),
		)
	}
	e.metrics.ObserveStrategy(st.Name, status, elapsed)
}
