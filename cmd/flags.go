package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tabscan/internal/dataset"
	"github.com/KaramelBytes/tabscan/internal/engine"
)

// sourceFlags are the loader settings shared by analyze, analyze-batch and
// inspect.
type sourceFlags struct {
	delimiter  string
	decimal    string
	thousands  string
	encoding   string
	sheetName  string
	sheetIndex int
	table      string
	maxRows    int
}

func (s *sourceFlags) register(c *cobra.Command) {
	c.Flags().StringVar(&s.delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' | '|' (sniffed if omitted)")
	c.Flags().StringVar(&s.decimal, "decimal", "", "decimal separator for numbers: '.'|'comma' (auto-detect if omitted)")
	c.Flags().StringVar(&s.thousands, "thousands", "", "thousands separator for numbers: ','|'.'|'space' (auto-detect if omitted)")
	c.Flags().StringVar(&s.encoding, "encoding", "", "CSV text encoding: utf-8|latin-1|windows-1252 (detected if omitted)")
	c.Flags().StringVar(&s.sheetName, "sheet-name", "", "XLSX: sheet name to analyze")
	c.Flags().IntVar(&s.sheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	c.Flags().StringVar(&s.table, "table", "", "SQLite: table to analyze (first table if omitted)")
	c.Flags().IntVar(&s.maxRows, "max-rows", 0, "maximum rows to load (0 = config value)")
}

func (s *sourceFlags) options(c *cobra.Command) (dataset.LoadOptions, error) {
	opt := dataset.DefaultLoadOptions()
	if conf, err := currentConfig(); err == nil && conf.MaxRows >= 0 {
		opt.MaxRows = conf.MaxRows
	}
	if c.Flags().Changed("max-rows") {
		if s.maxRows < 0 {
			return opt, fmt.Errorf("invalid --max-rows: %d", s.maxRows)
		}
		opt.MaxRows = s.maxRows
	}
	switch s.delimiter {
	case "":
	case ",":
		opt.Delimiter = ','
	case "\t", "tab":
		opt.Delimiter = '\t'
	case ";":
		opt.Delimiter = ';'
	case "|", "pipe":
		opt.Delimiter = '|'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", s.delimiter)
	}
	// Locale separators
	switch strings.ToLower(strings.TrimSpace(s.decimal)) {
	case ",", "comma":
		opt.DecimalSeparator = ','
	case ".", "dot":
		opt.DecimalSeparator = '.'
	case "":
	default:
		return opt, fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", s.decimal)
	}
	switch strings.ToLower(strings.TrimSpace(s.thousands)) {
	case ",":
		opt.ThousandsSeparator = ','
	case ".":
		opt.ThousandsSeparator = '.'
	case "space", " ":
		opt.ThousandsSeparator = ' '
	case "":
	default:
		return opt, fmt.Errorf("unsupported --thousands: %s (use ','|'.'|'space')", s.thousands)
	}
	switch strings.ToLower(strings.TrimSpace(s.encoding)) {
	case "":
	case "utf-8", "utf8":
		opt.Encoding = "utf-8"
	case "latin-1", "latin1", "iso-8859-1":
		opt.Encoding = "latin-1"
	case "windows-1252", "cp1252":
		opt.Encoding = "windows-1252"
	default:
		return opt, fmt.Errorf("unsupported --encoding: %s (use utf-8|latin-1|windows-1252)", s.encoding)
	}
	opt.Sheet = s.sheetName
	opt.SheetIndex = s.sheetIndex
	opt.Table = s.table
	return opt, nil
}

// runFlags tune the engine on top of the configuration.
type runFlags struct {
	format      string
	seed        int64
	skip        []string
	timeoutSec  int
	metricsFile string
}

func (r *runFlags) register(c *cobra.Command) {
	c.Flags().StringVarP(&r.format, "format", "f", "", "report format: markdown|json|yaml (default from config)")
	c.Flags().Int64Var(&r.seed, "seed", 42, "random seed for the isolation forest (overrides config)")
	c.Flags().StringSliceVar(&r.skip, "skip", nil, "strategies to skip: profile,outliers,density,patterns,screening")
	c.Flags().IntVar(&r.timeoutSec, "timeout", 0, "per-strategy time limit in seconds (overrides config)")
	c.Flags().StringVar(&r.metricsFile, "metrics-file", "", "write Prometheus metrics to this file after the run")
}

func (r *runFlags) engineOptions(c *cobra.Command) (engine.Options, error) {
	conf, err := currentConfig()
	if err != nil {
		return engine.Options{}, err
	}
	opts := engine.OptionsFrom(conf)
	if c.Flags().Changed("seed") {
		opts.Density.Seed = r.seed
	}
	if c.Flags().Changed("skip") {
		for _, s := range r.skip {
			if !isStrategy(s) {
				return opts, fmt.Errorf("unknown strategy in --skip: %s (use %s)", s, strings.Join(engine.Strategies, ","))
			}
		}
		opts.Skip = r.skip
	}
	if c.Flags().Changed("timeout") {
		if r.timeoutSec < 0 {
			return opts, fmt.Errorf("invalid --timeout: %d", r.timeoutSec)
		}
		for _, name := range engine.Strategies {
			if r.timeoutSec == 0 {
				delete(opts.Timeouts, name)
			} else {
				opts.Timeouts[name] = time.Duration(r.timeoutSec) * time.Second
			}
		}
	}
	return opts, nil
}

func (r *runFlags) outputFormat(c *cobra.Command) (string, error) {
	f := r.format
	if !c.Flags().Changed("format") {
		if conf, err := currentConfig(); err == nil {
			f = conf.OutputFormat
		}
	}
	return engine.NormalizeFormat(f)
}

func (r *runFlags) metricsPath(c *cobra.Command) string {
	if c.Flags().Changed("metrics-file") {
		return r.metricsFile
	}
	if conf, err := currentConfig(); err == nil {
		return conf.MetricsFile
	}
	return ""
}

func isStrategy(name string) bool {
	for _, s := range engine.Strategies {
		if s == name {
			return true
		}
	}
	return false
}
