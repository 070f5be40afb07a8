package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cfgpkg "github.com/KaramelBytes/tabscan/internal/config"
	"github.com/KaramelBytes/tabscan/internal/logging"
)

var (
	// Global flags
	cfgFile       string
	flagLogLevel  string
	flagLogFormat string
	flagLogFile   string

	// Loaded configuration
	cfg *cfgpkg.Global
	// Logger built from cfg on first use
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tabscan",
	Short: "tabscan: forensic anomaly screening for tabular datasets",
	Long: `tabscan loads a CSV/TSV, XLSX or SQLite dataset and screens it for statistical outliers,
density anomalies and suspicious patterns, then aggregates the evidence into a risk verdict.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if log != nil {
		_ = log.Sync()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.tabscan/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "log format: console|json (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "write logs to a rotating file instead of stderr (overrides config)")
}

func loadConfig() {
	log = nil
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: commands fall back to defaults
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		cfg = nil
		return
	}
	cfg = c

	// Apply CLI overrides if provided
	f := rootCmd.PersistentFlags()
	if f.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if f.Changed("log-format") {
		cfg.LogFormat = flagLogFormat
	}
	if f.Changed("log-file") {
		cfg.LogFile = flagLogFile
	}
}

// currentConfig returns the loaded configuration, loading defaults when the
// initial load failed.
func currentConfig() (*cfgpkg.Global, error) {
	if cfg != nil {
		return cfg, nil
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg = c
	return cfg, nil
}

// logger builds the process logger from the effective configuration.
func logger() (*zap.Logger, error) {
	if log != nil {
		return log, nil
	}
	c, err := currentConfig()
	if err != nil {
		return nil, err
	}
	opts := logging.DefaultOptions()
	if c.LogLevel != "" {
		opts.Level = c.LogLevel
	}
	if c.LogFormat != "" {
		opts.Format = c.LogFormat
	}
	opts.File = c.LogFile
	l, err := logging.New(opts)
	if err != nil {
		return nil, err
	}
	log = l
	return log, nil
}
