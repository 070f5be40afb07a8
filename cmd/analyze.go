package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/tabscan/internal/dataset"
	"github.com/KaramelBytes/tabscan/internal/engine"
	"github.com/KaramelBytes/tabscan/internal/metrics"
	"github.com/KaramelBytes/tabscan/internal/utils"
)

var (
	anaOutputPath string
	anaSource     sourceFlags
	anaRun        runFlags
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Screen a CSV/TSV, XLSX or SQLite dataset for anomalies and suspicious patterns",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lopt, err := anaSource.options(cmd)
		if err != nil {
			return err
		}
		eopt, err := anaRun.engineOptions(cmd)
		if err != nil {
			return err
		}
		format, err := anaRun.outputFormat(cmd)
		if err != nil {
			return err
		}
		lg, err := logger()
		if err != nil {
			return err
		}

		m := metrics.New()
		rep, err := analyzeFile(cmd.Context(), args[0], lopt, engine.New(eopt, lg, m), lg)
		if err != nil {
			return err
		}
		out, err := rep.Render(format)
		if err != nil {
			return err
		}

		if anaOutputPath != "" {
			if err := utils.SafeWriteFile(anaOutputPath, out); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote report to %s (risk: %s, score %d)\n", anaOutputPath, rep.Risk.Level, rep.Risk.Score)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
		}
		if path := anaRun.metricsPath(cmd); path != "" {
			if err := m.WriteTextfile(path); err != nil {
				return err
			}
		}
		return nil
	},
}

// analyzeFile loads one dataset and runs the engine over it. Load errors
// are returned as they are so callers can tell them apart.
func analyzeFile(ctx context.Context, path string, opt dataset.LoadOptions, eng *engine.Engine, lg *zap.Logger) (*engine.Report, error) {
	ds, err := dataset.Load(ctx, path, opt)
	if err != nil {
		lg.Error("dataset could not be loaded", zap.String("path", path), zap.Error(err))
		return nil, err
	}
	for _, n := range ds.Notes {
		lg.Warn("dataset note", zap.String("dataset", ds.Name), zap.String("note", n))
	}
	return eng.Run(ctx, ds)
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&anaOutputPath, "output", "o", "", "optional path to write the report")
	anaSource.register(analyzeCmd)
	anaRun.register(analyzeCmd)
}
