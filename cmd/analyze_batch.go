package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/tabscan/internal/engine"
	"github.com/KaramelBytes/tabscan/internal/metrics"
	"github.com/KaramelBytes/tabscan/internal/utils"
)

var (
	abOutDir string
	abQuiet  bool
	abSource sourceFlags
	abRun    runFlags
)

var analyzeBatchCmd = &cobra.Command{
	Use:   "analyze-batch <files...>",
	Short: "Screen multiple datasets with progress, writing one report per file",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files := expandInputs(args)
		if len(files) == 0 {
			return fmt.Errorf("no input files matched")
		}

		lopt, err := abSource.options(cmd)
		if err != nil {
			return err
		}
		eopt, err := abRun.engineOptions(cmd)
		if err != nil {
			return err
		}
		format, err := abRun.outputFormat(cmd)
		if err != nil {
			return err
		}
		lg, err := logger()
		if err != nil {
			return err
		}
		m := metrics.New()
		eng := engine.New(eopt, lg, m)

		out := cmd.OutOrStdout()
		taken := map[string]bool{}
		var failed []string
		total := len(files)
		for i, path := range files {
			if !abQuiet {
				fmt.Fprintf(out, "[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			rep, err := analyzeFile(cmd.Context(), path, lopt, eng, lg)
			if err != nil {
				if ctxErr := cmd.Context().Err(); ctxErr != nil {
					return ctxErr
				}
				failed = append(failed, filepath.Base(path))
				fmt.Fprintf(out, "✗ %s: %v\n", filepath.Base(path), err)
				continue
			}
			body, err := rep.Render(format)
			if err != nil {
				return err
			}
			if abOutDir == "" {
				if !abQuiet {
					fmt.Fprintln(out, string(body))
				}
				continue
			}
			dest := utils.ReportPath(abOutDir, path, engine.Extension(format), taken)
			if err := utils.SafeWriteFile(dest, body); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			lg.Info("report written", zap.String("dataset", path), zap.String("report", dest))
			if !abQuiet {
				fmt.Fprintf(out, "✓ %s -> %s (risk: %s, score %d)\n", filepath.Base(path), dest, rep.Risk.Level, rep.Risk.Score)
			}
		}

		if path := abRun.metricsPath(cmd); path != "" {
			if err := m.WriteTextfile(path); err != nil {
				return err
			}
		}
		if len(failed) > 0 {
			return fmt.Errorf("%d of %d datasets failed to load: %v", len(failed), total, failed)
		}
		return nil
	},
}

// expandInputs resolves glob patterns, keeps literal paths that exist and
// drops duplicates. The result is sorted.
func expandInputs(args []string) []string {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			// treat as literal path if exists
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files
}

func init() {
	rootCmd.AddCommand(analyzeBatchCmd)
	analyzeBatchCmd.Flags().StringVar(&abOutDir, "out-dir", "", "directory for per-file reports (stdout if omitted)")
	analyzeBatchCmd.Flags().BoolVarP(&abQuiet, "quiet", "q", false, "suppress progress output")
	abSource.register(analyzeBatchCmd)
	abRun.register(analyzeBatchCmd)
}
