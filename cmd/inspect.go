package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tabscan/internal/dataset"
	"github.com/KaramelBytes/tabscan/internal/utils"
)

var (
	insJSON   bool
	insSource sourceFlags
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show the fingerprint and inferred schema of a dataset without running detectors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opt, err := insSource.options(cmd)
		if err != nil {
			return err
		}
		ds, err := dataset.Load(cmd.Context(), args[0], opt)
		if err != nil {
			return err
		}
		st, err := dataset.ComputeStats(cmd.Context(), ds)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if insJSON {
			b, err := utils.PrettyJSON(struct {
				Name   string         `json:"name"`
				Source dataset.Source `json:"source"`
				Notes  []string       `json:"notes,omitempty"`
				Stats  *dataset.Stats `json:"stats"`
			}{ds.Name, ds.Source, ds.Notes, st})
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		fmt.Fprint(out, describeSource(ds, st))
		return nil
	},
}

func describeSource(ds *dataset.Dataset, st *dataset.Stats) string {
	var b strings.Builder
	src := ds.Source
	b.WriteString("[SOURCE]\n")
	b.WriteString(fmt.Sprintf("Path: %s\n", src.Path))
	b.WriteString(fmt.Sprintf("Format: %s", src.Format))
	if src.Encoding != "" {
		b.WriteString(fmt.Sprintf(", encoding %s", src.Encoding))
	}
	if src.Delimiter != "" {
		b.WriteString(fmt.Sprintf(", delimiter %q", src.Delimiter))
	}
	if src.Table != "" {
		b.WriteString(fmt.Sprintf(", table %s", src.Table))
	}
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Size: %d bytes\n", src.Size))
	if !src.Modified.IsZero() {
		b.WriteString(fmt.Sprintf("Modified: %s\n", src.Modified.UTC().Format(time.RFC3339)))
	}
	b.WriteString(fmt.Sprintf("MD5: %s\nSHA-1: %s\nSHA-256: %s\n", src.MD5, src.SHA1, src.SHA256))
	for _, n := range ds.Notes {
		b.WriteString(fmt.Sprintf("Note: %s\n", n))
	}

	b.WriteString("\n[SCHEMA]\n")
	b.WriteString(fmt.Sprintf("Rows: %d\nColumns: %d (numeric %d, text %d, datetime %d)\n",
		st.Rows, st.Columns, st.NumericColumns, st.TextColumns, st.DatetimeColumns))
	b.WriteString(fmt.Sprintf("Missing cells: %d (%.1f%%), duplicate rows: %d (%.1f%%)\n",
		st.MissingCells, st.MissingPercentage, st.DuplicateRows, st.DuplicatePercentage))
	for _, c := range st.Profile {
		name := c.Name
		if strings.TrimSpace(name) == "" {
			name = "(unnamed)"
		}
		b.WriteString(fmt.Sprintf("- %s: %s (non-null %d, missing %d, unique %d)\n", name, c.Kind, c.NonNull, c.Missing, c.Unique))
	}
	return b.String()
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().BoolVar(&insJSON, "json", false, "print JSON instead of text")
	insSource.register(inspectCmd)
}
