package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/tabscan/internal/config"
	"github.com/KaramelBytes/tabscan/internal/engine"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set tabscan configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := currentConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "seed: %d\n", c.Seed)
		fmt.Fprintf(out, "isolation_trees: %d\n", c.IsolationTrees)
		fmt.Fprintf(out, "date_keywords: %s\n", strings.Join(c.DateKeywords, ","))
		fmt.Fprintf(out, "max_rows: %d\n", c.MaxRows)
		fmt.Fprintf(out, "strategy_timeout_sec: %d\n", c.StrategyTimeoutSec)
		if len(c.Timeouts) > 0 {
			names := make([]string, 0, len(c.Timeouts))
			for k := range c.Timeouts {
				names = append(names, k)
			}
			sort.Strings(names)
			for _, k := range names {
				fmt.Fprintf(out, "timeouts.%s: %d\n", k, c.Timeouts[k])
			}
		}
		if len(c.Skip) > 0 {
			fmt.Fprintf(out, "skip: %s\n", strings.Join(c.Skip, ","))
		}
		fmt.Fprintf(out, "log_level: %s\n", c.LogLevel)
		fmt.Fprintf(out, "log_format: %s\n", c.LogFormat)
		if c.LogFile != "" {
			fmt.Fprintf(out, "log_file: %s\n", c.LogFile)
		}
		fmt.Fprintf(out, "output_format: %s\n", c.OutputFormat)
		if c.MetricsFile != "" {
			fmt.Fprintf(out, "metrics_file: %s\n", c.MetricsFile)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Long: `Set a config value and save to disk. Per-strategy time limits use the key
timeouts.<strategy>, e.g. "tabscan config set timeouts.density 30".`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := currentConfig()
		if err != nil {
			return err
		}
		if err := applySetting(c, args[0], args[1]); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func applySetting(c *cfgpkg.Global, key, val string) error {
	if name, ok := strings.CutPrefix(key, "timeouts."); ok {
		if !isStrategy(name) {
			return fmt.Errorf("unknown strategy: %s (use %s)", name, strings.Join(engine.Strategies, ","))
		}
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for %s: %v", key, val)
		}
		if c.Timeouts == nil {
			c.Timeouts = map[string]int{}
		}
		if i == 0 {
			delete(c.Timeouts, name)
		} else {
			c.Timeouts[name] = i
		}
		return nil
	}
	switch key {
	case "seed":
		i, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid int for seed: %w", err)
		}
		c.Seed = i
	case "isolation_trees":
		i, err := strconv.Atoi(val)
		if err != nil || i < 100 {
			return fmt.Errorf("invalid isolation_trees: %v (minimum 100)", val)
		}
		c.IsolationTrees = i
	case "date_keywords":
		c.DateKeywords = splitList(val)
		if len(c.DateKeywords) == 0 {
			return fmt.Errorf("date_keywords cannot be empty")
		}
	case "max_rows":
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for max_rows: %v", val)
		}
		c.MaxRows = i
	case "strategy_timeout_sec":
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for strategy_timeout_sec: %v", val)
		}
		c.StrategyTimeoutSec = i
	case "skip":
		list := splitList(val)
		for _, s := range list {
			if !isStrategy(s) {
				return fmt.Errorf("unknown strategy: %s (use %s)", s, strings.Join(engine.Strategies, ","))
			}
		}
		c.Skip = list
	case "log_level":
		switch val {
		case "debug", "info", "warn", "error":
			c.LogLevel = val
		default:
			return fmt.Errorf("invalid log_level: %s (use debug|info|warn|error)", val)
		}
	case "log_format":
		switch val {
		case "console", "json":
			c.LogFormat = val
		default:
			return fmt.Errorf("invalid log_format: %s (use console or json)", val)
		}
	case "log_file":
		c.LogFile = val
	case "output_format":
		f, err := engine.NormalizeFormat(val)
		if err != nil {
			return err
		}
		c.OutputFormat = f
	case "metrics_file":
		c.MetricsFile = val
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
