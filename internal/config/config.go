package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/tabscan/internal/utils"
)

// Global configuration structure.
type Global struct {
	// Detector settings
	Seed           int64    `mapstructure:"seed" yaml:"seed"`
	IsolationTrees int      `mapstructure:"isolation_trees" yaml:"isolation_trees"`
	DateKeywords   []string `mapstructure:"date_keywords" yaml:"date_keywords"`

	// Loading
	MaxRows int `mapstructure:"max_rows" yaml:"max_rows"`

	// Strategy scheduling
	StrategyTimeoutSec int            `mapstructure:"strategy_timeout_sec" yaml:"strategy_timeout_sec"`
	Timeouts           map[string]int `mapstructure:"timeouts" yaml:"timeouts"`
	Skip               []string       `mapstructure:"skip" yaml:"skip"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
	LogFile   string `mapstructure:"log_file" yaml:"log_file"`

	// Output
	OutputFormat string `mapstructure:"output_format" yaml:"output_format"`
	MetricsFile  string `mapstructure:"metrics_file" yaml:"metrics_file"`
}

// Timeout returns the time limit for a strategy: its own entry in
// Timeouts, else StrategyTimeoutSec. Zero means no limit.
func (g *Global) Timeout(strategy string) time.Duration {
	if sec, ok := g.Timeouts[strategy]; ok && sec > 0 {
		return time.Duration(sec) * time.Second
	}
	if g.StrategyTimeoutSec > 0 {
		return time.Duration(g.StrategyTimeoutSec) * time.Second
	}
	return 0
}

// DefaultPath is ~/.tabscan/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".tabscan", "config.yaml"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.tabscan/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("TABSCAN")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("seed", 42)
	v.SetDefault("isolation_trees", 100)
	v.SetDefault("date_keywords", []string{"date", "time", "created", "modified"})
	v.SetDefault("max_rows", 100000)
	v.SetDefault("strategy_timeout_sec", 0)
	v.SetDefault("timeouts", map[string]int{})
	v.SetDefault("skip", []string{})
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("log_file", "")
	v.SetDefault("output_format", "markdown")
	v.SetDefault("metrics_file", "")

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		v.AddConfigPath(filepath.Join(home, ".tabscan"))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read; a missing file is not an error
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.IsolationTrees < 100 {
		c.IsolationTrees = 100
	}
	if len(c.DateKeywords) == 0 {
		c.DateKeywords = []string{"date", "time", "created", "modified"}
	}
	return &c, nil
}
