package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// DatabaseConfig selects the relational backend the loader writes to and
// the dashboard reads from.
type DatabaseConfig struct {
	// Driver is "sqlite" (default, local file) or "postgres" (dashboard
	// deployments).
	Driver string `mapstructure:"driver" yaml:"driver"`

	// DSN is the driver-specific connection string: a file path for
	// sqlite, a pgx URL for postgres.
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// SourceConfig holds the connection settings for the outline service.
type SourceConfig struct {
	// BaseURL is the root URL of the outline service.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// CacheDir holds cached API responses, reused with sync --cached.
	CacheDir string `mapstructure:"cache_dir" yaml:"cache_dir"`

	// HistoryDir holds timestamped tree snapshots.
	HistoryDir string `mapstructure:"history_dir" yaml:"history_dir"`

	// TimeoutSec bounds a single fetch request.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// BudgetConfig holds planning budgets consumed by reports.
type BudgetConfig struct {
	// DailyStoryPoints is the per-day story point budget, in 15-minute
	// units.
	DailyStoryPoints int `mapstructure:"daily_story_points" yaml:"daily_story_points"`
}

// TagConfig defines the tag grammar: marker characters and the mapping
// from tag identifiers to categories. All of it is externally supplied so
// the grammar can follow whatever conventions the outline uses.
type TagConfig struct {
	// Marker introduces directive tags (default "#").
	Marker string `mapstructure:"marker" yaml:"marker"`

	// ContextMarker introduces context labels (default "@").
	ContextMarker string `mapstructure:"context_marker" yaml:"context_marker"`

	// StoryPointSuffix follows the numeric value in a story point tag
	// (default "STP", so "#4STP" = 4 units of 15 minutes).
	StoryPointSuffix string `mapstructure:"story_point_suffix" yaml:"story_point_suffix"`

	// Kinds maps tag identifiers to an item kind ("goal" or "action").
	Kinds map[string]string `mapstructure:"kinds" yaml:"kinds"`

	// Timeframes maps goal tag identifiers to their planning horizon.
	Timeframes map[string]string `mapstructure:"timeframes" yaml:"timeframes"`

	// Recurrences maps tag identifiers to a recurrence rule.
	Recurrences map[string]string `mapstructure:"recurrences" yaml:"recurrences"`

	// Flags maps tag identifiers to boolean item flags
	// ("milestone", "ondeck").
	Flags map[string]string `mapstructure:"flags" yaml:"flags"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Source   SourceConfig   `mapstructure:"source" yaml:"source"`
	Budget   BudgetConfig   `mapstructure:"budget" yaml:"budget"`
	Tags     TagConfig      `mapstructure:"tags" yaml:"tags"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/outline-metrics/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "outline-metrics", "config.yaml")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "outline-metrics")
}

// DefaultAppConfig returns the configuration used when no file exists:
// a local sqlite database, the standard Workflowy tag conventions, and a
// 48-unit (12-hour) daily budget.
func DefaultAppConfig() *AppConfig {
	data := defaultDataDir()
	return &AppConfig{
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    filepath.Join(data, "outline.db"),
		},
		Source: SourceConfig{
			BaseURL:    "https://workflowy.com",
			CacheDir:   filepath.Join(data, "cache"),
			HistoryDir: filepath.Join(data, "history"),
			TimeoutSec: 30,
		},
		Budget: BudgetConfig{DailyStoryPoints: 48},
		Tags: TagConfig{
			Marker:           "#",
			ContextMarker:    "@",
			StoryPointSuffix: "STP",
			Kinds: map[string]string{
				"Action":      "action",
				"WeekGoal":    "goal",
				"MonthGoal":   "goal",
				"QuarterGoal": "goal",
				"AnnualGoal":  "goal",
			},
			Timeframes: map[string]string{
				"WeekGoal":    TimeframeWeek,
				"MonthGoal":   TimeframeMonth,
				"QuarterGoal": TimeframeQuarter,
				"AnnualGoal":  TimeframeAnnual,
			},
			Recurrences: map[string]string{
				"Daily":     string(RecurrenceDaily),
				"Weekly":    string(RecurrenceWeekly),
				"Monthly":   string(RecurrenceMonthly),
				"Quarterly": string(RecurrenceQuarterly),
				"Annually":  string(RecurrenceAnnually),
			},
			Flags: map[string]string{
				"Milestone": "milestone",
				"OnDeck":    "ondeck",
			},
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns the default configuration. The
// returned configuration is already validated; an invalid file is fatal
// for the caller before any I/O happens.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return DefaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := DefaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("database", cfg.Database)
	v.Set("source", cfg.Source)
	v.Set("budget", cfg.Budget)
	v.Set("tags", cfg.Tags)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

// Validate checks the configuration before any I/O happens. Every error
// here is fatal at startup.
func (c *AppConfig) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn must not be empty")
	}
	if c.Budget.DailyStoryPoints <= 0 {
		return fmt.Errorf("daily story point budget must be positive, got %d",
			c.Budget.DailyStoryPoints)
	}
	if len(c.Tags.Marker) != 1 {
		return fmt.Errorf("tag marker must be a single character, got %q", c.Tags.Marker)
	}
	if len(c.Tags.ContextMarker) != 1 {
		return fmt.Errorf("context marker must be a single character, got %q",
			c.Tags.ContextMarker)
	}
	if c.Tags.Marker == c.Tags.ContextMarker {
		return fmt.Errorf("tag marker and context marker must differ")
	}
	if c.Tags.StoryPointSuffix == "" {
		return fmt.Errorf("story point suffix must not be empty")
	}
	if len(c.Tags.Kinds) == 0 {
		return fmt.Errorf("tag kind mapping must not be empty")
	}
	if len(c.Tags.Recurrences) == 0 {
		return fmt.Errorf("tag recurrence mapping must not be empty")
	}
	for tag, kind := range c.Tags.Kinds {
		switch kind {
		case "goal", "action":
		default:
			return fmt.Errorf("tag %q maps to unknown kind %q", tag, kind)
		}
	}
	for tag, rec := range c.Tags.Recurrences {
		switch Recurrence(rec) {
		case RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly,
			RecurrenceQuarterly, RecurrenceAnnually:
		default:
			return fmt.Errorf("tag %q maps to unknown recurrence %q", tag, rec)
		}
	}
	return nil
}
