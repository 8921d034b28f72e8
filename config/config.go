// Package config loads the settings shared by the worldtest binaries.
package config

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/zond/worldtest"
	"github.com/zond/worldtest/geom"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Engine   EngineConfig   `yaml:"engine"`
	Logging  LoggingConfig  `yaml:"logging"`
	Reports  ReportsConfig  `yaml:"reports"`
	Console  ConsoleConfig  `yaml:"console"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Template TemplateConfig `yaml:"templates"`
}

type EngineConfig struct {
	// TickRate is the wall time between world ticks.
	TickRate    time.Duration `yaml:"tick_rate"`
	RowWidth    int           `yaml:"row_width"`
	Rotation    geom.Rotation `yaml:"rotation"`
	Origin      geom.Pos      `yaml:"origin"`
	ClearRadius int           `yaml:"clear_radius"`
	MaxCommands int           `yaml:"max_commands"`
}

type LoggingConfig struct {
	// File is where the log goes. Empty means stderr.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
	Stacks     bool   `yaml:"stacks"`
}

type ReportsConfig struct {
	// Empty paths disable the corresponding sink.
	JUnit   string `yaml:"junit"`
	Journal string `yaml:"journal"`
	History string `yaml:"history"`
	// HistoryKeep is how many runs the history keeps. 0 keeps every run.
	HistoryKeep int  `yaml:"history_keep"`
	Table       bool `yaml:"table"`
}

type ConsoleConfig struct {
	Addr string `yaml:"addr"`
	// Dir holds the host key.
	Dir string `yaml:"dir"`
}

type MetricsConfig struct {
	// Addr is where /metrics is served. Empty disables it.
	Addr string `yaml:"addr"`
}

type TemplateConfig struct {
	CacheTTL  time.Duration `yaml:"cache_ttl"`
	CacheSize int           `yaml:"cache_size"`
}

func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			TickRate:    50 * time.Millisecond,
			RowWidth:    8,
			Rotation:    geom.RotateNone,
			ClearRadius: 200,
			MaxCommands: 1000,
		},
		Logging: LoggingConfig{
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Reports: ReportsConfig{
			HistoryKeep: 1000,
		},
		Console: ConsoleConfig{
			Addr: "127.0.0.1:15100",
			Dir:  filepath.Join(os.Getenv("HOME"), ".worldtest"),
		},
		Template: TemplateConfig{
			CacheTTL:  time.Minute,
			CacheSize: 1000,
		},
	}
}

// Load reads path on top of the defaults. A missing file is not an error
// when allowMissing is set.
func Load(path string, allowMissing bool) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) && allowMissing {
		return cfg, nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "reading config %q", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config %q", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Engine.TickRate <= 0 {
		return errors.Errorf("tick_rate must be positive, got %v", c.Engine.TickRate)
	}
	if c.Engine.RowWidth < 1 {
		return errors.Errorf("row_width must be positive, got %d", c.Engine.RowWidth)
	}
	if c.Engine.ClearRadius < 1 {
		return errors.Errorf("clear_radius must be positive, got %d", c.Engine.ClearRadius)
	}
	if c.Engine.MaxCommands < 1 {
		return errors.Errorf("max_commands must be positive, got %d", c.Engine.MaxCommands)
	}
	if c.Reports.HistoryKeep < 0 {
		return errors.Errorf("history_keep must not be negative, got %d", c.Reports.HistoryKeep)
	}
	if c.Template.CacheSize < 0 {
		return errors.Errorf("cache_size must not be negative, got %d", c.Template.CacheSize)
	}
	return nil
}

// Marshal renders the config as YAML.
func (c *Config) Marshal() ([]byte, error) {
	b, err := yaml.Marshal(c)
	return b, worldtest.WithStack(err)
}

// LogOutput returns the writer the log should go to.
func (l LoggingConfig) LogOutput() io.Writer {
	if l.File == "" {
		return os.Stderr
	}
	return &lumberjack.Logger{
		Filename:   l.File,
		MaxSize:    l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAge:     l.MaxAgeDays,
		Compress:   l.Compress,
	}
}

// Apply points the standard logger at the configured output.
func (l LoggingConfig) Apply() {
	log.SetOutput(l.LogOutput())
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
}
