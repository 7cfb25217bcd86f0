// Package config handles configuration file loading and parsing.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/Swind/go-display-runner/core"
)

// Default configuration values.
const (
	DefaultBackend          = "x11"
	DefaultPollInterval     = "10ms"
	DefaultLogLevel         = "info"
	DefaultMetricsNamespace = "displayrunner"
	DefaultCacheSize        = 64
	DefaultDemoWidth        = 320
	DefaultDemoHeight       = 240
	DefaultDemoFPS          = 30
)

// Backends accepted by the backend setting.
var Backends = []string{"x11", "terminal", "headless"}

// Config represents the display-runner configuration.
type Config struct {
	Backend       string        `toml:"backend" yaml:"backend"`
	PollInterval  string        `toml:"poll_interval" yaml:"poll_interval"`
	CoalesceShows bool          `toml:"coalesce_shows" yaml:"coalesce_shows"`
	LogLevel      string        `toml:"log_level" yaml:"log_level"`
	Metrics       MetricsConfig `toml:"metrics" yaml:"metrics"`
	Watch         WatchConfig   `toml:"watch" yaml:"watch"`
	Demo          DemoConfig    `toml:"demo" yaml:"demo"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Listen    string `toml:"listen" yaml:"listen"` // Empty = disabled
	Namespace string `toml:"namespace" yaml:"namespace"`
}

// WatchConfig holds options for the watch command.
type WatchConfig struct {
	Extensions []string `toml:"extensions" yaml:"extensions"`
	CacheSize  int      `toml:"cache_size" yaml:"cache_size"` // Decoded frames kept in memory
}

// DemoConfig holds options for the demo command.
type DemoConfig struct {
	Width  int `toml:"width" yaml:"width"`
	Height int `toml:"height" yaml:"height"`
	FPS    int `toml:"fps" yaml:"fps"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Backend:      DefaultBackend,
		PollInterval: DefaultPollInterval,
		LogLevel:     DefaultLogLevel,
		Metrics: MetricsConfig{
			Namespace: DefaultMetricsNamespace,
		},
		Watch: WatchConfig{
			Extensions: []string{".png", ".jpg", ".jpeg"},
			CacheSize:  DefaultCacheSize,
		},
		Demo: DemoConfig{
			Width:  DefaultDemoWidth,
			Height: DefaultDemoHeight,
			FPS:    DefaultDemoFPS,
		},
	}
}

// ConfigPath returns the path to the config file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "display-runner", "config.toml")
}

// LoadConfig loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if file doesn't exist.
//
// Files ending in .yaml or .yml are parsed as YAML, anything else as TOML.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = toml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at startup.
func (c *Config) Validate() error {
	if !isBackend(c.Backend) {
		return fmt.Errorf("unknown backend %q (want one of %s)", c.Backend, strings.Join(Backends, ", "))
	}
	if _, err := c.PollDuration(); err != nil {
		return err
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if c.Demo.Width <= 0 || c.Demo.Height <= 0 {
		return fmt.Errorf("demo size must be positive, got %dx%d", c.Demo.Width, c.Demo.Height)
	}
	if c.Demo.FPS <= 0 {
		return fmt.Errorf("demo fps must be positive, got %d", c.Demo.FPS)
	}
	return nil
}

// PollDuration parses PollInterval. An empty value means the core default.
func (c *Config) PollDuration() (time.Duration, error) {
	if c.PollInterval == "" {
		return core.DefaultPollInterval, nil
	}
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil {
		return 0, fmt.Errorf("poll_interval: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("poll_interval must be positive, got %s", d)
	}
	return d, nil
}

// SlogLevel maps LogLevel to a slog level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

// CoreConfig builds the engine configuration. Handlers are left nil so the
// caller can install its own logger and metrics.
func (c *Config) CoreConfig(name string) (*core.Config, error) {
	poll, err := c.PollDuration()
	if err != nil {
		return nil, err
	}
	return &core.Config{
		Name:          name,
		PollInterval:  poll,
		CoalesceShows: c.CoalesceShows,
	}, nil
}

// WatchesExtension reports whether a file with extension ext should be shown.
func (c *Config) WatchesExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, e := range c.Watch.Extensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

func isBackend(name string) bool {
	for _, b := range Backends {
		if b == name {
			return true
		}
	}
	return false
}
