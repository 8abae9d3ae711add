// Package config loads the techpulse YAML configuration.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/TobiSchelling/techpulse/internal/alert"
	"github.com/TobiSchelling/techpulse/internal/logging"
	"github.com/TobiSchelling/techpulse/internal/tracker"
	"github.com/TobiSchelling/techpulse/internal/ui"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

var validate = validator.New()

type Config struct {
	Input        Input           `yaml:"input"`
	Output       Output          `yaml:"output"`
	Alerts       alert.Config    `yaml:"alerts"`
	Tracker      tracker.Config  `yaml:"tracker"`
	Embedding    Embedding       `yaml:"embedding"`
	Presentation ui.Presentation `yaml:"presentation"`
	Metrics      Metrics         `yaml:"metrics"`
	Schedule     Schedule        `yaml:"schedule"`
	Logging      logging.Config  `yaml:"logging"`
}

type Input struct {
	// SourceDir holds the daily dual_feed_<date>.json cluster files.
	SourceDir string `yaml:"source_dir"`
	// ProfilesPath is the bucket_profiles.json cache for the weekly run.
	ProfilesPath string `yaml:"profiles_path"`
	// HistoryWeeks bounds the stored profile history fed to the detector.
	HistoryWeeks int `yaml:"history_weeks" default:"12" validate:"gte=1"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Embedding struct {
	Enabled   bool          `yaml:"enabled"`
	Model     string        `yaml:"model" default:"nomic-embed-text" validate:"required_if=Enabled true"`
	OllamaURL string        `yaml:"ollama_url" default:"http://localhost:11434" validate:"omitempty,url"`
	Timeout   time.Duration `yaml:"timeout" default:"120s" validate:"gte=0"`
}

type Metrics struct {
	Enabled bool `yaml:"enabled" default:"true"`
	// TextfilePath defaults to <data_dir>/metrics/techpulse.prom.
	TextfilePath string `yaml:"textfile_path"`
}

type Schedule struct {
	Daily   string        `yaml:"daily" default:"0 6 * * *" validate:"required"`
	Weekly  string        `yaml:"weekly" default:"0 7 * * 1" validate:"required"`
	Timeout time.Duration `yaml:"timeout" default:"30m" validate:"gte=0"`
}

// ConfigDir returns the XDG config directory for techpulse.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "techpulse")
}

// DataDir returns the XDG data directory for techpulse.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "techpulse")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/techpulse/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'techpulse init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := parse(nil)
	if err != nil {
		panic(fmt.Sprintf("config: built-in defaults invalid: %v", err))
	}
	return cfg
}

// parse applies defaults, overlays the YAML and validates the result.
// Defaults go first so an explicit zero in the file is kept.
func parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := c.Alerts.Validate(); err != nil {
		return err
	}
	if err := c.Tracker.Validate(); err != nil {
		return err
	}
	return c.Presentation.Validate()
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return expandHome(c.Output.DataDir)
	}
	return DataDir()
}

// GetSourceDir returns the directory holding daily cluster files.
func (c *Config) GetSourceDir() string {
	if c.Input.SourceDir != "" {
		return expandHome(c.Input.SourceDir)
	}
	return filepath.Join(c.GetDataDir(), "clusters")
}

// GetProfilesPath returns the profile cache consumed by the weekly run.
func (c *Config) GetProfilesPath() string {
	if c.Input.ProfilesPath != "" {
		return expandHome(c.Input.ProfilesPath)
	}
	return filepath.Join(c.GetDataDir(), "bucket_profiles.json")
}

// DatabasePath returns the SQLite history store path.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.GetDataDir(), "techpulse.db")
}

// SignalsDir returns the tracker state and snapshot directory.
func (c *Config) SignalsDir() string {
	return filepath.Join(c.GetDataDir(), "signals")
}

// ReportsDir returns the weekly report directory.
func (c *Config) ReportsDir() string {
	return filepath.Join(c.GetDataDir(), "reports")
}

// MetricsPath returns the Prometheus textfile path, or "" when disabled.
func (c *Config) MetricsPath() string {
	if !c.Metrics.Enabled {
		return ""
	}
	if c.Metrics.TextfilePath != "" {
		return expandHome(c.Metrics.TextfilePath)
	}
	return filepath.Join(c.GetDataDir(), "metrics", "techpulse.prom")
}

func expandHome(path string) string {
	if path == "~" {
		return homeDir()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
