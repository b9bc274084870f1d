// Package config provides YAML-based configuration loading for chapel.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level chapel configuration, loaded from chapel.yaml.
type Config struct {
	Platform  string          `yaml:"platform"` // "telegram" or "discord"
	Telegram  TelegramConfig  `yaml:"telegram"`
	Discord   DiscordConfig   `yaml:"discord"`
	Database  DatabaseConfig  `yaml:"database"`
	Proposals ProposalConfig  `yaml:"proposals"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	FontPaths []string        `yaml:"font_paths"` // extra TTFs tried before the platform defaults
}

// TelegramConfig holds Telegram Bot API settings.
type TelegramConfig struct {
	Token string `yaml:"token"`
}

// DiscordConfig holds Discord gateway settings.
type DiscordConfig struct {
	Token string `yaml:"token"`
}

// DatabaseConfig selects and configures the backing store.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" (default) or "mysql"
	Path   string `yaml:"path"`   // sqlite file path
	User   string `yaml:"user"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Name   string `yaml:"name"`
}

// ProposalConfig tunes the proposal ledger.
type ProposalConfig struct {
	RetentionHours int    `yaml:"retention_hours"` // proposals older than this are expired
	SweepSchedule  string `yaml:"sweep_schedule"`  // optional cron expr for the background purge
}

// DashboardConfig holds settings for the read-only HTTP dashboard.
type DashboardConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Platform == "" {
		c.Platform = "telegram"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "chapel.db"
	}
	if c.Database.User == "" {
		c.Database.User = "root"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Name == "" {
		c.Database.Name = "chapel"
	}
	if c.Proposals.RetentionHours == 0 {
		c.Proposals.RetentionHours = 24
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8080
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Platform {
	case "telegram":
		if c.Telegram.Token == "" {
			errs = append(errs, "telegram.token is required")
		}
	case "discord":
		if c.Discord.Token == "" {
			errs = append(errs, "discord.token is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("platform %q is not supported (use telegram or discord)", c.Platform))
	}
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (use sqlite or mysql)", c.Database.Driver))
	}
	if c.Proposals.RetentionHours < 0 {
		errs = append(errs, "proposals.retention_hours must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
