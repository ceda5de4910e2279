// Package config provides YAML-based configuration loading for Switchboard.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Switchboard configuration, loaded from config.yaml.
type Config struct {
	Platform  string          `yaml:"platform"` // "slack" or "discord"
	Channel   string          `yaml:"channel"`  // default channel for status posts
	Slack     SlackConfig     `yaml:"slack"`
	Discord   DiscordConfig   `yaml:"discord"`
	Batch     BatchConfig     `yaml:"batch"`
	Recovery  RecoveryConfig  `yaml:"recovery"`
	Processor ProcessorConfig `yaml:"processor"`
	Database  DatabaseConfig  `yaml:"database"`
	Web       WebConfig       `yaml:"web"`
}

// SlackConfig holds Slack Socket Mode credentials. Both tokens can be
// supplied via SLACK_BOT_TOKEN and SLACK_APP_TOKEN instead of the file.
type SlackConfig struct {
	BotToken string `yaml:"bot_token"`
	AppToken string `yaml:"app_token"`
}

// DiscordConfig holds the Discord bot token. Can be supplied via
// DISCORD_BOT_TOKEN instead of the file.
type DiscordConfig struct {
	BotToken string `yaml:"bot_token"`
}

// BatchConfig controls the debounce window.
type BatchConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Timeout returns the debounce window as a duration.
func (b BatchConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// RecoveryConfig controls the pre-dispatch history reconciliation pass.
type RecoveryConfig struct {
	LookbackSeconds         int `yaml:"lookback_seconds"`
	MinCheckIntervalSeconds int `yaml:"min_check_interval_seconds"`
	MaxProcessed            int `yaml:"max_processed"`
}

// Lookback returns the history fetch window as a duration.
func (r RecoveryConfig) Lookback() time.Duration {
	return time.Duration(r.LookbackSeconds) * time.Second
}

// MinCheckInterval returns the per-channel fetch throttle as a duration.
func (r RecoveryConfig) MinCheckInterval() time.Duration {
	return time.Duration(r.MinCheckIntervalSeconds) * time.Second
}

// ProcessorConfig points at the downstream batch-processing endpoint.
// An empty endpoint selects the built-in mock processor.
type ProcessorConfig struct {
	Endpoint       string `yaml:"endpoint"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Retries        int    `yaml:"retries"`
}

// Timeout returns the per-request deadline as a duration.
func (p ProcessorConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// DatabaseConfig selects the persistence backend. Driver is "sqlite"
// (Path) or "mysql" (DSN).
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

// WebConfig controls the embedded HTTP status server. An empty Addr
// disables it.
type WebConfig struct {
	Addr       string `yaml:"addr"`
	DigestCron string `yaml:"digest_cron"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config. Environment
// variables override file-supplied tokens.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overrides secrets from the environment so tokens never need
// to live in the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("SLACK_BOT_TOKEN"); v != "" {
		c.Slack.BotToken = v
	}
	if v := os.Getenv("SLACK_APP_TOKEN"); v != "" {
		c.Slack.AppToken = v
	}
	if v := os.Getenv("DISCORD_BOT_TOKEN"); v != "" {
		c.Discord.BotToken = v
	}
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Platform == "" {
		c.Platform = "slack"
	}
	if c.Batch.TimeoutSeconds == 0 {
		c.Batch.TimeoutSeconds = 20
	}
	if c.Recovery.LookbackSeconds == 0 {
		c.Recovery.LookbackSeconds = 30
	}
	if c.Recovery.MinCheckIntervalSeconds == 0 {
		c.Recovery.MinCheckIntervalSeconds = 25
	}
	if c.Recovery.MaxProcessed == 0 {
		c.Recovery.MaxProcessed = 10000
	}
	if c.Processor.TimeoutSeconds == 0 {
		c.Processor.TimeoutSeconds = 10
	}
	if c.Processor.Retries == 0 {
		c.Processor.Retries = 3
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "switchboard.db"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Platform {
	case "slack":
		if c.Slack.BotToken == "" {
			errs = append(errs, "slack.bot_token is required (or SLACK_BOT_TOKEN)")
		}
		if c.Slack.AppToken == "" {
			errs = append(errs, "slack.app_token is required (or SLACK_APP_TOKEN)")
		}
	case "discord":
		if c.Discord.BotToken == "" {
			errs = append(errs, "discord.bot_token is required (or DISCORD_BOT_TOKEN)")
		}
	default:
		errs = append(errs, fmt.Sprintf("platform %q is not supported (use slack or discord)", c.Platform))
	}
	switch c.Database.Driver {
	case "sqlite":
		// Path defaulted above.
	case "mysql":
		if c.Database.DSN == "" {
			errs = append(errs, "database.dsn is required for the mysql driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (use sqlite or mysql)", c.Database.Driver))
	}
	if c.Batch.TimeoutSeconds < 0 {
		errs = append(errs, "batch.timeout_seconds must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
