package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const fullYAML = `
platform: slack
channel: C0GENERAL

slack:
  bot_token: xoxb-test-bot
  app_token: xapp-test-app

batch:
  timeout_seconds: 15

recovery:
  lookback_seconds: 45
  min_check_interval_seconds: 20
  max_processed: 5000

processor:
  endpoint: http://127.0.0.1:9000/process
  timeout_seconds: 8
  retries: 5

database:
  driver: mysql
  dsn: swb:swb@tcp(10.0.0.5:3306)/switchboard?parseTime=true

web:
  addr: :8080
  digest_cron: "0 9 * * *"
`

const minimalYAML = `
slack:
  bot_token: xoxb-min
  app_token: xapp-min
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Platform != "slack" {
		t.Errorf("Platform = %q, want slack", cfg.Platform)
	}
	if cfg.Channel != "C0GENERAL" {
		t.Errorf("Channel = %q, want C0GENERAL", cfg.Channel)
	}
	if cfg.Slack.BotToken != "xoxb-test-bot" {
		t.Errorf("Slack.BotToken = %q", cfg.Slack.BotToken)
	}
	if cfg.Batch.Timeout() != 15*time.Second {
		t.Errorf("Batch.Timeout() = %v, want 15s", cfg.Batch.Timeout())
	}
	if cfg.Recovery.Lookback() != 45*time.Second {
		t.Errorf("Recovery.Lookback() = %v, want 45s", cfg.Recovery.Lookback())
	}
	if cfg.Recovery.MinCheckInterval() != 20*time.Second {
		t.Errorf("Recovery.MinCheckInterval() = %v, want 20s", cfg.Recovery.MinCheckInterval())
	}
	if cfg.Recovery.MaxProcessed != 5000 {
		t.Errorf("Recovery.MaxProcessed = %d, want 5000", cfg.Recovery.MaxProcessed)
	}
	if cfg.Processor.Endpoint != "http://127.0.0.1:9000/process" {
		t.Errorf("Processor.Endpoint = %q", cfg.Processor.Endpoint)
	}
	if cfg.Processor.Timeout() != 8*time.Second {
		t.Errorf("Processor.Timeout() = %v, want 8s", cfg.Processor.Timeout())
	}
	if cfg.Processor.Retries != 5 {
		t.Errorf("Processor.Retries = %d, want 5", cfg.Processor.Retries)
	}
	if cfg.Database.Driver != "mysql" {
		t.Errorf("Database.Driver = %q, want mysql", cfg.Database.Driver)
	}
	if cfg.Web.Addr != ":8080" {
		t.Errorf("Web.Addr = %q, want :8080", cfg.Web.Addr)
	}
	if cfg.Web.DigestCron != "0 9 * * *" {
		t.Errorf("Web.DigestCron = %q", cfg.Web.DigestCron)
	}
}

func TestParse_MinimalConfigDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Platform != "slack" {
		t.Errorf("Platform default = %q, want slack", cfg.Platform)
	}
	if cfg.Batch.TimeoutSeconds != 20 {
		t.Errorf("Batch.TimeoutSeconds default = %d, want 20", cfg.Batch.TimeoutSeconds)
	}
	if cfg.Recovery.LookbackSeconds != 30 {
		t.Errorf("Recovery.LookbackSeconds default = %d, want 30", cfg.Recovery.LookbackSeconds)
	}
	if cfg.Recovery.MinCheckIntervalSeconds != 25 {
		t.Errorf("Recovery.MinCheckIntervalSeconds default = %d, want 25", cfg.Recovery.MinCheckIntervalSeconds)
	}
	if cfg.Recovery.MaxProcessed != 10000 {
		t.Errorf("Recovery.MaxProcessed default = %d, want 10000", cfg.Recovery.MaxProcessed)
	}
	if cfg.Processor.TimeoutSeconds != 10 {
		t.Errorf("Processor.TimeoutSeconds default = %d, want 10", cfg.Processor.TimeoutSeconds)
	}
	if cfg.Processor.Retries != 3 {
		t.Errorf("Processor.Retries default = %d, want 3", cfg.Processor.Retries)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver default = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Database.Path != "switchboard.db" {
		t.Errorf("Database.Path default = %q, want switchboard.db", cfg.Database.Path)
	}
	if cfg.Processor.Endpoint != "" {
		t.Errorf("Processor.Endpoint default = %q, want empty (mock)", cfg.Processor.Endpoint)
	}
}

func TestParse_EnvOverridesTokens(t *testing.T) {
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-from-env")
	t.Setenv("SLACK_APP_TOKEN", "xapp-from-env")

	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Slack.BotToken != "xoxb-from-env" {
		t.Errorf("Slack.BotToken = %q, want env value", cfg.Slack.BotToken)
	}
	if cfg.Slack.AppToken != "xapp-from-env" {
		t.Errorf("Slack.AppToken = %q, want env value", cfg.Slack.AppToken)
	}
}

func TestParse_DiscordRequiresToken(t *testing.T) {
	_, err := Parse([]byte("platform: discord\n"))
	if err == nil {
		t.Fatalf("expected error for discord without token")
	}
	if !strings.Contains(err.Error(), "discord.bot_token") {
		t.Errorf("error = %v, want mention of discord.bot_token", err)
	}

	t.Setenv("DISCORD_BOT_TOKEN", "discord-env-token")
	cfg, err := Parse([]byte("platform: discord\n"))
	if err != nil {
		t.Fatalf("unexpected error with env token: %v", err)
	}
	if cfg.Discord.BotToken != "discord-env-token" {
		t.Errorf("Discord.BotToken = %q, want env value", cfg.Discord.BotToken)
	}
}

func TestParse_RejectsUnknownPlatform(t *testing.T) {
	_, err := Parse([]byte("platform: irc\n"))
	if err == nil {
		t.Fatalf("expected error for unknown platform")
	}
	if !strings.Contains(err.Error(), "platform") {
		t.Errorf("error = %v, want mention of platform", err)
	}
}

func TestParse_MysqlRequiresDSN(t *testing.T) {
	_, err := Parse([]byte(minimalYAML + "\ndatabase:\n  driver: mysql\n"))
	if err == nil {
		t.Fatalf("expected error for mysql without dsn")
	}
	if !strings.Contains(err.Error(), "database.dsn") {
		t.Errorf("error = %v, want mention of database.dsn", err)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("platform: [unterminated"))
	if err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(fullYAML), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Channel != "C0GENERAL" {
		t.Errorf("Channel = %q, want C0GENERAL", cfg.Channel)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}
