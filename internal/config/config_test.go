package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rewired-gh/polyedge/internal/sizing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAndValidate(t *testing.T) {
	path := writeConfig(t, `
mode: strict

polymarket:
  api_base_url: "https://gamma-api.polymarket.com"
  poll_interval: 30m
  timeout: 15s

scanner:
  analyze_top: 5
  bankroll: 500
  notify_cooldown: 12h

forecast:
  mode: static
  probabilities:
    "12345": 0.62
    "67890": 35

telegram:
  bot_token: "test_token"
  chat_id: "12345"
  enabled: true

storage:
  db_path: "./data/test.db"

logging:
  level: "debug"
  format: "text"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Polymarket.PollInterval != 30*time.Minute {
		t.Errorf("PollInterval = %v, want 30m", cfg.Polymarket.PollInterval)
	}
	if cfg.Scanner.AnalyzeTop != 5 || cfg.Scanner.Bankroll != 500 || cfg.Scanner.NotifyCooldown != 12*time.Hour {
		t.Errorf("Scanner = %+v", cfg.Scanner)
	}
	if cfg.Scanner.Concurrency != 4 {
		t.Errorf("Scanner.Concurrency = %d, want default 4", cfg.Scanner.Concurrency)
	}
	if cfg.Filter.MinTotalVolume != 150_000 || cfg.Filter.MinDaysToResolution != 30 {
		t.Errorf("Filter = %+v, want strict preset", cfg.Filter)
	}
	if cfg.Edge.MinEdgePercent != 5 || cfg.Edge.RelaxedMode {
		t.Errorf("Edge = %+v, want strict preset", cfg.Edge)
	}
	if cfg.Position != sizing.DefaultConfig() {
		t.Errorf("Position = %+v, want %+v", cfg.Position, sizing.DefaultConfig())
	}
	if !cfg.Bracket.Enabled || cfg.Bracket.MaxExpectedWins != 2 {
		t.Errorf("Bracket = %+v", cfg.Bracket)
	}
	if cfg.Forecast.Probabilities["12345"] != 0.62 || cfg.Forecast.Probabilities["67890"] != 35 {
		t.Errorf("Forecast.Probabilities = %v", cfg.Forecast.Probabilities)
	}
	if cfg.Telegram.MaxRetries != 3 || cfg.Telegram.DailySummaryCron != "0 9 * * *" {
		t.Errorf("Telegram = %+v", cfg.Telegram)
	}
	if cfg.Storage.MaxDecisions != 10000 {
		t.Errorf("Storage.MaxDecisions = %d, want 10000", cfg.Storage.MaxDecisions)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestLoad_ModePresets(t *testing.T) {
	path := writeConfig(t, `
mode: eoy
scanner:
  bankroll: 40
filter:
  min_total_volume: 99000
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Filter.MinTotalVolume != 99000 {
		t.Errorf("Filter.MinTotalVolume = %v, want explicit 99000", cfg.Filter.MinTotalVolume)
	}
	if cfg.Filter.MaxDaysToResolution != 30 || !cfg.Filter.EOYMode || len(cfg.Filter.PriorityCategories) == 0 {
		t.Errorf("Filter = %+v, want eoy preset for unset keys", cfg.Filter)
	}
	if !cfg.Edge.RelaxedMode {
		t.Error("Edge.RelaxedMode = false, want true in eoy mode")
	}
	if cfg.Position.MaxPositionPercent != 5 || cfg.Position.MinPositionUSD != 0.5 {
		t.Errorf("Position = %+v, want small-bankroll limits", cfg.Position)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("POLYEDGE_TELEGRAM_BOT_TOKEN", "from-env")
	t.Setenv("POLYEDGE_SCANNER_BANKROLL", "2500")

	cfg, err := Load(writeConfig(t, "mode: strict\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Telegram.BotToken != "from-env" {
		t.Errorf("Telegram.BotToken = %q, want from-env", cfg.Telegram.BotToken)
	}
	if cfg.Scanner.Bankroll != 2500 {
		t.Errorf("Scanner.Bankroll = %v, want 2500", cfg.Scanner.Bankroll)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() error = nil for missing file")
	}
	if _, err := Load(writeConfig(t, "mode: yolo\n")); err == nil || !strings.Contains(err.Error(), "yolo") {
		t.Errorf("Load() error = %v, want unknown mode", err)
	}
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := Load(writeConfig(t, "mode: strict\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return cfg
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantKey string
	}{
		{"unknown mode", func(c *Config) { c.Mode = "fast" }, "mode"},
		{"short poll interval", func(c *Config) { c.Polymarket.PollInterval = time.Second }, "polymarket.poll_interval"},
		{"no api url", func(c *Config) { c.Polymarket.APIBaseURL = "" }, "polymarket.api_base_url"},
		{"no concurrency", func(c *Config) { c.Scanner.Concurrency = 0 }, "scanner.concurrency"},
		{"bad filter", func(c *Config) { c.Filter.MaxHighPrice = 2 }, "filter:"},
		{"bad edge", func(c *Config) { c.Edge.LimitOrderDiscount = 1 }, "edge:"},
		{"bad position", func(c *Config) { c.Position.KellyFraction = 0 }, "position:"},
		{"bracket wins", func(c *Config) { c.Bracket.MaxExpectedWins = 0 }, "bracket.max_expected_wins"},
		{"http forecast without url", func(c *Config) { c.Forecast.Mode = "http" }, "forecast.url"},
		{"missing telegram token when enabled", func(c *Config) {
			c.Telegram.Enabled = true
			c.Telegram.ChatID = "1"
		}, "telegram.bot_token"},
		{"bad cron", func(c *Config) { c.Telegram.DailySummaryCron = "every day" }, "telegram.daily_summary_cron"},
		{"no db path", func(c *Config) { c.Storage.DBPath = "" }, "storage.db_path"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.modify(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantKey) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantKey)
			}
		})
	}
}
