package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/rewired-gh/polyedge/internal/bracket"
	"github.com/rewired-gh/polyedge/internal/edge"
	"github.com/rewired-gh/polyedge/internal/filter"
	"github.com/rewired-gh/polyedge/internal/forecast"
	"github.com/rewired-gh/polyedge/internal/scanner"
	"github.com/rewired-gh/polyedge/internal/sizing"
)

// Config represents the complete application configuration
type Config struct {
	// Mode selects the filter, edge and position presets: strict, relaxed,
	// eoy or test. Keys set explicitly in those sections override the preset.
	Mode       string           `mapstructure:"mode"`
	Polymarket PolymarketConfig `mapstructure:"polymarket"`
	Scanner    scanner.Config   `mapstructure:"scanner"`
	Filter     filter.Config    `mapstructure:"filter"`
	Edge       edge.Config      `mapstructure:"edge"`
	Position   sizing.Config    `mapstructure:"position"`
	Bracket    bracket.Config   `mapstructure:"bracket"`
	Forecast   forecast.Config  `mapstructure:"forecast"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// PolymarketConfig holds Polymarket API configuration
type PolymarketConfig struct {
	APIBaseURL   string        `mapstructure:"api_base_url"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken         string        `mapstructure:"bot_token"`
	ChatID           string        `mapstructure:"chat_id"`
	Enabled          bool          `mapstructure:"enabled"`
	MaxRetries       int           `mapstructure:"max_retries"`
	RetryDelayBase   time.Duration `mapstructure:"retry_delay_base"`
	DailySummaryCron string        `mapstructure:"daily_summary_cron"`
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	DBPath       string `mapstructure:"db_path"`
	MaxDecisions int    `mapstructure:"max_decisions"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables. A .env file
// in the working directory, if present, is loaded into the environment first.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	// POLYEDGE_TELEGRAM_BOT_TOKEN overrides telegram.bot_token
	v.SetEnvPrefix("POLYEDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Presets depend on mode and bankroll, which are only known once the
	// file and environment have been read.
	if err := setModeDefaults(v, v.GetString("mode"), v.GetFloat64("scanner.bankroll")); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all mode-independent options
func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "strict")

	// Polymarket defaults
	v.SetDefault("polymarket.api_base_url", "https://gamma-api.polymarket.com")
	v.SetDefault("polymarket.poll_interval", "1h")
	v.SetDefault("polymarket.timeout", "30s")

	// Scanner defaults
	sc := scanner.DefaultConfig()
	v.SetDefault("scanner.max_markets", sc.MaxMarkets)
	v.SetDefault("scanner.analyze_top", sc.AnalyzeTop)
	v.SetDefault("scanner.concurrency", sc.Concurrency)
	v.SetDefault("scanner.bankroll", sc.Bankroll)
	v.SetDefault("scanner.notify_cooldown", sc.NotifyCooldown.String())

	// Bracket defaults
	bc := bracket.DefaultConfig()
	v.SetDefault("bracket.enabled", bc.Enabled)
	v.SetDefault("bracket.min_edge", bc.MinEdge)
	v.SetDefault("bracket.notional_usd", bc.NotionalUSD)
	v.SetDefault("bracket.max_expected_wins", bc.MaxExpectedWins)

	// Forecast defaults
	v.SetDefault("forecast.mode", "static")
	v.SetDefault("forecast.url", "")
	v.SetDefault("forecast.timeout", "60s")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")
	v.SetDefault("telegram.daily_summary_cron", "0 9 * * *")

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/polyedge.db")
	v.SetDefault("storage.max_decisions", 10000)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// setModeDefaults installs the filter, edge and position presets for mode as
// defaults, so that explicitly configured keys still win.
func setModeDefaults(v *viper.Viper, mode string, bankroll float64) error {
	fc, err := filter.ConfigForMode(mode)
	if err != nil {
		return fmt.Errorf("mode: %w", err)
	}
	ec, err := edge.ConfigForMode(mode)
	if err != nil {
		return fmt.Errorf("mode: %w", err)
	}
	pc := sizing.ConfigForBankroll(mode, bankroll)

	v.SetDefault("filter.min_total_volume", fc.MinTotalVolume)
	v.SetDefault("filter.min_volume_24h", fc.MinVolume24h)
	v.SetDefault("filter.min_days_to_resolution", fc.MinDaysToResolution)
	v.SetDefault("filter.max_days_to_resolution", fc.MaxDaysToResolution)
	v.SetDefault("filter.max_high_price", fc.MaxHighPrice)
	v.SetDefault("filter.min_low_price", fc.MinLowPrice)
	v.SetDefault("filter.eoy_mode", fc.EOYMode)
	v.SetDefault("filter.priority_categories", fc.PriorityCategories)

	v.SetDefault("edge.min_edge_percent", ec.MinEdgePercent)
	v.SetDefault("edge.min_edge_short_term", ec.MinEdgeShortTerm)
	v.SetDefault("edge.min_edge_sports", ec.MinEdgeSports)
	v.SetDefault("edge.short_term_days", ec.ShortTermDays)
	v.SetDefault("edge.expected_slippage", ec.ExpectedSlippage)
	v.SetDefault("edge.min_roi_short_term", ec.MinROIShortTerm)
	v.SetDefault("edge.limit_order_discount", ec.LimitOrderDiscount)
	v.SetDefault("edge.apply_sanity_caps", ec.ApplySanityCaps)
	v.SetDefault("edge.super_bowl_max_deviation", ec.SuperBowlMaxDeviation)
	v.SetDefault("edge.high_volume_guardrail", ec.HighVolumeGuardrail)
	v.SetDefault("edge.max_edge_high_volume", ec.MaxEdgeHighVolume)
	v.SetDefault("edge.relaxed_mode", ec.RelaxedMode)

	v.SetDefault("position.max_position_percent", pc.MaxPositionPercent)
	v.SetDefault("position.max_short_term_percent", pc.MaxShortTermPercent)
	v.SetDefault("position.short_term_days", pc.ShortTermDays)
	v.SetDefault("position.max_concurrent_positions", pc.MaxConcurrentPositions)
	v.SetDefault("position.max_deployed_percent", pc.MaxDeployedPercent)
	v.SetDefault("position.min_position_usd", pc.MinPositionUSD)
	v.SetDefault("position.kelly_fraction", pc.KellyFraction)
	return nil
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	switch c.Mode {
	case "strict", "relaxed", "eoy", "test":
	default:
		return fmt.Errorf("mode must be one of: strict, relaxed, eoy, test")
	}

	// Validate Polymarket config
	if c.Polymarket.APIBaseURL == "" {
		return fmt.Errorf("polymarket.api_base_url is required")
	}
	if c.Polymarket.PollInterval < 1*time.Minute {
		return fmt.Errorf("polymarket.poll_interval must be at least 1 minute")
	}
	if c.Polymarket.Timeout <= 0 {
		return fmt.Errorf("polymarket.timeout must be positive")
	}

	if err := c.Scanner.Validate(); err != nil {
		return err
	}
	if err := c.Filter.Validate(); err != nil {
		return fmt.Errorf("filter: %w", err)
	}
	if err := c.Edge.Validate(); err != nil {
		return fmt.Errorf("edge: %w", err)
	}
	if err := c.Position.Validate(); err != nil {
		return fmt.Errorf("position: %w", err)
	}

	// Validate Bracket config
	if c.Bracket.Enabled {
		if c.Bracket.MinEdge < 0 {
			return fmt.Errorf("bracket.min_edge must not be negative")
		}
		if c.Bracket.NotionalUSD <= 0 {
			return fmt.Errorf("bracket.notional_usd must be positive")
		}
		if c.Bracket.MaxExpectedWins < 1 {
			return fmt.Errorf("bracket.max_expected_wins must be at least 1")
		}
	}

	if err := c.Forecast.Validate(); err != nil {
		return err
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
		if c.Telegram.MaxRetries < 1 {
			return fmt.Errorf("telegram.max_retries must be at least 1")
		}
	}
	if c.Telegram.DailySummaryCron != "" {
		if _, err := cron.ParseStandard(c.Telegram.DailySummaryCron); err != nil {
			return fmt.Errorf("telegram.daily_summary_cron is invalid: %w", err)
		}
	}

	// Validate Storage config
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Storage.MaxDecisions < 1 {
		return fmt.Errorf("storage.max_decisions must be at least 1")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
