// Package config handles configuration management with validation
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"ladderbot/internal/trading/ladder"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Run modes
const (
	ModeAuto = "auto"
	ModeLive = "live"
	ModeSim  = "sim"
)

// Config represents the complete configuration structure
type Config struct {
	App       AppConfig       `yaml:"app"`
	Ladder    LadderConfig    `yaml:"ladder"`
	Feed      FeedConfig      `yaml:"feed"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	EventLog  EventLogConfig  `yaml:"event_log"`
	Risk      RiskConfig      `yaml:"risk"`
	Alert     AlertConfig     `yaml:"alert"`
	System    SystemConfig    `yaml:"system"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Mode string `yaml:"mode"` // auto, live or sim
	// Gateway used outside sim mode: bridge or paper.
	Gateway string `yaml:"gateway"`
	// Cycles is how many ladder cycles to run; 0 means until stopped.
	Cycles int `yaml:"cycles"`
}

// LadderConfig contains the ladder parameters
type LadderConfig struct {
	Symbol   string  `yaml:"symbol"`
	BaseLot  float64 `yaml:"base_lot"`
	Gap      float64 `yaml:"gap"`
	TPPoints float64 `yaml:"tp_points"`
	MaxSteps int     `yaml:"max_steps"`
	// BasePrice anchors the first cycle; nil takes the first feed price.
	BasePrice    *float64      `yaml:"base_price"`
	TickInterval time.Duration `yaml:"tick_interval"`
}

// FeedConfig selects and tunes the live price source
type FeedConfig struct {
	Provider     string        `yaml:"provider"` // bridge, stream, binance or replay
	StreamURL    string        `yaml:"stream_url"`
	BinanceSym   string        `yaml:"binance_symbol"`
	ReplayFile   string        `yaml:"replay_file"`
	ReplayColumn string        `yaml:"replay_column"`
	MaxQuoteAge  time.Duration `yaml:"max_quote_age"`

	SimStartPrice float64 `yaml:"sim_start_price"`
	SimMaxStep    float64 `yaml:"sim_max_step"`
	SimSeed       int64   `yaml:"sim_seed"` // 0 seeds from the clock

	RetryAttempts int           `yaml:"retry_attempts"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`
}

// BridgeConfig describes the HTTP broker bridge
type BridgeConfig struct {
	URL       string        `yaml:"url"`
	Token     Secret        `yaml:"token"`
	Timeout   time.Duration `yaml:"timeout"`
	Magic     int           `yaml:"magic"`
	Comment   string        `yaml:"comment"`
	Deviation int           `yaml:"deviation"`
	RateLimit float64       `yaml:"rate_limit"`
	RateBurst int           `yaml:"rate_burst"`
}

// EventLogConfig contains audit log destinations
type EventLogConfig struct {
	CSVFile    string `yaml:"csv_file"`
	SQLiteFile string `yaml:"sqlite_file"`
}

// RiskConfig contains pre-flight and restart limits. Zero disables a limit.
type RiskConfig struct {
	MaxTotalLot          float64       `yaml:"max_total_lot"`
	MaxConsecutiveLosses int           `yaml:"max_consecutive_losses"`
	MaxDrawdown          float64       `yaml:"max_drawdown"`
	Cooldown             time.Duration `yaml:"cooldown"`
}

// AlertConfig contains operator notification settings
type AlertConfig struct {
	TelegramToken  Secret `yaml:"telegram_token"`
	TelegramChatID string `yaml:"telegram_chat_id"`
	SlackWebhook   Secret `yaml:"slack_webhook"`
	PoolSize       int    `yaml:"pool_size"`
}

// SystemConfig contains system settings
type SystemConfig struct {
	LogLevel      string `yaml:"log_level"`
	LogFile       string `yaml:"log_file"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb"`
	LogMaxBackups int    `yaml:"log_max_backups"`
	LogMaxAgeDays int    `yaml:"log_max_age_days"`
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	MetricsPort   int  `yaml:"metrics_port"`
	EnableMetrics bool `yaml:"enable_metrics"`
	TraceStdout   bool `yaml:"trace_stdout"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig loads configuration from a YAML file with environment variable
// expansion. Missing keys keep their DefaultConfig values.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	var errs []string
	for _, check := range []func() error{
		c.validateAppConfig,
		c.validateLadderConfig,
		c.validateFeedConfig,
		c.validateBridgeConfig,
		c.validateSystemConfig,
		c.validateRiskConfig,
	} {
		if err := check(); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errs, "\n"))
	}
	return nil
}

func (c *Config) validateAppConfig() error {
	modes := []string{ModeAuto, ModeLive, ModeSim}
	if !contains(modes, c.App.Mode) {
		return ValidationError{
			Field:   "app.mode",
			Value:   c.App.Mode,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(modes, ", ")),
		}
	}
	if !contains([]string{"bridge", "paper"}, c.App.Gateway) {
		return ValidationError{Field: "app.gateway", Value: c.App.Gateway, Message: "must be bridge or paper"}
	}
	if c.App.Cycles < 0 {
		return ValidationError{Field: "app.cycles", Value: c.App.Cycles, Message: "must be >= 0"}
	}
	return nil
}

func (c *Config) validateLadderConfig() error {
	if c.Ladder.Symbol == "" {
		return ValidationError{Field: "ladder.symbol", Message: "symbol is required"}
	}
	if err := c.LadderParams().Validate(); err != nil {
		return ValidationError{Field: "ladder", Message: err.Error()}
	}
	if c.Ladder.BasePrice != nil && *c.Ladder.BasePrice <= 0 {
		return ValidationError{Field: "ladder.base_price", Value: *c.Ladder.BasePrice, Message: "must be positive when set"}
	}
	if c.Ladder.TickInterval <= 0 {
		return ValidationError{Field: "ladder.tick_interval", Value: c.Ladder.TickInterval, Message: "must be positive"}
	}
	return nil
}

// Live components are only mandatory in live mode; auto falls back to the
// synthetic feed when they are missing.
func (c *Config) validateFeedConfig() error {
	if c.App.Mode != ModeLive {
		return nil
	}

	switch c.Feed.Provider {
	case "bridge":
		if c.Bridge.URL == "" {
			return ValidationError{Field: "bridge.url", Message: "required for the bridge feed"}
		}
	case "stream":
		if c.Feed.StreamURL == "" {
			return ValidationError{Field: "feed.stream_url", Message: "required for the stream feed"}
		}
	case "binance":
		if c.Feed.BinanceSym == "" {
			return ValidationError{Field: "feed.binance_symbol", Message: "required for the binance feed"}
		}
	case "replay":
		if c.Feed.ReplayFile == "" {
			return ValidationError{Field: "feed.replay_file", Message: "required for the replay feed"}
		}
	default:
		return ValidationError{
			Field:   "feed.provider",
			Value:   c.Feed.Provider,
			Message: "must be one of: bridge, stream, binance, replay",
		}
	}
	return nil
}

func (c *Config) validateBridgeConfig() error {
	if c.App.Mode == ModeLive && c.App.Gateway == "bridge" && c.Bridge.URL == "" {
		return ValidationError{Field: "bridge.url", Message: "required for the bridge gateway"}
	}
	return nil
}

func (c *Config) validateSystemConfig() error {
	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if !contains(validLevels, strings.ToUpper(c.System.LogLevel)) {
		return ValidationError{
			Field:   "system.log_level",
			Value:   c.System.LogLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", ")),
		}
	}
	return nil
}

func (c *Config) validateRiskConfig() error {
	if c.Risk.MaxTotalLot < 0 {
		return ValidationError{Field: "risk.max_total_lot", Value: c.Risk.MaxTotalLot, Message: "must be >= 0"}
	}
	if c.Risk.MaxConsecutiveLosses < 0 {
		return ValidationError{Field: "risk.max_consecutive_losses", Value: c.Risk.MaxConsecutiveLosses, Message: "must be >= 0"}
	}
	if c.Risk.MaxDrawdown < 0 {
		return ValidationError{Field: "risk.max_drawdown", Value: c.Risk.MaxDrawdown, Message: "must be >= 0"}
	}
	if c.Risk.Cooldown < 0 {
		return ValidationError{Field: "risk.cooldown", Value: c.Risk.Cooldown, Message: "must be >= 0"}
	}
	return nil
}

// LiveConfigured reports whether the live feed and gateway have everything
// they need, which is what auto mode checks before going live.
func (c *Config) LiveConfigured() bool {
	live := *c
	live.App.Mode = ModeLive
	return live.validateFeedConfig() == nil && live.validateBridgeConfig() == nil
}

// LadderParams converts the ladder section into engine parameters
func (c *Config) LadderParams() ladder.Params {
	return ladder.Params{
		BaseLot:  decimal.NewFromFloat(c.Ladder.BaseLot),
		Gap:      decimal.NewFromFloat(c.Ladder.Gap),
		TPPoints: decimal.NewFromFloat(c.Ladder.TPPoints),
		MaxSteps: c.Ladder.MaxSteps,
	}
}

// String returns a YAML representation with secrets redacted
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}

func expandEnvVars(s string) string {
	return os.Expand(s, os.Getenv)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// DefaultConfig returns the stock XAUUSD ladder running on the synthetic feed
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Mode:    ModeAuto,
			Gateway: "bridge",
			Cycles:  1,
		},
		Ladder: LadderConfig{
			Symbol:       "XAUUSD",
			BaseLot:      0.01,
			Gap:          3.0,
			TPPoints:     5.0,
			MaxSteps:     6,
			TickInterval: time.Second,
		},
		Feed: FeedConfig{
			Provider:      "bridge",
			MaxQuoteAge:   10 * time.Second,
			SimStartPrice: 3300.0,
			SimMaxStep:    2.0,
			RetryAttempts: 3,
			RetryBackoff:  time.Second,
		},
		Bridge: BridgeConfig{
			Timeout:   5 * time.Second,
			Magic:     123456,
			Comment:   "GoldBotAuto",
			Deviation: 20,
			RateLimit: 5,
			RateBurst: 10,
		},
		EventLog: EventLogConfig{
			CSVFile: "trade_log.csv",
		},
		Alert: AlertConfig{
			PoolSize: 2,
		},
		System: SystemConfig{
			LogLevel: "INFO",
		},
		Telemetry: TelemetryConfig{
			MetricsPort:   9090,
			EnableMetrics: true,
		},
	}
}
