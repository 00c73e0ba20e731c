package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Scanner  ScannerConfig  `mapstructure:"scanner"`
	Signals  SignalsConfig  `mapstructure:"signals"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Server   ServerConfig   `mapstructure:"server"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// APIConfig holds upstream DonutSMP API configuration. AuthKey is the
// bearer credential; it must never be logged or persisted.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	AuthKey string        `mapstructure:"auth_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ScannerConfig holds poll-loop and backfill behavior configuration
type ScannerConfig struct {
	Pages             int           `mapstructure:"pages"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	Search            string        `mapstructure:"search"`
	Sort              string        `mapstructure:"sort"`
	FullBackfill      bool          `mapstructure:"full_backfill"`
	MaxEmptyPages     int           `mapstructure:"max_empty_pages"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryBase         time.Duration `mapstructure:"retry_base"`
	RetryStep         time.Duration `mapstructure:"retry_step"`
	UnauthorizedPause time.Duration `mapstructure:"unauthorized_pause"`
}

// SignalsConfig holds statistics and detection configuration
type SignalsConfig struct {
	UnderpriceThreshold float64 `mapstructure:"underprice_threshold"` // fraction of median
	SampleCap           int     `mapstructure:"sample_cap"`
	MinObservations     int     `mapstructure:"min_observations"`
	MaxResults          int     `mapstructure:"max_results"`
}

// StorageConfig holds persistence and retention configuration
type StorageConfig struct {
	DBPath             string        `mapstructure:"db_path"`
	RetentionDays      int           `mapstructure:"retention_days"`
	CompactionInterval time.Duration `mapstructure:"compaction_interval"`
}

// ServerConfig holds the read-only reporting surface configuration
type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
	TopK           int           `mapstructure:"top_k"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	setDefaults(v)

	// Enable environment variable override
	v.SetEnvPrefix("DONUTSMP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Compatibility with the historical env names used by operators.
	_ = v.BindEnv("api.auth_key", "DONUTSMP_AUTH_KEY")
	_ = v.BindEnv("api.base_url", "DONUTSMP_BASE_URL")
	_ = v.BindEnv("storage.db_path", "DONUTSMP_DB_PATH")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "https://api.donutsmp.net")
	v.SetDefault("api.timeout", "30s")

	v.SetDefault("scanner.pages", 3)
	v.SetDefault("scanner.poll_interval", "30s")
	v.SetDefault("scanner.full_backfill", false)
	v.SetDefault("scanner.max_empty_pages", 3)
	v.SetDefault("scanner.max_retries", 3)
	v.SetDefault("scanner.retry_base", "3s")
	v.SetDefault("scanner.retry_step", "2s")
	v.SetDefault("scanner.unauthorized_pause", "5s")

	v.SetDefault("signals.underprice_threshold", 0.7) // 30% below median
	v.SetDefault("signals.sample_cap", 200)
	v.SetDefault("signals.min_observations", 5)
	v.SetDefault("signals.max_results", 200)

	v.SetDefault("storage.db_path", "./data/donutsmpah.db")
	v.SetDefault("storage.retention_days", 7)
	v.SetDefault("storage.compaction_interval", "24h")

	v.SetDefault("server.listen_addr", ":5000")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")
	v.SetDefault("telegram.top_k", 10)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.API.Timeout < time.Second {
		return fmt.Errorf("api.timeout must be at least 1 second")
	}

	if c.Scanner.Pages < 1 {
		return fmt.Errorf("scanner.pages must be at least 1")
	}
	if c.Scanner.PollInterval < time.Second {
		return fmt.Errorf("scanner.poll_interval must be at least 1 second")
	}
	if c.Scanner.MaxEmptyPages < 1 {
		return fmt.Errorf("scanner.max_empty_pages must be at least 1")
	}
	if c.Scanner.MaxRetries < 0 {
		return fmt.Errorf("scanner.max_retries must not be negative")
	}

	if c.Signals.UnderpriceThreshold <= 0.0 || c.Signals.UnderpriceThreshold >= 1.0 {
		return fmt.Errorf("signals.underprice_threshold must be between 0.0 and 1.0 exclusive")
	}
	if c.Signals.SampleCap < 3 {
		return fmt.Errorf("signals.sample_cap must be at least 3")
	}
	if c.Signals.MinObservations < 1 {
		return fmt.Errorf("signals.min_observations must be at least 1")
	}
	if c.Signals.MaxResults < 1 {
		return fmt.Errorf("signals.max_results must be at least 1")
	}

	if c.Storage.RetentionDays < 1 {
		return fmt.Errorf("storage.retention_days must be at least 1")
	}
	if c.Storage.CompactionInterval < time.Hour {
		return fmt.Errorf("storage.compaction_interval must be at least 1 hour")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

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
