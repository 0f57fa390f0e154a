package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the corresponding key is absent from the file.
const (
	DefaultMeritThreshold = 30000
	DefaultStaleAfterMs   = 86_400_000 // 24h
	DefaultCleanupDelayMs = 30_000
	DefaultPollTimeoutSec = 30
	DefaultChatAPIBaseURL = "https://api.telegram.org"
)

// Config holds the application configuration
type Config struct {
	Database struct {
		Host     string `yaml:"host"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		DBName   string `yaml:"dbname"`
		Port     string `yaml:"port"`
		SSLMode  string `yaml:"sslmode"`
	} `yaml:"database"`
	Chat struct {
		BotToken       string `yaml:"bot_token"`
		APIBaseURL     string `yaml:"api_base_url"`
		RoomID         int64  `yaml:"room_id"`
		PollTimeoutSec int    `yaml:"poll_timeout_sec"`
	} `yaml:"chat"`
	Ledger struct {
		ExplorerURL  string `yaml:"explorer_url"`
		RelayURL     string `yaml:"relay_url"`     // optional; empty disables the event feed
		EventSession string `yaml:"event_session"` // relay subscription session tag
	} `yaml:"ledger"`
	Verification struct {
		MeritThreshold uint64 `yaml:"merit_threshold"`
		StaleAfterMs   int64  `yaml:"stale_after_ms"`
		CleanupDelayMs int64  `yaml:"cleanup_delay_ms"`
	} `yaml:"verification"`
	Auth struct {
		Secret  string `yaml:"secret"`
		ExpHour int    `yaml:"exp_hour"`
	} `yaml:"auth"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
}

// DSN generates the PostgreSQL DSN from database config
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.Database.Host,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.Port,
		c.Database.SSLMode,
	)
}

// Load reads and parses the YAML configuration file, applying defaults
// for optional chat and verification settings.
func Load(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Chat.APIBaseURL == "" {
		cfg.Chat.APIBaseURL = DefaultChatAPIBaseURL
	}
	if cfg.Chat.PollTimeoutSec == 0 {
		cfg.Chat.PollTimeoutSec = DefaultPollTimeoutSec
	}
	if cfg.Verification.MeritThreshold == 0 {
		cfg.Verification.MeritThreshold = DefaultMeritThreshold
	}
	if cfg.Verification.StaleAfterMs == 0 {
		cfg.Verification.StaleAfterMs = DefaultStaleAfterMs
	}
	if cfg.Verification.CleanupDelayMs == 0 {
		cfg.Verification.CleanupDelayMs = DefaultCleanupDelayMs
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("database.dbname is required")
	}
	if c.Database.Port == "" {
		return fmt.Errorf("database.port is required")
	}
	if c.Database.SSLMode == "" {
		return fmt.Errorf("database.sslmode is required")
	}
	if c.Chat.BotToken == "" {
		return fmt.Errorf("chat.bot_token is required")
	}
	if c.Chat.RoomID == 0 {
		return fmt.Errorf("chat.room_id is required")
	}
	if c.Ledger.ExplorerURL == "" {
		return fmt.Errorf("ledger.explorer_url is required")
	}
	if c.Ledger.RelayURL != "" && c.Ledger.EventSession == "" {
		return fmt.Errorf("ledger.event_session is required when ledger.relay_url is set")
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	return nil
}
