// Package config loads the immutable process configuration: bot credentials,
// admin list, channel gate, the service catalog, and ledger tunables.
// The configuration is read once at startup and passed explicitly to the
// components that need it — nothing reads ambient global state.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/selloriy/selloriy/internal/domain"
)

// Config is the full process configuration.
type Config struct {
	Bot      BotConfig             `toml:"bot"`
	API      APIConfig             `toml:"api"`
	Storage  StorageConfig         `toml:"storage"`
	Ledger   LedgerConfig          `toml:"ledger"`
	Channels []ChannelConfig       `toml:"channels"`
	Services []domain.CatalogEntry `toml:"services"`
	Log      LogConfig             `toml:"log"`
}

// BotConfig configures the Telegram transport.
type BotConfig struct {
	Token               string  `toml:"token"`
	AdminIDs            []int64 `toml:"admin_ids"`
	PollTimeoutSeconds  int     `toml:"poll_timeout_seconds"`
	ConversationTimeout string  `toml:"conversation_timeout"` // Go duration, e.g. "5m"
}

// APIConfig configures the admin HTTP API.
type APIConfig struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	Token          string `toml:"token"` // bearer token for /api routes; empty disables the API
	MetricsEnabled bool   `toml:"metrics_enabled"`
}

// StorageConfig configures the SQLite store.
type StorageConfig struct {
	Path string `toml:"path"`
}

// LedgerConfig holds the point arithmetic tunables.
type LedgerConfig struct {
	// BonusRate is the level-2 bonus fraction. The bonus is
	// floor(level2_raw × BonusRate), truncated toward zero.
	BonusRate float64 `toml:"bonus_rate"`
	// RetentionDays is the activity window for the retention view.
	RetentionDays int `toml:"retention_days"`
	// LeaderboardLimit truncates the recompute-all leaderboard.
	LeaderboardLimit int `toml:"leaderboard_limit"`
}

// ChannelConfig is one subscription-gate channel. Username-less channels
// (private, invite-link only) cannot be verified through the API and are
// skipped by the gate.
type ChannelConfig struct {
	Title    string `toml:"title"`
	Username string `toml:"username"` // "@channel", empty for link-only channels
	URL      string `toml:"url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `toml:"level"`
}

// DefaultConfig returns the built-in defaults. The bot token and admin list
// have no defaults and must come from the config file.
func DefaultConfig() *Config {
	return &Config{
		Bot: BotConfig{
			PollTimeoutSeconds:  10,
			ConversationTimeout: "5m",
		},
		API: APIConfig{
			Host:           "127.0.0.1",
			Port:           8090,
			MetricsEnabled: true,
		},
		Storage: StorageConfig{
			Path: "selloriy.db",
		},
		Ledger: LedgerConfig{
			BonusRate:        0.25,
			RetentionDays:    30,
			LeaderboardLimit: 100,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the TOML file at path over the defaults and validates it.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants a running process depends on.
func (c *Config) Validate() error {
	if c.Bot.Token == "" {
		return fmt.Errorf("bot.token is required")
	}
	if len(c.Bot.AdminIDs) == 0 {
		return fmt.Errorf("bot.admin_ids must list at least one admin")
	}
	if c.Ledger.BonusRate < 0 || c.Ledger.BonusRate >= 1 {
		return fmt.Errorf("ledger.bonus_rate must be in [0, 1), got %v", c.Ledger.BonusRate)
	}
	if c.Ledger.RetentionDays <= 0 {
		return fmt.Errorf("ledger.retention_days must be positive")
	}
	seen := make(map[string]bool, len(c.Services))
	for _, svc := range c.Services {
		if svc.Key == "" {
			return fmt.Errorf("service with empty key")
		}
		if seen[svc.Key] {
			return fmt.Errorf("duplicate service key %q", svc.Key)
		}
		seen[svc.Key] = true
		if svc.Cost <= 0 {
			return fmt.Errorf("service %q: cost must be positive, got %d", svc.Key, svc.Cost)
		}
	}
	if _, err := time.ParseDuration(c.Bot.ConversationTimeout); err != nil {
		return fmt.Errorf("bot.conversation_timeout: %w", err)
	}
	return nil
}

// IsAdmin reports whether id is in the configured admin list.
func (c *Config) IsAdmin(id int64) bool {
	for _, a := range c.Bot.AdminIDs {
		if a == id {
			return true
		}
	}
	return false
}

// Service looks up a catalog entry by key.
func (c *Config) Service(key string) (domain.CatalogEntry, bool) {
	for _, svc := range c.Services {
		if svc.Key == key {
			return svc, true
		}
	}
	return domain.CatalogEntry{}, false
}

// ConversationTTL returns the parsed conversation timeout.
// Validate guarantees the string parses.
func (c *Config) ConversationTTL() time.Duration {
	d, _ := time.ParseDuration(c.Bot.ConversationTimeout)
	return d
}

// ListenAddr returns the admin API host:port.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}
