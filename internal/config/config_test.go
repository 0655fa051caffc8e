package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 8090 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 8090)
	}
	if cfg.Storage.Path != "selloriy.db" {
		t.Errorf("Storage.Path = %q, want %q", cfg.Storage.Path, "selloriy.db")
	}
	if cfg.Ledger.BonusRate != 0.25 {
		t.Errorf("Ledger.BonusRate = %v, want 0.25", cfg.Ledger.BonusRate)
	}
	if cfg.Ledger.RetentionDays != 30 {
		t.Errorf("Ledger.RetentionDays = %d, want 30", cfg.Ledger.RetentionDays)
	}
	if cfg.Ledger.LeaderboardLimit != 100 {
		t.Errorf("Ledger.LeaderboardLimit = %d, want 100", cfg.Ledger.LeaderboardLimit)
	}
	if cfg.Bot.ConversationTimeout != "5m" {
		t.Errorf("Bot.ConversationTimeout = %q, want %q", cfg.Bot.ConversationTimeout, "5m")
	}
}

const sampleConfig = `
[bot]
token = "123:abc"
admin_ids = [100, 200]
conversation_timeout = "10m"

[ledger]
bonus_rate = 0.25
retention_days = 14

[[channels]]
title = "Main channel"
url = "https://t.me/+invite"

[[services]]
key = "gift"
name = "Telegram Gift"
icon = "🎁"
cost = 7

[[services]]
key = "chatgpt"
name = "ChatGPT Plus"
icon = "🤖"
cost = 20
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "selloriy.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Bot.Token != "123:abc" {
		t.Errorf("Bot.Token = %q, want %q", cfg.Bot.Token, "123:abc")
	}
	if len(cfg.Bot.AdminIDs) != 2 {
		t.Fatalf("len(AdminIDs) = %d, want 2", len(cfg.Bot.AdminIDs))
	}
	if !cfg.IsAdmin(200) {
		t.Error("IsAdmin(200) = false, want true")
	}
	if cfg.IsAdmin(300) {
		t.Error("IsAdmin(300) = true, want false")
	}
	if cfg.Ledger.RetentionDays != 14 {
		t.Errorf("Ledger.RetentionDays = %d, want 14", cfg.Ledger.RetentionDays)
	}
	// Defaults survive a partial file.
	if cfg.API.Port != 8090 {
		t.Errorf("API.Port = %d, want default 8090", cfg.API.Port)
	}
	if cfg.ConversationTTL() != 10*time.Minute {
		t.Errorf("ConversationTTL() = %v, want 10m", cfg.ConversationTTL())
	}

	svc, ok := cfg.Service("chatgpt")
	if !ok {
		t.Fatal("Service(chatgpt) not found")
	}
	if svc.Cost != 20 {
		t.Errorf("chatgpt cost = %d, want 20", svc.Cost)
	}
	if _, ok := cfg.Service("nope"); ok {
		t.Error("Service(nope) found, want miss")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing token", func(c *Config) { c.Bot.Token = "" }},
		{"no admins", func(c *Config) { c.Bot.AdminIDs = nil }},
		{"bonus rate too high", func(c *Config) { c.Ledger.BonusRate = 1.0 }},
		{"negative bonus rate", func(c *Config) { c.Ledger.BonusRate = -0.1 }},
		{"zero retention", func(c *Config) { c.Ledger.RetentionDays = 0 }},
		{"duplicate service", func(c *Config) {
			c.Services = append(c.Services, c.Services[0])
		}},
		{"zero cost", func(c *Config) { c.Services[0].Cost = 0 }},
		{"bad timeout", func(c *Config) { c.Bot.ConversationTimeout = "soon" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, sampleConfig))
			if err != nil {
				t.Fatal(err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}
