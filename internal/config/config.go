// Package config provides YAML-based configuration loading for Atlas Command.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration, loaded from atlas.yaml.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Assistant AssistantConfig `yaml:"assistant"`
	HOS       HOSConfig       `yaml:"hos"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	WhatsApp  WhatsAppConfig  `yaml:"whatsapp"`
	Slack     SlackConfig     `yaml:"slack"`
	Discord   DiscordConfig   `yaml:"discord"`
	Digest    DigestConfig    `yaml:"digest"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// DatabaseConfig holds MySQL connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// AssistantConfig holds model and orchestration loop settings.
type AssistantConfig struct {
	APIKey         string `yaml:"api_key"` // falls back to ANTHROPIC_API_KEY
	Model          string `yaml:"model"`
	MaxToolRounds  int    `yaml:"max_tool_rounds"`
	RequestBudgetS int    `yaml:"request_budget_seconds"`
	HistoryTurns   int    `yaml:"history_turns"`
}

// HOSConfig holds the external Hours-of-Service ranking service endpoint.
type HOSConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// TelegramConfig holds the Telegram bot settings.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
}

// WhatsAppConfig holds WhatsApp Cloud API settings.
type WhatsAppConfig struct {
	AccessToken string `yaml:"access_token"`
	PhoneID     string `yaml:"phone_id"`
	VerifyToken string `yaml:"verify_token"`
}

// SlackConfig holds Slack Socket Mode tokens.
type SlackConfig struct {
	AppToken  string `yaml:"app_token"`
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// DiscordConfig holds the Discord bot settings.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// DigestConfig holds the daily board digest schedule.
type DigestConfig struct {
	Cron    string `yaml:"cron"`     // 5-field cron expression
	ReplyTo string `yaml:"reply_to"` // adapter destination (chat id, channel id)
	Enabled bool   `yaml:"enabled"`
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
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.User == "" {
		c.Database.User = "atlas"
	}
	if c.Database.Database == "" {
		c.Database.Database = "atlas"
	}
	if c.Assistant.APIKey == "" {
		c.Assistant.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if c.Assistant.MaxToolRounds == 0 {
		c.Assistant.MaxToolRounds = 5
	}
	if c.Assistant.RequestBudgetS == 0 {
		c.Assistant.RequestBudgetS = 30
	}
	if c.Assistant.HistoryTurns == 0 {
		c.Assistant.HistoryTurns = 10
	}
	if c.HOS.TimeoutSeconds == 0 {
		c.HOS.TimeoutSeconds = 10
	}
	if c.Digest.Cron == "" {
		c.Digest.Cron = "0 7 * * *"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.Assistant.MaxToolRounds < 1 {
		errs = append(errs, "assistant.max_tool_rounds must be at least 1")
	}
	if c.Assistant.RequestBudgetS < 1 {
		errs = append(errs, "assistant.request_budget_seconds must be at least 1")
	}
	if c.Slack.BotToken != "" && c.Slack.AppToken == "" {
		errs = append(errs, "slack.app_token is required when slack.bot_token is set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
