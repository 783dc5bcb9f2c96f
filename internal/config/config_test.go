package config

import (
	"strings"
	"testing"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Host != "127.0.0.1" {
		t.Errorf("Database.Host = %q, want 127.0.0.1", cfg.Database.Host)
	}
	if cfg.Assistant.MaxToolRounds != 5 {
		t.Errorf("Assistant.MaxToolRounds = %d, want 5", cfg.Assistant.MaxToolRounds)
	}
	if cfg.Assistant.RequestBudgetS != 30 {
		t.Errorf("Assistant.RequestBudgetS = %d, want 30", cfg.Assistant.RequestBudgetS)
	}
	if cfg.Assistant.HistoryTurns != 10 {
		t.Errorf("Assistant.HistoryTurns = %d, want 10", cfg.Assistant.HistoryTurns)
	}
	if cfg.Digest.Cron != "0 7 * * *" {
		t.Errorf("Digest.Cron = %q, want daily 7am", cfg.Digest.Cron)
	}
}

func TestParse_Full(t *testing.T) {
	yaml := `
server:
  port: 9000
database:
  host: db.internal
  port: 3307
  user: dispatcher
  database: atlas_prod
assistant:
  model: claude-sonnet-4-20250514
  max_tool_rounds: 8
hos:
  url: https://hos.example.com/rank
telegram:
  bot_token: "123:abc"
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("Database.Host = %q", cfg.Database.Host)
	}
	if cfg.Assistant.MaxToolRounds != 8 {
		t.Errorf("MaxToolRounds = %d, want 8", cfg.Assistant.MaxToolRounds)
	}
	if cfg.HOS.URL != "https://hos.example.com/rank" {
		t.Errorf("HOS.URL = %q", cfg.HOS.URL)
	}
	if cfg.Telegram.BotToken != "123:abc" {
		t.Errorf("Telegram.BotToken = %q", cfg.Telegram.BotToken)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("server: [not a map"))
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate_SlackRequiresAppToken(t *testing.T) {
	yaml := `
slack:
  bot_token: xoxb-123
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "slack.app_token") {
		t.Errorf("error = %q, want to mention slack.app_token", err.Error())
	}
}

func TestValidate_BadPort(t *testing.T) {
	_, err := Parse([]byte("server:\n  port: 70000\n"))
	if err == nil {
		t.Fatal("expected validation error for out-of-range port")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/atlas.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
