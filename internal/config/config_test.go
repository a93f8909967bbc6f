// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, defaults, and duration parsing

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeConfig writes content to a temp file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

const validConfig = `
server:
  http_addr: "0.0.0.0:8080"

database:
  path: "./test.db"

slack:
  signing_secret: "shhh"
  bot_token: "xoxb-test"
  bot_user_id: "U0BOT"

subscription:
  mode: "static"
  allowed_tenants:
    - "T06LP8F3K8V"
    - "T87654321"

responder:
  provider: "openai"
  model: "gpt-4o"
  api_key: "sk-test"
  timeout: "45s"

history:
  limit: 30

dispatch:
  in_flight_max_age: "5m"

logging:
  level: "debug"
  format: "json"
`

func TestLoad_ValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:8080")
	}
	if cfg.Database.Path != "./test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./test.db")
	}
	if cfg.Slack.SigningSecret != "shhh" {
		t.Errorf("Slack.SigningSecret = %q, want %q", cfg.Slack.SigningSecret, "shhh")
	}
	if cfg.Slack.BotUserID != "U0BOT" {
		t.Errorf("Slack.BotUserID = %q, want %q", cfg.Slack.BotUserID, "U0BOT")
	}
	if len(cfg.Subscription.AllowedTenants) != 2 {
		t.Errorf("len(Subscription.AllowedTenants) = %d, want 2", len(cfg.Subscription.AllowedTenants))
	}
	if cfg.Responder.Timeout != 45*time.Second {
		t.Errorf("Responder.Timeout = %v, want 45s", cfg.Responder.Timeout)
	}
	if cfg.History.Limit != 30 {
		t.Errorf("History.Limit = %d, want 30", cfg.History.Limit)
	}
	if cfg.Dispatch.InFlightMaxAge != 5*time.Minute {
		t.Errorf("Dispatch.InFlightMaxAge = %v, want 5m", cfg.Dispatch.InFlightMaxAge)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoad_Defaults(t *testing.T) {
	minimal := `
server:
  http_addr: "localhost:8080"
database:
  path: "./test.db"
slack:
  signing_secret: "shhh"
  bot_token: "xoxb-test"
`
	cfg, err := Load(writeConfig(t, minimal))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Subscription.Mode != "static" {
		t.Errorf("Subscription.Mode = %q, want %q", cfg.Subscription.Mode, "static")
	}
	if cfg.Responder.Provider != "openai" {
		t.Errorf("Responder.Provider = %q, want %q", cfg.Responder.Provider, "openai")
	}
	if cfg.Responder.Model != "gpt-4o" {
		t.Errorf("Responder.Model = %q, want %q", cfg.Responder.Model, "gpt-4o")
	}
	if cfg.Responder.Timeout != DefaultResponderTimeout {
		t.Errorf("Responder.Timeout = %v, want %v", cfg.Responder.Timeout, DefaultResponderTimeout)
	}
	if cfg.Responder.Instructions != DefaultInstructions {
		t.Errorf("Responder.Instructions = %q, want default", cfg.Responder.Instructions)
	}
	if cfg.History.Limit != DefaultHistoryLimit {
		t.Errorf("History.Limit = %d, want %d", cfg.History.Limit, DefaultHistoryLimit)
	}
	if cfg.Dispatch.InFlightMaxAge != DefaultInFlightMaxAge {
		t.Errorf("Dispatch.InFlightMaxAge = %v, want %v", cfg.Dispatch.InFlightMaxAge, DefaultInFlightMaxAge)
	}

	tmpl, ok := cfg.Commands["/translate-id"]
	if !ok {
		t.Fatal("default commands missing /translate-id")
	}
	if tmpl != "Translate this message to Indonesian: %s" {
		t.Errorf("commands[/translate-id] = %q", tmpl)
	}
}

func TestLoad_AnthropicDefaultModel(t *testing.T) {
	content := `
server:
  http_addr: "localhost:8080"
database:
  path: "./test.db"
slack:
  signing_secret: "shhh"
  bot_token: "xoxb-test"
responder:
  provider: "anthropic"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Responder.Model != "claude-sonnet-4-5" {
		t.Errorf("Responder.Model = %q, want %q", cfg.Responder.Model, "claude-sonnet-4-5")
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_SIGNING_SECRET", "expanded-secret")

	content := `
server:
  http_addr: "localhost:8080"
database:
  path: "./test.db"
slack:
  signing_secret: "${TEST_SIGNING_SECRET}"
  bot_token: "xoxb-test"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Slack.SigningSecret != "expanded-secret" {
		t.Errorf("Slack.SigningSecret = %q, want %q", cfg.Slack.SigningSecret, "expanded-secret")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	content := `
server:
  http_addr: "localhost:8080"
database:
  path: "./test.db"
slack:
  signing_secret: "shhh"
  bot_token: "xoxb-test"
responder:
  timeout: "not-a-duration"
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "responder.timeout") {
		t.Errorf("error = %v, want mention of responder.timeout", err)
	}
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing http addr",
			mutate:  func(c *Config) { c.Server.HTTPAddr = "" },
			wantErr: "server.http_addr",
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name:    "missing signing secret",
			mutate:  func(c *Config) { c.Slack.SigningSecret = "" },
			wantErr: "slack.signing_secret",
		},
		{
			name:    "missing bot token",
			mutate:  func(c *Config) { c.Slack.BotToken = "" },
			wantErr: "slack.bot_token",
		},
		{
			name:    "bad subscription mode",
			mutate:  func(c *Config) { c.Subscription.Mode = "maybe" },
			wantErr: "subscription.mode",
		},
		{
			name:    "bad responder provider",
			mutate:  func(c *Config) { c.Responder.Provider = "bard" },
			wantErr: "responder.provider",
		},
		{
			name: "tailscale without hostname",
			mutate: func(c *Config) {
				c.Tailscale.Enabled = true
				c.Tailscale.Hostname = ""
			},
			wantErr: "tailscale.hostname",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, validConfig))
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			tt.mutate(cfg)
			err = cfg.Validate()
			if err == nil {
				t.Fatal("Validate() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_TailscaleWithoutHTTPAddr(t *testing.T) {
	content := `
tailscale:
  enabled: true
  hostname: "reggie-gateway"
  funnel: true
database:
  path: "./test.db"
slack:
  signing_secret: "shhh"
  bot_token: "xoxb-test"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Tailscale.Funnel {
		t.Error("Tailscale.Funnel = false, want true")
	}
}
