// ABOUTME: Configuration loading and parsing for reggie-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete reggie-gateway configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Tailscale    TailscaleConfig    `yaml:"tailscale"`
	Database     DatabaseConfig     `yaml:"database"`
	Auth         AuthConfig         `yaml:"auth"`
	Slack        SlackConfig        `yaml:"slack"`
	Subscription SubscriptionConfig `yaml:"subscription"`
	Responder    ResponderConfig    `yaml:"responder"`
	History      HistoryConfig      `yaml:"history"`
	Dispatch     DispatchConfig     `yaml:"dispatch"`
	Commands     map[string]string  `yaml:"commands"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// TailscaleConfig holds Tailscale tsnet configuration.
// Funnel exposes the webhook endpoints on public HTTPS, which is what
// Slack's Events API needs when no reverse proxy is available.
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Hostname  string `yaml:"hostname"`
	AuthKey   string `yaml:"auth_key"`
	StateDir  string `yaml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral"`
	Funnel    bool   `yaml:"funnel"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds admin API authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// SlackConfig holds Slack app credentials and identity
type SlackConfig struct {
	SigningSecret string `yaml:"signing_secret"`
	BotToken      string `yaml:"bot_token"`

	// BotUserID is the bot's own member ID (e.g., "U0123456789"). Used to
	// strip mention tokens and to discard the bot's own messages. If empty,
	// it is resolved at startup via auth.test.
	BotUserID string `yaml:"bot_user_id"`
}

// SubscriptionConfig selects how tenant authorization is checked
type SubscriptionConfig struct {
	// Mode is "static" (allow-list below) or "database" (tenants table)
	Mode           string   `yaml:"mode"`
	AllowedTenants []string `yaml:"allowed_tenants"`
}

// ResponderConfig selects and configures the model backend
type ResponderConfig struct {
	// Provider is "openai" or "anthropic"
	Provider     string `yaml:"provider"`
	Model        string `yaml:"model"`
	APIKey       string `yaml:"api_key"`
	Instructions string `yaml:"instructions"`

	Timeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TimeoutRaw string `yaml:"timeout"`
}

// HistoryConfig bounds conversational context assembly
type HistoryConfig struct {
	Limit int `yaml:"limit"`
}

// DispatchConfig holds dispatch pipeline tuning
type DispatchConfig struct {
	InFlightMaxAge time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	InFlightMaxAgeRaw string `yaml:"in_flight_max_age"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults applied by Load when the config omits a value.
const (
	DefaultHistoryLimit     = 20
	DefaultResponderTimeout = 60 * time.Second
	DefaultInFlightMaxAge   = 10 * time.Minute
	DefaultInstructions     = "If translating, return only the translated text."
)

// DefaultCommands maps slash commands to prompt templates. The %s verb is
// replaced with the command's trailing text.
func DefaultCommands() map[string]string {
	return map[string]string{
		"/translate-id": "Translate this message to Indonesian: %s",
		"/indo":         "Translate this message to Indonesian: %s",
		"/en":           "Translate this message to English: %s",
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in values the config file omitted.
func (c *Config) applyDefaults() {
	if c.Subscription.Mode == "" {
		c.Subscription.Mode = "static"
	}
	if c.Responder.Provider == "" {
		c.Responder.Provider = "openai"
	}
	if c.Responder.Model == "" {
		switch c.Responder.Provider {
		case "anthropic":
			c.Responder.Model = "claude-sonnet-4-5"
		default:
			c.Responder.Model = "gpt-4o"
		}
	}
	if c.Responder.Instructions == "" {
		c.Responder.Instructions = DefaultInstructions
	}
	if c.Responder.Timeout == 0 {
		c.Responder.Timeout = DefaultResponderTimeout
	}
	if c.History.Limit == 0 {
		c.History.Limit = DefaultHistoryLimit
	}
	if c.Dispatch.InFlightMaxAge == 0 {
		c.Dispatch.InFlightMaxAge = DefaultInFlightMaxAge
	}
	if len(c.Commands) == 0 {
		c.Commands = DefaultCommands()
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// The HTTP address is required unless Tailscale provides the listener
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Slack.SigningSecret == "" {
		return fmt.Errorf("slack.signing_secret is required")
	}
	if c.Slack.BotToken == "" {
		return fmt.Errorf("slack.bot_token is required")
	}

	switch c.Subscription.Mode {
	case "static", "database":
	default:
		return fmt.Errorf("subscription.mode must be \"static\" or \"database\", got %q", c.Subscription.Mode)
	}

	switch c.Responder.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("responder.provider must be \"openai\" or \"anthropic\", got %q", c.Responder.Provider)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Responder.TimeoutRaw != "" {
		cfg.Responder.Timeout, err = time.ParseDuration(cfg.Responder.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing responder.timeout %q: %w", cfg.Responder.TimeoutRaw, err)
		}
	}

	if cfg.Dispatch.InFlightMaxAgeRaw != "" {
		cfg.Dispatch.InFlightMaxAge, err = time.ParseDuration(cfg.Dispatch.InFlightMaxAgeRaw)
		if err != nil {
			return fmt.Errorf("parsing dispatch.in_flight_max_age %q: %w", cfg.Dispatch.InFlightMaxAgeRaw, err)
		}
	}

	return nil
}
