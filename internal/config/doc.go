// Package config handles configuration loading for reggie-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from REGGIE_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/reggie/gateway.yaml
//  3. ~/.config/reggie/gateway.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	slack:
//	  signing_secret: "${SLACK_SIGNING_SECRET}"
//	  bot_token: "${SLACK_BOT_TOKEN}"
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	responder:
//	  timeout: "60s"
//	dispatch:
//	  in_flight_max_age: "10m"
//
// # Configuration Sections
//
// Server and listeners:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//
//	tailscale:
//	  enabled: false
//	  hostname: "reggie-gateway"
//	  auth_key: "${TS_AUTHKEY}"
//	  funnel: true   # public HTTPS for Slack webhooks
//
// Slack app:
//
//	slack:
//	  signing_secret: "${SLACK_SIGNING_SECRET}"
//	  bot_token: "${SLACK_BOT_TOKEN}"
//
// Tenant authorization:
//
//	subscription:
//	  mode: "static"       # or "database"
//	  allowed_tenants:
//	    - "T06LP8F3K8V"
//
// Responder backend:
//
//	responder:
//	  provider: "openai"   # or "anthropic"
//	  model: "gpt-4o"
//	  api_key: "${OPENAI_API_KEY}"
//	  timeout: "60s"
//
// Slash command prompt templates:
//
//	commands:
//	  "/translate-id": "Translate this message to Indonesian: %s"
//	  "/en": "Translate this message to English: %s"
//
// # Usage
//
// Load configuration from a specific path:
//
//	cfg, err := config.Load("/etc/reggie/gateway.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
