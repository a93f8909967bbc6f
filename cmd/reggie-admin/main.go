// ABOUTME: Admin CLI for reggie-gateway tenant and request ledger management
// ABOUTME: Talks to the gateway admin API over HTTP with JWT authentication

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/reggie-gateway/internal/auth"
	"github.com/2389/reggie-gateway/internal/config"
)

const banner = `
                          _                          _           _
 _ __ ___  __ _  __ _(_) ___         __ _  __| |_ __ ___ (_)_ __
| '__/ _ \/ _' |/ _' | |/ _ \_____ / _' |/ _' | '_ ' _ \| | '_ \
| | |  __/ (_| | (_| | |  __/_____| (_| | (_| | | | | | | | | | |
|_|  \___|\__, |\__, |_|\___|      \__,_|\__,_|_| |_| |_|_|_| |_|
          |___/ |___/
`

const requestTimeout = 10 * time.Second

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	baseURL := os.Getenv("REGGIE_ADMIN_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	token := getToken()

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "tenants":
		err = cmdTenants(baseURL, token, args)
	case "requests", "log":
		err = cmdRequests(baseURL, token, args)
	case "token":
		err = cmdToken(args)
	case "status":
		err = cmdStatus(baseURL)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: reggie-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  status                   Check gateway health")
	fmt.Println("  tenants                  List subscribed tenants")
	fmt.Println("  tenants list             List subscribed tenants")
	fmt.Println("  tenants add <team-id>    Subscribe a workspace (--name, --status)")
	fmt.Println("  tenants remove <team-id> Remove a workspace subscription")
	fmt.Println("  requests <team-id>       Show recent request outcomes (--limit)")
	fmt.Println("  token create             Generate an admin JWT (--subject, --ttl days)")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  REGGIE_ADMIN_URL         Gateway admin URL (default: http://localhost:8080)")
	fmt.Println("  REGGIE_TOKEN             JWT authentication token")
	fmt.Println("  REGGIE_CONFIG            Config path, used by token create for the JWT secret")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  export REGGIE_TOKEN=\"eyJhbG...\"")
	fmt.Println("  reggie-admin tenants add T06LP8F3K8V --name acme")
	fmt.Println("  reggie-admin requests T06LP8F3K8V --limit 20")
	fmt.Println()
}

// getToken returns the JWT token from REGGIE_TOKEN or ~/.config/reggie/token
func getToken() string {
	if token := os.Getenv("REGGIE_TOKEN"); token != "" {
		return token
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	data, err := os.ReadFile(filepath.Join(configDir, "reggie", "token"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// getConfigPath mirrors the gateway's config resolution.
func getConfigPath() string {
	if envPath := os.Getenv("REGGIE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "reggie", "gateway.yaml")
}

// doRequest performs an authenticated request against the admin API.
func doRequest(method, url, token string, body []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("unauthorized: set REGGIE_TOKEN (see reggie-admin token create)")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}
	return respBody, nil
}

// cmdStatus checks gateway health
func cmdStatus(baseURL string) error {
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()

	body, err := doRequest(http.MethodGet, baseURL+"/health", "", nil)
	if err != nil {
		yellow.Printf("  Gateway:  ")
		color.Red("UNREACHABLE (%v)\n", err)
		fmt.Println()
		return nil
	}

	green.Printf("  Gateway:  ")
	fmt.Printf("%s at %s\n", strings.TrimSpace(string(body)), baseURL)

	if body, err = doRequest(http.MethodGet, baseURL+"/health/ready", "", nil); err == nil {
		green.Printf("  Ready:    ")
		fmt.Println(strings.TrimSpace(string(body)))
	}

	fmt.Println()
	return nil
}

// cmdTenants handles tenants subcommands
func cmdTenants(baseURL, token string, args []string) error {
	// Default to list
	subcmd := "list"
	if len(args) > 0 {
		subcmd = args[0]
		args = args[1:]
	}

	switch subcmd {
	case "list", "ls":
		return cmdTenantsList(baseURL, token)
	case "add", "create":
		return cmdTenantsAdd(baseURL, token, args)
	case "remove", "rm", "delete":
		return cmdTenantsRemove(baseURL, token, args)
	default:
		return fmt.Errorf("unknown tenants subcommand: %s (use list, add, remove)", subcmd)
	}
}

// tenantJSON matches the admin API tenant shape
type tenantJSON struct {
	TeamID    string `json:"team_id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

func cmdTenantsList(baseURL, token string) error {
	body, err := doRequest(http.MethodGet, baseURL+"/api/tenants", token, nil)
	if err != nil {
		return err
	}

	var resp struct {
		Tenants []tenantJSON `json:"tenants"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Subscribed Tenants")
	cyan.Println("  ------------------")

	if len(resp.Tenants) == 0 {
		fmt.Println("  (no tenants)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  TEAM ID\tNAME\tSTATUS\tCREATED")
	fmt.Fprintln(w, "  -------\t----\t------\t-------")

	for _, t := range resp.Tenants {
		created := t.CreatedAt
		if ts, err := time.Parse(time.RFC3339, t.CreatedAt); err == nil {
			created = ts.Format("Jan 02 15:04")
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", t.TeamID, t.Name, t.Status, created)
	}
	w.Flush()
	fmt.Println()

	return nil
}

func cmdTenantsAdd(baseURL, token string, args []string) error {
	if len(args) < 1 || strings.HasPrefix(args[0], "-") {
		return fmt.Errorf("usage: tenants add <team-id> [--name <name>] [--status active|suspended]")
	}

	teamID := args[0]
	args = args[1:]

	var name, status string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--name", "-n":
			if i+1 < len(args) {
				name = args[i+1]
				i++
			}
		case "--status", "-s":
			if i+1 < len(args) {
				status = args[i+1]
				i++
			}
		}
	}

	payload, err := json.Marshal(map[string]string{
		"team_id": teamID,
		"name":    name,
		"status":  status,
	})
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	body, err := doRequest(http.MethodPost, baseURL+"/api/tenants", token, payload)
	if err != nil {
		return err
	}

	var tenant tenantJSON
	if err := json.Unmarshal(body, &tenant); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Subscribed tenant: %s\n", tenant.TeamID)
	if tenant.Name != "" {
		fmt.Printf("  Name:    %s\n", tenant.Name)
	}
	fmt.Printf("  Status:  %s\n", tenant.Status)

	return nil
}

func cmdTenantsRemove(baseURL, token string, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: tenants remove <team-id>")
	}

	teamID := args[0]
	if _, err := doRequest(http.MethodDelete, baseURL+"/api/tenants/"+teamID, token, nil); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Removed tenant: %s\n", teamID)

	return nil
}

// cmdRequests shows the request ledger for a tenant
func cmdRequests(baseURL, token string, args []string) error {
	if len(args) < 1 || strings.HasPrefix(args[0], "-") {
		return fmt.Errorf("usage: requests <team-id> [--limit <n>]")
	}

	teamID := args[0]
	args = args[1:]

	limit := ""
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--limit", "-l":
			if i+1 < len(args) {
				limit = args[i+1]
				i++
			}
		}
	}

	url := baseURL + "/api/requests?team_id=" + teamID
	if limit != "" {
		url += "&limit=" + limit
	}

	body, err := doRequest(http.MethodGet, url, token, nil)
	if err != nil {
		return err
	}

	var resp struct {
		Requests []struct {
			ID             string `json:"id"`
			UserID         string `json:"user_id"`
			Kind           string `json:"kind"`
			ConversationID string `json:"conversation_id"`
			Outcome        string `json:"outcome"`
			Detail         string `json:"detail"`
			CreatedAt      string `json:"created_at"`
		} `json:"requests"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Printf("  Requests for %s\n", teamID)
	cyan.Println("  --------------------------")

	if len(resp.Requests) == 0 {
		fmt.Println("  (no requests)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  TIME\tUSER\tKIND\tCHANNEL\tOUTCOME\tDETAIL")
	fmt.Fprintln(w, "  ----\t----\t----\t-------\t-------\t------")

	for _, r := range resp.Requests {
		created := r.CreatedAt
		if ts, err := time.Parse(time.RFC3339, r.CreatedAt); err == nil {
			created = ts.Format("Jan 02 15:04")
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\t%s\n",
			created, r.UserID, r.Kind, r.ConversationID, r.Outcome, truncate(r.Detail, 40))
	}
	w.Flush()
	fmt.Println()

	return nil
}

// cmdToken handles token subcommands
func cmdToken(args []string) error {
	subcmd := ""
	if len(args) > 0 {
		subcmd = args[0]
		args = args[1:]
	}

	switch subcmd {
	case "create":
		return cmdTokenCreate(args)
	default:
		return fmt.Errorf("usage: token create --subject <who> [--ttl <days>]")
	}
}

// cmdTokenCreate mints an admin JWT from the gateway config's secret.
// Runs locally against the config file; no gateway connection needed.
func cmdTokenCreate(args []string) error {
	var subject string
	var ttlDays int64 = 30

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--subject", "-s":
			if i+1 < len(args) {
				subject = args[i+1]
				i++
			}
		case "--ttl", "-t":
			if i+1 < len(args) {
				days, err := parseIntArg(args[i+1])
				if err != nil {
					return fmt.Errorf("invalid ttl: %w", err)
				}
				ttlDays = days
				i++
			}
		}
	}

	if subject == "" {
		return fmt.Errorf("usage: token create --subject <who> [--ttl <days>]")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is not set in the gateway config")
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("initializing signer: %w", err)
	}

	ttl := time.Duration(ttlDays) * 24 * time.Hour
	token, err := verifier.Generate(subject, ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)

	fmt.Println()
	green.Println("  Token created successfully")
	fmt.Println()
	cyan.Println("  Subject:  " + subject)
	cyan.Println("  Expires:  " + time.Now().Add(ttl).Format(time.RFC3339))
	fmt.Println()
	fmt.Println("  Token (keep this secret!):")
	fmt.Println()
	fmt.Println("  " + token)
	fmt.Println()

	return nil
}

// parseIntArg parses a string to int64
func parseIntArg(s string) (int64, error) {
	var v int64
	_, err := fmt.Sscanf(s, "%d", &v)
	return v, err
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
