// ABOUTME: Gateway orchestrator wiring the HTTP server and dispatch pipeline
// ABOUTME: Manages listeners (TCP or Tailscale), store, and graceful shutdown

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/reggie-gateway/internal/auth"
	"github.com/2389/reggie-gateway/internal/config"
	"github.com/2389/reggie-gateway/internal/dedupe"
	"github.com/2389/reggie-gateway/internal/delivery"
	"github.com/2389/reggie-gateway/internal/dispatch"
	"github.com/2389/reggie-gateway/internal/event"
	"github.com/2389/reggie-gateway/internal/history"
	"github.com/2389/reggie-gateway/internal/responder"
	"github.com/2389/reggie-gateway/internal/slackapi"
	"github.com/2389/reggie-gateway/internal/store"
	"github.com/2389/reggie-gateway/internal/subscription"
)

// Gateway orchestrates the reggie-gateway server components: the inbound
// HTTP surface for Slack, the dispatch pipeline behind it, and the admin
// API.
type Gateway struct {
	config      *config.Config
	store       store.Store
	verifier    *auth.Verifier
	inflight    *dedupe.InFlight
	dispatcher  *dispatch.Dispatcher
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger
}

// initStore creates and returns a store based on config and environment.
func initStore(cfg *config.Config) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("REGGIE_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// buildGate creates the subscription gate for the configured mode.
func buildGate(cfg *config.Config, s store.Store) subscription.Gate {
	if cfg.Subscription.Mode == "database" {
		return subscription.NewStoreGate(s)
	}
	return subscription.NewStaticGate(cfg.Subscription.AllowedTenants)
}

// resolveBotUserID returns the configured bot user ID, falling back to an
// auth.test call so deployments only need the bot token.
func resolveBotUserID(cfg *config.Config, slackClient *slackapi.Client, logger *slog.Logger) (string, error) {
	if cfg.Slack.BotUserID != "" {
		return cfg.Slack.BotUserID, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	botUserID, err := slackClient.AuthTest(ctx)
	if err != nil {
		return "", fmt.Errorf("resolving bot user ID (set slack.bot_user_id to skip): %w", err)
	}
	logger.Info("resolved bot user ID via auth.test", "bot_user_id", botUserID)
	return botUserID, nil
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	slackClient := slackapi.New(cfg.Slack.BotToken)

	botUserID, err := resolveBotUserID(cfg, slackClient, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	resp, err := responder.New(cfg.Responder)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	inflight := dedupe.New(cfg.Dispatch.InFlightMaxAge)

	dispatcher := dispatch.New(dispatch.Config{
		Gate:       buildGate(cfg, s),
		Classifier: event.NewClassifier(botUserID),
		InFlight:   inflight,
		Assembler:  history.New(slackClient, cfg.History.Limit, logger),
		Responder:  resp,
		Sender:     delivery.NewSender(slackClient, logger),
		Notifier:   slackClient,
		Recorder:   s,
		Commands:   cfg.Commands,
		Timeout:    cfg.Responder.Timeout,
		Logger:     logger,
	})

	gw := &Gateway{
		config:     cfg,
		store:      s,
		verifier:   auth.NewVerifier(cfg.Slack.SigningSecret),
		inflight:   inflight,
		dispatcher: dispatcher,
		logger:     logger.With("component", "gateway"),
	}

	mux := http.NewServeMux()

	// Inbound Slack surface - authenticated by request signature, not JWT
	mux.HandleFunc("/slack/events", gw.handleSlackEvents)
	mux.HandleFunc("/slack/commands", gw.handleSlashCommand)

	// Health endpoints - no auth required
	mux.HandleFunc("/health", gw.handleHealth)
	mux.HandleFunc("/health/ready", gw.handleReady)

	if err := gw.registerAdminRoutes(mux); err != nil {
		_ = s.Close()
		return nil, err
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// registerAdminRoutes registers tenant and ledger API routes with JWT
// auth when a secret is configured.
func (g *Gateway) registerAdminRoutes(mux *http.ServeMux) error {
	if g.config.Auth.JWTSecret == "" {
		mux.HandleFunc("/api/tenants", g.handleTenants)
		mux.HandleFunc("/api/tenants/", g.handleTenantByID)
		mux.HandleFunc("/api/requests", g.handleRequests)
		g.logger.Warn("admin API auth disabled - no jwt_secret configured")
		return nil
	}

	verifier, err := auth.NewJWTVerifier([]byte(g.config.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating JWT verifier: %w", err)
	}
	authMiddleware := auth.HTTPAuthMiddleware(verifier)
	mux.Handle("/api/tenants", authMiddleware(http.HandlerFunc(g.handleTenants)))
	mux.Handle("/api/tenants/", authMiddleware(http.HandlerFunc(g.handleTenantByID)))
	mux.Handle("/api/requests", authMiddleware(http.HandlerFunc(g.handleRequests)))
	g.logger.Info("admin API auth enabled")
	return nil
}

// Run starts the gateway server and blocks until the context is
// canceled. Returns nil on graceful shutdown, or an error if the server
// fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := g.setupListener(ctx)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is
// already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// setupListener creates a listener based on configuration.
func (g *Gateway) setupListener(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		if g.config.Server.HTTPAddr != "" {
			g.logger.Warn("server.http_addr is ignored when tailscale is enabled",
				"http_addr", g.config.Server.HTTPAddr)
		}
		return g.setupTailscaleListener(ctx)
	}

	g.logger.Info("starting gateway", "http_addr", g.config.Server.HTTPAddr)
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "reggie-gateway", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable (get one at https://login.tailscale.com/admin/settings/keys)")
	}
	return authKey, nil
}

// setupTailscaleListener creates a tsnet server and returns its HTTP
// listener. With funnel enabled the gateway gets a public HTTPS URL
// that Slack's webhook delivery can reach.
func (g *Gateway) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := g.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	g.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	g.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := g.tsnetServer.Up(ctx)
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	g.logTailscaleStatus(tsCfg.Hostname, status)

	if tsCfg.Funnel {
		g.logger.Info("enabling tailscale funnel (public HTTPS) on :443")
		ln, err := g.tsnetServer.ListenFunnel("tcp", ":443")
		if err != nil {
			_ = g.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale funnel port: %w", err)
		}
		return ln, nil
	}

	ln, err := g.tsnetServer.Listen("tcp", ":80")
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
	}
	return ln, nil
}

// logTailscaleStatus logs info about the tailscale node status.
func (g *Gateway) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		g.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	g.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown gracefully stops the gateway and releases resources. The
// HTTP server stops accepting new requests immediately; asynchronous
// dispatch stages get until the shutdown deadline to finish before the
// store closes under them.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	if g.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
	}

	drained := make(chan struct{})
	go func() {
		g.dispatcher.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		g.logger.Warn("shutdown deadline reached with dispatches still in flight")
	}

	g.inflight.Close()
	errs = appendCloseError(errs, "store close", g.store.Close())

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady reports readiness with the current in-flight count.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d in flight)", g.inflight.Len())
}
