// ABOUTME: HTTP handlers for the Slack webhook surface and the admin API.
// ABOUTME: Slack endpoints verify signatures before any payload parsing.

package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/slack-go/slack"

	"github.com/2389/reggie-gateway/internal/store"
)

// Slack header names for request authentication.
const (
	headerSignature = "X-Slack-Signature"
	headerTimestamp = "X-Slack-Request-Timestamp"
)

// maxBodyBytes caps inbound request bodies; Slack events are small.
const maxBodyBytes = 1 << 20

// challengeEnvelope is the URL verification handshake payload.
type challengeEnvelope struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
}

// TenantRequest is the JSON request body for POST /api/tenants.
type TenantRequest struct {
	TeamID string `json:"team_id"`
	Name   string `json:"name,omitempty"`
	Status string `json:"status,omitempty"`
}

// TenantResponse is the JSON shape of a tenant in API responses.
type TenantResponse struct {
	TeamID    string `json:"team_id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// RequestRecordResponse is the JSON shape of a ledger entry.
type RequestRecordResponse struct {
	ID             string `json:"id"`
	TeamID         string `json:"team_id"`
	UserID         string `json:"user_id"`
	Kind           string `json:"kind"`
	ConversationID string `json:"conversation_id,omitempty"`
	Outcome        string `json:"outcome"`
	Detail         string `json:"detail,omitempty"`
	CreatedAt      string `json:"created_at"`
}

// readVerifiedBody reads the raw body and checks the Slack signature.
// Returns nil and writes the error response if verification fails.
// Missing headers and bad signatures are rejected before any parsing.
func (g *Gateway) readVerifiedBody(w http.ResponseWriter, r *http.Request) []byte {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return nil
	}

	err = g.verifier.Verify(body, r.Header.Get(headerTimestamp), r.Header.Get(headerSignature))
	if err != nil {
		g.logger.Warn("rejecting unverified request",
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"error", err)
		http.Error(w, "invalid request signature", http.StatusForbidden)
		return nil
	}
	return body
}

// handleSlackEvents handles POST /slack/events: URL verification
// handshakes are echoed back, everything else goes through the dispatch
// pipeline and is acked immediately.
func (g *Gateway) handleSlackEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body := g.readVerifiedBody(w, r)
	if body == nil {
		return
	}

	var challenge challengeEnvelope
	if err := json.Unmarshal(body, &challenge); err == nil && challenge.Type == "url_verification" {
		writeJSON(w, http.StatusOK, map[string]string{"challenge": challenge.Challenge})
		return
	}

	g.dispatcher.HandleEvent(r.Context(), body)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleSlashCommand handles POST /slack/commands. The synchronous
// response is the ephemeral processing notice; the real reply arrives
// later through the command's response URL.
func (g *Gateway) handleSlashCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body := g.readVerifiedBody(w, r)
	if body == nil {
		return
	}

	// SlashCommandParse consumes the request body, so restore it after
	// signature verification read it.
	r.Body = io.NopCloser(bytes.NewReader(body))
	cmd, err := slack.SlashCommandParse(r)
	if err != nil {
		g.logger.Warn("failed to parse slash command", "error", err)
		http.Error(w, "malformed command payload", http.StatusBadRequest)
		return
	}

	ack := g.dispatcher.HandleCommand(r.Context(), cmd)
	if ack == "" {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"response_type": "ephemeral",
		"text":          ack,
	})
}

// handleTenants handles GET (list) and POST (upsert) on /api/tenants.
func (g *Gateway) handleTenants(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		g.listTenants(w, r)
	case http.MethodPost:
		g.upsertTenant(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (g *Gateway) listTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := g.store.ListTenants(r.Context())
	if err != nil {
		g.logger.Error("failed to list tenants", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := make([]TenantResponse, 0, len(tenants))
	for _, t := range tenants {
		resp = append(resp, tenantResponse(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"tenants": resp})
}

func (g *Gateway) upsertTenant(w http.ResponseWriter, r *http.Request) {
	var req TenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.TeamID == "" {
		http.Error(w, "team_id is required", http.StatusBadRequest)
		return
	}
	if req.Status != "" && req.Status != store.TenantStatusActive && req.Status != store.TenantStatusSuspended {
		http.Error(w, "status must be active or suspended", http.StatusBadRequest)
		return
	}

	tenant := &store.Tenant{TeamID: req.TeamID, Name: req.Name, Status: req.Status}
	if err := g.store.UpsertTenant(r.Context(), tenant); err != nil {
		g.logger.Error("failed to upsert tenant", "team_id", req.TeamID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, tenantResponse(tenant))
}

// handleTenantByID handles GET and DELETE on /api/tenants/{team_id}.
func (g *Gateway) handleTenantByID(w http.ResponseWriter, r *http.Request) {
	teamID := strings.TrimPrefix(r.URL.Path, "/api/tenants/")
	if teamID == "" || strings.Contains(teamID, "/") {
		http.Error(w, "invalid tenant path", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		tenant, err := g.store.GetTenant(r.Context(), teamID)
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "tenant not found", http.StatusNotFound)
			return
		}
		if err != nil {
			g.logger.Error("failed to get tenant", "team_id", teamID, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, tenantResponse(tenant))

	case http.MethodDelete:
		err := g.store.DeleteTenant(r.Context(), teamID)
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "tenant not found", http.StatusNotFound)
			return
		}
		if err != nil {
			g.logger.Error("failed to delete tenant", "team_id", teamID, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleRequests handles GET /api/requests?team_id=X&limit=N.
func (g *Gateway) handleRequests(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	teamID := r.URL.Query().Get("team_id")
	if teamID == "" {
		http.Error(w, "team_id query parameter is required", http.StatusBadRequest)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := g.store.ListRequestRecords(r.Context(), teamID, limit)
	if err != nil {
		g.logger.Error("failed to list request records", "team_id", teamID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := make([]RequestRecordResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, RequestRecordResponse{
			ID:             rec.ID,
			TeamID:         rec.TeamID,
			UserID:         rec.UserID,
			Kind:           rec.Kind,
			ConversationID: rec.ConversationID,
			Outcome:        rec.Outcome,
			Detail:         rec.Detail,
			CreatedAt:      rec.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": resp})
}

func tenantResponse(t *store.Tenant) TenantResponse {
	return TenantResponse{
		TeamID:    t.TeamID,
		Name:      t.Name,
		Status:    t.Status,
		CreatedAt: t.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already written; nothing to do but note it
		slog.Error("failed to encode response", "error", err)
	}
}
