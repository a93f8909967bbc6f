// Package gateway orchestrates the reggie-gateway server components.
//
// # Overview
//
// The gateway package is the central coordinator of the server. It owns
// the HTTP surface Slack delivers to, the dispatch pipeline behind it,
// the SQLite store, and the admin API.
//
// # HTTP Surface
//
// Inbound Slack endpoints, authenticated by request signature:
//
//   - POST /slack/events: Events API payloads (mentions, DMs). Echoes
//     the url_verification challenge; everything else is acked with 200
//     immediately and processed asynchronously.
//   - POST /slack/commands: slash command form payloads. The synchronous
//     response is an ephemeral processing notice.
//
// Operational endpoints:
//
//   - GET /health, /health/ready: liveness and readiness.
//   - /api/tenants, /api/requests: admin API, JWT-guarded when
//     auth.jwt_secret is configured.
//
// # Listeners
//
// The server listens on a plain TCP address, or joins a tailnet via
// tsnet when tailscale.enabled is set. With tailscale.funnel the node
// gets a public HTTPS URL suitable for Slack's webhook delivery without
// any separate ingress.
package gateway
