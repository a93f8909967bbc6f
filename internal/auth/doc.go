// Package auth provides authentication for reggie-gateway.
//
// # Slack Request Signatures
//
// Inbound webhook requests from Slack carry a timestamp header and a
// "v0=<hex>" signature header. Verifier checks the timestamp against a
// five minute freshness window, then compares the HMAC-SHA256 of
// "v0:<timestamp>:<raw body>" in constant time:
//
//	v := auth.NewVerifier(cfg.Slack.SigningSecret)
//	if err := v.Verify(body, tsHeader, sigHeader); err != nil {
//	    // reject with 403 before reading the payload
//	}
//
// Verification happens on the raw request body, before any parsing. A
// failed check returns ErrMissingHeader, ErrStaleRequest, or
// ErrInvalidSignature.
//
// # Admin Tokens
//
// The admin API authenticates with JWT tokens signed HS256 using the
// configured jwt_secret:
//
//	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
//	token, err := verifier.Generate("ops@example.com", 24*time.Hour)
//	subject, err := verifier.Verify(token)
//
// HTTPAuthMiddleware wraps admin handlers, rejecting requests without a
// valid bearer token and attaching the authenticated subject to the
// request context via WithAuth/FromContext.
package auth
