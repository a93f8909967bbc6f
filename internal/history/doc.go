// Package history assembles prior conversation messages for responder
// prompts. Assembly is best-effort enrichment: a failed fetch logs a
// warning and the request proceeds with empty context.
package history
