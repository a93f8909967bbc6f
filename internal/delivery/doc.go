// Package delivery posts final responder output back to Slack, either
// as a channel message threaded under the request or through a slash
// command's callback URL. Failures trigger exactly one fallback apology
// and are never retried.
package delivery
