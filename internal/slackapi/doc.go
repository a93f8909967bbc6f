// Package slackapi wraps the Slack web API client used for outbound
// calls: posting replies, reactions, webhook responses, and fetching
// conversation history. One shared rate limiter covers every call so
// concurrent dispatches cannot trip Slack's per-method limits.
package slackapi
