// Package event normalizes heterogeneous Slack payloads (app mentions,
// direct messages, slash commands) into a single Inbound shape consumed
// by the dispatcher. Bot-originated messages are discarded here so the
// gateway can never reply to itself.
package event
