// ABOUTME: Normalized inbound event model for the dispatch pipeline.
// ABOUTME: One Inbound shape covers mentions, direct messages, and slash commands.

package event

// Kind identifies how an inbound request reached the gateway.
type Kind string

const (
	KindMention       Kind = "mention"
	KindDirectMessage Kind = "direct_message"
	KindSlashCommand  Kind = "slash_command"
)

// Inbound is the normalized form of an admitted request. It is produced
// once by the Classifier and never mutated afterwards.
type Inbound struct {
	Kind           Kind
	TenantID       string // workspace the request originated from
	RequesterID    string // user who triggered the request
	ConversationID string // channel or DM the request arrived in
	ThreadID       string // thread root timestamp; empty for slash commands
	MessageTS      string // timestamp of the triggering message; empty for slash commands
	Text           string // request text with any bot mention tokens stripped
	Command        string // slash command token, e.g. "/translate-id"
	ResponseURL    string // deferred callback URL for slash commands
}

// DedupKey returns the admission key for this request. Slash commands
// dedupe per command so a user can run "/en" while "/translate-id" is
// still in flight; mentions and DMs share one key per requester.
func (in *Inbound) DedupKey() string {
	if in.Kind == KindSlashCommand {
		return in.TenantID + ":" + in.RequesterID + ":" + in.Command
	}
	return in.TenantID + ":" + in.RequesterID
}
