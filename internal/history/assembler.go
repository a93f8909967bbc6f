// ABOUTME: Best-effort conversation history assembly for responder prompts.
// ABOUTME: Fetch failures degrade to empty context rather than aborting dispatch.

package history

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"

	"github.com/2389/reggie-gateway/internal/event"
)

// Entry is one prior message included in the responder's context.
type Entry struct {
	Speaker string
	Text    string
}

// Conversations is the subset of the Slack API the assembler needs.
type Conversations interface {
	GetConversationRepliesContext(ctx context.Context, params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error)
	GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error)
}

// Assembler builds conversational context for admitted requests.
type Assembler struct {
	api    Conversations
	limit  int
	logger *slog.Logger
}

// New creates an assembler. limit caps how many channel messages are
// fetched when the request is not part of a thread.
func New(api Conversations, limit int, logger *slog.Logger) *Assembler {
	return &Assembler{
		api:    api,
		limit:  limit,
		logger: logger.With("component", "history"),
	}
}

// Assemble returns the prior conversation for the request, oldest first.
// Thread requests return every reply under the root; bare channel
// requests return the most recent messages; direct messages need no
// fetch, the incoming text is the whole context. Fetch errors are
// logged and produce an empty context.
func (a *Assembler) Assemble(ctx context.Context, in *event.Inbound) []Entry {
	switch {
	case in.Kind == event.KindDirectMessage:
		return []Entry{{Speaker: in.RequesterID, Text: in.Text}}

	case in.ThreadID != "":
		entries, err := a.threadReplies(ctx, in.ConversationID, in.ThreadID)
		if err != nil {
			a.logger.Warn("failed to fetch thread replies, continuing with empty context",
				"channel", in.ConversationID,
				"thread", in.ThreadID,
				"error", err)
			return nil
		}
		return entries

	default:
		entries, err := a.recentMessages(ctx, in.ConversationID)
		if err != nil {
			a.logger.Warn("failed to fetch channel history, continuing with empty context",
				"channel", in.ConversationID,
				"error", err)
			return nil
		}
		return entries
	}
}

// threadReplies fetches all replies under the thread root, oldest first.
func (a *Assembler) threadReplies(ctx context.Context, channel, threadTS string) ([]Entry, error) {
	var entries []Entry
	params := &slack.GetConversationRepliesParameters{
		ChannelID: channel,
		Timestamp: threadTS,
	}

	for {
		msgs, hasMore, cursor, err := a.api.GetConversationRepliesContext(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("fetching replies: %w", err)
		}
		entries = append(entries, filter(msgs)...)
		if !hasMore {
			return entries, nil
		}
		params.Cursor = cursor
	}
}

// recentMessages fetches the most recent channel messages. The API
// returns newest first, so the slice is reversed to chronological order.
func (a *Assembler) recentMessages(ctx context.Context, channel string) ([]Entry, error) {
	resp, err := a.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: channel,
		Limit:     a.limit,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching history: %w", err)
	}

	entries := filter(resp.Messages)
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// filter drops messages missing a speaker or text. Join/leave events
// and attachment-only bot posts carry neither a useful user nor body.
func filter(msgs []slack.Message) []Entry {
	var entries []Entry
	for _, m := range msgs {
		if m.User == "" || m.Text == "" {
			continue
		}
		entries = append(entries, Entry{Speaker: m.User, Text: m.Text})
	}
	return entries
}

// Render formats entries as "speaker: text" lines for the responder prompt.
func Render(entries []Entry) string {
	if len(entries) == 0 {
		return ""
	}
	out := ""
	for _, e := range entries {
		if out != "" {
			out += "\n"
		}
		out += fmt.Sprintf("%s: %s", e.Speaker, e.Text)
	}
	return out
}
