// ABOUTME: Classifies raw Slack payloads into normalized Inbound events.
// ABOUTME: Drops bot-originated messages and unsupported event types.

package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
)

// Classification errors
var (
	// ErrSelfOriginated marks messages sent by the bot itself or another
	// bot integration. They are dropped silently to prevent feedback loops.
	ErrSelfOriginated = errors.New("self-originated event")

	// ErrUnsupported marks event types the gateway does not handle.
	// Logged and dropped, never surfaced to the requester.
	ErrUnsupported = errors.New("unsupported event type")
)

// Classifier normalizes inbound Slack payloads into Inbound events.
type Classifier struct {
	botUserID string
}

// NewClassifier creates a classifier. botUserID is the bot's own user ID,
// used to strip mention tokens and discard the bot's own messages.
func NewClassifier(botUserID string) *Classifier {
	return &Classifier{botUserID: botUserID}
}

// envelope is the subset of the Events API outer payload needed before
// full classification.
type envelope struct {
	TeamID string `json:"team_id"`
}

// PeekTenant extracts the workspace ID from an Events API payload without
// fully parsing it. Used for the authorization check that runs before
// classification.
func PeekTenant(payload []byte) (string, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return "", fmt.Errorf("parsing event envelope: %w", err)
	}
	if env.TeamID == "" {
		return "", fmt.Errorf("%w: payload has no team_id", ErrUnsupported)
	}
	return env.TeamID, nil
}

// ClassifySlash normalizes a parsed slash command.
func (c *Classifier) ClassifySlash(cmd slack.SlashCommand) (*Inbound, error) {
	if cmd.Command == "" {
		return nil, fmt.Errorf("%w: empty slash command", ErrUnsupported)
	}
	return &Inbound{
		Kind:           KindSlashCommand,
		TenantID:       cmd.TeamID,
		RequesterID:    cmd.UserID,
		ConversationID: cmd.ChannelID,
		Text:           cmd.Text,
		Command:        cmd.Command,
		ResponseURL:    cmd.ResponseURL,
	}, nil
}

// ClassifyEvent normalizes an Events API callback payload. App mentions
// become KindMention with the bot's mention token stripped from the text;
// direct messages become KindDirectMessage. Messages from the bot itself
// or any bot integration return ErrSelfOriginated.
func (c *Classifier) ClassifyEvent(payload []byte) (*Inbound, error) {
	parsed, err := slackevents.ParseEvent(json.RawMessage(payload), slackevents.OptionNoVerifyToken())
	if err != nil {
		return nil, fmt.Errorf("parsing event payload: %w", err)
	}
	if parsed.Type != slackevents.CallbackEvent {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, parsed.Type)
	}

	tenant := parsed.TeamID

	switch ev := parsed.InnerEvent.Data.(type) {
	case *slackevents.AppMentionEvent:
		if c.isSelf(ev.User, ev.BotID) {
			return nil, ErrSelfOriginated
		}
		threadID := ev.ThreadTimeStamp
		if threadID == "" {
			// A mention outside a thread starts one rooted at itself.
			threadID = ev.TimeStamp
		}
		return &Inbound{
			Kind:           KindMention,
			TenantID:       tenant,
			RequesterID:    ev.User,
			ConversationID: ev.Channel,
			ThreadID:       threadID,
			MessageTS:      ev.TimeStamp,
			Text:           c.stripMention(ev.Text),
		}, nil

	case *slackevents.MessageEvent:
		if c.isSelf(ev.User, ev.BotID) {
			return nil, ErrSelfOriginated
		}
		if ev.ChannelType != "im" {
			return nil, fmt.Errorf("%w: message in channel_type %q", ErrUnsupported, ev.ChannelType)
		}
		return &Inbound{
			Kind:           KindDirectMessage,
			TenantID:       tenant,
			RequesterID:    ev.User,
			ConversationID: ev.Channel,
			ThreadID:       ev.ThreadTimeStamp,
			MessageTS:      ev.TimeStamp,
			Text:           ev.Text,
		}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, parsed.InnerEvent.Type)
	}
}

// isSelf reports whether the message came from the bot itself or carries
// a bot-origin marker.
func (c *Classifier) isSelf(user, botID string) bool {
	if botID != "" {
		return true
	}
	return c.botUserID != "" && user == c.botUserID
}

// stripMention removes the bot's own mention token from the text.
func (c *Classifier) stripMention(text string) string {
	if c.botUserID == "" {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(strings.ReplaceAll(text, "<@"+c.botUserID+">", ""))
}
