// ABOUTME: Delivers final responder output to the originating conversation.
// ABOUTME: Channel posts or callback URLs, with one fallback apology on failure.

package delivery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"
)

// apologyText is the single generic failure message shown to requesters.
// Detail lives in the logs, never in the channel.
const apologyText = "Sorry, something went wrong while handling your request. Please try again."

// Destination identifies where a response should land. A non-empty
// CallbackURL wins over a channel post; Slack's callback URLs are
// single-use and expire, so a failed callback cannot be retried.
type Destination struct {
	ConversationID string
	ThreadID       string
	CallbackURL    string
}

// Poster is the subset of the Slack client the sender needs.
type Poster interface {
	PostMessage(ctx context.Context, channel, threadTS, text string) error
	PostWebhook(ctx context.Context, url string, msg *slack.WebhookMessage) error
}

// Sender posts final results back to Slack.
type Sender struct {
	poster Poster
	logger *slog.Logger
}

// NewSender creates a sender.
func NewSender(poster Poster, logger *slog.Logger) *Sender {
	return &Sender{
		poster: poster,
		logger: logger.With("component", "delivery"),
	}
}

// Deliver posts text to the destination. On failure it attempts exactly
// one fallback post of a generic apology to the same destination; if
// that also fails it logs and gives up. No automatic retries: a retry
// that lands twice is worse than a missed reply.
func (s *Sender) Deliver(ctx context.Context, dest Destination, text string) error {
	err := s.post(ctx, dest, text)
	if err == nil {
		return nil
	}

	s.logger.Error("delivery failed, posting fallback apology",
		"channel", dest.ConversationID,
		"callback", dest.CallbackURL != "",
		"error", err)

	if fbErr := s.post(ctx, dest, apologyText); fbErr != nil {
		s.logger.Error("fallback apology also failed, giving up",
			"channel", dest.ConversationID,
			"error", fbErr)
	}
	return fmt.Errorf("delivering response: %w", err)
}

// DeliverFailure posts the generic apology directly, used when the
// responder itself failed and there is no result to deliver.
func (s *Sender) DeliverFailure(ctx context.Context, dest Destination) {
	if err := s.post(ctx, dest, apologyText); err != nil {
		s.logger.Error("failed to deliver apology",
			"channel", dest.ConversationID,
			"error", err)
	}
}

func (s *Sender) post(ctx context.Context, dest Destination, text string) error {
	if dest.CallbackURL != "" {
		return s.poster.PostWebhook(ctx, dest.CallbackURL, &slack.WebhookMessage{
			Text:         text,
			ResponseType: slack.ResponseTypeInChannel,
		})
	}
	return s.poster.PostMessage(ctx, dest.ConversationID, dest.ThreadID, text)
}
