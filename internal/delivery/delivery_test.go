// ABOUTME: Tests for response delivery and the fallback apology path.
// ABOUTME: Covers channel posts, callback URLs, and double-failure give-up.

package delivery

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePoster records posts and can fail a configurable number of times.
type fakePoster struct {
	messages []string
	webhooks []*slack.WebhookMessage
	failures int
}

func (f *fakePoster) PostMessage(_ context.Context, channel, threadTS, text string) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("channel_not_found")
	}
	f.messages = append(f.messages, text)
	return nil
}

func (f *fakePoster) PostWebhook(_ context.Context, url string, msg *slack.WebhookMessage) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("expired_url")
	}
	f.webhooks = append(f.webhooks, msg)
	return nil
}

func newSender(p Poster) *Sender {
	return NewSender(p, slog.Default())
}

func TestDeliver_ChannelPost(t *testing.T) {
	p := &fakePoster{}
	s := newSender(p)

	err := s.Deliver(context.Background(), Destination{ConversationID: "C1", ThreadID: "123.456"}, "the answer")
	require.NoError(t, err)
	require.Len(t, p.messages, 1)
	assert.Equal(t, "the answer", p.messages[0])
	assert.Empty(t, p.webhooks)
}

func TestDeliver_Callback(t *testing.T) {
	p := &fakePoster{}
	s := newSender(p)

	dest := Destination{
		ConversationID: "C1",
		CallbackURL:    "https://hooks.slack.com/commands/T1/123/abc",
	}
	err := s.Deliver(context.Background(), dest, "the answer")
	require.NoError(t, err)
	require.Len(t, p.webhooks, 1)
	assert.Equal(t, "the answer", p.webhooks[0].Text)
	assert.Equal(t, slack.ResponseTypeInChannel, p.webhooks[0].ResponseType)
	assert.Empty(t, p.messages, "callback wins over channel post")
}

func TestDeliver_FallbackApology(t *testing.T) {
	// First post fails, fallback apology succeeds
	p := &fakePoster{failures: 1}
	s := newSender(p)

	err := s.Deliver(context.Background(), Destination{ConversationID: "C1"}, "the answer")
	assert.Error(t, err, "original failure is still reported")
	require.Len(t, p.messages, 1)
	assert.Equal(t, apologyText, p.messages[0])
}

func TestDeliver_DoubleFailureGivesUp(t *testing.T) {
	p := &fakePoster{failures: 5}
	s := newSender(p)

	err := s.Deliver(context.Background(), Destination{ConversationID: "C1"}, "the answer")
	assert.Error(t, err)
	assert.Empty(t, p.messages, "no retries beyond the single fallback")
	assert.Equal(t, 3, p.failures, "exactly two post attempts")
}

func TestDeliverFailure(t *testing.T) {
	p := &fakePoster{}
	s := newSender(p)

	s.DeliverFailure(context.Background(), Destination{ConversationID: "C1"})
	require.Len(t, p.messages, 1)
	assert.Equal(t, apologyText, p.messages[0])
}

func TestDeliverFailure_SwallowsError(t *testing.T) {
	p := &fakePoster{failures: 5}
	s := newSender(p)

	// Must not panic or loop
	s.DeliverFailure(context.Background(), Destination{ConversationID: "C1"})
	assert.Empty(t, p.messages)
}
