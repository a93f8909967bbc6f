// ABOUTME: Tests for the admission and dispatch pipeline.
// ABOUTME: Covers end-to-end command flow, duplicates, gating, and key release.

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/reggie-gateway/internal/dedupe"
	"github.com/2389/reggie-gateway/internal/delivery"
	"github.com/2389/reggie-gateway/internal/event"
	"github.com/2389/reggie-gateway/internal/history"
	"github.com/2389/reggie-gateway/internal/store"
	"github.com/2389/reggie-gateway/internal/subscription"
)

// fakeAssembler returns fixed context entries.
type fakeAssembler struct {
	entries []history.Entry
}

func (f *fakeAssembler) Assemble(context.Context, *event.Inbound) []history.Entry {
	return f.entries
}

// fakeResponder records the prompt and returns a canned reply.
type fakeResponder struct {
	mu      sync.Mutex
	prompts []string
	reply   string
	err     error
	block   chan struct{} // if set, Run waits until closed
}

func (f *fakeResponder) Run(ctx context.Context, prompt, conversation string) (string, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	return f.reply, f.err
}

func (f *fakeResponder) gotPrompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

// fakeSender records deliveries and failures.
type fakeSender struct {
	mu        sync.Mutex
	delivered []string
	dests     []delivery.Destination
	failures  int
	err       error
}

func (f *fakeSender) Deliver(_ context.Context, dest delivery.Destination, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.delivered = append(f.delivered, text)
	f.dests = append(f.dests, dest)
	return nil
}

func (f *fakeSender) DeliverFailure(_ context.Context, dest delivery.Destination) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures++
	f.dests = append(f.dests, dest)
}

// fakeNotifier records advisory posts and reactions.
type fakeNotifier struct {
	mu        sync.Mutex
	posts     []string
	reactions []string
}

func (f *fakeNotifier) PostMessage(_ context.Context, channel, threadTS, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, text)
	return nil
}

func (f *fakeNotifier) AcknowledgeMessage(_ context.Context, channel, timestamp string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions = append(f.reactions, channel+":"+timestamp)
	return nil
}

// fakeRecorder collects ledger writes.
type fakeRecorder struct {
	mu      sync.Mutex
	records []*store.RequestRecord
}

func (f *fakeRecorder) SaveRequestRecord(_ context.Context, rec *store.RequestRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeRecorder) outcomes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, r := range f.records {
		out = append(out, r.Outcome)
	}
	return out
}

type harness struct {
	dispatcher *Dispatcher
	inflight   *dedupe.InFlight
	responder  *fakeResponder
	sender     *fakeSender
	notifier   *fakeNotifier
	recorder   *fakeRecorder
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()

	h := &harness{
		inflight:  dedupe.New(10 * time.Minute),
		responder: &fakeResponder{reply: "Selamat pagi"},
		sender:    &fakeSender{},
		notifier:  &fakeNotifier{},
		recorder:  &fakeRecorder{},
	}
	t.Cleanup(h.inflight.Close)

	cfg := Config{
		Gate:       subscription.NewStaticGate([]string{"T06LP8F3K8V"}),
		Classifier: event.NewClassifier("U0BOT"),
		InFlight:   h.inflight,
		Assembler:  &fakeAssembler{},
		Responder:  h.responder,
		Sender:     h.sender,
		Notifier:   h.notifier,
		Recorder:   h.recorder,
		Commands: map[string]string{
			"/translate-id": "Translate this message to Indonesian: %s",
			"/en":           "Translate this message to English: %s",
		},
		Timeout: 5 * time.Second,
		Logger:  slog.Default(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	h.dispatcher = New(cfg)
	return h
}

func slashCmd(command, text string) slack.SlashCommand {
	return slack.SlashCommand{
		Command:     command,
		Text:        text,
		TeamID:      "T06LP8F3K8V",
		UserID:      "U123",
		ChannelID:   "C456",
		ResponseURL: "https://hooks.slack.com/commands/T06LP8F3K8V/123/abc",
	}
}

func mentionPayload(user, text string) []byte {
	return []byte(fmt.Sprintf(`{
		"team_id": "T06LP8F3K8V",
		"type": "event_callback",
		"event": {
			"type": "app_mention",
			"user": %q,
			"text": %q,
			"channel": "C456",
			"ts": "1700000000.000100"
		}
	}`, user, text))
}

func TestHandleCommand_EndToEnd(t *testing.T) {
	h := newHarness(t, nil)

	ack := h.dispatcher.HandleCommand(context.Background(), slashCmd("/translate-id", "hello"))
	assert.Equal(t, AckProcessing, ack, "caller gets the processing notice inside the ack deadline")

	h.dispatcher.Wait()

	prompts := h.responder.gotPrompts()
	require.Len(t, prompts, 1)
	assert.Equal(t, "Translate this message to Indonesian: hello", prompts[0])

	require.Len(t, h.sender.delivered, 1)
	assert.Contains(t, h.sender.delivered[0], "Selamat pagi")
	assert.Contains(t, h.sender.delivered[0], "<@U123>", "reply is framed with the requester's mention")
	assert.Equal(t, "https://hooks.slack.com/commands/T06LP8F3K8V/123/abc", h.sender.dests[0].CallbackURL)

	assert.Equal(t, []string{store.OutcomeDelivered}, h.recorder.outcomes())
	assert.False(t, h.inflight.Held("T06LP8F3K8V:U123:/translate-id"), "key released after delivery")
}

func TestHandleCommand_DuplicateRejected(t *testing.T) {
	h := newHarness(t, nil)
	h.responder.block = make(chan struct{})

	first := h.dispatcher.HandleCommand(context.Background(), slashCmd("/translate-id", "hello"))
	assert.Equal(t, AckProcessing, first)

	second := h.dispatcher.HandleCommand(context.Background(), slashCmd("/translate-id", "hello again"))
	assert.Equal(t, noticeBusy, second)

	// A different command from the same user is admitted independently
	third := h.dispatcher.HandleCommand(context.Background(), slashCmd("/en", "halo"))
	assert.Equal(t, AckProcessing, third)

	close(h.responder.block)
	h.dispatcher.Wait()

	assert.Len(t, h.responder.gotPrompts(), 2, "duplicate never reached the responder")
	assert.Contains(t, h.recorder.outcomes(), store.OutcomeDuplicate)
}

func TestHandleCommand_UnsubscribedTenant(t *testing.T) {
	h := newHarness(t, nil)

	cmd := slashCmd("/translate-id", "hello")
	cmd.TeamID = "T-stranger"
	ack := h.dispatcher.HandleCommand(context.Background(), cmd)

	assert.Equal(t, noticeUnsubscribed, ack)
	h.dispatcher.Wait()
	assert.Empty(t, h.responder.gotPrompts(), "no responder invocation")
	assert.Equal(t, []string{store.OutcomeForbidden}, h.recorder.outcomes())
	assert.Equal(t, 0, h.inflight.Len(), "no dedup key was ever created")
}

func TestHandleCommand_UnrecognizedCommandDropped(t *testing.T) {
	h := newHarness(t, nil)

	ack := h.dispatcher.HandleCommand(context.Background(), slashCmd("/weather", "tomorrow"))
	assert.Empty(t, ack)

	h.dispatcher.Wait()
	assert.Empty(t, h.responder.gotPrompts())
	assert.Equal(t, []string{store.OutcomeDropped}, h.recorder.outcomes())
}

func TestHandleCommand_ResponderFailureReleasesKey(t *testing.T) {
	h := newHarness(t, nil)
	h.responder.err = errors.New("model overloaded")

	h.dispatcher.HandleCommand(context.Background(), slashCmd("/translate-id", "hello"))
	h.dispatcher.Wait()

	assert.Equal(t, 1, h.sender.failures, "apology delivered on responder failure")
	assert.Equal(t, []string{store.OutcomeFailed}, h.recorder.outcomes())
	assert.Equal(t, 0, h.inflight.Len(), "key released even on failure")
}

func TestHandleCommand_DeliveryFailureReleasesKey(t *testing.T) {
	h := newHarness(t, nil)
	h.sender.err = errors.New("channel_not_found")

	h.dispatcher.HandleCommand(context.Background(), slashCmd("/translate-id", "hello"))
	h.dispatcher.Wait()

	assert.Equal(t, []string{store.OutcomeFailed}, h.recorder.outcomes())
	assert.Equal(t, 0, h.inflight.Len())
}

func TestHandleEvent_MentionEndToEnd(t *testing.T) {
	h := newHarness(t, nil)

	h.dispatcher.HandleEvent(context.Background(), mentionPayload("U123", "<@U0BOT> translate this"))
	h.dispatcher.Wait()

	prompts := h.responder.gotPrompts()
	require.Len(t, prompts, 1)
	assert.Equal(t, "translate this", prompts[0], "mention token stripped, raw text as prompt")

	require.Len(t, h.sender.delivered, 1)
	assert.Equal(t, ">From: <@U123>\n>translate this\nSelamat pagi", h.sender.delivered[0],
		"mention replies quote the requester and the stripped text")
	assert.Equal(t, "1700000000.000100", h.sender.dests[0].ThreadID, "reply threads under the mention")

	assert.Equal(t, []string{"C456:1700000000.000100"}, h.notifier.reactions, "pickup reaction added")
}

func dmPayload(user, text string) []byte {
	return []byte(fmt.Sprintf(`{
		"team_id": "T06LP8F3K8V",
		"type": "event_callback",
		"event": {
			"type": "message",
			"channel_type": "im",
			"user": %q,
			"text": %q,
			"channel": "D789",
			"ts": "1700000000.000200"
		}
	}`, user, text))
}

func TestHandleEvent_DirectMessageUnframed(t *testing.T) {
	h := newHarness(t, nil)

	h.dispatcher.HandleEvent(context.Background(), dmPayload("U123", "good morning"))
	h.dispatcher.Wait()

	require.Len(t, h.sender.delivered, 1)
	assert.Equal(t, "Selamat pagi", h.sender.delivered[0], "DM replies are bare responder text")
	assert.Equal(t, "D789", h.sender.dests[0].ConversationID)
}

func TestHandleEvent_SelfOriginatedDropped(t *testing.T) {
	h := newHarness(t, nil)

	h.dispatcher.HandleEvent(context.Background(), mentionPayload("U0BOT", "<@U0BOT> hi"))
	h.dispatcher.Wait()

	assert.Empty(t, h.responder.gotPrompts())
	assert.Empty(t, h.recorder.outcomes(), "self messages are not ledgered")
	assert.Equal(t, 0, h.inflight.Len())
}

func TestHandleEvent_UnsubscribedTenantAdvisory(t *testing.T) {
	h := newHarness(t, func(cfg *Config) {
		cfg.Gate = subscription.NewStaticGate([]string{"T-other"})
	})

	h.dispatcher.HandleEvent(context.Background(), mentionPayload("U123", "<@U0BOT> hi"))
	h.dispatcher.Wait()

	require.Len(t, h.notifier.posts, 1, "single advisory post")
	assert.Equal(t, noticeUnsubscribed, h.notifier.posts[0])
	assert.Empty(t, h.responder.gotPrompts())
	assert.Equal(t, []string{store.OutcomeForbidden}, h.recorder.outcomes())
	assert.Equal(t, 0, h.inflight.Len(), "no dedup key for forbidden requests")
}

func TestHandleEvent_DuplicateAdvisory(t *testing.T) {
	h := newHarness(t, nil)
	h.responder.block = make(chan struct{})

	h.dispatcher.HandleEvent(context.Background(), mentionPayload("U123", "<@U0BOT> first"))
	h.dispatcher.HandleEvent(context.Background(), mentionPayload("U123", "<@U0BOT> second"))

	close(h.responder.block)
	h.dispatcher.Wait()

	assert.Len(t, h.responder.gotPrompts(), 1, "second request collapsed into the first")
	assert.Contains(t, h.notifier.posts, noticeBusy)
	assert.Equal(t, 0, h.inflight.Len(), "winner's key released, loser never admitted")
}

func TestHandleEvent_MissingTenantDropped(t *testing.T) {
	h := newHarness(t, nil)

	h.dispatcher.HandleEvent(context.Background(), []byte(`{"type":"event_callback"}`))
	h.dispatcher.Wait()

	assert.Empty(t, h.responder.gotPrompts())
	assert.Equal(t, 0, h.inflight.Len())
}

func TestHandleEvent_ContextPassedToResponder(t *testing.T) {
	var gotConversation string
	h := newHarness(t, func(cfg *Config) {
		cfg.Assembler = &fakeAssembler{entries: []history.Entry{
			{Speaker: "U1", Text: "earlier message"},
		}}
	})
	h.dispatcher.responder = responderFunc(func(ctx context.Context, prompt, conversation string) (string, error) {
		gotConversation = conversation
		return "ok", nil
	})

	h.dispatcher.HandleEvent(context.Background(), mentionPayload("U123", "<@U0BOT> continue"))
	h.dispatcher.Wait()

	assert.Equal(t, "U1: earlier message", gotConversation)
}

// responderFunc adapts a function to the Responder interface.
type responderFunc func(ctx context.Context, prompt, conversation string) (string, error)

func (f responderFunc) Run(ctx context.Context, prompt, conversation string) (string, error) {
	return f(ctx, prompt, conversation)
}
