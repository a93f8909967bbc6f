// ABOUTME: Core admission and dispatch pipeline for inbound requests.
// ABOUTME: Gate, classify, admit, ack fast, then respond asynchronously.

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/slack-go/slack"

	"github.com/2389/reggie-gateway/internal/dedupe"
	"github.com/2389/reggie-gateway/internal/delivery"
	"github.com/2389/reggie-gateway/internal/event"
	"github.com/2389/reggie-gateway/internal/history"
	"github.com/2389/reggie-gateway/internal/mrkdwn"
	"github.com/2389/reggie-gateway/internal/store"
	"github.com/2389/reggie-gateway/internal/subscription"
)

// User-facing notices. Detail never leaks into these; it goes to the logs.
const (
	AckProcessing      = "⏳ Processing your request..."
	noticeBusy         = "You already have a request in progress. Please wait for it to finish."
	noticeUnsubscribed = "This workspace is not subscribed to this service."
)

// deliveryGrace is added on top of the responder timeout so delivery and
// the fallback apology still have time after a slow responder call.
const deliveryGrace = 30 * time.Second

// Assembler builds conversational context for an admitted request.
type Assembler interface {
	Assemble(ctx context.Context, in *event.Inbound) []history.Entry
}

// Responder produces the reply text for a prompt.
type Responder interface {
	Run(ctx context.Context, prompt, conversation string) (string, error)
}

// Deliverer posts results and failure apologies to the destination.
type Deliverer interface {
	Deliver(ctx context.Context, dest delivery.Destination, text string) error
	DeliverFailure(ctx context.Context, dest delivery.Destination)
}

// Notifier posts advisory messages and pickup reactions.
type Notifier interface {
	PostMessage(ctx context.Context, channel, threadTS, text string) error
	AcknowledgeMessage(ctx context.Context, channel, timestamp string) error
}

// Recorder writes terminal outcomes to the request ledger.
type Recorder interface {
	SaveRequestRecord(ctx context.Context, rec *store.RequestRecord) error
}

// Dispatcher runs the admission pipeline and the asynchronous response
// stage. The synchronous path (gate, classify, admit) is fast and must
// finish inside the platform's ack deadline; everything that touches the
// responder happens on a separate goroutine afterwards.
type Dispatcher struct {
	gate       subscription.Gate
	classifier *event.Classifier
	inflight   *dedupe.InFlight
	assembler  Assembler
	responder  Responder
	sender     Deliverer
	notifier   Notifier
	recorder   Recorder
	commands   map[string]string
	timeout    time.Duration
	logger     *slog.Logger
	wg         sync.WaitGroup
}

// Config collects the dispatcher's dependencies.
type Config struct {
	Gate       subscription.Gate
	Classifier *event.Classifier
	InFlight   *dedupe.InFlight
	Assembler  Assembler
	Responder  Responder
	Sender     Deliverer
	Notifier   Notifier
	Recorder   Recorder
	Commands   map[string]string // slash command -> prompt template
	Timeout    time.Duration     // responder invocation deadline
	Logger     *slog.Logger
}

// New creates a dispatcher.
func New(cfg Config) *Dispatcher {
	return &Dispatcher{
		gate:       cfg.Gate,
		classifier: cfg.Classifier,
		inflight:   cfg.InFlight,
		assembler:  cfg.Assembler,
		responder:  cfg.Responder,
		sender:     cfg.Sender,
		notifier:   cfg.Notifier,
		recorder:   cfg.Recorder,
		commands:   cfg.Commands,
		timeout:    cfg.Timeout,
		logger:     cfg.Logger.With("component", "dispatch"),
	}
}

// HandleEvent runs the pipeline for a verified Events API payload. The
// caller acks Slack with 200 regardless of the outcome here; every
// failure mode is advisory or silent, never an error response that
// would make Slack retry.
func (d *Dispatcher) HandleEvent(ctx context.Context, payload []byte) {
	tenant, err := event.PeekTenant(payload)
	if err != nil {
		d.logger.Warn("dropping event without tenant", "error", err)
		return
	}

	allowed, err := d.gate.Allowed(ctx, tenant)
	if err != nil {
		d.logger.Error("subscription check failed", "tenant", tenant, "error", err)
		return
	}
	if !allowed {
		d.rejectUnsubscribed(ctx, tenant, payload)
		return
	}

	in, err := d.classifier.ClassifyEvent(payload)
	if err != nil {
		d.drop(ctx, tenant, err)
		return
	}

	d.admit(ctx, in)
}

// HandleCommand runs the pipeline for a verified slash command and
// returns the ephemeral ack text for the synchronous response. An empty
// return means ack with an empty body.
func (d *Dispatcher) HandleCommand(ctx context.Context, cmd slack.SlashCommand) string {
	allowed, err := d.gate.Allowed(ctx, cmd.TeamID)
	if err != nil {
		d.logger.Error("subscription check failed", "tenant", cmd.TeamID, "error", err)
		return ""
	}
	if !allowed {
		d.record(&store.RequestRecord{
			TeamID:  cmd.TeamID,
			UserID:  cmd.UserID,
			Kind:    string(event.KindSlashCommand),
			Outcome: store.OutcomeForbidden,
		})
		return noticeUnsubscribed
	}

	in, err := d.classifier.ClassifySlash(cmd)
	if err != nil {
		d.drop(ctx, cmd.TeamID, err)
		return ""
	}

	if _, known := d.commands[in.Command]; !known {
		d.logger.Info("dropping unrecognized command", "command", in.Command, "tenant", in.TenantID)
		d.record(&store.RequestRecord{
			TeamID:  in.TenantID,
			UserID:  in.RequesterID,
			Kind:    string(in.Kind),
			Outcome: store.OutcomeDropped,
			Detail:  "unrecognized command " + in.Command,
		})
		return ""
	}

	if !d.inflight.TryAcquire(in.DedupKey()) {
		d.recordDuplicate(in)
		return noticeBusy
	}

	d.spawn(in)
	return AckProcessing
}

// spawn runs the asynchronous stage on its own goroutine, tracked so
// Wait can drain in-flight work during shutdown.
func (d *Dispatcher) spawn(in *event.Inbound) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.process(in)
	}()
}

// Wait blocks until all in-flight asynchronous stages have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// admit acquires the dedup key for a classified event and starts the
// asynchronous stage. Duplicates get one advisory post and no release,
// since nothing was admitted.
func (d *Dispatcher) admit(ctx context.Context, in *event.Inbound) {
	if !d.inflight.TryAcquire(in.DedupKey()) {
		d.recordDuplicate(in)
		if err := d.notifier.PostMessage(ctx, in.ConversationID, in.ThreadID, noticeBusy); err != nil {
			d.logger.Warn("failed to post busy notice", "channel", in.ConversationID, "error", err)
		}
		return
	}

	d.spawn(in)
}

// process is the asynchronous stage: react, assemble context, invoke the
// responder, deliver. It runs detached from the inbound HTTP request and
// must release the dedup key on every path.
func (d *Dispatcher) process(in *event.Inbound) {
	defer d.inflight.Release(in.DedupKey())

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout+deliveryGrace)
	defer cancel()

	logger := d.logger.With(
		"tenant", in.TenantID,
		"requester", in.RequesterID,
		"kind", in.Kind)

	if in.MessageTS != "" {
		if err := d.notifier.AcknowledgeMessage(ctx, in.ConversationID, in.MessageTS); err != nil {
			logger.Warn("failed to add pickup reaction", "error", err)
		}
	}

	conversation := history.Render(d.assembler.Assemble(ctx, in))

	prompt := in.Text
	if in.Kind == event.KindSlashCommand {
		prompt = fmt.Sprintf(d.commands[in.Command], in.Text)
	}

	dest := delivery.Destination{
		ConversationID: in.ConversationID,
		ThreadID:       in.ThreadID,
		CallbackURL:    in.ResponseURL,
	}

	rctx, rcancel := context.WithTimeout(ctx, d.timeout)
	reply, err := d.responder.Run(rctx, prompt, conversation)
	rcancel()
	if err != nil {
		logger.Error("responder failed", "error", err)
		d.sender.DeliverFailure(ctx, dest)
		d.recordOutcome(in, store.OutcomeFailed, fmt.Sprintf("responder: %v", err))
		return
	}

	text := d.frame(in, mrkdwn.Render(reply))
	if err := d.sender.Deliver(ctx, dest, text); err != nil {
		logger.Error("delivery failed", "error", err)
		d.recordOutcome(in, store.OutcomeFailed, fmt.Sprintf("delivery: %v", err))
		return
	}

	logger.Info("request delivered")
	d.recordOutcome(in, store.OutcomeDelivered, "")
}

// frame wraps the reply for delivery. Command and mention replies are
// visible to the whole channel, so they quote the requester and the
// original text; DM replies go back to the requester alone, bare.
func (d *Dispatcher) frame(in *event.Inbound, reply string) string {
	if in.Kind == event.KindDirectMessage {
		return reply
	}
	return fmt.Sprintf(">From: <@%s>\n>%s\n%s", in.RequesterID, in.Text, reply)
}

// rejectUnsubscribed posts one advisory to the originating conversation.
// Classification here is best-effort, only to find where to post.
func (d *Dispatcher) rejectUnsubscribed(ctx context.Context, tenant string, payload []byte) {
	d.logger.Info("rejecting unsubscribed tenant", "tenant", tenant)

	rec := &store.RequestRecord{TeamID: tenant, Outcome: store.OutcomeForbidden}
	if in, err := d.classifier.ClassifyEvent(payload); err == nil {
		rec.UserID = in.RequesterID
		rec.Kind = string(in.Kind)
		rec.ConversationID = in.ConversationID
		if err := d.notifier.PostMessage(ctx, in.ConversationID, in.ThreadID, noticeUnsubscribed); err != nil {
			d.logger.Warn("failed to post unsubscribed notice", "tenant", tenant, "error", err)
		}
	}
	d.record(rec)
}

// drop logs a classification failure. Self-originated messages are
// expected noise and not ledgered; unsupported payloads are.
func (d *Dispatcher) drop(ctx context.Context, tenant string, err error) {
	if errors.Is(err, event.ErrSelfOriginated) {
		d.logger.Debug("ignoring self-originated event", "tenant", tenant)
		return
	}
	d.logger.Info("dropping unsupported event", "tenant", tenant, "error", err)
	d.record(&store.RequestRecord{
		TeamID:  tenant,
		Outcome: store.OutcomeDropped,
		Detail:  err.Error(),
	})
}

func (d *Dispatcher) recordDuplicate(in *event.Inbound) {
	d.logger.Info("rejecting duplicate request", "key", in.DedupKey())
	d.record(&store.RequestRecord{
		TeamID:         in.TenantID,
		UserID:         in.RequesterID,
		Kind:           string(in.Kind),
		ConversationID: in.ConversationID,
		Outcome:        store.OutcomeDuplicate,
	})
}

func (d *Dispatcher) recordOutcome(in *event.Inbound, outcome, detail string) {
	d.record(&store.RequestRecord{
		TeamID:         in.TenantID,
		UserID:         in.RequesterID,
		Kind:           string(in.Kind),
		ConversationID: in.ConversationID,
		Outcome:        outcome,
		Detail:         detail,
	})
}

// record writes a ledger row on its own short deadline so a slow disk
// cannot stall the dispatch path.
func (d *Dispatcher) record(rec *store.RequestRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.recorder.SaveRequestRecord(ctx, rec); err != nil {
		d.logger.Error("failed to save request record", "tenant", rec.TeamID, "error", err)
	}
}
