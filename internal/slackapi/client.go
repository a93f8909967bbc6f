// ABOUTME: Rate-limited wrapper around the Slack web API client.
// ABOUTME: All outbound calls share one limiter to stay under Slack's tier limits.

package slackapi

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"golang.org/x/time/rate"
)

// ackReaction is the emoji posted on a message to show it was picked up.
const ackReaction = "eyes"

// Client wraps the Slack web API with a shared rate limiter. Slack's
// Tier 3 methods allow roughly one call per second with short bursts.
type Client struct {
	api     *slack.Client
	limiter *rate.Limiter
}

// New creates a client for the given bot token.
func New(botToken string) *Client {
	return &Client{
		api:     slack.New(botToken),
		limiter: rate.NewLimiter(rate.Limit(1), 3),
	}
}

// AuthTest verifies the bot token and returns the bot's own user ID.
func (c *Client) AuthTest(ctx context.Context) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	resp, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return "", fmt.Errorf("auth test: %w", err)
	}
	return resp.UserID, nil
}

// PostMessage posts text to a channel, threading under threadTS if set.
func (c *Client) PostMessage(ctx context.Context, channel, threadTS, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}
	if _, _, err := c.api.PostMessageContext(ctx, channel, opts...); err != nil {
		return fmt.Errorf("posting message: %w", err)
	}
	return nil
}

// PostEphemeral posts text visible only to one user in a channel.
func (c *Client) PostEphemeral(ctx context.Context, channel, user, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := c.api.PostEphemeralContext(ctx, channel, user, slack.MsgOptionText(text, false)); err != nil {
		return fmt.Errorf("posting ephemeral: %w", err)
	}
	return nil
}

// AcknowledgeMessage adds the pickup reaction to the triggering message.
func (c *Client) AcknowledgeMessage(ctx context.Context, channel, timestamp string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := c.api.AddReactionContext(ctx, ackReaction, slack.NewRefToMessage(channel, timestamp)); err != nil {
		return fmt.Errorf("adding reaction: %w", err)
	}
	return nil
}

// GetConversationRepliesContext fetches one page of thread replies.
func (c *Client) GetConversationRepliesContext(ctx context.Context, params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, false, "", err
	}
	return c.api.GetConversationRepliesContext(ctx, params)
}

// GetConversationHistoryContext fetches recent channel messages.
func (c *Client) GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.api.GetConversationHistoryContext(ctx, params)
}

// PostWebhook posts a message to a slash command's response URL.
func (c *Client) PostWebhook(ctx context.Context, url string, msg *slack.WebhookMessage) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := slack.PostWebhookContext(ctx, url, msg); err != nil {
		return fmt.Errorf("posting webhook: %w", err)
	}
	return nil
}
