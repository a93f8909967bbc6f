// ABOUTME: Anthropic messages-API responder backend.
// ABOUTME: Sends instructions as the system block and the request as a user message.

package responder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/2389/reggie-gateway/internal/config"
)

// maxResponseTokens bounds reply length; Slack truncates long messages anyway.
const maxResponseTokens = 4096

// Anthropic implements Responder using the messages API.
type Anthropic struct {
	client       anthropic.Client
	model        string
	instructions string
}

// NewAnthropic creates an Anthropic responder from config.
func NewAnthropic(cfg config.ResponderConfig) *Anthropic {
	return &Anthropic{
		client:       anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:        cfg.Model,
		instructions: cfg.Instructions,
	}
}

// Run sends the prompt and returns the model's reply text.
func (a *Anthropic) Run(ctx context.Context, prompt, conversation string) (string, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: maxResponseTokens,
		System: []anthropic.TextBlockParam{
			{Text: a.instructions},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildMessage(prompt, conversation))),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic message: %w", err)
	}

	var out strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return "", errors.New("anthropic message returned no text")
	}
	return out.String(), nil
}
