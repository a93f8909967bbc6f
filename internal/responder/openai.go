// ABOUTME: OpenAI chat-completions responder backend.
// ABOUTME: Sends instructions as the system message and the request as user content.

package responder

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/2389/reggie-gateway/internal/config"
)

// OpenAI implements Responder using the chat completions API.
type OpenAI struct {
	client       openai.Client
	model        string
	instructions string
}

// NewOpenAI creates an OpenAI responder from config.
func NewOpenAI(cfg config.ResponderConfig) *OpenAI {
	return &OpenAI{
		client:       openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:        cfg.Model,
		instructions: cfg.Instructions,
	}
}

// Run sends the prompt and returns the model's reply text.
func (o *OpenAI) Run(ctx context.Context, prompt, conversation string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(o.instructions),
			openai.UserMessage(buildMessage(prompt, conversation)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
