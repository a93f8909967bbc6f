// ABOUTME: Responder interface and factory for the automated reply backend.
// ABOUTME: Providers are selected by config: openai or anthropic.

package responder

import (
	"context"
	"fmt"

	"github.com/2389/reggie-gateway/internal/config"
)

// Responder produces a reply for a prompt with optional conversational
// context. Implementations call an external model API and may take tens
// of seconds; callers bound them with a context deadline.
type Responder interface {
	Run(ctx context.Context, prompt, conversation string) (string, error)
}

// New creates a responder for the configured provider.
func New(cfg config.ResponderConfig) (Responder, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAI(cfg), nil
	case "anthropic":
		return NewAnthropic(cfg), nil
	default:
		return nil, fmt.Errorf("unknown responder provider %q", cfg.Provider)
	}
}

// buildMessage combines conversational context with the request prompt.
func buildMessage(prompt, conversation string) string {
	if conversation == "" {
		return prompt
	}
	return fmt.Sprintf("Conversation so far:\n%s\n\nRequest: %s", conversation, prompt)
}
