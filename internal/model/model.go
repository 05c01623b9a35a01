package model

import (
	"context"

	"github.com/stupiduntilnot/personabot/internal/prompt"
)

// CompletionResponse is the common response model for model providers.
type CompletionResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
}

// Provider is the model provider abstraction used by the chat service.
type Provider interface {
	ChatCompletion(ctx context.Context, messages []prompt.Message) (CompletionResponse, error)
}
