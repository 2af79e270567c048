package ports

import (
	"context"

	"github.com/aretw0/thunder/pkg/domain"
)

// Generator produces model output for a conversation.
type Generator interface {
	// Generate returns the assistant reply to history under systemPrompt.
	// An empty systemPrompt means the provider default.
	Generate(ctx context.Context, systemPrompt string, history []domain.Message) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, systemPrompt string, history []domain.Message) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, systemPrompt string, history []domain.Message) (string, error) {
	return f(ctx, systemPrompt, history)
}
