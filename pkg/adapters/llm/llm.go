// Package llm implements ports.Generator on top of the go-agent toolkit.
package llm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	agent "github.com/Protocol-Lattice/go-agent"
	adk "github.com/Protocol-Lattice/go-agent/src/adk"
	adkmodules "github.com/Protocol-Lattice/go-agent/src/adk/modules"
	"github.com/Protocol-Lattice/go-agent/src/memory"
	"github.com/Protocol-Lattice/go-agent/src/models"
	"github.com/aretw0/thunder/pkg/domain"
	"github.com/google/uuid"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.5-pro"

// Agent is the part of *agent.Agent the generator needs.
type Agent interface {
	Generate(ctx context.Context, sessionID, input string) (string, error)
}

var _ Agent = (*agent.Agent)(nil)

// Factory builds an agent bound to a system prompt.
type Factory func(ctx context.Context, systemPrompt string) (Agent, error)

// Generator renders the conversation into a transcript and asks an agent for the next turn.
// Agents are built lazily, one per distinct system prompt.
type Generator struct {
	factory Factory
	logger  *slog.Logger

	mu     sync.Mutex
	agents map[string]Agent
}

// Option configures the Generator.
type Option func(*Generator)

// WithFactory replaces the Gemini agent factory.
func WithFactory(f Factory) Option {
	return func(g *Generator) {
		g.factory = f
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// New creates a Generator backed by model. Credentials are read by the
// Gemini client from the environment (GOOGLE_API_KEY).
func New(model string, opts ...Option) *Generator {
	if model == "" {
		model = DefaultModel
	}
	g := &Generator{
		factory: GeminiFactory(model),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		agents:  make(map[string]Agent),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GeminiFactory builds go-agent agents on the Gemini model module.
func GeminiFactory(model string) Factory {
	return func(ctx context.Context, systemPrompt string) (Agent, error) {
		memOpts := memory.DefaultOptions()
		builder, err := adk.New(
			ctx,
			adk.WithDefaultSystemPrompt(systemPrompt),
			adk.WithModules(
				adkmodules.InMemoryMemoryModule(512, memory.AutoEmbedder(), &memOpts),
				adkmodules.NewModelModule("gemini", func(_ context.Context) (models.Agent, error) {
					return models.NewGeminiLLM(ctx, model, "Website generator")
				}),
			),
		)
		if err != nil {
			return nil, err
		}
		a, err := builder.BuildAgent(ctx)
		if err != nil {
			return nil, err
		}
		return a, nil
	}
}

// Generate implements ports.Generator.
func (g *Generator) Generate(ctx context.Context, systemPrompt string, history []domain.Message) (string, error) {
	if len(history) == 0 {
		return "", fmt.Errorf("empty conversation")
	}

	a, err := g.agent(ctx, systemPrompt)
	if err != nil {
		return "", fmt.Errorf("failed to build agent: %w", err)
	}

	// Each call gets its own agent session: history is passed explicitly.
	callID := uuid.NewString()
	g.logger.Debug("Calling model", "call_id", callID, "messages", len(history))

	reply, err := a.Generate(ctx, callID, Transcript(history))
	if err != nil {
		return "", fmt.Errorf("model call failed: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

func (g *Generator) agent(ctx context.Context, systemPrompt string) (Agent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if a, ok := g.agents[systemPrompt]; ok {
		return a, nil
	}
	a, err := g.factory(ctx, systemPrompt)
	if err != nil {
		return nil, err
	}
	g.agents[systemPrompt] = a
	return a, nil
}

// Transcript renders history for a single-input model call.
// A lone user message is sent as is.
func Transcript(history []domain.Message) string {
	if len(history) == 1 && history[0].Role == domain.RoleUser {
		return history[0].Content
	}

	var b strings.Builder
	for i, m := range history {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch m.Role {
		case domain.RoleAssistant:
			b.WriteString("Assistant: ")
		default:
			b.WriteString("User: ")
		}
		b.WriteString(m.Content)
	}
	b.WriteString("\n\nAssistant:")
	return b.String()
}
