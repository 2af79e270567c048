package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/aretw0/thunder/pkg/domain"
)

// ErrScriptExhausted is returned when a Generator has no replies left.
var ErrScriptExhausted = errors.New("no scripted reply left")

// Call records one Generate invocation.
type Call struct {
	SystemPrompt string
	History      []domain.Message
}

// Generator replays canned replies in order. Useful for tests and offline runs.
type Generator struct {
	mu      sync.Mutex
	replies []string
	calls   []Call
	repeat  bool
}

// NewGenerator creates a Generator that answers with replies in order.
func NewGenerator(replies ...string) *Generator {
	return &Generator{replies: replies}
}

// Repeat makes the Generator keep returning its last reply once the script runs out.
func (g *Generator) Repeat() *Generator {
	g.repeat = true
	return g
}

// Generate returns the next reply. It honours ctx cancellation.
func (g *Generator) Generate(ctx context.Context, systemPrompt string, history []domain.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, Call{
		SystemPrompt: systemPrompt,
		History:      append([]domain.Message(nil), history...),
	})

	if len(g.replies) == 0 {
		return "", ErrScriptExhausted
	}
	reply := g.replies[0]
	if len(g.replies) > 1 || !g.repeat {
		g.replies = g.replies[1:]
	}
	return reply, nil
}

// Calls returns the recorded invocations.
func (g *Generator) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Call(nil), g.calls...)
}
