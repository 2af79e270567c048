package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/thunder/pkg/domain"
)

// Loader implements ports.TemplateLoader over an in-memory set of templates.
type Loader struct {
	templates map[string]domain.Template
}

// NewLoader creates a Loader. Later templates replace earlier ones with the same stack.
func NewLoader(templates ...domain.Template) *Loader {
	l := &Loader{templates: make(map[string]domain.Template, len(templates))}
	for _, t := range templates {
		l.templates[strings.ToLower(t.Stack)] = t
	}
	return l
}

// Template returns the template registered for stack (case-insensitive).
func (l *Loader) Template(_ context.Context, stack string) (*domain.Template, error) {
	t, ok := l.templates[strings.ToLower(strings.TrimSpace(stack))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrTemplateNotFound, stack)
	}
	out := t
	out.Prompts = append([]string(nil), t.Prompts...)
	out.UIPrompts = append([]string(nil), t.UIPrompts...)
	return &out, nil
}

// Stacks returns all available stack names.
func (l *Loader) Stacks(_ context.Context) ([]string, error) {
	keys := make([]string, 0, len(l.templates))
	for k := range l.templates {
		keys = append(keys, k)
	}
	sort.Strings(keys) // Deterministic order
	return keys, nil
}
