package ports

import (
	"context"

	"github.com/aretw0/thunder/pkg/domain"
)

// TemplateLoader resolves starter templates.
type TemplateLoader interface {
	// Template returns the template for stack.
	// Returns domain.ErrTemplateNotFound for unknown stacks.
	Template(ctx context.Context, stack string) (*domain.Template, error)

	// Stacks lists the available stack names.
	Stacks(ctx context.Context) ([]string, error)
}
