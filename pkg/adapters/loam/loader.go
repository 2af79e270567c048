package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/thunder/pkg/domain"
	"github.com/aretw0/thunder/pkg/prompts"
)

// Loader adapts a Loam repository of template documents to ports.TemplateLoader.
type Loader struct {
	Repo *loam.TypedRepository[TemplateMetadata]
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[TemplateMetadata]) *Loader {
	return &Loader{
		Repo: repo,
	}
}

// Open initialises a read-only Loam repository at dir and wraps it.
func Open(dir string) (*Loader, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	// Strict mode keeps numeric frontmatter consistent across adapters.
	// ReadOnly stops Loam from redirecting writes to a sandbox in dev mode.
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[TemplateMetadata](repo)), nil
}

// Template returns the template whose stack matches (case-insensitive).
func (l *Loader) Template(ctx context.Context, stack string) (*domain.Template, error) {
	want := strings.ToLower(strings.TrimSpace(stack))

	index, err := l.index(ctx)
	if err != nil {
		return nil, err
	}
	docID, ok := index[want]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrTemplateNotFound, stack)
	}

	doc, err := l.Repo.Get(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("loam get failed for %s: %w", docID, err)
	}
	return buildTemplate(want, doc.Data, doc.Content), nil
}

// Stacks lists the stacks defined in the repository, sorted.
func (l *Loader) Stacks(ctx context.Context) ([]string, error) {
	index, err := l.index(ctx)
	if err != nil {
		return nil, err
	}
	stacks := make([]string, 0, len(index))
	for s := range index {
		stacks = append(stacks, s)
	}
	sort.Strings(stacks)
	return stacks, nil
}

// index maps stack names to document ids.
func (l *Loader) index(ctx context.Context) (map[string]string, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	index := make(map[string]string, len(docs))
	for _, doc := range docs {
		stack := doc.Data.Stack
		if stack == "" {
			stack = trimExtension(doc.ID)
		}
		stack = strings.ToLower(stack)

		if existing, ok := index[stack]; ok {
			return nil, fmt.Errorf("collision detected: stack '%s' is defined in both '%s' and '%s'", stack, existing, doc.ID)
		}
		index[stack] = doc.ID
	}
	return index, nil
}

func buildTemplate(stack string, meta TemplateMetadata, content string) *domain.Template {
	markup := strings.TrimSpace(content)

	var ps []string
	if meta.BasePrompt {
		ps = append(ps, prompts.Base)
	}
	ps = append(ps, meta.Prompts...)
	if meta.ProjectContext {
		ps = append(ps, prompts.ProjectContext(markup, meta.Hidden...))
	}

	return &domain.Template{
		Stack:     stack,
		Title:     meta.Title,
		Prompts:   ps,
		UIPrompts: []string{markup},
	}
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}

// Watch emits the id of every template document that changes.
func (l *Loader) Watch(ctx context.Context) (<-chan string, error) {
	events, err := l.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan string, 1)

	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				select {
				case ch <- trimExtension(evt.ID):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}
