package thunder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/aretw0/thunder/pkg/adapters/memory"
	"github.com/aretw0/thunder/pkg/domain"
	"github.com/aretw0/thunder/pkg/mount"
	"github.com/aretw0/thunder/pkg/parser"
	"github.com/aretw0/thunder/pkg/ports"
	"github.com/aretw0/thunder/pkg/prompts"
	"github.com/aretw0/thunder/pkg/reconcile"
	"github.com/aretw0/thunder/pkg/sandbox"
	"github.com/aretw0/thunder/pkg/session"
)

// ErrNoGenerator is returned by operations that need a model when none is configured.
var ErrNoGenerator = errors.New("no generator configured")

// ErrNoSandbox is returned by sandbox operations when no spawner or outbox is configured.
var ErrNoSandbox = errors.New("no sandbox configured")

// SpawnerFunc returns the command spawner of a session sandbox.
type SpawnerFunc func(sessionID string) (sandbox.Spawner, error)

// Builder runs the generator pipeline for many sessions.
type Builder struct {
	store      ports.SessionStore
	manager    *session.Manager
	generator  ports.Generator
	templates  ports.TemplateLoader
	parser     *parser.Parser
	spawner    SpawnerFunc
	logger     *slog.Logger
	hooks      domain.LifecycleHooks
	outbox     sandbox.Outbox
	mountOpts  []mount.Option
	policy     reconcile.Policy
	sessionOps []session.Option

	reconciler *reconcile.Reconciler

	mu       sync.Mutex
	inflight map[string]*call
}

// call is one model invocation in flight.
type call struct {
	cancel context.CancelFunc
}

// Option defines a functional option for configuring the Builder.
type Option func(*Builder)

// WithStore sets the session store. Default is an in-memory store.
func WithStore(s ports.SessionStore) Option {
	return func(b *Builder) {
		b.store = s
	}
}

// WithSessionOptions passes options to the session manager (locker, observers).
func WithSessionOptions(opts ...session.Option) Option {
	return func(b *Builder) {
		b.sessionOps = append(b.sessionOps, opts...)
	}
}

// WithGenerator sets the model.
func WithGenerator(g ports.Generator) Option {
	return func(b *Builder) {
		b.generator = g
	}
}

// WithTemplates sets the template library. Default is the built-in react and node starters.
func WithTemplates(l ports.TemplateLoader) Option {
	return func(b *Builder) {
		b.templates = l
	}
}

// WithParser replaces the markup parser.
func WithParser(p *parser.Parser) Option {
	return func(b *Builder) {
		b.parser = p
	}
}

// WithOutbox sets where mount commands go after each changed batch.
func WithOutbox(o sandbox.Outbox) Option {
	return func(b *Builder) {
		b.outbox = o
	}
}

// WithSpawner enables Exec by resolving the sandbox of a session.
func WithSpawner(fn SpawnerFunc) Option {
	return func(b *Builder) {
		b.spawner = fn
	}
}

// WithMountOptions passes projection options to every mount.
func WithMountOptions(opts ...mount.Option) Option {
	return func(b *Builder) {
		b.mountOpts = append(b.mountOpts, opts...)
	}
}

// WithPolicy sets the completion policy of the reconciler.
func WithPolicy(p reconcile.Policy) Option {
	return func(b *Builder) {
		b.policy = p
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(b *Builder) {
		b.hooks = hooks
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// New creates a Builder.
func New(opts ...Option) (*Builder, error) {
	b := &Builder{
		inflight: make(map[string]*call),
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.logger == nil {
		b.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if b.store == nil {
		b.store = memory.NewStore()
	}
	if b.templates == nil {
		b.templates = memory.NewLoader(prompts.Templates()...)
	}
	if b.parser == nil {
		b.parser = parser.New(parser.WithLogger(b.logger))
	}

	b.manager = session.NewManager(b.store, append([]session.Option{session.WithLogger(b.logger)}, b.sessionOps...)...)

	rOpts := []reconcile.Option{
		reconcile.WithPolicy(b.policy),
		reconcile.WithHooks(b.hooks),
		reconcile.WithMountOptions(b.mountOpts...),
		reconcile.WithLogger(b.logger),
	}
	if b.outbox != nil {
		rOpts = append(rOpts, reconcile.WithOutbox(b.outbox))
	}
	b.reconciler = reconcile.New(rOpts...)
	return b, nil
}

// Sessions exposes the session manager.
func (b *Builder) Sessions() *session.Manager {
	return b.manager
}

// Session loads a session.
func (b *Builder) Session(ctx context.Context, sessionID string) (*domain.Session, error) {
	return b.manager.Load(ctx, sessionID)
}

// List returns the ids of all stored sessions.
func (b *Builder) List(ctx context.Context) ([]string, error) {
	return b.manager.List(ctx)
}

// Delete cancels any model call in flight and removes the session.
func (b *Builder) Delete(ctx context.Context, sessionID string) error {
	b.Cancel(sessionID)
	return b.manager.Delete(ctx, sessionID)
}

// Stacks lists the template stacks.
func (b *Builder) Stacks(ctx context.Context) ([]string, error) {
	return b.templates.Stacks(ctx)
}

// Cancel aborts the model call in flight for a session. It reports whether one was running.
// The session stays reserved until the cancelled call has unwound, so a new
// prompt is rejected with domain.ErrGenerationInProgress until then.
func (b *Builder) Cancel(sessionID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.inflight[sessionID]
	if ok {
		c.cancel()
	}
	return ok
}

// begin registers a model call for a session. Only one may run per session.
func (b *Builder) begin(ctx context.Context, sessionID string) (context.Context, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, busy := b.inflight[sessionID]; busy {
		return nil, nil, domain.ErrGenerationInProgress
	}
	ctx, cancel := context.WithCancel(ctx)
	c := &call{cancel: cancel}
	b.inflight[sessionID] = c

	done := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		cancel()
		if b.inflight[sessionID] == c {
			delete(b.inflight, sessionID)
		}
	}
	return ctx, done, nil
}
