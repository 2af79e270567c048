package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/aretw0/thunder"
	"github.com/aretw0/thunder/internal/config"
	thunderhttp "github.com/aretw0/thunder/pkg/adapters/http"
	"github.com/aretw0/thunder/pkg/adapters/llm"
	loamadapter "github.com/aretw0/thunder/pkg/adapters/loam"
	"github.com/aretw0/thunder/pkg/adapters/mcp"
	"github.com/aretw0/thunder/pkg/adapters/memory"
	"github.com/aretw0/thunder/pkg/adapters/process"
	"github.com/aretw0/thunder/pkg/domain"
	"github.com/aretw0/thunder/pkg/mount"
	"github.com/aretw0/thunder/pkg/observability"
	"github.com/aretw0/thunder/pkg/ports"
	"github.com/aretw0/thunder/pkg/prompts"
	"github.com/aretw0/thunder/pkg/sandbox"
	"github.com/aretw0/thunder/pkg/session"
)

// App is a fully wired builder with its transports and background workers.
type App struct {
	Config    config.Config
	Logger    *slog.Logger
	Builder   *thunder.Builder
	Streams   *thunderhttp.StreamManager
	Metrics   *observability.Metrics
	Workspace *process.Workspace

	projector *sandbox.Projector
	watch     thunderhttp.WatchFunc
	closers   []io.Closer
}

// AppOption configures NewApp.
type AppOption func(*appOptions)

type appOptions struct {
	generator ports.Generator
	debug     bool
}

// WithGenerator replaces the model client, e.g. with a scripted one.
func WithGenerator(g ports.Generator) AppOption {
	return func(o *appOptions) {
		o.generator = g
	}
}

// WithDebugHooks logs every step and mount at debug level.
func WithDebugHooks(debug bool) AppOption {
	return func(o *appOptions) {
		o.debug = debug
	}
}

// NewApp wires the store, templates, model, sandbox and metrics described by cfg.
func NewApp(cfg config.Config, logger *slog.Logger, opts ...AppOption) (*App, error) {
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	app := &App{
		Config:  cfg,
		Logger:  logger,
		Streams: thunderhttp.NewStreamManager(logger),
		Metrics: observability.NewMetrics(),
	}

	store, locker, closer, err := OpenStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	app.closers = append(app.closers, closer)

	templates, err := app.templates(cfg.Templates)
	if err != nil {
		app.Close()
		return nil, err
	}

	gen := o.generator
	if gen == nil {
		if cfg.Model.APIKey != "" && os.Getenv("GOOGLE_API_KEY") == "" {
			os.Setenv("GOOGLE_API_KEY", cfg.Model.APIKey)
		}
		gen = llm.New(cfg.Model.Name, llm.WithLogger(logger))
	}

	hooks := app.Metrics.Hooks()
	if o.debug {
		hooks = observability.Compose(hooks, debugHooks(logger))
	}

	sessionOpts := []session.Option{
		session.WithLogger(logger),
		session.WithObserver(app.Streams.Observer()),
	}
	if locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(locker))
	}

	builderOpts := []thunder.Option{
		thunder.WithStore(store),
		thunder.WithSessionOptions(sessionOpts...),
		thunder.WithGenerator(gen),
		thunder.WithTemplates(templates),
		thunder.WithMountOptions(mount.WithDefaultPackageJSON()),
		thunder.WithLifecycleHooks(hooks),
		thunder.WithLogger(logger),
	}

	if cfg.Sandbox.Dir != "" {
		ws, err := workspace(cfg.Sandbox)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Workspace = ws
		app.projector = sandbox.NewProjector(ws.Resolve,
			sandbox.WithLogger(logger),
			sandbox.WithHooks(hooks),
		)
		builderOpts = append(builderOpts,
			thunder.WithOutbox(app.projector),
			thunder.WithSpawner(ws.Spawner),
		)
	}

	app.Builder, err = thunder.New(builderOpts...)
	if err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) templates(cfg config.TemplatesConfig) (ports.TemplateLoader, error) {
	if cfg.Dir == "" {
		return memory.NewLoader(prompts.Templates()...), nil
	}
	loader, err := loamadapter.Open(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open template library: %w", err)
	}
	a.watch = loader.Watch
	return loader, nil
}

func workspace(cfg config.SandboxConfig) (*process.Workspace, error) {
	commands, err := process.LoadCommands(cfg.CommandsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load commands: %w", err)
	}
	if len(commands) == 0 {
		commands = process.DefaultCommands()
	}
	runner := process.NewRunner(
		process.WithRegistry(commands),
		process.WithInlineExecution(cfg.Inline),
	)
	return process.NewWorkspace(cfg.Dir, runner), nil
}

// Start runs the background workers until ctx is done.
func (a *App) Start(ctx context.Context) {
	if a.projector == nil {
		return
	}
	go func() {
		if err := a.projector.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.Logger.Error("Mount projector stopped", "err", err)
		}
	}()
}

// Handler builds the HTTP API.
func (a *App) Handler() (http.Handler, error) {
	opts := []thunderhttp.Option{
		thunderhttp.WithStreams(a.Streams),
		thunderhttp.WithMetrics(a.Metrics.Handler()),
		thunderhttp.WithLogger(a.Logger),
	}
	if a.watch != nil {
		opts = append(opts, thunderhttp.WithWatcher(a.watch))
	}
	return thunderhttp.NewHandler(a.Builder, opts...)
}

// MCP builds the MCP server.
func (a *App) MCP() *mcp.Server {
	return mcp.NewServer(a.Builder, mcp.WithLogger(a.Logger))
}

// Close releases the store.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func debugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepApplied: func(ctx context.Context, e *domain.StepEvent) {
			logger.Debug("Step applied", "session_id", e.SessionID, "step", e.StepID, "kind", e.Kind, "path", e.Path)
		},
		OnStepFailed: func(ctx context.Context, e *domain.StepEvent) {
			logger.Debug("Step failed", "session_id", e.SessionID, "step", e.StepID, "path", e.Path, "err", e.Err)
		},
		OnBatchSettled: func(ctx context.Context, e *domain.BatchEvent) {
			logger.Debug("Batch settled", "session_id", e.SessionID, "applied", e.Applied, "failed", e.Failed)
		},
		OnMount: func(ctx context.Context, e *domain.MountEvent) {
			if e.Err != nil {
				logger.Debug("Mount failed", "session_id", e.SessionID, "err", e.Err)
				return
			}
			logger.Debug("Mounted", "session_id", e.SessionID, "entries", e.Entries, "duration", e.Duration)
		},
	}
}
