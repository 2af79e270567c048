package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"

	"github.com/aretw0/thunder/pkg/domain"
	"github.com/aretw0/thunder/pkg/sandbox"
)

// ErrNotAllowed is returned for commands outside the allow-list.
var ErrNotAllowed = domain.ErrCommandNotAllowed

// Runner implements sandbox.Spawner by executing local processes.
// It follows a Strict Registry pattern for security (Allow-Listing).
type Runner struct {
	registry    map[string]CommandConfig
	allowInline bool
	baseDir     string
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithRegistry populates the allow-list from a loaded config.
func WithRegistry(commands map[string]CommandConfig) RunnerOption {
	return func(r *Runner) {
		for name, c := range commands {
			c.Name = name
			r.registry[name] = c
		}
	}
}

// WithInlineExecution runs commands missing from the registry as is (Dangerous).
func WithInlineExecution(allow bool) RunnerOption {
	return func(r *Runner) {
		r.allowInline = allow
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// NewRunner creates a new Process Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: make(map[string]CommandConfig),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted command to the allow-list.
func (r *Runner) Register(name string, command string, args ...string) {
	r.registry[name] = CommandConfig{
		Name:    name,
		Command: command,
		Args:    args,
	}
}

// Allowed returns the registered command names, sorted.
func (r *Runner) Allowed() []string {
	names := make([]string, 0, len(r.registry))
	for name := range r.registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// In returns a copy of the runner working in dir.
func (r *Runner) In(dir string) *Runner {
	c := *r
	c.baseDir = dir
	return &c
}

// Spawn starts command with args. Registered args come first.
// Output must be drained before calling Wait on the returned process.
func (r *Runner) Spawn(ctx context.Context, command string, args ...string) (*sandbox.Process, error) {
	cfg, ok := r.registry[command]
	if !ok {
		if !r.allowInline {
			return nil, fmt.Errorf("%w: %s", ErrNotAllowed, command)
		}
		cfg = CommandConfig{Name: command, Command: command}
	}

	argv := append(append([]string(nil), cfg.Args...), args...)
	cmd := exec.CommandContext(ctx, cfg.Command, argv...)
	cmd.Dir = r.baseDir
	cmd.Env = cmd.Environ()
	for k, v := range cfg.Environment {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	// Stdout and stderr share one pipe so the output keeps its interleaving.
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("failed to start %s: %w", cfg.Command, err)
	}
	// The child holds its own copy of the write end.
	pw.Close()

	wait := func() (int, error) {
		defer pr.Close()
		err := cmd.Wait()
		if err == nil {
			return 0, nil
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, err
	}
	return sandbox.NewProcess(pr, wait), nil
}
