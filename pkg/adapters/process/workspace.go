package process

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/thunder/pkg/mount"
	"github.com/aretw0/thunder/pkg/sandbox"
)

// DirMounter materialises descriptors into a directory.
// Mount replaces the directory contents, except for preserved top-level entries.
type DirMounter struct {
	Dir      string
	Preserve []string
}

// Mount implements sandbox.Mounter.
func (m *DirMounter) Mount(ctx context.Context, d mount.Descriptor) error {
	if err := os.MkdirAll(m.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create sandbox dir: %w", err)
	}

	entries, err := os.ReadDir(m.Dir)
	if err != nil {
		return fmt.Errorf("failed to read sandbox dir: %w", err)
	}
	for _, e := range entries {
		if m.preserved(e.Name()) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(m.Dir, e.Name())); err != nil {
			return fmt.Errorf("failed to clear %s: %w", e.Name(), err)
		}
	}

	return d.Walk(func(p string, e mount.Entry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		target := filepath.Join(m.Dir, filepath.FromSlash(p))
		if e.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		return os.WriteFile(target, []byte(e.File.Contents), 0644)
	})
}

func (m *DirMounter) preserved(name string) bool {
	for _, p := range m.Preserve {
		if p == name {
			return true
		}
	}
	return false
}

// Workspace gives every session its own directory under Root.
type Workspace struct {
	Root     string
	Runner   *Runner
	Preserve []string
}

// NewWorkspace creates a Workspace. node_modules survives remounts.
func NewWorkspace(root string, runner *Runner) *Workspace {
	if runner == nil {
		runner = NewRunner(WithRegistry(DefaultCommands()))
	}
	return &Workspace{Root: root, Runner: runner, Preserve: []string{"node_modules"}}
}

// Dir returns the directory of a session.
func (w *Workspace) Dir(sessionID string) (string, error) {
	if sessionID == "" || strings.ContainsAny(sessionID, `/\`) || strings.Contains(sessionID, "..") {
		return "", fmt.Errorf("invalid session id %q", sessionID)
	}
	return filepath.Join(w.Root, sessionID), nil
}

// Resolve implements sandbox.Resolver.
func (w *Workspace) Resolve(sessionID string) (sandbox.Mounter, error) {
	dir, err := w.Dir(sessionID)
	if err != nil {
		return nil, err
	}
	return &DirMounter{Dir: dir, Preserve: w.Preserve}, nil
}

// Spawner returns a spawner running inside the session directory.
func (w *Workspace) Spawner(sessionID string) (sandbox.Spawner, error) {
	dir, err := w.Dir(sessionID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sandbox dir: %w", err)
	}
	return w.Runner.In(dir), nil
}
