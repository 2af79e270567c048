// Package sandbox defines the execution environment boundary: mounting projected
// trees and spawning commands. The Projector delivers mounts asynchronously.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/thunder/pkg/mount"
)

// Mounter replaces the sandbox file system with the descriptor contents.
type Mounter interface {
	Mount(ctx context.Context, d mount.Descriptor) error
}

// MounterFunc adapts a function to Mounter.
type MounterFunc func(ctx context.Context, d mount.Descriptor) error

func (f MounterFunc) Mount(ctx context.Context, d mount.Descriptor) error {
	return f(ctx, d)
}

// Spawner starts commands inside the sandbox.
type Spawner interface {
	Spawn(ctx context.Context, command string, args ...string) (*Process, error)
}

// Process is a running sandbox command.
type Process struct {
	// Output streams the combined stdout/stderr of the command.
	Output io.Reader
	wait   func() (int, error)
}

// NewProcess wraps an output stream and a wait function.
func NewProcess(output io.Reader, wait func() (int, error)) *Process {
	return &Process{Output: output, wait: wait}
}

// Wait blocks until the command exits and returns its exit code.
func (p *Process) Wait() (int, error) {
	if p.wait == nil {
		return 0, nil
	}
	return p.wait()
}

// MountCommand asks for the tree of a session to be mounted.
type MountCommand struct {
	SessionID  string
	Descriptor mount.Descriptor
}

// Outbox accepts mount commands without blocking.
// Submit reports false when the command was dropped.
type Outbox interface {
	Submit(cmd MountCommand) bool
}

// ErrNoMounter is reported when a Resolver has no mounter for a session.
var ErrNoMounter = errors.New("no mounter for session")

// Resolver returns the mounter responsible for a session.
type Resolver func(sessionID string) (Mounter, error)

// Static resolves every session to the same mounter.
func Static(m Mounter) Resolver {
	return func(string) (Mounter, error) {
		return m, nil
	}
}

// Run splits a command line on whitespace, spawns it and copies its output to w.
// It returns the exit code of the process.
func Run(ctx context.Context, s Spawner, line string, w io.Writer) (int, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return -1, fmt.Errorf("empty command")
	}

	proc, err := s.Spawn(ctx, fields[0], fields[1:]...)
	if err != nil {
		return -1, fmt.Errorf("spawn %q: %w", fields[0], err)
	}
	if w != nil && proc.Output != nil {
		if _, err := io.Copy(w, proc.Output); err != nil {
			// Reap the child even when its output could not be copied.
			_, _ = proc.Wait()
			return -1, fmt.Errorf("read output: %w", err)
		}
	}
	return proc.Wait()
}
