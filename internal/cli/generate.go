package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/thunder/pkg/domain"
)

// ErrNoWorkspace is returned when files are requested on disk without a sandbox dir.
var ErrNoWorkspace = errors.New("no sandbox dir configured")

// Generate runs one prompt, or one follow-up when sessionID is set, and
// writes the resulting tree into the session directory when a sandbox is configured.
func (a *App) Generate(ctx context.Context, sessionID, prompt string) (*domain.Session, error) {
	var (
		s   *domain.Session
		err error
	)
	if sessionID == "" {
		s, err = a.Builder.Start(ctx, prompt)
	} else {
		s, err = a.Builder.Continue(ctx, sessionID, prompt)
	}
	if err != nil {
		return s, err
	}
	if a.Workspace == nil {
		return s, nil
	}
	return s, a.Materialize(ctx, s.ID)
}

// Materialize mounts the current tree of a session synchronously.
func (a *App) Materialize(ctx context.Context, sessionID string) error {
	if a.Workspace == nil {
		return ErrNoWorkspace
	}
	d, err := a.Builder.Mount(ctx, sessionID)
	if err != nil {
		return err
	}
	m, err := a.Workspace.Resolve(sessionID)
	if err != nil {
		return err
	}
	if err := m.Mount(ctx, d); err != nil {
		return fmt.Errorf("failed to write session files: %w", err)
	}
	return nil
}
