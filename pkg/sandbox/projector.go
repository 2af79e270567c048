package sandbox

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/thunder/pkg/domain"
	"github.com/aretw0/thunder/pkg/mount"
)

// Projector delivers mount commands to the sandbox from its own goroutine.
// Commands for the same session coalesce: only the latest descriptor is mounted.
// Mount failures are logged and reported through hooks; they never reach step status.
type Projector struct {
	resolve Resolver
	logger  *slog.Logger
	hooks   domain.LifecycleHooks
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]mount.Descriptor
	order   []string
	closed  bool
	wake    chan struct{}
}

// ProjectorOption configures the Projector.
type ProjectorOption func(*Projector)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ProjectorOption {
	return func(p *Projector) {
		p.logger = logger
	}
}

// WithHooks registers lifecycle hooks (OnMount).
func WithHooks(hooks domain.LifecycleHooks) ProjectorOption {
	return func(p *Projector) {
		p.hooks = hooks
	}
}

// WithMountTimeout bounds each Mount call. Zero means no bound.
func WithMountTimeout(d time.Duration) ProjectorOption {
	return func(p *Projector) {
		p.timeout = d
	}
}

// NewProjector creates a Projector. Call Run to start delivering.
func NewProjector(resolve Resolver, opts ...ProjectorOption) *Projector {
	p := &Projector{
		resolve: resolve,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		pending: make(map[string]mount.Descriptor),
		wake:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit queues a mount. It never blocks and reports false once the projector stopped.
func (p *Projector) Submit(cmd MountCommand) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	if _, queued := p.pending[cmd.SessionID]; !queued {
		p.order = append(p.order, cmd.SessionID)
	}
	p.pending[cmd.SessionID] = cmd.Descriptor
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return true
}

// Pending returns the number of sessions waiting for a mount.
func (p *Projector) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.order)
}

// Run delivers mounts until ctx is done. Mounts still queued at that point are dropped.
func (p *Projector) Run(ctx context.Context) error {
	defer func() {
		p.mu.Lock()
		p.closed = true
		p.pending = make(map[string]mount.Descriptor)
		p.order = nil
		p.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.wake:
			for {
				if ctx.Err() != nil {
					return nil
				}
				cmd, ok := p.next()
				if !ok {
					break
				}
				p.deliver(ctx, cmd)
			}
		}
	}
}

func (p *Projector) next() (MountCommand, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.order) == 0 {
		return MountCommand{}, false
	}
	id := p.order[0]
	p.order = p.order[1:]
	d := p.pending[id]
	delete(p.pending, id)
	return MountCommand{SessionID: id, Descriptor: d}, true
}

func (p *Projector) deliver(ctx context.Context, cmd MountCommand) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	m, err := p.resolve(cmd.SessionID)
	if err == nil && m == nil {
		err = ErrNoMounter
	}
	if err == nil {
		err = m.Mount(ctx, cmd.Descriptor)
	}
	elapsed := time.Since(start)

	if err != nil {
		p.logger.Error("Mount failed", "session_id", cmd.SessionID, "err", err)
	} else {
		p.logger.Debug("Mounted", "session_id", cmd.SessionID, "entries", cmd.Descriptor.Len(), "duration", elapsed)
	}

	if p.hooks.OnMount != nil {
		p.hooks.OnMount(ctx, &domain.MountEvent{
			EventBase: domain.EventBase{
				Timestamp: time.Now(),
				Type:      domain.EventMountFinished,
				SessionID: cmd.SessionID,
			},
			Entries:  cmd.Descriptor.Len(),
			Duration: elapsed,
			Err:      err,
		})
	}
}
