// Package reconcile folds pending steps into the file tree one batch at a time.
package reconcile

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/thunder/pkg/domain"
	"github.com/aretw0/thunder/pkg/filetree"
	"github.com/aretw0/thunder/pkg/mount"
	"github.com/aretw0/thunder/pkg/sandbox"
)

// Policy decides which steps settle at the end of a batch.
type Policy int

const (
	// CompleteBatch settles only the steps of the batch.
	CompleteBatch Policy = iota
	// CompleteAll marks every step that did not fail as completed.
	CompleteAll
)

// Result is the outcome of one batch.
type Result struct {
	Steps   []domain.Step
	Tree    domain.Tree
	Applied []int
	Errors  []*domain.StepError
	// Changed is false when there was nothing pending; Steps and Tree are then the inputs.
	Changed bool
}

// Reconciler applies pending steps and hands the resulting tree to the sandbox outbox.
type Reconciler struct {
	policy    Policy
	outbox    sandbox.Outbox
	mountOpts []mount.Option
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
}

// Option configures the Reconciler.
type Option func(*Reconciler)

// WithPolicy sets the completion policy. Default is CompleteBatch.
func WithPolicy(p Policy) Option {
	return func(r *Reconciler) {
		r.policy = p
	}
}

// WithOutbox sets where mount commands are sent after a changed batch.
func WithOutbox(o sandbox.Outbox) Option {
	return func(r *Reconciler) {
		r.outbox = o
	}
}

// WithMountOptions passes projection options (e.g. manifest injection).
func WithMountOptions(opts ...mount.Option) Option {
	return func(r *Reconciler) {
		r.mountOpts = append(r.mountOpts, opts...)
	}
}

// WithHooks registers lifecycle hooks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(r *Reconciler) {
		r.hooks = hooks
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// New creates a Reconciler.
func New(opts ...Option) *Reconciler {
	r := &Reconciler{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile applies the pending steps, in order, to a working copy of tree.
// Step failures are collected in the result and never abort the batch.
// Neither steps nor tree is mutated.
func (r *Reconciler) Reconcile(ctx context.Context, sessionID string, steps []domain.Step, tree domain.Tree) Result {
	var batch []int
	for i, s := range steps {
		if s.Status == domain.StepPending {
			batch = append(batch, i)
		}
	}
	if len(batch) == 0 {
		return Result{Steps: steps, Tree: tree}
	}

	out := make([]domain.Step, len(steps))
	copy(out, steps)

	res := Result{Changed: true}
	working := tree
	treeChanged := false
	for _, i := range batch {
		step := &out[i]

		next, err := filetree.Apply(working, *step)
		if err != nil {
			stepErr := &domain.StepError{StepID: step.ID, Path: step.Path, Err: err}
			step.Status = domain.StepFailed
			step.Error = err.Error()
			res.Errors = append(res.Errors, stepErr)

			r.logger.Warn("Step failed", "session_id", sessionID, "step", step.ID, "path", step.Path, "err", err)
			if r.hooks.OnStepFailed != nil {
				r.hooks.OnStepFailed(ctx, r.stepEvent(domain.EventStepFailed, sessionID, *step, err))
			}
			continue
		}

		working = next
		if step.Kind != domain.KindRunScript {
			treeChanged = true
		}
		step.Status = domain.StepCompleted
		step.Error = ""
		res.Applied = append(res.Applied, step.ID)

		if r.hooks.OnStepApplied != nil {
			r.hooks.OnStepApplied(ctx, r.stepEvent(domain.EventStepApplied, sessionID, *step, nil))
		}
	}

	if r.policy == CompleteAll {
		for i := range out {
			if out[i].Status != domain.StepFailed {
				out[i].Status = domain.StepCompleted
			}
		}
	}

	res.Steps = out
	res.Tree = working

	r.logger.Debug("Batch settled", "session_id", sessionID, "applied", len(res.Applied), "failed", len(res.Errors))
	if r.hooks.OnBatchSettled != nil {
		r.hooks.OnBatchSettled(ctx, &domain.BatchEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventBatchSettled, SessionID: sessionID},
			Applied:   len(res.Applied),
			Failed:    len(res.Errors),
		})
	}

	// Command-only or all-failed batches leave the tree as it was.
	if r.outbox != nil && treeChanged {
		cmd := sandbox.MountCommand{SessionID: sessionID, Descriptor: mount.Project(working, r.mountOpts...)}
		if !r.outbox.Submit(cmd) {
			r.logger.Warn("Mount command dropped", "session_id", sessionID)
		}
	}
	return res
}

func (r *Reconciler) stepEvent(typ domain.EventType, sessionID string, s domain.Step, err error) *domain.StepEvent {
	return &domain.StepEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: typ, SessionID: sessionID},
		StepID:    s.ID,
		Kind:      s.Kind,
		Path:      s.Path,
		Err:       err,
	}
}
