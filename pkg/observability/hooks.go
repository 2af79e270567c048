package observability

import (
	"context"

	"github.com/aretw0/thunder/pkg/domain"
)

// Compose combines multiple sets of hooks into one. Each callback runs the
// non-nil callbacks of every set in order.
func Compose(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks

	var applied, failed []func(context.Context, *domain.StepEvent)
	var batches []func(context.Context, *domain.BatchEvent)
	var mounts []func(context.Context, *domain.MountEvent)
	for _, h := range sets {
		if h.OnStepApplied != nil {
			applied = append(applied, h.OnStepApplied)
		}
		if h.OnStepFailed != nil {
			failed = append(failed, h.OnStepFailed)
		}
		if h.OnBatchSettled != nil {
			batches = append(batches, h.OnBatchSettled)
		}
		if h.OnMount != nil {
			mounts = append(mounts, h.OnMount)
		}
	}

	if len(applied) > 0 {
		out.OnStepApplied = func(ctx context.Context, e *domain.StepEvent) {
			for _, fn := range applied {
				fn(ctx, e)
			}
		}
	}
	if len(failed) > 0 {
		out.OnStepFailed = func(ctx context.Context, e *domain.StepEvent) {
			for _, fn := range failed {
				fn(ctx, e)
			}
		}
	}
	if len(batches) > 0 {
		out.OnBatchSettled = func(ctx context.Context, e *domain.BatchEvent) {
			for _, fn := range batches {
				fn(ctx, e)
			}
		}
	}
	if len(mounts) > 0 {
		out.OnMount = func(ctx context.Context, e *domain.MountEvent) {
			for _, fn := range mounts {
				fn(ctx, e)
			}
		}
	}
	return out
}
