package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStepApplied   EventType = "step_applied"
	EventStepFailed    EventType = "step_failed"
	EventBatchSettled  EventType = "batch_settled"
	EventMountFinished EventType = "mount_finished"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// StepEvent represents the outcome of applying one step.
type StepEvent struct {
	EventBase
	StepID int        `json:"step_id"`
	Kind   ActionKind `json:"kind"`
	Path   string     `json:"path,omitempty"`
	Err    error      `json:"-"`
}

// BatchEvent summarises one reconciliation batch.
type BatchEvent struct {
	EventBase
	Applied int `json:"applied"`
	Failed  int `json:"failed"`
}

// MountEvent represents a finished mount attempt.
type MountEvent struct {
	EventBase
	Entries  int           `json:"entries"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// LifecycleHooks defines callbacks for pipeline observability.
type LifecycleHooks struct {
	OnStepApplied  func(context.Context, *StepEvent)
	OnStepFailed   func(context.Context, *StepEvent)
	OnBatchSettled func(context.Context, *BatchEvent)
	OnMount        func(context.Context, *MountEvent)
}
