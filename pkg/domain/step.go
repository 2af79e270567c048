package domain

// StepStatus defines where a step is in its lifecycle.
type StepStatus string

const (
	StepPending    StepStatus = "pending"     // Parsed, not yet folded into the tree
	StepInProgress StepStatus = "in_progress" // Being applied by the reconciler
	StepCompleted  StepStatus = "completed"   // Effect is part of the tree
	StepFailed     StepStatus = "failed"      // Synthesis rejected the step (see Error)
)

// Settled reports whether the status is terminal.
func (s StepStatus) Settled() bool {
	return s == StepCompleted || s == StepFailed
}

// Step is a stateful wrapper around an Action.
type Step struct {
	ID          int        `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Kind        ActionKind `json:"kind"`
	Status      StepStatus `json:"status"`

	// Code is the file content for file steps and the command line for RunScript.
	Code string `json:"code,omitempty"`
	Path string `json:"path,omitempty"`

	// Error holds the synthesis failure when Status == StepFailed.
	Error string `json:"error,omitempty"`
}

// Pending returns the subset of steps still waiting for reconciliation, in order.
func Pending(steps []Step) []Step {
	var out []Step
	for _, s := range steps {
		if s.Status == StepPending {
			out = append(out, s)
		}
	}
	return out
}
