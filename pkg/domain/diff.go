package domain

import (
	"reflect"
)

// SessionDiff represents the changes between two session snapshots.
// It is designed to be serialized to JSON for partial updates on the client.
type SessionDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	Status *SessionStatus `json:"status,omitempty"`

	// StepsAppended contains steps whose id did not exist in the old snapshot.
	StepsAppended []Step `json:"steps_appended,omitempty"`

	// StepsUpdated maps existing step ids to their new status.
	StepsUpdated map[int]StepStatus `json:"steps_updated,omitempty"`

	// TreeChanged signals that clients should refetch the tree or mount descriptor.
	TreeChanged bool `json:"tree_changed,omitempty"`

	// MessagesAppended contains new conversation entries (append-only).
	MessagesAppended []Message `json:"messages_appended,omitempty"`
}

// Diff calculates the difference between oldSession and newSession.
// If oldSession is nil, it returns a diff representing the entire newSession (initial load).
func Diff(oldSession, newSession *Session) *SessionDiff {
	if newSession == nil {
		return nil
	}

	diff := &SessionDiff{
		SessionID: newSession.ID,
	}

	if oldSession == nil || oldSession.Status != newSession.Status {
		diff.Status = &newSession.Status
	}

	diff.StepsAppended, diff.StepsUpdated = diffSteps(oldSession, newSession)

	if oldSession == nil {
		diff.TreeChanged = len(newSession.Tree) > 0
	} else {
		diff.TreeChanged = !reflect.DeepEqual(oldSession.Tree, newSession.Tree)
	}

	diff.MessagesAppended = diffMessages(oldSession, newSession)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffSteps(old, new *Session) ([]Step, map[int]StepStatus) {
	known := make(map[int]StepStatus)
	if old != nil {
		for _, s := range old.Steps {
			known[s.ID] = s.Status
		}
	}

	var appended []Step
	updated := make(map[int]StepStatus)
	for _, s := range new.Steps {
		prev, exists := known[s.ID]
		if !exists {
			appended = append(appended, s)
			continue
		}
		if prev != s.Status {
			updated[s.ID] = s.Status
		}
	}

	if len(updated) == 0 {
		updated = nil
	}
	return appended, updated
}

// diffMessages assumes append-only history.
func diffMessages(old, new *Session) []Message {
	if len(new.Messages) == 0 {
		return nil
	}
	if old == nil {
		return new.Messages
	}
	if len(new.Messages) > len(old.Messages) {
		return new.Messages[len(old.Messages):]
	}
	return nil
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *SessionDiff) IsEmpty() bool {
	return d.Status == nil &&
		len(d.StepsAppended) == 0 &&
		len(d.StepsUpdated) == 0 &&
		!d.TreeChanged &&
		len(d.MessagesAppended) == 0
}
