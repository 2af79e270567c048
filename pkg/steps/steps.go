// Package steps turns parsed actions into the ordered, stateful steps tracked by a session.
package steps

import (
	"fmt"

	"github.com/aretw0/thunder/pkg/domain"
	"github.com/aretw0/thunder/pkg/parser"
)

// ToSteps numbers actions from 1 and marks every step pending.
func ToSteps(actions []domain.Action) []domain.Step {
	return Merge(nil, actions)
}

// Merge appends incoming actions after existing steps.
// Existing steps are copied untouched; new ids continue from the highest existing id.
func Merge(existing []domain.Step, incoming []domain.Action) []domain.Step {
	out := make([]domain.Step, len(existing), len(existing)+len(incoming))
	copy(out, existing)

	next := NextID(existing)
	for _, a := range incoming {
		out = append(out, FromAction(next, a, ""))
		next++
	}
	return out
}

// MergeDocument is Merge for a parsed document; each artifact title becomes
// the description of the steps it produced.
func MergeDocument(existing []domain.Step, doc parser.Document) []domain.Step {
	out := make([]domain.Step, len(existing))
	copy(out, existing)

	next := NextID(existing)
	for _, art := range doc.Artifacts {
		for _, a := range art.Actions {
			out = append(out, FromAction(next, a, art.Title))
			next++
		}
	}
	return out
}

// NextID returns the id the next appended step should take.
func NextID(steps []domain.Step) int {
	highest := 0
	for _, s := range steps {
		if s.ID > highest {
			highest = s.ID
		}
	}
	return highest + 1
}

// FromAction builds the pending step for a single action.
func FromAction(id int, a domain.Action, description string) domain.Step {
	return domain.Step{
		ID:          id,
		Title:       Label(a),
		Description: description,
		Kind:        a.Kind(),
		Status:      domain.StepPending,
		Code:        domain.ActionPayload(a),
		Path:        domain.ActionPath(a),
	}
}

// Label returns the explicit title of the action, or one derived from its kind.
func Label(a domain.Action) string {
	if title := a.Label(); title != "" {
		return title
	}
	switch v := a.(type) {
	case domain.CreateFile:
		return fmt.Sprintf("Create file: %s", v.Path)
	case domain.CreateFolder:
		return fmt.Sprintf("Create folder: %s", v.Path)
	case domain.EditFile:
		return fmt.Sprintf("Edit file: %s", v.Path)
	case domain.DeleteFile:
		return fmt.Sprintf("Delete file: %s", v.Path)
	case domain.RunScript:
		return fmt.Sprintf("Run command: %s", v.Command)
	}
	return string(a.Kind())
}
