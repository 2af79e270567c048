package reconcile

import (
	"context"
	"testing"

	"github.com/aretw0/thunder/pkg/domain"
	"github.com/aretw0/thunder/pkg/filetree"
	"github.com/aretw0/thunder/pkg/parser"
	"github.com/aretw0/thunder/pkg/sandbox"
	"github.com/aretw0/thunder/pkg/steps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureOutbox struct {
	cmds []sandbox.MountCommand
	full bool
}

func (o *captureOutbox) Submit(cmd sandbox.MountCommand) bool {
	if o.full {
		return false
	}
	o.cmds = append(o.cmds, cmd)
	return true
}

const twoFiles = `<boltArtifact id="p" title="P">
<boltAction type="file" filePath="src/a.ts">a</boltAction>
<boltAction type="file" filePath="src/b.ts">b</boltAction>
<boltAction type="shell">npm i</boltAction>
</boltArtifact>`

func TestReconcile_AppliesPendingInOrder(t *testing.T) {
	ob := &captureOutbox{}
	r := New(WithOutbox(ob))
	input := steps.ToSteps(parser.Parse(twoFiles))

	res := r.Reconcile(context.Background(), "s", input, nil)

	require.True(t, res.Changed)
	assert.Equal(t, []int{1, 2, 3}, res.Applied)
	assert.Empty(t, res.Errors)
	for _, s := range res.Steps {
		assert.Equal(t, domain.StepCompleted, s.Status)
	}
	files := filetree.Files(res.Tree)
	require.Len(t, files, 2)
	assert.Equal(t, "/src/a.ts", files[0].Path)
	assert.Equal(t, "/src/b.ts", files[1].Path)

	require.Len(t, ob.cmds, 1)
	assert.Equal(t, "s", ob.cmds[0].SessionID)
	assert.True(t, ob.cmds[0].Descriptor["src"].IsDir())

	for _, s := range input {
		assert.Equal(t, domain.StepPending, s.Status, "input steps untouched")
	}
}

func TestReconcile_NoPendingIsNoOp(t *testing.T) {
	ob := &captureOutbox{}
	r := New(WithOutbox(ob))
	first := r.Reconcile(context.Background(), "s", steps.ToSteps(parser.Parse(twoFiles)), nil)

	second := r.Reconcile(context.Background(), "s", first.Steps, first.Tree)

	assert.False(t, second.Changed)
	assert.Equal(t, first.Steps, second.Steps)
	assert.Equal(t, first.Tree, second.Tree)
	assert.Len(t, ob.cmds, 1, "no mount for an empty batch")
}

func TestReconcile_LaterStepsSeeEarlierEffects(t *testing.T) {
	input := steps.ToSteps([]domain.Action{
		domain.CreateFile{Path: "a.txt", Content: "one"},
		domain.EditFile{Path: "a.txt", Content: "two"},
	})

	res := New().Reconcile(context.Background(), "s", input, nil)

	node, ok := filetree.Find(res.Tree, "a.txt")
	require.True(t, ok)
	assert.Equal(t, "two", node.Content)
}

func TestReconcile_FailureDoesNotAbortBatch(t *testing.T) {
	input := steps.ToSteps([]domain.Action{
		domain.CreateFile{Path: "src", Content: "file"},
		domain.CreateFile{Path: "src/a.ts", Content: "conflicts"},
		domain.CreateFile{Path: "ok.txt", Content: "ok"},
	})

	var failed []int
	r := New(WithHooks(domain.LifecycleHooks{
		OnStepFailed: func(_ context.Context, e *domain.StepEvent) { failed = append(failed, e.StepID) },
	}))
	res := r.Reconcile(context.Background(), "s", input, nil)

	assert.Equal(t, []int{1, 3}, res.Applied)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 2, res.Errors[0].StepID)
	assert.ErrorIs(t, res.Errors[0], domain.ErrPathConflict)
	assert.Equal(t, domain.StepFailed, res.Steps[1].Status)
	assert.NotEmpty(t, res.Steps[1].Error)
	assert.Equal(t, []int{2}, failed)

	_, ok := filetree.Find(res.Tree, "ok.txt")
	assert.True(t, ok)
}

func TestReconcile_MergeThenReconcile(t *testing.T) {
	r := New()
	first := r.Reconcile(context.Background(), "s", steps.ToSteps(parser.Parse(twoFiles)), nil)

	merged := steps.Merge(first.Steps, []domain.Action{domain.CreateFile{Path: "src/c.ts", Content: "c"}})
	second := r.Reconcile(context.Background(), "s", merged, first.Tree)

	assert.Equal(t, []int{4}, second.Applied)
	assert.Len(t, filetree.Files(second.Tree), 3)
}

func TestReconcile_Policies(t *testing.T) {
	// A step outside the batch that is neither pending nor settled.
	input := []domain.Step{
		{ID: 1, Kind: domain.KindCreateFile, Path: "a", Status: domain.StepInProgress},
		{ID: 2, Kind: domain.KindCreateFile, Path: "b", Status: domain.StepPending},
		{ID: 3, Kind: domain.KindCreateFile, Path: "c", Status: domain.StepFailed, Error: "old"},
	}

	batch := New().Reconcile(context.Background(), "s", input, nil)
	assert.Equal(t, domain.StepInProgress, batch.Steps[0].Status)
	assert.Equal(t, domain.StepCompleted, batch.Steps[1].Status)
	assert.Equal(t, domain.StepFailed, batch.Steps[2].Status)

	all := New(WithPolicy(CompleteAll)).Reconcile(context.Background(), "s", input, nil)
	assert.Equal(t, domain.StepCompleted, all.Steps[0].Status)
	assert.Equal(t, domain.StepCompleted, all.Steps[1].Status)
	assert.Equal(t, domain.StepFailed, all.Steps[2].Status)
}

func TestReconcile_FullOutboxDoesNotBlock(t *testing.T) {
	ob := &captureOutbox{full: true}
	res := New(WithOutbox(ob)).Reconcile(context.Background(), "s", steps.ToSteps(parser.Parse(twoFiles)), nil)
	assert.True(t, res.Changed)
	assert.Empty(t, ob.cmds)
}

func TestReconcile_MountsOnlyWhenTreeChanges(t *testing.T) {
	tests := []struct {
		name   string
		input  []domain.Step
		mounts int
	}{
		{
			name:   "commands only",
			input:  steps.ToSteps([]domain.Action{domain.RunScript{Command: "npm run dev"}}),
			mounts: 0,
		},
		{
			name: "every file step failed",
			input: []domain.Step{
				{ID: 1, Kind: domain.KindCreateFile, Path: "../escape", Status: domain.StepPending},
			},
			mounts: 0,
		},
		{
			name: "file and command",
			input: steps.ToSteps([]domain.Action{
				domain.CreateFile{Path: "a.txt", Content: "a"},
				domain.RunScript{Command: "npm i"},
			}),
			mounts: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ob := &captureOutbox{}
			res := New(WithOutbox(ob)).Reconcile(context.Background(), "s", tt.input, nil)
			assert.True(t, res.Changed)
			assert.Len(t, ob.cmds, tt.mounts)
		})
	}
}
