package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/thunder/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore implementation
// adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		session := domain.NewSession(sessionID)
		session.Prompt = "a todo app"
		session.Stack = domain.StackReact
		session.Steps = []domain.Step{
			{ID: 1, Title: "Create file: src/a.ts", Kind: domain.KindCreateFile, Path: "src/a.ts", Code: "a", Status: domain.StepCompleted},
			{ID: 2, Title: "Run command: npm i", Kind: domain.KindRunScript, Code: "npm i", Status: domain.StepPending},
		}
		session.Tree = domain.Tree{
			{Name: "src", Kind: domain.NodeFolder, Path: "/src", Children: []domain.FileNode{
				{Name: "a.ts", Kind: domain.NodeFile, Path: "/src/a.ts", Content: "a"},
			}},
		}
		session.Messages = []domain.Message{{Role: domain.RoleUser, Content: "a todo app"}}

		err := store.Save(ctx, session)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, session.Prompt, loaded.Prompt)
		assert.Equal(t, session.Stack, loaded.Stack)
		assert.Equal(t, session.Steps, loaded.Steps)
		assert.Equal(t, session.Tree, loaded.Tree)
		assert.Equal(t, session.Messages, loaded.Messages)
		assert.WithinDuration(t, session.CreatedAt, loaded.CreatedAt, time.Second)
	})

	t.Run("Load Returns Copy", func(t *testing.T) {
		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		loaded.Steps[0].Status = domain.StepFailed

		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, domain.StepCompleted, again.Steps[0].Status)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, domain.NewSession(sessionID))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")

		assert.NoError(t, store.Delete(ctx, sessionID), "Deleting twice is not an error")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		require.NoError(t, store.Save(ctx, domain.NewSession(id1)))
		require.NoError(t, store.Save(ctx, domain.NewSession(id2)))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
