package filetree

import (
	"testing"

	"github.com/aretw0/thunder/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createFile(id int, path, code string) domain.Step {
	return domain.Step{ID: id, Kind: domain.KindCreateFile, Path: path, Code: code, Status: domain.StepPending}
}

func TestApply_CreateFileBuildsFolders(t *testing.T) {
	tree, err := Apply(nil, createFile(1, "src/components/Button.tsx", "btn"))
	require.NoError(t, err)

	assert.Equal(t, domain.Tree{
		{Name: "src", Kind: domain.NodeFolder, Path: "/src", Children: []domain.FileNode{
			{Name: "components", Kind: domain.NodeFolder, Path: "/src/components", Children: []domain.FileNode{
				{Name: "Button.tsx", Kind: domain.NodeFile, Path: "/src/components/Button.tsx", Content: "btn"},
			}},
		}},
	}, tree)
}

func TestApply_SharesFolders(t *testing.T) {
	tree, err := Apply(nil, createFile(1, "src/a.ts", "a"))
	require.NoError(t, err)
	tree, err = Apply(tree, createFile(2, "src/b.ts", "b"))
	require.NoError(t, err)

	require.Len(t, tree, 1)
	require.Len(t, tree[0].Children, 2)
	assert.Equal(t, "a.ts", tree[0].Children[0].Name)
	assert.Equal(t, "b.ts", tree[0].Children[1].Name)
}

func TestApply_Idempotent(t *testing.T) {
	step := createFile(1, "a/b.txt", "x")
	once, err := Apply(nil, step)
	require.NoError(t, err)
	twice, err := Apply(once, step)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}

func TestApply_OverwritesContent(t *testing.T) {
	tree, _ := Apply(nil, createFile(1, "a.txt", "old"))
	tree, err := Apply(tree, domain.Step{ID: 2, Kind: domain.KindEditFile, Path: "a.txt", Code: "new"})
	require.NoError(t, err)

	node, ok := Find(tree, "a.txt")
	require.True(t, ok)
	assert.Equal(t, "new", node.Content)
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	base, _ := Apply(nil, createFile(1, "src/a.ts", "a"))
	snapshot := (&domain.Session{Tree: base}).Snapshot().Tree

	_, err := Apply(base, createFile(2, "src/a.ts", "changed"))
	require.NoError(t, err)
	_, err = Apply(base, createFile(3, "src/c.ts", "c"))
	require.NoError(t, err)
	_, err = Apply(base, domain.Step{ID: 4, Kind: domain.KindDeleteFile, Path: "src/a.ts"})
	require.NoError(t, err)

	assert.Equal(t, snapshot, base)
}

func TestApply_Conflicts(t *testing.T) {
	base, _ := Apply(nil, createFile(1, "src/a.ts", "a"))

	tests := []struct {
		name string
		step domain.Step
	}{
		{"File Over Folder", createFile(2, "src", "x")},
		{"Folder Through File", createFile(3, "src/a.ts/b.ts", "x")},
		{"Create Folder Over File", domain.Step{ID: 4, Kind: domain.KindCreateFolder, Path: "src/a.ts"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(base, tt.step)
			assert.ErrorIs(t, err, domain.ErrPathConflict)
			assert.Equal(t, base, got)
		})
	}
}

func TestApply_InvalidPath(t *testing.T) {
	_, err := Apply(nil, createFile(1, "../x", "x"))
	assert.ErrorIs(t, err, domain.ErrInvalidPath)

	_, err = Apply(nil, createFile(1, "", "x"))
	assert.ErrorIs(t, err, domain.ErrInvalidPath)
}

func TestApply_CreateFolder(t *testing.T) {
	tree, err := Apply(nil, domain.Step{ID: 1, Kind: domain.KindCreateFolder, Path: "a/b"})
	require.NoError(t, err)
	again, err := Apply(tree, domain.Step{ID: 2, Kind: domain.KindCreateFolder, Path: "a"})
	require.NoError(t, err)

	assert.Equal(t, tree, again)
	node, ok := Find(tree, "/a/b")
	require.True(t, ok)
	assert.True(t, node.IsFolder())
	assert.Empty(t, node.Children)
}

func TestApply_Delete(t *testing.T) {
	tree, _ := Apply(nil, createFile(1, "src/a.ts", "a"))
	tree, _ = Apply(tree, createFile(2, "src/b.ts", "b"))

	t.Run("File", func(t *testing.T) {
		got, err := Apply(tree, domain.Step{Kind: domain.KindDeleteFile, Path: "src/a.ts"})
		require.NoError(t, err)
		_, ok := Find(got, "src/a.ts")
		assert.False(t, ok)
		_, ok = Find(got, "src/b.ts")
		assert.True(t, ok)
	})

	t.Run("Last File Keeps Parent", func(t *testing.T) {
		got, _ := Apply(tree, domain.Step{Kind: domain.KindDeleteFile, Path: "src/a.ts"})
		got, _ = Apply(got, domain.Step{Kind: domain.KindDeleteFile, Path: "src/b.ts"})
		node, ok := Find(got, "src")
		require.True(t, ok)
		assert.Empty(t, node.Children)
	})

	t.Run("Folder Subtree", func(t *testing.T) {
		got, err := Apply(tree, domain.Step{Kind: domain.KindDeleteFile, Path: "src"})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("Missing Is NoOp", func(t *testing.T) {
		got, err := Apply(tree, domain.Step{Kind: domain.KindDeleteFile, Path: "nope/x"})
		require.NoError(t, err)
		assert.Equal(t, tree, got)
	})
}

func TestApply_RunScriptAndUnknown(t *testing.T) {
	tree, _ := Apply(nil, createFile(1, "a", "a"))

	got, err := Apply(tree, domain.Step{Kind: domain.KindRunScript, Code: "npm i"})
	require.NoError(t, err)
	assert.Equal(t, tree, got)

	got, err = Apply(tree, domain.Step{Kind: "teleport", Path: "a"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedStep)
	assert.Equal(t, tree, got)
}

func TestPathInvariant(t *testing.T) {
	tree, _ := Apply(nil, createFile(1, "a/b/c.txt", "c"))
	tree, _ = Apply(tree, createFile(2, "a/d.txt", "d"))
	tree, _ = Apply(tree, domain.Step{Kind: domain.KindCreateFolder, Path: "e/f"})

	var check func(parent string, nodes []domain.FileNode)
	check = func(parent string, nodes []domain.FileNode) {
		seen := map[string]bool{}
		for _, n := range nodes {
			assert.Equal(t, parent+"/"+n.Name, n.Path)
			assert.False(t, seen[n.Name], "duplicate name %s", n.Name)
			seen[n.Name] = true
			if !n.IsFolder() {
				assert.Empty(t, n.Children)
			}
			check(n.Path, n.Children)
		}
	}
	check("", tree)
}
