package filetree

import (
	"errors"
	"testing"

	"github.com/aretw0/thunder/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree(t *testing.T) domain.Tree {
	t.Helper()
	var tree domain.Tree
	for i, p := range []string{"src/App.tsx", "src/components/Button.tsx", "package.json", "README.md"} {
		var err error
		tree, err = Apply(tree, createFile(i+1, p, p))
		require.NoError(t, err)
	}
	return tree
}

func TestWalk_Order(t *testing.T) {
	var visited []string
	err := Walk(sampleTree(t), func(n domain.FileNode) error {
		visited = append(visited, n.Path)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/src", "/src/App.tsx", "/src/components", "/src/components/Button.tsx",
		"/package.json", "/README.md",
	}, visited)
}

func TestWalk_SkipDirAndStop(t *testing.T) {
	tree := sampleTree(t)

	var visited []string
	_ = Walk(tree, func(n domain.FileNode) error {
		visited = append(visited, n.Name)
		if n.Name == "src" {
			return SkipDir
		}
		return nil
	})
	assert.Equal(t, []string{"src", "package.json", "README.md"}, visited)

	stop := errors.New("stop")
	err := Walk(tree, func(n domain.FileNode) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestFilesAndCount(t *testing.T) {
	tree := sampleTree(t)

	files := Files(tree)
	require.Len(t, files, 4)
	assert.Equal(t, "/src/App.tsx", files[0].Path)

	nFiles, nFolders := Count(tree)
	assert.Equal(t, 4, nFiles)
	assert.Equal(t, 2, nFolders)
}

func TestFind(t *testing.T) {
	tree := sampleTree(t)

	node, ok := Find(tree, "src/components/Button.tsx")
	require.True(t, ok)
	assert.Equal(t, "src/components/Button.tsx", node.Content)

	_, ok = Find(tree, "src/missing.ts")
	assert.False(t, ok)
	_, ok = Find(tree, "..")
	assert.False(t, ok)
}

func TestSearch(t *testing.T) {
	tree := sampleTree(t)

	got := Search(tree, "button")
	require.NotEmpty(t, got)
	assert.Equal(t, "/src/components/Button.tsx", got[0].Path)

	assert.Len(t, Search(tree, ""), 4)
	assert.Empty(t, Search(tree, "zzzz"))
}
