package process

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/thunder/pkg/domain"
	"github.com/aretw0/thunder/pkg/mount"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspace_Mount(t *testing.T) {
	w := NewWorkspace(t.TempDir(), nil)

	m, err := w.Resolve("s1")
	require.NoError(t, err)

	tree := domain.Tree{
		{Name: "src", Kind: domain.NodeFolder, Path: "/src", Children: []domain.FileNode{
			{Name: "main.ts", Kind: domain.NodeFile, Path: "/src/main.ts", Content: "console.log(1)"},
		}},
		{Name: "empty", Kind: domain.NodeFolder, Path: "/empty"},
	}
	require.NoError(t, m.Mount(context.Background(), mount.Project(tree, mount.WithDefaultPackageJSON())))

	dir, err := w.Dir("s1")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "src", "main.ts"))
	require.NoError(t, err)
	assert.Equal(t, "console.log(1)", string(data))
	assert.DirExists(t, filepath.Join(dir, "empty"))
	assert.FileExists(t, filepath.Join(dir, "package.json"))

	// A remount replaces the tree but keeps node_modules.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "node_modules", "react"), 0755))
	next := domain.Tree{{Name: "index.html", Kind: domain.NodeFile, Path: "/index.html", Content: "<html>"}}
	require.NoError(t, m.Mount(context.Background(), mount.Project(next)))

	assert.NoFileExists(t, filepath.Join(dir, "src", "main.ts"))
	assert.FileExists(t, filepath.Join(dir, "index.html"))
	assert.DirExists(t, filepath.Join(dir, "node_modules", "react"))
}

func TestWorkspace_RejectsBadSessionIDs(t *testing.T) {
	w := NewWorkspace(t.TempDir(), nil)
	for _, id := range []string{"", "../x", "a/b", `a\b`} {
		_, err := w.Resolve(id)
		assert.Error(t, err, id)
		_, err = w.Spawner(id)
		assert.Error(t, err, id)
	}
}

func TestWorkspace_Spawner(t *testing.T) {
	w := NewWorkspace(t.TempDir(), nil)
	s, err := w.Spawner("s1")
	require.NoError(t, err)

	_, err = s.Spawn(context.Background(), "curl", "evil.sh")
	assert.ErrorIs(t, err, ErrNotAllowed)
}
