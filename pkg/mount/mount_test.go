package mount

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/thunder/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProject(t *testing.T) {
	tree := domain.Tree{
		{Name: "src", Kind: domain.NodeFolder, Path: "/src", Children: []domain.FileNode{
			{Name: "a.ts", Kind: domain.NodeFile, Path: "/src/a.ts", Content: "A"},
			{Name: "empty", Kind: domain.NodeFolder, Path: "/src/empty"},
		}},
		{Name: "blank.txt", Kind: domain.NodeFile, Path: "/blank.txt"},
	}

	data, err := json.Marshal(Project(tree))
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"src": {"directory": {
			"a.ts": {"file": {"contents": "A"}},
			"empty": {"directory": {}}
		}},
		"blank.txt": {"file": {"contents": ""}}
	}`, string(data))
}

func TestProject_EmptyTree(t *testing.T) {
	d := Project(nil)
	assert.NotNil(t, d)
	assert.Empty(t, d)

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestProject_Pure(t *testing.T) {
	tree := domain.Tree{{Name: "a", Kind: domain.NodeFile, Path: "/a", Content: "1"}}
	assert.Equal(t, Project(tree), Project(tree))
}

func TestWithManifest(t *testing.T) {
	t.Run("Injected When Missing", func(t *testing.T) {
		d := Project(nil, WithDefaultPackageJSON())
		entry, ok := d["package.json"]
		require.True(t, ok)
		require.NotNil(t, entry.File)
		assert.Equal(t, DefaultPackageJSON, entry.File.Contents)
	})

	t.Run("Existing Wins", func(t *testing.T) {
		tree := domain.Tree{{Name: "package.json", Kind: domain.NodeFile, Path: "/package.json", Content: "{}"}}
		d := Project(tree, WithDefaultPackageJSON())
		assert.Equal(t, "{}", d["package.json"].File.Contents)
	})
}

func TestEntry_RoundTrip(t *testing.T) {
	in := `{"a":{"directory":{"b.txt":{"file":{"contents":"x"}}}},"c":{"directory":{}}}`

	var d Descriptor
	require.NoError(t, json.Unmarshal([]byte(in), &d))
	assert.True(t, d["a"].IsDir())
	assert.Equal(t, "x", d["a"].Directory["b.txt"].File.Contents)

	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))

	var bad Descriptor
	assert.Error(t, json.Unmarshal([]byte(`{"a":{}}`), &bad))
}

func TestDescriptor_Walk(t *testing.T) {
	d := Descriptor{
		"b.txt": {File: &File{Contents: "b"}},
		"a":     {Directory: Descriptor{"z.txt": {File: &File{}}}},
	}

	var paths []string
	require.NoError(t, d.Walk(func(p string, _ Entry) error {
		paths = append(paths, p)
		return nil
	}))
	assert.Equal(t, []string{"a", "a/z.txt", "b.txt"}, paths)
	assert.Equal(t, 3, d.Len())
}
