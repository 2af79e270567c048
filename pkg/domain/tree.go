package domain

import (
	"fmt"
	"path"
	"strings"
)

// CleanPath normalises a model-supplied path into a relative slash path
// without empty, "." or ".." segments. Leading slashes are dropped.
func CleanPath(raw string) (string, error) {
	p := strings.TrimSpace(strings.ReplaceAll(raw, "\\", "/"))
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q escapes the project root", ErrInvalidPath, raw)
	}
	return cleaned, nil
}

// NodeKind distinguishes files from folders in the tree.
type NodeKind string

const (
	NodeFile   NodeKind = "file"
	NodeFolder NodeKind = "folder"
)

// FileNode is one entry of the generated project.
// Path is absolute from the tree root ("/src/main.ts").
type FileNode struct {
	Name     string     `json:"name"`
	Kind     NodeKind   `json:"type"`
	Path     string     `json:"path"`
	Content  string     `json:"content,omitempty"`
	Children []FileNode `json:"children,omitempty"`
}

// IsFolder reports whether the node is a folder.
func (n FileNode) IsFolder() bool {
	return n.Kind == NodeFolder
}

// Tree is the ordered list of top-level nodes. There is no root wrapper node.
type Tree []FileNode
