package filetree

import (
	"errors"
	"strings"

	"github.com/aretw0/thunder/pkg/domain"
	"github.com/sahilm/fuzzy"
)

// SkipDir can be returned by a WalkFunc to skip the children of a folder.
var SkipDir = errors.New("skip this folder")

// WalkFunc is called for every node in depth-first pre-order.
type WalkFunc func(node domain.FileNode) error

// Walk visits every node of the tree in order.
func Walk(tree domain.Tree, fn WalkFunc) error {
	return walk(tree, fn)
}

func walk(nodes []domain.FileNode, fn WalkFunc) error {
	for _, n := range nodes {
		err := fn(n)
		if errors.Is(err, SkipDir) {
			continue
		}
		if err != nil {
			return err
		}
		if n.IsFolder() {
			if err := walk(n.Children, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Find returns the node at p ("src/a.ts" or "/src/a.ts").
func Find(tree domain.Tree, p string) (domain.FileNode, bool) {
	segs, err := segments(p)
	if err != nil {
		return domain.FileNode{}, false
	}

	nodes := []domain.FileNode(tree)
	for i, name := range segs {
		idx := indexOf(nodes, name)
		if idx < 0 {
			return domain.FileNode{}, false
		}
		if i == len(segs)-1 {
			return nodes[idx], true
		}
		nodes = nodes[idx].Children
	}
	return domain.FileNode{}, false
}

// Files flattens the tree into its files, in walk order.
func Files(tree domain.Tree) []domain.FileNode {
	var files []domain.FileNode
	_ = Walk(tree, func(n domain.FileNode) error {
		if !n.IsFolder() {
			files = append(files, n)
		}
		return nil
	})
	return files
}

// Count returns the number of files and folders in the tree.
func Count(tree domain.Tree) (files, folders int) {
	_ = Walk(tree, func(n domain.FileNode) error {
		if n.IsFolder() {
			folders++
		} else {
			files++
		}
		return nil
	})
	return files, folders
}

// Search ranks files by fuzzy match of query against their path, best first.
// An empty query returns every file.
func Search(tree domain.Tree, query string) []domain.FileNode {
	files := Files(tree)
	query = strings.TrimSpace(query)
	if query == "" {
		return files
	}

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = strings.TrimPrefix(f.Path, "/")
	}

	matches := fuzzy.Find(query, paths)
	out := make([]domain.FileNode, 0, len(matches))
	for _, m := range matches {
		out = append(out, files[m.Index])
	}
	return out
}
