// Package filetree folds steps into the hierarchical project tree.
//
// Every function is pure. Apply returns a new tree that shares untouched
// subtrees with its input, so callers must treat trees as immutable.
package filetree

import (
	"fmt"
	"strings"

	"github.com/aretw0/thunder/pkg/domain"
)

// Apply returns the tree with the effect of step folded in.
// On error the input tree is returned unchanged along with the cause.
func Apply(tree domain.Tree, step domain.Step) (domain.Tree, error) {
	if step.Kind == domain.KindRunScript {
		return tree, nil
	}

	segs, err := segments(step.Path)
	if err != nil {
		return tree, err
	}

	var out []domain.FileNode
	switch step.Kind {
	case domain.KindCreateFile, domain.KindEditFile:
		content := step.Code
		out, err = upsert(tree, "", segs, &content)
	case domain.KindCreateFolder:
		out, err = upsert(tree, "", segs, nil)
	case domain.KindDeleteFile:
		out, _ = remove(tree, segs)
	default:
		return tree, fmt.Errorf("%w: %q", domain.ErrUnsupportedStep, step.Kind)
	}
	if err != nil {
		return tree, err
	}
	return domain.Tree(out), nil
}

func segments(p string) ([]string, error) {
	clean, err := domain.CleanPath(p)
	if err != nil {
		return nil, err
	}
	return strings.Split(clean, "/"), nil
}

func indexOf(nodes []domain.FileNode, name string) int {
	for i, n := range nodes {
		if n.Name == name {
			return i
		}
	}
	return -1
}

// upsert materialises segs under parent. A nil file creates folders only,
// otherwise the final segment becomes a file holding *file.
func upsert(nodes []domain.FileNode, parent string, segs []string, file *string) ([]domain.FileNode, error) {
	name := segs[0]
	nodePath := parent + "/" + name
	last := len(segs) == 1
	idx := indexOf(nodes, name)

	out := make([]domain.FileNode, len(nodes), len(nodes)+1)
	copy(out, nodes)

	if last && file != nil {
		if idx >= 0 {
			if out[idx].IsFolder() {
				return nil, fmt.Errorf("%w: %s is a folder", domain.ErrPathConflict, nodePath)
			}
			out[idx].Content = *file
			return out, nil
		}
		return append(out, domain.FileNode{
			Name:    name,
			Kind:    domain.NodeFile,
			Path:    nodePath,
			Content: *file,
		}), nil
	}

	folder := domain.FileNode{Name: name, Kind: domain.NodeFolder, Path: nodePath}
	if idx >= 0 {
		if !out[idx].IsFolder() {
			return nil, fmt.Errorf("%w: %s is a file", domain.ErrPathConflict, nodePath)
		}
		folder = out[idx]
	}

	if !last {
		children, err := upsert(folder.Children, nodePath, segs[1:], file)
		if err != nil {
			return nil, err
		}
		folder.Children = children
	}

	if idx >= 0 {
		out[idx] = folder
		return out, nil
	}
	return append(out, folder), nil
}

// remove drops the node at segs. It reports false, returning nodes as is, when nothing matched.
func remove(nodes []domain.FileNode, segs []string) ([]domain.FileNode, bool) {
	idx := indexOf(nodes, segs[0])
	if idx < 0 {
		return nodes, false
	}

	if len(segs) == 1 {
		out := make([]domain.FileNode, 0, len(nodes)-1)
		out = append(out, nodes[:idx]...)
		return append(out, nodes[idx+1:]...), true
	}

	if !nodes[idx].IsFolder() {
		return nodes, false
	}
	children, ok := remove(nodes[idx].Children, segs[1:])
	if !ok {
		return nodes, false
	}

	out := make([]domain.FileNode, len(nodes))
	copy(out, nodes)
	out[idx].Children = children
	return out, true
}
