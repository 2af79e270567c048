// Package mount projects the file tree into the nested descriptor a sandbox consumes.
package mount

import (
	"encoding/json"
	"fmt"
	"path"
	"sort"

	"github.com/aretw0/thunder/pkg/domain"
)

// DefaultPackageJSON is the manifest injected when a project has none.
const DefaultPackageJSON = `{
  "name": "thunder-project",
  "private": true,
  "version": "0.0.0",
  "scripts": {
    "dev": "vite"
  }
}
`

// Descriptor maps entry names to entries at one folder level.
type Descriptor map[string]Entry

// File carries the contents of a file entry.
type File struct {
	Contents string `json:"contents"`
}

// Entry is either a file or a directory. A nil File marks a directory.
type Entry struct {
	File      *File
	Directory Descriptor
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool {
	return e.File == nil
}

// MarshalJSON encodes {"file":{"contents":...}} or {"directory":{...}}.
func (e Entry) MarshalJSON() ([]byte, error) {
	if e.File != nil {
		return json.Marshal(struct {
			File *File `json:"file"`
		}{e.File})
	}
	dir := e.Directory
	if dir == nil {
		dir = Descriptor{}
	}
	return json.Marshal(struct {
		Directory Descriptor `json:"directory"`
	}{dir})
}

// UnmarshalJSON decodes either entry shape.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw struct {
		File      *File      `json:"file"`
		Directory Descriptor `json:"directory"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.File == nil && raw.Directory == nil {
		return fmt.Errorf("mount entry has neither file nor directory")
	}
	e.File = raw.File
	e.Directory = raw.Directory
	return nil
}

type options struct {
	manifests []manifest
}

type manifest struct {
	name     string
	contents string
}

// Option configures a projection.
type Option func(*options)

// WithManifest adds a root file named name when the tree has no root entry of that name.
func WithManifest(name, contents string) Option {
	return func(o *options) {
		o.manifests = append(o.manifests, manifest{name: name, contents: contents})
	}
}

// WithDefaultPackageJSON injects DefaultPackageJSON as package.json when missing.
func WithDefaultPackageJSON() Option {
	return WithManifest("package.json", DefaultPackageJSON)
}

// Project converts a tree into a descriptor. It is pure: an empty tree yields an empty descriptor.
func Project(tree domain.Tree, opts ...Option) Descriptor {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	d := project(tree)
	for _, m := range o.manifests {
		if _, ok := d[m.name]; !ok {
			d[m.name] = Entry{File: &File{Contents: m.contents}}
		}
	}
	return d
}

func project(nodes []domain.FileNode) Descriptor {
	d := make(Descriptor, len(nodes))
	for _, n := range nodes {
		if n.IsFolder() {
			d[n.Name] = Entry{Directory: project(n.Children)}
			continue
		}
		d[n.Name] = Entry{File: &File{Contents: n.Content}}
	}
	return d
}

// WalkFunc receives the slash path of every entry, relative to the descriptor root.
type WalkFunc func(p string, e Entry) error

// Walk visits entries in lexical order, parents before children.
func (d Descriptor) Walk(fn WalkFunc) error {
	return d.walk("", fn)
}

func (d Descriptor) walk(prefix string, fn WalkFunc) error {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		e := d[name]
		p := path.Join(prefix, name)
		if err := fn(p, e); err != nil {
			return err
		}
		if e.IsDir() {
			if err := e.Directory.walk(p, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Len returns the total number of entries at every level.
func (d Descriptor) Len() int {
	n := 0
	_ = d.Walk(func(string, Entry) error {
		n++
		return nil
	})
	return n
}
