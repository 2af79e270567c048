package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aretw0/thunder/pkg/domain"
	"github.com/aretw0/thunder/pkg/mount"
	"github.com/aretw0/thunder/pkg/parser"
	"github.com/aretw0/thunder/pkg/reconcile"
	"github.com/aretw0/thunder/pkg/steps"
)

// Parse output formats.
const (
	FormatSteps = "steps"
	FormatTree  = "tree"
	FormatMount = "mount"
)

// ParseResult is the offline pipeline applied to one text.
type ParseResult struct {
	Steps       []domain.Step       `json:"steps"`
	Tree        domain.Tree         `json:"tree"`
	Mount       mount.Descriptor    `json:"mount"`
	Diagnostics []parser.Diagnostic `json:"diagnostics,omitempty"`
}

// ParseText runs parse, sequence, reconcile and project on text. Nothing is stored.
func ParseText(ctx context.Context, text string, markdown bool) ParseResult {
	var opts []parser.Option
	if markdown {
		opts = append(opts, parser.WithMarkdownFallback())
	}
	doc := parser.New(opts...).ParseDocument(text)
	res := reconcile.New().Reconcile(ctx, "", steps.MergeDocument(nil, doc), nil)
	return ParseResult{
		Steps:       res.Steps,
		Tree:        res.Tree,
		Mount:       mount.Project(res.Tree),
		Diagnostics: doc.Diagnostics,
	}
}

// WriteJSON writes one view of the result as indented JSON.
func (r ParseResult) WriteJSON(w io.Writer, format string) error {
	var v any
	switch format {
	case FormatSteps:
		v = r.Steps
	case FormatTree:
		v = r.Tree
	case FormatMount:
		v = r.Mount
	case "", "all":
		v = r
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
