package parser

import (
	"bytes"
	"strings"

	"github.com/aretw0/thunder/pkg/domain"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var shellLangs = map[string]bool{
	"sh":      true,
	"bash":    true,
	"shell":   true,
	"zsh":     true,
	"console": true,
}

// extractMarkdownActions turns fenced code blocks into actions.
// A block preceded by a paragraph holding a `path` hint becomes a file;
// an unhinted shell block becomes a command. Diff blocks are ignored.
func extractMarkdownActions(source []byte) []domain.Action {
	var actions []domain.Action
	root := goldmark.DefaultParser().Parse(text.NewReader(source))

	walker := func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		block, ok := node.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		lang := strings.ToLower(string(block.Language(source)))
		if lang == "diff" {
			return ast.WalkSkipChildren, nil
		}

		var content bytes.Buffer
		lines := block.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			content.Write(line.Value(source))
		}
		body := strings.TrimRight(content.String(), "\n")

		hint := ""
		if prev, ok := block.PreviousSibling().(*ast.Paragraph); ok {
			hint = pathHint(prev, source)
		}

		switch {
		case hint != "":
			if clean, err := domain.CleanPath(hint); err == nil {
				actions = append(actions, domain.CreateFile{Path: clean, Content: body})
			}
		case shellLangs[lang] && strings.TrimSpace(body) != "":
			actions = append(actions, domain.RunScript{Command: strings.TrimSpace(body)})
		}
		return ast.WalkSkipChildren, nil
	}

	_ = ast.Walk(root, walker)
	return actions
}

// pathHint returns the first inline code span of a paragraph when it looks like a path.
func pathHint(p *ast.Paragraph, source []byte) string {
	for c := p.FirstChild(); c != nil; c = c.NextSibling() {
		span, ok := c.(*ast.CodeSpan)
		if !ok {
			continue
		}
		var buf bytes.Buffer
		for t := span.FirstChild(); t != nil; t = t.NextSibling() {
			if seg, ok := t.(*ast.Text); ok {
				buf.Write(seg.Segment.Value(source))
			}
		}
		hint := strings.TrimSpace(buf.String())
		// Commands like `npm run dev` are not paths.
		if hint == "" || strings.ContainsAny(hint, " \t") {
			return ""
		}
		return hint
	}
	return ""
}
