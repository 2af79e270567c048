package tui

import (
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/thunder/pkg/domain"
	"github.com/aretw0/thunder/pkg/filetree"
	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// NewRenderer returns a function that renders markdown using glamour.
// Output that is not a terminal gets the markdown back unchanged.
func NewRenderer(f *os.File) func(string) (string, error) {
	if !IsTerminal(f) {
		return func(markdown string) (string, error) {
			return markdown, nil
		}
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
	)
	if err != nil {
		return func(markdown string) (string, error) {
			return markdown, nil
		}
	}
	return r.Render
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// SessionMarkdown describes a session: status, steps and files.
func SessionMarkdown(s *domain.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Session `%s`\n\n", s.ID)
	if s.Stack != "" {
		fmt.Fprintf(&b, "- **Stack:** %s\n", s.Stack)
	}
	fmt.Fprintf(&b, "- **Status:** %s\n", s.Status)
	files, folders := filetree.Count(s.Tree)
	fmt.Fprintf(&b, "- **Tree:** %d files, %d folders\n", files, folders)
	if s.LastError != "" {
		fmt.Fprintf(&b, "- **Last error:** %s\n", s.LastError)
	}

	if len(s.Steps) > 0 {
		b.WriteString("\n## Steps\n\n| # | Status | Kind | Title |\n|---|---|---|---|\n")
		for _, st := range s.Steps {
			title := st.Title
			if st.Error != "" {
				title += " (" + st.Error + ")"
			}
			fmt.Fprintf(&b, "| %d | %s | %s | %s |\n", st.ID, st.Status, st.Kind, escapeCell(title))
		}
	}

	if paths := filetree.Files(s.Tree); len(paths) > 0 {
		b.WriteString("\n## Files\n\n")
		for _, f := range paths {
			fmt.Fprintf(&b, "- `%s`\n", f.Path)
		}
	}
	return b.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
