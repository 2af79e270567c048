package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the ASCII art banner followed by the version.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	lines := []struct {
		text  string
		color string
	}{
		{" _____ _                     _           ", "#fde047"},
		{"|_   _| |__  _   _ _ __   __| | ___ _ __ ", "#facc15"},
		{"  | | | '_ \\| | | | '_ \\ / _` |/ _ \\ '__|", "#eab308"},
		{"  | | | | | | |_| | | | | (_| |  __/ |   ", "#f59e0b"},
		{"  |_| |_| |_|\\__,_|_| |_|\\__,_|\\___|_|   ", "#f97316"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w, out.String("  v"+version).Faint())
	fmt.Fprintln(w)
}
