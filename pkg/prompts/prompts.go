// Package prompts holds the instructions sent to the model and the built-in starter templates.
package prompts

import (
	"fmt"
	"strings"

	"github.com/aretw0/thunder/pkg/domain"
)

// Classify instructs the model to answer with a single stack name.
const Classify = "Return either node or react based on what you think this project should be. " +
	"Only return a single word either 'node' or 'react'. Do not return anything extra"

// Base nudges the model towards polished, production-grade output.
const Base = "For all designs I ask you to make, have them be beautiful, not cookie cutter. " +
	"Make webpages that are fully featured and worthy for production.\n\n" +
	"By default, this template supports JSX syntax with Tailwind CSS classes, React hooks, and Lucide React for icons. " +
	"Do not install other packages for UI themes, icons, etc unless absolutely necessary or I request them.\n\n" +
	"Use icons from lucide-react for logos."

const system = `You are Thunder, an expert AI assistant and exceptional senior software developer.

<system_constraints>
  You are operating in a sandbox that runs Node.js. Prefer Vite for web servers.
  Shell commands are limited; do not rely on native binaries or pip.
</system_constraints>

<artifact_instructions>
  1. Think holistically before answering: consider every file of the project and all previous changes.
  2. Wrap the whole answer in a single <boltArtifact id="kebab-case-id" title="Short Title"> element.
  3. Inside it, emit one <boltAction> element per step, in the order the steps must run:
     - type="file" with a filePath attribute: the complete contents of the file. Never truncate or summarise.
     - type="folder" with a filePath attribute: create an empty folder.
     - type="delete" with a filePath attribute: remove a file or folder.
     - type="shell": a single command line to run in the sandbox.
  4. Create package.json before anything else and install dependencies before starting a dev server.
  5. File paths are relative to the project root.
  6. Do not explain the artifact unless asked. Be concise.
</artifact_instructions>`

// System returns the system prompt for artifact generation.
func System() string {
	return system
}

// ProjectContext wraps starter markup so the model treats it as the current project.
func ProjectContext(markup string, hidden ...string) string {
	var b strings.Builder
	b.WriteString("Here is an artifact that contains all files of the project visible to you.\n")
	b.WriteString("Consider the contents of ALL files in the project.\n\n")
	b.WriteString(markup)
	if len(hidden) > 0 {
		b.WriteString("\n\nHere is a list of files that exist on the file system but are not being shown to you:\n\n")
		for _, h := range hidden {
			fmt.Fprintf(&b, "  - %s\n", h)
		}
	}
	return b.String()
}

// Templates returns the built-in react and node starter templates.
func Templates() []domain.Template {
	hidden := []string{".gitignore", "package-lock.json"}
	return []domain.Template{
		{
			Stack:     domain.StackReact,
			Title:     "Vite React TypeScript starter",
			Prompts:   []string{Base, ProjectContext(ReactStarter, hidden...)},
			UIPrompts: []string{ReactStarter},
		},
		{
			Stack:     domain.StackNode,
			Title:     "Node.js starter",
			Prompts:   []string{ProjectContext(NodeStarter, hidden...)},
			UIPrompts: []string{NodeStarter},
		},
	}
}
