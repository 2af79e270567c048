package domain

// Stack names returned by template classification.
const (
	StackReact = "react"
	StackNode  = "node"
)

// Template is the starter material for one stack.
// Prompts are sent to the model ahead of the user prompt;
// UIPrompts[0] holds the starter project as action markup.
type Template struct {
	Stack     string   `json:"stack" mapstructure:"stack"`
	Title     string   `json:"title,omitempty" mapstructure:"title"`
	Prompts   []string `json:"prompts"`
	UIPrompts []string `json:"uiPrompts"`
}
