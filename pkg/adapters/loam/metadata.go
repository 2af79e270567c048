package loam

// TemplateMetadata is the frontmatter of a template document.
// The document body holds the starter project as action markup.
type TemplateMetadata struct {
	// Stack defaults to the document name without extension.
	Stack string `json:"stack" mapstructure:"stack"`
	Title string `json:"title" mapstructure:"title"`

	// Prompts are sent ahead of the user prompt, in order.
	Prompts []string `json:"prompts" mapstructure:"prompts"`

	// BasePrompt prepends the design guidance prompt.
	BasePrompt bool `json:"base_prompt" mapstructure:"base_prompt"`

	// ProjectContext appends a prompt describing the starter files to the model.
	ProjectContext bool `json:"project_context" mapstructure:"project_context"`

	// Hidden lists starter files the model is told exist but are not shown.
	Hidden []string `json:"hidden" mapstructure:"hidden"`
}
