package prompts

import (
	"testing"

	"github.com/aretw0/thunder/pkg/domain"
	"github.com/aretw0/thunder/pkg/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartersParse(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		files  int
	}{
		{"React", ReactStarter, 8},
		{"Node", NodeStarter, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parser.ParseDocument(tt.markup)
			assert.Empty(t, doc.Diagnostics)
			require.Len(t, doc.Artifacts, 1)
			assert.Len(t, doc.Actions(), tt.files)
		})
	}
}

func TestTemplates(t *testing.T) {
	templates := Templates()
	require.Len(t, templates, 2)

	assert.Equal(t, domain.StackReact, templates[0].Stack)
	assert.Len(t, templates[0].Prompts, 2)
	assert.Equal(t, []string{ReactStarter}, templates[0].UIPrompts)
	assert.Contains(t, templates[0].Prompts[1], "  - package-lock.json\n")

	assert.Equal(t, domain.StackNode, templates[1].Stack)
	assert.Len(t, templates[1].Prompts, 1)
}
