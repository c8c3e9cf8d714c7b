package templates

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestRenderAgentsTemplateDoc(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	out, err := r.Render(AgentsTemplateDoc, DocData{
		Title:            "Contoso Chat",
		Description:      "RAG chat template",
		Collection:       "Microsoft",
		Task:             "Interactive Chat",
		Languages:        []string{"Python", "TypeScript"},
		Models:           []string{"GPT-4"},
		CompanyName:      "Contoso",
		Industry:         "Retail",
		CustomerScenario: "Customers ask about order status",
		SourceURL:        "https://github.com/Azure-Samples/contoso-chat",
		UseMCPTools:      true,
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "# Contoso Chat"))
	assert.Contains(t, out, "**Languages**: Python, TypeScript")
	assert.Contains(t, out, "**Company**: Contoso")
	assert.Contains(t, out, "**Use MCP Tools**: true")
	assert.Contains(t, out, "https://github.com/Azure-Samples/contoso-chat")
}

func TestRenderDevinPrompt(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	out, err := r.Render(DevinPromptDoc, DocData{
		Title:         "Contoso Chat",
		ItemType:      "template",
		CompanyName:   "Contoso",
		RepositoryURL: "https://github.com/me/contoso-chat",
	})
	require.NoError(t, err)

	assert.Contains(t, out, "You are Devin. Implement the following customization for the Contoso Chat template.")
	assert.Contains(t, out, "https://github.com/me/contoso-chat")
	assert.Contains(t, out, "open a pull request")
}

func TestRenderUnknownTemplate(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	_, err = r.Render(DocTemplate("missing.tpl.md"), DocData{})
	assert.Error(t, err)
}

func TestCodexWorkflowIsValidYAML(t *testing.T) {
	out, err := CodexWorkflow()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "Azure OpenAI Codex Automation", doc["name"])
	assert.Contains(t, out, "${{ secrets.AZURE_OPENAI_API_KEY }}")
	assert.Contains(t, out, "actions/checkout@v4")
}

func TestClaudeWorkflowReferencesSecret(t *testing.T) {
	out, err := ClaudeWorkflow()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	assert.Contains(t, out, "${{ secrets.ANTHROPIC_API_KEY }}")
	// The key itself must never appear in the workflow text.
	assert.NotContains(t, out, "sk-ant-")
}
