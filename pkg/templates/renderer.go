// Package templates renders the markdown artifacts dispatch writes into
// repositories and sends to agent vendors, plus the GitHub Actions
// workflows injected for workflow-driven agents.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed *.tpl.md
var templateFS embed.FS

// DocTemplate names one embedded markdown template.
type DocTemplate string

const (
	// AgentsTemplateDoc renders agents.md for a catalog template dispatch.
	AgentsTemplateDoc DocTemplate = "agents_template.tpl.md"
	// AgentsPatternDoc renders agents.md for a pattern dispatch.
	AgentsPatternDoc DocTemplate = "agents_pattern.tpl.md"
	// AgentsSpecDoc renders agents.md for a specification dispatch.
	AgentsSpecDoc DocTemplate = "agents_spec.tpl.md"
	// DevinPromptDoc renders the Devin session prompt.
	DevinPromptDoc DocTemplate = "devin_prompt.tpl.md"
	// CopilotIssueDoc renders the issue body for the Copilot coding agent.
	CopilotIssueDoc DocTemplate = "copilot_issue.tpl.md"
)

// DocData carries the fields referenced by the markdown templates. Unused
// fields render empty.
type DocData struct {
	// Source item (template, pattern, or spec).
	Title       string
	Description string
	Content     string
	Collection  string
	Task        string
	Languages   []string
	Models      []string
	Databases   []string
	PatternType string
	UseCases    []string
	SourceURL   string
	ItemType    string

	// Customization payload.
	CompanyName            string
	Industry               string
	UseCase                string
	BrandTheme             string
	PrimaryColor           string
	CustomerScenario       string
	AdditionalRequirements string
	UseMCPTools            bool
	UseA2A                 bool

	// Dispatch context.
	RepositoryURL string
}

// Renderer renders the embedded document templates.
type Renderer struct {
	templates map[DocTemplate]*template.Template
}

// NewRenderer parses every embedded template.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{templates: make(map[DocTemplate]*template.Template)}

	names := []DocTemplate{
		AgentsTemplateDoc,
		AgentsPatternDoc,
		AgentsSpecDoc,
		DevinPromptDoc,
		CopilotIssueDoc,
	}
	for _, name := range names {
		content, err := templateFS.ReadFile(string(name))
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", name, err)
		}
		tmpl, err := template.New(string(name)).Funcs(template.FuncMap{
			"join": func(v []string) string { return strings.Join(v, ", ") },
		}).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.templates[name] = tmpl
	}
	return r, nil
}

// Render executes the named template with the given data.
func (r *Renderer) Render(name DocTemplate, data DocData) (string, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown template: %s", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}
