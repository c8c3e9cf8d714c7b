package templates

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// workflow mirrors the GitHub Actions document structure closely enough
// for marshaling; "on" needs an explicit tag to avoid YAML's boolean
// interpretation of the bare key.
type workflow struct {
	Name string         `yaml:"name"`
	On   workflowOn     `yaml:"on"`
	Jobs map[string]job `yaml:"jobs"`
}

type workflowOn struct {
	Push             *branchFilter `yaml:"push,omitempty"`
	PullRequest      *branchFilter `yaml:"pull_request,omitempty"`
	WorkflowDispatch *struct{}     `yaml:"workflow_dispatch,omitempty"`
}

type branchFilter struct {
	Branches []string `yaml:"branches"`
}

type job struct {
	RunsOn string `yaml:"runs-on"`
	Steps  []step `yaml:"steps"`
}

type step struct {
	Name string            `yaml:"name,omitempty"`
	Uses string            `yaml:"uses,omitempty"`
	With map[string]string `yaml:"with,omitempty"`
	Env  map[string]string `yaml:"env,omitempty"`
	Run  string            `yaml:"run,omitempty"`
}

// CodexWorkflow generates the Actions workflow injected for the Azure
// OpenAI Codex agent. The workflow reads agents.md for context and expects
// the repository secrets named in the returned YAML.
func CodexWorkflow() (string, error) {
	wf := workflow{
		Name: "Azure OpenAI Codex Automation",
		On: workflowOn{
			Push:             &branchFilter{Branches: []string{"main"}},
			PullRequest:      &branchFilter{Branches: []string{"main"}},
			WorkflowDispatch: &struct{}{},
		},
		Jobs: map[string]job{
			"codex-automation": {
				RunsOn: "ubuntu-latest",
				Steps: []step{
					{Uses: "actions/checkout@v4"},
					{
						Name: "Set up Python",
						Uses: "actions/setup-python@v4",
						With: map[string]string{"python-version": "3.11"},
					},
					{
						Name: "Install dependencies",
						Run:  "python -m pip install --upgrade pip\npip install openai azure-identity\n",
					},
					{
						Name: "Run Codex Automation",
						Env: map[string]string{
							"AZURE_OPENAI_API_KEY":  "${{ secrets.AZURE_OPENAI_API_KEY }}",
							"AZURE_OPENAI_ENDPOINT": "${{ secrets.AZURE_OPENAI_ENDPOINT }}",
						},
						Run: "python scripts/codex_agent.py --context agents.md\n",
					},
				},
			},
		},
	}
	return marshalWorkflow(wf)
}

// ClaudeWorkflow generates the Actions workflow injected for the Claude
// code agent. The API key is read from repository secrets at run time;
// dispatch never commits it.
func ClaudeWorkflow() (string, error) {
	wf := workflow{
		Name: "Claude Code Agent",
		On: workflowOn{
			Push:             &branchFilter{Branches: []string{"main", "master"}},
			WorkflowDispatch: &struct{}{},
		},
		Jobs: map[string]job{
			"claude-agent": {
				RunsOn: "ubuntu-latest",
				Steps: []step{
					{Uses: "actions/checkout@v4"},
					{
						Name: "Run Claude Code",
						Uses: "anthropics/claude-code-action@v1",
						With: map[string]string{
							"anthropic_api_key": "${{ secrets.ANTHROPIC_API_KEY }}",
							"prompt_file":       "agents.md",
						},
					},
				},
			},
		},
	}
	return marshalWorkflow(wf)
}

func marshalWorkflow(wf workflow) (string, error) {
	data, err := yaml.Marshal(wf)
	if err != nil {
		return "", fmt.Errorf("failed to marshal workflow: %w", err)
	}
	return string(data), nil
}
