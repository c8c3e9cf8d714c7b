// Package planner drives the model-backed spec workflow steps: content
// enhancement, plan generation, and task breakdown. All calls go through
// the Azure OpenAI Responses API.
package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"aifoundry/pkg/config"
	"aifoundry/pkg/logx"
	"aifoundry/pkg/specstore"
)

// Breakdown modes accepted by the tasks phase.
const (
	ModeOneshot   = "oneshot"
	ModeBreakdown = "breakdown"
)

const maxOutputTokens = 8000

// contentLimit truncates spec content in prompts to keep requests inside
// model context.
const contentLimit = 8000

// Planner issues model calls against one Azure OpenAI deployment.
type Planner struct {
	client openai.Client
	model  string
	logger *logx.Logger
}

// New builds a planner for the configured Azure endpoint. The endpoint's
// /openai/v1/ path speaks the OpenAI-compatible surface; the api-version
// rides along as a default query parameter.
func New(cfg config.AzureOpenAIConfig, apiKey string) (*Planner, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("azure openai endpoint not configured")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("azure openai key not configured")
	}

	baseURL := strings.TrimRight(cfg.Endpoint, "/") + "/openai/v1/"
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithQueryAdd("api-version", cfg.APIVersion),
	)
	return &Planner{
		client: client,
		model:  cfg.Model,
		logger: logx.NewLogger("planner"),
	}, nil
}

func (p *Planner) respond(ctx context.Context, instructions, input string) (string, error) {
	resp, err := p.client.Responses.New(ctx, responses.ResponseNewParams{
		Model:           p.model,
		Instructions:    openai.String(instructions),
		MaxOutputTokens: openai.Int(maxOutputTokens),
		Input:           responses.ResponseNewParamsInputUnion{OfString: openai.String(input)},
	})
	if err != nil {
		return "", fmt.Errorf("model call failed: %w", err)
	}
	return strings.TrimSpace(resp.OutputText()), nil
}

// Enhance rewrites the spec content into a more technical, actionable
// form. The caller persists the result.
func (p *Planner) Enhance(ctx context.Context, spec specstore.Spec) (string, error) {
	instructions := "You are an AI assistant that enhances specifications to be more suitable " +
		"for coding agents and software engineers. Your task is to take a specification and " +
		"make it more detailed, technical, and actionable for implementation."

	input := fmt.Sprintf(`Please enhance the following specification to be more suitable for coding agents and software engineers. Make it more detailed, technical, and actionable:

Title: %s
Description: %s
Current Content:
%s

Tags: %s

Please provide an enhanced version that includes:
1. Clear technical requirements
2. Implementation guidelines
3. Architecture considerations
4. Testing criteria
5. Acceptance criteria

Return the enhanced content in markdown format.`,
		spec.Title, spec.Description, spec.Content, strings.Join(spec.Tags, ", "))

	out, err := p.respond(ctx, instructions, input)
	if err != nil {
		return "", err
	}
	p.logger.Info("enhanced spec %s: %d chars", spec.ID, len(out))
	return out, nil
}

// GeneratePlan produces the technical implementation plan for the plan
// phase.
func (p *Planner) GeneratePlan(ctx context.Context, spec specstore.Spec, techStack, architecture, constraints string) (string, error) {
	if architecture == "" {
		architecture = "Standard best practices"
	}
	if constraints == "" {
		constraints = "None specified"
	}

	instructions := "You are a senior technical architect. Given a specification and technology " +
		"requirements, create a comprehensive technical implementation plan."

	input := fmt.Sprintf(`Create a detailed technical implementation plan for the following:

Specification: %s
Technology Stack: %s
Architecture: %s
Constraints: %s

Please provide:
1. Architecture Overview
2. Technical Requirements
3. Implementation Approach
4. API Design (if applicable)
5. Data Models
6. Testing Strategy
7. Deployment Considerations

Format the response in markdown.`, spec.Specification, techStack, architecture, constraints)

	plan, err := p.respond(ctx, instructions, input)
	if err != nil {
		return "", err
	}
	if plan == "" {
		plan = "# Technical Implementation Plan\n\nPlan generation failed."
	}
	return plan, nil
}

// BreakdownRequest carries the customization context woven into breakdown
// prompts.
type BreakdownRequest struct {
	CompanyName            string `json:"company_name"`
	Industry               string `json:"industry"`
	UseCase                string `json:"use_case"`
	CustomerScenario       string `json:"customer_scenario"`
	BrandTheme             string `json:"brand_theme"`
	PrimaryColor           string `json:"primary_color"`
	AdditionalRequirements string `json:"additional_requirements"`
}

func breakdownPrompts(spec specstore.Spec, req BreakdownRequest) (instructions, input string) {
	content := spec.Content
	if len(content) > contentLimit {
		content = content[:contentLimit]
	}

	instructions = fmt.Sprintf(`You are a senior software project lead. Given a product spec/epic/PRD, produce a Work Breakdown Structure (WBS) tailored for a junior software engineer to execute.

Guidance:
- 8–15 concrete engineering tasks, each sized 1–6 hours.
- Description: one sentence, max 20 words. No boilerplate.
- Acceptance criteria: 3–5 bullets, each ≤ 12 words, objectively verifiable.
- Prefer implementation over research; include unit/e2e tests, instrumentation, and docs where relevant.
- Title starts with an action verb (Implement, Add, Refactor, Wire, Document, Test, Configure, etc.).
- Respect context (title, description, tags, markdown content) and additional requirements.

Output format (NDJSON):
- Stream one JSON object per line (no code fences, no extra text).
- Keys: id, title, description, acceptanceCriteria, estimatedTime, estimatedTokens, priority, status.

Specification context:
Title: %s
Description: %s
Tags: %s
Content (truncated):
%s`, spec.Title, spec.Description, strings.Join(spec.Tags, ", "), content)

	input = fmt.Sprintf(`Generate the NDJSON task stream now based on the context above and these extra parameters:
Company: %s
Industry: %s
Use Case: %s
Customer Scenario: %s
Brand Theme: %s
Primary Color: %s
Additional Requirements: %s

Requirements:
- Start output immediately as NDJSON lines.
- Do NOT wrap in code fences.
- Do NOT emit arrays; only one task JSON per line.
- Generate 8–15 lines total.
- Keep every description ≤ 20 words; acceptanceCriteria bullets ≤ 12 words.`,
		req.CompanyName, req.Industry, req.UseCase, req.CustomerScenario,
		req.BrandTheme, req.PrimaryColor, req.AdditionalRequirements)
	return instructions, input
}

// BreakdownTasks performs a single-shot task breakdown and returns the
// parsed, deduplicated task list.
func (p *Planner) BreakdownTasks(ctx context.Context, spec specstore.Spec, req BreakdownRequest) ([]specstore.TaskBreakdown, error) {
	instructions, input := breakdownPrompts(spec, req)
	out, err := p.respond(ctx, instructions, input)
	if err != nil {
		return nil, err
	}

	tasks := ParseTasks(out)
	if len(tasks) == 0 {
		return nil, fmt.Errorf("model returned no parseable tasks")
	}
	p.logger.Info("breakdown for spec %s produced %d tasks", spec.ID, len(tasks))
	return tasks, nil
}

// StreamBreakdown streams the task breakdown, invoking emit once per
// complete task object as the model produces it, and returns the full
// deduplicated list at the end.
func (p *Planner) StreamBreakdown(ctx context.Context, spec specstore.Spec, req BreakdownRequest,
	emit func(specstore.TaskBreakdown)) ([]specstore.TaskBreakdown, error) {
	instructions, input := breakdownPrompts(spec, req)

	stream := p.client.Responses.NewStreaming(ctx, responses.ResponseNewParams{
		Model:           p.model,
		Instructions:    openai.String(instructions),
		MaxOutputTokens: openai.Int(maxOutputTokens),
		Input:           responses.ResponseNewParamsInputUnion{OfString: openai.String(input)},
	})
	defer stream.Close()

	var (
		ex    Extractor
		tasks []specstore.TaskBreakdown
		seen  = make(map[string]bool)
	)
	handle := func(objs []string) {
		for _, obj := range objs {
			task, ok := parseTask(obj)
			if !ok || seen[task.ID] {
				continue
			}
			seen[task.ID] = true
			tasks = append(tasks, task)
			if emit != nil {
				emit(task)
			}
		}
	}

	for stream.Next() {
		ev := stream.Current()
		if ev.Type == "response.output_text.delta" {
			handle(ex.Feed(ev.Delta.OfString))
		}
	}
	if err := stream.Err(); err != nil {
		return tasks, fmt.Errorf("breakdown stream failed: %w", err)
	}
	handle(ex.Flush())

	if len(tasks) == 0 {
		return nil, fmt.Errorf("model stream produced no parseable tasks")
	}
	return tasks, nil
}
