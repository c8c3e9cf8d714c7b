package catalog

// Pattern is one of the fixed multi-agent architecture diagrams offered as
// a starting point. Default scenario/input/output text lives here so every
// consumer keys off the pattern id instead of branching on it.
type Pattern struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Type            string   `json:"type"`
	UseCases        []string `json:"use_cases"`
	DocURL          string   `json:"github_url"`
	DefaultScenario string   `json:"default_scenario"`
	DefaultInput    string   `json:"default_input"`
	DefaultOutput   string   `json:"default_output"`
}

//nolint:gochecknoglobals // fixed catalog data
var patterns = []Pattern{
	{
		ID:              "prompt-chaining",
		Title:           "Prompt Chaining Pattern",
		Description:     "Sequential processing where the output of one agent becomes the input for the next, with conditional gates and error handling for complex multi-step workflows.",
		Type:            "Sequential Processing",
		UseCases:        []string{"Multi-step workflows", "Data transformation pipelines", "Complex reasoning chains"},
		DocURL:          "https://learn.microsoft.com/en-us/azure/ai-foundry/agents/overview",
		DefaultScenario: "Generate a marketing campaign: draft copy, refine tone, then localize for each market.",
		DefaultInput:    "Campaign brief",
		DefaultOutput:   "Localized campaign copy",
	},
	{
		ID:              "routing",
		Title:           "Routing Pattern",
		Description:     "Intelligent request routing where a central router agent directs tasks to specialized agents based on content analysis and agent capabilities.",
		Type:            "Request Routing",
		UseCases:        []string{"Content classification", "Task delegation", "Load balancing"},
		DocURL:          "https://learn.microsoft.com/en-us/azure/ai-foundry/agents/overview",
		DefaultScenario: "Triage incoming support tickets and route each one to the billing, technical, or account specialist agent.",
		DefaultInput:    "Support ticket",
		DefaultOutput:   "Specialist response",
	},
	{
		ID:              "parallelization",
		Title:           "Parallelization Pattern",
		Description:     "Concurrent processing where multiple agents work simultaneously on different aspects of a task, with results aggregated for comprehensive output.",
		Type:            "Concurrent Processing",
		UseCases:        []string{"Parallel analysis", "Multi-perspective evaluation", "Distributed processing"},
		DocURL:          "https://learn.microsoft.com/en-us/azure/ai-foundry/agents/overview",
		DefaultScenario: "Review a contract with legal, financial, and compliance agents running in parallel, then merge their findings.",
		DefaultInput:    "Contract document",
		DefaultOutput:   "Consolidated review report",
	},
	{
		ID:              "orchestrator",
		Title:           "Orchestrator Pattern",
		Description:     "Complex workflow management where an orchestrator coordinates multiple specialized agents and synthesizes their outputs into cohesive results.",
		Type:            "Workflow Management",
		UseCases:        []string{"Complex workflows", "Multi-agent coordination", "Result synthesis"},
		DocURL:          "https://learn.microsoft.com/en-us/azure/ai-foundry/agents/overview",
		DefaultScenario: "Plan a product launch: the orchestrator delegates research, scheduling, and content tasks, then assembles the plan.",
		DefaultInput:    "Launch goals",
		DefaultOutput:   "Complete launch plan",
	},
	{
		ID:              "evaluator-optimizer",
		Title:           "Evaluator-Optimizer Pattern",
		Description:     "Iterative improvement system where a generator creates solutions and an evaluator provides feedback, creating a continuous optimization loop.",
		Type:            "Iterative Improvement",
		UseCases:        []string{"Solution optimization", "Quality improvement", "Iterative refinement"},
		DocURL:          "https://learn.microsoft.com/en-us/azure/ai-foundry/agents/overview",
		DefaultScenario: "Generate SQL queries and iteratively refine them until the evaluator confirms correctness and performance.",
		DefaultInput:    "Natural-language query",
		DefaultOutput:   "Validated SQL query",
	},
}

//nolint:gochecknoglobals // derived index
var patternByID = func() map[string]Pattern {
	m := make(map[string]Pattern, len(patterns))
	for _, p := range patterns {
		m[p.ID] = p
	}
	return m
}()

// Patterns returns the fixed pattern set.
func Patterns() []Pattern {
	out := make([]Pattern, len(patterns))
	copy(out, patterns)
	return out
}

// PatternByID looks up a pattern by id.
func PatternByID(id string) (Pattern, bool) {
	p, ok := patternByID[id]
	return p, ok
}
