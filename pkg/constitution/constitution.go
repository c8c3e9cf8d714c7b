// Package constitution validates implementation plans against the spec-kit
// constitutional articles. Validation is keyword-based heuristics over the
// plan text, not model-driven.
package constitution

import "strings"

// Article describes one constitutional gate.
type Article struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Checks      []string `json:"checks"`
}

// Violation reports a failed gate.
type Violation struct {
	Article   string `json:"article"`
	Violation string `json:"violation"`
}

// ValidationRequest carries the plan under review.
type ValidationRequest struct {
	Plan         string `json:"plan"`
	TechStack    string `json:"tech_stack"`
	Architecture string `json:"architecture,omitempty"`
}

// ValidationResult is the checklist outcome attached to a spec.
type ValidationResult struct {
	IsCompliant     bool            `json:"is_compliant"`
	Violations      []Violation     `json:"violations"`
	Recommendations []string        `json:"recommendations"`
	GatesPassed     map[string]bool `json:"gates_passed"`
}

//nolint:gochecknoglobals // fixed article set
var articles = []Article{
	{
		ID:          "library_first",
		Title:       "Library-First Principle (Article I)",
		Description: "Every feature begins as standalone library",
		Checks: []string{
			"Using existing libraries over custom implementations",
			"Clear module boundaries defined",
			"Minimal dependencies specified",
		},
	},
	{
		ID:          "cli_interface",
		Title:       "CLI Interface Mandate (Article II)",
		Description: "All libraries expose CLI interfaces",
		Checks: []string{
			"Command-line interface defined",
			"All functionality accessible via CLI",
			"Proper argument parsing implemented",
		},
	},
	{
		ID:          "test_first",
		Title:       "Test-First Imperative (Article III)",
		Description: "No implementation before comprehensive tests",
		Checks: []string{
			"Unit tests defined before implementation",
			"Test coverage plan specified",
			"Integration tests included",
		},
	},
	{
		ID:          "simplicity",
		Title:       "Simplicity Gates (Article VII)",
		Description: "Maximum 3 projects, no future-proofing",
		Checks: []string{
			"Using ≤3 projects",
			"No future-proofing patterns",
			"Simple, direct implementation approach",
		},
	},
	{
		ID:          "anti_abstraction",
		Title:       "Anti-Abstraction Gate (Article VIII)",
		Description: "Use frameworks directly, minimal wrapping",
		Checks: []string{
			"Using framework directly",
			"Single model representation",
			"Minimal abstraction layers",
		},
	},
	{
		ID:          "integration_first",
		Title:       "Integration-First Gate (Article IX)",
		Description: "Real environments over mocks",
		Checks: []string{
			"Contracts defined",
			"Contract tests written",
			"Real environment testing planned",
		},
	},
}

// Articles returns the constitutional article set.
func Articles() []Article {
	out := make([]Article, len(articles))
	copy(out, articles)
	return out
}

type gate struct {
	id             string
	article        string
	violation      string
	recommendation string
	check          func(plan, tech, arch string) bool
}

//nolint:gochecknoglobals // fixed gate table
var gates = []gate{
	{
		id:             "library_first",
		article:        "Article I",
		violation:      "Plan does not prioritize existing libraries over custom implementations",
		recommendation: "Consider using established libraries and frameworks instead of building custom solutions",
		check:          checkLibraryFirst,
	},
	{
		id:             "cli_interface",
		article:        "Article II",
		violation:      "No CLI interface specified for the implementation",
		recommendation: "Add command-line interface to make functionality accessible via CLI",
		check:          checkCLIInterface,
	},
	{
		id:             "test_first",
		article:        "Article III",
		violation:      "Tests are not prioritized before implementation",
		recommendation: "Define comprehensive test suite before beginning implementation",
		check:          checkTestFirst,
	},
	{
		id:             "simplicity",
		article:        "Article VII",
		violation:      "Plan appears to involve too many projects or future-proofing",
		recommendation: "Simplify approach to use ≤3 projects and avoid future-proofing patterns",
		check:          checkSimplicity,
	},
	{
		id:             "anti_abstraction",
		article:        "Article VIII",
		violation:      "Plan includes unnecessary abstraction layers",
		recommendation: "Use frameworks directly with minimal wrapping and abstraction",
		check:          checkAntiAbstraction,
	},
	{
		id:             "integration_first",
		article:        "Article IX",
		violation:      "Plan does not emphasize real environment testing",
		recommendation: "Define contracts and plan for real environment testing over mocks",
		check:          checkIntegrationFirst,
	},
}

// ValidatePlan runs every gate over the plan and returns the checklist.
func ValidatePlan(req ValidationRequest) ValidationResult {
	plan := strings.ToLower(req.Plan)
	tech := strings.ToLower(req.TechStack)
	arch := strings.ToLower(req.Architecture)

	result := ValidationResult{
		Violations:      []Violation{},
		Recommendations: []string{},
		GatesPassed:     make(map[string]bool, len(gates)),
	}
	for _, g := range gates {
		passed := g.check(plan, tech, arch)
		result.GatesPassed[g.id] = passed
		if !passed {
			result.Violations = append(result.Violations, Violation{Article: g.article, Violation: g.violation})
			result.Recommendations = append(result.Recommendations, g.recommendation)
		}
	}
	result.IsCompliant = len(result.Violations) == 0
	return result
}

func countHits(text string, indicators []string) int {
	n := 0
	for _, ind := range indicators {
		if strings.Contains(text, ind) {
			n++
		}
	}
	return n
}

func checkLibraryFirst(plan, tech, _ string) bool {
	libraryIndicators := []string{
		"library", "framework", "package", "npm", "pip", "maven", "gradle",
		"existing", "established", "proven", "standard", "popular",
	}
	customIndicators := []string{
		"custom", "build from scratch", "implement our own", "create new",
		"write our own", "develop custom",
	}
	libScore := countHits(plan, libraryIndicators) + countHits(tech, libraryIndicators)
	return libScore > countHits(plan, customIndicators)
}

func checkCLIInterface(plan, _, _ string) bool {
	indicators := []string{
		"cli", "command line", "command-line", "terminal", "console",
		"script", "executable", "command", "args", "arguments",
	}
	return countHits(plan, indicators) > 0
}

func checkTestFirst(plan, _, _ string) bool {
	indicators := []string{
		"test", "testing", "unit test", "integration test", "test-driven",
		"tdd", "test suite", "test coverage", "jest", "pytest", "junit",
	}
	return countHits(plan, indicators) > 0
}

func checkSimplicity(plan, tech, _ string) bool {
	complexityIndicators := []string{
		"microservice", "distributed", "scalable", "enterprise", "future-proof",
		"extensible", "pluggable", "configurable", "flexible architecture",
	}
	components := 0
	for _, part := range strings.Split(tech, ",") {
		if strings.TrimSpace(part) != "" {
			components++
		}
	}
	return components <= 3 && countHits(plan, complexityIndicators) <= 1
}

func checkAntiAbstraction(plan, _, arch string) bool {
	abstractionIndicators := []string{
		"abstract", "interface", "wrapper", "adapter", "facade", "proxy",
		"factory", "builder", "strategy", "observer", "decorator",
	}
	directIndicators := []string{
		"direct", "simple", "straightforward", "minimal", "basic",
	}
	abstraction := countHits(plan, abstractionIndicators) + countHits(arch, abstractionIndicators)
	direct := countHits(plan, directIndicators) + countHits(arch, directIndicators)
	return direct >= abstraction
}

func checkIntegrationFirst(plan, _, _ string) bool {
	integrationIndicators := []string{
		"integration", "contract", "real environment", "end-to-end", "e2e",
		"api test", "integration test", "contract test", "real data",
	}
	mockIndicators := []string{
		"mock", "stub", "fake", "dummy", "test double",
	}
	return countHits(plan, integrationIndicators) >= countHits(plan, mockIndicators)
}
