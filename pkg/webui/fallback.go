package webui

import (
	"fmt"

	"aifoundry/pkg/specstore"
)

// fallbackPlan produces a usable plan document when no model is
// configured. The phase machine advances either way; the user can edit
// the plan before breaking it down.
func fallbackPlan(spec specstore.Spec, techStack, architecture string) string {
	if techStack == "" {
		techStack = "Standard best practices"
	}
	if architecture == "" {
		architecture = "To be decided during implementation"
	}
	return fmt.Sprintf(`# Implementation Plan: %s

## Technology Stack
%s

## Architecture
%s

## Phases
1. Project scaffolding and dependency setup.
2. Core feature implementation per the specification.
3. Tests covering the acceptance criteria.
4. Documentation and deployment preparation.

_Generated without AI assistance; review and refine before breaking down into tasks._`,
		spec.Title, techStack, architecture)
}

// fallbackTasks is the canned breakdown used when the model is
// unavailable or returns nothing parseable.
func fallbackTasks(spec specstore.Spec) []specstore.TaskBreakdown {
	return []specstore.TaskBreakdown{
		{
			ID:          "task-1",
			Title:       "Set up project scaffolding",
			Description: "Create the repository layout, build tooling, and CI pipeline.",
			AcceptanceCriteria: []string{
				"Project builds from a clean checkout",
				"CI runs on every push",
			},
			EstimatedTime:   "2-3 hours",
			EstimatedTokens: "2000",
			Priority:        "high",
			Status:          "pending",
		},
		{
			ID:          "task-2",
			Title:       fmt.Sprintf("Implement core features of %s", spec.Title),
			Description: "Build the main functionality described in the specification.",
			AcceptanceCriteria: []string{
				"All specified behaviors implemented",
				"Edge cases from the specification handled",
			},
			EstimatedTime:   "4-6 hours",
			EstimatedTokens: "6000",
			Priority:        "high",
			Status:          "pending",
		},
		{
			ID:          "task-3",
			Title:       "Add tests and documentation",
			Description: "Cover the acceptance criteria with tests and write usage docs.",
			AcceptanceCriteria: []string{
				"Tests pass and cover the main flows",
				"README documents setup and usage",
			},
			EstimatedTime:   "2-4 hours",
			EstimatedTokens: "3000",
			Priority:        "medium",
			Status:          "pending",
		},
	}
}
