package dispatch

import (
	"context"
	"fmt"
	"strings"

	"aifoundry/pkg/progress"
	"aifoundry/pkg/specstore"
)

// assignSpecToDevin hands a specification to Devin. The spec document is
// uploaded as an attachment so the session prompt stays inside the
// vendor's prompt limit; Devin creates the implementation repository
// itself, guided by a naming hint.
func (d *Dispatcher) assignSpecToDevin(ctx context.Context, jobID string, src source, req Request) *Result {
	spec := src.spec
	content := spec.Specification
	if content == "" {
		content = spec.Content
	}

	devin := d.newDevin(req.APIKey)

	d.broker.Publish(jobID, progress.EventAgentStart, map[string]any{"agent": AgentDevin})

	attachment := ""
	if fileURL, err := devin.UploadAttachment(ctx, "specification.md", content); err == nil {
		attachment = fileURL
	} else {
		// Fall back to inlining the document; CreateSession truncates.
		d.logger.Warn("spec attachment upload failed, inlining content: %v", err)
	}

	prompt := buildSpecPrompt(spec, req.TaskDetails, attachment, content)
	session, err := devin.CreateSession(ctx, prompt)
	if err != nil {
		return errorResult(AgentDevin, "%s", err.Error())
	}
	return &Result{
		Status:     StatusSuccess,
		Agent:      AgentDevin,
		Message:    "Devin session created for the specification",
		SessionID:  session.SessionID,
		SessionURL: session.URL,
		TaskID:     req.TaskID,
	}
}

// buildSpecPrompt assembles the Devin session prompt for a spec
// assignment, optionally narrowed to a single breakdown task.
func buildSpecPrompt(spec specstore.Spec, task *specstore.TaskBreakdown, attachment, content string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Implement the specification %q.\n\n", spec.Title)

	if attachment != "" {
		fmt.Fprintf(&b, "The full specification document is attached:\nATTACHMENT:%q\n\n", attachment)
	} else {
		b.WriteString("Specification:\n\n")
		b.WriteString(content)
		b.WriteString("\n\n")
	}

	repoName := specstore.Slugify(spec.Title) + "-implementation"
	if task != nil {
		fmt.Fprintf(&b, "Focus on this task only:\nTitle: %s\nDescription: %s\n", task.Title, task.Description)
		if len(task.AcceptanceCriteria) > 0 {
			b.WriteString("Acceptance criteria:\n")
			for _, c := range task.AcceptanceCriteria {
				fmt.Fprintf(&b, "- %s\n", c)
			}
		}
		b.WriteString("\n")
		repoName = specstore.Slugify(spec.Title) + "-" + specstore.Slugify(task.Title)
	}

	fmt.Fprintf(&b, "Create a NEW GitHub repository under your account named %s and implement the work there. Open a pull request when done.\n", repoName)
	return b.String()
}

// DispatchTasks assigns the selected breakdown tasks of a spec one at a
// time, returning one result per task in order. An empty selection means
// every task. Tasks that dispatch successfully are marked assigned.
func (d *Dispatcher) DispatchTasks(ctx context.Context, specID, jobID string, req Request) []*Result {
	spec, err := d.specs.Get(specID)
	if err != nil {
		return []*Result{errorResult(req.AgentID, "%s", err.Error())}
	}

	selected := req.SelectedTasks
	if len(selected) == 0 {
		for _, t := range spec.Tasks {
			selected = append(selected, t.ID)
		}
	}

	byID := make(map[string]specstore.TaskBreakdown, len(spec.Tasks))
	for _, t := range spec.Tasks {
		byID[t.ID] = t
	}

	results := make([]*Result, 0, len(selected))
	for _, taskID := range selected {
		if d.broker.IsCancelled(jobID) {
			res := errorResult(req.AgentID, "assignment cancelled")
			res.TaskID = taskID
			results = append(results, res)
			continue
		}

		task, ok := byID[taskID]
		if !ok {
			res := errorResult(req.AgentID, "task not found: %s", taskID)
			res.TaskID = taskID
			results = append(results, res)
			continue
		}

		taskReq := req
		taskReq.TaskID = task.ID
		taskReq.TaskDetails = &task
		taskReq.SelectedTasks = nil

		taskJobID := ""
		if jobID != "" {
			taskJobID = jobID + "-" + task.ID
		}

		res := d.Assign(ctx, specID, taskJobID, taskReq)
		res.TaskID = task.ID
		results = append(results, res)

		if res.Status == StatusSuccess {
			if _, err := d.specs.UpdateTaskStatus(specID, task.ID, "assigned"); err != nil {
				d.logger.Warn("failed to mark task %s assigned: %v", task.ID, err)
			}
		}
	}

	d.broker.Forget(jobID)
	return results
}
