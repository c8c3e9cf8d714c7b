package planner

import (
	"encoding/json"
	"strconv"
	"strings"

	"aifoundry/pkg/specstore"
)

// Extractor accumulates streamed text and yields complete top-level JSON
// objects as their closing brace arrives. String contents are tracked so
// braces inside strings never unbalance the scan.
type Extractor struct {
	buf strings.Builder
}

// Feed appends a chunk and returns any objects completed by it.
func (e *Extractor) Feed(chunk string) []string {
	e.buf.WriteString(chunk)
	return e.drain()
}

// Flush returns objects completed by remaining buffered text.
func (e *Extractor) Flush() []string {
	return e.drain()
}

func (e *Extractor) drain() []string {
	s := e.buf.String()
	var out []string
	for {
		obj, rest, ok := extractObject(s)
		if !ok {
			break
		}
		out = append(out, obj)
		s = rest
	}
	e.buf.Reset()
	e.buf.WriteString(s)
	return out
}

// extractObject scans for the first balanced top-level object in s. It
// returns the object, the remainder after it (with separator characters
// skipped), and whether one was found.
func extractObject(s string) (obj, rest string, ok bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", s, false
	}

	depth := 0
	inStr := false
	esc := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case ch == '\\':
				esc = true
			case ch == '"':
				inStr = false
			}
			continue
		}
		switch ch {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				k := i + 1
				for k < len(s) && strings.ContainsRune(" \n\r\t,]", rune(s[k])) {
					k++
				}
				return s[start : i+1], s[k:], true
			}
		}
	}
	return "", s, false
}

// stripFences removes a surrounding markdown code fence if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.IndexByte(s, '\n'); idx >= 0 {
			s = s[idx+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func parseTask(obj string) (specstore.TaskBreakdown, bool) {
	var task specstore.TaskBreakdown
	if err := json.Unmarshal([]byte(obj), &task); err != nil || task.ID == "" {
		return specstore.TaskBreakdown{}, false
	}
	if task.Status == "" {
		task.Status = "pending"
	}
	if task.EstimatedTokens == "" {
		task.EstimatedTokens = estimateTaskTokens(task)
	}
	return task, true
}

// estimateTaskTokens sizes a task's prompt footprint so the UI can show
// a hint when the model omitted one.
func estimateTaskTokens(task specstore.TaskBreakdown) string {
	text := task.Title + " " + task.Description + " " + strings.Join(task.AcceptanceCriteria, " ")
	return strconv.Itoa(CountTokens(text))
}

// ParseTasks extracts every task object from a model response, tolerating
// code fences, a wrapping JSON array, or bare NDJSON lines. Duplicate ids
// keep the first occurrence.
func ParseTasks(raw string) []specstore.TaskBreakdown {
	text := stripFences(raw)

	// Try a clean JSON array first.
	var arr []specstore.TaskBreakdown
	if err := json.Unmarshal([]byte(text), &arr); err == nil {
		return dedupe(arr)
	}

	// Some responses wrap the array in an object: {"tasks": [...]}.
	var wrapper struct {
		Tasks []specstore.TaskBreakdown `json:"tasks"`
	}
	if err := json.Unmarshal([]byte(text), &wrapper); err == nil && len(wrapper.Tasks) > 0 {
		return dedupe(wrapper.Tasks)
	}

	var ex Extractor
	objs := ex.Feed(text)
	objs = append(objs, ex.Flush()...)

	var tasks []specstore.TaskBreakdown
	for _, obj := range objs {
		if task, ok := parseTask(obj); ok {
			tasks = append(tasks, task)
		}
	}
	return dedupe(tasks)
}

func dedupe(tasks []specstore.TaskBreakdown) []specstore.TaskBreakdown {
	seen := make(map[string]bool, len(tasks))
	out := tasks[:0]
	for _, t := range tasks {
		if t.ID == "" || seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		if t.Status == "" {
			t.Status = "pending"
		}
		if t.EstimatedTokens == "" {
			t.EstimatedTokens = estimateTaskTokens(t)
		}
		out = append(out, t)
	}
	return out
}
