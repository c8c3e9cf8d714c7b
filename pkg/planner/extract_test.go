package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractorAcrossChunkBoundaries(t *testing.T) {
	var ex Extractor

	objs := ex.Feed(`{"id":"task-1","ti`)
	assert.Empty(t, objs)

	objs = ex.Feed(`tle":"Implement auth"}` + "\n" + `{"id":"task-2",`)
	require.Len(t, objs, 1)
	assert.JSONEq(t, `{"id":"task-1","title":"Implement auth"}`, objs[0])

	objs = ex.Feed(`"title":"Add tests"}`)
	require.Len(t, objs, 1)
	assert.JSONEq(t, `{"id":"task-2","title":"Add tests"}`, objs[0])
}

func TestExtractorIgnoresBracesInStrings(t *testing.T) {
	var ex Extractor
	objs := ex.Feed(`{"id":"task-1","description":"handle {braces} and \"quotes\" safely"}`)
	require.Len(t, objs, 1)
}

func TestExtractorNestedObjects(t *testing.T) {
	var ex Extractor
	objs := ex.Feed(`{"id":"task-1","meta":{"inner":{"deep":1}}} trailing`)
	require.Len(t, objs, 1)
	assert.Contains(t, objs[0], `"inner"`)
}

func TestParseTasksJSONArray(t *testing.T) {
	tasks := ParseTasks("```json\n" + `[
		{"id":"task-1","title":"Implement API","priority":"high"},
		{"id":"task-2","title":"Add tests","status":"pending"}
	]` + "\n```")

	require.Len(t, tasks, 2)
	assert.Equal(t, "task-1", tasks[0].ID)
	assert.Equal(t, "pending", tasks[0].Status)
}

func TestParseTasksNDJSON(t *testing.T) {
	tasks := ParseTasks(`
{"id":"task-1","title":"Implement auth middleware","acceptanceCriteria":["401 without token"],"priority":"high"}
{"id":"task-2","title":"Wire database","estimatedTime":"2-3 hours"}
not json at all
{"id":"task-2","title":"duplicate id is dropped"}
`)

	require.Len(t, tasks, 2)
	assert.Equal(t, "Implement auth middleware", tasks[0].Title)
	assert.Equal(t, []string{"401 without token"}, tasks[0].AcceptanceCriteria)
	assert.NotEmpty(t, tasks[0].EstimatedTokens, "missing token hint is estimated")
	assert.Equal(t, "Wire database", tasks[1].Title)
}

func TestParseTasksObjectWrapper(t *testing.T) {
	tasks := ParseTasks(`{"tasks":[
		{"id":"task-1","title":"Implement API"},
		{"id":"task-2","title":"Add tests"}
	]}`)

	require.Len(t, tasks, 2)
	assert.Equal(t, "task-1", tasks[0].ID)
	assert.Equal(t, "task-2", tasks[1].ID)
}

func TestParseTasksDropsIDlessObjects(t *testing.T) {
	tasks := ParseTasks(`{"title":"no id here"}`)
	assert.Empty(t, tasks)
}

func TestCountTokensFallsBackSanely(t *testing.T) {
	n := CountTokens("The quick brown fox jumps over the lazy dog")
	assert.Greater(t, n, 0)
	assert.Less(t, n, 20)
}
