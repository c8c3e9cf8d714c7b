package webui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aifoundry/pkg/catalog"
	"aifoundry/pkg/config"
	"aifoundry/pkg/dispatch"
	"aifoundry/pkg/github"
	"aifoundry/pkg/progress"
	"aifoundry/pkg/specstore"
)

const testCatalog = `[
  {
    "id": "chat-app",
    "title": "Chat App",
    "description": "A chat application template",
    "github_url": "https://github.com/src/chat-app",
    "collection": "Featured",
    "task": "chat",
    "languages": ["Python"],
    "star_count": 10
  }
]`

func setupServer(t *testing.T, ghURL string) *httptest.Server {
	t.Helper()

	dir := t.TempDir()
	catPath := filepath.Join(dir, "catalog.json")
	require.NoError(t, os.WriteFile(catPath, []byte(testCatalog), 0o644))
	cat, err := catalog.Load(catPath, filepath.Join(dir, "featured.json"))
	require.NoError(t, err)

	specs, err := specstore.Open(dir)
	require.NoError(t, err)

	broker := progress.NewBroker()
	disp, err := dispatch.NewDispatcher("http://devin.invalid", cat, specs, broker, nil, nil,
		dispatch.WithGitHubFactory(func(token string) *github.Client {
			return github.NewClient(token, github.WithAPIBase(ghURL))
		}),
		dispatch.WithSleep(func(time.Duration) {}),
		dispatch.WithAnthropicCheck(func(context.Context, string) error { return nil }),
	)
	require.NoError(t, err)

	server := NewServer(config.Defaults(), cat, specs, nil, disp, broker, nil, nil,
		WithGitHubOptions(github.WithAPIBase(ghURL)))
	mux := http.NewServeMux()
	server.RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (int, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestSpecWorkflowHappyPath(t *testing.T) {
	srv := setupServer(t, "http://unused")

	status, spec := doJSON(t, http.MethodPost, srv.URL+"/api/specs", map[string]any{
		"title":   "Demo",
		"content": "Build a todo app",
	})
	require.Equal(t, http.StatusCreated, status)
	id := spec["id"].(string)
	assert.Equal(t, "specification", spec["phase"])

	status, spec = doJSON(t, http.MethodPost, srv.URL+"/api/specs/"+id+"/specify", map[string]any{
		"requirements": "Build a todo app",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "plan", spec["phase"])
	assert.Equal(t, "Build a todo app", spec["specification"])
	assert.Equal(t, "001-demo", spec["branch_name"])

	status, spec = doJSON(t, http.MethodPost, srv.URL+"/api/specs/"+id+"/plan", map[string]any{
		"tech_stack": "Go",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "tasks", spec["phase"])
	assert.NotEmpty(t, spec["plan"])

	status, spec = doJSON(t, http.MethodPost, srv.URL+"/api/specs/"+id+"/tasks", map[string]any{})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "completed", spec["phase"])
	assert.Len(t, spec["tasks"], 3)
}

func TestPhaseConflicts(t *testing.T) {
	srv := setupServer(t, "http://unused")

	status, spec := doJSON(t, http.MethodPost, srv.URL+"/api/specs", map[string]any{"title": "Early"})
	require.Equal(t, http.StatusCreated, status)
	id := spec["id"].(string)

	status, _ = doJSON(t, http.MethodPost, srv.URL+"/api/specs/"+id+"/plan", map[string]any{})
	assert.Equal(t, http.StatusConflict, status, "plan before specify must conflict")

	status, _ = doJSON(t, http.MethodPost, srv.URL+"/api/specs/"+id+"/specify", map[string]any{
		"requirements": "reqs",
	})
	require.Equal(t, http.StatusOK, status)

	status, _ = doJSON(t, http.MethodPost, srv.URL+"/api/specs/"+id+"/specify", map[string]any{
		"requirements": "reqs again",
	})
	assert.Equal(t, http.StatusConflict, status, "repeat specify must conflict")
}

func TestSpecifyEmptyRequirements(t *testing.T) {
	srv := setupServer(t, "http://unused")

	_, spec := doJSON(t, http.MethodPost, srv.URL+"/api/specs", map[string]any{"title": "NoReqs"})
	id := spec["id"].(string)

	status, body := doJSON(t, http.MethodPost, srv.URL+"/api/specs/"+id+"/specify", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "requirements")
}

func TestSpecVersionConflict(t *testing.T) {
	srv := setupServer(t, "http://unused")

	_, spec := doJSON(t, http.MethodPost, srv.URL+"/api/specs", map[string]any{"title": "Versioned"})
	id := spec["id"].(string)

	status, updated := doJSON(t, http.MethodPut, srv.URL+"/api/specs/"+id, map[string]any{
		"title": "Versioned v2", "version": 1,
	})
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, updated["version"])

	status, _ = doJSON(t, http.MethodPut, srv.URL+"/api/specs/"+id, map[string]any{
		"title": "stale write", "version": 1,
	})
	assert.Equal(t, http.StatusConflict, status)

	status, updated = doJSON(t, http.MethodPut, srv.URL+"/api/specs/"+id, map[string]any{
		"title": "last write wins",
	})
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 3, updated["version"])
}

func TestCatalogEndpoints(t *testing.T) {
	srv := setupServer(t, "http://unused")

	status, body := doJSON(t, http.MethodGet, srv.URL+"/api/templates", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["count"])

	status, tpl := doJSON(t, http.MethodGet, srv.URL+"/api/templates/chat-app", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Chat App", tpl["title"])

	status, _ = doJSON(t, http.MethodGet, srv.URL+"/api/templates/nope", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = doJSON(t, http.MethodGet, srv.URL+"/api/patterns", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 5, body["count"])

	status, pat := doJSON(t, http.MethodGet, srv.URL+"/api/patterns/routing", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Routing Pattern", pat["title"])

	status, body = doJSON(t, http.MethodGet, srv.URL+"/api/filters", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "tasks")

	status, body = doJSON(t, http.MethodGet, srv.URL+"/api/learning-resources", nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["resources"])
}

func TestTestTokenEndpoint(t *testing.T) {
	gh := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Oauth-Scopes", "repo, workflow")
		fmt.Fprint(w, `{"login":"octo","name":"Octo Cat"}`)
	}))
	defer gh.Close()

	srv := setupServer(t, gh.URL)

	status, body := doJSON(t, http.MethodPost, srv.URL+"/api/github/test-token", map[string]any{
		"token": "gho_abc",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "octo", body["login"])
}

func TestAssignValidation(t *testing.T) {
	srv := setupServer(t, "http://unused")

	status, body := doJSON(t, http.MethodPost, srv.URL+"/api/templates/chat-app/assign", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "agent_id")

	// Missing vendor credentials surface as an error result, not a crash.
	status, result := doJSON(t, http.MethodPost, srv.URL+"/api/templates/chat-app/assign", map[string]any{
		"agent_id": "devin", "github_token": "t",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "error", result["status"])
	assert.Contains(t, result["message"], "Devin API key")
}

func TestSpecBreakdownFallback(t *testing.T) {
	srv := setupServer(t, "http://unused")

	_, spec := doJSON(t, http.MethodPost, srv.URL+"/api/specs", map[string]any{"title": "Fallback"})
	id := spec["id"].(string)

	status, body := doJSON(t, http.MethodPost, srv.URL+"/api/specs/"+id+"/breakdown", map[string]any{})
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 3, body["count"])
}

func TestConstitutionEndpoints(t *testing.T) {
	srv := setupServer(t, "http://unused")

	status, body := doJSON(t, http.MethodGet, srv.URL+"/api/constitution", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["articles"], 6)

	status, result := doJSON(t, http.MethodPost, srv.URL+"/api/specs/constitutional-validation", map[string]any{
		"plan":       "Use the existing framework library directly, expose a cli, write tests first with real integration coverage",
		"tech_stack": "Go",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, result, "is_compliant")
	assert.Contains(t, result, "gates_passed")
}

func TestProgressCancelAndHealth(t *testing.T) {
	srv := setupServer(t, "http://unused")

	status, body := doJSON(t, http.MethodPost, srv.URL+"/api/progress/job-9/cancel", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "cancelled", body["status"])

	status, body = doJSON(t, http.MethodGet, srv.URL+"/healthz", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	status, body = doJSON(t, http.MethodGet, srv.URL+"/api/logs", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "logs")
}

func TestSystemCheck(t *testing.T) {
	srv := setupServer(t, "http://unused")

	status, body := doJSON(t, http.MethodGet, srv.URL+"/api/specs/system-check", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["planner_ready"])
	assert.Contains(t, body, "azure_openai_configured")
}
