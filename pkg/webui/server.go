// Package webui exposes the platform's REST and SSE surface: the
// template/pattern catalog, the specification workflow, GitHub account
// endpoints, agent dispatch, and progress streaming. It serves JSON only;
// the SPA consuming it is built and hosted separately.
package webui

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aifoundry/pkg/catalog"
	"aifoundry/pkg/config"
	"aifoundry/pkg/dispatch"
	"aifoundry/pkg/github"
	"aifoundry/pkg/logx"
	"aifoundry/pkg/metrics"
	"aifoundry/pkg/persistence"
	"aifoundry/pkg/planner"
	"aifoundry/pkg/progress"
	"aifoundry/pkg/specstore"
)

// Server wires the HTTP surface to the domain services.
type Server struct {
	cfg        *config.Config
	catalog    *catalog.Store
	specs      *specstore.Store
	planner    *planner.Planner // nil when Azure OpenAI is not configured
	dispatcher *dispatch.Dispatcher
	broker     *progress.Broker
	history    *persistence.Store // nil when assignment history is disabled
	recorder   *metrics.Recorder
	logger     *logx.Logger
	ghOpts     []github.Option
}

// Option adjusts a Server, mainly for tests.
type Option func(*Server)

// WithGitHubOptions passes extra options to every GitHub client the
// server builds, e.g. a test API base.
func WithGitHubOptions(opts ...github.Option) Option {
	return func(s *Server) { s.ghOpts = opts }
}

// NewServer creates the web server. planner and history may be nil;
// the affected endpoints degrade instead of failing at startup.
func NewServer(cfg *config.Config, cat *catalog.Store, specs *specstore.Store,
	pln *planner.Planner, disp *dispatch.Dispatcher, broker *progress.Broker,
	history *persistence.Store, recorder *metrics.Recorder, opts ...Option) *Server {

	s := &Server{
		cfg:        cfg,
		catalog:    cat,
		specs:      specs,
		planner:    pln,
		dispatcher: disp,
		broker:     broker,
		history:    history,
		recorder:   recorder,
		logger:     logx.NewLogger("webui"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterRoutes sets up all HTTP routes.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	s.route(mux, "GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.route(mux, "GET /api/auth/github", s.handleAuthURL)
	s.route(mux, "POST /api/auth/github/callback", s.handleAuthCallback)
	s.route(mux, "POST /api/github/test-token", s.handleTestToken)

	s.route(mux, "GET /api/user/repositories", s.handleUserRepos)
	s.route(mux, "GET /api/user/repositories/search", s.handleRepoSearch)
	s.route(mux, "GET /api/user/assignments", s.handleAssignments)
	s.route(mux, "GET /api/user/assignments/{id}", s.handleAssignmentDetail)

	s.route(mux, "GET /api/templates", s.handleTemplates)
	s.route(mux, "GET /api/templates/featured", s.handleFeatured)
	s.route(mux, "GET /api/templates/{id}", s.handleTemplate)
	s.route(mux, "GET /api/filters", s.handleFilters)
	s.route(mux, "GET /api/patterns", s.handlePatterns)
	s.route(mux, "GET /api/patterns/{id}", s.handlePattern)
	s.route(mux, "GET /api/learning-resources", s.handleLearningResources)

	s.route(mux, "POST /api/templates/{id}/breakdown", s.handleTemplateBreakdown)
	s.route(mux, "POST /api/templates/{id}/assign", s.handleTemplateAssign)
	s.route(mux, "POST /api/templates/{id}/resume", s.handleTemplateResume)
	s.route(mux, "POST /api/patterns/{id}/assign", s.handleTemplateAssign)
	s.route(mux, "POST /api/patterns/{id}/resume", s.handleTemplateResume)

	s.route(mux, "GET /api/specs", s.handleSpecList)
	s.route(mux, "POST /api/specs", s.handleSpecCreate)
	s.route(mux, "GET /api/specs/system-check", s.handleSystemCheck)
	s.route(mux, "POST /api/specs/constitutional-validation", s.handleConstitutionalValidation)
	s.route(mux, "GET /api/specs/{id}", s.handleSpecGet)
	s.route(mux, "PUT /api/specs/{id}", s.handleSpecUpdate)
	s.route(mux, "GET /api/specs/{id}/versions", s.handleSpecVersions)
	s.route(mux, "POST /api/specs/{id}/specify", s.handleSpecify)
	s.route(mux, "POST /api/specs/{id}/plan", s.handlePlan)
	s.route(mux, "POST /api/specs/{id}/tasks", s.handleTasks)
	s.route(mux, "POST /api/specs/{id}/enhance", s.handleEnhance)
	s.route(mux, "POST /api/specs/{id}/breakdown", s.handleSpecBreakdown)
	s.route(mux, "POST /api/specs/{id}/assign", s.handleSpecAssign)
	s.route(mux, "POST /api/specs/{id}/resume", s.handleSpecResume)

	s.route(mux, "GET /api/constitution", s.handleConstitutionGet)
	s.route(mux, "PUT /api/constitution", s.handleConstitutionPut)

	s.route(mux, "GET /api/progress/{job}/stream", s.handleProgressStream)
	s.route(mux, "POST /api/progress/{job}/cancel", s.handleProgressCancel)
	s.route(mux, "GET /api/logs", s.handleLogs)
}

// route registers a handler with the request metrics middleware attached.
func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	path := pattern
	if i := strings.IndexByte(pattern, ' '); i >= 0 {
		path = pattern[i+1:]
	}
	var handler http.Handler = h
	if s.recorder != nil {
		handler = s.recorder.Middleware(path, handler)
	}
	mux.Handle(pattern, handler)
}

// recordPlanner counts one model call when metrics are enabled.
func (s *Server) recordPlanner(operation string, start time.Time, err error) {
	if s.recorder == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.recorder.RecordPlannerCall(operation, status, time.Since(start))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, format string, args ...any) {
	s.writeJSON(w, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return fmt.Errorf("empty request body")
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// bearerToken extracts the GitHub token from the Authorization header,
// accepting both the Bearer and token schemes.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	for _, scheme := range []string{"Bearer ", "bearer ", "token "} {
		if strings.HasPrefix(auth, scheme) {
			return strings.TrimSpace(strings.TrimPrefix(auth, scheme))
		}
	}
	return ""
}

// jobIDFrom correlates the request with an SSE progress stream. Clients
// pass the id they subscribed with in X-Progress-Job; absent that, a
// fresh id keeps the pipeline's publishes harmless.
func jobIDFrom(r *http.Request) string {
	if id := r.Header.Get("X-Progress-Job"); id != "" {
		return id
	}
	return uuid.NewString()
}

func (s *Server) githubClient(token string) *github.Client {
	return github.NewClient(token, s.ghOpts...)
}

// storeError maps spec store failures onto HTTP statuses.
func (s *Server) storeError(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		return
	case errors.Is(err, specstore.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "%s", err.Error())
	case errors.Is(err, specstore.ErrStaleVersion), errors.Is(err, specstore.ErrWrongPhase):
		s.writeError(w, http.StatusConflict, "%s", err.Error())
	default:
		s.writeError(w, http.StatusBadRequest, "%s", err.Error())
	}
}

// githubError passes upstream GitHub failures through with their status.
func (s *Server) githubError(w http.ResponseWriter, err error) {
	var apiErr *github.APIError
	if errors.As(err, &apiErr) {
		s.writeError(w, apiErr.StatusCode, "%s", apiErr.Error())
		return
	}
	s.writeError(w, http.StatusBadGateway, "%s", err.Error())
}
