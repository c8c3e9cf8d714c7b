package webui

import (
	"encoding/json"
	"net/http"
	"time"

	"aifoundry/pkg/config"
	"aifoundry/pkg/constitution"
	"aifoundry/pkg/planner"
	"aifoundry/pkg/specstore"
)

// handleSpecList implements GET /api/specs.
func (s *Server) handleSpecList(w http.ResponseWriter, r *http.Request) {
	specs := s.specs.List()
	s.writeJSON(w, http.StatusOK, map[string]any{"specs": specs, "count": len(specs)})
}

// handleSpecCreate implements POST /api/specs.
func (s *Server) handleSpecCreate(w http.ResponseWriter, r *http.Request) {
	var req specstore.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "%s", err.Error())
		return
	}
	if req.Title == "" {
		s.writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	spec, err := s.specs.Create(req)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, spec)
}

// handleSpecGet implements GET /api/specs/{id}.
func (s *Server) handleSpecGet(w http.ResponseWriter, r *http.Request) {
	spec, err := s.specs.Get(r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, spec)
}

// handleSpecUpdate implements PUT /api/specs/{id}. A version in the body
// enables the optimistic concurrency check; zero means last write wins.
func (s *Server) handleSpecUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		specstore.CreateRequest
		Version int `json:"version"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "%s", err.Error())
		return
	}
	spec, err := s.specs.Update(r.PathValue("id"), req.CreateRequest, req.Version)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, spec)
}

// handleSpecVersions implements GET /api/specs/{id}/versions. The store
// keeps the current revision only, so the history has one entry.
func (s *Server) handleSpecVersions(w http.ResponseWriter, r *http.Request) {
	spec, err := s.specs.Get(r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"versions": []map[string]any{
			{"version": spec.Version, "updated_at": spec.UpdatedAt, "phase": spec.Phase},
		},
	})
}

// handleSpecify implements POST /api/specs/{id}/specify.
func (s *Server) handleSpecify(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Requirements string `json:"requirements"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, "%s", err.Error())
		return
	}
	spec, err := s.specs.CompleteSpecify(r.PathValue("id"), body.Requirements)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, spec)
}

// handlePlan implements POST /api/specs/{id}/plan. The plan text comes
// from the model when one is configured, with a deterministic fallback.
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TechStack    string `json:"tech_stack"`
		Architecture string `json:"architecture"`
		Constraints  string `json:"constraints"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, "%s", err.Error())
		return
	}

	spec, err := s.specs.Get(r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return
	}

	plan := ""
	if s.planner != nil {
		start := time.Now()
		plan, err = s.planner.GeneratePlan(r.Context(), spec, body.TechStack, body.Architecture, body.Constraints)
		s.recordPlanner("plan", start, err)
		if err != nil {
			s.writeError(w, http.StatusBadGateway, "%s", err.Error())
			return
		}
	} else {
		plan = fallbackPlan(spec, body.TechStack, body.Architecture)
	}

	updated, err := s.specs.CompletePlan(spec.ID, plan, body.TechStack, body.Architecture, body.Constraints)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

// handleTasks implements POST /api/specs/{id}/tasks: break the spec down
// and advance the phase to completed.
func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	var req planner.BreakdownRequest
	_ = decodeJSON(r, &req)

	spec, err := s.specs.Get(r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return
	}

	tasks := s.breakdown(r, spec, req)
	updated, err := s.specs.CompleteTasks(spec.ID, tasks)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

// handleEnhance implements POST /api/specs/{id}/enhance.
func (s *Server) handleEnhance(w http.ResponseWriter, r *http.Request) {
	if s.planner == nil {
		s.writeError(w, http.StatusServiceUnavailable, "AI service is not configured")
		return
	}
	spec, err := s.specs.Get(r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	start := time.Now()
	content, err := s.planner.Enhance(r.Context(), spec)
	s.recordPlanner("enhance", start, err)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, "%s", err.Error())
		return
	}
	updated, err := s.specs.SetEnhancedContent(spec.ID, content)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"content": content, "spec": updated})
}

// handleSpecBreakdown implements POST /api/specs/{id}/breakdown. It
// returns tasks without touching the phase machine; stream=true switches
// to NDJSON with one task per line.
func (s *Server) handleSpecBreakdown(w http.ResponseWriter, r *http.Request) {
	var body struct {
		planner.BreakdownRequest
		Stream bool `json:"stream"`
	}
	_ = decodeJSON(r, &body)

	spec, err := s.specs.Get(r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.serveBreakdown(w, r, spec, body.BreakdownRequest, body.Stream)
}

// handleTemplateBreakdown implements POST /api/templates/{id}/breakdown.
func (s *Server) handleTemplateBreakdown(w http.ResponseWriter, r *http.Request) {
	var body struct {
		planner.BreakdownRequest
		Stream bool `json:"stream"`
	}
	_ = decodeJSON(r, &body)

	tpl, ok := s.catalog.Get(r.PathValue("id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "template not found")
		return
	}
	spec := specstore.Spec{
		ID:          tpl.ID,
		Title:       tpl.Title,
		Description: tpl.Description,
		Tags:        tpl.Tags,
		Content:     tpl.Description,
	}
	s.serveBreakdown(w, r, spec, body.BreakdownRequest, body.Stream)
}

// serveBreakdown produces the task list as one JSON document or an
// NDJSON stream.
func (s *Server) serveBreakdown(w http.ResponseWriter, r *http.Request,
	spec specstore.Spec, req planner.BreakdownRequest, stream bool) {

	if !stream {
		tasks := s.breakdown(r, spec, req)
		s.writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks, "count": len(tasks)})
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	emit := func(task specstore.TaskBreakdown) {
		if err := enc.Encode(task); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	if s.planner == nil {
		for _, task := range fallbackTasks(spec) {
			emit(task)
		}
		return
	}
	start := time.Now()
	_, err := s.planner.StreamBreakdown(r.Context(), spec, req, emit)
	s.recordPlanner("breakdown-stream", start, err)
	if err != nil {
		s.logger.Error("streaming breakdown failed for %s: %v", spec.ID, err)
		for _, task := range fallbackTasks(spec) {
			emit(task)
		}
	}
}

// breakdown returns model-produced tasks, falling back to a canned set
// when no model is configured or it yields nothing parseable.
func (s *Server) breakdown(r *http.Request, spec specstore.Spec, req planner.BreakdownRequest) []specstore.TaskBreakdown {
	if s.planner != nil {
		start := time.Now()
		tasks, err := s.planner.BreakdownTasks(r.Context(), spec, req)
		s.recordPlanner("breakdown", start, err)
		if err == nil {
			return tasks
		}
		s.logger.Warn("breakdown failed for %s, using fallback tasks: %v", spec.ID, err)
	}
	return fallbackTasks(spec)
}

// handleSystemCheck implements GET /api/specs/system-check.
func (s *Server) handleSystemCheck(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"azure_openai_configured": s.cfg.AzureOpenAI.Endpoint != "" && config.GetSecret(config.SecretAzureOpenAIKey) != "",
		"planner_ready":           s.planner != nil,
		"github_oauth_configured": s.cfg.GitHubOAuth.ClientID != "" && config.GetSecret(config.SecretGitHubClientSecret) != "",
		"devin_api_base":          s.cfg.DevinAPIBase,
		"assignment_history":      s.history != nil,
	})
}

// handleConstitutionalValidation implements
// POST /api/specs/constitutional-validation. When a spec_id is supplied
// the result is stored on the spec.
func (s *Server) handleConstitutionalValidation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		constitution.ValidationRequest
		SpecID string `json:"spec_id"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, "%s", err.Error())
		return
	}

	result := constitution.ValidatePlan(body.ValidationRequest)
	if body.SpecID != "" {
		if _, err := s.specs.SetCompliance(body.SpecID, asMap(result)); err != nil {
			s.storeError(w, err)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handleConstitutionGet implements GET /api/constitution.
func (s *Server) handleConstitutionGet(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"articles": constitution.Articles()})
}

// handleConstitutionPut implements PUT /api/constitution. The article set
// is fixed; updates are acknowledged and logged for review.
func (s *Server) handleConstitutionPut(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, "%s", err.Error())
		return
	}
	s.logger.Info("constitution update submitted (%d bytes)", len(body.Content))
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func asMap(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}
