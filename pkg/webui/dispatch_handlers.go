package webui

import (
	"net/http"
	"time"

	"aifoundry/pkg/config"
	"aifoundry/pkg/dispatch"
	"aifoundry/pkg/logx"
	"aifoundry/pkg/version"
)

// decodeDispatchRequest reads the assignment body and fills the GitHub
// token from the Authorization header when the body does not carry one.
func (s *Server) decodeDispatchRequest(w http.ResponseWriter, r *http.Request) (dispatch.Request, bool) {
	var req dispatch.Request
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "%s", err.Error())
		return req, false
	}
	if req.GitHubToken == "" {
		req.GitHubToken = bearerToken(r)
	}
	if req.AgentID == "" {
		s.writeError(w, http.StatusBadRequest, "agent_id is required")
		return req, false
	}
	// An operator-provisioned Devin key serves requests that carry none.
	if req.AgentID == dispatch.AgentDevin && req.APIKey == "" {
		req.APIKey = config.GetSecret(config.SecretDevinAPIKey)
	}
	return req, true
}

// handleTemplateAssign implements POST /api/templates/{id}/assign and
// POST /api/patterns/{id}/assign. Progress streams under the job id from
// X-Progress-Job; the final result is also the response body.
func (s *Server) handleTemplateAssign(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeDispatchRequest(w, r)
	if !ok {
		return
	}
	result := s.dispatcher.Assign(r.Context(), r.PathValue("id"), jobIDFrom(r), req)
	s.writeJSON(w, http.StatusOK, result)
}

// handleTemplateResume implements POST /api/templates/{id}/resume and
// POST /api/patterns/{id}/resume.
func (s *Server) handleTemplateResume(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeDispatchRequest(w, r)
	if !ok {
		return
	}
	result := s.dispatcher.Resume(r.Context(), r.PathValue("id"), jobIDFrom(r), req)
	s.writeJSON(w, http.StatusOK, result)
}

// handleSpecAssign implements POST /api/specs/{id}/assign. Breakdown mode
// (or an explicit task selection) dispatches the tasks sequentially and
// returns one result per task.
func (s *Server) handleSpecAssign(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeDispatchRequest(w, r)
	if !ok {
		return
	}
	specID := r.PathValue("id")
	jobID := jobIDFrom(r)

	if req.Mode == "breakdown" || len(req.SelectedTasks) > 0 {
		results := s.dispatcher.DispatchTasks(r.Context(), specID, jobID, req)
		s.writeJSON(w, http.StatusOK, map[string]any{"results": results, "count": len(results)})
		return
	}
	result := s.dispatcher.Assign(r.Context(), specID, jobID, req)
	s.writeJSON(w, http.StatusOK, result)
}

// handleSpecResume implements POST /api/specs/{id}/resume.
func (s *Server) handleSpecResume(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeDispatchRequest(w, r)
	if !ok {
		return
	}
	result := s.dispatcher.Resume(r.Context(), r.PathValue("id"), jobIDFrom(r), req)
	s.writeJSON(w, http.StatusOK, result)
}

// handleProgressStream implements GET /api/progress/{job}/stream.
func (s *Server) handleProgressStream(w http.ResponseWriter, r *http.Request) {
	if s.recorder != nil {
		done := s.recorder.SSEConnected()
		defer done()
	}
	s.broker.ServeStream(w, r, r.PathValue("job"))
}

// handleProgressCancel implements POST /api/progress/{job}/cancel.
func (s *Server) handleProgressCancel(w http.ResponseWriter, r *http.Request) {
	job := r.PathValue("job")
	s.broker.Cancel(job)
	s.logger.Info("job %s cancelled by client", job)
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "cancelled",
		"job":    job,
		"scope":  "best_effort",
	})
}

// handleLogs implements GET /api/logs over the in-memory ring buffer.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var since time.Time
	if raw := q.Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid since parameter (use RFC3339)")
			return
		}
		since = parsed
	}
	entries := logx.RecentEntries(q.Get("component"), since)
	s.writeJSON(w, http.StatusOK, map[string]any{"logs": entries, "count": len(entries)})
}

// handleHealth implements GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}
