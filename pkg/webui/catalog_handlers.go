package webui

import (
	"net/http"

	"aifoundry/pkg/catalog"
)

// handleTemplates implements GET /api/templates with optional filters.
func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items := s.catalog.Filter(catalog.Query{
		Search:     q.Get("search"),
		Task:       q.Get("task"),
		Language:   q.Get("language"),
		Collection: q.Get("collection"),
		Model:      q.Get("model"),
		Database:   q.Get("database"),
		Sort:       q.Get("sort"),
	})
	s.writeJSON(w, http.StatusOK, map[string]any{"templates": items, "count": len(items)})
}

// handleFeatured implements GET /api/templates/featured.
func (s *Server) handleFeatured(w http.ResponseWriter, r *http.Request) {
	items := s.catalog.Featured()
	s.writeJSON(w, http.StatusOK, map[string]any{"templates": items, "count": len(items)})
}

// handleTemplate implements GET /api/templates/{id}.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, ok := s.catalog.Get(r.PathValue("id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "template not found")
		return
	}
	s.writeJSON(w, http.StatusOK, tpl)
}

// handleFilters implements GET /api/filters.
func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.catalog.Options())
}

// handlePatterns implements GET /api/patterns.
func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	items := catalog.Patterns()
	s.writeJSON(w, http.StatusOK, map[string]any{"patterns": items, "count": len(items)})
}

// handlePattern implements GET /api/patterns/{id}.
func (s *Server) handlePattern(w http.ResponseWriter, r *http.Request) {
	pat, ok := catalog.PatternByID(r.PathValue("id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "pattern not found")
		return
	}
	s.writeJSON(w, http.StatusOK, pat)
}

// handleLearningResources implements GET /api/learning-resources.
func (s *Server) handleLearningResources(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"resources": catalog.LearningResources()})
}
