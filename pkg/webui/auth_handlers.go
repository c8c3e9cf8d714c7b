package webui

import (
	"errors"
	"net/http"
	"strconv"

	"aifoundry/pkg/config"
	"aifoundry/pkg/persistence"
)

// handleAuthURL implements GET /api/auth/github.
func (s *Server) handleAuthURL(w http.ResponseWriter, r *http.Request) {
	if s.cfg.GitHubOAuth.ClientID == "" {
		s.writeError(w, http.StatusServiceUnavailable, "GitHub OAuth is not configured")
		return
	}
	url := s.githubClient("").AuthURL(s.cfg.GitHubOAuth.ClientID, s.cfg.GitHubOAuth.RedirectURI)
	s.writeJSON(w, http.StatusOK, map[string]string{"auth_url": url})
}

// handleAuthCallback implements POST /api/auth/github/callback.
func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, "%s", err.Error())
		return
	}
	clientSecret := config.GetSecret(config.SecretGitHubClientSecret)
	if s.cfg.GitHubOAuth.ClientID == "" || clientSecret == "" {
		s.writeError(w, http.StatusServiceUnavailable, "GitHub OAuth is not configured")
		return
	}

	result, err := s.githubClient("").ExchangeCode(r.Context(), s.cfg.GitHubOAuth.ClientID, clientSecret, body.Code)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "%s", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handleTestToken implements POST /api/github/test-token. The token comes
// from the body or the Authorization header; an invalid token yields a
// 200 with ok=false so the UI can show the reason.
func (s *Server) handleTestToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	_ = decodeJSON(r, &body)
	token := body.Token
	if token == "" {
		token = bearerToken(r)
	}
	if token == "" {
		s.writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	info, err := s.githubClient(token).ValidateToken(r.Context())
	if err != nil {
		s.githubError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

// handleUserRepos implements GET /api/user/repositories.
func (s *Server) handleUserRepos(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		s.writeError(w, http.StatusUnauthorized, "GitHub token is required")
		return
	}
	q := r.URL.Query()
	repos, err := s.githubClient(token).ListUserRepos(r.Context(),
		q.Get("sort"), q.Get("direction"), intParam(q.Get("per_page"), 30), intParam(q.Get("page"), 1))
	if err != nil {
		s.githubError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"repositories": repos})
}

// handleRepoSearch implements GET /api/user/repositories/search.
func (s *Server) handleRepoSearch(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		s.writeError(w, http.StatusUnauthorized, "GitHub token is required")
		return
	}
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		s.writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}
	repos, err := s.githubClient(token).SearchUserRepos(r.Context(),
		query, q.Get("sort"), q.Get("order"), intParam(q.Get("per_page"), 30), intParam(q.Get("page"), 1))
	if err != nil {
		s.githubError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"repositories": repos})
}

// handleAssignments implements GET /api/user/assignments.
func (s *Server) handleAssignments(w http.ResponseWriter, r *http.Request) {
	login, ok := s.identify(w, r)
	if !ok {
		return
	}
	if s.history == nil {
		s.writeJSON(w, http.StatusOK, map[string]any{"assignments": []persistence.Assignment{}})
		return
	}
	assignments, err := s.history.UserAssignments(r.Context(), login)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to load assignments: %s", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"assignments": assignments})
}

// handleAssignmentDetail implements GET /api/user/assignments/{id}.
func (s *Server) handleAssignmentDetail(w http.ResponseWriter, r *http.Request) {
	login, ok := s.identify(w, r)
	if !ok {
		return
	}
	if s.history == nil {
		s.writeError(w, http.StatusNotFound, "assignment history is disabled")
		return
	}
	assignment, err := s.history.GetAssignment(r.Context(), r.PathValue("id"), login)
	if err != nil {
		if errors.Is(err, persistence.ErrAssignmentNotFound) {
			s.writeError(w, http.StatusNotFound, "assignment not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "%s", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, assignment)
}

// identify resolves the Bearer token to a GitHub login, writing the
// error response itself when that fails.
func (s *Server) identify(w http.ResponseWriter, r *http.Request) (string, bool) {
	token := bearerToken(r)
	if token == "" {
		s.writeError(w, http.StatusUnauthorized, "GitHub token is required")
		return "", false
	}
	user, err := s.githubClient(token).AuthenticatedUser(r.Context())
	if err != nil {
		s.githubError(w, err)
		return "", false
	}
	return user.Login, true
}

func intParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
