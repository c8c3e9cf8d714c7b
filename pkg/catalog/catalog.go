// Package catalog serves the read-only template catalog and the fixed set
// of multi-agent patterns. Templates come from a flat JSON file produced by
// the catalog sync job; featured status is overlaid from a second file.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"aifoundry/pkg/logx"
)

// Sort orders accepted by Filter.
const (
	SortMostPopular = "Most Popular"
	SortMostRecent  = "Most Recent"
	SortMostForked  = "Most Forked"
)

// Template is one catalog entry describing a pre-built, forkable
// AI-solution repository.
type Template struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Languages   []string `json:"languages"`
	Models      []string `json:"models"`
	Databases   []string `json:"databases"`
	Collection  string   `json:"collection"`
	Task        string   `json:"task"`
	Pattern     string   `json:"pattern,omitempty"`
	GitHubURL   string   `json:"github_url"`
	ForkCount   int      `json:"fork_count"`
	StarCount   int      `json:"star_count"`
	IsFeatured  bool     `json:"is_featured"`
	Icon        string   `json:"icon"`
	CreatedAt   string   `json:"created_at,omitempty"`
}

// FilterOptions enumerates the distinct values present in the catalog for
// each filter dimension.
type FilterOptions struct {
	Tasks       []string `json:"tasks"`
	Languages   []string `json:"languages"`
	Collections []string `json:"collections"`
	Models      []string `json:"models"`
	Databases   []string `json:"databases"`
	Patterns    []string `json:"patterns"`
}

// Query holds the filter dimensions for a catalog listing.
type Query struct {
	Search     string
	Task       string
	Language   string
	Collection string
	Model      string
	Database   string
	Sort       string
}

// Store holds the loaded catalog. Templates are immutable after load.
type Store struct {
	templates []Template
	byID      map[string]Template
	logger    *logx.Logger
}

// Load reads the catalog file and the featured-URL overlay. A missing
// catalog file yields an empty store; invalid entries are skipped with a
// warning rather than failing the whole load.
func Load(catalogPath, featuredPath string) (*Store, error) {
	logger := logx.NewLogger("catalog")
	s := &Store{byID: make(map[string]Template), logger: logger}

	data, err := os.ReadFile(catalogPath)
	if os.IsNotExist(err) {
		logger.Warn("catalog file %s not found; serving empty catalog", catalogPath)
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	featured := make(map[string]bool)
	if fdata, err := os.ReadFile(featuredPath); err == nil {
		var urls []string
		if err := json.Unmarshal(fdata, &urls); err != nil {
			return nil, fmt.Errorf("failed to parse featured list: %w", err)
		}
		for _, u := range urls {
			featured[u] = true
		}
	}

	for i, entry := range raw {
		var t Template
		if err := json.Unmarshal(entry, &t); err != nil || t.ID == "" || t.GitHubURL == "" {
			logger.Warn("skipping invalid catalog entry %d", i)
			continue
		}
		if featured[t.GitHubURL] {
			t.IsFeatured = true
		}
		s.templates = append(s.templates, t)
		s.byID[t.ID] = t
	}

	logger.Info("loaded %d templates (%d featured)", len(s.templates), len(featured))
	return s, nil
}

// All returns every template in load order.
func (s *Store) All() []Template {
	out := make([]Template, len(s.templates))
	copy(out, s.templates)
	return out
}

// Get returns the template with the given id.
func (s *Store) Get(id string) (Template, bool) {
	t, ok := s.byID[id]
	return t, ok
}

// Featured returns templates flagged as featured.
func (s *Store) Featured() []Template {
	var out []Template
	for _, t := range s.templates {
		if t.IsFeatured {
			out = append(out, t)
		}
	}
	return out
}

// Filter applies the query's dimensions and sort order. An unrecognized
// sort value leaves catalog order intact.
func (s *Store) Filter(q Query) []Template {
	var out []Template
	for _, t := range s.templates {
		if q.Search != "" {
			needle := strings.ToLower(q.Search)
			if !strings.Contains(strings.ToLower(t.Title), needle) &&
				!strings.Contains(strings.ToLower(t.Description), needle) {
				continue
			}
		}
		if q.Task != "" && t.Task != q.Task && !contains(t.Tags, q.Task) {
			continue
		}
		if q.Language != "" && !contains(t.Languages, q.Language) {
			continue
		}
		if q.Collection != "" && t.Collection != q.Collection {
			continue
		}
		if q.Model != "" && !contains(t.Models, q.Model) {
			continue
		}
		if q.Database != "" && !contains(t.Databases, q.Database) {
			continue
		}
		out = append(out, t)
	}

	switch q.Sort {
	case SortMostPopular:
		sort.SliceStable(out, func(i, j int) bool { return out[i].StarCount > out[j].StarCount })
	case SortMostRecent:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	case SortMostForked:
		sort.SliceStable(out, func(i, j int) bool { return out[i].ForkCount > out[j].ForkCount })
	}
	return out
}

// Options computes the distinct filter values present in the catalog.
func (s *Store) Options() FilterOptions {
	tasks := make(map[string]bool)
	languages := make(map[string]bool)
	collections := make(map[string]bool)
	models := make(map[string]bool)
	databases := make(map[string]bool)
	patterns := make(map[string]bool)

	for _, t := range s.templates {
		if t.Task != "" {
			tasks[t.Task] = true
		}
		if t.Collection != "" {
			collections[t.Collection] = true
		}
		if t.Pattern != "" {
			patterns[t.Pattern] = true
		}
		for _, v := range t.Languages {
			languages[v] = true
		}
		for _, v := range t.Models {
			models[v] = true
		}
		for _, v := range t.Databases {
			databases[v] = true
		}
	}

	return FilterOptions{
		Tasks:       sortedKeys(tasks),
		Languages:   sortedKeys(languages),
		Collections: sortedKeys(collections),
		Models:      sortedKeys(models),
		Databases:   sortedKeys(databases),
		Patterns:    sortedKeys(patterns),
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
