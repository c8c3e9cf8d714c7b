// Package specstore persists Specifications and their phase workflow state
// in a flat JSON file. All mutations rewrite the file wholesale under a
// store-wide mutex, so concurrent writers serialize instead of racing.
package specstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"aifoundry/pkg/logx"
)

// Phases of the spec workflow, advancing strictly forward.
const (
	PhaseSpecification = "specification"
	PhasePlan          = "plan"
	PhaseTasks         = "tasks"
	PhaseCompleted     = "completed"
)

// Sentinel errors for callers to map onto HTTP statuses.
var (
	ErrNotFound     = errors.New("specification not found")
	ErrStaleVersion = errors.New("specification modified by another writer")
	ErrWrongPhase   = errors.New("operation not valid in current phase")
)

// TaskBreakdown is one actionable implementation task owned by a spec.
type TaskBreakdown struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	AcceptanceCriteria []string `json:"acceptanceCriteria,omitempty"`
	EstimatedTime      string   `json:"estimatedTime,omitempty"`
	EstimatedTokens    string   `json:"estimatedTokens,omitempty"`
	Priority           string   `json:"priority,omitempty"`
	Status             string   `json:"status,omitempty"`
}

// Spec is a persisted specification document and its workflow state.
type Spec struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Content       string          `json:"content"`
	Tags          []string        `json:"tags"`
	CreatedAt     string          `json:"created_at"`
	UpdatedAt     string          `json:"updated_at"`
	Phase         string          `json:"phase"`
	Specification string          `json:"specification,omitempty"`
	Plan          string          `json:"plan,omitempty"`
	Tasks         []TaskBreakdown `json:"tasks,omitempty"`
	BranchName    string          `json:"branch_name,omitempty"`
	FeatureNumber string          `json:"feature_number,omitempty"`
	Version       int             `json:"version"`
	Compliance    map[string]any  `json:"constitutional_compliance,omitempty"`
	TechStack     string          `json:"tech_stack,omitempty"`
	Architecture  string          `json:"architecture,omitempty"`
	Constraints   string          `json:"constraints,omitempty"`
}

// CreateRequest carries the writable fields for create and update.
type CreateRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	Tags        []string `json:"tags"`
}

// Store is a file-backed spec collection.
type Store struct {
	mu     sync.Mutex
	path   string
	specs  []Spec
	byID   map[string]int
	logger *logx.Logger
	now    func() time.Time
}

// Open loads the specs file in dataDir, creating the store empty when the
// file does not exist yet. Invalid entries are skipped with a warning.
func Open(dataDir string) (*Store, error) {
	s := &Store{
		path:   filepath.Join(dataDir, "specs.json"),
		byID:   make(map[string]int),
		logger: logx.NewLogger("specstore"),
		now:    time.Now,
	}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read specs file: %w", err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse specs file: %w", err)
	}
	for i, entry := range raw {
		var spec Spec
		if err := json.Unmarshal(entry, &spec); err != nil || spec.ID == "" {
			s.logger.Warn("skipping invalid spec entry %d", i)
			continue
		}
		if spec.Phase == "" {
			spec.Phase = PhaseSpecification
		}
		if spec.Version == 0 {
			spec.Version = 1
		}
		s.byID[spec.ID] = len(s.specs)
		s.specs = append(s.specs, spec)
	}

	s.logger.Info("loaded %d specs from %s", len(s.specs), s.path)
	return s, nil
}

// save rewrites the whole file. Caller holds s.mu.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.specs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal specs: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write specs file: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// List returns all specs in creation order.
func (s *Store) List() []Spec {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Spec, len(s.specs))
	copy(out, s.specs)
	return out
}

// Get returns the spec with the given id.
func (s *Store) Get(id string) (Spec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.byID[id]
	if !ok {
		return Spec{}, ErrNotFound
	}
	return s.specs[idx], nil
}

// Create inserts a new spec in the specification phase. The initial content
// doubles as the requirements text until specify replaces it.
func (s *Store) Create(req CreateRequest) (Spec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().Format(time.RFC3339)
	spec := Spec{
		ID:            uuid.NewString(),
		Title:         req.Title,
		Description:   req.Description,
		Content:       req.Content,
		Tags:          req.Tags,
		CreatedAt:     now,
		UpdatedAt:     now,
		Phase:         PhaseSpecification,
		Specification: req.Content,
		Version:       1,
	}
	s.byID[spec.ID] = len(s.specs)
	s.specs = append(s.specs, spec)

	if err := s.save(); err != nil {
		return Spec{}, err
	}
	return spec, nil
}

// Update replaces the writable fields of a spec. When expectedVersion is
// positive it must match the stored version, otherwise ErrStaleVersion is
// returned; a zero expectedVersion means last-write-wins.
func (s *Store) Update(id string, req CreateRequest, expectedVersion int) (Spec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.byID[id]
	if !ok {
		return Spec{}, ErrNotFound
	}
	spec := s.specs[idx]
	if expectedVersion > 0 && spec.Version != expectedVersion {
		return Spec{}, fmt.Errorf("%w: have %d, got %d", ErrStaleVersion, spec.Version, expectedVersion)
	}

	spec.Title = req.Title
	spec.Description = req.Description
	spec.Content = req.Content
	spec.Tags = req.Tags
	spec.UpdatedAt = s.now().Format(time.RFC3339)
	spec.Version++
	s.specs[idx] = spec

	if err := s.save(); err != nil {
		return Spec{}, err
	}
	return spec, nil
}

// mutate applies fn to the spec and persists the result. Caller's fn runs
// under the store lock.
func (s *Store) mutate(id string, fn func(*Spec) error) (Spec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.byID[id]
	if !ok {
		return Spec{}, ErrNotFound
	}
	spec := s.specs[idx]
	if err := fn(&spec); err != nil {
		return Spec{}, err
	}
	spec.UpdatedAt = s.now().Format(time.RFC3339)
	spec.Version++
	s.specs[idx] = spec

	if err := s.save(); err != nil {
		return Spec{}, err
	}
	return spec, nil
}

// CompleteSpecify stores the requirements, assigns the feature number and
// branch name, and advances the phase to plan.
func (s *Store) CompleteSpecify(id, requirements string) (Spec, error) {
	if strings.TrimSpace(requirements) == "" {
		return Spec{}, fmt.Errorf("requirements must not be empty")
	}
	return s.mutate(id, func(spec *Spec) error {
		if spec.Phase != PhaseSpecification {
			return fmt.Errorf("%w: specify requires phase %q, spec is in %q",
				ErrWrongPhase, PhaseSpecification, spec.Phase)
		}
		spec.Specification = requirements
		if spec.FeatureNumber == "" {
			spec.FeatureNumber = s.nextFeatureNumber()
			spec.BranchName = fmt.Sprintf("%s-%s", spec.FeatureNumber, Slugify(spec.Title))
		}
		spec.Phase = PhasePlan
		return nil
	})
}

// CompletePlan stores the plan text and advances the phase to tasks. The
// tech stack inputs are kept for later prompt construction.
func (s *Store) CompletePlan(id, plan, techStack, architecture, constraints string) (Spec, error) {
	return s.mutate(id, func(spec *Spec) error {
		if spec.Phase != PhasePlan {
			return fmt.Errorf("%w: plan requires phase %q, spec is in %q",
				ErrWrongPhase, PhasePlan, spec.Phase)
		}
		spec.Plan = plan
		spec.TechStack = techStack
		spec.Architecture = architecture
		spec.Constraints = constraints
		spec.Phase = PhaseTasks
		return nil
	})
}

// CompleteTasks stores the task breakdown and advances the phase to
// completed.
func (s *Store) CompleteTasks(id string, tasks []TaskBreakdown) (Spec, error) {
	return s.mutate(id, func(spec *Spec) error {
		if spec.Phase != PhaseTasks {
			return fmt.Errorf("%w: tasks requires phase %q, spec is in %q",
				ErrWrongPhase, PhaseTasks, spec.Phase)
		}
		spec.Tasks = tasks
		spec.Phase = PhaseCompleted
		return nil
	})
}

// SetCompliance attaches a constitutional check result to the spec.
func (s *Store) SetCompliance(id string, result map[string]any) (Spec, error) {
	return s.mutate(id, func(spec *Spec) error {
		spec.Compliance = result
		return nil
	})
}

// SetEnhancedContent replaces the content after model enhancement without
// touching the phase.
func (s *Store) SetEnhancedContent(id, content string) (Spec, error) {
	return s.mutate(id, func(spec *Spec) error {
		spec.Content = content
		return nil
	})
}

// UpdateTaskStatus sets the status of one task on a completed spec.
func (s *Store) UpdateTaskStatus(id, taskID, status string) (Spec, error) {
	return s.mutate(id, func(spec *Spec) error {
		for i := range spec.Tasks {
			if spec.Tasks[i].ID == taskID {
				spec.Tasks[i].Status = status
				return nil
			}
		}
		return fmt.Errorf("task %s not found on spec %s: %w", taskID, id, ErrNotFound)
	})
}

// nextFeatureNumber is the count of specs already promoted, plus one,
// zero-padded to three digits. Caller holds s.mu.
func (s *Store) nextFeatureNumber() string {
	n := 1
	for _, spec := range s.specs {
		if spec.FeatureNumber != "" {
			n++
		}
	}
	return fmt.Sprintf("%03d", n)
}

var slugRe = regexp.MustCompile(`[^a-z0-9-]+`)

// Slugify lowercases text and collapses non-alphanumerics into hyphens,
// truncated to 50 characters for branch-name use.
func Slugify(text string) string {
	slug := slugRe.ReplaceAllString(strings.ToLower(text), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 50 {
		slug = strings.Trim(slug[:50], "-")
	}
	return slug
}
