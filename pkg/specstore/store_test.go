package specstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestCreateAndGet(t *testing.T) {
	s := newStore(t)
	spec, err := s.Create(CreateRequest{
		Title:       "Inventory bot",
		Description: "Agent that tracks inventory",
		Content:     "Track stock levels across warehouses",
		Tags:        []string{"agent"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, spec.ID)
	assert.Equal(t, PhaseSpecification, spec.Phase)
	assert.Equal(t, 1, spec.Version)
	assert.Equal(t, spec.Content, spec.Specification)

	got, err := s.Get(spec.ID)
	require.NoError(t, err)
	assert.Equal(t, spec, got)

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	spec, err := s.Create(CreateRequest{Title: "Keep me", Content: "content"})
	require.NoError(t, err)

	reopened, err := Open(dir)
	require.NoError(t, err)
	got, err := reopened.Get(spec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Keep me", got.Title)
	assert.Equal(t, PhaseSpecification, got.Phase)
}

func TestUpdateOptimisticVersion(t *testing.T) {
	s := newStore(t)
	spec, err := s.Create(CreateRequest{Title: "v1", Content: "c"})
	require.NoError(t, err)

	updated, err := s.Update(spec.ID, CreateRequest{Title: "v2", Content: "c"}, spec.Version)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)

	// Stale writer carrying the old version is rejected.
	_, err = s.Update(spec.ID, CreateRequest{Title: "v3", Content: "c"}, spec.Version)
	assert.ErrorIs(t, err, ErrStaleVersion)

	// Zero version means last-write-wins.
	lww, err := s.Update(spec.ID, CreateRequest{Title: "v3", Content: "c"}, 0)
	require.NoError(t, err)
	assert.Equal(t, "v3", lww.Title)
	assert.Equal(t, 3, lww.Version)
}

func TestPhaseAdvancesForwardOnly(t *testing.T) {
	s := newStore(t)
	spec, err := s.Create(CreateRequest{Title: "Order Tracker API", Content: "c"})
	require.NoError(t, err)

	// Plan before specify is rejected.
	_, err = s.CompletePlan(spec.ID, "plan", "Go", "", "")
	assert.ErrorIs(t, err, ErrWrongPhase)

	spec, err = s.CompleteSpecify(spec.ID, "Build an order tracker")
	require.NoError(t, err)
	assert.Equal(t, PhasePlan, spec.Phase)
	assert.Equal(t, "001", spec.FeatureNumber)
	assert.Equal(t, "001-order-tracker-api", spec.BranchName)

	// Repeating specify after advancing is rejected.
	_, err = s.CompleteSpecify(spec.ID, "again")
	assert.ErrorIs(t, err, ErrWrongPhase)

	// Tasks before plan is rejected.
	_, err = s.CompleteTasks(spec.ID, nil)
	assert.ErrorIs(t, err, ErrWrongPhase)

	spec, err = s.CompletePlan(spec.ID, "# Plan", "Go", "hexagonal", "")
	require.NoError(t, err)
	assert.Equal(t, PhaseTasks, spec.Phase)

	spec, err = s.CompleteTasks(spec.ID, []TaskBreakdown{
		{ID: "task-1", Title: "Implement API", Priority: "high", Status: "pending"},
	})
	require.NoError(t, err)
	assert.Equal(t, PhaseCompleted, spec.Phase)
	require.Len(t, spec.Tasks, 1)
}

func TestSpecifyRequiresNonEmptyRequirements(t *testing.T) {
	s := newStore(t)
	spec, err := s.Create(CreateRequest{Title: "t", Content: "c"})
	require.NoError(t, err)

	_, err = s.CompleteSpecify(spec.ID, "   ")
	assert.Error(t, err)
}

func TestFeatureNumberIncrements(t *testing.T) {
	s := newStore(t)
	a, _ := s.Create(CreateRequest{Title: "First", Content: "c"})
	b, _ := s.Create(CreateRequest{Title: "Second", Content: "c"})

	a, err := s.CompleteSpecify(a.ID, "reqs")
	require.NoError(t, err)
	b, err = s.CompleteSpecify(b.ID, "reqs")
	require.NoError(t, err)

	assert.Equal(t, "001", a.FeatureNumber)
	assert.Equal(t, "002", b.FeatureNumber)
}

func TestUpdateTaskStatus(t *testing.T) {
	s := newStore(t)
	spec, _ := s.Create(CreateRequest{Title: "t", Content: "c"})
	spec, err := s.CompleteSpecify(spec.ID, "reqs")
	require.NoError(t, err)
	spec, err = s.CompletePlan(spec.ID, "plan", "", "", "")
	require.NoError(t, err)
	spec, err = s.CompleteTasks(spec.ID, []TaskBreakdown{
		{ID: "task-1", Status: "pending"},
		{ID: "task-2", Status: "pending"},
	})
	require.NoError(t, err)

	spec, err = s.UpdateTaskStatus(spec.ID, "task-2", "assigned")
	require.NoError(t, err)
	assert.Equal(t, "pending", spec.Tasks[0].Status)
	assert.Equal(t, "assigned", spec.Tasks[1].Status)

	_, err = s.UpdateTaskStatus(spec.ID, "task-9", "assigned")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "order-tracker-api", Slugify("Order Tracker API"))
	assert.Equal(t, "hello-world", Slugify("  Hello, World!  "))
	long := Slugify("this is a very long specification title that should be truncated somewhere")
	assert.LessOrEqual(t, len(long), 50)
}
