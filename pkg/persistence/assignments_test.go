package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "assignments.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndListAssignments(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.RecordAssignment(ctx, Assignment{
		UserID:        "42",
		UserLogin:     "octocat",
		ItemID:        "contoso-chat",
		ItemTitle:     "Contoso Chat",
		AgentID:       "devin",
		Status:        "success",
		RepositoryURL: "https://github.com/octocat/contoso-chat",
		SessionURL:    "https://app.devin.ai/sessions/abc",
		Customization: map[string]any{"company_name": "Contoso"},
		Result:        map[string]any{"session_id": "abc"},
		CreatedAt:     "2026-01-01T10:00:00Z",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	_, err = s.RecordAssignment(ctx, Assignment{
		UserID: "42", UserLogin: "octocat", ItemID: "spec-1", ItemTitle: "Order API",
		AgentID: "github-copilot", Status: "success", CreatedAt: "2026-01-02T10:00:00Z",
	})
	require.NoError(t, err)

	_, err = s.RecordAssignment(ctx, Assignment{
		UserID: "99", UserLogin: "other", ItemID: "x", ItemTitle: "X",
		AgentID: "devin", Status: "error",
	})
	require.NoError(t, err)

	list, err := s.UserAssignments(ctx, "42")
	require.NoError(t, err)
	require.Len(t, list, 2)
	// Newest first.
	assert.Equal(t, "github-copilot", list[0].AgentID)
	assert.Equal(t, "devin", list[1].AgentID)
	assert.Equal(t, "Contoso", list[1].Customization["company_name"])
}

func TestGetAssignmentScopedToUser(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a, err := s.RecordAssignment(ctx, Assignment{
		UserID: "42", UserLogin: "octocat", ItemID: "t", ItemTitle: "T",
		AgentID: "devin", Status: "success",
	})
	require.NoError(t, err)

	got, err := s.GetAssignment(ctx, a.ID, "42")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = s.GetAssignment(ctx, a.ID, "99")
	assert.ErrorIs(t, err, ErrAssignmentNotFound)
}

func TestSchemaReopenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "assignments.db")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.RecordAssignment(context.Background(), Assignment{
		UserID: "1", UserLogin: "a", ItemID: "i", ItemTitle: "I", AgentID: "devin", Status: "success",
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	list, err := s2.UserAssignments(context.Background(), "1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
