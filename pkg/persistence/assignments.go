package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrAssignmentNotFound reports a missing assignment row.
var ErrAssignmentNotFound = errors.New("assignment not found")

// Assignment is one recorded agent dispatch.
type Assignment struct {
	ID            string         `json:"id"`
	UserID        string         `json:"user_id"`
	UserLogin     string         `json:"user_login"`
	ItemID        string         `json:"item_id"`
	ItemTitle     string         `json:"item_title"`
	AgentID       string         `json:"agent_id"`
	Status        string         `json:"status"`
	RepositoryURL string         `json:"repository_url,omitempty"`
	SessionURL    string         `json:"session_url,omitempty"`
	IssueURL      string         `json:"issue_url,omitempty"`
	Customization map[string]any `json:"customization,omitempty"`
	Result        map[string]any `json:"result,omitempty"`
	CreatedAt     string         `json:"created_at"`
}

// RecordAssignment inserts a new assignment row, assigning id and
// timestamp when absent.
func (s *Store) RecordAssignment(ctx context.Context, a Assignment) (Assignment, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt == "" {
		a.CreatedAt = time.Now().Format(time.RFC3339)
	}

	customization, err := json.Marshal(a.Customization)
	if err != nil {
		return Assignment{}, fmt.Errorf("failed to encode customization: %w", err)
	}
	result, err := json.Marshal(a.Result)
	if err != nil {
		return Assignment{}, fmt.Errorf("failed to encode result: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO assignments
			(id, user_id, user_login, item_id, item_title, agent_id, status,
			 repository_url, session_url, issue_url, customization, result, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.UserLogin, a.ItemID, a.ItemTitle, a.AgentID, a.Status,
		a.RepositoryURL, a.SessionURL, a.IssueURL, string(customization), string(result), a.CreatedAt,
	)
	if err != nil {
		return Assignment{}, fmt.Errorf("failed to insert assignment: %w", err)
	}
	s.logger.Info("recorded %s assignment %s for %s", a.AgentID, a.ID, a.UserLogin)
	return a, nil
}

// UserAssignments returns the user's assignments, newest first.
func (s *Store) UserAssignments(ctx context.Context, userID string) ([]Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, user_login, item_id, item_title, agent_id, status,
		       repository_url, session_url, issue_url, customization, result, created_at
		FROM assignments WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetAssignment returns one assignment, scoped to the owning user.
func (s *Store) GetAssignment(ctx context.Context, assignmentID, userID string) (Assignment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, user_login, item_id, item_title, agent_id, status,
		       repository_url, session_url, issue_url, customization, result, created_at
		FROM assignments WHERE id = ? AND user_id = ?`, assignmentID, userID)

	a, err := scanAssignment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Assignment{}, ErrAssignmentNotFound
	}
	if err != nil {
		return Assignment{}, err
	}
	return a, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssignment(row rowScanner) (Assignment, error) {
	var a Assignment
	var customization, result string
	err := row.Scan(&a.ID, &a.UserID, &a.UserLogin, &a.ItemID, &a.ItemTitle, &a.AgentID,
		&a.Status, &a.RepositoryURL, &a.SessionURL, &a.IssueURL, &customization, &result, &a.CreatedAt)
	if err != nil {
		return Assignment{}, err
	}
	if customization != "" && customization != "null" {
		if err := json.Unmarshal([]byte(customization), &a.Customization); err != nil {
			return Assignment{}, fmt.Errorf("failed to decode customization: %w", err)
		}
	}
	if result != "" && result != "null" {
		if err := json.Unmarshal([]byte(result), &a.Result); err != nil {
			return Assignment{}, fmt.Errorf("failed to decode result: %w", err)
		}
	}
	return a, nil
}
