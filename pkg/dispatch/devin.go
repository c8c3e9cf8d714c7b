package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Devin's sessions API rejects prompts over 30k characters; truncate with
// a buffer well before that.
const (
	devinPromptLimit   = 29000
	devinTruncateAt    = 28000
	devinTruncateNote  = "...\n\n[Content truncated due to prompt length limits]"
	devinClientTimeout = 30 * time.Second
)

// DevinSession is the vendor's session-creation response.
type DevinSession struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
	Status    string `json:"status"`
}

// DevinClient talks to the Devin REST API with a user-supplied key.
type DevinClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewDevinClient creates a client for the given API base and key.
func NewDevinClient(baseURL, apiKey string) *DevinClient {
	return &DevinClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: devinClientTimeout},
	}
}

// CreateSession starts a Devin session with the given prompt, truncating
// oversized prompts to fit the vendor limit.
func (d *DevinClient) CreateSession(ctx context.Context, prompt string) (*DevinSession, error) {
	if len(prompt) > devinPromptLimit {
		prompt = prompt[:devinTruncateAt] + devinTruncateNote
	}

	payload, err := json.Marshal(map[string]any{"prompt": prompt, "idempotent": true})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/v1/sessions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+d.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("devin request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var session DevinSession
		if err := json.Unmarshal(body, &session); err != nil {
			return nil, fmt.Errorf("failed to decode devin response: %w", err)
		}
		if session.Status == "" {
			session.Status = "created"
		}
		return &session, nil
	case http.StatusUnauthorized:
		return nil, fmt.Errorf("invalid Devin API key")
	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("Devin API rate limit exceeded, try again later")
	default:
		return nil, fmt.Errorf("Devin API error: %d - %s", resp.StatusCode, string(body))
	}
}

// UploadAttachment uploads a file to Devin's attachments API and returns
// the hosted file URL for use inside a session prompt.
func (d *DevinClient) UploadAttachment(ctx context.Context, filename, content string) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write([]byte(content)); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/v1/attachments", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+d.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("devin upload failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to upload attachment: %d - %s", resp.StatusCode, string(body))
	}
	// The API returns the bare URL, sometimes quoted.
	return strings.Trim(strings.TrimSpace(string(body)), `"`), nil
}
