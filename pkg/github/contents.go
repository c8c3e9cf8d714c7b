package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// ContentEntry is one item from the contents listing.
type ContentEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
}

// TreeEntry is one object in a git tree.
type TreeEntry struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
	Size int64  `json:"size"`
}

// CopyProgress reports contents-copy advancement for the progress relay.
type CopyProgress struct {
	Copied int `json:"copied"`
	Total  int `json:"total"`
}

// PutFile creates or updates a file through the contents API. Content is
// plain text; encoding happens here.
func (c *Client) PutFile(ctx context.Context, owner, repo, path, message, content string) error {
	body := map[string]string{
		"message": message,
		"content": base64.StdEncoding.EncodeToString([]byte(content)),
	}
	return c.put(ctx, fmt.Sprintf("/repos/%s/%s/contents/%s", owner, repo, escapePath(path)), body, nil)
}

// getTree fetches the full recursive tree of the repo's default branch.
func (c *Client) getTree(ctx context.Context, owner, repo, branch string) ([]TreeEntry, error) {
	var result struct {
		Tree      []TreeEntry `json:"tree"`
		Truncated bool        `json:"truncated"`
	}
	path := fmt.Sprintf("/repos/%s/%s/git/trees/%s?recursive=1", owner, repo, url.PathEscape(branch))
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	return result.Tree, nil
}

// getBlob fetches a blob's raw bytes.
func (c *Client) getBlob(ctx context.Context, owner, repo, sha string) ([]byte, error) {
	var blob struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	if err := c.get(ctx, fmt.Sprintf("/repos/%s/%s/git/blobs/%s", owner, repo, sha), &blob); err != nil {
		return nil, err
	}
	if blob.Encoding != "base64" {
		return []byte(blob.Content), nil
	}
	return base64.StdEncoding.DecodeString(strings.ReplaceAll(blob.Content, "\n", ""))
}

// CopyContents replicates every blob of the source repo's default branch
// into the target repo file by file. progress, when non-nil, receives a
// counter after each copied file; cancel, when non-nil, is polled between
// files and aborts the copy early.
func (c *Client) CopyContents(ctx context.Context, srcOwner, srcRepo, dstOwner, dstRepo string,
	progress func(CopyProgress), cancel func() bool) error {
	src, err := c.GetRepo(ctx, srcOwner, srcRepo)
	if err != nil {
		return fmt.Errorf("failed to resolve source repo: %w", err)
	}
	branch := src.DefaultBranch
	if branch == "" {
		branch = "main"
	}

	tree, err := c.getTree(ctx, srcOwner, srcRepo, branch)
	if err != nil {
		return fmt.Errorf("failed to list source tree: %w", err)
	}

	var blobs []TreeEntry
	for _, entry := range tree {
		if entry.Type == "blob" {
			blobs = append(blobs, entry)
		}
	}

	copied := 0
	for _, entry := range blobs {
		if cancel != nil && cancel() {
			return fmt.Errorf("copy cancelled after %d of %d files", copied, len(blobs))
		}
		data, err := c.getBlob(ctx, srcOwner, srcRepo, entry.SHA)
		if err != nil {
			return fmt.Errorf("failed to fetch %s: %w", entry.Path, err)
		}
		body := map[string]string{
			"message": "Copy " + entry.Path,
			"content": base64.StdEncoding.EncodeToString(data),
		}
		path := fmt.Sprintf("/repos/%s/%s/contents/%s", dstOwner, dstRepo, escapePath(entry.Path))
		if err := c.put(ctx, path, body, nil); err != nil {
			return fmt.Errorf("failed to write %s: %w", entry.Path, err)
		}
		copied++
		if progress != nil {
			progress(CopyProgress{Copied: copied, Total: len(blobs)})
		}
	}
	return nil
}

// escapePath escapes each path segment while keeping separators.
func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
