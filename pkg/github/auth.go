package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// OAuthScope is the scope set requested during the OAuth flow.
const OAuthScope = "repo,workflow,admin:repo_hook,public_repo"

// AuthURL builds the GitHub authorization URL for the OAuth app.
func (c *Client) AuthURL(clientID, redirectURI string) string {
	return fmt.Sprintf("%s/login/oauth/authorize?client_id=%s&redirect_uri=%s&scope=%s",
		c.oauthBase, url.QueryEscape(clientID), url.QueryEscape(redirectURI), url.QueryEscape(OAuthScope))
}

// OAuthUser is the user profile returned after the OAuth exchange.
type OAuthUser struct {
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

// OAuthResult carries the access token and profile from ExchangeCode.
type OAuthResult struct {
	AccessToken string    `json:"access_token"`
	User        OAuthUser `json:"user"`
}

// ExchangeCode trades an OAuth authorization code for an access token and
// fetches the user profile it grants.
func (c *Client) ExchangeCode(ctx context.Context, clientID, clientSecret, code string) (*OAuthResult, error) {
	if code == "" {
		return nil, fmt.Errorf("no authorization code provided")
	}

	form := url.Values{}
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)
	form.Set("code", code)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.oauthBase+"/login/oauth/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to exchange code for token: status %d", resp.StatusCode)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("no access token received")
	}

	userClient := NewClient(tokenResp.AccessToken,
		WithAPIBase(c.apiBase), WithOAuthBase(c.oauthBase), WithHTTPClient(c.httpClient))
	var user OAuthUser
	if err := userClient.get(ctx, "/user", &user); err != nil {
		return nil, fmt.Errorf("failed to fetch user profile: %w", err)
	}

	return &OAuthResult{AccessToken: tokenResp.AccessToken, User: user}, nil
}

// TokenInfo is the result of a personal-access-token validation.
type TokenInfo struct {
	OK     bool              `json:"ok"`
	Login  string            `json:"login,omitempty"`
	Name   string            `json:"name,omitempty"`
	Scopes []string          `json:"scopes,omitempty"`
	Rate   map[string]string `json:"rate,omitempty"`
	Status int               `json:"status,omitempty"`
	Reason string            `json:"error,omitempty"`
}

// ValidateToken checks the client's token against /user. Classic tokens
// use the "token" scheme; fine-grained tokens only accept Bearer, so a 401
// retries with the Bearer scheme before giving up.
func (c *Client) ValidateToken(ctx context.Context) (*TokenInfo, error) {
	if c.token == "" {
		return &TokenInfo{OK: false, Reason: "No token provided"}, nil
	}

	resp, err := c.userRequest(ctx, "token "+c.token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		resp, err = c.userRequest(ctx, "Bearer "+c.token)
		if err != nil {
			return nil, err
		}
	}
	defer resp.Body.Close()

	info := &TokenInfo{
		Rate: map[string]string{
			"limit":     resp.Header.Get("X-Ratelimit-Limit"),
			"remaining": resp.Header.Get("X-Ratelimit-Remaining"),
			"reset":     resp.Header.Get("X-Ratelimit-Reset"),
		},
	}
	for _, s := range strings.Split(resp.Header.Get("X-Oauth-Scopes"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			info.Scopes = append(info.Scopes, s)
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		info.Status = resp.StatusCode
		info.Reason = string(body)
		return info, nil
	}

	var user OAuthUser
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("failed to decode user response: %w", err)
	}
	info.OK = true
	info.Login = user.Login
	info.Name = user.Name
	return info, nil
}

func (c *Client) userRequest(ctx context.Context, authHeader string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Authorization", authHeader)
	return c.httpClient.Do(req)
}
