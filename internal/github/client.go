package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// NewClient creates a new GitHub client.
func NewClient(token string) *Client {
	return &Client{
		Token:   token,
		BaseURL: DefaultAPIEndpoint,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// WithHTTPClient returns a new client with a custom HTTP client.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	return &Client{
		Token:      c.Token,
		BaseURL:    c.BaseURL,
		HTTPClient: httpClient,
	}
}

// WithBaseURL returns a new client with a custom base URL (for testing
// or GitHub Enterprise).
func (c *Client) WithBaseURL(baseURL string) *Client {
	return &Client{
		Token:      c.Token,
		BaseURL:    baseURL,
		HTTPClient: c.HTTPClient,
	}
}

// buildURL constructs a full API URL.
func (c *Client) buildURL(path string, params map[string]string) string {
	u := c.BaseURL + path

	if len(params) > 0 {
		values := url.Values{}
		for k, v := range params {
			values.Set(k, v)
		}
		u += "?" + values.Encode()
	}

	return u
}

// doRequest performs an HTTP request with authentication and retry.
// Transient failures (network errors, rate limiting, 5xx) are retried
// on an exponential backoff schedule; a Retry-After header from rate
// limiting overrides the computed delay. Non-2xx responses that are
// not transient return an *APIError.
func (c *Client) doRequest(ctx context.Context, method, urlStr string, body interface{}) ([]byte, http.Header, error) {
	var jsonBody []byte
	if body != nil {
		var err error
		jsonBody, err = json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.MaxElapsedTime = 0 // bounded by MaxRetries, not wall clock

	var lastErr error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		var reqBody io.Reader
		if jsonBody != nil {
			reqBody = bytes.NewReader(jsonBody)
		}

		req, err := http.NewRequestWithContext(ctx, method, urlStr, reqBody)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+c.Token)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed (attempt %d/%d): %w", attempt+1, MaxRetries+1, err)
			if !sleep(ctx, policy.NextBackOff()) {
				return nil, nil, ctx.Err()
			}
			continue
		}

		const maxResponseSize = 50 * 1024 * 1024
		respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		_ = resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response (attempt %d/%d): %w", attempt+1, MaxRetries+1, err)
			if !sleep(ctx, policy.NextBackOff()) {
				return nil, nil, ctx.Err()
			}
			continue
		}

		// Rate limiting: GitHub uses 429, or 403 with X-RateLimit-Remaining: 0.
		if resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0") {
			delay := policy.NextBackOff()
			if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
				if seconds, err := strconv.Atoi(retryAfter); err == nil {
					delay = time.Duration(seconds) * time.Second
				}
			}
			lastErr = fmt.Errorf("rate limited (attempt %d/%d)", attempt+1, MaxRetries+1)
			if !sleep(ctx, delay) {
				return nil, nil, ctx.Err()
			}
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
			if !sleep(ctx, policy.NextBackOff()) {
				return nil, nil, ctx.Err()
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
		}

		return respBody, resp.Header, nil
	}

	return nil, nil, fmt.Errorf("max retries (%d) exceeded: %w", MaxRetries+1, lastErr)
}

// sleep waits for the given delay, returning false if the context is
// cancelled first.
func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// linkNextPattern matches the "next" relation in GitHub Link headers.
var linkNextPattern = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

// hasNextPage checks the Link header for a next page URL and returns it.
func hasNextPage(headers http.Header) (string, bool) {
	link := headers.Get("Link")
	if link == "" {
		return "", false
	}
	matches := linkNextPattern.FindStringSubmatch(link)
	if len(matches) < 2 {
		return "", false
	}
	return matches[1], true
}

// SearchIssues finds open and closed issues in repo whose title
// contains the given text. Pull requests are filtered out (the search
// endpoint returns both).
func (c *Client) SearchIssues(ctx context.Context, repo, titleContains string) ([]Issue, error) {
	query := fmt.Sprintf("repo:%s in:title %q", repo, titleContains)
	params := map[string]string{
		"q":        query,
		"per_page": strconv.Itoa(MaxPageSize),
	}
	urlStr := c.buildURL("/search/issues", params)
	respBody, _, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to search issues in %s: %w", repo, err)
	}

	var result SearchResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	issues := make([]Issue, 0, len(result.Items))
	for i := range result.Items {
		if result.Items[i].PullRequest == nil {
			issues = append(issues, result.Items[i])
		}
	}
	return issues, nil
}

// CreateIssue creates a new issue in the given repository.
func (c *Client) CreateIssue(ctx context.Context, repo, title, body string, labels []string) (*Issue, error) {
	reqBody := map[string]interface{}{
		"title": title,
		"body":  body,
	}
	if len(labels) > 0 {
		reqBody["labels"] = labels
	}

	urlStr := c.buildURL("/repos/"+repo+"/issues", nil)
	respBody, _, err := c.doRequest(ctx, http.MethodPost, urlStr, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create issue in %s: %w", repo, err)
	}

	var issue Issue
	if err := json.Unmarshal(respBody, &issue); err != nil {
		return nil, fmt.Errorf("failed to parse create response: %w", err)
	}

	return &issue, nil
}

// UpdateIssue updates an existing issue. GitHub uses PATCH for issue
// updates; the updates map is sent as-is (title, state, body, ...).
func (c *Client) UpdateIssue(ctx context.Context, repo string, number int, updates map[string]interface{}) (*Issue, error) {
	urlStr := c.buildURL("/repos/"+repo+"/issues/"+strconv.Itoa(number), nil)
	respBody, _, err := c.doRequest(ctx, http.MethodPatch, urlStr, updates)
	if err != nil {
		return nil, fmt.Errorf("failed to update %s#%d: %w", repo, number, err)
	}

	var issue Issue
	if err := json.Unmarshal(respBody, &issue); err != nil {
		return nil, fmt.Errorf("failed to parse update response: %w", err)
	}

	return &issue, nil
}

// FetchIssue retrieves a single issue by number.
func (c *Client) FetchIssue(ctx context.Context, repo string, number int) (*Issue, error) {
	urlStr := c.buildURL("/repos/"+repo+"/issues/"+strconv.Itoa(number), nil)
	respBody, _, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s#%d: %w", repo, number, err)
	}

	var issue Issue
	if err := json.Unmarshal(respBody, &issue); err != nil {
		return nil, fmt.Errorf("failed to parse issue response: %w", err)
	}

	return &issue, nil
}

// AddLabels attaches labels to an issue. Labels that do not exist in
// the repository make the whole call fail with a 404 or 422 APIError.
func (c *Client) AddLabels(ctx context.Context, repo string, number int, labels []string) error {
	if len(labels) == 0 {
		return nil
	}
	reqBody := map[string]interface{}{"labels": labels}
	urlStr := c.buildURL("/repos/"+repo+"/issues/"+strconv.Itoa(number)+"/labels", nil)
	if _, _, err := c.doRequest(ctx, http.MethodPost, urlStr, reqBody); err != nil {
		return fmt.Errorf("failed to add labels to %s#%d: %w", repo, number, err)
	}
	return nil
}

// RemoveLabel detaches a single label from an issue. Removing a label
// the issue does not carry returns a 404, which callers may ignore.
func (c *Client) RemoveLabel(ctx context.Context, repo string, number int, label string) error {
	urlStr := c.buildURL("/repos/"+repo+"/issues/"+strconv.Itoa(number)+"/labels/"+url.PathEscape(label), nil)
	if _, _, err := c.doRequest(ctx, http.MethodDelete, urlStr, nil); err != nil {
		return fmt.Errorf("failed to remove label %q from %s#%d: %w", label, repo, number, err)
	}
	return nil
}

// ListIssueLabels returns the labels currently on an issue.
func (c *Client) ListIssueLabels(ctx context.Context, repo string, number int) ([]Label, error) {
	params := map[string]string{"per_page": strconv.Itoa(MaxPageSize)}
	urlStr := c.buildURL("/repos/"+repo+"/issues/"+strconv.Itoa(number)+"/labels", params)
	respBody, _, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list labels on %s#%d: %w", repo, number, err)
	}

	var labels []Label
	if err := json.Unmarshal(respBody, &labels); err != nil {
		return nil, fmt.Errorf("failed to parse labels response: %w", err)
	}
	return labels, nil
}

// CreateComment appends a comment to an issue.
func (c *Client) CreateComment(ctx context.Context, repo string, number int, body string) error {
	reqBody := map[string]interface{}{"body": body}
	urlStr := c.buildURL("/repos/"+repo+"/issues/"+strconv.Itoa(number)+"/comments", nil)
	if _, _, err := c.doRequest(ctx, http.MethodPost, urlStr, reqBody); err != nil {
		return fmt.Errorf("failed to comment on %s#%d: %w", repo, number, err)
	}
	return nil
}

// ListComments returns all comments on an issue, oldest first,
// following Link-header pagination.
func (c *Client) ListComments(ctx context.Context, repo string, number int) ([]Comment, error) {
	var all []Comment
	page := 1

	for {
		select {
		case <-ctx.Done():
			return all, ctx.Err()
		default:
		}

		params := map[string]string{
			"per_page": strconv.Itoa(MaxPageSize),
			"page":     strconv.Itoa(page),
		}
		urlStr := c.buildURL("/repos/"+repo+"/issues/"+strconv.Itoa(number)+"/comments", params)
		respBody, headers, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to list comments on %s#%d: %w", repo, number, err)
		}

		var comments []Comment
		if err := json.Unmarshal(respBody, &comments); err != nil {
			return nil, fmt.Errorf("failed to parse comments response: %w", err)
		}
		all = append(all, comments...)

		if _, ok := hasNextPage(headers); !ok {
			break
		}
		page++

		if page > MaxPages {
			return nil, fmt.Errorf("pagination limit exceeded: stopped after %d pages", MaxPages)
		}
	}

	return all, nil
}

// GetLabel fetches a repository label definition. Returns nil, nil when
// the label does not exist.
func (c *Client) GetLabel(ctx context.Context, repo, name string) (*Label, error) {
	urlStr := c.buildURL("/repos/"+repo+"/labels/"+url.PathEscape(name), nil)
	respBody, _, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get label %q in %s: %w", name, repo, err)
	}

	var label Label
	if err := json.Unmarshal(respBody, &label); err != nil {
		return nil, fmt.Errorf("failed to parse label response: %w", err)
	}
	return &label, nil
}

// CreateLabel creates a repository label.
func (c *Client) CreateLabel(ctx context.Context, repo, name, color, description string) error {
	reqBody := map[string]interface{}{
		"name":        name,
		"color":       color,
		"description": description,
	}
	urlStr := c.buildURL("/repos/"+repo+"/labels", nil)
	if _, _, err := c.doRequest(ctx, http.MethodPost, urlStr, reqBody); err != nil {
		return fmt.Errorf("failed to create label %q in %s: %w", name, repo, err)
	}
	return nil
}
