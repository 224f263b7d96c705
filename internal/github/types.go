// Package github provides the client and data types for the GitHub
// REST API.
//
// The client is repository-agnostic: every method takes an
// "owner/repo" path so one authenticated client can serve both the
// source repositories and the meta repository. The Store type adapts
// the client to the tracker.IssueStore capability set used by the
// sync engine.
package github

import (
	"fmt"
	"net/http"
	"time"
)

// API configuration constants.
const (
	// DefaultAPIEndpoint is the GitHub REST API base URL.
	DefaultAPIEndpoint = "https://api.github.com"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxRetries is the maximum number of retries for transient failures.
	MaxRetries = 3

	// MaxPageSize is the maximum number of items to fetch per page.
	MaxPageSize = 100

	// MaxPages is the maximum number of pages to fetch before stopping.
	// This prevents infinite loops from malformed Link headers.
	MaxPages = 1000
)

// Client provides methods to interact with the GitHub REST API.
type Client struct {
	Token      string       // GitHub personal access token
	BaseURL    string       // API base URL (default: https://api.github.com)
	HTTPClient *http.Client // Optional custom HTTP client
}

// Issue represents an issue from the GitHub API.
type Issue struct {
	ID          int      `json:"id"`     // Global unique ID
	Number      int      `json:"number"` // Repository-scoped issue number
	Title       string   `json:"title"`
	Body        string   `json:"body"`
	State       string   `json:"state"` // "open" or "closed"
	Labels      []Label  `json:"labels"`
	User        *User    `json:"user,omitempty"` // Author
	HTMLURL     string   `json:"html_url"`
	PullRequest *PullRef `json:"pull_request,omitempty"` // Non-nil if this is a PR
}

// PullRef indicates an issue is actually a pull request. The GitHub
// Issues and Search APIs return PRs alongside issues; this field
// distinguishes them.
type PullRef struct {
	URL string `json:"url,omitempty"`
}

// User represents a GitHub user.
type User struct {
	ID    int    `json:"id"`
	Login string `json:"login"`
}

// Label represents a GitHub label.
type Label struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Color       string `json:"color"`
	Description string `json:"description,omitempty"`
}

// Comment represents an issue comment.
type Comment struct {
	ID   int    `json:"id"`
	Body string `json:"body"`
	User *User  `json:"user,omitempty"`
}

// SearchResult is the envelope returned by the issue search endpoint.
type SearchResult struct {
	TotalCount        int     `json:"total_count"`
	IncompleteResults bool    `json:"incomplete_results"`
	Items             []Issue `json:"items"`
}

// APIError is a non-2xx response from the GitHub API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: %s (status %d)", e.Body, e.StatusCode)
}

// LabelNames extracts label name strings from a slice of Label structs.
func LabelNames(labels []Label) []string {
	names := make([]string, len(labels))
	for i, l := range labels {
		names[i] = l.Name
	}
	return names
}
