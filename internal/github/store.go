package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sancovp/metasync/internal/tracker"
)

// Store adapts Client to the tracker.IssueStore capability set. It
// classifies failures per the sync error taxonomy: network/auth/5xx
// problems become retryable tracker.TransportError values, and label
// attachment against a missing repository label becomes
// tracker.ErrLabelNotConfigured.
type Store struct {
	client *Client
}

// NewStore wraps a client as an IssueStore.
func NewStore(client *Client) *Store {
	return &Store{client: client}
}

var _ tracker.IssueStore = (*Store)(nil)
var _ tracker.LabelEnsurer = (*Store)(nil)

// SearchIssues implements tracker.IssueStore.
func (s *Store) SearchIssues(ctx context.Context, repo, titleContains string) ([]tracker.IssueSummary, error) {
	issues, err := s.client.SearchIssues(ctx, repo, titleContains)
	if err != nil {
		return nil, classify("search", err)
	}
	out := make([]tracker.IssueSummary, len(issues))
	for i := range issues {
		out[i] = toSummary(repo, &issues[i])
	}
	return out, nil
}

// FetchIssue implements tracker.IssueStore. A 404 maps to the
// ErrIssueNotFound sentinel so callers can tell a missing issue from a
// failed request.
func (s *Store) FetchIssue(ctx context.Context, repo string, number int) (*tracker.IssueSummary, error) {
	issue, err := s.client.FetchIssue(ctx, repo, number)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s#%d", tracker.ErrIssueNotFound, repo, number)
		}
		return nil, classify("fetch", err)
	}
	summary := toSummary(repo, issue)
	return &summary, nil
}

// CreateIssue implements tracker.IssueStore.
func (s *Store) CreateIssue(ctx context.Context, repo, title, body string, labels []string) (*tracker.IssueSummary, error) {
	issue, err := s.client.CreateIssue(ctx, repo, title, body, labels)
	if err != nil {
		if isLabelNotConfigured(err) {
			return nil, tracker.ErrLabelNotConfigured
		}
		return nil, classify("create", err)
	}
	summary := toSummary(repo, issue)
	return &summary, nil
}

// EditIssue implements tracker.IssueStore. Title, removals, and
// additions are applied as separate API calls in that order; the first
// transport failure aborts, label-not-configured on additions is
// surfaced as the sentinel for the caller to swallow.
func (s *Store) EditIssue(ctx context.Context, repo string, number int, opts tracker.EditOptions) error {
	if opts.Title != nil {
		updates := map[string]interface{}{"title": *opts.Title}
		if _, err := s.client.UpdateIssue(ctx, repo, number, updates); err != nil {
			return classify("edit", err)
		}
	}
	for _, label := range opts.RemoveLabels {
		if err := s.client.RemoveLabel(ctx, repo, number, label); err != nil {
			// Removing an absent label 404s; that is the desired end state.
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
				continue
			}
			return classify("edit", err)
		}
	}
	if len(opts.AddLabels) > 0 {
		if err := s.client.AddLabels(ctx, repo, number, opts.AddLabels); err != nil {
			if isLabelNotConfigured(err) {
				return tracker.ErrLabelNotConfigured
			}
			return classify("edit", err)
		}
	}
	return nil
}

// SetIssueState implements tracker.IssueStore.
func (s *Store) SetIssueState(ctx context.Context, repo string, number int, state tracker.IssueState) error {
	updates := map[string]interface{}{"state": string(state)}
	if _, err := s.client.UpdateIssue(ctx, repo, number, updates); err != nil {
		return classify("state", err)
	}
	return nil
}

// AddComment implements tracker.IssueStore.
func (s *Store) AddComment(ctx context.Context, repo string, number int, body string) error {
	if err := s.client.CreateComment(ctx, repo, number, body); err != nil {
		return classify("comment", err)
	}
	return nil
}

// GetLabels implements tracker.IssueStore.
func (s *Store) GetLabels(ctx context.Context, repo string, number int) ([]string, error) {
	labels, err := s.client.ListIssueLabels(ctx, repo, number)
	if err != nil {
		return nil, classify("labels", err)
	}
	return LabelNames(labels), nil
}

// ListComments implements tracker.IssueStore.
func (s *Store) ListComments(ctx context.Context, repo string, number int) ([]string, error) {
	comments, err := s.client.ListComments(ctx, repo, number)
	if err != nil {
		return nil, classify("comments", err)
	}
	bodies := make([]string, len(comments))
	for i, c := range comments {
		bodies[i] = c.Body
	}
	return bodies, nil
}

// EnsureLabel implements tracker.LabelEnsurer: create the label only
// if it does not already exist.
func (s *Store) EnsureLabel(ctx context.Context, repo, name, color, description string) error {
	existing, err := s.client.GetLabel(ctx, repo, name)
	if err != nil {
		return classify("ensure-label", err)
	}
	if existing != nil {
		return nil
	}
	if err := s.client.CreateLabel(ctx, repo, name, color, description); err != nil {
		return classify("ensure-label", err)
	}
	return nil
}

func toSummary(repo string, issue *Issue) tracker.IssueSummary {
	return tracker.IssueSummary{
		Repo:   repo,
		Number: issue.Number,
		Title:  issue.Title,
		Body:   issue.Body,
		State:  tracker.IssueState(issue.State),
		Labels: LabelNames(issue.Labels),
		URL:    issue.HTMLURL,
	}
}

// classify maps a client error into the sync taxonomy. Auth failures,
// rate-limit exhaustion, 5xx, and plain network errors are all
// transport-class (retryable); anything else keeps its APIError shape.
func classify(op string, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized,
			apiErr.StatusCode == http.StatusForbidden,
			apiErr.StatusCode == http.StatusTooManyRequests,
			apiErr.StatusCode >= 500:
			return tracker.Transport(op, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	// No APIError in the chain: the request never got a usable response.
	return tracker.Transport(op, err)
}

// isLabelNotConfigured detects the API shape of "label does not exist
// in this repository" on label attachment: a 404 for the label path or
// a 422 validation failure.
func isLabelNotConfigured(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusNotFound || apiErr.StatusCode == http.StatusUnprocessableEntity
}
