package webhook

import (
	"encoding/json"
	"fmt"

	"github.com/sancovp/metasync/internal/eventbus"
	"github.com/sancovp/metasync/internal/sync"
	"github.com/sancovp/metasync/internal/tracker"
)

// delivery is the subset of a GitHub issues/issue_comment payload the
// receiver needs.
type delivery struct {
	Action string `json:"action"`
	Issue  struct {
		Number int    `json:"number"`
		Title  string `json:"title"`
		Body   string `json:"body"`
		State  string `json:"state"`
		Labels []struct {
			Name string `json:"name"`
		} `json:"labels"`
		PullRequest *struct{} `json:"pull_request,omitempty"`
		HTMLURL     string    `json:"html_url"`
	} `json:"issue"`
	Label *struct {
		Name string `json:"name"`
	} `json:"label,omitempty"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// issueActions maps GitHub issues-event actions to bus event types.
var issueActions = map[string]eventbus.EventType{
	"opened":    eventbus.EventIssueOpened,
	"edited":    eventbus.EventIssueEdited,
	"labeled":   eventbus.EventIssueLabeled,
	"unlabeled": eventbus.EventIssueUnlabeled,
	"closed":    eventbus.EventIssueClosed,
	"reopened":  eventbus.EventIssueReopened,
}

// ParseEvent converts a raw GitHub delivery into a bus event.
// ghEvent is the X-GitHub-Event header value ("issues" or
// "issue_comment"). metaRepo deliveries are classified wrapper-side;
// everything else is source-side. Returns nil for deliveries the core
// does not consume (PRs, unhandled actions, other event kinds).
func ParseEvent(ghEvent string, body []byte, metaRepo string) (*eventbus.Event, error) {
	var d delivery
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, fmt.Errorf("invalid payload JSON: %w", err)
	}

	// The issues API surfaces PR activity through the same event; the
	// sync core only mirrors issues.
	if d.Issue.PullRequest != nil {
		return nil, nil
	}

	labels := make([]string, len(d.Issue.Labels))
	for i, l := range d.Issue.Labels {
		labels[i] = l.Name
	}

	source := sync.SourceIssueEvent{
		SourceRepo:  d.Repository.FullName,
		IssueNumber: d.Issue.Number,
		Title:       d.Issue.Title,
		Body:        d.Issue.Body,
		State:       tracker.IssueState(d.Issue.State),
		Labels:      labels,
		Action:      d.Action,
	}

	event := &eventbus.Event{Source: source}
	if d.Label != nil {
		event.Label = d.Label.Name
	}

	switch ghEvent {
	case "issues":
		if d.Repository.FullName == metaRepo {
			// Wrapper-side: only label additions drive the archive path.
			if d.Action != "labeled" {
				return nil, nil
			}
			event.Type = eventbus.EventWrapperLabeled
			event.Wrapper = &tracker.IssueSummary{
				Repo:   d.Repository.FullName,
				Number: d.Issue.Number,
				Title:  d.Issue.Title,
				Body:   d.Issue.Body,
				State:  tracker.IssueState(d.Issue.State),
				Labels: labels,
				URL:    d.Issue.HTMLURL,
			}
			return event, nil
		}
		t, ok := issueActions[d.Action]
		if !ok {
			return nil, nil
		}
		event.Type = t
		return event, nil

	case "issue_comment":
		if d.Action != "created" || d.Repository.FullName == metaRepo {
			return nil, nil
		}
		event.Type = eventbus.EventIssueCommented
		return event, nil
	}

	return nil, nil
}
