// Package eventbus dispatches issue events to registered handlers.
//
// Each inbound event is an independent unit of work: the bus holds no
// state beyond its handler registry, so any number of events may be in
// flight across a fleet of stateless processes. Durable state lives in
// the remote tracker only.
package eventbus

import (
	"github.com/sancovp/metasync/internal/sync"
	"github.com/sancovp/metasync/internal/tracker"
)

// EventType identifies an event flowing through the bus.
type EventType string

const (
	// Source-repository issue events.
	EventIssueOpened    EventType = "issue.opened"
	EventIssueEdited    EventType = "issue.edited"
	EventIssueLabeled   EventType = "issue.labeled"
	EventIssueUnlabeled EventType = "issue.unlabeled"
	EventIssueClosed    EventType = "issue.closed"
	EventIssueReopened  EventType = "issue.reopened"

	// Meta-repository wrapper events.
	EventWrapperLabeled EventType = "wrapper.labeled"

	// Comment events (re-evaluate blocked-explanation advisories).
	EventIssueCommented EventType = "issue.commented"
)

// SourceEventTypes lists the event types raised for source-repository
// issues.
var SourceEventTypes = []EventType{
	EventIssueOpened,
	EventIssueEdited,
	EventIssueLabeled,
	EventIssueUnlabeled,
	EventIssueClosed,
	EventIssueReopened,
}

// Event is a single issue event flowing through the bus.
type Event struct {
	Type EventType

	// Source carries the issue payload for source-repository events
	// (and doubles as the raw payload for wrapper events).
	Source sync.SourceIssueEvent

	// Label is the label added/removed for labeled/unlabeled events.
	Label string

	// Wrapper is the wrapper issue snapshot for wrapper.* events.
	Wrapper *tracker.IssueSummary
}

// IsSourceEvent reports whether the event type belongs to the
// source-repository category.
func (t EventType) IsSourceEvent() bool {
	for _, s := range SourceEventTypes {
		if t == s {
			return true
		}
	}
	return false
}

// Result aggregates handler outcomes for an event.
type Result struct {
	// Advisories counts advisory comments posted while handling.
	Advisories int
	// Synced is set when a propagation ran to completion.
	Synced bool
	// Warnings collects non-fatal handler diagnostics.
	Warnings []string
}
