// Package metasync provides a minimal public API for embedding the
// issue synchronization engine in other Go programs.
//
// Most deployments should run the metasync binary and drive it with
// webhooks. This package exports only the essential types and
// constructors for programs that want to feed events to the engine
// directly.
package metasync

import (
	"github.com/sancovp/metasync/internal/bml"
	"github.com/sancovp/metasync/internal/eventbus"
	"github.com/sancovp/metasync/internal/github"
	"github.com/sancovp/metasync/internal/sync"
	"github.com/sancovp/metasync/internal/tracker"
	"github.com/sancovp/metasync/internal/wrapper"
)

// Core types for working with the engine
type (
	Engine           = sync.Engine
	SourceIssueEvent = sync.SourceIssueEvent
	IssueStore       = tracker.IssueStore
	IssueSummary     = tracker.IssueSummary
	SourceRef        = wrapper.SourceRef
	Status           = bml.Status
	Event            = eventbus.Event
	Bus              = eventbus.Bus
)

// BML status constants
const (
	StatusBacklog  = bml.StatusBacklog
	StatusPlan     = bml.StatusPlan
	StatusBuild    = bml.StatusBuild
	StatusMeasure  = bml.StatusMeasure
	StatusLearn    = bml.StatusLearn
	StatusBlocked  = bml.StatusBlocked
	StatusArchived = bml.StatusArchived
)

// NewEngine creates a sync engine over the given store and meta repo.
func NewEngine(store IssueStore, metaRepo string) *Engine {
	return sync.NewEngine(store, metaRepo)
}

// NewGitHubStore builds the production GitHub-backed store.
func NewGitHubStore(token string) IssueStore {
	return github.NewStore(github.NewClient(token))
}

// NewMemoryStore creates an in-memory store for tests and dry runs.
func NewMemoryStore() *tracker.MemoryStore {
	return tracker.NewMemoryStore()
}

// NewBus creates an event bus for dispatching issue events.
func NewBus() *Bus {
	return eventbus.New()
}
