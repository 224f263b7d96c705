package metasync_test

import (
	"context"
	"testing"

	"github.com/sancovp/metasync"
)

func TestEmbeddedEngine(t *testing.T) {
	store := metasync.NewMemoryStore()
	engine := metasync.NewEngine(store, "sancovp/meta")
	engine.OnMessage = func(string) {}

	event := &metasync.SourceIssueEvent{
		SourceRepo:  "acme/widgets",
		IssueNumber: 1,
		Title:       "First issue",
		State:       "open",
		Labels:      []string{metasync.StatusPlan.Label()},
		Action:      "opened",
	}
	if err := engine.Propagate(context.Background(), event); err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	if store.Issue("sancovp/meta", 1) == nil {
		t.Error("wrapper was not created")
	}
}

func TestStatusConstants(t *testing.T) {
	for _, s := range []metasync.Status{
		metasync.StatusBacklog,
		metasync.StatusPlan,
		metasync.StatusBuild,
		metasync.StatusMeasure,
		metasync.StatusLearn,
		metasync.StatusBlocked,
		metasync.StatusArchived,
	} {
		if !s.IsValid() {
			t.Errorf("status %q should be valid", s)
		}
	}
}
