package bml

import (
	"strings"
	"testing"
)

func kinds(advisories []Advisory) []AdvisoryKind {
	out := make([]AdvisoryKind, len(advisories))
	for i, a := range advisories {
		out[i] = a.Kind
	}
	return out
}

func hasKind(advisories []Advisory, kind AdvisoryKind) bool {
	for _, a := range advisories {
		if a.Kind == kind {
			return true
		}
	}
	return false
}

func TestValidateBuildWithoutPlan(t *testing.T) {
	advisories := Validate(Snapshot{
		Current:  []string{"status-backlog"},
		Incoming: []string{"status-build"},
	})
	if len(advisories) != 1 {
		t.Fatalf("got %d advisories %v, want 1", len(advisories), kinds(advisories))
	}
	adv := advisories[0]
	if adv.Kind != AdvisoryInvalidTransition {
		t.Errorf("kind = %s, want %s", adv.Kind, AdvisoryInvalidTransition)
	}
	if adv.Status != StatusBuild {
		t.Errorf("status = %s, want build", adv.Status)
	}
	if !strings.Contains(adv.Body, "Invalid workflow transition") {
		t.Errorf("body %q should name the invalid transition", adv.Body)
	}
}

func TestValidateBuildWithPlan(t *testing.T) {
	advisories := Validate(Snapshot{
		Current:  []string{"status-plan"},
		Incoming: []string{"status-build"},
	})
	if len(advisories) != 0 {
		t.Errorf("plan -> build should be clean, got %v", kinds(advisories))
	}
}

func TestValidateBuildAlreadyPresent(t *testing.T) {
	// Re-applying a label the issue already carries is not a transition.
	advisories := Validate(Snapshot{
		Current:  []string{"status-build"},
		Incoming: []string{"status-build"},
	})
	if hasKind(advisories, AdvisoryInvalidTransition) {
		t.Errorf("re-applied build label should not re-fire, got %v", kinds(advisories))
	}
}

func TestValidateChecklists(t *testing.T) {
	tests := []struct {
		incoming Status
		want     string
	}{
		{StatusMeasure, "measure"},
		{StatusLearn, "learn"},
	}
	for _, tt := range tests {
		advisories := Validate(Snapshot{
			Current:  []string{"status-build"},
			Incoming: []string{tt.incoming.Label()},
		})
		if len(advisories) != 1 || advisories[0].Kind != AdvisoryChecklist {
			t.Errorf("entering %s: got %v, want one checklist", tt.incoming, kinds(advisories))
			continue
		}
		if !strings.Contains(advisories[0].Body, tt.want) {
			t.Errorf("entering %s: body %q should mention the lane", tt.incoming, advisories[0].Body)
		}
	}
}

func TestValidateBlockedWithoutExplanation(t *testing.T) {
	advisories := Validate(Snapshot{
		Current:  []string{"status-build"},
		Incoming: []string{"status-blocked"},
	})
	if !hasKind(advisories, AdvisoryBlockedExplanation) {
		t.Errorf("blocked without explanation should advise, got %v", kinds(advisories))
	}
}

func TestValidateBlockedWithExplanation(t *testing.T) {
	tests := []string{
		"We are blocked on the upstream release.",
		"Waiting for the infra team.",
		"There is a DEPENDENCY on issue 42.",
	}
	for _, comment := range tests {
		advisories := Validate(Snapshot{
			Current:  []string{"status-blocked"},
			Incoming: []string{"status-blocked"},
			Comments: []string{"unrelated chatter", comment},
		})
		if hasKind(advisories, AdvisoryBlockedExplanation) {
			t.Errorf("comment %q should count as an explanation", comment)
		}
	}
}

func TestValidateBlockedRefires(t *testing.T) {
	// A previously posted advisory does not satisfy the check; only a
	// human comment does.
	first := Validate(Snapshot{
		Current: []string{"status-blocked"},
	})
	if len(first) != 1 || first[0].Kind != AdvisoryBlockedExplanation {
		t.Fatalf("got %v, want one blocked-explanation advisory", kinds(first))
	}

	second := Validate(Snapshot{
		Current:  []string{"status-blocked"},
		Comments: []string{first[0].Body},
	})
	if !hasKind(second, AdvisoryBlockedExplanation) {
		t.Error("the advisory's own text should not count as an explanation")
	}
}

func TestValidateNonStatusLabels(t *testing.T) {
	advisories := Validate(Snapshot{
		Current:  []string{"status-plan"},
		Incoming: []string{"priority-high"},
	})
	if len(advisories) != 0 {
		t.Errorf("priority labels are not the validator's business, got %v", kinds(advisories))
	}
}
