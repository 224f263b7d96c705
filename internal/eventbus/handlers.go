package eventbus

import (
	"context"
	"fmt"

	"github.com/sancovp/metasync/internal/bml"
	"github.com/sancovp/metasync/internal/sync"
	"github.com/sancovp/metasync/internal/tracker"
)

// ValidatorHandler runs the BML workflow validator on label and
// comment events and posts advisory comments to the source issue.
// Priority 10 (advisories should land before the sync mirrors labels
// across, so the comment thread reads in cause order).
type ValidatorHandler struct {
	Store tracker.IssueStore
}

func (h *ValidatorHandler) ID() string { return "validator" }
func (h *ValidatorHandler) Handles() []EventType {
	return []EventType{EventIssueLabeled, EventIssueCommented}
}
func (h *ValidatorHandler) Priority() int { return 10 }

func (h *ValidatorHandler) Handle(ctx context.Context, event *Event, result *Result) error {
	snap, ok := h.snapshot(ctx, event)
	if !ok {
		return nil
	}

	advisories := bml.Validate(snap)
	for _, adv := range advisories {
		if err := h.Store.AddComment(ctx, event.Source.SourceRepo, event.Source.IssueNumber, adv.Body); err != nil {
			return fmt.Errorf("validator: posting %s advisory: %w", adv.Kind, err)
		}
		result.Advisories++
	}
	return nil
}

// snapshot builds the validator input. The webhook payload's label set
// already includes a freshly added label, so the pre-transition state
// is the payload set minus that label. Comments are read once, up
// front, so validation cannot drift from the state it ran against.
func (h *ValidatorHandler) snapshot(ctx context.Context, event *Event) (bml.Snapshot, bool) {
	snap := bml.Snapshot{}

	switch event.Type {
	case EventIssueLabeled:
		if !bml.IsStatusLabel(event.Label) {
			return snap, false
		}
		for _, l := range event.Source.Labels {
			if l != event.Label {
				snap.Current = append(snap.Current, l)
			}
		}
		snap.Incoming = []string{event.Label}
	case EventIssueCommented:
		// Re-evaluate standing conditions (blocked without explanation)
		// against the full current set.
		snap.Current = event.Source.Labels
		snap.Incoming = event.Source.Labels
	default:
		return snap, false
	}

	comments, err := h.Store.ListComments(ctx, event.Source.SourceRepo, event.Source.IssueNumber)
	if err != nil {
		// Without the history the blocked rule would re-fire spuriously;
		// skip validation for this delivery.
		return snap, false
	}
	snap.Comments = comments
	return snap, true
}

// SyncHandler feeds source issue events into the sync propagator.
// Priority 20 (after advisories).
type SyncHandler struct {
	Engine *sync.Engine
}

func (h *SyncHandler) ID() string { return "sync" }
func (h *SyncHandler) Handles() []EventType {
	return SourceEventTypes
}
func (h *SyncHandler) Priority() int { return 20 }

func (h *SyncHandler) Handle(ctx context.Context, event *Event, result *Result) error {
	if err := h.Engine.Propagate(ctx, &event.Source); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	result.Synced = true
	return nil
}

// ArchiveHandler watches wrapper label events for the terminal
// archived label and closes the original source issue.
// Priority 30.
type ArchiveHandler struct {
	Engine *sync.Engine
}

func (h *ArchiveHandler) ID() string { return "archive" }
func (h *ArchiveHandler) Handles() []EventType {
	return []EventType{EventWrapperLabeled}
}
func (h *ArchiveHandler) Priority() int { return 30 }

func (h *ArchiveHandler) Handle(ctx context.Context, event *Event, result *Result) error {
	// Trigger only on the exact terminal label; other wrapper label
	// traffic is none of the closer's business.
	if event.Label != bml.StatusArchived.Label() {
		return nil
	}
	if event.Wrapper == nil {
		return fmt.Errorf("archive: wrapper.labeled event without wrapper payload")
	}
	if err := h.Engine.CloseArchived(ctx, *event.Wrapper); err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	return nil
}
