// Package sync implements the cross-repository issue synchronization
// engine: the propagator that mirrors source issues into meta-repo
// wrapper issues, the archive closer that pushes terminal closure back
// to the source, and the BML status-move operation.
//
// Every operation is a best-effort sequence over the remote tracker.
// There are no transactions and no rollback: each step's failure is
// logged independently, intermediate inconsistent states are expected
// to self-heal on the next event, and only transport-class errors
// abort a sequence.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/sancovp/metasync/internal/bml"
	"github.com/sancovp/metasync/internal/tracker"
	"github.com/sancovp/metasync/internal/wrapper"
)

// SourceIssueEvent is the inbound event shape consumed by the engine.
// It is produced externally by whatever delivers webhook or dispatch
// events.
type SourceIssueEvent struct {
	SourceRepo  string              `json:"source_repo"` // "owner/repo"
	IssueNumber int                 `json:"issue_number"`
	Title       string              `json:"title"`
	Body        string              `json:"body"`
	State       tracker.IssueState  `json:"state"`
	Labels      []string            `json:"labels"`
	Action      string              `json:"action"` // opened, edited, labeled, unlabeled, closed, reopened
}

// Ref returns the event's source reference.
func (e *SourceIssueEvent) Ref() wrapper.SourceRef {
	return wrapper.SourceRef{Repo: e.SourceRepo, Number: e.IssueNumber}
}

// Engine orchestrates wrapper synchronization against the remote
// tracker. Engines hold no mutable per-event state: one engine serves
// any number of concurrent events, with the tracker itself as the only
// serialization point (last writer wins per step).
type Engine struct {
	Store    tracker.IssueStore
	Resolver *wrapper.Resolver
	MetaRepo string

	// Callbacks for UI feedback (optional).
	OnMessage func(msg string)
	OnWarning func(msg string)
}

// NewEngine creates a sync engine over the given store and meta repo.
// The resolver is search-based unless a mapping is attached afterwards.
func NewEngine(store tracker.IssueStore, metaRepo string) *Engine {
	e := &Engine{
		Store:    store,
		MetaRepo: metaRepo,
	}
	e.Resolver = &wrapper.Resolver{
		Store:     store,
		MetaRepo:  metaRepo,
		OnWarning: func(msg string) { e.warn("%s", msg) },
	}
	return e
}

// WithMapping attaches a wrapper mapping store to the resolver.
func (e *Engine) WithMapping(m wrapper.Mapping) *Engine {
	e.Resolver.Mapping = m
	return e
}

// Propagate mirrors a source issue event onto its wrapper: title,
// status labels, and open/closed state. The wrapper is created lazily
// on the first event for a source issue. Steps run in order; a
// transport failure aborts the remaining steps, anything else is
// logged and the sequence continues.
func (e *Engine) Propagate(ctx context.Context, event *SourceIssueEvent) error {
	ref := event.Ref()

	w, err := e.Resolver.Resolve(ctx, ref, event.Title, event.Body)
	if err != nil {
		return fmt.Errorf("resolving wrapper for %s: %w", ref, err)
	}

	e.msg("syncing %s -> %s#%d", ref, e.MetaRepo, w.Number)

	// Step 2: recompute the wrapper title. Writing an unchanged title
	// is an idempotent no-op on the tracker side.
	title := wrapper.FormatTitle(ref, event.Title)
	if err := e.Store.EditIssue(ctx, e.MetaRepo, w.Number, tracker.EditOptions{Title: &title}); err != nil {
		if tracker.IsTransport(err) {
			return fmt.Errorf("updating wrapper title for %s: %w", ref, err)
		}
		e.warn("updating wrapper title for %s: %v", ref, err)
	}

	// Step 3: status label diff-and-replace.
	if err := e.mirrorStatusLabels(ctx, w.Number, event.Labels); err != nil {
		if tracker.IsTransport(err) {
			return fmt.Errorf("mirroring status labels for %s: %w", ref, err)
		}
		e.warn("mirroring status labels for %s: %v", ref, err)
	}

	// Step 4: mirror open/closed state. Same-state writes are no-ops.
	if err := e.Store.SetIssueState(ctx, e.MetaRepo, w.Number, event.State); err != nil {
		if tracker.IsTransport(err) {
			return fmt.Errorf("mirroring state for %s: %w", ref, err)
		}
		e.warn("mirroring state for %s: %v", ref, err)
	}

	return nil
}

// mirrorStatusLabels makes the wrapper's status-* label set exactly
// equal the source's. Only the status axis is touched: priority-* and
// every other label ride along untouched. The diff removes before it
// adds, so a brief zero-status window on the wrapper is possible and
// accepted.
func (e *Engine) mirrorStatusLabels(ctx context.Context, wrapperNumber int, sourceLabels []string) error {
	current, err := e.Store.GetLabels(ctx, e.MetaRepo, wrapperNumber)
	if err != nil {
		return err
	}

	want := make(map[string]bool)
	for _, l := range bml.StatusLabels(sourceLabels) {
		want[l] = true
	}
	have := make(map[string]bool)
	for _, l := range bml.StatusLabels(current) {
		have[l] = true
	}

	var removes, adds []string
	for l := range have {
		if !want[l] {
			removes = append(removes, l)
		}
	}
	for _, l := range bml.StatusLabels(sourceLabels) {
		if !have[l] {
			adds = append(adds, l)
		}
	}

	if len(removes) == 0 && len(adds) == 0 {
		return nil
	}

	err = e.Store.EditIssue(ctx, e.MetaRepo, wrapperNumber, tracker.EditOptions{
		AddLabels:    adds,
		RemoveLabels: removes,
	})
	if errors.Is(err, tracker.ErrLabelNotConfigured) {
		e.warn("status label missing in %s, wrapper #%d left partially labeled", e.MetaRepo, wrapperNumber)
		return nil
	}
	return err
}

// CloseArchived propagates a wrapper's terminal archived label back to
// its source issue: the source is closed and receives exactly one
// provenance comment. Non-wrapper titles are a logged no-op — not
// every issue in the meta repository is a wrapper. One-shot, one
// direction; later wrapper edits do not re-trigger it.
func (e *Engine) CloseArchived(ctx context.Context, wrapperIssue tracker.IssueSummary) error {
	ref, err := wrapper.ParseTitle(wrapperIssue.Title)
	if err != nil {
		if errors.Is(err, wrapper.ErrNoSourceReference) {
			e.msg("archived issue %s#%d has no source reference, skipping", wrapperIssue.Repo, wrapperIssue.Number)
			return nil
		}
		return err
	}

	if err := e.Store.SetIssueState(ctx, ref.Repo, ref.Number, tracker.StateClosed); err != nil {
		return fmt.Errorf("closing source %s: %w", ref, err)
	}

	comment := fmt.Sprintf("Closed as archived via meta repository wrapper %s#%d.", wrapperIssue.Repo, wrapperIssue.Number)
	if err := e.Store.AddComment(ctx, ref.Repo, ref.Number, comment); err != nil {
		return fmt.Errorf("commenting on source %s: %w", ref, err)
	}

	e.msg("archived %s via %s#%d", ref, wrapperIssue.Repo, wrapperIssue.Number)
	return nil
}

// MoveStatus sets an issue's BML status: the new status label is added
// first, then every other status-* label is removed (recovery from a
// mid-sequence failure leaves the issue over-labeled rather than
// unlabeled). Advisories for the transition are computed against a
// snapshot taken before any write and posted as comments afterwards.
func (e *Engine) MoveStatus(ctx context.Context, repo string, number int, status bml.Status) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid status %q", status)
	}

	current, err := e.Store.GetLabels(ctx, repo, number)
	if err != nil {
		return fmt.Errorf("reading labels on %s#%d: %w", repo, number, err)
	}
	comments, err := e.Store.ListComments(ctx, repo, number)
	if err != nil {
		return fmt.Errorf("reading comments on %s#%d: %w", repo, number, err)
	}

	advisories := bml.Validate(bml.Snapshot{
		Current:  current,
		Incoming: []string{status.Label()},
		Comments: comments,
	})

	var removes []string
	for _, l := range bml.StatusLabels(current) {
		if l != status.Label() {
			removes = append(removes, l)
		}
	}

	err = e.Store.EditIssue(ctx, repo, number, tracker.EditOptions{AddLabels: []string{status.Label()}})
	if errors.Is(err, tracker.ErrLabelNotConfigured) {
		return fmt.Errorf("status label %q not configured in %s: %w", status.Label(), repo, err)
	}
	if err != nil {
		return fmt.Errorf("setting status on %s#%d: %w", repo, number, err)
	}
	if len(removes) > 0 {
		if err := e.Store.EditIssue(ctx, repo, number, tracker.EditOptions{RemoveLabels: removes}); err != nil {
			// Best effort: a failed cleanup leaves the issue over-labeled,
			// which the next move repairs.
			e.warn("removing old status labels on %s#%d: %v", repo, number, err)
		}
	}

	// The label change stands regardless of advisories: soft enforcement.
	for _, adv := range advisories {
		if err := e.Store.AddComment(ctx, repo, number, adv.Body); err != nil {
			e.warn("posting %s advisory on %s#%d: %v", adv.Kind, repo, number, err)
		}
	}

	e.msg("moved %s#%d to %s", repo, number, status)
	return nil
}

func (e *Engine) msg(format string, args ...interface{}) {
	if e.OnMessage != nil {
		e.OnMessage(fmt.Sprintf(format, args...))
		return
	}
	log.Printf("sync: "+format, args...)
}

func (e *Engine) warn(format string, args ...interface{}) {
	if e.OnWarning != nil {
		e.OnWarning(fmt.Sprintf(format, args...))
		return
	}
	log.Printf("sync: warning: "+format, args...)
}
