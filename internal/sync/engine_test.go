package sync

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/sancovp/metasync/internal/bml"
	"github.com/sancovp/metasync/internal/tracker"
	"github.com/sancovp/metasync/internal/wrapper"
)

const metaRepo = "sancovp/meta"

func newTestEngine(t *testing.T) (*Engine, *tracker.MemoryStore) {
	t.Helper()
	store := tracker.NewMemoryStore()
	engine := NewEngine(store, metaRepo)
	engine.OnMessage = func(string) {}
	engine.OnWarning = func(string) {}
	return engine, store
}

func sourceEvent(labels []string) *SourceIssueEvent {
	return &SourceIssueEvent{
		SourceRepo:  "acme/widgets",
		IssueNumber: 42,
		Title:       "Fix login crash",
		Body:        "The login form crashes on submit.",
		State:       tracker.StateOpen,
		Labels:      labels,
		Action:      "labeled",
	}
}

func sorted(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func TestPropagateCreatesWrapper(t *testing.T) {
	engine, store := newTestEngine(t)

	event := sourceEvent([]string{"status-plan"})
	if err := engine.Propagate(context.Background(), event); err != nil {
		t.Fatalf("Propagate: %v", err)
	}

	w := store.Issue(metaRepo, 1)
	if w == nil {
		t.Fatal("wrapper was not created")
	}
	if w.Title != "[acme/widgets#42] Fix login crash" {
		t.Errorf("wrapper title = %q", w.Title)
	}
	if !strings.Contains(w.Body, "The login form crashes on submit.") {
		t.Errorf("wrapper body missing source body:\n%s", w.Body)
	}
	if w.State != tracker.StateOpen {
		t.Errorf("wrapper state = %s, want open", w.State)
	}
	if got := bml.StatusLabels(w.Labels); !reflect.DeepEqual(got, []string{"status-plan"}) {
		t.Errorf("wrapper status labels = %v, want [status-plan]", got)
	}
}

func TestPropagateStatusLabelDiff(t *testing.T) {
	engine, store := newTestEngine(t)

	// Existing wrapper carries an old status plus labels the sync must
	// not touch.
	store.Seed(metaRepo, 5, "[acme/widgets#42] Fix login crash", "", tracker.StateOpen,
		[]string{"status-plan", "priority-high", "synced"})

	event := sourceEvent([]string{"status-build"})
	if err := engine.Propagate(context.Background(), event); err != nil {
		t.Fatalf("Propagate: %v", err)
	}

	got := sorted(store.Issue(metaRepo, 5).Labels)
	want := []string{"priority-high", "status-build", "synced"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("wrapper labels = %v, want %v", got, want)
	}
}

func TestPropagateTitleOverwrite(t *testing.T) {
	engine, store := newTestEngine(t)
	store.Seed(metaRepo, 5, "[acme/widgets#42] Old title (hand-edited)", "", tracker.StateOpen, nil)

	if err := engine.Propagate(context.Background(), sourceEvent(nil)); err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	if got := store.Issue(metaRepo, 5).Title; got != "[acme/widgets#42] Fix login crash" {
		t.Errorf("title = %q, hand edits should be overwritten", got)
	}
}

func TestPropagateMirrorsClosedState(t *testing.T) {
	engine, store := newTestEngine(t)
	store.Seed(metaRepo, 5, "[acme/widgets#42] Fix login crash", "", tracker.StateOpen, nil)

	event := sourceEvent(nil)
	event.State = tracker.StateClosed
	event.Action = "closed"
	if err := engine.Propagate(context.Background(), event); err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	if got := store.Issue(metaRepo, 5).State; got != tracker.StateClosed {
		t.Errorf("wrapper state = %s, want closed", got)
	}
}

func TestPropagateReopensWrapper(t *testing.T) {
	engine, store := newTestEngine(t)
	store.Seed(metaRepo, 5, "[acme/widgets#42] Fix login crash", "", tracker.StateClosed, nil)

	event := sourceEvent(nil)
	event.Action = "reopened"
	if err := engine.Propagate(context.Background(), event); err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	if got := store.Issue(metaRepo, 5).State; got != tracker.StateOpen {
		t.Errorf("wrapper state = %s, want open after source reopen", got)
	}
}

// staticMapping is a fixed (source ref -> wrapper number) table.
type staticMapping map[wrapper.SourceRef]int

func (m staticMapping) Get(ctx context.Context, ref wrapper.SourceRef) (int, bool, error) {
	n, ok := m[ref]
	return n, ok, nil
}

func (m staticMapping) Put(ctx context.Context, ref wrapper.SourceRef, number int) error {
	m[ref] = number
	return nil
}

func TestPropagateStaleMappingLeavesMappedIssueAlone(t *testing.T) {
	engine, store := newTestEngine(t)
	store.Seed(metaRepo, 3, "[acme/widgets#42] Fix login crash", "", tracker.StateOpen, nil)
	store.Seed(metaRepo, 9, "Unrelated housekeeping task", "", tracker.StateOpen, nil)
	engine.WithMapping(staticMapping{{Repo: "acme/widgets", Number: 42}: 9})

	event := sourceEvent([]string{"status-build"})
	event.State = tracker.StateClosed
	if err := engine.Propagate(context.Background(), event); err != nil {
		t.Fatalf("Propagate: %v", err)
	}

	// The real wrapper took the sync.
	w := store.Issue(metaRepo, 3)
	if w.Title != "[acme/widgets#42] Fix login crash" || w.State != tracker.StateClosed {
		t.Errorf("wrapper not synced: %+v", w)
	}
	// The issue the stale mapping pointed at is untouched.
	other := store.Issue(metaRepo, 9)
	if other.Title != "Unrelated housekeeping task" {
		t.Errorf("unrelated issue title rewritten to %q", other.Title)
	}
	if other.State != tracker.StateOpen {
		t.Errorf("unrelated issue state = %s, want open", other.State)
	}
	if len(other.Labels) != 0 {
		t.Errorf("unrelated issue gained labels %v", other.Labels)
	}
}

func TestPropagateIdempotent(t *testing.T) {
	engine, store := newTestEngine(t)

	event := sourceEvent([]string{"status-build"})
	if err := engine.Propagate(context.Background(), event); err != nil {
		t.Fatalf("first Propagate: %v", err)
	}
	before := *store.Issue(metaRepo, 1)

	edits := 0
	store.OnCall(func(op string) {
		if op == "edit" {
			edits++
		}
	})
	if err := engine.Propagate(context.Background(), event); err != nil {
		t.Fatalf("second Propagate: %v", err)
	}

	after := *store.Issue(metaRepo, 1)
	if !reflect.DeepEqual(before, after) {
		t.Errorf("replay changed the wrapper:\nbefore %+v\nafter  %+v", before, after)
	}
	// Title rewrite is always issued; the label diff must be empty.
	if edits > 1 {
		t.Errorf("replay issued %d edits, want at most the title rewrite", edits)
	}
}

func TestPropagateTransportErrorAborts(t *testing.T) {
	engine, store := newTestEngine(t)
	store.Err = errors.New("connection refused")

	err := engine.Propagate(context.Background(), sourceEvent(nil))
	if err == nil {
		t.Fatal("expected error")
	}
	if !tracker.IsTransport(err) {
		t.Errorf("error should stay transport-classified: %v", err)
	}
}

func TestPropagateMissingStatusLabelContinues(t *testing.T) {
	engine, store := newTestEngine(t)
	store.Seed(metaRepo, 5, "[acme/widgets#42] Fix login crash", "", tracker.StateOpen, nil)
	// Meta repo has no status labels configured; the add fails with the
	// sentinel, which must not abort the sequence.
	store.KnownLabels = map[string]map[string]bool{metaRepo: {}}

	var warnings []string
	engine.OnWarning = func(msg string) { warnings = append(warnings, msg) }

	event := sourceEvent([]string{"status-build"})
	event.State = tracker.StateClosed
	if err := engine.Propagate(context.Background(), event); err != nil {
		t.Fatalf("Propagate: %v", err)
	}

	// The later state-mirror step still ran.
	if got := store.Issue(metaRepo, 5).State; got != tracker.StateClosed {
		t.Errorf("state = %s, want closed despite label failure", got)
	}
	if len(warnings) == 0 {
		t.Error("missing label should be warned")
	}
}

func TestCloseArchived(t *testing.T) {
	engine, store := newTestEngine(t)
	store.Seed("acme/widgets", 42, "Fix login crash", "", tracker.StateOpen, nil)

	wrapperIssue := tracker.IssueSummary{
		Repo:   metaRepo,
		Number: 7,
		Title:  "[acme/widgets#42] Fix login crash",
	}
	if err := engine.CloseArchived(context.Background(), wrapperIssue); err != nil {
		t.Fatalf("CloseArchived: %v", err)
	}

	source := store.Issue("acme/widgets", 42)
	if source.State != tracker.StateClosed {
		t.Errorf("source state = %s, want closed", source.State)
	}
	comments := store.Comments("acme/widgets", 42)
	if len(comments) != 1 {
		t.Fatalf("source has %d comments, want exactly 1", len(comments))
	}
	want := "Closed as archived via meta repository wrapper sancovp/meta#7."
	if comments[0] != want {
		t.Errorf("comment = %q, want %q", comments[0], want)
	}
}

func TestCloseArchivedNonWrapperIsNoOp(t *testing.T) {
	engine, store := newTestEngine(t)

	calls := 0
	store.OnCall(func(string) { calls++ })

	err := engine.CloseArchived(context.Background(), tracker.IssueSummary{
		Repo:   metaRepo,
		Number: 7,
		Title:  "Meta repo housekeeping task",
	})
	if err != nil {
		t.Fatalf("non-wrapper archive should be a no-op, got %v", err)
	}
	if calls != 0 {
		t.Errorf("no-op made %d tracker calls", calls)
	}
}

func TestMoveStatus(t *testing.T) {
	engine, store := newTestEngine(t)
	store.Seed("acme/widgets", 42, "Fix login crash", "", tracker.StateOpen,
		[]string{"status-plan", "priority-high"})

	if err := engine.MoveStatus(context.Background(), "acme/widgets", 42, bml.StatusBuild); err != nil {
		t.Fatalf("MoveStatus: %v", err)
	}

	got := sorted(store.Issue("acme/widgets", 42).Labels)
	want := []string{"priority-high", "status-build"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("labels = %v, want %v", got, want)
	}
	// plan -> build is in-order; no advisory comment.
	if comments := store.Comments("acme/widgets", 42); len(comments) != 0 {
		t.Errorf("clean transition posted %d comments: %v", len(comments), comments)
	}
}

func TestMoveStatusPostsAdvisory(t *testing.T) {
	engine, store := newTestEngine(t)
	store.Seed("acme/widgets", 42, "Fix login crash", "", tracker.StateOpen,
		[]string{"status-backlog"})

	if err := engine.MoveStatus(context.Background(), "acme/widgets", 42, bml.StatusBuild); err != nil {
		t.Fatalf("MoveStatus: %v", err)
	}

	// Soft enforcement: the label change stands.
	labels := store.Issue("acme/widgets", 42).Labels
	if !reflect.DeepEqual(bml.StatusLabels(labels), []string{"status-build"}) {
		t.Errorf("status labels = %v, want [status-build]", bml.StatusLabels(labels))
	}
	comments := store.Comments("acme/widgets", 42)
	if len(comments) != 1 {
		t.Fatalf("got %d comments, want exactly 1 advisory", len(comments))
	}
	if !strings.Contains(comments[0], "Invalid workflow transition") {
		t.Errorf("advisory = %q", comments[0])
	}
}

func TestMoveStatusInvalidStatus(t *testing.T) {
	engine, _ := newTestEngine(t)
	if err := engine.MoveStatus(context.Background(), "acme/widgets", 42, bml.Status("shipping")); err == nil {
		t.Error("unknown status should error")
	}
}

func TestMoveStatusUnconfiguredLabel(t *testing.T) {
	engine, store := newTestEngine(t)
	store.Seed("acme/widgets", 42, "t", "", tracker.StateOpen, nil)
	store.KnownLabels = map[string]map[string]bool{"acme/widgets": {}}

	err := engine.MoveStatus(context.Background(), "acme/widgets", 42, bml.StatusBuild)
	if !errors.Is(err, tracker.ErrLabelNotConfigured) {
		t.Errorf("err = %v, want ErrLabelNotConfigured in chain", err)
	}
}
