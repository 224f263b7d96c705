package tracker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory IssueStore. It backs the engine and
// resolver tests and doubles as a scratch tracker for dry runs. Issue
// numbers are assigned per repository, starting at 1.
type MemoryStore struct {
	mu       sync.Mutex
	repos    map[string]*memoryRepo
	listener func(op string)

	// KnownLabels, when non-nil, restricts which labels exist per repo.
	// Adding a label outside the set returns ErrLabelNotConfigured,
	// mimicking a tracker with strict label configuration.
	KnownLabels map[string]map[string]bool

	// Err, when set, is returned (wrapped as a TransportError) by every
	// store call. Used to simulate tracker outages.
	Err error
}

type memoryRepo struct {
	nextNumber int
	issues     map[int]*memoryIssue
}

type memoryIssue struct {
	number   int
	title    string
	body     string
	state    IssueState
	labels   []string
	comments []string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{repos: make(map[string]*memoryRepo)}
}

// OnCall registers a callback invoked with the operation name on every
// store call. Tests use it to count API traffic.
func (m *MemoryStore) OnCall(fn func(op string)) { m.listener = fn }

func (m *MemoryStore) repo(name string) *memoryRepo {
	r, ok := m.repos[name]
	if !ok {
		r = &memoryRepo{nextNumber: 1, issues: make(map[int]*memoryIssue)}
		m.repos[name] = r
	}
	return r
}

func (m *MemoryStore) enter(op string) error {
	if m.listener != nil {
		m.listener(op)
	}
	if m.Err != nil {
		return Transport(op, m.Err)
	}
	return nil
}

// Seed inserts an issue with a fixed number, overwriting any existing
// issue at that number.
func (m *MemoryStore) Seed(repo string, number int, title, body string, state IssueState, labels []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.repo(repo)
	r.issues[number] = &memoryIssue{
		number: number,
		title:  title,
		body:   body,
		state:  state,
		labels: append([]string(nil), labels...),
	}
	if number >= r.nextNumber {
		r.nextNumber = number + 1
	}
}

// Issue returns a snapshot of the given issue, or nil if absent.
func (m *MemoryStore) Issue(repo string, number int) *IssueSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	iss, ok := m.repo(repo).issues[number]
	if !ok {
		return nil
	}
	s := iss.summary(repo)
	return &s
}

// Comments returns a copy of the issue's comment bodies.
func (m *MemoryStore) Comments(repo string, number int) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	iss, ok := m.repo(repo).issues[number]
	if !ok {
		return nil
	}
	return append([]string(nil), iss.comments...)
}

func (iss *memoryIssue) summary(repo string) IssueSummary {
	return IssueSummary{
		Repo:   repo,
		Number: iss.number,
		Title:  iss.title,
		Body:   iss.body,
		State:  iss.state,
		Labels: append([]string(nil), iss.labels...),
	}
}

// SearchIssues matches open and closed issues whose title contains the
// substring, ordered by issue number.
func (m *MemoryStore) SearchIssues(ctx context.Context, repo, titleContains string) ([]IssueSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("search"); err != nil {
		return nil, err
	}
	var out []IssueSummary
	for _, iss := range m.repo(repo).issues {
		if strings.Contains(iss.title, titleContains) {
			out = append(out, iss.summary(repo))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// FetchIssue returns the issue, or ErrIssueNotFound when absent.
func (m *MemoryStore) FetchIssue(ctx context.Context, repo string, number int) (*IssueSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("fetch"); err != nil {
		return nil, err
	}
	iss, ok := m.repo(repo).issues[number]
	if !ok {
		return nil, fmt.Errorf("%w: %s#%d", ErrIssueNotFound, repo, number)
	}
	s := iss.summary(repo)
	return &s, nil
}

// CreateIssue opens a new issue. Labels outside KnownLabels (when
// configured) fail the whole create, matching tracker behavior for
// create-with-labels.
func (m *MemoryStore) CreateIssue(ctx context.Context, repo, title, body string, labels []string) (*IssueSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("create"); err != nil {
		return nil, err
	}
	for _, l := range labels {
		if !m.labelKnown(repo, l) {
			return nil, ErrLabelNotConfigured
		}
	}
	r := m.repo(repo)
	iss := &memoryIssue{
		number: r.nextNumber,
		title:  title,
		body:   body,
		state:  StateOpen,
		labels: append([]string(nil), labels...),
	}
	r.nextNumber++
	r.issues[iss.number] = iss
	s := iss.summary(repo)
	return &s, nil
}

// EditIssue applies a partial edit. Unknown labels in AddLabels fail
// with ErrLabelNotConfigured after the title edit has been applied,
// mirroring the best-effort sequencing of the real adapter.
func (m *MemoryStore) EditIssue(ctx context.Context, repo string, number int, opts EditOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("edit"); err != nil {
		return err
	}
	iss, ok := m.repo(repo).issues[number]
	if !ok {
		return Transport("edit", errNotFound(repo, number))
	}
	if opts.Title != nil {
		iss.title = *opts.Title
	}
	for _, rm := range opts.RemoveLabels {
		iss.labels = removeLabel(iss.labels, rm)
	}
	for _, add := range opts.AddLabels {
		if !m.labelKnown(repo, add) {
			return ErrLabelNotConfigured
		}
		if !containsLabel(iss.labels, add) {
			iss.labels = append(iss.labels, add)
		}
	}
	return nil
}

// SetIssueState opens or closes an issue; same-state writes are no-ops.
func (m *MemoryStore) SetIssueState(ctx context.Context, repo string, number int, state IssueState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("state"); err != nil {
		return err
	}
	iss, ok := m.repo(repo).issues[number]
	if !ok {
		return Transport("state", errNotFound(repo, number))
	}
	iss.state = state
	return nil
}

// AddComment appends a comment body.
func (m *MemoryStore) AddComment(ctx context.Context, repo string, number int, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("comment"); err != nil {
		return err
	}
	iss, ok := m.repo(repo).issues[number]
	if !ok {
		return Transport("comment", errNotFound(repo, number))
	}
	iss.comments = append(iss.comments, body)
	return nil
}

// GetLabels returns the issue's label set.
func (m *MemoryStore) GetLabels(ctx context.Context, repo string, number int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("labels"); err != nil {
		return nil, err
	}
	iss, ok := m.repo(repo).issues[number]
	if !ok {
		return nil, Transport("labels", errNotFound(repo, number))
	}
	return append([]string(nil), iss.labels...), nil
}

// ListComments returns the issue's comment bodies, oldest first.
func (m *MemoryStore) ListComments(ctx context.Context, repo string, number int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("comments"); err != nil {
		return nil, err
	}
	iss, ok := m.repo(repo).issues[number]
	if !ok {
		return nil, Transport("comments", errNotFound(repo, number))
	}
	return append([]string(nil), iss.comments...), nil
}

// EnsureLabel registers a label as known for the repo.
func (m *MemoryStore) EnsureLabel(ctx context.Context, repo, name, color, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ensure-label"); err != nil {
		return err
	}
	if m.KnownLabels == nil {
		m.KnownLabels = make(map[string]map[string]bool)
	}
	if m.KnownLabels[repo] == nil {
		m.KnownLabels[repo] = make(map[string]bool)
	}
	m.KnownLabels[repo][name] = true
	return nil
}

// labelKnown reports whether the label may be attached in repo.
// Without a KnownLabels config every label is allowed.
func (m *MemoryStore) labelKnown(repo, label string) bool {
	if m.KnownLabels == nil {
		return true
	}
	known, ok := m.KnownLabels[repo]
	if !ok {
		return false
	}
	return known[label]
}

func containsLabel(labels []string, l string) bool {
	for _, x := range labels {
		if x == l {
			return true
		}
	}
	return false
}

func removeLabel(labels []string, l string) []string {
	out := labels[:0]
	for _, x := range labels {
		if x != l {
			out = append(out, x)
		}
	}
	return out
}

func errNotFound(repo string, number int) error {
	return fmt.Errorf("issue not found: %s#%d", repo, number)
}
