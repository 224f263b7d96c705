// Package tracker abstracts the remote issue tracker behind a small
// capability interface. The sync engine only ever talks to an
// IssueStore; the GitHub adapter in internal/github is the production
// implementation, and MemoryStore backs the tests.
package tracker

import "context"

// IssueState is the open/closed state of an issue.
type IssueState string

const (
	StateOpen   IssueState = "open"
	StateClosed IssueState = "closed"
)

// IsValidState checks a state string against the two tracker states.
func IsValidState(s string) bool {
	return s == string(StateOpen) || s == string(StateClosed)
}

// IssueSummary is the projection of an issue returned by search and
// point reads. Repo plus Number identifies an issue; the core never
// mutates the identifier.
type IssueSummary struct {
	Repo   string // "owner/repo"
	Number int
	Title  string
	Body   string
	State  IssueState
	Labels []string
	URL    string
}

// EditOptions describes a partial issue edit. Nil/empty fields are
// left untouched.
type EditOptions struct {
	Title        *string
	AddLabels    []string
	RemoveLabels []string
}

// IssueStore is the capability set the sync core requires from a
// remote tracker. Every call takes a caller-owned context; callers are
// expected to attach timeouts. Implementations must wrap transport
// failures with Transport so the engine can distinguish retryable
// faults from local conditions.
type IssueStore interface {
	// SearchIssues returns open and closed issues in repo whose title
	// contains the given substring, best matches first.
	SearchIssues(ctx context.Context, repo, titleContains string) ([]IssueSummary, error)

	// FetchIssue is a point read of one issue. A missing issue returns
	// ErrIssueNotFound in the chain, not a transport error.
	FetchIssue(ctx context.Context, repo string, number int) (*IssueSummary, error)

	// CreateIssue opens a new issue and returns its summary.
	CreateIssue(ctx context.Context, repo, title, body string, labels []string) (*IssueSummary, error)

	// EditIssue applies a partial edit to an existing issue.
	EditIssue(ctx context.Context, repo string, number int, opts EditOptions) error

	// SetIssueState opens or closes an issue. Setting the current state
	// again is a no-op, not an error.
	SetIssueState(ctx context.Context, repo string, number int, state IssueState) error

	// AddComment appends a comment to an issue.
	AddComment(ctx context.Context, repo string, number int, body string) error

	// GetLabels returns the issue's current label set.
	GetLabels(ctx context.Context, repo string, number int) ([]string, error)

	// ListComments returns the issue's comment bodies, oldest first.
	ListComments(ctx context.Context, repo string, number int) ([]string, error)
}

// LabelEnsurer is implemented by stores that can create repository
// labels. The label bootstrap command uses it; the sync path does not
// require it.
type LabelEnsurer interface {
	// EnsureLabel creates the label in repo if it does not exist.
	EnsureLabel(ctx context.Context, repo, name, color, description string) error
}
