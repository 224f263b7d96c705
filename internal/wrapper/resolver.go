package wrapper

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/sancovp/metasync/internal/bml"
	"github.com/sancovp/metasync/internal/tracker"
)

// Mapping is a persisted (source reference → wrapper number) index.
// It is an optimization over title search: a populated mapping removes
// the ambiguous-match class entirely. A missing entry is never an
// error; the resolver falls back to search.
type Mapping interface {
	// Get returns the wrapper number for ref, with ok=false when unmapped.
	Get(ctx context.Context, ref SourceRef) (number int, ok bool, err error)

	// Put records the wrapper number for ref, replacing any prior entry.
	Put(ctx context.Context, ref SourceRef, number int) error
}

// Resolver finds or creates the meta-repository wrapper issue for a
// source issue. It guarantees at most one wrapper per source issue via
// mapping-lookup-then-search-before-create; the search path is a
// best-effort uniqueness guarantee, and concurrent resolves for the
// same reference may still race (last writer wins, self-heals on the
// next event).
type Resolver struct {
	Store    tracker.IssueStore
	MetaRepo string

	// Mapping is optional. When nil the resolver is purely
	// search-based.
	Mapping Mapping

	// OnWarning receives non-fatal resolution diagnostics
	// (ambiguous matches, mapping store write failures).
	OnWarning func(msg string)
}

// NewResolver creates a search-based resolver for the given meta repo.
func NewResolver(store tracker.IssueStore, metaRepo string) *Resolver {
	return &Resolver{Store: store, MetaRepo: metaRepo}
}

// Resolve returns the wrapper for ref, creating it when absent.
// The created wrapper carries the formatted title, provenance body,
// and a best-effort "synced" label: a label-not-configured failure on
// the label step must not fail the resolution.
func (r *Resolver) Resolve(ctx context.Context, ref SourceRef, sourceTitle, sourceBody string) (*tracker.IssueSummary, error) {
	if mapped, ok, err := r.lookupMapping(ctx, ref); err == nil && ok {
		return mapped, nil
	} else if err != nil {
		r.warn("mapping lookup for %s failed, falling back to search: %v", ref, err)
	}

	found, err := r.search(ctx, ref)
	if err != nil {
		return nil, err
	}
	if found != nil {
		r.record(ctx, ref, found.Number)
		return found, nil
	}

	created, err := r.create(ctx, ref, sourceTitle, sourceBody)
	if err != nil {
		return nil, err
	}
	r.record(ctx, ref, created.Number)
	return created, nil
}

// lookupMapping resolves via the mapping store and verifies the mapped
// issue is still the wrapper by parsing its title token. A mapping
// that points at a missing issue, or at an issue that no longer
// carries the token (stale entries, e.g. a mapping database carried
// across a meta-repo change), falls through to search; record then
// overwrites the bad entry.
func (r *Resolver) lookupMapping(ctx context.Context, ref SourceRef) (*tracker.IssueSummary, bool, error) {
	if r.Mapping == nil {
		return nil, false, nil
	}
	number, ok, err := r.Mapping.Get(ctx, ref)
	if err != nil || !ok {
		return nil, false, err
	}
	mapped, err := r.Store.FetchIssue(ctx, r.MetaRepo, number)
	if err != nil {
		if errors.Is(err, tracker.ErrIssueNotFound) {
			r.warn("mapping for %s points at missing %s#%d, falling back to search", ref, r.MetaRepo, number)
			return nil, false, nil
		}
		return nil, false, err
	}
	if parsed, perr := ParseTitle(mapped.Title); perr != nil || parsed != ref {
		r.warn("mapping for %s points at %s#%d which is not its wrapper, falling back to search", ref, r.MetaRepo, number)
		return nil, false, nil
	}
	return mapped, true, nil
}

// search locates an existing wrapper by its exact title token.
// More than one candidate is resolved by taking the first match; that
// heuristic is logged as a warning, not an error.
func (r *Resolver) search(ctx context.Context, ref SourceRef) (*tracker.IssueSummary, error) {
	token := ref.Token()
	matches, err := r.Store.SearchIssues(ctx, r.MetaRepo, token)
	if err != nil {
		return nil, fmt.Errorf("searching meta repo for %s: %w", ref, err)
	}

	// The search backend matches loosely; keep only titles carrying the
	// exact token. ParseTitle reads the first bracketed token only, so
	// this is stricter than substring containment: a title with another
	// bracket pair before the token does not count as the wrapper.
	var candidates []tracker.IssueSummary
	for _, m := range matches {
		if parsed, perr := ParseTitle(m.Title); perr == nil && parsed == ref {
			candidates = append(candidates, m)
		}
	}

	switch len(candidates) {
	case 0:
		return nil, nil
	case 1:
	default:
		r.warn("ambiguous wrapper match for %s: %d candidates, taking #%d", ref, len(candidates), candidates[0].Number)
	}
	return &candidates[0], nil
}

// create opens the wrapper issue and best-effort attaches the synced
// label.
func (r *Resolver) create(ctx context.Context, ref SourceRef, sourceTitle, sourceBody string) (*tracker.IssueSummary, error) {
	title := FormatTitle(ref, sourceTitle)
	body := FormatBody(ref, sourceBody)

	created, err := r.Store.CreateIssue(ctx, r.MetaRepo, title, body, nil)
	if err != nil {
		return nil, fmt.Errorf("creating wrapper for %s: %w", ref, err)
	}

	if err := r.Store.EditIssue(ctx, r.MetaRepo, created.Number, tracker.EditOptions{
		AddLabels: []string{bml.SyncedLabel},
	}); err != nil {
		if errors.Is(err, tracker.ErrLabelNotConfigured) {
			r.warn("synced label missing in %s, continuing without it", r.MetaRepo)
		} else {
			r.warn("attaching synced label to %s#%d: %v", r.MetaRepo, created.Number, err)
		}
	}

	return created, nil
}

// record persists the mapping; failures are logged, never fatal.
func (r *Resolver) record(ctx context.Context, ref SourceRef, number int) {
	if r.Mapping == nil {
		return
	}
	if err := r.Mapping.Put(ctx, ref, number); err != nil {
		r.warn("recording wrapper mapping %s -> #%d: %v", ref, number, err)
	}
}

func (r *Resolver) warn(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if r.OnWarning != nil {
		r.OnWarning(msg)
		return
	}
	log.Printf("wrapper: %s", msg)
}
