// Package wrapper handles meta-repository wrapper issues: the title
// and provenance-body wire formats that bind a wrapper to its source
// issue, and the resolver that finds or creates the wrapper for a
// given source reference.
package wrapper

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// SourceRef identifies a source issue as (repo, number), where repo is
// the "owner/repo" form.
type SourceRef struct {
	Repo   string
	Number int
}

func (r SourceRef) String() string {
	return fmt.Sprintf("%s#%d", r.Repo, r.Number)
}

// Token returns the bracketed title token for this reference,
// e.g. "[acme/widgets#42]".
func (r SourceRef) Token() string {
	return fmt.Sprintf("[%s#%d]", r.Repo, r.Number)
}

// URL returns the canonical web URL of the source issue.
func (r SourceRef) URL() string {
	return fmt.Sprintf("https://github.com/%s/issues/%d", r.Repo, r.Number)
}

// ErrNoSourceReference means a title carries no parseable source
// token. Not every issue in the meta repository is a wrapper, so the
// archive path treats this as a logged no-op, never a failure.
var ErrNoSourceReference = errors.New("no source reference in title")

// titlePattern extracts the source reference from a wrapper title.
var titlePattern = regexp.MustCompile(`\[([^#]+)#([0-9]+)\]`)

// FormatTitle builds the wrapper title: the bracketed source token
// followed by the source title verbatim.
func FormatTitle(ref SourceRef, sourceTitle string) string {
	return ref.Token() + " " + sourceTitle
}

// ParseTitle recovers the source reference from a wrapper title.
// Returns ErrNoSourceReference when the token is absent or malformed.
func ParseTitle(title string) (SourceRef, error) {
	m := titlePattern.FindStringSubmatch(title)
	if m == nil {
		return SourceRef{}, ErrNoSourceReference
	}
	number, err := strconv.Atoi(m[2])
	if err != nil {
		return SourceRef{}, ErrNoSourceReference
	}
	return SourceRef{Repo: m[1], Number: number}, nil
}

// bodySeparator divides the provenance header from the mirrored source
// body.
const bodySeparator = "\n---\n"

// FormatBody builds the wrapper body: provenance header, separator,
// then the source body verbatim.
func FormatBody(ref SourceRef, sourceBody string) string {
	var b strings.Builder
	b.WriteString("## Source Issue\n")
	fmt.Fprintf(&b, "Repository: %s\n", ref.Repo)
	fmt.Fprintf(&b, "Issue: #%d\n", ref.Number)
	fmt.Fprintf(&b, "Link: %s\n", ref.URL())
	b.WriteString(bodySeparator)
	b.WriteString(sourceBody)
	return b.String()
}
